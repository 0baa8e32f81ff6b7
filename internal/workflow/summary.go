package workflow

import (
	"time"

	"metaledger/internal/logging"
	"metaledger/internal/stage"
)

// Summary reports one workflow run.
type Summary struct {
	RunID    string
	Started  time.Time
	Duration time.Duration
	Stages   []stage.Summary
	Warnings int64
	Errors   int64
}

// Stage returns the summary for name, if that stage ran.
func (s Summary) Stage(name string) (stage.Summary, bool) {
	for _, st := range s.Stages {
		if st.Stage == name {
			return st, true
		}
	}
	return stage.Summary{}, false
}

func (s *Summary) finish(counter *logging.LevelCounter) {
	s.Duration = time.Since(s.Started)
	s.Warnings = counter.Warnings()
	s.Errors = counter.Errors()
}
