package source

import (
	"context"
	"fmt"
	"iter"

	"metaledger/internal/config"
	"metaledger/internal/document"
)

// Connector yields raw records. Order carries no meaning.
type Connector interface {
	Name() string
	Records(ctx context.Context) iter.Seq2[document.Document, error]
}

// RecordError reports a single unreadable record. The feed continues after it.
type RecordError struct {
	Position int
	Err      error
}

func (e *RecordError) Error() string {
	return fmt.Sprintf("record %d: %v", e.Position, e.Err)
}

func (e *RecordError) Unwrap() error { return e.Err }

// NewFromConfig builds the file connector described by the [source] section.
func NewFromConfig(cfg *config.Config) (*FileConnector, error) {
	if cfg == nil {
		return nil, fmt.Errorf("source: nil config")
	}
	if cfg.Source.File == "" {
		return nil, fmt.Errorf("source.file must be set to read records")
	}
	return NewFileConnector(cfg.Source.File, cfg.Source.Format, cfg.Source.Encoding)
}

// Static is an in-memory connector.
type Static []document.Document

func (s Static) Name() string { return "static" }

func (s Static) Records(ctx context.Context) iter.Seq2[document.Document, error] {
	return func(yield func(document.Document, error) bool) {
		for _, doc := range s {
			if err := ctx.Err(); err != nil {
				yield(nil, err)
				return
			}
			if !yield(doc.Clone(), nil) {
				return
			}
		}
	}
}
