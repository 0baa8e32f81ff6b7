package transmit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"metaledger/internal/ledger"
	"metaledger/internal/logging"
	"metaledger/internal/metrics"
	"metaledger/internal/services"
	"metaledger/internal/services/index"
	"metaledger/internal/stage"
)

// Outcome labels tallied by the transmitter.
const (
	OutcomeSuccessful = "successful"
	OutcomeFailed     = "failed"
	OutcomeSkipped    = "skipped"
	OutcomeError      = "error"
)

const defaultMaxPasses = 10

// Queue is the ledger state machine the transmitter drives.
type Queue interface {
	Kind() ledger.Kind
	Eligible(ctx context.Context) ([]ledger.Outbound, error)
	MarkPending(ctx context.Context, id string) error
	Complete(ctx context.Context, id string, code int, at time.Time) error
	Revert(ctx context.Context, id string, prior ledger.Transmission) error
}

// Poster sends one payload to the index service.
type Poster interface {
	Post(ctx context.Context, payload index.Payload) (index.Response, error)
}

// TransportFailure aborts a run when the index service cannot be reached.
type TransportFailure struct {
	Kind     ledger.Kind
	RecordID string
	Err      error
}

func (e *TransportFailure) Error() string {
	return fmt.Sprintf("%s transmission of %s: %v", e.Kind, e.RecordID, e.Err)
}

func (e *TransportFailure) Unwrap() error { return e.Err }

// Transmitter runs the transmission loop for one queue.
type Transmitter struct {
	Queue        Queue
	Client       Poster
	ProviderName string
	// MaxPasses bounds the re-query loop; a pass without a single success
	// also ends it.
	MaxPasses int
	Logger    *slog.Logger
	Metrics   *metrics.Recorder
	Now       func() time.Time
}

func (t *Transmitter) Name() string {
	if t.Queue != nil && t.Queue.Kind() == ledger.KindSupplemental {
		return stage.NameTransmitSupplemental
	}
	return stage.NameTransmit
}

func (t *Transmitter) HealthCheck(context.Context) stage.Health {
	if t.Client == nil {
		return stage.Unhealthy(t.Name(), "index client not configured")
	}
	return stage.Healthy(t.Name())
}

// Run transmits until nothing is eligible, a pass makes no progress, or the
// pass budget is spent. A *TransportFailure is returned when the service is
// unreachable.
func (t *Transmitter) Run(ctx context.Context) (stage.Summary, error) {
	started := time.Now()
	name := t.Name()
	if t.Queue == nil || t.Client == nil {
		return stage.Summary{}, services.Wrap(services.ErrConfiguration, name, "init", "queue or index client missing", nil)
	}
	ctx = services.WithStage(ctx, name)
	logger := logging.WithContext(ctx, logging.NewComponentLogger(t.Logger, name))

	maxPasses := t.MaxPasses
	if maxPasses <= 0 {
		maxPasses = defaultMaxPasses
	}

	var tally stage.Tally
	var runErr error
	for pass := 1; pass <= maxPasses; pass++ {
		eligible, err := t.Queue.Eligible(ctx)
		if err != nil {
			runErr = services.Wrap(services.ErrTransient, name, "select eligible", "", err)
			break
		}
		if len(eligible) == 0 {
			logger.Info("nothing left to transmit", logging.Int("pass", pass))
			break
		}
		logger.Info("transmission pass started",
			logging.Int("pass", pass),
			logging.Int("eligible", len(eligible)),
			logging.String(logging.FieldEventType, "transmit_pass"),
		)

		successes := 0
		for _, row := range eligible {
			label, err := t.send(ctx, logger, row)
			tally.Add(label)
			if label == OutcomeSuccessful {
				successes++
			}
			if err != nil {
				runErr = err
				break
			}
		}
		if runErr != nil {
			break
		}
		if successes == 0 {
			logger.Info("pass made no progress, stopping",
				logging.Int("pass", pass),
				logging.Int("remaining", len(eligible)),
			)
			break
		}
		if pass == maxPasses {
			logging.WarnWithContext(logger, "transmission pass limit reached", "transmit_pass_limit",
				logging.Int("passes", maxPasses),
				logging.String(logging.FieldImpact, "remaining rows are sent on the next run"),
			)
		}
	}

	summary := tally.Summary(name, started)
	logger.Info("transmission finished",
		logging.Outcomes(summary.Counts),
		logging.Duration("duration", summary.Duration),
		logging.String(logging.FieldEventType, "stage_complete"),
	)
	return summary, runErr
}

func (t *Transmitter) send(ctx context.Context, logger *slog.Logger, row ledger.Outbound) (string, error) {
	if err := ctx.Err(); err != nil {
		return OutcomeSkipped, err
	}
	logger = logger.With(logging.RecordID(row.RecordID), logging.KeyHash(row.KeyHash))

	if err := t.Queue.MarkPending(ctx, row.ID); err != nil {
		if errors.Is(err, ledger.ErrInvalidTransition) {
			logger.Debug("row no longer eligible", logging.Error(err))
			return OutcomeSkipped, nil
		}
		logging.ErrorWithContext(logger, "mark pending failed", "transmit_store_failed", logging.Error(err))
		return OutcomeError, nil
	}

	resp, err := t.Client.Post(ctx, t.payload(row))
	if err != nil {
		if revertErr := t.Queue.Revert(context.WithoutCancel(ctx), row.ID, row.Transmission); revertErr != nil {
			logging.ErrorWithContext(logger, "pending row not reverted", "transmit_revert_failed",
				logging.Error(revertErr),
				logging.String(logging.FieldErrorHint, "row stays Pending; reset it to Ready before the next run"),
			)
		}
		t.Metrics.Transmitted(string(t.Queue.Kind()), 0)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return OutcomeSkipped, ctxErr
		}
		logging.ErrorWithContext(logger, "index service unreachable", "transmit_transport_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check index.endpoint and network connectivity"),
		)
		return OutcomeError, &TransportFailure{Kind: t.Queue.Kind(), RecordID: row.RecordID, Err: err}
	}

	t.Metrics.Transmitted(string(t.Queue.Kind()), resp.StatusCode)
	if err := t.Queue.Complete(ctx, row.ID, resp.StatusCode, t.now()); err != nil {
		logging.ErrorWithContext(logger, "transmission result not saved", "transmit_store_failed",
			logging.Error(err),
			logging.StatusCode(resp.StatusCode),
		)
		return OutcomeError, nil
	}
	if resp.Created() {
		logger.Debug("record transmitted", logging.StatusCode(resp.StatusCode))
		return OutcomeSuccessful, nil
	}

	rejection := services.Wrap(services.ErrTransmissionRejected, t.Name(), "post", fmt.Sprintf("status %d", resp.StatusCode), nil)
	logging.WarnWithContext(logger, "index service rejected record", "transmit_rejected",
		logging.StatusCode(resp.StatusCode),
		logging.String("response", resp.Body),
		logging.Error(rejection),
		logging.String(logging.FieldErrorHint, "inspect the response body for the offending fields"),
		logging.String(logging.FieldImpact, impactFor(resp.StatusCode)),
	)
	return OutcomeFailed, nil
}

func (t *Transmitter) payload(row ledger.Outbound) index.Payload {
	metadata := json.RawMessage(row.Metadata)
	if len(metadata) == 0 {
		metadata = json.RawMessage("{}")
	}
	return index.Payload{
		UniqueRecordIdentifier: row.RecordID,
		Metadata:               metadata,
		MetadataHash:           row.Hash,
		MetadataKey:            row.Key,
		MetadataKeyHash:        row.KeyHash,
		ProviderName:           t.ProviderName,
	}
}

func (t *Transmitter) now() time.Time {
	if t.Now != nil {
		return t.Now()
	}
	return time.Now()
}

func impactFor(code int) string {
	if code >= 400 && code < 500 && code != 408 && code != 429 {
		return "record excluded from retries until its content changes"
	}
	return "record retried on the next pass or run"
}
