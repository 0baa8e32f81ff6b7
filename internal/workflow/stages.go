package workflow

import (
	"fmt"
	"log/slog"

	"metaledger/internal/config"
	"metaledger/internal/extract"
	"metaledger/internal/keyhash"
	"metaledger/internal/ledger"
	"metaledger/internal/metrics"
	"metaledger/internal/schema"
	"metaledger/internal/services"
	"metaledger/internal/services/index"
	"metaledger/internal/source"
	"metaledger/internal/stage"
	"metaledger/internal/transform"
	"metaledger/internal/transmit"
	"metaledger/internal/validate"
)

// StageSet bundles the concrete handlers the runner orchestrates. Nil
// handlers are skipped.
type StageSet struct {
	Extract              stage.Handler
	ValidateSource       stage.Handler
	Transform            stage.Handler
	ValidateTarget       stage.Handler
	Transmit             stage.Handler
	TransmitSupplemental stage.Handler
}

// Ordered returns the configured handlers in pipeline order.
func (s StageSet) Ordered() []stage.Handler {
	all := []stage.Handler{s.Extract, s.ValidateSource, s.Transform, s.ValidateTarget, s.Transmit, s.TransmitSupplemental}
	out := make([]stage.Handler, 0, len(all))
	for _, h := range all {
		if h != nil {
			out = append(out, h)
		}
	}
	return out
}

// Lookup returns the handler registered under name.
func (s StageSet) Lookup(name string) (stage.Handler, bool) {
	for _, h := range s.Ordered() {
		if h.Name() == name {
			return h, true
		}
	}
	return nil, false
}

// BuildStages loads the schema documents and wires every handler.
func BuildStages(cfg *config.Config, store *ledger.Store, logger *slog.Logger, rec *metrics.Recorder) (StageSet, error) {
	wrap := func(op string, err error) error {
		return services.Wrap(services.ErrConfiguration, "workflow", op, "", err)
	}

	schemas, err := schema.LoadSet(cfg)
	if err != nil {
		return StageSet{}, wrap("load schemas", err)
	}
	sourceReq, err := validate.ParseRequirements(schemas.SourceRequirements)
	if err != nil {
		return StageSet{}, wrap("parse source requirements", fmt.Errorf("%s: %w", cfg.Schemas.SourceValidation, err))
	}
	targetReq, err := validate.ParseRequirements(schemas.TargetRequirements)
	if err != nil {
		return StageSet{}, wrap("parse target requirements", fmt.Errorf("%s: %w", cfg.Schemas.TargetValidation, err))
	}
	mapping, err := transform.ParseMapping(schemas.TargetMapping)
	if err != nil {
		return StageSet{}, wrap("parse target mapping", fmt.Errorf("%s: %w", cfg.Schemas.TargetMapping, err))
	}

	conn, err := source.NewFromConfig(cfg)
	if err != nil {
		return StageSet{}, wrap("open source", err)
	}
	extractor, err := extract.NewFromConfig(cfg, store, logger, rec)
	if err != nil {
		return StageSet{}, err
	}

	workers := cfg.Workflow.Workers
	set := StageSet{
		Extract:        extractor.Stage(conn),
		ValidateSource: validate.NewSourceStage(store, sourceReq, logger, validate.WithWorkers(workers), validate.WithMetrics(rec)),
		Transform: &transform.Stage{
			Store:     store,
			Mapping:   mapping,
			TargetKey: keyhash.KeySpec{Fields: cfg.Keys.TargetFields, Separator: cfg.Keys.Separator},
			Logger:    logger,
			Workers:   workers,
			Metrics:   rec,
		},
		ValidateTarget: validate.NewTargetStage(store, targetReq, logger, validate.WithWorkers(workers), validate.WithMetrics(rec)),
	}

	metadataClient, supplementalClient := index.NewFromConfig(cfg)
	if cfg.Index.Endpoint != "" {
		set.Transmit = &transmit.Transmitter{
			Queue:        store.Transmissions(ledger.KindMetadata),
			Client:       metadataClient,
			ProviderName: cfg.Index.ProviderName,
			MaxPasses:    cfg.Index.MaxPasses,
			Logger:       logger,
			Metrics:      rec,
		}
	}
	if cfg.Workflow.TransmitSupplemental && supplementalClient != nil {
		set.TransmitSupplemental = &transmit.Transmitter{
			Queue:        store.Transmissions(ledger.KindSupplemental),
			Client:       supplementalClient,
			ProviderName: cfg.Index.ProviderName,
			MaxPasses:    cfg.Index.MaxPasses,
			Logger:       logger,
			Metrics:      rec,
		}
	}
	return set, nil
}
