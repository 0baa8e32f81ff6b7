// Package stage holds the contract every pipeline stage satisfies plus the
// shared helpers for fanning record work out to a bounded worker pool and
// tallying per-record outcomes.
package stage

import "context"

// Handler describes the contract the workflow runner needs from each stage.
// Run processes every candidate row once; only fatal errors are returned.
type Handler interface {
	Name() string
	Run(ctx context.Context) (Summary, error)
	HealthCheck(ctx context.Context) Health
}

// Stage names, in pipeline order.
const (
	NameExtract              = "extract"
	NameValidateSource       = "validate-source"
	NameTransform            = "transform"
	NameValidateTarget       = "validate-target"
	NameTransmit             = "transmit"
	NameTransmitSupplemental = "transmit-supplemental"
)
