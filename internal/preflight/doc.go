// Package preflight provides readiness checks for the filesystem paths and
// services metaledger depends on.
//
// These checks run in two contexts:
//   - The workflow runner calls RunLocal before the first stage and stops the
//     run if any check fails. RunIndex runs only when a transmit stage is
//     about to run; an unreachable index is reported but does not hold back
//     the earlier stages.
//   - The CLI "metaledger status" command prints every result.
//
// Checks for optional features are skipped when the feature is off.
package preflight
