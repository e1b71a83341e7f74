// Package services defines shared utilities consumed by the batch controller,
// the transcode pipeline, and the CLI.
//
// Key responsibilities:
//   - Context helpers that stamp batch identifiers, job indexes, and stage
//     names for logging.
//   - Structured error markers plus the Wrap helper so callers can classify
//     failures (external tool, validation, cancellation) with errors.Is.
//
// Use these helpers when wiring new pipeline logic so failure reporting stays
// uniform across jobs.
package services
