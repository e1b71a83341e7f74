// Package preflight provides readiness checks for the filesystem paths and
// external services a batch depends on.
//
// The CLI "mixtape check" command renders every result. The batch command
// runs the required checks before resolving any tracks so an unwritable
// work directory fails fast instead of after the first probe.
package preflight
