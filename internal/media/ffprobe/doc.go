// Package ffprobe provides a typed wrapper around ffprobe JSON output.
//
// Key types:
//   - Result: parsed ffprobe output containing streams and format metadata
//   - Format: container-level metadata (duration, format name, tags)
//
// Primary entry point:
//   - Inspect: executes ffprobe and returns parsed Result
//
// Helper methods on Result expose duration parsing and case-insensitive tag
// lookup (ID3, Vorbis comments, and MP4 atoms use different key casing).
package ffprobe
