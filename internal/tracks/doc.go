// Package tracks resolves input audio files into immutable Track values.
//
// Metadata comes from ffprobe tags with filename-derived fallbacks, durations
// fall back to the banner ffmpeg prints for an input, and lyric files are
// discovered next to the track or in a shared lyrics folder. Resolution never
// fails: every problem degrades to a best-effort default.
package tracks
