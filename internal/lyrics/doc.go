// Package lyrics turns per-track LRC files into one subtitle track aligned to
// a merged timeline.
//
// The flow for each track is decode, parse, classify, then place: raw bytes
// go through an ordered decoder chain, time tags become track-relative cues,
// content with too few tags is rejected as not-lyrics, and surviving cues are
// shifted by the track's start offset and clipped to its end. A track that
// fails any step contributes a SkipReason instead of cues; the rest of the
// timeline is unaffected.
//
// The SRT writer in srt.go is the exchange format consumed by the transcode
// pipeline's subtitle stage.
package lyrics
