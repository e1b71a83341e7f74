// Package transcode drives ffmpeg through the normalize, concat, subtitle,
// and mux stages that turn a timeline of tracks and a background image into
// one video.
//
// Each stage is a single external invocation. Its stderr is scanned for
// ffmpeg's time= marker, which is mapped to a stage fraction and then to an
// overall job fraction using fixed stage weights. The finished video only
// reaches the caller's output path after the mux stage exits 0.
package transcode
