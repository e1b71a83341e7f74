package tracks

import (
	"path/filepath"
	"strings"
)

// Track is one input audio file plus resolved metadata. Values are treated
// as immutable once returned by a Resolver.
type Track struct {
	Path   string
	Title  string
	Artist string
	// Duration is in seconds and never negative.
	Duration float64
	// Format is the container name reported by ffprobe (mp3, flac, ...). Empty
	// when the probe failed.
	Format string
	// LyricsSource is the discovered lyric file, or empty.
	LyricsSource string
}

// DisplayName renders "Artist - Title", or just the title when no artist is known.
func (t Track) DisplayName() string {
	if strings.TrimSpace(t.Artist) == "" {
		return t.Title
	}
	return t.Artist + " - " + t.Title
}

// HasLyrics reports whether a lyric file was discovered for the track.
func (t Track) HasLyrics() bool {
	return t.LyricsSource != ""
}

// IsMP3 reports whether the track is already in the pipeline's intermediate
// audio format. The probed container wins over the file extension.
func (t Track) IsMP3() bool {
	if t.Format != "" {
		return t.Format == "mp3"
	}
	return strings.EqualFold(filepath.Ext(t.Path), ".mp3")
}

// Paths returns the file path of every track, preserving order.
func Paths(list []Track) []string {
	out := make([]string, len(list))
	for i, t := range list {
		out[i] = t.Path
	}
	return out
}

func baseName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// splitArtistTitle splits an "artist-title" file name on the first hyphen.
func splitArtistTitle(name string) (artist, title string, ok bool) {
	left, right, found := strings.Cut(name, "-")
	if !found {
		return "", name, false
	}
	artist = strings.TrimSpace(left)
	title = strings.TrimSpace(right)
	if artist == "" || title == "" {
		return "", name, false
	}
	return artist, title, true
}
