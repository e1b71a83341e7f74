package tracks

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
)

var audioExtensions = map[string]struct{}{
	".mp3": {}, ".flac": {}, ".wav": {}, ".m4a": {}, ".aac": {}, ".ogg": {}, ".wma": {},
}

var imageExtensions = map[string]struct{}{
	".jpg": {}, ".jpeg": {}, ".png": {}, ".bmp": {}, ".webp": {},
}

// FindLyrics returns the lyric file for a track, or "" when none exists.
// A sibling "<name>.lrc" wins; otherwise lyricsDir is searched for the exact
// name, then for variants derived from an "artist-title" file name.
func FindLyrics(trackPath, lyricsDir string) string {
	name := baseName(trackPath)
	sibling := filepath.Join(filepath.Dir(trackPath), name+".lrc")
	if isFile(sibling) {
		return sibling
	}
	if strings.TrimSpace(lyricsDir) == "" {
		return ""
	}
	for _, candidate := range lyricCandidates(name) {
		path := filepath.Join(lyricsDir, candidate)
		if isFile(path) {
			return path
		}
	}
	return ""
}

func lyricCandidates(name string) []string {
	candidates := []string{name + ".lrc", name + ".LRC"}
	if artist, title, ok := splitArtistTitle(name); ok {
		candidates = append(candidates,
			artist+" - "+title+".lrc",
			title+".lrc",
			artist+"-"+title+".lrc",
		)
	}
	return candidates
}

// Scan lists supported audio files directly inside dir, sorted by name.
func Scan(dir string) ([]string, error) {
	return listByExtension(dir, audioExtensions)
}

// ScanImages lists supported background images directly inside dir, sorted by name.
func ScanImages(dir string) ([]string, error) {
	return listByExtension(dir, imageExtensions)
}

// IsAudioFile reports whether path has a supported audio extension.
func IsAudioFile(path string) bool {
	_, ok := audioExtensions[strings.ToLower(filepath.Ext(path))]
	return ok
}

func listByExtension(dir string, allowed map[string]struct{}) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, entry := range entries {
		if entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		if _, ok := allowed[strings.ToLower(filepath.Ext(entry.Name()))]; !ok {
			continue
		}
		out = append(out, filepath.Join(dir, entry.Name()))
	}
	sort.Strings(out)
	return out, nil
}

func isFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
