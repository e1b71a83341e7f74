package batch

import (
	"fmt"
	"path/filepath"

	"mixtape/internal/textutil"
)

const defaultOutputName = "output"

// OutputPath names job index (1-based) of a batch of count videos:
// <name>.mp4 for a single video, <name>_<index>.mp4 otherwise.
func OutputPath(dir, template string, count, index int) string {
	name := textutil.SanitizeFileName(template)
	if name == "" {
		name = defaultOutputName
	}
	if count == 1 {
		return filepath.Join(dir, name+".mp4")
	}
	return filepath.Join(dir, fmt.Sprintf("%s_%d.mp4", name, index))
}
