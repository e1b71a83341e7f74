package lyrics

import (
	"fmt"
	"sync"

	"github.com/liuzl/gocc"
)

// TextTransform rewrites cue text before it is placed on the timeline.
type TextTransform func(string) string

var (
	t2sOnce sync.Once
	t2s     *gocc.OpenCC
	t2sErr  error
)

// TraditionalToSimplified returns a transform backed by the OpenCC t2s
// tables. The converter is loaded once per process. Text that fails to
// convert is returned unchanged.
func TraditionalToSimplified() (TextTransform, error) {
	t2sOnce.Do(func() {
		t2s, t2sErr = gocc.New("t2s")
	})
	if t2sErr != nil {
		return nil, fmt.Errorf("load opencc t2s: %w", t2sErr)
	}
	return func(text string) string {
		out, err := t2s.Convert(text)
		if err != nil {
			return text
		}
		return out
	}, nil
}
