// Package progress wraps the progress bar shown while compiling files in
// interactive runs.
package progress

import (
	"io"

	"github.com/schollz/progressbar/v3"
)

type Bar struct {
	bar *progressbar.ProgressBar
}

// New returns a bar rendering to w. A nil writer yields a silent bar, which
// keeps callers free of nil checks in tests and non-interactive runs.
func New(w io.Writer, max int, description string) *Bar {
	if w == nil {
		w = io.Discard
	}
	return &Bar{bar: progressbar.NewOptions(max,
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetDescription(description),
		progressbar.OptionClearOnFinish(),
	)}
}

func (b *Bar) Add(n int) {
	_ = b.bar.Add(n)
}

func (b *Bar) Finish() {
	_ = b.bar.Finish()
}
