package pkg

import (
	"io"

	"go.uber.org/multierr"
)

// CombinedWriter fans log output out to every sink (stdout, the rotated log
// file). A failing sink is skipped and its error reported, the rest still
// receive the bytes.
type CombinedWriter struct {
	Writers []io.Writer
}

func NewCombinedWriter(writers ...io.Writer) *CombinedWriter {
	return &CombinedWriter{Writers: writers}
}

// Write returns the bytes written summed over the sinks that succeeded.
func (cw *CombinedWriter) Write(p []byte) (int, error) {
	var (
		total int
		errs  error
	)
	for _, w := range cw.Writers {
		n, err := w.Write(p)
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		total += n
	}
	return total, errs
}
