package utils

import (
	"fmt"
	"io"
	"time"

	"github.com/cheggaaa/pb/v3"
)

// ProgressTracker renders a progress bar for a fetch. In quiet mode it
// still counts bytes so the summary stays accurate.
type ProgressTracker struct {
	bar       *pb.ProgressBar
	quiet     bool
	startTime time.Time
	total     int64
	current   int64
}

// NewProgressTracker creates a tracker for total bytes. Pass total <= 0
// when the size is unknown.
func NewProgressTracker(total int64, quiet bool) *ProgressTracker {
	t := &ProgressTracker{
		quiet:     quiet,
		startTime: time.Now(),
		total:     total,
	}
	if !quiet {
		tmpl := `{{counters . }} {{bar . "[" "=" ">" " " "]"}} {{percent . }} {{speed . }} {{rtime . "ETA %s"}}`
		t.bar = pb.ProgressBarTemplate(tmpl).Start64(total)
		t.bar.Set(pb.Bytes, true)
	}
	return t
}

// Add records n more transferred bytes.
func (t *ProgressTracker) Add(n int) {
	t.current += int64(n)
	if t.bar != nil {
		t.bar.Add(n)
	}
}

// Finish closes the bar and returns a one-line summary.
func (t *ProgressTracker) Finish() string {
	if t.bar != nil {
		t.bar.Finish()
	}
	elapsed := time.Since(t.startTime)
	speed := float64(t.current) / elapsed.Seconds()
	return fmt.Sprintf("%s in %s (%s/s)", FormatBytes(t.current), elapsed.Round(time.Millisecond), FormatBytes(int64(speed)))
}

// Reader wraps r so every read updates the tracker.
func (t *ProgressTracker) Reader(r io.Reader) io.Reader {
	return &progressReader{r: r, tracker: t}
}

type progressReader struct {
	r       io.Reader
	tracker *ProgressTracker
}

func (pr *progressReader) Read(p []byte) (int, error) {
	n, err := pr.r.Read(p)
	if n > 0 {
		pr.tracker.Add(n)
	}
	return n, err
}

// FormatBytes renders a byte count in binary units.
func FormatBytes(b int64) string {
	const unit = 1024
	if b < unit {
		return fmt.Sprintf("%d B", b)
	}
	div, exp := int64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.2f %cB", float64(b)/float64(div), "KMGTPE"[exp])
}
