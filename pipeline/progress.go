package pipeline

import "math"

// progressTracker maps per-file progress onto one overall bar that is
// linear in files: file i of n owns the span [i*100/n, (i+1)*100/n)
type progressTracker struct {
	total  int
	last   float64
	report ProgressFunc
}

func newProgressTracker(total int, report ProgressFunc) *progressTracker {
	return &progressTracker{total: total, report: report}
}

// emit reports percent, never letting the bar move backwards
func (t *progressTracker) emit(percent float64, message string) {
	if t.report == nil {
		return
	}
	percent = math.Max(t.last, math.Min(percent, 100))
	t.last = percent
	t.report(percent, message)
}

func (t *progressTracker) span() float64 {
	if t.total <= 0 {
		return 0
	}
	return 100 / float64(t.total)
}

// start reports the beginning of file index
func (t *progressTracker) start(index int, message string) {
	t.emit(float64(index)*t.span(), message)
}

// within returns a callback that fills file index's span as the file
// reports its own 0-100 progress
func (t *progressTracker) within(index int) ProgressFunc {
	base := float64(index) * t.span()
	return func(percent float64, message string) {
		t.emit(base+t.span()*math.Min(math.Max(percent, 0), 100)/100, message)
	}
}

// finish reports the end of file index
func (t *progressTracker) finish(index int, message string) {
	t.emit(float64(index+1)*t.span(), message)
}
