package report

import (
	"math"
	"strconv"
	"strings"
	"sync"
	"time"
)

// sessionLayout is the millisecond-resolution session id format
const sessionLayout = "20060102_150405.000"

var (
	sessionMu   sync.Mutex
	lastSession time.Time
)

// nextSession returns the start time and id of a new session. Ids are
// distinct within the process: a start time that does not advance past the
// previous one is bumped by a millisecond.
func nextSession() (time.Time, string) {
	sessionMu.Lock()
	defer sessionMu.Unlock()

	now := time.Now().Truncate(time.Millisecond)
	if !now.After(lastSession) {
		now = lastSession.Add(time.Millisecond)
	}
	lastSession = now

	return now, FormatSessionID(now)
}

// FormatSessionID renders t as YYYYMMDD_HHMMSS_mmm
func FormatSessionID(t time.Time) string {
	return strings.Replace(t.Format(sessionLayout), ".", "_", 1)
}

// formatFloat renders v in its shortest form, always with a decimal point
func formatFloat(v float64) string {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.ContainsAny(s, ".eEnN") {
		s += ".0"
	}
	return s
}

// formatRounded rounds v half away from zero to the given number of decimals
func formatRounded(v float64, decimals int) string {
	p := math.Pow(10, float64(decimals))
	r := math.Round(v*p) / p
	if r == 0 {
		r = 0 // drop negative zero
	}
	return formatFloat(r)
}

func optionalInt(v *int) string {
	if v == nil {
		return ""
	}
	return strconv.Itoa(*v)
}

func optionalFloat(v *float64) string {
	if v == nil {
		return ""
	}
	return formatFloat(*v)
}

// Int returns a pointer to v, for optional DetectionEntry fields
func Int(v int) *int { return &v }

// Float returns a pointer to v, for optional DetectionEntry fields
func Float(v float64) *float64 { return &v }
