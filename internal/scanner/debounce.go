package scanner

import (
	"sync"
	"time"
)

// DefaultDebounceWindow is the cooldown applied to repeat reads of the same
// physical label.
const DefaultDebounceWindow = 1500 * time.Millisecond

// Debouncer suppresses duplicate decode events: a code is forwarded only if
// the same code was not forwarded within the cooldown window.
type Debouncer struct {
	window time.Duration
	now    func() time.Time

	mu          sync.Mutex
	lastCode    string
	forwardedAt time.Time
}

// NewDebouncer builds a debouncer; a non-positive window falls back to
// DefaultDebounceWindow.
func NewDebouncer(window time.Duration) *Debouncer {
	if window <= 0 {
		window = DefaultDebounceWindow
	}
	return &Debouncer{window: window, now: time.Now}
}

// Accept reports whether the code should be forwarded downstream. The
// cooldown is armed here, before any downstream resolution runs, so a slow
// resolution call cannot let a flood of duplicates through. The remembered
// code and the cooldown expire together when the window elapses.
func (d *Debouncer) Accept(code string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	if d.lastCode != "" && now.Sub(d.forwardedAt) >= d.window {
		d.lastCode = ""
	}
	if code == d.lastCode {
		return false
	}

	d.lastCode = code
	d.forwardedAt = now
	return true
}

// Reset clears the cooldown state, e.g. when a scan session ends.
func (d *Debouncer) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.lastCode = ""
	d.forwardedAt = time.Time{}
}
