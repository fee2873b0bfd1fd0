// Package timer tracks per-image elapsed and active annotation time. One
// engine exists per session; a 1-second tick advances the counters of the
// active image, and an inactivity watchdog pauses counting after 5 seconds
// without user activity. Marking an image complete freezes its counters.
package timer

import (
	"context"
	"sync"
	"time"

	"github.com/annoview/annoview/internal/annotation"
)

// State is the per-image timer state.
type State int

const (
	// Running counts total time every tick, and active time while drawing.
	Running State = iota
	// Paused is entered after InactivityTimeout without user activity.
	Paused
	// Frozen means the image is marked complete; counters do not advance.
	Frozen
)

const (
	// TickInterval is the counter advancement period.
	TickInterval = time.Second
	// InactivityTimeout pauses the timer when no activity arrives.
	InactivityTimeout = 5 * time.Second
)

// Engine tracks the active image's live counters plus the flushed per-image
// time maps. All methods are safe for concurrent use; the tick goroutine and
// HTTP handlers share the engine.
type Engine struct {
	mu sync.Mutex

	currentIndex int
	state        State
	total        int
	active       int
	drawing      bool
	lastActivity time.Time

	totals  map[int]int
	actives map[int]int

	cancel context.CancelFunc
}

// NewEngine creates a stopped engine with empty time maps.
func NewEngine() *Engine {
	return &Engine{
		totals:  make(map[int]int),
		actives: make(map[int]int),
	}
}

// Start launches the 1-second tick loop. The loop has session lifetime, not
// caller lifetime: it runs until Stop or Reset is called, deliberately
// outliving the request context that triggered the directory load. Starting
// twice stops the previous loop first, so a superseded loop can never tick
// against new state.
func (e *Engine) Start() {
	e.mu.Lock()
	if e.cancel != nil {
		e.cancel()
	}
	ctx, cancel := context.WithCancel(context.Background())
	e.cancel = cancel
	e.mu.Unlock()

	go func() {
		ticker := time.NewTicker(TickInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				e.Tick(now)
			}
		}
	}()
}

// Stop cancels the tick loop.
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.cancel != nil {
		e.cancel()
		e.cancel = nil
	}
}

// Tick advances the live counters by one second. While Running, total time
// always advances and active time advances only while the drawing flag is
// set. If the inactivity deadline has passed the engine transitions to
// Paused instead of counting.
func (e *Engine) Tick(now time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != Running {
		return
	}
	if now.Sub(e.lastActivity) >= InactivityTimeout {
		e.state = Paused
		return
	}
	e.total++
	if e.drawing {
		e.active++
	}
}

// Activity records user input (pointer, keyboard, zoom). It resumes a
// Paused engine and re-arms the inactivity deadline. Frozen images ignore
// activity.
func (e *Engine) Activity(now time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == Frozen {
		return
	}
	e.lastActivity = now
	if e.state == Paused {
		e.state = Running
	}
}

// SetDrawing toggles the actively-drawing flag that gates active-time
// accumulation. Active time is therefore always <= total time.
func (e *Engine) SetDrawing(drawing bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.drawing = drawing
}

// MarkComplete freezes the current image and snapshots its live counters
// into the per-image maps. The saved values become authoritative until the
// image is unmarked.
func (e *Engine) MarkComplete() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.state = Frozen
	e.totals[e.currentIndex] = e.total
	e.actives[e.currentIndex] = e.active
}

// Unmark thaws the current image, resuming from the snapshotted times
// rather than resetting to zero.
func (e *Engine) Unmark(now time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != Frozen {
		return
	}
	e.total = e.totals[e.currentIndex]
	e.active = e.actives[e.currentIndex]
	e.state = Running
	e.lastActivity = now
}

// SwitchTo flushes the outgoing image's counters (unless frozen) and loads
// the incoming image's stored times, entering Frozen if completed is set and
// Running with a fresh inactivity deadline otherwise.
func (e *Engine) SwitchTo(index int, completed bool, now time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != Frozen {
		e.totals[e.currentIndex] = e.total
		e.actives[e.currentIndex] = e.active
	}
	e.currentIndex = index
	e.total = e.totals[index]
	e.active = e.actives[index]
	e.drawing = false
	if completed {
		e.state = Frozen
	} else {
		e.state = Running
		e.lastActivity = now
	}
}

// Flush writes the live counters into the per-image maps without changing
// state. Saves of a not-completed image flush as a side effect so the time
// log reflects the in-flight values.
func (e *Engine) Flush() (total, active int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != Frozen {
		e.totals[e.currentIndex] = e.total
		e.actives[e.currentIndex] = e.active
	}
	return e.totals[e.currentIndex], e.actives[e.currentIndex]
}

// Current returns the live counters and paused flag of the active image.
func (e *Engine) Current() (total, active int, paused bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.total, e.active, e.state == Paused
}

// CurrentState returns the active image's timer state.
func (e *Engine) CurrentState() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// SetTimes seeds the stored times of one image, used when reconciling the
// persisted time log on directory load.
func (e *Engine) SetTimes(index, total, active int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.totals[index] = total
	e.actives[index] = active
	if index == e.currentIndex {
		e.total = total
		e.active = active
	}
}

// Times returns the stored times of one image (0 if absent).
func (e *Engine) Times(index int) (total, active int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.totals[index], e.actives[index]
}

// AllTimes returns copies of the stored per-image time maps.
func (e *Engine) AllTimes() (totals, actives map[int]int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	totals = make(map[int]int, len(e.totals))
	for k, v := range e.totals {
		totals[k] = v
	}
	actives = make(map[int]int, len(e.actives))
	for k, v := range e.actives {
		actives[k] = v
	}
	return totals, actives
}

// ProjectTotals sums stored times across all images, substituting the live
// (unflushed) counters for the active image when it is not frozen so that
// nothing is double-counted after a flush.
func (e *Engine) ProjectTotals() (total, active int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for idx, v := range e.totals {
		if idx != e.currentIndex {
			total += v
		}
	}
	for idx, v := range e.actives {
		if idx != e.currentIndex {
			active += v
		}
	}
	if e.state == Frozen {
		total += e.totals[e.currentIndex]
		active += e.actives[e.currentIndex]
	} else {
		total += e.total
		active += e.active
	}
	return total, active
}

// RemapAfterImageRemoval applies the shared index remap to both time maps.
func (e *Engine) RemapAfterImageRemoval(removedIndex int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.totals = annotation.RemapIntKeys(e.totals, removedIndex)
	e.actives = annotation.RemapIntKeys(e.actives, removedIndex)
}

// Reset stops the tick loop and clears all timer state.
func (e *Engine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.cancel != nil {
		e.cancel()
		e.cancel = nil
	}
	e.currentIndex = 0
	e.state = Running
	e.total = 0
	e.active = 0
	e.drawing = false
	e.lastActivity = time.Time{}
	e.totals = make(map[int]int)
	e.actives = make(map[int]int)
}
