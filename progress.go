package lightcurve

import (
	"fmt"
	"io"
	"strings"
	"sync"

	kitlog "github.com/go-kit/kit/log"
)

// Progress receives the completion fraction of a long running phase.
// Reports are best effort and never alter the numerical results.
type Progress interface {
	Report(fraction float64, label string)
}

// progressObserver returns an Observer reporting sample k of n, or nil when
// there is nothing to report to.
func progressObserver(p Progress, n int, label string) Observer {
	if p == nil || n <= 0 {
		return nil
	}
	return func(k int, t float64, y []float64) {
		p.Report(float64(k+1)/float64(n), label)
	}
}

// NopProgress discards all reports.
type NopProgress struct{}

// Report implements the Progress interface.
func (NopProgress) Report(float64, string) {}

// LoadingBar prints a carriage return bar such as
// `Simulating Orbit [##########----------] 50%` to the writer.
type LoadingBar struct {
	W     io.Writer
	Width int
	last  map[string]int
}

// NewLoadingBar returns a twenty character loading bar.
func NewLoadingBar(w io.Writer) *LoadingBar {
	return &LoadingBar{W: w, Width: 20, last: make(map[string]int)}
}

// Report implements the Progress interface. The bar is only redrawn when the
// percentage changes and a new line is written once the phase is complete.
func (b *LoadingBar) Report(fraction float64, label string) {
	if fraction < 0 {
		fraction = 0
	} else if fraction > 1 {
		fraction = 1
	}
	pct := int(fraction * 100)
	if b.last == nil {
		b.last = make(map[string]int)
	}
	if prev, ok := b.last[label]; ok && prev == pct {
		return
	}
	b.last[label] = pct
	filled := int(fraction * float64(b.Width))
	bar := strings.Repeat("#", filled) + strings.Repeat("-", b.Width-filled)
	end := ""
	if pct == 100 {
		end = "\n"
	}
	fmt.Fprintf(b.W, "\r%s [%s] %3d%%%s", label, bar, pct, end)
}

// LogProgress logs the completion of each phase with the go-kit logger.
type LogProgress struct {
	logger kitlog.Logger
	every  float64
	next   map[string]float64
}

// NewLogProgress returns a Progress logging every tenth of each phase.
func NewLogProgress(logger kitlog.Logger) *LogProgress {
	return &LogProgress{logger: logger, every: 0.1, next: make(map[string]float64)}
}

// Report implements the Progress interface. Completion is always logged.
func (l *LogProgress) Report(fraction float64, label string) {
	if fraction < l.next[label] && fraction < 1 {
		return
	}
	l.next[label] = fraction + l.every
	l.logger.Log("level", "info", "subsys", "progress", "phase", label, "done", fmt.Sprintf("%.0f%%", fraction*100))
}

type progressUpdate struct {
	fraction float64
	label    string
}

// AsyncProgress forwards reports to another Progress from its own goroutine.
// Intermediate reports are dropped when the buffer is full so the caller never
// waits on them. Completion reports are always forwarded.
// It is safe for concurrent use.
type AsyncProgress struct {
	updates chan progressUpdate
	wg      sync.WaitGroup
	once    sync.Once
	mu      sync.RWMutex
	closed  bool
}

// NewAsyncProgress starts forwarding to p with the given buffer size.
func NewAsyncProgress(p Progress, buffer int) *AsyncProgress {
	a := &AsyncProgress{updates: make(chan progressUpdate, buffer)}
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		for u := range a.updates {
			p.Report(u.fraction, u.label)
		}
	}()
	return a
}

// Report implements the Progress interface.
func (a *AsyncProgress) Report(fraction float64, label string) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.closed {
		return
	}
	if fraction >= 1 {
		a.updates <- progressUpdate{fraction, label}
		return
	}
	select {
	case a.updates <- progressUpdate{fraction, label}:
	default:
	}
}

// Close stops accepting reports and waits for the pending ones to be forwarded.
func (a *AsyncProgress) Close() {
	a.once.Do(func() {
		a.mu.Lock()
		a.closed = true
		close(a.updates)
		a.mu.Unlock()
	})
	a.wg.Wait()
}
