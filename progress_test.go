package lightcurve

import (
	"bytes"
	"strings"
	"testing"
	"time"
)

func TestLoadingBar(t *testing.T) {
	var buf bytes.Buffer
	bar := NewLoadingBar(&buf)
	bar.Report(0.5, "Simulating Orbit")
	if exp := "\rSimulating Orbit [##########----------]  50%"; buf.String() != exp {
		t.Fatalf("got %q\nexp %q", buf.String(), exp)
	}
	buf.Reset()
	bar.Report(0.501, "Simulating Orbit")
	if buf.Len() != 0 {
		t.Fatalf("redrawn without a percentage change: %q", buf.String())
	}
	bar.Report(1, "Simulating Orbit")
	if exp := "\rSimulating Orbit [####################] 100%\n"; buf.String() != exp {
		t.Fatalf("got %q\nexp %q", buf.String(), exp)
	}
	// Each label has its own bar.
	buf.Reset()
	bar.Report(0.5, "Simulating Attitude")
	if !strings.HasPrefix(buf.String(), "\rSimulating Attitude [") {
		t.Fatalf("got %q", buf.String())
	}
	// Out of range fractions are clamped.
	buf.Reset()
	bar.Report(-1, "clamped")
	if !strings.HasSuffix(buf.String(), "[--------------------]   0%") {
		t.Fatalf("got %q", buf.String())
	}
}

func TestLogProgress(t *testing.T) {
	var buf bytes.Buffer
	p := NewLogProgress(NewLogger(&buf))
	for k := 0; k < 100; k++ {
		p.Report(float64(k+1)/100, "Simulating Lightcurve")
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) < 10 || len(lines) > 12 {
		t.Fatalf("%d log lines:\n%s", len(lines), buf.String())
	}
	for _, line := range lines {
		if !strings.Contains(line, "subsys=progress") || !strings.Contains(line, `phase="Simulating Lightcurve"`) {
			t.Fatalf("unexpected log line %q", line)
		}
	}
	if !strings.Contains(lines[len(lines)-1], "done=100%") {
		t.Fatalf("completion not logged: %q", lines[len(lines)-1])
	}
}

func TestProgressObserver(t *testing.T) {
	if progressObserver(nil, 10, "nil") != nil {
		t.Fatal("observer returned for a nil progress")
	}
	if progressObserver(NopProgress{}, 0, "empty") != nil {
		t.Fatal("observer returned for no samples")
	}
	p := &countingProgress{}
	obs := progressObserver(p, 4, "four")
	for k := 0; k < 4; k++ {
		obs(k, float64(k), nil)
	}
	exp := []float64{0.25, 0.5, 0.75, 1}
	if !vectorsWithin(p.fractions, exp, 0) {
		t.Fatalf("fractions %v instead of %v", p.fractions, exp)
	}
}

func TestAsyncProgress(t *testing.T) {
	p := &countingProgress{}
	async := NewAsyncProgress(p, 1000)
	for k := 0; k < 100; k++ {
		async.Report(float64(k+1)/100, "phase")
	}
	async.Close()
	if len(p.fractions) != 100 || p.fractions[99] != 1 {
		t.Fatalf("%d reports forwarded", len(p.fractions))
	}
	// Closing twice and reporting after close are fine.
	async.Close()
	async.Report(0.5, "late")
	if p.labels["late"] != 0 {
		t.Fatal("report forwarded after close")
	}
}

// blockingProgress blocks every report until released.
type blockingProgress struct {
	release chan struct{}
	count   int
	last    float64
}

func (b *blockingProgress) Report(fraction float64, _ string) {
	<-b.release
	b.count++
	b.last = fraction
}

func TestAsyncProgressNeverBlocks(t *testing.T) {
	slow := &blockingProgress{release: make(chan struct{})}
	async := NewAsyncProgress(slow, 2)
	done := make(chan struct{})
	go func() {
		for k := 0; k < 1000; k++ {
			async.Report(float64(k)/1000, "slow")
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("reporting blocked on a slow progress")
	}
	close(slow.release)
	async.Close()
	if slow.count == 0 || slow.count > 3 {
		t.Fatalf("%d reports forwarded, expected the buffered ones only", slow.count)
	}
}

func TestAsyncProgressCompletion(t *testing.T) {
	var buf bytes.Buffer
	slow := &blockingProgress{release: make(chan struct{})}
	async := NewAsyncProgress(slow, 1)
	for k := 0; k < 10; k++ {
		async.Report(float64(k)/10, "phase")
	}
	done := make(chan struct{})
	go func() {
		async.Report(1, "phase")
		close(done)
	}()
	close(slow.release)
	<-done
	async.Close()
	if slow.last != 1 {
		t.Fatalf("completion dropped, last report %f", slow.last)
	}

	// A loading bar behind a full buffer still ends its line.
	bar := NewLoadingBar(&buf)
	async = NewAsyncProgress(bar, 1)
	for k := 0; k <= 1000; k++ {
		async.Report(float64(k)/1000, "Simulating Orbit")
	}
	async.Close()
	if !strings.HasSuffix(buf.String(), "] 100%\n") {
		t.Fatalf("bar not completed: %q", buf.String())
	}
}
