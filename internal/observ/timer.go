// Package observ carries the phase timer behind the CLI's --timings flag.
package observ

import (
	"fmt"
	"strings"
	"time"
)

// Phase records one timed pipeline stage (load, graph, order, layout,
// resolve) with an optional note such as an element count.
type Phase struct {
	Name  string
	Start time.Time
	Dur   time.Duration
	Note  string
}

// Timer accumulates phases in the order they begin. Not safe for
// concurrent use; the pipeline phases run sequentially.
type Timer struct {
	phases []Phase
}

func NewTimer() *Timer { return &Timer{phases: make([]Phase, 0, 8)} }

// Phase starts a stage and returns the function that ends it. The note is
// recorded alongside the duration and shows up in the summary.
func (t *Timer) Phase(name string) func(note string) {
	t.phases = append(t.phases, Phase{Name: name, Start: time.Now()})
	idx := len(t.phases) - 1
	return func(note string) {
		p := &t.phases[idx]
		p.Dur = time.Since(p.Start)
		p.Note = note
	}
}

// Total sums the recorded phase durations.
func (t *Timer) Total() time.Duration {
	var total time.Duration
	for _, p := range t.phases {
		total += p.Dur
	}
	return total
}

// Phases returns the recorded phases in start order.
func (t *Timer) Phases() []Phase { return t.phases }

// Summary renders the table printed under --timings.
func (t *Timer) Summary() string {
	var b strings.Builder
	b.WriteString("timings:\n")
	for _, p := range t.phases {
		fmt.Fprintf(&b, "  %-12s %8.2f ms", p.Name, millis(p.Dur))
		if p.Note != "" {
			b.WriteString("  // " + p.Note)
		}
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "  %-12s %8.2f ms\n", "total", millis(t.Total()))
	return b.String()
}

func millis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
