package main

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rivo/tview"
)

// logPane keeps the most recent lines shown in the log view and coalesces
// redraw notifications.
type logPane struct {
	ring    []string
	next    int
	full    bool
	changed func()
	pending bool
	mutex   sync.Mutex
}

func newLogPane(size int) *logPane {
	// ensure size
	if size <= 0 {
		size = 200
	}

	return &logPane{
		ring: make([]string, size),
	}
}

// Printf adds a timestamped line that may contain color tags.
func (p *logPane) Printf(format string, args ...any) {
	p.add(fmt.Sprintf("%s | %s", time.Now().Format("15:04:05"), fmt.Sprintf(format, args...)))
}

// Write adds plain lines and allows the pane to be used as a logging backend.
func (p *logPane) Write(b []byte) (int, error) {
	for _, line := range strings.Split(strings.TrimRight(string(b), "\n"), "\n") {
		p.add(tview.Escape(line))
	}
	return len(b), nil
}

// Lines returns the kept lines from oldest to newest.
func (p *logPane) Lines() []string {
	// acquire mutex
	p.mutex.Lock()
	defer p.mutex.Unlock()

	// unroll ring
	if !p.full {
		return append([]string(nil), p.ring[:p.next]...)
	}
	return append(append([]string(nil), p.ring[p.next:]...), p.ring[:p.next]...)
}

// OnChange sets the function called after lines have been added. Bursts of
// lines result in a single call.
func (p *logPane) OnChange(fn func()) {
	// acquire mutex
	p.mutex.Lock()
	defer p.mutex.Unlock()

	p.changed = fn
}

func (p *logPane) add(line string) {
	// acquire mutex
	p.mutex.Lock()
	defer p.mutex.Unlock()

	// store line
	p.ring[p.next] = line
	p.next = (p.next + 1) % len(p.ring)
	if p.next == 0 {
		p.full = true
	}

	// schedule notification
	if p.changed != nil && !p.pending {
		p.pending = true
		go p.notify()
	}
}

func (p *logPane) notify() {
	// clear flag
	p.mutex.Lock()
	fn := p.changed
	p.pending = false
	p.mutex.Unlock()

	fn()
}
