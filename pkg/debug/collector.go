// Package debug records rendered files for inspection in development tools.
package debug

import (
	"context"
	"sync"

	"github.com/goliatone/go-viewrender/pkg/params"
	"github.com/goliatone/go-viewrender/pkg/webview"
)

// Render is one collected file render.
type Render struct {
	File       string         `json:"file"`
	Output     string         `json:"output"`
	Parameters map[string]any `json:"parameters"`
	Error      string         `json:"error,omitempty"`
}

// Collector is a webview.Listener that records renders between Startup and
// Shutdown. It is inactive until started.
type Collector struct {
	mu      sync.Mutex
	active  bool
	renders []Render
}

var _ webview.Listener = (*Collector)(nil)

// NewCollector returns an inactive collector.
func NewCollector() *Collector {
	return &Collector{}
}

// Startup clears previous data and starts collecting.
func (c *Collector) Startup() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.renders = nil
	c.active = true
}

// Shutdown stops collecting and clears the data.
func (c *Collector) Shutdown() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.renders = nil
	c.active = false
}

// Active reports whether the collector records renders.
func (c *Collector) Active() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}

// AfterRender implements webview.Listener.
func (c *Collector) AfterRender(_ context.Context, event webview.AfterRender) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.active {
		return
	}
	render := Render{
		File:       event.File,
		Output:     event.Output,
		Parameters: params.Clone(event.Parameters),
	}
	if event.Err != nil {
		render.Error = event.Err.Error()
	}
	c.renders = append(c.renders, render)
}

// Collected returns a copy of the recorded renders in order.
func (c *Collector) Collected() []Render {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Render(nil), c.renders...)
}

// Summary returns {"total": n} while active and nil otherwise.
func (c *Collector) Summary() map[string]any {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.active {
		return nil
	}
	return map[string]any{"total": len(c.renders)}
}
