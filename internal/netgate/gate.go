// Package netgate answers two questions for the sync engine: is a remote
// configured at all, and is the link believed to be up.
package netgate

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"fitlog-go/internal/config"
	"fitlog-go/internal/logging"
)

type Gate struct {
	remote config.RemoteConfig
	logger *logging.Logger

	online atomic.Bool

	mu        sync.Mutex
	listeners []func(online bool)
}

// New returns a gate that starts optimistic: online until told otherwise.
func New(remote config.RemoteConfig, logger *logging.Logger) *Gate {
	g := &Gate{remote: remote, logger: logger}
	g.online.Store(true)
	return g
}

func (g *Gate) IsConfigured() bool {
	return g.remote.IsConfigured()
}

// IsOnline is the last known link state. True does not promise the remote
// will answer; request failures are handled by the caller.
func (g *Gate) IsOnline() bool {
	return g.online.Load()
}

// SetOnline records a link change and notifies listeners on transitions.
func (g *Gate) SetOnline(online bool) {
	if g.online.Swap(online) == online {
		return
	}
	if online {
		g.logger.Infof("connectivity restored")
	} else {
		g.logger.Warnf("connectivity lost")
	}
	g.mu.Lock()
	listeners := append([]func(bool){}, g.listeners...)
	g.mu.Unlock()
	for _, l := range listeners {
		l(online)
	}
}

func (g *Gate) OnChange(fn func(online bool)) {
	g.mu.Lock()
	g.listeners = append(g.listeners, fn)
	g.mu.Unlock()
}

type Prober interface {
	Probe(ctx context.Context) error
}

// Watch probes on every interval and feeds the result into SetOnline until
// ctx is done.
func (g *Gate) Watch(ctx context.Context, p Prober, interval time.Duration) {
	if interval <= 0 || !g.IsConfigured() {
		return
	}
	check := func() {
		err := p.Probe(ctx)
		if err != nil && ctx.Err() == nil {
			g.logger.Debugf("probe failed: %v", err)
		}
		if ctx.Err() == nil {
			g.SetOnline(err == nil)
		}
	}
	check()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			check()
		}
	}
}
