package netgate

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fitlog-go/internal/config"
	"fitlog-go/internal/logging"
)

func TestGateConfiguredAndTransitions(t *testing.T) {
	g := New(config.RemoteConfig{URL: "http://remote", AccessKey: "k"}, logging.Discard())
	require.True(t, g.IsConfigured())
	require.True(t, g.IsOnline())

	var events []bool
	g.OnChange(func(online bool) { events = append(events, online) })

	g.SetOnline(true)
	g.SetOnline(false)
	g.SetOnline(false)
	g.SetOnline(true)

	assert.Equal(t, []bool{false, true}, events)
}

func TestUnconfiguredGate(t *testing.T) {
	g := New(config.RemoteConfig{URL: "http://remote"}, logging.Discard())
	assert.False(t, g.IsConfigured())
}

type scriptedProber struct {
	calls atomic.Int32
	fail  atomic.Bool
}

func (p *scriptedProber) Probe(ctx context.Context) error {
	p.calls.Add(1)
	if p.fail.Load() {
		return errors.New("unreachable")
	}
	return nil
}

func TestWatchFeedsProbeResults(t *testing.T) {
	g := New(config.RemoteConfig{URL: "http://remote", AccessKey: "k"}, logging.Discard())
	p := &scriptedProber{}
	p.fail.Store(true)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		g.Watch(ctx, p, 5*time.Millisecond)
		close(done)
	}()

	require.Eventually(t, func() bool { return !g.IsOnline() }, time.Second, 5*time.Millisecond)
	p.fail.Store(false)
	require.Eventually(t, g.IsOnline, time.Second, 5*time.Millisecond)

	cancel()
	<-done
	assert.GreaterOrEqual(t, p.calls.Load(), int32(2))
}
