// Package app assembles the device-side sync engine from configuration.
package app

import (
	"context"
	"errors"
	"sync"

	"fitlog-go/internal/accounts"
	"fitlog-go/internal/clients"
	"fitlog-go/internal/cloudsync"
	"fitlog-go/internal/config"
	"fitlog-go/internal/logbook"
	"fitlog-go/internal/logging"
	"fitlog-go/internal/netgate"
	"fitlog-go/internal/outbox"
	"fitlog-go/internal/state"
	"fitlog-go/internal/store"
)

var _ cloudsync.Remote = (*clients.RemoteStore)(nil)

type App struct {
	Config      config.Config
	Logger      *logging.Logger
	Store       *store.Store
	Gate        *netgate.Gate
	Coordinator *cloudsync.Coordinator
	Queue       *outbox.Queue
	Accounts    *accounts.Service
	Logbook     *logbook.Logbook

	prober netgate.Prober
	wg     sync.WaitGroup
}

// Option overrides a collaborator, mostly for tests.
type Option func(*options)

type options struct {
	remote cloudsync.Remote
	prober netgate.Prober
}

func WithRemote(r cloudsync.Remote) Option { return func(o *options) { o.remote = r } }

func WithProber(p netgate.Prober) Option { return func(o *options) { o.prober = p } }

func New(cfg config.Config, logger *logging.Logger, opts ...Option) (*App, error) {
	var o options
	for _, fn := range opts {
		fn(&o)
	}
	st, err := store.Open(store.Config{Path: cfg.DBPath})
	if err != nil {
		return nil, err
	}

	if o.remote == nil || o.prober == nil {
		rs := clients.NewRemoteStore(clients.NewHTTPClient(cfg.Remote), cfg.Remote)
		if o.remote == nil {
			o.remote = rs
		}
		if o.prober == nil {
			o.prober = rs
		}
	}

	gate := netgate.New(cfg.Remote, logger.With("component", "netgate"))
	board := state.NewBoard(state.SyncState{})
	coord := cloudsync.NewCoordinator(st, o.remote, gate, board, cloudsync.OptionsFromConfig(cfg.Sync), logger.With("component", "sync"))
	gate.OnChange(coord.ConnectivityChanged)

	q := outbox.New(st, gate, logger.With("component", "outbox"))
	q.SetNotifier(coord)

	a := &App{
		Config:      cfg,
		Logger:      logger,
		Store:       st,
		Gate:        gate,
		Coordinator: coord,
		Queue:       q,
		Accounts:    accounts.NewService(st, q),
		Logbook:     logbook.New(st, q),
		prober:      o.prober,
	}
	if err := coord.Refresh(context.Background()); err != nil {
		_ = st.Close()
		return nil, err
	}
	if !gate.IsConfigured() {
		logger.Infof("no remote configured, running local-only")
	}
	return a, nil
}

// Start launches the connectivity watcher and the sync worker. Both stop
// when ctx is done; Wait blocks until they have.
func (a *App) Start(ctx context.Context) {
	if !a.Gate.IsConfigured() {
		return
	}
	a.wg.Add(2)
	go func() {
		defer a.wg.Done()
		a.Gate.Watch(ctx, a.prober, a.Config.Remote.ProbeInterval())
	}()
	go func() {
		defer a.wg.Done()
		a.Coordinator.Run(ctx)
	}()
}

func (a *App) Wait() { a.wg.Wait() }

// CheckLink probes the remote once and records the result on the gate.
func (a *App) CheckLink(ctx context.Context) bool {
	if !a.Gate.IsConfigured() {
		return false
	}
	err := a.prober.Probe(ctx)
	if err != nil {
		a.Logger.Debugf("probe failed: %v", err)
	}
	a.Gate.SetOnline(err == nil)
	return err == nil
}

// SyncNow migrates if needed and drains once, for one-shot commands.
func (a *App) SyncNow(ctx context.Context) (*cloudsync.DrainResult, error) {
	if a.Gate.IsConfigured() && a.Gate.IsOnline() {
		migrated, err := a.Store.IsMigrated(ctx)
		if err != nil {
			return nil, err
		}
		if !migrated {
			_, err := a.Coordinator.Migrator().Migrate(ctx)
			if err != nil && !errors.Is(err, cloudsync.ErrNoAccount) {
				return nil, err
			}
		}
	}
	return a.Coordinator.Drain(ctx)
}

func (a *App) Close() error {
	return a.Store.Close()
}
