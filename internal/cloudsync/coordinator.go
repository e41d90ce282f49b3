package cloudsync

import (
	"context"
	"errors"
	"sync"
	"time"

	"fitlog-go/internal/config"
	"fitlog-go/internal/logging"
	"fitlog-go/internal/state"
	"fitlog-go/internal/store"
)

type Options struct {
	MaxRetries    int
	RetentionKeep int
	BackoffBase   time.Duration
	BackoffMax    time.Duration
	// Interval is the periodic drain; zero drains only on triggers.
	Interval time.Duration
}

func OptionsFromConfig(cfg config.SyncConfig) Options {
	return Options{
		MaxRetries:    cfg.MaxRetries,
		RetentionKeep: cfg.RetentionKeep,
		BackoffBase:   cfg.BackoffBase(),
		BackoffMax:    cfg.BackoffMax(),
		Interval:      cfg.Interval(),
	}
}

func (o *Options) normalize() {
	if o.MaxRetries <= 0 {
		o.MaxRetries = 5
	}
	if o.RetentionKeep < 0 {
		o.RetentionKeep = 100
	}
}

// Why a drain did nothing.
const (
	SkipNotConfigured = "not_configured"
	SkipOffline       = "offline"
	SkipNoAccount     = "no_account"
)

type DrainResult struct {
	Attempted int    `json:"attempted"`
	Synced    int    `json:"synced"`
	Failed    int    `json:"failed"`
	Exhausted int    `json:"exhausted"`
	Deferred  int    `json:"deferred"`
	Compacted int64  `json:"compacted"`
	Skipped   string `json:"skipped,omitempty"`
}

// Coordinator owns the outbox drain. One worker goroutine (Run) consumes
// triggers; Drain itself is serialized so concurrent callers queue up.
type Coordinator struct {
	store   *store.Store
	remote  Remote
	gate    Gate
	board   *state.Board
	ids     *IDMap
	parents Correlator
	opts    Options
	logger  *logging.Logger
	now     func() time.Time

	migrator *Migrator
	recovery *Recovery

	drainMu sync.Mutex
	trigger chan struct{}
}

func NewCoordinator(st *store.Store, remote Remote, gate Gate, board *state.Board, opts Options, logger *logging.Logger) *Coordinator {
	opts.normalize()
	c := &Coordinator{
		store:   st,
		remote:  remote,
		gate:    gate,
		board:   board,
		ids:     NewIDMap(),
		opts:    opts,
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
		trigger: make(chan struct{}, 1),
	}
	c.parents = &sessionCorrelator{store: st, remote: remote, ids: c.ids}
	c.migrator = &Migrator{c: c}
	c.recovery = &Recovery{c: c}
	return c
}

func (c *Coordinator) SetClock(now func() time.Time) { c.now = now }

func (c *Coordinator) Migrator() *Migrator { return c.migrator }
func (c *Coordinator) Recovery() *Recovery { return c.recovery }
func (c *Coordinator) IDs() *IDMap         { return c.ids }

func (c *Coordinator) State() state.SyncState { return c.board.Snapshot() }

func (c *Coordinator) Subscribe(l state.Listener) func() { return c.board.Subscribe(l) }

// Trigger asks the worker for a drain. Signals sent while one is pending
// collapse into a single run.
func (c *Coordinator) Trigger() {
	select {
	case c.trigger <- struct{}{}:
	default:
	}
}

// Notify is called by the outbox after every append.
func (c *Coordinator) Notify() {
	if !c.gate.IsConfigured() {
		return
	}
	if c.gate.IsOnline() {
		c.Trigger()
		return
	}
	if err := c.publishOffline(context.Background()); err != nil {
		c.logger.Warnf("publish offline status: %v", err)
	}
}

// ConnectivityChanged drains on reconnect and reports offline otherwise.
func (c *Coordinator) ConnectivityChanged(online bool) {
	if !c.gate.IsConfigured() {
		return
	}
	if online {
		c.Trigger()
		return
	}
	if err := c.publishOffline(context.Background()); err != nil {
		c.logger.Warnf("publish offline status: %v", err)
	}
}

// Refresh republishes counters from the local store.
func (c *Coordinator) Refresh(ctx context.Context) error {
	pending, err := c.store.CountPending(ctx, c.opts.MaxRetries)
	if err != nil {
		return err
	}
	dead, err := c.store.CountDeadLetters(ctx, c.opts.MaxRetries)
	if err != nil {
		return err
	}
	migrated, err := c.store.IsMigrated(ctx)
	if err != nil {
		return err
	}
	last, err := c.store.LastSyncAt(ctx)
	if err != nil {
		return err
	}
	status := state.StatusIdle
	if c.gate.IsConfigured() && !c.gate.IsOnline() {
		status = state.StatusOffline
	}
	c.board.Update(func(s *state.SyncState) {
		s.Status = status
		s.PendingCount = pending
		s.DeadLetterCount = dead
		s.IsMigrated = migrated
		s.LastSyncAt = last
	})
	return nil
}

// Run is the worker loop. It migrates first when needed, then drains on
// every trigger and interval tick until ctx is done.
func (c *Coordinator) Run(ctx context.Context) {
	var tick <-chan time.Time
	if c.opts.Interval > 0 {
		ticker := time.NewTicker(c.opts.Interval)
		defer ticker.Stop()
		tick = ticker.C
	}
	c.Trigger()
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.trigger:
			c.runOnce(ctx)
		case <-tick:
			c.runOnce(ctx)
		}
	}
}

func (c *Coordinator) runOnce(ctx context.Context) {
	if err := c.ensureMigrated(ctx); err != nil {
		c.logger.Warnf("bootstrap migration failed, drain postponed: %v", err)
		return
	}
	res, err := c.Drain(ctx)
	if err != nil {
		if ctx.Err() == nil {
			c.logger.Errorf("drain failed: %v", err)
		}
		return
	}
	if res.Attempted > 0 {
		c.logger.Infof("drain: %d synced, %d failed, %d exhausted", res.Synced, res.Failed, res.Exhausted)
	}
}

func (c *Coordinator) ensureMigrated(ctx context.Context) error {
	if !c.gate.IsConfigured() || !c.gate.IsOnline() {
		return nil
	}
	migrated, err := c.store.IsMigrated(ctx)
	if err != nil || migrated {
		return err
	}
	has, err := c.store.HasAccount(ctx)
	if err != nil || !has {
		return err
	}
	_, err = c.migrator.Migrate(ctx)
	if errors.Is(err, ErrOffline) || errors.Is(err, ErrNotConfigured) || errors.Is(err, ErrNoAccount) {
		return nil
	}
	return err
}

// Drain delivers every due pending item in order. Per-item failures are
// recorded on the item; only local store failures are returned.
func (c *Coordinator) Drain(ctx context.Context) (*DrainResult, error) {
	c.drainMu.Lock()
	defer c.drainMu.Unlock()
	return c.drain(ctx)
}

func (c *Coordinator) drain(ctx context.Context) (*DrainResult, error) {
	res := &DrainResult{}
	if !c.gate.IsConfigured() {
		res.Skipped = SkipNotConfigured
		return res, nil
	}
	if !c.gate.IsOnline() {
		res.Skipped = SkipOffline
		return res, c.publishOffline(ctx)
	}
	user, err := c.store.CurrentUser(ctx)
	if errors.Is(err, store.ErrNotFound) {
		res.Skipped = SkipNoAccount
		return res, nil
	}
	if err != nil {
		return res, c.fail(err)
	}

	c.board.Update(func(s *state.SyncState) { s.Status = state.StatusSyncing })

	items, err := c.store.PendingOutbox(ctx, c.opts.MaxRetries)
	if err != nil {
		return res, c.fail(err)
	}

	// bookkeeping must land even if ctx is cancelled mid-drain
	bg := context.WithoutCancel(ctx)
	started := c.now()
	var lastErr string
	for _, item := range items {
		if ctx.Err() != nil {
			break
		}
		if !item.Due(started) {
			res.Deferred++
			continue
		}
		res.Attempted++
		if err := c.deliver(ctx, user, item); err != nil {
			if ctx.Err() != nil {
				res.Attempted--
				break
			}
			ie := &ItemError{ItemID: item.ID, Table: item.Table, Action: item.Action, Err: err}
			lastErr = ie.Error()
			res.Failed++
			retry := item.RetryCount + 1
			var next *time.Time
			if retry >= c.opts.MaxRetries {
				res.Exhausted++
				c.logger.Warnf("outbox item #%d exhausted %d retries, moved to dead letters: %v", item.ID, retry, err)
			} else if d := c.backoff(retry); d > 0 {
				t := c.now().Add(d)
				next = &t
			}
			if err := c.store.MarkOutboxFailed(bg, item.ID, ie.Error(), next); err != nil {
				return res, c.fail(err)
			}
			continue
		}
		if err := c.store.MarkOutboxSynced(bg, item.ID, c.now()); err != nil {
			return res, c.fail(err)
		}
		res.Synced++
	}

	compacted, err := c.store.CompactOutbox(bg, c.opts.RetentionKeep)
	if err != nil {
		return res, c.fail(err)
	}
	res.Compacted = compacted

	finished := c.now()
	if err := c.store.SetLastSyncAt(bg, finished); err != nil {
		return res, c.fail(err)
	}
	pending, err := c.store.CountPending(bg, c.opts.MaxRetries)
	if err != nil {
		return res, c.fail(err)
	}
	dead, err := c.store.CountDeadLetters(bg, c.opts.MaxRetries)
	if err != nil {
		return res, c.fail(err)
	}
	c.board.Update(func(s *state.SyncState) {
		s.Status = state.StatusIdle
		s.PendingCount = pending
		s.DeadLetterCount = dead
		s.LastSyncAt = &finished
		s.LastError = lastErr
	})
	return res, nil
}

// backoff is base * 2^(retry-1), capped at BackoffMax.
func (c *Coordinator) backoff(retry int) time.Duration {
	base := c.opts.BackoffBase
	if base <= 0 || retry <= 0 {
		return 0
	}
	d := base
	for i := 1; i < retry; i++ {
		d *= 2
		if c.opts.BackoffMax > 0 && d >= c.opts.BackoffMax {
			return c.opts.BackoffMax
		}
	}
	if c.opts.BackoffMax > 0 && d > c.opts.BackoffMax {
		return c.opts.BackoffMax
	}
	return d
}

func (c *Coordinator) publishOffline(ctx context.Context) error {
	pending, err := c.store.CountPending(ctx, c.opts.MaxRetries)
	if err != nil {
		return err
	}
	c.board.Update(func(s *state.SyncState) {
		s.Status = state.StatusOffline
		s.PendingCount = pending
	})
	return nil
}

func (c *Coordinator) fail(err error) error {
	c.board.Update(func(s *state.SyncState) {
		s.Status = state.StatusError
		s.LastError = err.Error()
	})
	return err
}

// DeadLetters lists items that ran out of retries.
func (c *Coordinator) DeadLetters(ctx context.Context) ([]store.OutboxItem, error) {
	return c.store.DeadLetters(ctx, c.opts.MaxRetries)
}

// Requeue gives dead letters a fresh retry budget and triggers a drain.
func (c *Coordinator) Requeue(ctx context.Context, ids ...int64) (int64, error) {
	n, err := c.store.RequeueOutbox(ctx, c.opts.MaxRetries, ids...)
	if err != nil {
		return 0, err
	}
	if err := c.Refresh(ctx); err != nil {
		return n, err
	}
	if n > 0 {
		c.Notify()
	}
	return n, nil
}
