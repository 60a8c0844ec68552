package realtime

import (
	"context"
	"errors"
	"sync"

	"github.com/dmitrijs2005/collabry/internal/client/session"
	"github.com/dmitrijs2005/collabry/internal/logging"
)

// Controller drives a Manager from session changes: it connects whenever the
// session is fully authenticated and tears down otherwise. Changes are
// applied one at a time on a single worker; if several arrive while it is
// busy only the latest is applied, and a connect still in flight for a
// target the latest change no longer wants is cancelled.
type Controller struct {
	store  session.Reader
	mgr    *Manager
	tokens TokenProvider
	log    logging.Logger

	pushMu      sync.Mutex
	updates     chan session.Snapshot
	applyCancel context.CancelFunc
	applyTarget target

	startOnce   sync.Once
	stopOnce    sync.Once
	unsubscribe func()
	cancel      context.CancelFunc
	done        chan struct{}
}

func NewController(store session.Reader, mgr *Manager, tokens TokenProvider, log logging.Logger) *Controller {
	if log == nil {
		log = logging.Nop{}
	}
	return &Controller{
		store:   store,
		mgr:     mgr,
		tokens:  tokens,
		log:     log.With("component", "realtime-controller"),
		updates: make(chan session.Snapshot, 1),
		done:    make(chan struct{}),
	}
}

// Start mounts the manager and begins following the session.
func (c *Controller) Start(ctx context.Context) {
	c.startOnce.Do(func() {
		ctx, c.cancel = context.WithCancel(ctx)
		c.mgr.Mount()
		c.unsubscribe = c.store.Subscribe(func(_, next session.Snapshot) {
			c.push(next)
		})
		c.push(c.store.Snapshot())
		go c.run(ctx)
	})
}

// Stop unsubscribes, waits for the worker and unmounts the manager, which
// closes any live connection.
func (c *Controller) Stop(ctx context.Context) error {
	var err error
	c.stopOnce.Do(func() {
		if c.cancel == nil {
			return
		}
		c.unsubscribe()
		c.cancel()
		<-c.done
		err = c.mgr.Unmount(ctx)
	})
	return err
}

// target is what a snapshot asks of the manager: a connection for id, or
// none at all.
type target struct {
	connect bool
	id      int64
}

func targetOf(s session.Snapshot) target {
	if session.Gate(s) != session.StackAuthenticated {
		return target{}
	}
	return target{connect: true, id: s.ID}
}

func (c *Controller) push(s session.Snapshot) {
	c.pushMu.Lock()
	defer c.pushMu.Unlock()
	select {
	case <-c.updates:
	default:
	}
	c.updates <- s

	if c.applyCancel != nil && c.applyTarget.connect && targetOf(s) != c.applyTarget {
		c.applyCancel()
	}
}

func (c *Controller) run(ctx context.Context) {
	defer close(c.done)
	for {
		select {
		case <-ctx.Done():
			return
		case s := <-c.updates:
			actx, ok := c.beginApply(ctx, s)
			if !ok {
				continue
			}
			c.apply(actx, s)
			c.endApply()
		}
	}
}

// beginApply registers s as the change being applied. It reports false when
// a newer snapshot was pushed after s was taken off the queue.
func (c *Controller) beginApply(ctx context.Context, s session.Snapshot) (context.Context, bool) {
	c.pushMu.Lock()
	defer c.pushMu.Unlock()
	if len(c.updates) > 0 {
		return nil, false
	}
	actx, cancel := context.WithCancel(ctx)
	c.applyCancel, c.applyTarget = cancel, targetOf(s)
	return actx, true
}

func (c *Controller) endApply() {
	c.pushMu.Lock()
	defer c.pushMu.Unlock()
	c.applyCancel()
	c.applyCancel, c.applyTarget = nil, target{}
}

func (c *Controller) apply(ctx context.Context, s session.Snapshot) {
	if session.Gate(s) != session.StackAuthenticated {
		if err := c.mgr.Teardown(ctx); err != nil {
			c.log.Warn(ctx, "realtime teardown", "error", err)
		}
		return
	}

	id := Identity{ID: s.ID, Name: s.DisplayName()}
	err := c.mgr.EnsureConnected(ctx, id, c.tokens)
	switch {
	case err == nil, errors.Is(err, ErrNotMounted), errors.Is(err, context.Canceled):
	default:
		c.log.Error(ctx, "realtime connect failed", "user_id", s.ID, "error", err)
	}
}
