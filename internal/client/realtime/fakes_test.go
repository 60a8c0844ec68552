package realtime

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

const (
	timeout = 2 * time.Second
	tick    = 5 * time.Millisecond
)

type recorder struct {
	mu     sync.Mutex
	events []string
}

func (r *recorder) add(format string, args ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, fmt.Sprintf(format, args...))
}

func (r *recorder) Events() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.events...)
}

type fakeConn struct {
	id     Identity
	rec    *recorder
	closed atomic.Bool
}

func (c *fakeConn) Identity() Identity { return c.id }

func (c *fakeConn) Close() error {
	if c.closed.CompareAndSwap(false, true) {
		c.rec.add("close:%d", c.id.ID)
	}
	return nil
}

type fakeDialer struct {
	rec *recorder

	mu             sync.Mutex
	LastCredential string
	Conns          []*fakeConn
	Err            error

	gate    chan struct{}
	entered atomic.Int32
	// ignoreCancel makes a gated dial wait for the gate even after ctx ends,
	// like a dialer that finishes its handshake regardless.
	ignoreCancel bool
}

func (d *fakeDialer) Dial(ctx context.Context, id Identity, credential string) (Conn, error) {
	d.entered.Add(1)
	if d.gate != nil && d.ignoreCancel {
		<-d.gate
	} else if d.gate != nil {
		select {
		case <-d.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.LastCredential = credential
	if d.Err != nil {
		return nil, d.Err
	}
	d.rec.add("dial:%d", id.ID)
	c := &fakeConn{id: id, rec: d.rec}
	d.Conns = append(d.Conns, c)
	return c, nil
}

func (d *fakeDialer) live() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := 0
	for _, c := range d.Conns {
		if !c.closed.Load() {
			n++
		}
	}
	return n
}

type fakeIssuer struct {
	mu         sync.Mutex
	LastBearer string
	Calls      int
	Err        error
}

func (f *fakeIssuer) IssueRealtimeCredential(_ context.Context, bearer string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls++
	f.LastBearer = bearer
	if f.Err != nil {
		return "", f.Err
	}
	return fmt.Sprintf("cred-%d-%s", f.Calls, bearer), nil
}

func (f *fakeIssuer) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Calls
}

func staticToken(tok string) TokenProvider {
	return func(context.Context) (string, error) { return tok, nil }
}
