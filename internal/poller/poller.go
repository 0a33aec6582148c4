// Package poller is the client side of payment reconciliation.  After the
// customer returns from checkout, a Task polls the stored reservation status
// at a fixed interval for a bounded number of attempts.  When the status
// stays AWAITING_PAYMENT and a payment session exists, every VerifyEvery-th
// call asks the server to verify the session with the provider instead.
//
// A Task runs at most one call at a time, defers while the view is hidden,
// and once cancelled discards any late response and never reports.
package poller

import (
    "context"
    "errors"
    "sync/atomic"
    "time"

    "github.com/iliyamo/sound-rental/internal/model"
)

// Snapshot is one observation of a reservation.
type Snapshot struct {
    Status     model.Status `json:"status"`
    HasSession bool         `json:"has_session"`
}

// Source performs the two calls a Task can make.
type Source interface {
    Status(ctx context.Context, reservationID string) (Snapshot, error)
    Verify(ctx context.Context, reservationID string) (Snapshot, error)
}

type Config struct {
    Interval       time.Duration // delay between calls, default 2s
    MaxAttempts    int           // calls before giving up, default 10
    VerifyEvery    int           // consecutive pending polls before a verify, default 3
    RefreshTimeout time.Duration // bound on the final refresh, default 5s
    Visible        func() bool   // nil means always visible
}

func (c Config) withDefaults() Config {
    if c.Interval <= 0 {
        c.Interval = 2 * time.Second
    }
    if c.MaxAttempts <= 0 {
        c.MaxAttempts = 10
    }
    if c.VerifyEvery <= 0 {
        c.VerifyEvery = 3
    }
    if c.RefreshTimeout <= 0 {
        c.RefreshTimeout = 5 * time.Second
    }
    if c.Visible == nil {
        c.Visible = func() bool { return true }
    }
    return c
}

// Outcome is reported once when a Task stops on its own.  Resolved is false
// when the attempts ran out while the payment was still pending: the
// caller should show "status unknown, please refresh".  Status is then the
// last status observed.
type Outcome struct {
    Resolved      bool
    Status        model.Status
    Attempts      int
    Verifications int
    Err           error // last call error, if any
}

// ErrNoObservation is reported in Outcome.Err when no call ever succeeded.
var ErrNoObservation = errors.New("poller: no status observed")

const (
    stateRunning int32 = iota
    stateFinished
    stateCancelled
)

// Handle controls a running Task.
type Handle struct {
    cancel context.CancelFunc
    done   chan struct{}
    state  atomic.Int32
    gen    atomic.Uint64
}

// Cancel stops the Task.  Pending timers are stopped and any response still
// in flight is ignored.  If Cancel returns before the Task finished, onDone
// is never called.
func (h *Handle) Cancel() {
    if h.state.CompareAndSwap(stateRunning, stateCancelled) {
        h.gen.Add(1)
    }
    h.cancel()
}

// Done is closed when the Task's goroutine has exited.
func (h *Handle) Done() <-chan struct{} { return h.done }

type callKind int

const (
    callStatus callKind = iota
    callVerify
)

type result struct {
    gen  uint64
    kind callKind
    snap Snapshot
    err  error
}

// Start launches a Task for a reservation.  The first call is made
// immediately.  onDone may be nil.
func Start(ctx context.Context, src Source, reservationID string, cfg Config, onDone func(Outcome)) *Handle {
    cfg = cfg.withDefaults()
    ctx, cancel := context.WithCancel(ctx)
    h := &Handle{cancel: cancel, done: make(chan struct{})}
    t := &task{h: h, src: src, id: reservationID, cfg: cfg, onDone: onDone, results: make(chan result, 1)}
    go t.run(ctx)
    return h
}

type task struct {
    h      *Handle
    src    Source
    id     string
    cfg    Config
    onDone func(Outcome)

    results  chan result
    inFlight bool
    attempts int
    verifies int
    pending  int // consecutive AWAITING_PAYMENT observations since the last verify
    last     Snapshot
    seen     bool
    lastErr  error
}

func (t *task) run(ctx context.Context) {
    defer close(t.h.done)
    defer t.h.cancel()

    ticker := time.NewTicker(t.cfg.Interval)
    defer ticker.Stop()

    t.tick(ctx)
    for {
        select {
        case <-ctx.Done():
            return
        case <-ticker.C:
            t.tick(ctx)
        case r := <-t.results:
            t.inFlight = false
            if r.gen != t.h.gen.Load() || ctx.Err() != nil {
                return
            }
            if done := t.observe(r); done {
                t.finish(Outcome{Resolved: true, Status: t.last.Status, Attempts: t.attempts, Verifications: t.verifies, Err: t.lastErr})
                return
            }
            if t.attempts >= t.cfg.MaxAttempts {
                t.exhausted(ctx)
                return
            }
        }
    }
}

// tick starts the next call unless one is outstanding, the view is hidden,
// or the budget is spent.
func (t *task) tick(ctx context.Context) {
    if t.inFlight || t.attempts >= t.cfg.MaxAttempts || !t.cfg.Visible() {
        return
    }
    kind := callStatus
    if t.pending >= t.cfg.VerifyEvery && t.last.HasSession {
        kind = callVerify
        t.pending = 0
        t.verifies++
    }
    t.attempts++
    t.inFlight = true
    gen := t.h.gen.Load()
    go func() {
        var snap Snapshot
        var err error
        if kind == callVerify {
            snap, err = t.src.Verify(ctx, t.id)
        } else {
            snap, err = t.src.Status(ctx, t.id)
        }
        select {
        case t.results <- result{gen: gen, kind: kind, snap: snap, err: err}:
        case <-ctx.Done():
        }
    }()
}

// observe records a result and reports whether the reservation left
// AWAITING_PAYMENT.
func (t *task) observe(r result) bool {
    if r.err != nil {
        t.lastErr = r.err
        return false
    }
    t.last, t.seen = r.snap, true
    if r.snap.Status != model.StatusAwaitingPayment {
        return true
    }
    if r.kind == callStatus {
        t.pending++
    }
    return false
}

// exhausted makes one last forced status read before giving up, so the
// reported status is as fresh as possible.
func (t *task) exhausted(ctx context.Context) {
    rctx, cancel := context.WithTimeout(ctx, t.cfg.RefreshTimeout)
    snap, err := t.src.Status(rctx, t.id)
    cancel()
    if ctx.Err() != nil {
        return
    }
    if err == nil {
        t.last, t.seen = snap, true
        if snap.Status != model.StatusAwaitingPayment {
            t.finish(Outcome{Resolved: true, Status: snap.Status, Attempts: t.attempts, Verifications: t.verifies, Err: t.lastErr})
            return
        }
    } else {
        t.lastErr = err
    }
    out := Outcome{Status: t.last.Status, Attempts: t.attempts, Verifications: t.verifies, Err: t.lastErr}
    if !t.seen && out.Err == nil {
        out.Err = ErrNoObservation
    }
    t.finish(out)
}

func (t *task) finish(out Outcome) {
    if !t.h.state.CompareAndSwap(stateRunning, stateFinished) {
        return
    }
    if t.onDone != nil {
        t.onDone(out)
    }
}
