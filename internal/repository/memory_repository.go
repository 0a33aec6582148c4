package repository

import (
    "context"
    "sort"
    "sync"
    "time"

    "github.com/iliyamo/sound-rental/internal/model"
)

// MemoryReservationRepo implements the same contract as ReservationRepo
// with an in-process map.  Records are copied on the way in and out so
// callers never share state with the store.
type MemoryReservationRepo struct {
    mu    sync.RWMutex
    byID  map[string]model.Reservation
    byRef map[string]string
    now   func() time.Time
}

// NewMemoryReservationRepo returns an empty store.
func NewMemoryReservationRepo() *MemoryReservationRepo {
    return &MemoryReservationRepo{
        byID:  map[string]model.Reservation{},
        byRef: map[string]string{},
        now:   time.Now,
    }
}

// WithClock replaces the clock used for CreatedAt and UpdatedAt.
func (m *MemoryReservationRepo) WithClock(now func() time.Time) *MemoryReservationRepo {
    m.now = now
    return m
}

func (m *MemoryReservationRepo) Create(_ context.Context, res *model.Reservation) error {
    m.mu.Lock()
    defer m.mu.Unlock()
    if _, ok := m.byID[res.ID]; ok {
        return ErrConflict
    }
    if res.PaymentRef != nil {
        if _, ok := m.byRef[*res.PaymentRef]; ok {
            return ErrConflict
        }
    }
    now := m.now().UTC()
    res.CreatedAt, res.UpdatedAt = now, now
    m.byID[res.ID] = clone(*res)
    if res.PaymentRef != nil {
        m.byRef[*res.PaymentRef] = res.ID
    }
    return nil
}

func (m *MemoryReservationRepo) Get(_ context.Context, id string) (*model.Reservation, error) {
    m.mu.RLock()
    defer m.mu.RUnlock()
    res, ok := m.byID[id]
    if !ok {
        return nil, ErrNotFound
    }
    out := clone(res)
    return &out, nil
}

func (m *MemoryReservationRepo) GetByPaymentRef(ctx context.Context, ref string) (*model.Reservation, error) {
    m.mu.RLock()
    id, ok := m.byRef[ref]
    m.mu.RUnlock()
    if !ok {
        return nil, ErrNotFound
    }
    return m.Get(ctx, id)
}

func (m *MemoryReservationRepo) CompareAndSetStatus(_ context.Context, id string, from, to model.Status) (bool, error) {
    m.mu.Lock()
    defer m.mu.Unlock()
    res, ok := m.byID[id]
    if !ok || res.Status != from {
        return false, nil
    }
    res.Status = to
    res.UpdatedAt = m.now().UTC()
    m.byID[id] = res
    return true, nil
}

func (m *MemoryReservationRepo) ListOverlapping(_ context.Context, family model.Family, span model.Span, now time.Time) ([]model.Reservation, error) {
    return m.filter(func(r *model.Reservation) bool {
        return r.Family == family && r.Span().Overlaps(span) && r.HoldActive(now)
    }, func(a, b *model.Reservation) bool { return a.StartsAt.Before(b.StartsAt) }, 0), nil
}

func (m *MemoryReservationRepo) ListExpirable(_ context.Context, now time.Time, limit int) ([]model.Reservation, error) {
    return m.filter(func(r *model.Reservation) bool {
        return r.Status == model.StatusAwaitingPayment && !r.HoldExpiresAt.After(now)
    }, func(a, b *model.Reservation) bool { return a.HoldExpiresAt.Before(b.HoldExpiresAt) }, limit), nil
}

func (m *MemoryReservationRepo) ListLapsed(_ context.Context, family model.Family, span model.Span, now time.Time) ([]model.Reservation, error) {
    return m.filter(func(r *model.Reservation) bool {
        return r.Family == family && r.Span().Overlaps(span) &&
            r.Status == model.StatusAwaitingPayment && !r.HoldExpiresAt.After(now)
    }, func(a, b *model.Reservation) bool { return a.HoldExpiresAt.Before(b.HoldExpiresAt) }, 0), nil
}

func (m *MemoryReservationRepo) MarkNotified(_ context.Context, id string, at time.Time) error {
    m.mu.Lock()
    defer m.mu.Unlock()
    res, ok := m.byID[id]
    if !ok || res.NotifiedAt != nil {
        return nil
    }
    at = at.UTC()
    res.NotifiedAt = &at
    m.byID[id] = res
    return nil
}

func (m *MemoryReservationRepo) ListUnnotified(_ context.Context, before time.Time, limit int) ([]model.Reservation, error) {
    return m.filter(func(r *model.Reservation) bool {
        return r.Status == model.StatusConfirmed && r.NotifiedAt == nil && !r.UpdatedAt.After(before)
    }, func(a, b *model.Reservation) bool { return a.UpdatedAt.Before(b.UpdatedAt) }, limit), nil
}

func (m *MemoryReservationRepo) List(_ context.Context, status model.Status, limit int) ([]model.Reservation, error) {
    return m.filter(func(r *model.Reservation) bool {
        return status == "" || r.Status == status
    }, func(a, b *model.Reservation) bool { return a.CreatedAt.After(b.CreatedAt) }, limit), nil
}

func (m *MemoryReservationRepo) filter(keep func(*model.Reservation) bool, less func(a, b *model.Reservation) bool, limit int) []model.Reservation {
    m.mu.RLock()
    var out []model.Reservation
    for _, r := range m.byID {
        r := r
        if keep(&r) {
            out = append(out, clone(r))
        }
    }
    m.mu.RUnlock()
    sort.SliceStable(out, func(i, j int) bool {
        if less(&out[i], &out[j]) {
            return true
        }
        if less(&out[j], &out[i]) {
            return false
        }
        return out[i].ID < out[j].ID
    })
    if limit > 0 && len(out) > limit {
        out = out[:limit]
    }
    return out
}

func clone(r model.Reservation) model.Reservation {
    if r.PaymentRef != nil {
        ref := *r.PaymentRef
        r.PaymentRef = &ref
    }
    if r.NotifiedAt != nil {
        at := *r.NotifiedAt
        r.NotifiedAt = &at
    }
    return r
}
