package reservation

import (
    "context"
    "errors"
    "fmt"
    "sync"
    "testing"
    "time"

    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"

    "github.com/iliyamo/sound-rental/internal/availability"
    "github.com/iliyamo/sound-rental/internal/lock"
    "github.com/iliyamo/sound-rental/internal/model"
    "github.com/iliyamo/sound-rental/internal/payment"
    "github.com/iliyamo/sound-rental/internal/pricing"
    "github.com/iliyamo/sound-rental/internal/repository"
)

type clock struct {
    mu sync.Mutex
    t  time.Time
}

func (c *clock) Now() time.Time {
    c.mu.Lock()
    defer c.mu.Unlock()
    return c.t
}

func (c *clock) Advance(d time.Duration) {
    c.mu.Lock()
    c.t = c.t.Add(d)
    c.mu.Unlock()
}

type fakeProvider struct {
    mu        sync.Mutex
    statuses  map[string]payment.SessionStatus
    requests  []payment.SessionRequest
    gets      int
    createErr error
    getErr    error
    delay     time.Duration
}

func newFakeProvider() *fakeProvider {
    return &fakeProvider{statuses: map[string]payment.SessionStatus{}}
}

func (p *fakeProvider) CreateSession(_ context.Context, req payment.SessionRequest) (payment.Session, error) {
    p.mu.Lock()
    defer p.mu.Unlock()
    if p.createErr != nil {
        return payment.Session{}, p.createErr
    }
    p.requests = append(p.requests, req)
    ref := fmt.Sprintf("cs_%d", len(p.requests))
    p.statuses[ref] = payment.StatusUnpaid
    return payment.Session{Ref: ref, RedirectURL: "https://pay.test/" + ref}, nil
}

func (p *fakeProvider) GetSessionStatus(_ context.Context, ref string) (payment.SessionStatus, error) {
    time.Sleep(p.delay)
    p.mu.Lock()
    defer p.mu.Unlock()
    p.gets++
    if p.getErr != nil {
        return "", p.getErr
    }
    return p.statuses[ref], nil
}

func (p *fakeProvider) set(ref string, s payment.SessionStatus) {
    p.mu.Lock()
    p.statuses[ref] = s
    p.mu.Unlock()
}

func (p *fakeProvider) getCount() int {
    p.mu.Lock()
    defer p.mu.Unlock()
    return p.gets
}

type fakeNotifier struct {
    mu        sync.Mutex
    confirmed []string
    failures  int // calls left to fail
}

func (n *fakeNotifier) ReservationConfirmed(_ context.Context, res model.Reservation) error {
    n.mu.Lock()
    defer n.mu.Unlock()
    if n.failures > 0 {
        n.failures--
        return errors.New("broker unreachable")
    }
    n.confirmed = append(n.confirmed, res.ID)
    return nil
}

func (n *fakeNotifier) count() int {
    n.mu.Lock()
    defer n.mu.Unlock()
    return len(n.confirmed)
}

type fixture struct {
    svc      *Service
    repo     *repository.MemoryReservationRepo
    provider *fakeProvider
    notifier *fakeNotifier
    clock    *clock
    guard    *lock.LocalGuard
}

func newFixture(t *testing.T, capacity int) *fixture {
    t.Helper()
    f := &fixture{
        provider: newFakeProvider(),
        notifier: &fakeNotifier{},
        clock:    &clock{t: time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)},
        guard:    lock.NewLocalGuard(),
    }
    f.repo = repository.NewMemoryReservationRepo().WithClock(f.clock.Now)
    checker := availability.NewChecker(f.repo, map[model.Family]int{
        model.FamilySoiree: capacity, model.FamilyConference: capacity, model.FamilyMariage: capacity,
    }).WithClock(f.clock.Now)
    f.svc = NewService(f.repo, f.provider, checker, Options{
        HoldTTL:     payment.MinHoldTTL,
        VerifyRPS:   1000,
        VerifyBurst: 100,
        Guard:       f.guard,
        Notifier:    f.notifier,
        Now:         f.clock.Now,
    })
    return f
}

func soireeQuote(t *testing.T) pricing.Quote {
    t.Helper()
    h := 60
    q, err := pricing.ComputeQuote(pricing.QuoteRequest{
        PackageID: "soiree",
        Headcount: &h,
        Zone:      pricing.ZoneInput{PostalCode: "92100"},
        Span: model.Span{
            Start: time.Date(2025, 6, 1, 20, 0, 0, 0, time.UTC),
            End:   time.Date(2025, 6, 2, 2, 30, 0, 0, time.UTC),
        },
    })
    require.NoError(t, err)
    require.False(t, q.ManualQuote)
    return q
}

func (f *fixture) submit(t *testing.T) *model.Reservation {
    t.Helper()
    res, _, err := f.svc.Submit(context.Background(), soireeQuote(t), "client@example.fr")
    require.NoError(t, err)
    return res
}

func TestSubmitCreatesHoldWithSession(t *testing.T) {
    f := newFixture(t, 2)
    q := soireeQuote(t)
    res, sess, err := f.svc.Submit(context.Background(), q, " client@example.fr ")
    require.NoError(t, err)

    assert.Equal(t, model.StatusAwaitingPayment, res.Status)
    require.NotNil(t, res.PaymentRef)
    assert.Equal(t, sess.Ref, *res.PaymentRef)
    assert.Equal(t, "client@example.fr", res.Email)
    assert.Equal(t, f.clock.Now().Add(31*time.Minute), res.HoldExpiresAt)
    assert.Equal(t, q.Totals.DepositCents, res.DepositCents)
    assert.Equal(t, res.TotalCents, res.DepositCents+res.BalanceCents)

    require.Len(t, f.provider.requests, 1)
    req := f.provider.requests[0]
    assert.Equal(t, res.ID, req.ReservationID)
    assert.Equal(t, q.Totals.DepositCents, req.AmountCents)
    assert.Equal(t, res.HoldExpiresAt.Unix(), req.ExpiresAtUnix)

    stored, err := f.repo.Get(context.Background(), res.ID)
    require.NoError(t, err)
    assert.Equal(t, model.StatusAwaitingPayment, stored.Status)
}

func TestShortHoldIsRaisedAboveCheckoutMinimum(t *testing.T) {
    f := newFixture(t, 2)
    checker := availability.NewChecker(f.repo, map[model.Family]int{model.FamilySoiree: 2}).WithClock(f.clock.Now)
    svc := NewService(f.repo, f.provider, checker, Options{HoldTTL: 30 * time.Minute, Now: f.clock.Now})

    res, _, err := svc.Submit(context.Background(), soireeQuote(t), "client@example.fr")
    require.NoError(t, err)
    require.Len(t, f.provider.requests, 1)
    sessionTTL := f.provider.requests[0].ExpiresAtUnix - f.clock.Now().Unix()
    assert.GreaterOrEqual(t, sessionTTL, int64(31*60))
    assert.Equal(t, res.HoldExpiresAt.Unix(), f.provider.requests[0].ExpiresAtUnix)
}

func TestSubmitUnavailableCreatesNothing(t *testing.T) {
    f := newFixture(t, 1)
    first := f.submit(t)
    f.provider.set(*first.PaymentRef, payment.StatusPaid)
    _, err := f.svc.Confirm(context.Background(), first.ID)
    require.NoError(t, err)

    _, _, err = f.svc.Submit(context.Background(), soireeQuote(t), "other@example.fr")
    var aerr *AvailabilityError
    require.True(t, errors.As(err, &aerr), "got %v", err)
    assert.Equal(t, availability.ReasonPoolExhausted, aerr.Reason)
    assert.Equal(t, []string{first.ID}, aerr.Conflicts)

    all, err := f.repo.List(context.Background(), "", 0)
    require.NoError(t, err)
    assert.Len(t, all, 1)
    assert.Len(t, f.provider.requests, 1)
}

func TestSubmitRejections(t *testing.T) {
    f := newFixture(t, 2)
    q := soireeQuote(t)

    manual := q
    manual.ManualQuote = true
    _, _, err := f.svc.Submit(context.Background(), manual, "client@example.fr")
    assert.ErrorIs(t, err, ErrManualQuote)

    _, _, err = f.svc.Submit(context.Background(), q, "not-an-email")
    var verr *pricing.ValidationError
    require.True(t, errors.As(err, &verr))
    assert.Equal(t, "email", verr.Field)

    f.provider.createErr = errors.New("stripe down")
    _, _, err = f.svc.Submit(context.Background(), q, "client@example.fr")
    assert.ErrorIs(t, err, ErrPaymentUnavailable)

    all, err := f.repo.List(context.Background(), "", 0)
    require.NoError(t, err)
    assert.Empty(t, all)
}

func TestConfirmIsIdempotent(t *testing.T) {
    f := newFixture(t, 2)
    res := f.submit(t)
    ctx := context.Background()

    out, err := f.svc.Confirm(ctx, res.ID)
    require.NoError(t, err)
    assert.Equal(t, Outcome{ReservationID: res.ID, Status: model.StatusAwaitingPayment}, out)

    f.provider.set(*res.PaymentRef, payment.StatusPaid)
    out, err = f.svc.Confirm(ctx, res.ID)
    require.NoError(t, err)
    assert.Equal(t, Outcome{ReservationID: res.ID, Status: model.StatusConfirmed, Transitioned: true}, out)

    calls := f.provider.getCount()
    out, err = f.svc.Confirm(ctx, res.ID)
    require.NoError(t, err)
    assert.Equal(t, Outcome{ReservationID: res.ID, Status: model.StatusConfirmed}, out)
    assert.Equal(t, calls, f.provider.getCount(), "confirmed reservations are not re-verified")

    out, err = f.svc.HandleNotification(ctx, payment.Notification{SessionRef: *res.PaymentRef, Status: payment.StatusPaid})
    require.NoError(t, err)
    assert.False(t, out.Transitioned)
    assert.Equal(t, 1, f.notifier.count())
}

func TestConcurrentConfirmationsNotifyOnce(t *testing.T) {
    f := newFixture(t, 2)
    res := f.submit(t)
    f.provider.set(*res.PaymentRef, payment.StatusPaid)
    f.provider.delay = 5 * time.Millisecond

    var (
        wg          sync.WaitGroup
        mu          sync.Mutex
        transitions int
    )
    record := func(out Outcome, err error) {
        defer wg.Done()
        assert.NoError(t, err)
        if out.Transitioned {
            mu.Lock()
            transitions++
            mu.Unlock()
        }
    }
    for i := 0; i < 8; i++ {
        wg.Add(2)
        go func() { record(f.svc.Confirm(context.Background(), res.ID)) }()
        go func() {
            record(f.svc.HandleNotification(context.Background(), payment.Notification{SessionRef: *res.PaymentRef, Status: payment.StatusPaid}))
        }()
    }
    wg.Wait()

    assert.Equal(t, 1, transitions)
    assert.Equal(t, 1, f.notifier.count())
    stored, err := f.repo.Get(context.Background(), res.ID)
    require.NoError(t, err)
    assert.Equal(t, model.StatusConfirmed, stored.Status)
}

func TestConfirmBusyWhenVerificationInFlight(t *testing.T) {
    f := newFixture(t, 2)
    res := f.submit(t)
    release, ok, err := f.guard.TryAcquire(context.Background(), "verify:"+res.ID)
    require.NoError(t, err)
    require.True(t, ok)
    defer release()

    out, err := f.svc.Confirm(context.Background(), res.ID)
    require.NoError(t, err)
    assert.True(t, out.Busy)
    assert.Equal(t, model.StatusAwaitingPayment, out.Status)
    assert.Zero(t, f.provider.getCount())
}

func TestConfirmVerificationFailureLeavesStatus(t *testing.T) {
    f := newFixture(t, 2)
    res := f.submit(t)
    f.provider.getErr = errors.New("timeout")

    _, err := f.svc.Confirm(context.Background(), res.ID)
    var verr *VerificationError
    require.True(t, errors.As(err, &verr))
    assert.Equal(t, res.ID, verr.ReservationID)

    stored, err := f.repo.Get(context.Background(), res.ID)
    require.NoError(t, err)
    assert.Equal(t, model.StatusAwaitingPayment, stored.Status)

    _, err = f.svc.Confirm(context.Background(), "missing")
    assert.ErrorIs(t, err, ErrNotFound)
}

func TestExpireStaleReleasesSlot(t *testing.T) {
    f := newFixture(t, 1)
    ctx := context.Background()
    res := f.submit(t)

    f.clock.Advance(31 * time.Minute)
    n, err := f.svc.ExpireStale(ctx)
    require.NoError(t, err)
    assert.Equal(t, 1, n)

    stored, err := f.repo.Get(ctx, res.ID)
    require.NoError(t, err)
    assert.Equal(t, model.StatusExpired, stored.Status)

    live, err := f.repo.ListOverlapping(ctx, model.FamilySoiree, res.Span(), f.clock.Now())
    require.NoError(t, err)
    assert.Empty(t, live)

    // a late payment for the expired hold is not applied
    out, err := f.svc.HandleNotification(ctx, payment.Notification{SessionRef: *res.PaymentRef, Status: payment.StatusPaid})
    require.NoError(t, err)
    assert.Equal(t, model.StatusExpired, out.Status)
    assert.False(t, out.Transitioned)
    assert.Zero(t, f.notifier.count())

    // the slot is free again
    f.submit(t)
}

func TestExpireStaleConfirmsPaidHolds(t *testing.T) {
    f := newFixture(t, 2)
    res := f.submit(t)
    f.provider.set(*res.PaymentRef, payment.StatusPaid)
    f.clock.Advance(time.Hour)

    n, err := f.svc.ExpireStale(context.Background())
    require.NoError(t, err)
    assert.Zero(t, n)
    stored, err := f.repo.Get(context.Background(), res.ID)
    require.NoError(t, err)
    assert.Equal(t, model.StatusConfirmed, stored.Status)
    assert.Equal(t, 1, f.notifier.count())
}

func TestHoldStillBlocksBeforeExpiry(t *testing.T) {
    f := newFixture(t, 1)
    f.submit(t)
    f.clock.Advance(29 * time.Minute)
    _, _, err := f.svc.Submit(context.Background(), soireeQuote(t), "late@example.fr")
    var aerr *AvailabilityError
    assert.True(t, errors.As(err, &aerr))
}

func TestCancel(t *testing.T) {
    f := newFixture(t, 2)
    ctx := context.Background()
    res := f.submit(t)

    _, err := f.svc.CancelByCustomer(ctx, res.ID, "someone@else.fr")
    assert.ErrorIs(t, err, ErrNotFound)

    out, err := f.svc.CancelByCustomer(ctx, res.ID, "CLIENT@example.fr")
    require.NoError(t, err)
    assert.Equal(t, Outcome{ReservationID: res.ID, Status: model.StatusCancelled, Transitioned: true}, out)

    out, err = f.svc.Cancel(ctx, res.ID, "operator")
    require.NoError(t, err)
    assert.False(t, out.Transitioned)

    out, err = f.svc.HandleNotification(ctx, payment.Notification{SessionRef: *res.PaymentRef, Status: payment.StatusPaid})
    require.NoError(t, err)
    assert.Equal(t, model.StatusCancelled, out.Status)
    assert.Zero(t, f.notifier.count())
}

func TestHandleNotificationFallsBackToReservationID(t *testing.T) {
    f := newFixture(t, 2)
    ctx := context.Background()
    res := f.submit(t)

    _, err := f.svc.HandleNotification(ctx, payment.Notification{SessionRef: "cs_unknown", Status: payment.StatusPaid})
    assert.ErrorIs(t, err, ErrNotFound)

    _, err = f.svc.HandleNotification(ctx, payment.Notification{SessionRef: "cs_other", ReservationID: res.ID, Status: payment.StatusPaid})
    assert.ErrorIs(t, err, ErrNotFound)

    out, err := f.svc.HandleNotification(ctx, payment.Notification{SessionRef: *res.PaymentRef, Status: payment.StatusExpired})
    require.NoError(t, err)
    assert.Equal(t, model.StatusExpired, out.Status)
    assert.True(t, out.Transitioned)
}

func TestStatusView(t *testing.T) {
    f := newFixture(t, 2)
    res := f.submit(t)
    v, err := f.svc.Status(context.Background(), res.ID)
    require.NoError(t, err)
    assert.Equal(t, StatusView{ReservationID: res.ID, Status: model.StatusAwaitingPayment, HasSession: true, HoldExpiresAt: res.HoldExpiresAt}, v)

    _, err = f.svc.List(context.Background(), model.Status("BOGUS"), 0)
    assert.Error(t, err)
}

func TestConcurrentSubmitsRespectCapacity(t *testing.T) {
    f := newFixture(t, 2)
    q := soireeQuote(t)

    var wg sync.WaitGroup
    var mu sync.Mutex
    created, refused := 0, 0
    for i := 0; i < 8; i++ {
        wg.Add(1)
        go func(i int) {
            defer wg.Done()
            _, _, err := f.svc.Submit(context.Background(), q, fmt.Sprintf("c%d@example.fr", i))
            mu.Lock()
            defer mu.Unlock()
            var aerr *AvailabilityError
            switch {
            case err == nil:
                created++
            case errors.As(err, &aerr):
                refused++
            default:
                t.Errorf("unexpected error: %v", err)
            }
        }(i)
    }
    wg.Wait()
    assert.Equal(t, 2, created)
    assert.Equal(t, 6, refused)
}

func TestSubmitConfirmsLapsedHoldThatWasPaid(t *testing.T) {
    f := newFixture(t, 1)
    ctx := context.Background()
    first := f.submit(t)
    f.clock.Advance(32 * time.Minute)
    // paid just before the deadline, notification lost
    f.provider.set(*first.PaymentRef, payment.StatusPaid)

    _, _, err := f.svc.Submit(ctx, soireeQuote(t), "other@example.fr")
    var aerr *AvailabilityError
    require.True(t, errors.As(err, &aerr), "got %v", err)
    assert.Equal(t, []string{first.ID}, aerr.Conflicts)
    assert.Len(t, f.provider.requests, 1)

    stored, err := f.repo.Get(ctx, first.ID)
    require.NoError(t, err)
    assert.Equal(t, model.StatusConfirmed, stored.Status)
    assert.Equal(t, 1, f.notifier.count())
}

func TestSubmitExpiresLapsedUnpaidHoldBeforeReusingSlot(t *testing.T) {
    f := newFixture(t, 1)
    ctx := context.Background()
    first := f.submit(t)
    f.clock.Advance(32 * time.Minute)

    second, _, err := f.svc.Submit(ctx, soireeQuote(t), "other@example.fr")
    require.NoError(t, err)

    stored, err := f.repo.Get(ctx, first.ID)
    require.NoError(t, err)
    assert.Equal(t, model.StatusExpired, stored.Status)

    // the first customer pays late: neither path may revive the hold
    f.provider.set(*first.PaymentRef, payment.StatusPaid)
    out, err := f.svc.Confirm(ctx, first.ID)
    require.NoError(t, err)
    assert.Equal(t, model.StatusExpired, out.Status)
    assert.False(t, out.Transitioned)
    out, err = f.svc.HandleNotification(ctx, payment.Notification{SessionRef: *first.PaymentRef, Status: payment.StatusPaid})
    require.NoError(t, err)
    assert.Equal(t, model.StatusExpired, out.Status)

    live, err := f.repo.ListOverlapping(ctx, model.FamilySoiree, second.Span(), f.clock.Now())
    require.NoError(t, err)
    require.Len(t, live, 1)
    assert.Equal(t, second.ID, live[0].ID)
    assert.Zero(t, f.notifier.count())
}

func TestSubmitRefusesWhenLapsedHoldCannotBeVerified(t *testing.T) {
    f := newFixture(t, 1)
    ctx := context.Background()
    first := f.submit(t)
    f.clock.Advance(32 * time.Minute)
    f.provider.getErr = errors.New("timeout")

    _, _, err := f.svc.Submit(ctx, soireeQuote(t), "other@example.fr")
    assert.ErrorIs(t, err, ErrPaymentUnavailable)
    assert.Len(t, f.provider.requests, 1)

    stored, err := f.repo.Get(ctx, first.ID)
    require.NoError(t, err)
    assert.Equal(t, model.StatusAwaitingPayment, stored.Status)
}

func TestConfirmMarksReservationNotified(t *testing.T) {
    f := newFixture(t, 2)
    ctx := context.Background()
    res := f.submit(t)
    f.provider.set(*res.PaymentRef, payment.StatusPaid)

    _, err := f.svc.Confirm(ctx, res.ID)
    require.NoError(t, err)
    stored, err := f.repo.Get(ctx, res.ID)
    require.NoError(t, err)
    require.NotNil(t, stored.NotifiedAt)
    assert.Equal(t, f.clock.Now(), *stored.NotifiedAt)
}

func TestReplayConfirmationsAfterFailedPublish(t *testing.T) {
    f := newFixture(t, 2)
    ctx := context.Background()
    res := f.submit(t)
    f.provider.set(*res.PaymentRef, payment.StatusPaid)
    f.notifier.failures = 1

    out, err := f.svc.Confirm(ctx, res.ID)
    require.NoError(t, err)
    assert.True(t, out.Transitioned)
    assert.Zero(t, f.notifier.count())
    stored, err := f.repo.Get(ctx, res.ID)
    require.NoError(t, err)
    assert.Nil(t, stored.NotifiedAt)

    n, err := f.svc.ReplayConfirmations(ctx)
    require.NoError(t, err)
    assert.Zero(t, n, "fresh confirmations are left alone")

    f.clock.Advance(2 * time.Minute)
    n, err = f.svc.ReplayConfirmations(ctx)
    require.NoError(t, err)
    assert.Equal(t, 1, n)
    assert.Equal(t, []string{res.ID}, f.notifier.confirmed)

    stored, err = f.repo.Get(ctx, res.ID)
    require.NoError(t, err)
    assert.NotNil(t, stored.NotifiedAt)

    n, err = f.svc.ReplayConfirmations(ctx)
    require.NoError(t, err)
    assert.Zero(t, n)
    assert.Equal(t, 1, f.notifier.count())
}
