// Package reservation is the reservation state machine.  It is the only
// writer of reservation status: Submit creates the hold, and every later
// change goes through a compare-and-set on the stored status so that a
// transition out of AWAITING_PAYMENT happens exactly once no matter how
// many confirmation signals race for it.
package reservation

import (
    "context"
    "fmt"
    "net/mail"
    "strings"
    "sync"
    "time"

    "github.com/google/uuid"
    "go.opentelemetry.io/otel"
    "go.opentelemetry.io/otel/attribute"
    "go.opentelemetry.io/otel/codes"
    "go.opentelemetry.io/otel/trace"
    "golang.org/x/time/rate"

    "github.com/iliyamo/sound-rental/internal/availability"
    "github.com/iliyamo/sound-rental/internal/lock"
    "github.com/iliyamo/sound-rental/internal/logx"
    "github.com/iliyamo/sound-rental/internal/model"
    "github.com/iliyamo/sound-rental/internal/payment"
    "github.com/iliyamo/sound-rental/internal/pricing"
)

// Store is the persistence contract the state machine relies on.
type Store interface {
    Create(ctx context.Context, res *model.Reservation) error
    Get(ctx context.Context, id string) (*model.Reservation, error)
    GetByPaymentRef(ctx context.Context, ref string) (*model.Reservation, error)
    CompareAndSetStatus(ctx context.Context, id string, from, to model.Status) (bool, error)
    ListOverlapping(ctx context.Context, family model.Family, span model.Span, now time.Time) ([]model.Reservation, error)
    ListExpirable(ctx context.Context, now time.Time, limit int) ([]model.Reservation, error)
    ListLapsed(ctx context.Context, family model.Family, span model.Span, now time.Time) ([]model.Reservation, error)
    MarkNotified(ctx context.Context, id string, at time.Time) error
    ListUnnotified(ctx context.Context, before time.Time, limit int) ([]model.Reservation, error)
    List(ctx context.Context, status model.Status, limit int) ([]model.Reservation, error)
}

// PaymentProvider opens checkout sessions and reports their status.
type PaymentProvider interface {
    CreateSession(ctx context.Context, req payment.SessionRequest) (payment.Session, error)
    GetSessionStatus(ctx context.Context, ref string) (payment.SessionStatus, error)
}

// Notifier receives confirmed reservations.  It is called after the
// confirming transition has been stored, and again by ReplayConfirmations
// while no call has succeeded, so it must tolerate repeats.
type Notifier interface {
    ReservationConfirmed(ctx context.Context, res model.Reservation) error
}

// Options tunes a Service.  Zero values fall back to the defaults below.
type Options struct {
    HoldTTL     time.Duration
    VerifyRPS   float64
    VerifyBurst int
    Guard       lock.Guard
    Notifier    Notifier
    Now         func() time.Time
}

// Outcome reports the status after an operation.  Transitioned is false when
// the call was a no-op, for example a second confirmation of an already
// confirmed reservation.  Busy is set when another verification for the
// same reservation was already in flight.
type Outcome struct {
    ReservationID string       `json:"reservation_id"`
    Status        model.Status `json:"status"`
    Transitioned  bool         `json:"transitioned"`
    Busy          bool         `json:"busy,omitempty"`
}

// StatusView is what a polling client needs to drive reconciliation.
type StatusView struct {
    ReservationID string       `json:"reservation_id"`
    Status        model.Status `json:"status"`
    HasSession    bool         `json:"has_session"`
    HoldExpiresAt time.Time    `json:"hold_expires_at"`
}

type Service struct {
    store    Store
    provider PaymentProvider
    checker  *availability.Checker
    guard    lock.Guard
    notifier Notifier
    limiter  *rate.Limiter
    holdTTL  time.Duration
    now      func() time.Time
    tracer   trace.Tracer

    // serialises check-then-create within this process
    submitMu sync.Mutex
}

func NewService(store Store, provider PaymentProvider, checker *availability.Checker, opts Options) *Service {
    if opts.HoldTTL < payment.MinHoldTTL {
        opts.HoldTTL = payment.MinHoldTTL
    }
    if opts.VerifyRPS <= 0 {
        opts.VerifyRPS = 5
    }
    if opts.VerifyBurst < 1 {
        opts.VerifyBurst = 1
    }
    if opts.Guard == nil {
        opts.Guard = lock.NewLocalGuard()
    }
    if opts.Notifier == nil {
        opts.Notifier = nopNotifier{}
    }
    if opts.Now == nil {
        opts.Now = time.Now
    }
    return &Service{
        store:    store,
        provider: provider,
        checker:  checker,
        guard:    opts.Guard,
        notifier: opts.Notifier,
        limiter:  rate.NewLimiter(rate.Limit(opts.VerifyRPS), opts.VerifyBurst),
        holdTTL:  opts.HoldTTL,
        now:      opts.Now,
        tracer:   otel.Tracer("sound-rental/reservation"),
    }
}

type nopNotifier struct{}

func (nopNotifier) ReservationConfirmed(context.Context, model.Reservation) error { return nil }

// Submit settles lapsed holds on the slot, re-checks availability, opens a payment session for the deposit and
// stores the reservation in AWAITING_PAYMENT with the session reference.
// The row is written only once the session exists, so no stored hold is ever
// left without a way to pay it.
func (s *Service) Submit(ctx context.Context, q pricing.Quote, email string) (*model.Reservation, payment.Session, error) {
    ctx, span := s.tracer.Start(ctx, "reservation.submit",
        trace.WithAttributes(
            attribute.String("package.id", q.Package.ID),
            attribute.String("tier", string(q.Tier.Tier)),
        ),
    )
    defer span.End()

    email = strings.TrimSpace(email)
    if _, err := mail.ParseAddress(email); err != nil || email == "" {
        return nil, payment.Session{}, &pricing.ValidationError{Field: "email", Reason: "must be a valid address"}
    }
    if q.ManualQuote {
        return nil, payment.Session{}, ErrManualQuote
    }
    if !q.Tier.Known() || q.Totals.TotalCents <= 0 {
        return nil, payment.Session{}, &pricing.ValidationError{Field: "quote", Reason: "not priced"}
    }

    s.submitMu.Lock()
    defer s.submitMu.Unlock()

    sp := q.Request.Span
    if err := s.settleLapsed(ctx, q.Package.Family, sp); err != nil {
        return nil, payment.Session{}, fail(span, err)
    }
    verdict, err := s.checker.Check(ctx, sp, q.Package.Family)
    if err != nil {
        return nil, payment.Session{}, fail(span, fmt.Errorf("check availability: %w", err))
    }
    if !verdict.Available {
        span.SetAttributes(attribute.String("availability.reason", verdict.Reason))
        return nil, payment.Session{}, &AvailabilityError{Reason: verdict.Reason, Conflicts: verdict.Conflicts}
    }

    now := s.now().UTC()
    res := &model.Reservation{
        ID:            uuid.NewString(),
        PackageID:     q.Package.ID,
        Family:        q.Package.Family,
        Tier:          q.Tier.Tier,
        Headcount:     q.Headcount(),
        StartsAt:      sp.Start.UTC(),
        EndsAt:        sp.End.UTC(),
        Zone:          string(q.Zone),
        PostalCode:    q.PostalCode,
        TotalCents:    q.Totals.TotalCents,
        DepositCents:  q.Totals.DepositCents,
        BalanceCents:  q.Totals.BalanceCents,
        CautionCents:  q.CautionCents,
        Email:         email,
        Status:        model.StatusAwaitingPayment,
        HoldExpiresAt: now.Add(s.holdTTL),
    }
    span.SetAttributes(attribute.String("reservation.id", res.ID))

    sess, err := s.provider.CreateSession(ctx, payment.SessionRequest{
        ReservationID: res.ID,
        AmountCents:   res.DepositCents,
        Description:   fmt.Sprintf("Acompte %s (%s)", q.Package.Title, res.Tier),
        Email:         email,
        ExpiresAtUnix: res.HoldExpiresAt.Unix(),
    })
    if err != nil {
        return nil, payment.Session{}, fail(span, fmt.Errorf("%w: %v", ErrPaymentUnavailable, err))
    }
    res.PaymentRef = &sess.Ref

    if err := s.store.Create(ctx, res); err != nil {
        return nil, payment.Session{}, fail(span, fmt.Errorf("store reservation: %w", err))
    }
    logx.Info(ctx, "reservation created",
        logx.ReservationID(res.ID),
        logx.Status("from", string(model.StatusDraft)),
        logx.Status("to", string(res.Status)),
    )
    return res, sess, nil
}

// Get returns the stored reservation.
func (s *Service) Get(ctx context.Context, id string) (*model.Reservation, error) {
    return s.store.Get(ctx, id)
}

// Status returns the stored status of a reservation.  It never calls the
// payment provider.
func (s *Service) Status(ctx context.Context, id string) (StatusView, error) {
    res, err := s.store.Get(ctx, id)
    if err != nil {
        return StatusView{}, err
    }
    return viewOf(res), nil
}

// List returns reservations for the operator surface.
func (s *Service) List(ctx context.Context, status model.Status, limit int) ([]model.Reservation, error) {
    if status != "" && !status.Valid() {
        return nil, &pricing.ValidationError{Field: "status", Reason: "unknown status"}
    }
    return s.store.List(ctx, status, limit)
}

func viewOf(res *model.Reservation) StatusView {
    return StatusView{
        ReservationID: res.ID,
        Status:        res.Status,
        HasSession:    res.PaymentRef != nil && *res.PaymentRef != "",
        HoldExpiresAt: res.HoldExpiresAt,
    }
}

func fail(span trace.Span, err error) error {
    span.RecordError(err)
    span.SetStatus(codes.Error, err.Error())
    return err
}
