package reservation

import (
    "context"
    "errors"
    "fmt"

    "go.opentelemetry.io/otel/attribute"
    "go.opentelemetry.io/otel/trace"

    "github.com/iliyamo/sound-rental/internal/logx"
    "github.com/iliyamo/sound-rental/internal/model"
    "github.com/iliyamo/sound-rental/internal/payment"
)

// Confirm verifies a pending reservation directly with the payment provider
// and stores the result.  Reservations that are not awaiting payment, or
// that have no session, are returned as they are.  When another
// verification for the same reservation is running the stored status is
// returned with Busy set and the provider is not called.
func (s *Service) Confirm(ctx context.Context, id string) (Outcome, error) {
    ctx, span := s.tracer.Start(ctx, "reservation.confirm",
        trace.WithAttributes(attribute.String("reservation.id", id)))
    defer span.End()

    res, err := s.store.Get(ctx, id)
    if err != nil {
        return Outcome{}, err
    }
    if res.Status != model.StatusAwaitingPayment || res.PaymentRef == nil {
        logx.Debug(ctx, "confirm skipped", logx.ReservationID(id), logx.Status("status", string(res.Status)))
        return Outcome{ReservationID: id, Status: res.Status}, nil
    }

    release, acquired, err := s.guard.TryAcquire(ctx, "verify:"+id)
    if err != nil {
        // the compare-and-set below still keeps the transition single
        logx.Warn(ctx, "in-flight guard unavailable", logx.ReservationID(id), logx.Err(err))
    } else if !acquired {
        return Outcome{ReservationID: id, Status: res.Status, Busy: true}, nil
    }
    if release != nil {
        defer release()
    }

    if err := s.limiter.Wait(ctx); err != nil {
        return Outcome{}, fail(span, &VerificationError{ReservationID: id, Err: err})
    }
    status, err := s.provider.GetSessionStatus(ctx, *res.PaymentRef)
    if err != nil {
        logx.Warn(ctx, "payment verification failed", logx.ReservationID(id), logx.Err(err))
        return Outcome{}, fail(span, &VerificationError{ReservationID: id, Err: err})
    }
    span.SetAttributes(attribute.String("payment.status", string(status)))
    return s.apply(ctx, res, status)
}

// HandleNotification applies an asynchronous provider notification.  The
// reservation is found by session reference, falling back to the
// reservation id carried by the notification.
func (s *Service) HandleNotification(ctx context.Context, n payment.Notification) (Outcome, error) {
    ctx, span := s.tracer.Start(ctx, "reservation.notification",
        trace.WithAttributes(
            attribute.String("payment.session", n.SessionRef),
            attribute.String("payment.status", string(n.Status)),
        ),
    )
    defer span.End()

    res, err := s.store.GetByPaymentRef(ctx, n.SessionRef)
    if errors.Is(err, ErrNotFound) && n.ReservationID != "" {
        res, err = s.store.Get(ctx, n.ReservationID)
        if err == nil && (res.PaymentRef == nil || *res.PaymentRef != n.SessionRef) {
            return Outcome{}, fmt.Errorf("session %s does not belong to reservation %s: %w", n.SessionRef, n.ReservationID, ErrNotFound)
        }
    }
    if err != nil {
        return Outcome{}, fail(span, err)
    }
    return s.apply(ctx, res, n.Status)
}

// apply is the single transition function shared by every confirmation
// path.  The stored status only moves out of AWAITING_PAYMENT through a
// compare-and-set, and side effects run only for the caller whose
// compare-and-set succeeded.
func (s *Service) apply(ctx context.Context, res *model.Reservation, ps payment.SessionStatus) (Outcome, error) {
    var target model.Status
    switch ps {
    case payment.StatusPaid:
        target = model.StatusConfirmed
    case payment.StatusExpired:
        target = model.StatusExpired
    default:
        return Outcome{ReservationID: res.ID, Status: res.Status}, nil
    }

    if res.Status != model.StatusAwaitingPayment {
        s.noop(ctx, res, target)
        return Outcome{ReservationID: res.ID, Status: res.Status}, nil
    }

    ok, err := s.store.CompareAndSetStatus(ctx, res.ID, model.StatusAwaitingPayment, target)
    if err != nil {
        return Outcome{}, fmt.Errorf("update reservation %s: %w", res.ID, err)
    }
    if !ok {
        cur, err := s.store.Get(ctx, res.ID)
        if err != nil {
            return Outcome{}, err
        }
        s.noop(ctx, cur, target)
        return Outcome{ReservationID: res.ID, Status: cur.Status}, nil
    }

    logx.Info(ctx, "reservation transitioned",
        logx.ReservationID(res.ID),
        logx.Status("from", string(model.StatusAwaitingPayment)),
        logx.Status("to", string(target)),
    )
    res.Status = target
    if target == model.StatusConfirmed {
        s.notify(ctx, res)
    }
    return Outcome{ReservationID: res.ID, Status: target, Transitioned: true}, nil
}

// noop logs a signal that arrived after the reservation had already left
// AWAITING_PAYMENT.  A payment for a closed reservation needs an operator.
func (s *Service) noop(ctx context.Context, res *model.Reservation, target model.Status) {
    if target == model.StatusConfirmed && res.Status.Terminal() {
        logx.Warn(ctx, "payment received for closed reservation",
            logx.ReservationID(res.ID), logx.Status("status", string(res.Status)))
        return
    }
    logx.Debug(ctx, "transition already applied",
        logx.ReservationID(res.ID), logx.Status("status", string(res.Status)), logx.Status("requested", string(target)))
}

// notify publishes a confirmation and records it.  A failed publish leaves
// the reservation unmarked for ReplayConfirmations.
func (s *Service) notify(ctx context.Context, res *model.Reservation) bool {
    if err := s.notifier.ReservationConfirmed(ctx, *res); err != nil {
        logx.Warn(ctx, "confirmation notification failed", logx.ReservationID(res.ID), logx.Err(err))
        return false
    }
    if err := s.store.MarkNotified(ctx, res.ID, s.now()); err != nil {
        logx.Warn(ctx, "mark notified failed", logx.ReservationID(res.ID), logx.Err(err))
    }
    return true
}
