package reservation

import (
    "context"
    "fmt"
    "strings"
    "time"

    "go.opentelemetry.io/otel/attribute"

    "github.com/iliyamo/sound-rental/internal/logx"
    "github.com/iliyamo/sound-rental/internal/model"
    "github.com/iliyamo/sound-rental/internal/payment"
)

// sweepBatch bounds how many rows one ExpireStale or ReplayConfirmations
// pass loads.
const sweepBatch = 100

// replayGrace leaves a fresh confirmation to the call that made it.
const replayGrace = time.Minute

// Cancel moves a reservation to CANCELLED from any other status.  Cancelling
// an already cancelled reservation is a no-op.  actor is only logged.
func (s *Service) Cancel(ctx context.Context, id, actor string) (Outcome, error) {
    // A concurrent transition can move the row between our read and the
    // compare-and-set; re-read and try again from the new status.
    for attempt := 0; attempt < 3; attempt++ {
        res, err := s.store.Get(ctx, id)
        if err != nil {
            return Outcome{}, err
        }
        if res.Status == model.StatusCancelled {
            return Outcome{ReservationID: id, Status: res.Status}, nil
        }
        if !res.Status.CanTransition(model.StatusCancelled) {
            return Outcome{}, fmt.Errorf("%w: %s to %s", ErrInvalidTransition, res.Status, model.StatusCancelled)
        }
        ok, err := s.store.CompareAndSetStatus(ctx, id, res.Status, model.StatusCancelled)
        if err != nil {
            return Outcome{}, fmt.Errorf("cancel reservation %s: %w", id, err)
        }
        if ok {
            logx.Info(ctx, "reservation transitioned",
                logx.ReservationID(id),
                logx.Status("from", string(res.Status)),
                logx.Status("to", string(model.StatusCancelled)),
                logx.Status("actor", actor),
            )
            return Outcome{ReservationID: id, Status: model.StatusCancelled, Transitioned: true}, nil
        }
    }
    return Outcome{}, fmt.Errorf("cancel reservation %s: status kept changing", id)
}

// CancelByCustomer cancels on behalf of the customer who booked.  A
// mismatching email is reported as not found so ids cannot be probed.
func (s *Service) CancelByCustomer(ctx context.Context, id, email string) (Outcome, error) {
    res, err := s.store.Get(ctx, id)
    if err != nil {
        return Outcome{}, err
    }
    if !sameEmail(res.Email, email) {
        return Outcome{}, ErrNotFound
    }
    return s.Cancel(ctx, id, "customer")
}

// ExpireStale closes every hold whose expiry has passed.  Each overdue hold
// is checked with the provider first so that a payment completed just before
// the deadline, whose notification was lost, still confirms.  When the
// provider cannot be reached the hold is expired anyway: the session expires
// with it, so no later payment can succeed.  It returns how many holds were
// expired.
func (s *Service) ExpireStale(ctx context.Context) (int, error) {
    ctx, span := s.tracer.Start(ctx, "reservation.expire_stale")
    defer span.End()

    due, err := s.store.ListExpirable(ctx, s.now(), sweepBatch)
    if err != nil {
        return 0, fail(span, fmt.Errorf("list expirable: %w", err))
    }
    expired := 0
    for i := range due {
        res := &due[i]
        if err := s.limiter.Wait(ctx); err != nil {
            return expired, err
        }
        status, err := s.lapsedStatus(ctx, res)
        if err != nil {
            logx.Warn(ctx, "verification before expiry failed", logx.ReservationID(res.ID), logx.Err(err))
            status = payment.StatusExpired
        }
        out, err := s.apply(ctx, res, status)
        if err != nil {
            logx.Error(ctx, "expire reservation failed", logx.ReservationID(res.ID), logx.Err(err))
            continue
        }
        if out.Transitioned && out.Status == model.StatusExpired {
            expired++
        }
    }
    span.SetAttributes(attribute.Int("expired", expired), attribute.Int("due", len(due)))
    return expired, nil
}

// settleLapsed closes the lapsed holds overlapping span before the slot is
// offered again.  A hold paid before its deadline is confirmed and keeps
// blocking; any other is expired, so a late confirmation can no longer take
// a slot that was handed to someone else.  Unlike ExpireStale it refuses to
// guess when the provider cannot be reached.
func (s *Service) settleLapsed(ctx context.Context, family model.Family, span model.Span) error {
    lapsed, err := s.store.ListLapsed(ctx, family, span, s.now())
    if err != nil {
        return fmt.Errorf("list lapsed holds: %w", err)
    }
    for i := range lapsed {
        res := &lapsed[i]
        if err := s.limiter.Wait(ctx); err != nil {
            return err
        }
        status, err := s.lapsedStatus(ctx, res)
        if err != nil {
            return fmt.Errorf("%w: %v", ErrPaymentUnavailable, &VerificationError{ReservationID: res.ID, Err: err})
        }
        if _, err := s.apply(ctx, res, status); err != nil {
            return fmt.Errorf("settle lapsed hold: %w", err)
        }
    }
    return nil
}

// lapsedStatus asks the provider how an overdue hold ended.  Anything short
// of a completed payment settles it as expired.
func (s *Service) lapsedStatus(ctx context.Context, res *model.Reservation) (payment.SessionStatus, error) {
    if res.PaymentRef == nil {
        return payment.StatusExpired, nil
    }
    ps, err := s.provider.GetSessionStatus(ctx, *res.PaymentRef)
    if err != nil {
        return "", err
    }
    if ps == payment.StatusPaid {
        return ps, nil
    }
    return payment.StatusExpired, nil
}

// ReplayConfirmations publishes again the confirmations whose first publish
// failed.  Reservations confirmed less than a minute ago are left alone.  It
// returns how many were published.
func (s *Service) ReplayConfirmations(ctx context.Context) (int, error) {
    ctx, span := s.tracer.Start(ctx, "reservation.replay_confirmations")
    defer span.End()

    pending, err := s.store.ListUnnotified(ctx, s.now().Add(-replayGrace), sweepBatch)
    if err != nil {
        return 0, fail(span, fmt.Errorf("list unnotified: %w", err))
    }
    sent := 0
    for i := range pending {
        if s.notify(ctx, &pending[i]) {
            sent++
        }
    }
    span.SetAttributes(attribute.Int("replayed", sent), attribute.Int("pending", len(pending)))
    return sent, nil
}

func sameEmail(a, b string) bool {
    return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}
