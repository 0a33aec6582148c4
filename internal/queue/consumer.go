package queue

import (
    "context"
    "encoding/json"
    "errors"
    "fmt"
    "time"

    amqp "github.com/rabbitmq/amqp091-go"

    "github.com/iliyamo/sound-rental/internal/logx"
)

// StartConfirmationConsumer connects to RabbitMQ, declares the
// reservation.confirmed queue (durable) and records every message in the
// ledger.  It reconnects with backoff until ctx is cancelled, which is the
// only way it returns.  A message that cannot be decoded is rejected
// without requeue so it cannot spin the loop.
func StartConfirmationConsumer(ctx context.Context, url string, ledger *Ledger) error {
    backoff := time.Second
    for {
        if ctx.Err() != nil {
            return ctx.Err()
        }
        conn, err := amqp.Dial(url)
        if err != nil {
            logx.Warn(ctx, "confirmation consumer: dial failed", logx.Err(err), logx.Status("retry_in", backoff.String()))
            if !sleep(ctx, backoff) {
                return ctx.Err()
            }
            if backoff < 30*time.Second {
                backoff *= 2
            }
            continue
        }
        backoff = time.Second

        err = consumeLoop(ctx, conn, ledger)
        _ = conn.Close()
        if ctx.Err() != nil {
            return ctx.Err()
        }
        logx.Warn(ctx, "confirmation consumer: loop ended, reconnecting", logx.Err(err))
        if !sleep(ctx, 2*time.Second) {
            return ctx.Err()
        }
    }
}

func sleep(ctx context.Context, d time.Duration) bool {
    t := time.NewTimer(d)
    defer t.Stop()
    select {
    case <-ctx.Done():
        return false
    case <-t.C:
        return true
    }
}

func consumeLoop(ctx context.Context, conn *amqp.Connection, ledger *Ledger) error {
    ch, err := conn.Channel()
    if err != nil {
        return fmt.Errorf("channel open: %w", err)
    }
    defer func() { _ = ch.Close() }()

    if err := ch.Qos(50, 0, false); err != nil {
        logx.Warn(ctx, "confirmation consumer: set QoS failed", logx.Err(err))
    }

    _, err = ch.QueueDeclare(ReservationConfirmedQueue, true, false, false, false, nil)
    if err != nil {
        return fmt.Errorf("queue declare: %w", err)
    }

    msgs, err := ch.Consume(ReservationConfirmedQueue, "", false, false, false, false, nil)
    if err != nil {
        return fmt.Errorf("queue consume: %w", err)
    }

    for {
        select {
        case <-ctx.Done():
            return ctx.Err()
        case d, ok := <-msgs:
            if !ok {
                return errors.New("deliveries channel closed")
            }
            settle(ctx, d, HandleMessage(ctx, ledger, d.Body))
        }
    }
}

// acknowledger is the part of amqp.Delivery settle needs.
type acknowledger interface {
    Ack(multiple bool) error
    Nack(multiple, requeue bool) error
}

// settle acks processed messages.  Malformed ones are dropped; ledger
// failures are requeued since the dedupe marker makes a retry safe.
func settle(ctx context.Context, d acknowledger, err error) {
    var perr *permanentError
    switch {
    case err == nil:
        _ = d.Ack(false)
    case errors.As(err, &perr):
        logx.Error(ctx, "confirmation consumer: dropping message", logx.Err(err))
        _ = d.Nack(false, false)
    default:
        logx.Warn(ctx, "confirmation consumer: requeueing message", logx.Err(err))
        _ = d.Nack(false, true)
    }
}

type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// HandleMessage decodes one reservation.confirmed body and records it.
// Duplicates are acknowledged and logged at debug.
func HandleMessage(ctx context.Context, ledger *Ledger, body []byte) error {
    var ev ReservationConfirmedEvent
    if err := json.Unmarshal(body, &ev); err != nil {
        return &permanentError{fmt.Errorf("unmarshal: %w", err)}
    }
    if ev.ReservationID == "" {
        return &permanentError{errors.New("missing reservation_id")}
    }
    first, err := ledger.Record(ctx, ev)
    if err != nil {
        return err
    }
    if !first {
        logx.Debug(ctx, "confirmation already recorded", logx.ReservationID(ev.ReservationID))
        return nil
    }
    logx.Info(ctx, "confirmation recorded", logx.ReservationID(ev.ReservationID))
    return nil
}
