// Package queue_publisher publishes domain events to RabbitMQ.  Errors are
// logged and returned so callers can ignore them without interrupting the
// main request flow.
package queue_publisher

import (
    "context"
    "encoding/json"
    "time"

    amqp "github.com/rabbitmq/amqp091-go"

    "github.com/iliyamo/sound-rental/internal/logx"
    "github.com/iliyamo/sound-rental/internal/model"
    q "github.com/iliyamo/sound-rental/internal/queue"
)

// Publisher sends reservation.confirmed events.  It dials per publish:
// confirmations are rare and a short-lived connection never goes stale.
type Publisher struct {
    url string
    now func() time.Time
}

func NewPublisher(url string) *Publisher { return &Publisher{url: url, now: time.Now} }

// ReservationConfirmed publishes the event for a reservation that has just
// been confirmed.
func (p *Publisher) ReservationConfirmed(ctx context.Context, res model.Reservation) error {
    return p.PublishReservationConfirmed(ctx, q.NewReservationConfirmedEvent(res, p.now()))
}

// PublishReservationConfirmed publishes ev to the reservation.confirmed
// queue.  Messages are persistent and carry the reservation id as
// MessageId so consumers can dedupe.
func (p *Publisher) PublishReservationConfirmed(ctx context.Context, ev q.ReservationConfirmedEvent) error {
    pub, err := publishing(ev, p.now())
    if err != nil {
        logx.Error(ctx, "rabbitmq: marshal event failed", logx.Err(err))
        return err
    }

    conn, err := amqp.DialConfig(p.url, amqp.Config{
        Heartbeat: 10 * time.Second,
        Locale:    "en_US",
        Dial:      amqp.DefaultDial(5 * time.Second),
    })
    if err != nil {
        logx.Warn(ctx, "rabbitmq: dial failed", logx.Err(err))
        return err
    }
    defer func() { _ = conn.Close() }()

    ch, err := conn.Channel()
    if err != nil {
        logx.Warn(ctx, "rabbitmq: channel open failed", logx.Err(err))
        return err
    }
    defer func() { _ = ch.Close() }()

    // Ensure the queue exists (idempotent). Durable so messages survive broker restarts.
    if _, err := ch.QueueDeclare(
        q.ReservationConfirmedQueue, // name
        true,                        // durable
        false,                       // autoDelete
        false,                       // exclusive
        false,                       // noWait
        nil,                         // args
    ); err != nil {
        logx.Warn(ctx, "rabbitmq: queue declare failed", logx.Err(err))
        return err
    }

    if err := ch.PublishWithContext(ctx,
        "",                          // default exchange
        q.ReservationConfirmedQueue, // routing key = queue name
        false,                       // mandatory
        false,                       // immediate
        pub,
    ); err != nil {
        logx.Warn(ctx, "rabbitmq: publish failed", logx.Err(err))
        return err
    }
    logx.Debug(ctx, "rabbitmq: published", logx.ReservationID(ev.ReservationID))
    return nil
}

func publishing(ev q.ReservationConfirmedEvent, at time.Time) (amqp.Publishing, error) {
    body, err := json.Marshal(ev)
    if err != nil {
        return amqp.Publishing{}, err
    }
    return amqp.Publishing{
        ContentType:  "application/json",
        DeliveryMode: amqp.Persistent, // store on disk
        MessageId:    ev.ReservationID,
        Type:         q.ReservationConfirmedQueue,
        Timestamp:    at.UTC(),
        Body:         body,
    }, nil
}
