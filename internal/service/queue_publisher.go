// Package service provides the RabbitMQ publisher behind the engine's
// notification trigger.  Errors are logged and returned so the caller can
// record them without failing the request that caused the event.
package service

import (
	"context"
	"encoding/json"
	"log"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/iliyamo/tour-group-coordinator/internal/model"
	q "github.com/iliyamo/tour-group-coordinator/internal/queue"
	"github.com/iliyamo/tour-group-coordinator/internal/tour"
)

// Publisher sends domain events to durable queues on the default exchange.
// It dials per message; notifications are rare enough that a pooled
// connection is not needed.
type Publisher struct {
	URL     string
	Timeout time.Duration
}

var _ tour.Notifier = (*Publisher)(nil)

// NewPublisher returns a Publisher for the given AMQP URL.
func NewPublisher(url string) *Publisher {
	return &Publisher{URL: url, Timeout: 5 * time.Second}
}

// TourConfirmed publishes a TourConfirmedEvent to "tour.confirmed".
func (p *Publisher) TourConfirmed(ctx context.Context, g model.TourGroup, members []model.BookingRequest) error {
	return p.publish(ctx, q.TourConfirmedQueue, ConfirmedEvent(g, members))
}

// BookingReceived publishes a BookingReceivedEvent to "booking.received".
func (p *Publisher) BookingReceived(ctx context.Context, r model.BookingRequest) error {
	return p.publish(ctx, q.BookingReceivedQueue, ReceivedEvent(r))
}

// ConfirmedEvent builds the broker payload for a confirmed group.
func ConfirmedEvent(g model.TourGroup, members []model.BookingRequest) q.TourConfirmedEvent {
	ev := q.TourConfirmedEvent{
		TourGroupID:   g.ID,
		RequestedDate: g.RequestedDate,
		TotalPeople:   model.TotalPeople(members),
		Participants:  make([]q.Participant, 0, len(members)),
	}
	if g.ConfirmedAt != nil {
		ev.ConfirmedAt = g.ConfirmedAt.UTC().Format(time.RFC3339)
	}
	if g.GuideID != nil {
		ev.GuideID = *g.GuideID
	}
	for _, m := range members {
		ev.Participants = append(ev.Participants, q.Participant{
			Name:      m.ContactName,
			Email:     m.ContactEmail,
			GroupSize: m.GroupSize,
		})
	}
	return ev
}

// ReceivedEvent builds the broker payload for a new booking request.
func ReceivedEvent(r model.BookingRequest) q.BookingReceivedEvent {
	ev := q.BookingReceivedEvent{
		BookingRequestID: r.ID,
		RequestedDate:    r.RequestedDate,
		GroupSize:        r.GroupSize,
		ContactName:      r.ContactName,
		ContactEmail:     r.ContactEmail,
		ReceivedAt:       r.CreatedAt.UTC().Format(time.RFC3339),
	}
	if r.PreferredGuideID != nil {
		ev.PreferredGuideID = *r.PreferredGuideID
	}
	return ev
}

func (p *Publisher) publish(ctx context.Context, queue string, event any) error {
	body, err := json.Marshal(event)
	if err != nil {
		log.Printf("rabbitmq: marshal %s failed: %v", queue, err)
		return err
	}
	if p.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.Timeout)
		defer cancel()
	}

	conn, err := amqp.DialConfig(p.URL, amqp.Config{Dial: amqp.DefaultDial(p.Timeout)})
	if err != nil {
		log.Printf("rabbitmq: dial failed: %v", err)
		return err
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		log.Printf("rabbitmq: channel open failed: %v", err)
		return err
	}
	defer func() { _ = ch.Close() }()

	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		log.Printf("rabbitmq: queue declare %s failed: %v", queue, err)
		return err
	}

	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}
	if err := ch.PublishWithContext(ctx, "", queue, false, false, pub); err != nil {
		log.Printf("rabbitmq: publish %s failed: %v", queue, err)
		return err
	}
	return nil
}
