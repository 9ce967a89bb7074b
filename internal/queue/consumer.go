package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// NotificationLog is where the consumer appends one line per event.
var NotificationLog = filepath.Join("logs", "notifications.log")

// StartNotificationConsumer connects to the broker, declares both
// notification queues and appends each delivery to NotificationLog.  It
// reconnects with exponential backoff and only returns once ctx is done.
// A message that cannot be handled is rejected without requeue so one bad
// payload cannot stall the queue.
func StartNotificationConsumer(ctx context.Context, url string) error {
	backoff := time.Second
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		conn, err := amqp.Dial(url)
		if err != nil {
			log.Printf("notify-consumer: dial failed: %v; retrying in %s", err, backoff)
			if !sleep(ctx, backoff) {
				return ctx.Err()
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		err = consumeLoop(ctx, conn)
		_ = conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		log.Printf("notify-consumer: consume loop ended: %v; reconnecting", err)
		if !sleep(ctx, 2*time.Second) {
			return ctx.Err()
		}
	}
}

func consumeLoop(ctx context.Context, conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		log.Printf("notify-consumer: set QoS failed: %v", err)
	}

	deliveries := make(map[string]<-chan amqp.Delivery, 2)
	for _, name := range []string{TourConfirmedQueue, BookingReceivedQueue} {
		if _, err := ch.QueueDeclare(name, true, false, false, false, nil); err != nil {
			return fmt.Errorf("queue declare %s: %w", name, err)
		}
		msgs, err := ch.Consume(name, "", false, false, false, false, nil)
		if err != nil {
			return fmt.Errorf("queue consume %s: %w", name, err)
		}
		deliveries[name] = msgs
	}

	confirmed, received := deliveries[TourConfirmedQueue], deliveries[BookingReceivedQueue]
	for {
		var d amqp.Delivery
		var ok bool
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok = <-confirmed:
		case d, ok = <-received:
		}
		if !ok {
			return errors.New("deliveries channel closed")
		}
		if err := appendLine(d.RoutingKey, d.Body); err != nil {
			log.Printf("notify-consumer: handle %s failed: %v", d.RoutingKey, err)
			_ = d.Nack(false, false)
			continue
		}
		_ = d.Ack(false)
	}
}

func appendLine(queue string, body []byte) error {
	if err := os.MkdirAll(filepath.Dir(NotificationLog), 0o755); err != nil {
		return fmt.Errorf("mkdir logs: %w", err)
	}
	f, err := os.OpenFile(NotificationLog, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer f.Close()
	return WriteNotification(f, queue, body)
}

// WriteNotification renders one event as a single log line.
func WriteNotification(w io.Writer, queue string, body []byte) error {
	var line string
	switch queue {
	case TourConfirmedQueue:
		var ev TourConfirmedEvent
		if err := json.Unmarshal(body, &ev); err != nil {
			return fmt.Errorf("unmarshal: %w", err)
		}
		emails := make([]string, 0, len(ev.Participants))
		for _, p := range ev.Participants {
			emails = append(emails, p.Email)
		}
		line = fmt.Sprintf("[%s] Tour confirmed | tour_group_id=%s | date=%s | guide=%s | people=%d | notify=%v\n",
			ev.ConfirmedAt, ev.TourGroupID, ev.RequestedDate, orDash(ev.GuideID), ev.TotalPeople, emails)
	case BookingReceivedQueue:
		var ev BookingReceivedEvent
		if err := json.Unmarshal(body, &ev); err != nil {
			return fmt.Errorf("unmarshal: %w", err)
		}
		line = fmt.Sprintf("[%s] Booking received | booking_request_id=%s | date=%s | size=%d | contact=%q <%s> | preferred_guide=%s\n",
			ev.ReceivedAt, ev.BookingRequestID, ev.RequestedDate, ev.GroupSize, ev.ContactName, ev.ContactEmail, orDash(ev.PreferredGuideID))
	default:
		return fmt.Errorf("unknown queue %q", queue)
	}
	_, err := io.WriteString(w, line)
	return err
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
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
