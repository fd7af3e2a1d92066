// Package notify carries outbound notifications away from the dispatch and
// SLA paths. Transitions commit first; delivery runs async through a
// buffered producer and failures are logged, never propagated back to the
// caller.
package notify

import (
	"context"
	"time"

	"github.com/fieldval/dispatch-engine/internal/store"
	"github.com/fieldval/dispatch-engine/internal/store/model"
	"github.com/fieldval/dispatch-engine/pkg/metrics"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Notification kinds.
const (
	KindJobDispatched = "job.dispatched"
	KindJobAssigned   = "job.assigned"
	KindJobReassigned = "job.reassigned"
	KindSLAEscalation = "sla.escalation"
)

const sendTimeout = 10 * time.Second

// Sender is the notification facility the engine does not implement itself.
// Email and push may fail independently; failures must not abort the caller.
type Sender interface {
	SendEmail(ctx context.Context, template, recipient string, payload map[string]any) error
	SendPush(ctx context.Context, userID uuid.UUID, payload map[string]any) error
}

// Producer buffers notifications so slow senders never block a state
// transition, and persists a record of every attempt.
type Producer struct {
	buffer           *buffer
	startConsumingCh chan any
	doneCh           chan any
	sender           Sender
	records          store.Notification
}

func NewProducer(sender Sender, records store.Notification) *Producer {
	p := &Producer{
		buffer:           newBuffer(),
		startConsumingCh: make(chan any, 1),
		doneCh:           make(chan any),
		sender:           sender,
		records:          records,
	}

	go p.run()
	return p
}

// Email queues an email notification. Fire-and-forget.
func (p *Producer) Email(kind, recipient string, payload map[string]any) {
	p.push(&message{
		channel:   model.NotificationChannelEmail,
		kind:      kind,
		recipient: recipient,
		payload:   payload,
	})
}

// Push queues a push notification for a user. Fire-and-forget.
func (p *Producer) Push(kind string, userID uuid.UUID, payload map[string]any) {
	p.push(&message{
		channel:   model.NotificationChannelPush,
		kind:      kind,
		recipient: userID.String(),
		payload:   payload,
	})
}

func (p *Producer) push(msg *message) {
	prevSize := p.buffer.Size()
	p.buffer.PushBack(msg)

	if prevSize == 0 {
		// unblock the consumer and start sending messages
		select {
		case p.startConsumingCh <- struct{}{}:
		default:
		}
	}
}

func (p *Producer) Close() error {
	closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	g, _ := errgroup.WithContext(closeCtx)
	g.Go(func() error {
		p.doneCh <- struct{}{}
		return nil
	})
	if err := g.Wait(); err != nil {
		zap.S().Errorf("notification producer closed with error: %s", err)
		return err
	}

	zap.S().Named("notify_producer").Info("notification producer closed")
	return nil
}

func (p *Producer) run() {
	for {
		select {
		case <-p.doneCh:
			return
		default:
		}

		if p.buffer.Size() == 0 {
			select {
			case <-p.startConsumingCh:
			case <-p.doneCh:
				return
			}
		}

		msg := p.buffer.Pop()
		if msg == nil {
			continue
		}

		p.deliver(msg)
	}
}

func (p *Producer) deliver(msg *message) {
	ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
	defer cancel()

	var err error
	switch msg.channel {
	case model.NotificationChannelPush:
		var userID uuid.UUID
		if userID, err = uuid.Parse(msg.recipient); err == nil {
			err = p.sender.SendPush(ctx, userID, msg.payload)
		}
	default:
		err = p.sender.SendEmail(ctx, msg.kind, msg.recipient, msg.payload)
	}

	status := model.NotificationStatusSent
	if err != nil {
		status = model.NotificationStatusFailed
		zap.S().Named("notify_producer").Errorw("failed to send notification",
			"error", err, "kind", msg.kind, "channel", msg.channel)
	}
	metrics.IncreaseNotificationsTotalMetric(msg.channel, status)

	record := model.Notification{
		Channel:   msg.channel,
		Recipient: msg.recipient,
		Kind:      msg.kind,
		Status:    status,
		Payload:   model.MakeJSONField(msg.payload),
	}
	if err := p.records.Create(ctx, record); err != nil {
		zap.S().Named("notify_producer").Errorw("failed to record notification", "error", err)
	}
}
