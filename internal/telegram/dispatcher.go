package telegram

import (
	"context"
	"errors"
	"time"

	"github.com/deusflow/findigest/internal/digest"
	"github.com/deusflow/findigest/internal/logger"
	"github.com/deusflow/findigest/internal/metrics"
	"github.com/deusflow/findigest/internal/ratelimit"
	"github.com/deusflow/findigest/internal/retry"
)

// Sender delivers one message to one chat.
type Sender interface {
	SendMessage(ctx context.Context, chatID, text string) error
}

// Failure is one (recipient, part) pair that was not delivered.
type Failure struct {
	Recipient string
	Part      int
	Err       error
}

type Report struct {
	Sent     int
	Failures []Failure
}

func (r Report) Failed() int { return len(r.Failures) }

// Dispatcher sends every message to every recipient. A failure is logged and
// counted; it never stops the remaining sends.
type Dispatcher struct {
	sender  Sender
	pacer   *ratelimit.Pacer
	policy  retry.RetryConfig
	metrics *metrics.Metrics
}

// NewDispatcher wires a sender with pacing between parts to the same recipient and
// an attempt policy per part. A nil pacer disables pacing; nil m uses
// metrics.Global.
func NewDispatcher(sender Sender, pacer *ratelimit.Pacer, policy retry.RetryConfig, m *metrics.Metrics) *Dispatcher {
	if pacer == nil {
		pacer = ratelimit.NewPacer(0)
	}
	if m == nil {
		m = metrics.Global
	}
	return &Dispatcher{sender: sender, pacer: pacer, policy: policy, metrics: m}
}

// Deliver sends messages in order to each recipient. It returns early only when
// ctx is done; unsent parts are then reported as failures.
func (d *Dispatcher) Deliver(ctx context.Context, recipients []string, messages []digest.Message) Report {
	var report Report
	for _, chatID := range recipients {
		for _, msg := range messages {
			if err := d.pacer.Wait(ctx, chatID); err != nil {
				report.Failures = append(report.Failures, Failure{Recipient: chatID, Part: msg.Index, Err: err})
				d.metrics.IncrementDeliveryFailures()
				continue
			}

			start := time.Now()
			err := retry.WithRetry(ctx, d.policy, func(attempt int) error {
				err := d.sender.SendMessage(ctx, chatID, msg.Text)
				var de *DeliveryError
				if errors.As(err, &de) && !de.Temporary() {
					return retry.Permanent(err)
				}
				if err != nil && attempt > 1 {
					logger.Debug("delivery attempt failed", "chat_id", chatID, "part", msg.Index+1, "attempt", attempt, "error", err)
				}
				return err
			})
			if err != nil {
				logger.Error("delivery failed", "chat_id", chatID, "part", msg.Index+1, "of", len(messages), "error", err)
				report.Failures = append(report.Failures, Failure{Recipient: chatID, Part: msg.Index, Err: err})
				d.metrics.IncrementDeliveryFailures()
				continue
			}

			report.Sent++
			d.metrics.IncrementTelegramMessagesSent()
			logger.Info("message sent", "chat_id", chatID, "part", msg.Index+1, "of", len(messages),
				"length", len(msg.Text), "elapsed", time.Since(start).Round(time.Millisecond))
		}
	}
	return report
}
