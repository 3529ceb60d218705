// Package notify sends best-effort customer messages when workflow documents
// are issued.
package notify

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Message is addressed to a customer account, not a phone number.
type Message struct {
	CustomerID uuid.UUID
	Event      string
	Body       string
}

// Notifier delivers messages.
type Notifier interface {
	Notify(ctx context.Context, msg Message) error
}

// PhoneBook resolves a customer's phone number.
type PhoneBook interface {
	ContactPhone(ctx context.Context, userID uuid.UUID) (string, error)
}

// LogNotifier writes messages to the log instead of delivering them.
type LogNotifier struct {
	Logger *slog.Logger
}

func (n LogNotifier) Notify(ctx context.Context, msg Message) error {
	n.Logger.InfoContext(ctx, "notification",
		slog.String("event", msg.Event),
		slog.String("customer_id", msg.CustomerID.String()),
		slog.String("body", msg.Body),
	)
	return nil
}

// Async delivers in the background so callers never wait on or fail because
// of delivery. Errors are logged.
type Async struct {
	next    Notifier
	logger  *slog.Logger
	timeout time.Duration
}

func NewAsync(next Notifier, logger *slog.Logger) *Async {
	return &Async{next: next, logger: logger, timeout: 15 * time.Second}
}

func (a *Async) Notify(ctx context.Context, msg Message) error {
	go func() {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.timeout)
		defer cancel()
		if err := a.next.Notify(ctx, msg); err != nil {
			a.logger.WarnContext(ctx, "notification failed",
				slog.String("event", msg.Event),
				slog.String("customer_id", msg.CustomerID.String()),
				slog.Any("error", err),
			)
		}
	}()
	return nil
}

// Discard drops every message.
type Discard struct{}

func (Discard) Notify(context.Context, Message) error { return nil }
