// Package notify fans operator alerts about market resolutions out to chat
// webhooks. Alerts can be filtered by event kind.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"
)

// Sender delivers one alert to one channel.
type Sender interface {
	Send(ctx context.Context, title, message string) error
	Name() string
}

// Notifier dispatches alerts to every configured Sender.
type Notifier struct {
	senders []Sender
	events  map[string]bool
	logger  *slog.Logger
}

// NewNotifier creates a Notifier. Only event kinds listed in events are
// forwarded; an empty list forwards everything.
func NewNotifier(senders []Sender, events []string, logger *slog.Logger) *Notifier {
	allowed := make(map[string]bool, len(events))
	for _, e := range events {
		if e = strings.TrimSpace(e); e != "" {
			allowed[e] = true
		}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Notifier{
		senders: senders,
		events:  allowed,
		logger:  logger.With(slog.String("component", "notifier")),
	}
}

// Enabled reports whether at least one sender is configured.
func (n *Notifier) Enabled() bool { return len(n.senders) > 0 }

// Notify sends the alert for event to all senders at once. Every sender is
// tried; failures are logged and joined into the returned error.
func (n *Notifier) Notify(ctx context.Context, event, title, message string) error {
	if !n.wants(event) {
		n.logger.DebugContext(ctx, "event filtered out", slog.String("event", event))
		return nil
	}

	errs := make([]error, len(n.senders))
	var g errgroup.Group
	for i, s := range n.senders {
		g.Go(func() error {
			errs[i] = n.deliver(ctx, s, event, title, message)
			return nil
		})
	}
	_ = g.Wait()

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("notify: %w", err)
	}
	return nil
}

func (n *Notifier) wants(event string) bool {
	return len(n.senders) > 0 && (len(n.events) == 0 || n.events[event])
}

func (n *Notifier) deliver(ctx context.Context, s Sender, event, title, message string) error {
	log := n.logger.With(slog.String("sender", s.Name()), slog.String("event", event))
	if err := s.Send(ctx, title, message); err != nil {
		log.ErrorContext(ctx, "sender failed", slog.String("error", err.Error()))
		return fmt.Errorf("%s: %w", s.Name(), err)
	}
	log.DebugContext(ctx, "notification sent")
	return nil
}
