// Package notify delivers operator alerts for diary events over one or more
// channels (Telegram, Discord). Events can be filtered so operators receive
// only the alerts they care about.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ksenkin/tradediary/internal/domain"
)

// Diary event types.
const (
	EventSyncCompleted  = "sync_completed"
	EventSyncFailed     = "sync_failed"
	EventUnmatchedSell  = "unmatched_sell"
	EventPositionClosed = "position_closed"
)

// Sender is the interface that each notification channel must implement.
type Sender interface {
	// Send delivers a notification with the given title and message body.
	Send(ctx context.Context, title, message string) error
	// Name returns a human-readable identifier for the sender.
	Name() string
}

// Notifier dispatches notifications to one or more Senders, filtered by an
// allowed set of event types. An empty set allows everything.
type Notifier struct {
	senders []Sender
	events  map[string]bool
	logger  *slog.Logger
}

// NewNotifier creates a Notifier that delivers to the given senders. Only
// events whose type appears in the events slice are forwarded; an empty
// slice allows all event types.
func NewNotifier(senders []Sender, events []string, logger *slog.Logger) *Notifier {
	allowed := make(map[string]bool, len(events))
	for _, e := range events {
		allowed[strings.TrimSpace(e)] = true
	}
	return &Notifier{
		senders: senders,
		events:  allowed,
		logger:  logger.With(slog.String("component", "notifier")),
	}
}

// SyncCompleted reports the outcome of one ingestion batch. A summary with
// unmatched sell quantity additionally raises the unmatched_sell event,
// since that usually means the sync lookback missed the original buys.
func (n *Notifier) SyncCompleted(ctx context.Context, ownerID int64, exchange string, summary domain.SyncSummary) {
	msg := fmt.Sprintf(
		"owner %d (%s): %d executions, %d opened, %d closed, %d dust",
		ownerID, exchange,
		summary.ExecutionsReceived, summary.BuysCreated,
		summary.SellMatchesClosed, summary.DustClosed,
	)
	n.Notify(ctx, EventSyncCompleted, "Sync completed", msg)

	if summary.UnmatchedSellQuantity > 0 {
		n.Notify(ctx, EventUnmatchedSell, "Unmatched sell quantity",
			fmt.Sprintf("owner %d (%s): %v sold without a tracked buy",
				ownerID, exchange, summary.UnmatchedSellQuantity))
	}
}

// SyncFailed reports an ingestion batch that errored.
func (n *Notifier) SyncFailed(ctx context.Context, ownerID int64, exchange string, err error) {
	n.Notify(ctx, EventSyncFailed, "Sync failed",
		fmt.Sprintf("owner %d (%s): %v", ownerID, exchange, err))
}

// PositionClosed reports a manual position close.
func (n *Notifier) PositionClosed(ctx context.Context, pos domain.Position) {
	pl := 0.0
	if pos.ProfitLoss != nil {
		pl = *pos.ProfitLoss
	}
	n.Notify(ctx, EventPositionClosed, "Position closed",
		fmt.Sprintf("%s position %d closed, P/L %v", pos.Symbol, pos.ID, pl))
}

// Notify sends a notification to all senders if the event type is allowed.
// Delivery is best-effort; failures are logged, never propagated, because
// no diary operation should fail on a down webhook.
func (n *Notifier) Notify(ctx context.Context, event, title, message string) {
	if len(n.events) > 0 && !n.events[event] {
		n.logger.DebugContext(ctx, "event filtered out", slog.String("event", event))
		return
	}

	for _, s := range n.senders {
		if err := s.Send(ctx, title, message); err != nil {
			n.logger.ErrorContext(ctx, "sender failed",
				slog.String("sender", s.Name()),
				slog.String("event", event),
				slog.String("error", err.Error()),
			)
			continue
		}
		n.logger.DebugContext(ctx, "notification sent",
			slog.String("sender", s.Name()),
			slog.String("title", title),
		)
	}
}
