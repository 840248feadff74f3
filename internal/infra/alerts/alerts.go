package alerts

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/Spok95/workstock/internal/domain/materials"
	"github.com/Spok95/workstock/internal/workorders"
)

// Sender is the part of *tgbotapi.BotAPI used here.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Telegram posts operator alerts to one chat (a group or a private chat).
type Telegram struct {
	api    Sender
	chatID int64
	log    *slog.Logger
}

func NewTelegram(api Sender, chatID int64, log *slog.Logger) *Telegram {
	return &Telegram{api: api, chatID: chatID, log: log}
}

func (t *Telegram) CriticalInconsistency(_ context.Context, e *workorders.InconsistencyError) {
	t.send(criticalText(e))
}

func (t *Telegram) LowStock(_ context.Context, m materials.Material) {
	t.send(lowStockText(m))
}

func (t *Telegram) send(text string) {
	if t.chatID == 0 {
		return
	}
	if _, err := t.api.Send(tgbotapi.NewMessage(t.chatID, text)); err != nil {
		t.log.Error("alert send failed", "chat_id", t.chatID, "err", err)
	}
}

// Log only writes alerts to the process log.
type Log struct{ log *slog.Logger }

func NewLog(log *slog.Logger) *Log { return &Log{log: log} }

func (l *Log) CriticalInconsistency(_ context.Context, e *workorders.InconsistencyError) {
	l.log.Error("ALERT", "text", criticalText(e))
}

func (l *Log) LowStock(_ context.Context, m materials.Material) {
	l.log.Warn("ALERT", "text", lowStockText(m))
}

func criticalText(e *workorders.InconsistencyError) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🚨 Stock and order materials diverged (incident %s)\n", e.IncidentID)
	fmt.Fprintf(&b, "operation: %s\n", e.Op)
	fmt.Fprintf(&b, "order: %d, material: %d, entry: %d, qty: %d\n", e.OrderID, e.MaterialID, e.EntryID, e.Quantity)
	fmt.Fprintf(&b, "done: %s, failed: %s\n", e.Completed, e.Failed)
	fmt.Fprintf(&b, "error: %v\n", e.Err)
	b.WriteString("Do not retry. Check the material's stock against the order's materials and fix by hand.")
	return b.String()
}

func lowStockText(m materials.Material) string {
	return fmt.Sprintf("⚠️ Low stock:\n— %s (%s): %d left, reorder at %d",
		m.Name, m.SKU, m.QuantityOnHand, m.ReorderThreshold)
}
