package timeline

import (
	"strings"

	"github.com/vogaflex/crm-insights/internal/models"
	"github.com/vogaflex/crm-insights/internal/normalize"
)

// Dedupe drops repeated deliveries of the same message. Events are compared by
// chat, timestamp, direction, type and cleaned content; the first copy wins.
func Dedupe(events []models.RawEvent, fallbackChatID string) []models.RawEvent {
	seen := make(map[string]struct{}, len(events))
	out := make([]models.RawEvent, 0, len(events))
	for _, e := range events {
		sig := signature(e, fallbackChatID)
		if _, dup := seen[sig]; dup {
			continue
		}
		seen[sig] = struct{}{}
		out = append(out, e)
	}
	return out
}

func signature(e models.RawEvent, fallbackChatID string) string {
	chatID := e.ChatID.String()
	if chatID == "" {
		chatID = fallbackChatID
	}
	direction := "0"
	if e.FromClient() {
		direction = "1"
	}
	return strings.Join([]string{
		chatID,
		e.EventoTimestamp,
		direction,
		normalize.Text(e.MsgTipo),
		Clean(Content(e)),
	}, "|")
}

// Build turns a conversation's raw message events into display entries.
func Build(events []models.RawEvent, conv models.Conversation) []models.MessageEntry {
	deduped := Dedupe(events, conv.Key)
	out := make([]models.MessageEntry, 0, len(deduped))
	for _, e := range deduped {
		out = append(out, Classify(e, conv))
	}
	return out
}
