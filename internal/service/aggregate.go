package service

import (
	"sort"
	"time"

	"github.com/vogaflex/crm-insights/internal/models"
	"github.com/vogaflex/crm-insights/internal/normalize"
)

// GroupKey is chat_id, then protocolo, then id. Every caller that needs to
// identify a conversation goes through here so counts never diverge.
func GroupKey(e models.RawEvent) string {
	if e.ChatID != "" {
		return e.ChatID.String()
	}
	if e.Protocolo != "" {
		return e.Protocolo.String()
	}
	return e.ID.String()
}

// BuildConversations groups events by GroupKey and resolves each group into one
// Conversation. Groups keep the order in which their first event was seen.
func BuildConversations(events []models.RawEvent, now time.Time, loc *time.Location) []models.Conversation {
	order := make([]string, 0)
	groups := map[string][]models.RawEvent{}
	for _, e := range events {
		key := GroupKey(e)
		if _, ok := groups[key]; !ok {
			order = append(order, key)
		}
		groups[key] = append(groups[key], e)
	}

	out := make([]models.Conversation, 0, len(order))
	for _, key := range order {
		sorted := SortTimeline(groups[key], now, loc)
		latest := latestEvent(sorted)
		budget, budgetEvent := lastPositiveBudget(sorted)

		conv := models.Conversation{
			Key:            key,
			RawEvent:       latest,
			ValorOrcamento: budget,
			Timeline:       sorted,
		}
		conv.ChatID = models.FlexString(key)
		if budgetEvent != nil {
			conv.BudgetUpdatedAt = normalize.BasisValue(*budgetEvent)
		}
		out = append(out, conv)
	}
	return out
}

// SortTimeline returns a copy of events ordered by PickTimestamp; ties keep input order.
func SortTimeline(events []models.RawEvent, now time.Time, loc *time.Location) []models.RawEvent {
	stamped := make([]stampedEvent, len(events))
	for i, e := range events {
		stamped[i] = stampedEvent{event: e, at: normalize.PickTimestamp(e, now, loc)}
	}
	sort.SliceStable(stamped, func(i, j int) bool {
		return stamped[i].at.Before(stamped[j].at)
	})
	out := make([]models.RawEvent, len(stamped))
	for i, s := range stamped {
		out[i] = s.event
	}
	return out
}

type stampedEvent struct {
	event models.RawEvent
	at    time.Time
}

// latestEvent is the "latest wins" fold: the last event of the ascending timeline.
func latestEvent(sorted []models.RawEvent) models.RawEvent {
	if len(sorted) == 0 {
		return models.RawEvent{}
	}
	return sorted[len(sorted)-1]
}

// lastPositiveBudget scans newest to oldest for a strictly positive budget.
// Zero-valued status updates never erase an earlier figure.
func lastPositiveBudget(sorted []models.RawEvent) (float64, *models.RawEvent) {
	for i := len(sorted) - 1; i >= 0; i-- {
		if v := normalize.Money(sorted[i].ValorOrcamento); v > 0 {
			return v, &sorted[i]
		}
	}
	return 0, nil
}

// SortByRecency orders conversations newest first without touching the input.
func SortByRecency(convs []models.Conversation, now time.Time, loc *time.Location) []models.Conversation {
	type stamped struct {
		conv models.Conversation
		at   time.Time
	}
	items := make([]stamped, len(convs))
	for i, c := range convs {
		items[i] = stamped{conv: c, at: normalize.PickTimestamp(c.RawEvent, now, loc)}
	}
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].at.After(items[j].at)
	})
	out := make([]models.Conversation, len(items))
	for i, it := range items {
		out[i] = it.conv
	}
	return out
}
