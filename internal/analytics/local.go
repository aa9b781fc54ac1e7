package analytics

import (
	"context"
	"fmt"
	"time"

	"github.com/vogaflex/crm-insights/internal/models"
	"github.com/vogaflex/crm-insights/internal/service"
)

type EventLister interface {
	Events(ctx context.Context, q models.EventQuery) ([]models.RawEvent, error)
}

// Local answers dashboard requests by rolling up raw events itself, for
// deployments that read the pipeline database instead of the boundary API.
type Local struct {
	Source   EventLister
	Location *time.Location
	Hours    BusinessHours
	Limit    int
	Now      func() time.Time
}

func (l *Local) Dashboard(ctx context.Context, q models.DashboardQuery) (Payload, error) {
	now := time.Now
	if l.Now != nil {
		now = l.Now
	}
	// Conversations created inside the range may have later events, so only
	// the lower bound is pushed down.
	events, err := l.Source.Events(ctx, models.EventQuery{
		Limit:    l.Limit,
		DateFrom: q.DateFrom,
		Vendedor: q.Vendedor,
	})
	if err != nil {
		return Payload{}, fmt.Errorf("load events for dashboard: %w", err)
	}
	convs := service.BuildConversations(events, now(), l.Location)
	return Rollup(Input{Conversations: convs}, Options{
		DateFrom: q.DateFrom,
		DateTo:   q.DateTo,
		Vendor:   q.Vendedor,
		Location: l.Location,
		Hours:    l.Hours,
	}), nil
}
