package db

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/vogaflex/crm-insights/internal/models"
)

func TestFormatTime(t *testing.T) {
	if got := formatTime(nil); got != "" {
		t.Fatalf("expected empty string for nil, got %q", got)
	}
	loc := time.FixedZone("BRT", -3*3600)
	ts := time.Date(2024, 5, 1, 9, 30, 0, 0, loc)
	if got := formatTime(&ts); got != "2024-05-01T12:30:00Z" {
		t.Fatalf("unexpected format %q", got)
	}
}

func TestListEventsIntegration(t *testing.T) {
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	store, err := New(context.Background(), url)
	if err != nil {
		t.Fatalf("db connect: %v", err)
	}
	defer store.Close()

	events, err := store.Events(context.Background(), models.EventQuery{Limit: 10, Status: models.AllOption})
	if err != nil {
		t.Fatalf("list events: %v", err)
	}
	if len(events) > 10 {
		t.Fatalf("expected at most 10 events, got %d", len(events))
	}
}
