package upstream

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/vogaflex/crm-insights/internal/models"
)

func TestEventsSendsFilters(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/conversations/" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("limit") != "50" || q.Get("vendedor") != "Ana" || q.Has("status") {
			t.Errorf("unexpected query %s", r.URL.RawQuery)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"conversations":[{"id":7,"chat_id":123,"protocolo":null,"valor_orcamento":"1.500,00","msg_from_client":null}]}`))
	}))
	defer srv.Close()

	c := &Client{BaseURL: srv.URL + "/"}
	events, err := c.Events(context.Background(), models.EventQuery{Limit: 50, Status: "Todos", Vendedor: "Ana"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	e := events[0]
	if e.ID != "7" || e.ChatID != "123" || e.Protocolo != "" || e.MsgFromClient != nil {
		t.Fatalf("unexpected decoded event %+v", e)
	}
}

func TestMessagesSurfacesServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"chat_id_required"}`))
	}))
	defer srv.Close()

	c := &Client{BaseURL: srv.URL}
	_, err := c.Messages(context.Background(), "", 0)
	apiErr, ok := AsAPIError(err)
	if !ok {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.Status != http.StatusBadRequest || apiErr.Message != "chat_id_required" {
		t.Fatalf("unexpected api error %+v", apiErr)
	}
}

func TestDashboardFallsBackToStatusText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte(`<html>bad gateway</html>`))
	}))
	defer srv.Close()

	c := &Client{BaseURL: srv.URL}
	_, err := c.Dashboard(context.Background(), models.DashboardQuery{DateFrom: "2024-05-01"})
	apiErr, ok := AsAPIError(err)
	if !ok || apiErr.Message != "Bad Gateway" {
		t.Fatalf("expected status text message, got %v", err)
	}
}

func TestDashboardDecodesPayload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("date_from") != "2024-05-01" {
			t.Errorf("missing date_from in %s", r.URL.RawQuery)
		}
		_, _ = w.Write([]byte(`{"stats":{"avg_duration_seconds":120},"sdr":{"summary":{"contacts":3}},` +
			`"contacts_breakdown":{"total":3,"other":null,"stages":[]},"vendors":{"summary":[],"scores":{}}}`))
	}))
	defer srv.Close()

	c := &Client{BaseURL: srv.URL}
	p, err := c.Dashboard(context.Background(), models.DashboardQuery{DateFrom: "2024-05-01"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.SDR.Summary.Contacts != 3 || p.Stats.AvgDurationSeconds != 120 {
		t.Fatalf("unexpected payload %+v", p)
	}
	if p.ContactsBreakdown == nil || p.ContactsBreakdown.Total == nil || *p.ContactsBreakdown.Total != 3 || p.ContactsBreakdown.Other != nil {
		t.Fatalf("unexpected breakdown %+v", p.ContactsBreakdown)
	}
}
