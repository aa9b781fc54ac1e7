package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/vogaflex/crm-insights/internal/analytics"
	"github.com/vogaflex/crm-insights/internal/models"
	"github.com/vogaflex/crm-insights/internal/session"
	"github.com/vogaflex/crm-insights/internal/upstream"
)

type stubSource struct {
	events   []models.RawEvent
	messages []models.RawEvent
	payload  analytics.Payload
	err      error
	queries  []models.EventQuery
}

func (s *stubSource) Events(_ context.Context, q models.EventQuery) ([]models.RawEvent, error) {
	s.queries = append(s.queries, q)
	return s.events, s.err
}

func (s *stubSource) Messages(context.Context, string, int) ([]models.RawEvent, error) {
	return s.messages, s.err
}

func (s *stubSource) Dashboard(context.Context, models.DashboardQuery) (analytics.Payload, error) {
	return s.payload, s.err
}

func fromClient(b bool) *bool { return &b }

func newTestRouter(t *testing.T, src *stubSource) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	sess := session.New(session.Options{
		Events:     src,
		Dashboards: src,
		Location:   time.UTC,
		Logger:     zerolog.Nop(),
		Now:        func() time.Time { return time.Date(2024, 5, 20, 12, 0, 0, 0, time.UTC) },
	})
	t.Cleanup(sess.Close)

	h := &Handler{Session: sess, Validator: validator.New(), Logger: zerolog.Nop()}
	r := gin.New()
	r.GET("/api/state", h.State)
	r.PATCH("/api/state", h.UpdateState)
	r.POST("/api/refresh", h.Refresh)
	r.GET("/api/conversations", h.Conversations)
	r.GET("/api/conversations/:id/messages", h.Messages)
	r.GET("/api/dashboard", h.Dashboard)
	r.GET("/api/dashboard/vendors/:vendor/breakdown", h.VendorBreakdown)
	r.GET("/api/export.csv", h.Export)
	return r
}

func do(r *gin.Engine, method, path string, body []byte) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func sampleSource() *stubSource {
	return &stubSource{
		events: []models.RawEvent{
			{ID: "1", ChatID: "c1", Protocolo: "P-1", ClienteNome: "Maria \"Mari\"", VendedorNome: "Ana", StatusConversa: "aberto", EtapaFunil: "Orçamento", ValorOrcamento: 150.0, DataCriacaoChat: "2024-05-10T10:00:00Z", EventoTimestamp: "2024-05-10T10:00:00Z"},
		},
		messages: []models.RawEvent{
			{ID: "10", ChatID: "c1", EventoTimestamp: "2024-05-10T10:00:00Z", MsgConteudo: "Oi", MsgFromClient: fromClient(true)},
		},
	}
}

func TestConversationsList(t *testing.T) {
	r := newTestRouter(t, sampleSource())
	w := do(r, http.MethodGet, "/api/conversations", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var view session.ListView
	if err := json.Unmarshal(w.Body.Bytes(), &view); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if view.Total != 1 || view.Selected != "c1" {
		t.Fatalf("unexpected view: %+v", view)
	}
	if view.Metrics.TotalValue != 150 {
		t.Fatalf("expected total value 150, got %v", view.Metrics.TotalValue)
	}
}

func TestUpstreamErrorIsVerbatim(t *testing.T) {
	src := sampleSource()
	src.err = &upstream.APIError{Status: 500, Message: "relation smclick_raw_events does not exist"}
	r := newTestRouter(t, src)

	w := do(r, http.MethodPost, "/api/refresh", nil)
	if w.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", w.Code)
	}
	var body struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Error.Code != "UPSTREAM_ERROR" || body.Error.Message != "relation smclick_raw_events does not exist" {
		t.Fatalf("unexpected error body: %+v", body)
	}

	w = do(r, http.MethodGet, "/api/state", nil)
	if !strings.Contains(w.Body.String(), "relation smclick_raw_events does not exist") {
		t.Fatalf("expected banner in state, got %s", w.Body.String())
	}
}

func TestMessagesUnknownConversation(t *testing.T) {
	r := newTestRouter(t, sampleSource())
	w := do(r, http.MethodGet, "/api/conversations/nope/messages", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestMessagesTimeline(t *testing.T) {
	r := newTestRouter(t, sampleSource())
	w := do(r, http.MethodGet, "/api/conversations/c1/messages", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var resp MessagesResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Messages) != 1 || resp.Messages[0].SenderRole != models.RoleClient {
		t.Fatalf("unexpected messages: %+v", resp.Messages)
	}
}

func TestUpdateStateValidatesDates(t *testing.T) {
	r := newTestRouter(t, sampleSource())
	w := do(r, http.MethodPatch, "/api/state", []byte(`{"date_from":"20/05/2024"}`))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}

	w = do(r, http.MethodPatch, "/api/state", []byte(`{"date_from":"2024-05-01","current_month":false}`))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var st session.StateView
	if err := json.Unmarshal(w.Body.Bytes(), &st); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if st.Filters.DateFrom != "2024-05-01" || st.Filters.CurrentMonth {
		t.Fatalf("unexpected filters: %+v", st.Filters)
	}
	if st.ConversationCount != 1 {
		t.Fatalf("expected refetch after date change, got %d conversations", st.ConversationCount)
	}
}

func TestDashboardSnapshot(t *testing.T) {
	src := sampleSource()
	src.payload = analytics.Payload{
		SDR: analytics.SDR{Summary: analytics.Summary{Contacts: 10, Sales: 4}},
		Vendors: analytics.Vendors{Summary: []analytics.VendorSummary{
			{Vendedor: "Ana", ContactsReceived: 6, BudgetsCount: 3},
		}},
	}
	r := newTestRouter(t, src)

	w := do(r, http.MethodGet, "/api/dashboard?preset=week", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var snap analytics.Snapshot
	if err := json.Unmarshal(w.Body.Bytes(), &snap); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if snap.DateFrom != "2024-05-14" || snap.Summary.Contacts != 10 || snap.SelectedVendor != "Ana" {
		t.Fatalf("unexpected snapshot: %+v", snap)
	}

	w = do(r, http.MethodGet, "/api/dashboard?preset=year", nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown preset, got %d", w.Code)
	}
}

func TestVendorBreakdownEndpoint(t *testing.T) {
	src := sampleSource()
	total := 5.0
	src.payload = analytics.Payload{ContactsBreakdown: &analytics.Breakdown{Total: &total}}
	r := newTestRouter(t, src)

	w := do(r, http.MethodGet, "/api/dashboard/vendors/Ana/breakdown", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var b analytics.ContactBreakdown
	if err := json.Unmarshal(w.Body.Bytes(), &b); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if b.Vendor != "Ana" || b.Total != 5 || b.Other != 5 {
		t.Fatalf("unexpected breakdown: %+v", b)
	}
}

func TestExportCSV(t *testing.T) {
	r := newTestRouter(t, sampleSource())
	w := do(r, http.MethodGet, "/api/export.csv", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/csv") {
		t.Fatalf("unexpected content type %q", ct)
	}
	lines := strings.Split(strings.TrimRight(w.Body.String(), "\n"), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected header and one row, got %q", w.Body.String())
	}
	if !strings.Contains(lines[1], `"Maria ""Mari"""`) {
		t.Fatalf("expected doubled quotes in %q", lines[1])
	}
}

func TestResetRefetchesConversations(t *testing.T) {
	src := sampleSource()
	r := newTestRouter(t, src)

	w := do(r, http.MethodPatch, "/api/state", []byte(`{"status":"aberto"}`))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	w = do(r, http.MethodPatch, "/api/state?reset=1", []byte(`{}`))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	if len(src.queries) != 2 {
		t.Fatalf("expected a refetch after reset, got %d queries", len(src.queries))
	}
	if src.queries[0].Status != "aberto" {
		t.Fatalf("expected first query filtered by status, got %q", src.queries[0].Status)
	}
	if src.queries[1].Status != models.AllOption {
		t.Fatalf("expected reset query without status filter, got %q", src.queries[1].Status)
	}
}
