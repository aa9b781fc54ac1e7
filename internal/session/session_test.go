package session

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vogaflex/crm-insights/internal/analytics"
	"github.com/vogaflex/crm-insights/internal/models"
	"github.com/vogaflex/crm-insights/internal/upstream"
)

var testNow = time.Date(2024, 5, 20, 12, 0, 0, 0, time.UTC)

type fakeEvents struct {
	mu       sync.Mutex
	events   []models.RawEvent
	messages map[string][]models.RawEvent
	err      error
	queries  []models.EventQuery
	// gates[n], when present, blocks the n-th Events call until it yields.
	gates []chan []models.RawEvent
}

func (f *fakeEvents) Events(ctx context.Context, q models.EventQuery) ([]models.RawEvent, error) {
	f.mu.Lock()
	f.queries = append(f.queries, q)
	var gate chan []models.RawEvent
	if n := len(f.queries) - 1; n < len(f.gates) {
		gate = f.gates[n]
	}
	events, err := f.events, f.err
	f.mu.Unlock()
	if gate != nil {
		select {
		case evs := <-gate:
			return evs, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return events, err
}

func (f *fakeEvents) Messages(_ context.Context, chatID string, _ int) ([]models.RawEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.messages[chatID], f.err
}

type fakeDashboards struct {
	calls    atomic.Int32
	payload  analytics.Payload
	byVendor map[string]analytics.Payload
	err      error
}

func (f *fakeDashboards) Dashboard(_ context.Context, q models.DashboardQuery) (analytics.Payload, error) {
	f.calls.Add(1)
	if f.err != nil {
		return analytics.Payload{}, f.err
	}
	if p, ok := f.byVendor[q.Vendedor]; ok {
		return p, nil
	}
	return f.payload, nil
}

func boolPtr(b bool) *bool { return &b }

func sampleEvents() []models.RawEvent {
	return []models.RawEvent{
		{ID: "1", ChatID: "c1", ClienteNome: "Maria", VendedorNome: "Ana", StatusConversa: "aberto", EtapaFunil: "Orçamento", DataCriacaoChat: "2024-05-10T10:00:00Z", EventoTimestamp: "2024-05-10T10:00:00Z", MsgConteudo: "Oi", MsgFromClient: boolPtr(true)},
		{ID: "2", ChatID: "c2", ClienteNome: "João", VendedorNome: "Bruno", StatusConversa: "perdido", EtapaFunil: "Perdido", DataCriacaoChat: "2024-05-12T10:00:00Z", EventoTimestamp: "2024-05-12T10:00:00Z", MsgConteudo: "Tchau", MsgFromClient: boolPtr(true)},
	}
}

func newSession(ev *fakeEvents, dash *fakeDashboards) *Session {
	return New(Options{
		Events:         ev,
		Dashboards:     dash,
		CacheTTL:       time.Minute,
		Location:       time.UTC,
		SearchDebounce: 10 * time.Millisecond,
		Logger:         zerolog.Nop(),
		Now:            func() time.Time { return testNow },
	})
}

func TestRefreshAndList(t *testing.T) {
	ev := &fakeEvents{events: sampleEvents()}
	s := newSession(ev, &fakeDashboards{})
	defer s.Close()

	require.NoError(t, s.RefreshConversations(context.Background()))

	view := s.List()
	assert.Equal(t, 2, view.Total)
	assert.Equal(t, "c2", view.Items[0].Key)
	assert.Equal(t, "c2", view.Selected)
	assert.Equal(t, []string{"Todos", "Ana", "Bruno"}, view.Options.Vendedores)
	assert.Equal(t, 1, view.Metrics.Active)
	assert.Equal(t, "c2", s.State().Filters.SelectedID)
}

func TestUpdateReportsServerSideChanges(t *testing.T) {
	s := newSession(&fakeEvents{}, &fakeDashboards{})
	defer s.Close()

	vendor := "Ana"
	assert.True(t, s.Update(StatePatch{Vendedor: &vendor}))
	assert.False(t, s.Update(StatePatch{Vendedor: &vendor}))

	dept := "Vendas"
	assert.False(t, s.Update(StatePatch{Departamento: &dept}))
	assert.Equal(t, "Vendas", s.State().Filters.Departamento)
}

func TestSearchIsDebounced(t *testing.T) {
	s := newSession(&fakeEvents{}, &fakeDashboards{})
	defer s.Close()

	for _, q := range []string{"m", "ma", "mar"} {
		q := q
		s.Update(StatePatch{Search: &q})
	}
	assert.Equal(t, "", s.State().Filters.Search)
	assert.Eventually(t, func() bool {
		return s.State().Filters.Search == "mar"
	}, time.Second, 5*time.Millisecond)
}

func TestStaleConversationResponseIsDiscarded(t *testing.T) {
	ev := &fakeEvents{gates: []chan []models.RawEvent{make(chan []models.RawEvent), make(chan []models.RawEvent)}}
	s := newSession(ev, &fakeDashboards{})
	defer s.Close()

	calls := func() int {
		ev.mu.Lock()
		defer ev.mu.Unlock()
		return len(ev.queries)
	}

	first := make(chan error, 1)
	go func() { first <- s.RefreshConversations(context.Background()) }()
	require.Eventually(t, func() bool { return calls() == 1 }, time.Second, time.Millisecond)

	second := make(chan error, 1)
	go func() { second <- s.RefreshConversations(context.Background()) }()
	require.Eventually(t, func() bool { return calls() == 2 }, time.Second, time.Millisecond)

	// The newer request answers first, then the older one.
	ev.gates[1] <- sampleEvents()[:1]
	require.NoError(t, <-second)
	ev.gates[0] <- sampleEvents()
	assert.ErrorIs(t, <-first, ErrStale)

	assert.Equal(t, 1, s.List().Total)
	assert.Equal(t, 1, s.State().ConversationCount)
}

func TestFailedRefreshKeepsPreviousData(t *testing.T) {
	ev := &fakeEvents{events: sampleEvents()}
	s := newSession(ev, &fakeDashboards{})
	defer s.Close()
	require.NoError(t, s.RefreshConversations(context.Background()))

	ev.mu.Lock()
	ev.err = &upstream.APIError{Status: 502, Message: "banco indisponível"}
	ev.mu.Unlock()

	err := s.RefreshConversations(context.Background())
	require.Error(t, err)

	st := s.State()
	assert.Equal(t, "banco indisponível", st.Error)
	assert.Equal(t, 2, st.ConversationCount)
	assert.Equal(t, "banco indisponível", s.List().Error)
}

func TestSelectUnknownConversation(t *testing.T) {
	s := newSession(&fakeEvents{}, &fakeDashboards{})
	defer s.Close()

	_, _, err := s.Select(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSelectBuildsTimeline(t *testing.T) {
	ev := &fakeEvents{
		events: sampleEvents(),
		messages: map[string][]models.RawEvent{
			"c1": {
				{ID: "10", ChatID: "c1", EventoTimestamp: "2024-05-10T10:00:00Z", MsgConteudo: "Oi", MsgFromClient: boolPtr(true)},
				{ID: "11", ChatID: "c1", EventoTimestamp: "2024-05-10T10:01:00Z", MsgConteudo: "*Ana* Segue o orçamento", MsgFromClient: boolPtr(false)},
			},
		},
	}
	s := newSession(ev, &fakeDashboards{})
	defer s.Close()
	require.NoError(t, s.RefreshConversations(context.Background()))

	_, entries, err := s.Select(context.Background(), "c1")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, models.RoleClient, entries[0].SenderRole)
	assert.Equal(t, models.RoleVendor, entries[1].SenderRole)
	assert.Equal(t, "c1", s.State().Filters.SelectedID)
}

func TestDashboardUsesCache(t *testing.T) {
	dash := &fakeDashboards{payload: analytics.Payload{SDR: analytics.SDR{Summary: analytics.Summary{Contacts: 7}}}}
	s := newSession(&fakeEvents{}, dash)
	defer s.Close()

	q, preset := s.DashboardQuery("", "", "", "Todos")
	assert.Equal(t, analytics.PresetMonth, preset)
	assert.Equal(t, models.DashboardQuery{DateFrom: "2024-05-01", DateTo: "2024-05-20"}, q)

	for i := 0; i < 2; i++ {
		p, err := s.Dashboard(context.Background(), q)
		require.NoError(t, err)
		assert.Equal(t, 7, p.SDR.Summary.Contacts)
	}
	assert.Equal(t, int32(1), dash.calls.Load())
}

func TestDashboardQueryExplicitDatesWin(t *testing.T) {
	s := newSession(&fakeEvents{}, &fakeDashboards{})
	defer s.Close()

	q, preset := s.DashboardQuery("2024-04-01", "2024-04-30", "week", "Ana")
	assert.Equal(t, "", preset)
	assert.Equal(t, models.DashboardQuery{DateFrom: "2024-04-01", DateTo: "2024-04-30", Vendedor: "Ana"}, q)
}

func TestVendorBreakdownFallsBackToSummary(t *testing.T) {
	dash := &fakeDashboards{
		payload: analytics.Payload{Vendors: analytics.Vendors{Summary: []analytics.VendorSummary{{Vendedor: "Ana", ContactsReceived: 4}}}},
		byVendor: map[string]analytics.Payload{
			"Ana": {ContactsBreakdown: &analytics.Breakdown{}},
		},
	}
	s := newSession(&fakeEvents{}, dash)
	defer s.Close()

	q, _ := s.DashboardQuery("", "", "", "")
	_, err := s.Dashboard(context.Background(), q)
	require.NoError(t, err)

	b, err := s.VendorBreakdown(context.Background(), q, "Ana")
	require.NoError(t, err)
	assert.Equal(t, "Ana", b.Vendor)
	assert.Equal(t, 4, b.Total)
}

func TestSnapshotCarriesPeriod(t *testing.T) {
	dash := &fakeDashboards{payload: analytics.Payload{Vendors: analytics.Vendors{Summary: []analytics.VendorSummary{{Vendedor: "Ana", ContactsReceived: 2}}}}}
	s := newSession(&fakeEvents{}, dash)
	defer s.Close()

	q, preset := s.DashboardQuery("", "", "week", "")
	snap, err := s.Snapshot(context.Background(), q, preset, "")
	require.NoError(t, err)
	assert.Equal(t, "2024-05-14", snap.DateFrom)
	assert.Equal(t, "2024-05-20", snap.DateTo)
	assert.Equal(t, "week", snap.Preset)
	assert.Equal(t, "Ana", snap.SelectedVendor)
}

func TestGeneration(t *testing.T) {
	var g Generation
	a := g.Begin()
	b := g.Begin()
	assert.False(t, g.Current(a))
	assert.True(t, g.Current(b))
}

func TestResetReportsServerSideChanges(t *testing.T) {
	s := newSession(&fakeEvents{}, &fakeDashboards{})
	defer s.Close()

	status := "aberto"
	require.True(t, s.Update(StatePatch{Status: &status}))
	assert.True(t, s.Reset())
	assert.Equal(t, models.AllOption, s.State().Filters.Status)
	assert.False(t, s.Reset())
}

func TestMonthViewPushesLowerBound(t *testing.T) {
	ev := &fakeEvents{}
	s := newSession(ev, &fakeDashboards{})
	defer s.Close()

	require.NoError(t, s.RefreshConversations(context.Background()))
	from, to := "2024-04-01", "2024-04-30"
	off := false
	s.Update(StatePatch{DateFrom: &from, DateTo: &to})
	require.NoError(t, s.RefreshConversations(context.Background()))
	empty := ""
	s.Update(StatePatch{DateFrom: &empty, DateTo: &empty, CurrentMonth: &off})
	require.NoError(t, s.RefreshConversations(context.Background()))

	ev.mu.Lock()
	defer ev.mu.Unlock()
	require.Len(t, ev.queries, 3)
	assert.Equal(t, "2024-05-01", ev.queries[0].DateFrom)
	assert.Equal(t, "", ev.queries[0].DateTo)
	assert.Equal(t, "2024-04-01", ev.queries[1].DateFrom)
	assert.Equal(t, "2024-04-30", ev.queries[1].DateTo)
	assert.Equal(t, "", ev.queries[2].DateFrom)
}
