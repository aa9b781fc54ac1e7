package session

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/vogaflex/crm-insights/internal/analytics"
	"github.com/vogaflex/crm-insights/internal/cache"
	"github.com/vogaflex/crm-insights/internal/metrics"
	"github.com/vogaflex/crm-insights/internal/models"
	"github.com/vogaflex/crm-insights/internal/normalize"
	"github.com/vogaflex/crm-insights/internal/service"
	"github.com/vogaflex/crm-insights/internal/timeline"
	"github.com/vogaflex/crm-insights/internal/upstream"
)

const (
	FlowConversations = "conversations"
	FlowMessages      = "messages"
	FlowAnalytics     = "analytics"
	FlowBreakdown     = "vendor_breakdown"
)

var (
	ErrNotFound = errors.New("conversation not found")
	// ErrStale reports that a newer request of the same flow superseded this one.
	ErrStale = errors.New("response superseded by a newer request")
)

type EventSource interface {
	Events(ctx context.Context, q models.EventQuery) ([]models.RawEvent, error)
	Messages(ctx context.Context, chatID string, limit int) ([]models.RawEvent, error)
}

type DashboardSource interface {
	Dashboard(ctx context.Context, q models.DashboardQuery) (analytics.Payload, error)
}

type Options struct {
	Events            EventSource
	Dashboards        DashboardSource
	Cache             cache.Cache
	CacheTTL          time.Duration
	Location          *time.Location
	ConversationLimit int
	MessageLimit      int
	SearchDebounce    time.Duration
	Logger            zerolog.Logger
	Now               func() time.Time
}

// Session owns everything the dashboard shows: the raw event cache, filter
// state, the selected conversation's messages and the analytics payloads.
// Fetches run outside the lock; commits are generation-checked under it.
type Session struct {
	events     EventSource
	dashboards DashboardSource
	cache      cache.Cache
	cacheTTL   time.Duration
	loc        *time.Location
	convLimit  int
	msgLimit   int
	logger     zerolog.Logger
	now        func() time.Time

	convGen      Generation
	msgGen       Generation
	dashGen      Generation
	breakdownGen Generation
	search       *Debouncer

	mu            sync.Mutex
	state         models.FilterState
	loaded        bool
	conversations []models.Conversation
	messages      []models.MessageEntry
	messagesFor   string
	dashboard     *analytics.Payload
	dashQuery     models.DashboardQuery
	errMsg        string
	loading       map[string]bool
	runs          map[string]models.Run
}

func New(opts Options) *Session {
	loc := opts.Location
	if loc == nil {
		loc = time.UTC
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	c := opts.Cache
	if c == nil {
		c = cache.NewMemory()
	}
	return &Session{
		events:     opts.Events,
		dashboards: opts.Dashboards,
		cache:      c,
		cacheTTL:   opts.CacheTTL,
		loc:        loc,
		convLimit:  opts.ConversationLimit,
		msgLimit:   opts.MessageLimit,
		logger:     opts.Logger,
		now:        now,
		search:     &Debouncer{Delay: opts.SearchDebounce},
		state:      models.DefaultFilterState(),
		loading:    map[string]bool{},
		runs:       map[string]models.Run{},
	}
}

func (s *Session) Close() {
	s.search.Stop()
}

func (s *Session) Location() *time.Location {
	return s.loc
}

func (s *Session) Now() time.Time {
	return s.now()
}

// RefreshConversations refetches the raw events for the current server-side
// filters and rebuilds the conversation list.
func (s *Session) RefreshConversations(ctx context.Context) error {
	token := s.convGen.Begin()
	s.mu.Lock()
	q := s.eventQueryLocked()
	s.mu.Unlock()

	run := s.startRun(FlowConversations, token)
	events, err := s.events.Events(ctx, q)

	var convs []models.Conversation
	if err == nil {
		convs = service.BuildConversations(events, s.now(), s.loc)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.convGen.Current(token) {
		s.discardLocked(run)
		return ErrStale
	}
	if err != nil {
		s.failLocked(run, err)
		return err
	}
	s.conversations = convs
	s.loaded = true
	s.errMsg = ""
	metrics.ConversationsLoaded.Set(float64(len(convs)))
	s.finishLocked(run, len(convs))
	return nil
}

// EnsureLoaded performs the initial conversation fetch once.
func (s *Session) EnsureLoaded(ctx context.Context) error {
	s.mu.Lock()
	loaded := s.loaded
	s.mu.Unlock()
	if loaded {
		return nil
	}
	err := s.RefreshConversations(ctx)
	if errors.Is(err, ErrStale) {
		return nil
	}
	return err
}

func (s *Session) eventQueryLocked() models.EventQuery {
	q := models.EventQuery{
		Limit:    s.convLimit,
		Status:   s.state.Status,
		Etapa:    s.state.Etapa,
		DateFrom: s.state.DateFrom,
		DateTo:   s.state.DateTo,
		Vendedor: s.state.Vendedor,
	}
	// The month view pushes its lower bound so the limit is spent inside the month.
	if s.state.CurrentMonth && q.DateFrom == "" && q.DateTo == "" {
		local := s.now().In(s.loc)
		q.DateFrom = time.Date(local.Year(), local.Month(), 1, 0, 0, 0, 0, s.loc).Format("2006-01-02")
	}
	return q
}

// Select makes id the selected conversation and loads its message timeline.
func (s *Session) Select(ctx context.Context, id string) (models.Conversation, []models.MessageEntry, error) {
	token := s.msgGen.Begin()
	s.mu.Lock()
	conv, ok := s.findLocked(id)
	if ok {
		s.state.SelectedID = id
	}
	s.mu.Unlock()
	if !ok {
		return models.Conversation{}, nil, ErrNotFound
	}

	run := s.startRun(FlowMessages, token)
	raw, err := s.events.Messages(ctx, id, s.msgLimit)
	var entries []models.MessageEntry
	if err == nil {
		entries = timeline.Build(raw, conv)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.msgGen.Current(token) {
		s.discardLocked(run)
		return conv, nil, ErrStale
	}
	if err != nil {
		s.failLocked(run, err)
		return conv, nil, err
	}
	s.messages = entries
	s.messagesFor = id
	s.errMsg = ""
	s.finishLocked(run, len(entries))
	return conv, entries, nil
}

func (s *Session) findLocked(id string) (models.Conversation, bool) {
	for _, c := range s.conversations {
		if c.Key == id {
			return c, true
		}
	}
	return models.Conversation{}, false
}

// Dashboard returns the analytics payload for q, through the cache.
func (s *Session) Dashboard(ctx context.Context, q models.DashboardQuery) (analytics.Payload, error) {
	token := s.dashGen.Begin()
	run := s.startRun(FlowAnalytics, token)
	p, err := s.fetchDashboard(ctx, q)

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.dashGen.Current(token) {
		s.discardLocked(run)
		return analytics.Payload{}, ErrStale
	}
	if err != nil {
		s.failLocked(run, err)
		return analytics.Payload{}, err
	}
	s.dashboard = &p
	s.dashQuery = q
	s.errMsg = ""
	s.finishLocked(run, p.SDR.Summary.Contacts)
	return p, nil
}

// VendorBreakdown fetches the contact breakdown scoped to one vendor.
func (s *Session) VendorBreakdown(ctx context.Context, q models.DashboardQuery, vendor string) (analytics.ContactBreakdown, error) {
	token := s.breakdownGen.Begin()
	run := s.startRun(FlowBreakdown, token)
	scoped := q
	scoped.Vendedor = vendor
	p, err := s.fetchDashboard(ctx, scoped)

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.breakdownGen.Current(token) {
		s.discardLocked(run)
		return analytics.ContactBreakdown{}, ErrStale
	}
	if err != nil {
		s.failLocked(run, err)
		return analytics.ContactBreakdown{}, err
	}

	fallback := 0
	if s.dashboard != nil && s.dashQuery.DateFrom == q.DateFrom && s.dashQuery.DateTo == q.DateTo {
		fallback = analytics.VendorContacts(s.dashboard.Vendors.Summary, vendor)
	}
	if fallback == 0 {
		fallback = analytics.VendorContacts(p.Vendors.Summary, vendor)
	}
	b := analytics.ResolveBreakdown(p.ContactsBreakdown, fallback)
	b.Vendor = vendor
	s.errMsg = ""
	s.finishLocked(run, b.Total)
	return b, nil
}

func (s *Session) fetchDashboard(ctx context.Context, q models.DashboardQuery) (analytics.Payload, error) {
	key := cache.DashboardKey(q)
	var p analytics.Payload
	hit, err := s.cache.Get(ctx, key, &p)
	if err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("dashboard cache read failed")
	}
	if hit {
		metrics.CacheHits.WithLabelValues("dashboard").Inc()
		return p, nil
	}
	metrics.CacheMisses.WithLabelValues("dashboard").Inc()

	p, err = s.dashboards.Dashboard(ctx, q)
	if err != nil {
		return analytics.Payload{}, err
	}
	if err := s.cache.Set(ctx, key, p, s.cacheTTL); err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("dashboard cache write failed")
	}
	return p, nil
}

func (s *Session) startRun(flow string, token uint64) models.Run {
	s.mu.Lock()
	s.loading[flow] = true
	s.mu.Unlock()
	return models.Run{Flow: flow, Generation: token, StartedAt: s.now()}
}

func (s *Session) finishLocked(run models.Run, count int) {
	run.FinishedAt = s.now()
	run.Status = "ok"
	run.Count = count
	s.runs[run.Flow] = run
	s.loading[run.Flow] = false
	metrics.FetchTotal.WithLabelValues(run.Flow, run.Status).Inc()
	metrics.FetchDuration.WithLabelValues(run.Flow).Observe(run.FinishedAt.Sub(run.StartedAt).Seconds())
}

// failLocked records err as the user-visible banner. Previously committed data stays.
func (s *Session) failLocked(run models.Run, err error) {
	run.FinishedAt = s.now()
	run.Status = "error"
	run.Error = BannerMessage(err)
	s.runs[run.Flow] = run
	s.loading[run.Flow] = false
	s.errMsg = run.Error
	metrics.FetchTotal.WithLabelValues(run.Flow, run.Status).Inc()
	s.logger.Error().Err(err).Str("flow", run.Flow).Uint64("generation", run.Generation).Msg("fetch failed")
}

func (s *Session) discardLocked(run models.Run) {
	metrics.StaleDiscarded.WithLabelValues(run.Flow).Inc()
	metrics.FetchTotal.WithLabelValues(run.Flow, "stale").Inc()
	s.logger.Debug().Str("flow", run.Flow).Uint64("generation", run.Generation).Msg("discarded superseded response")
}

// BannerMessage is the text shown to users for a failed fetch: the boundary
// API's own message when there is one.
func BannerMessage(err error) string {
	if apiErr, ok := upstream.AsAPIError(err); ok {
		return apiErr.Message
	}
	return err.Error()
}

// StatePatch is a partial filter update; nil fields are left untouched.
type StatePatch struct {
	Search       *string `json:"search"`
	Status       *string `json:"status"`
	Etapa        *string `json:"etapa"`
	Departamento *string `json:"departamento"`
	Vendedor     *string `json:"vendedor"`
	Instancia    *string `json:"instancia"`
	DateFrom     *string `json:"date_from" validate:"omitempty,datetime=2006-01-02"`
	DateTo       *string `json:"date_to" validate:"omitempty,datetime=2006-01-02"`
	CurrentMonth *bool   `json:"current_month"`
	SelectedID   *string `json:"selected_id"`
}

// Update applies a patch. Search text is debounced; every other field applies
// at once. It reports whether a server-side filter changed, in which case the
// conversation list must be refetched.
func (s *Session) Update(p StatePatch) (refetch bool) {
	if p.Search != nil {
		text := *p.Search
		s.search.Trigger(func() {
			s.mu.Lock()
			s.state.Search = text
			s.mu.Unlock()
		})
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	before := s.eventQueryLocked()
	st := &s.state
	setIf(&st.Status, p.Status)
	setIf(&st.Etapa, p.Etapa)
	setIf(&st.Departamento, p.Departamento)
	setIf(&st.Vendedor, p.Vendedor)
	setIf(&st.Instancia, p.Instancia)
	setIf(&st.DateFrom, p.DateFrom)
	setIf(&st.DateTo, p.DateTo)
	setIf(&st.SelectedID, p.SelectedID)
	if p.CurrentMonth != nil {
		st.CurrentMonth = *p.CurrentMonth
	}
	return before != s.eventQueryLocked()
}

// SetSearchNow bypasses the debounce, for non-interactive callers.
func (s *Session) SetSearchNow(text string) {
	s.search.Stop()
	s.mu.Lock()
	s.state.Search = text
	s.mu.Unlock()
}

// Reset restores the default filters and clears the error banner. Like Update,
// it reports whether the conversation list must be refetched.
func (s *Session) Reset() (refetch bool) {
	s.search.Stop()
	s.mu.Lock()
	defer s.mu.Unlock()
	before := s.eventQueryLocked()
	s.state = models.DefaultFilterState()
	s.errMsg = ""
	return before != s.eventQueryLocked()
}

func setIf(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

type StateView struct {
	Filters           models.FilterState `json:"filters"`
	Error             string             `json:"error,omitempty"`
	Loading           map[string]bool    `json:"loading"`
	Runs              []models.Run       `json:"runs"`
	ConversationCount int                `json:"conversation_count"`
	PeriodLabel       string             `json:"period_label"`
}

func (s *Session) State() StateView {
	s.mu.Lock()
	defer s.mu.Unlock()
	loading := make(map[string]bool, len(s.loading))
	for k, v := range s.loading {
		loading[k] = v
	}
	runs := make([]models.Run, 0, len(s.runs))
	for _, r := range s.runs {
		runs = append(runs, r)
	}
	sort.Slice(runs, func(i, j int) bool { return runs[i].Flow < runs[j].Flow })
	return StateView{
		Filters:           s.state,
		Error:             s.errMsg,
		Loading:           loading,
		Runs:              runs,
		ConversationCount: len(s.conversations),
		PeriodLabel:       service.PeriodLabel(s.state),
	}
}

type ListView struct {
	Items    []models.Conversation `json:"items"`
	Total    int                   `json:"total"`
	Selected string                `json:"selected"`
	Options  service.OptionLists   `json:"options"`
	Metrics  service.ListMetrics   `json:"metrics"`
	Chips    []string              `json:"chips"`
	Error    string                `json:"error,omitempty"`
}

// List filters the cached conversations with the current state. The selection
// is re-resolved against the filtered result and stored back.
func (s *Session) List() ListView {
	s.mu.Lock()
	convs := s.conversations
	state := s.state
	errMsg := s.errMsg
	s.mu.Unlock()

	filtered := service.Apply(convs, state, s.now(), s.loc)
	selected := service.ResolveSelection(filtered, state.SelectedID)

	s.mu.Lock()
	if s.state.SelectedID == state.SelectedID {
		s.state.SelectedID = selected
	}
	s.mu.Unlock()

	return ListView{
		Items:    filtered,
		Total:    len(filtered),
		Selected: selected,
		Options:  service.Options(convs),
		Metrics:  service.Metrics(filtered),
		Chips:    service.Chips(state),
		Error:    errMsg,
	}
}

// Filtered is the current filtered list without touching the selection.
func (s *Session) Filtered() []models.Conversation {
	s.mu.Lock()
	convs := s.conversations
	state := s.state
	s.mu.Unlock()
	return service.Apply(convs, state, s.now(), s.loc)
}

// DashboardQuery resolves the period of a dashboard request: explicit dates win,
// then the named preset, then the current month.
func (s *Session) DashboardQuery(dateFrom, dateTo, preset, vendor string) (models.DashboardQuery, string) {
	if dateFrom == "" && dateTo == "" {
		if preset == "" {
			preset = analytics.PresetMonth
		}
		dateFrom, dateTo = analytics.PresetRange(preset, s.now(), s.loc)
	} else {
		preset = ""
	}
	if normalize.IsWildcard(vendor) {
		vendor = ""
	}
	return models.DashboardQuery{DateFrom: dateFrom, DateTo: dateTo, Vendedor: vendor}, preset
}

// Snapshot fetches the dashboard for q and shapes it for display.
func (s *Session) Snapshot(ctx context.Context, q models.DashboardQuery, preset, selectedVendor string) (analytics.Snapshot, error) {
	p, err := s.Dashboard(ctx, q)
	if err != nil {
		return analytics.Snapshot{}, err
	}
	snap := analytics.BuildSnapshot(p, selectedVendor)
	snap.DateFrom = q.DateFrom
	snap.DateTo = q.DateTo
	snap.Preset = preset
	return snap, nil
}
