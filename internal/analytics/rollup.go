package analytics

import (
	"regexp"
	"sort"
	"strings"
	"time"

	_ "time/tzdata"

	"github.com/vogaflex/crm-insights/internal/models"
	"github.com/vogaflex/crm-insights/internal/normalize"
	"github.com/vogaflex/crm-insights/internal/timeline"
)

const noScore = "Sem score"

var (
	trackingPattern      = regexp.MustCompile(`rastreio`)
	sacPattern           = regexp.MustCompile(`(sac|pos[- ]?venda|duvidas?|suporte)`)
	nonSalesPattern      = regexp.MustCompile(`(sac|pos[- ]?venda|duvidas?|suporte|rastreio)`)
	budgetSupportPattern = regexp.MustCompile(`(pos[- ]?venda|duvidas?|sac|rastreio)`)
	budgetFigurePattern  = regexp.MustCompile(`R\$\s*([0-9.]+(?:,[0-9]{2})?)`)
)

var waitingStages = map[string]struct{}{
	"waiting":    {},
	"em espera":  {},
	"aguardando": {},
}

// Input is the data a local rollup runs over. Messages are keyed by conversation
// key; conversations without an entry use their own timeline.
type Input struct {
	Conversations []models.Conversation
	Messages      map[string][]models.RawEvent
}

type Options struct {
	DateFrom string
	DateTo   string
	Vendor   string
	Location *time.Location
	Hours    BusinessHours
}

// facts is everything the rollup derives from one conversation.
type facts struct {
	conv        models.Conversation
	vendor      string
	day         string
	tracking    bool
	sac         bool
	waiting     bool
	sales       bool
	support     bool
	dead        bool
	handoffAt   time.Time
	transferred bool
	duration    float64
	hasDuration bool
	handoff     float64
	hasHandoff  bool
	detected    float64
	hasDetected bool
	score       float64
	hasScore    bool
}

// Rollup computes the dashboard payload locally from aggregated conversations.
func Rollup(in Input, opts Options) Payload {
	loc := opts.Location
	if loc == nil {
		loc = time.UTC
	}
	if opts.Hours == (BusinessHours{}) {
		opts.Hours = DefaultBusinessHours
	}

	var scoped []facts
	for _, c := range in.Conversations {
		f := derive(c, messagesFor(in, c), loc, opts.Hours)
		if !inScope(f, opts) {
			continue
		}
		scoped = append(scoped, f)
	}

	return Payload{
		Stats:             stats(scoped),
		StageCounts:       stageCounts(scoped),
		ContactsBreakdown: contactsBreakdown(scoped),
		SDR: SDR{
			Summary:          summarize(scoped),
			Daily:            daily(scoped),
			TransferredDaily: transferredDaily(scoped, loc),
		},
		Vendors: Vendors{
			Summary: vendorSummary(scoped),
			Scores:  vendorScores(scoped),
		},
	}
}

func messagesFor(in Input, c models.Conversation) []models.RawEvent {
	if msgs, ok := in.Messages[c.Key]; ok {
		return msgs
	}
	return c.Timeline
}

func inScope(f facts, opts Options) bool {
	if !normalize.IsWildcard(opts.Vendor) && f.vendor != opts.Vendor {
		return false
	}
	if opts.DateFrom == "" && opts.DateTo == "" {
		return true
	}
	if f.day == "" {
		return false
	}
	if opts.DateFrom != "" && f.day < opts.DateFrom {
		return false
	}
	if opts.DateTo != "" && f.day > opts.DateTo {
		return false
	}
	return true
}

// CreationDay is the local day a conversation started, falling back to its basis time.
func CreationDay(c models.Conversation, loc *time.Location) string {
	if t, ok := normalize.ParseTime(c.DataCriacaoChat, loc); ok {
		return normalize.Day(t, loc)
	}
	if t, ok := normalize.BasisTime(c.RawEvent, loc); ok {
		return normalize.Day(t, loc)
	}
	return ""
}

func derive(c models.Conversation, msgs []models.RawEvent, loc *time.Location, hours BusinessHours) facts {
	reason := normalize.BotText(c.ContactReason)
	stage := normalize.BotText(c.EtapaFunil)
	_, waiting := waitingStages[stage]

	f := facts{
		conv:     c,
		vendor:   strings.TrimSpace(c.VendedorNome),
		day:      CreationDay(c, loc),
		tracking: trackingPattern.MatchString(reason),
		sac:      sacPattern.MatchString(reason),
		waiting:  waiting,
		support:  budgetSupportPattern.MatchString(reason),
	}
	f.sales = f.vendor != "" && !waiting && !nonSalesPattern.MatchString(reason)
	f.score, f.hasScore = normalize.Score(c.AIAgentRating.String())

	var (
		outbound    int
		firstClient time.Time
	)
	for _, m := range msgs {
		if v, ok := largestFigure(m.MsgConteudo); ok && (!f.hasDetected || v > f.detected) {
			f.detected, f.hasDetected = v, true
		}
		if m.MsgFromClient == nil {
			continue
		}
		at, ok := normalize.ParseTime(m.EventoTimestamp, loc)
		if *m.MsgFromClient {
			if ok && (firstClient.IsZero() || at.Before(firstClient)) {
				firstClient = at
			}
			continue
		}
		outbound++
		if ok && m.MsgConteudo != "" && timeline.IsHandoff(m.MsgConteudo) {
			if f.handoffAt.IsZero() || at.Before(f.handoffAt) {
				f.handoffAt = at
			}
		}
	}
	f.dead = outbound == 0
	f.transferred = !f.handoffAt.IsZero()

	if end, ok := normalize.ParseTime(c.DataFechamento, loc); ok && !firstClient.IsZero() {
		f.duration, f.hasDuration = BusinessSeconds(firstClient, end, loc, hours)
	}
	if f.transferred {
		if human, ok := firstHumanReply(msgs, f.handoffAt, loc); ok {
			f.handoff, f.hasHandoff = BusinessSeconds(f.handoffAt, human, loc, hours)
		}
	}
	return f
}

// largestFigure returns the biggest "R$ 1.234,56" amount quoted in text.
func largestFigure(text string) (float64, bool) {
	var best float64
	found := false
	for _, match := range budgetFigurePattern.FindAllStringSubmatch(text, -1) {
		figure := strings.ReplaceAll(strings.ReplaceAll(match[1], ".", ""), ",", ".")
		if figure == "" {
			continue
		}
		if v := normalize.Money(figure); !found || v > best {
			best, found = v, true
		}
	}
	return best, found
}

// firstHumanReply is the first outbound message after the handoff that is not itself a handoff.
func firstHumanReply(msgs []models.RawEvent, handoffAt time.Time, loc *time.Location) (time.Time, bool) {
	var first time.Time
	for _, m := range msgs {
		if m.MsgFromClient == nil || *m.MsgFromClient {
			continue
		}
		at, ok := normalize.ParseTime(m.EventoTimestamp, loc)
		if !ok || !at.After(handoffAt) {
			continue
		}
		if m.MsgConteudo != "" && timeline.IsHandoff(m.MsgConteudo) {
			continue
		}
		if first.IsZero() || at.Before(first) {
			first = at
		}
	}
	return first, !first.IsZero()
}

func summarize(scoped []facts) Summary {
	s := Summary{Contacts: len(scoped)}
	for _, f := range scoped {
		s.Tracking += boolInt(f.tracking)
		s.Sac += boolInt(f.sac)
		s.Waiting += boolInt(f.waiting)
		s.Sales += boolInt(f.sales)
		s.Transferred += boolInt(f.transferred)
		s.Dead += boolInt(f.dead)
	}
	return s
}

func daily(scoped []facts) []DailyPoint {
	byDay := map[string]*DailyPoint{}
	for _, f := range scoped {
		if f.day == "" {
			continue
		}
		p, ok := byDay[f.day]
		if !ok {
			p = &DailyPoint{Day: f.day}
			byDay[f.day] = p
		}
		p.Contacts++
		p.Waiting += boolInt(f.waiting)
		p.Sales += boolInt(f.sales)
		p.Sac += boolInt(f.sac)
		p.Tracking += boolInt(f.tracking)
		p.Dead += boolInt(f.dead)
	}
	out := make([]DailyPoint, 0, len(byDay))
	for _, p := range byDay {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Day < out[j].Day })
	return out
}

func transferredDaily(scoped []facts, loc *time.Location) []TransferredPoint {
	counts := map[string]int{}
	for _, f := range scoped {
		if f.transferred {
			counts[normalize.Day(f.handoffAt, loc)]++
		}
	}
	out := make([]TransferredPoint, 0, len(counts))
	for day, n := range counts {
		out = append(out, TransferredPoint{Day: day, Transferred: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Day < out[j].Day })
	return out
}

type vendorAcc struct {
	row                    VendorSummary
	durSum, handSum, scSum float64
	durN, handN, scN       int
}

func vendorSummary(scoped []facts) []VendorSummary {
	acc := map[string]*vendorAcc{}
	for _, f := range scoped {
		if f.vendor == "" {
			continue
		}
		a, ok := acc[f.vendor]
		if !ok {
			a = &vendorAcc{row: VendorSummary{Vendedor: f.vendor}}
			acc[f.vendor] = a
		}
		budget := f.conv.ValorOrcamento
		a.row.ContactsReceived++
		a.row.DeadContacts += boolInt(f.dead)
		if !f.support {
			if budget > 0 {
				a.row.BudgetsCount++
				a.row.BudgetsSum += budget
			}
			if budget > 0 || f.hasDetected {
				a.row.BudgetsDetectedCount++
			}
			if budget <= 0 && f.hasDetected {
				a.row.BudgetsSumDetected += f.detected
			}
		}
		if f.hasDuration {
			a.durSum += f.duration
			a.durN++
		}
		if f.hasHandoff {
			a.handSum += f.handoff
			a.handN++
		}
		if f.hasScore {
			a.scSum += f.score
			a.scN++
		}
	}

	out := make([]VendorSummary, 0, len(acc))
	for _, a := range acc {
		a.row.AvgDurationSeconds = mean(a.durSum, a.durN)
		a.row.AvgHandoffSeconds = mean(a.handSum, a.handN)
		a.row.AvgScore = mean(a.scSum, a.scN)
		out = append(out, a.row)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ContactsReceived != out[j].ContactsReceived {
			return out[i].ContactsReceived > out[j].ContactsReceived
		}
		return out[i].Vendedor < out[j].Vendedor
	})
	return out
}

func vendorScores(scoped []facts) map[string][]ScoreCount {
	counts := map[string]map[string]int{}
	for _, f := range scoped {
		if f.vendor == "" {
			continue
		}
		label := strings.TrimSpace(f.conv.AIAgentRating.String())
		if label == "" {
			label = noScore
		}
		if counts[f.vendor] == nil {
			counts[f.vendor] = map[string]int{}
		}
		counts[f.vendor][label]++
	}
	out := make(map[string][]ScoreCount, len(counts))
	for vendor, byLabel := range counts {
		list := make([]ScoreCount, 0, len(byLabel))
		for label, n := range byLabel {
			list = append(list, ScoreCount{Score: label, Total: n})
		}
		sort.Slice(list, func(i, j int) bool { return list[i].Score < list[j].Score })
		out[vendor] = list
	}
	return out
}

// NormalizeStage maps pipeline stage codes to the dashboard's labels.
// keepActive decides whether the "active" code becomes "Ativo" or is dropped.
func NormalizeStage(stage string, keepActive bool) (string, bool) {
	switch strings.TrimSpace(stage) {
	case "":
		return "Sem etapa", true
	case "screening":
		return "Triagem", true
	case "waiting", "Em espera":
		return "Aguardando", true
	case "Em atendimento":
		return "Em atendimento", true
	case "Finalizado", "finalizado", "finished", "closed":
		return "Finalizado", true
	case "active":
		if keepActive {
			return "Ativo", true
		}
		return "", false
	default:
		return strings.TrimSpace(stage), true
	}
}

func stageCounts(scoped []facts) []StageCount {
	counts := map[string]int{}
	for _, f := range scoped {
		if strings.TrimSpace(f.conv.EtapaFunil) == "" {
			continue
		}
		if name, ok := NormalizeStage(f.conv.EtapaFunil, false); ok {
			counts[name]++
		}
	}
	return sortedStages(counts)
}

func contactsBreakdown(scoped []facts) *Breakdown {
	counts := map[string]int{}
	for _, f := range scoped {
		if f.vendor == "" {
			continue
		}
		name, _ := NormalizeStage(f.conv.EtapaFunil, true)
		counts[name]++
	}
	stages := sortedStages(counts)

	var total, active, pending, finalized int
	for _, s := range stages {
		total += s.Total
		switch normalize.Text(s.StageName) {
		case "finalizado":
			finalized += s.Total
		case "em atendimento", "ativo":
			active += s.Total
		case "triagem", "aguardando":
			pending += s.Total
		}
	}
	other := total - finalized - active - pending
	if other < 0 {
		other = 0
	}
	return &Breakdown{
		Total:     floatPtr(float64(total)),
		Active:    floatPtr(float64(active)),
		Pending:   floatPtr(float64(pending)),
		Finalized: floatPtr(float64(finalized)),
		Other:     floatPtr(float64(other)),
		Stages:    stages,
	}
}

func sortedStages(counts map[string]int) []StageCount {
	out := make([]StageCount, 0, len(counts))
	for name, n := range counts {
		out = append(out, StageCount{StageName: name, Total: n})
	}
	sortStages(out)
	return out
}

func sortStages(stages []StageCount) {
	sort.SliceStable(stages, func(i, j int) bool {
		if stages[i].Total != stages[j].Total {
			return stages[i].Total > stages[j].Total
		}
		return stages[i].StageName < stages[j].StageName
	})
}

func stats(scoped []facts) Stats {
	var durSum, handSum float64
	var durN, handN int
	for _, f := range scoped {
		if f.hasDuration {
			durSum += f.duration
			durN++
		}
		if f.hasHandoff {
			handSum += f.handoff
			handN++
		}
	}
	return Stats{AvgDurationSeconds: mean(durSum, durN), AvgHandoffSeconds: mean(handSum, handN)}
}

func mean(sum float64, n int) float64 {
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
