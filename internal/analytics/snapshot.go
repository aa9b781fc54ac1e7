package analytics

import (
	"math"
	"sort"
	"strings"
)

// SeriesWindow is how many trailing days the daily chart shows.
const SeriesWindow = 14

type FunnelRow struct {
	Key     string `json:"key"`
	Label   string `json:"label"`
	Value   int    `json:"value"`
	Percent string `json:"percent"`
}

type VendorRow struct {
	VendorSummary
	Conversion  string `json:"conversion"`
	AvgDuration string `json:"avg_duration"`
	AvgHandoff  string `json:"avg_handoff"`
	Score       string `json:"score"`
}

type VendorTotals struct {
	Contacts           int     `json:"contacts"`
	BudgetsCount       int     `json:"budgets_count"`
	BudgetsSum         float64 `json:"budgets_sum"`
	BudgetsSumDetected float64 `json:"budgets_sum_detected"`
	Dead               int     `json:"dead"`
	Conversion         string  `json:"conversion"`
}

// ContactBreakdown is a resolved Breakdown: every figure present and non-negative.
type ContactBreakdown struct {
	Vendor           string       `json:"vendor,omitempty"`
	Total            int          `json:"total"`
	Active           int          `json:"active"`
	Pending          int          `json:"pending"`
	Finalized        int          `json:"finalized"`
	Other            int          `json:"other"`
	ActivePercent    string       `json:"active_percent"`
	PendingPercent   string       `json:"pending_percent"`
	FinalizedPercent string       `json:"finalized_percent"`
	OtherPercent     string       `json:"other_percent"`
	Stages           []StageCount `json:"stages"`
}

type StatsView struct {
	Stats
	AvgDuration string `json:"avg_duration"`
	AvgHandoff  string `json:"avg_handoff"`
}

// Snapshot is the render-ready dashboard.
type Snapshot struct {
	DateFrom       string                  `json:"date_from"`
	DateTo         string                  `json:"date_to"`
	Preset         string                  `json:"preset,omitempty"`
	Summary        Summary                 `json:"summary"`
	Funnel         []FunnelRow             `json:"funnel"`
	Series         []DailyPoint            `json:"series"`
	Vendors        []VendorRow             `json:"vendors"`
	VendorTotals   VendorTotals            `json:"vendor_totals"`
	Scores         map[string][]ScoreCount `json:"scores"`
	SelectedVendor string                  `json:"selected_vendor"`
	Stats          StatsView               `json:"stats"`
	StageCounts    []StageCount            `json:"stage_counts"`
}

// BuildSnapshot shapes a dashboard payload for display. selectedVendor is kept
// when it is still listed, otherwise the busiest vendor is selected.
func BuildSnapshot(p Payload, selectedVendor string) Snapshot {
	s := Snapshot{
		Summary:     p.SDR.Summary,
		Funnel:      Funnel(p.SDR.Summary),
		Series:      MergeSeries(p.SDR.Daily, p.SDR.TransferredDaily, SeriesWindow),
		Scores:      p.Vendors.Scores,
		StageCounts: p.StageCounts,
		Stats: StatsView{
			Stats:       p.Stats,
			AvgDuration: FormatDuration(p.Stats.AvgDurationSeconds),
			AvgHandoff:  FormatDuration(p.Stats.AvgHandoffSeconds),
		},
	}
	if s.Scores == nil {
		s.Scores = map[string][]ScoreCount{}
	}
	for _, v := range p.Vendors.Summary {
		s.Vendors = append(s.Vendors, VendorRow{
			VendorSummary: v,
			Conversion:    FormatPercent(float64(budgetCount(v)), float64(v.ContactsReceived)),
			AvgDuration:   FormatDuration(v.AvgDurationSeconds),
			AvgHandoff:    FormatDuration(v.AvgHandoffSeconds),
			Score:         FormatScore(v.AvgScore),
		})
	}
	s.VendorTotals = Totals(p.Vendors.Summary)
	s.SelectedVendor = SelectVendor(p.Vendors.Summary, selectedVendor)
	return s
}

func Funnel(sum Summary) []FunnelRow {
	total := float64(sum.Contacts)
	rows := []FunnelRow{
		{Key: "waiting", Label: "Em espera", Value: sum.Waiting},
		{Key: "sales", Label: "Vendas", Value: sum.Sales},
		{Key: "sac", Label: "SAC", Value: sum.Sac},
		{Key: "tracking", Label: "Rastreio", Value: sum.Tracking},
		{Key: "dead", Label: "Morreram", Value: sum.Dead},
		{Key: "transferred", Label: "Transferidos", Value: sum.Transferred},
	}
	for i := range rows {
		rows[i].Percent = FormatPercent(float64(rows[i].Value), total)
	}
	return rows
}

// MergeSeries joins the daily and transferred series on their day key. Entries
// without a day are dropped, missing metrics read zero, and only the last
// window days are kept.
func MergeSeries(daily []DailyPoint, transferred []TransferredPoint, window int) []DailyPoint {
	byDay := map[string]*DailyPoint{}
	for _, d := range daily {
		if d.Day == "" {
			continue
		}
		p := d
		p.Transferred = 0
		byDay[d.Day] = &p
	}
	for _, t := range transferred {
		if t.Day == "" {
			continue
		}
		p, ok := byDay[t.Day]
		if !ok {
			p = &DailyPoint{Day: t.Day}
			byDay[t.Day] = p
		}
		p.Transferred = t.Transferred
	}
	out := make([]DailyPoint, 0, len(byDay))
	for _, p := range byDay {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Day < out[j].Day })
	if window > 0 && len(out) > window {
		out = out[len(out)-window:]
	}
	return out
}

// Totals sums the vendor rows. Budgets prefer the detected count when present.
func Totals(rows []VendorSummary) VendorTotals {
	var t VendorTotals
	for _, v := range rows {
		t.Contacts += v.ContactsReceived
		t.BudgetsCount += budgetCount(v)
		t.BudgetsSum += v.BudgetsSum
		t.BudgetsSumDetected += v.BudgetsSumDetected
		t.Dead += v.DeadContacts
	}
	t.Conversion = FormatPercent(float64(t.BudgetsCount), float64(t.Contacts))
	return t
}

func budgetCount(v VendorSummary) int {
	if v.BudgetsDetectedCount != 0 {
		return v.BudgetsDetectedCount
	}
	return v.BudgetsCount
}

func SelectVendor(rows []VendorSummary, selected string) string {
	if len(rows) == 0 {
		return ""
	}
	for _, v := range rows {
		if v.Vendedor == selected {
			return selected
		}
	}
	return rows[0].Vendedor
}

// ResolveBreakdown trusts figures that are finite and non-negative and falls
// back otherwise: the total to the vendor's received contacts, the buckets to
// zero, and "other" to whatever the buckets leave of the total.
func ResolveBreakdown(b *Breakdown, fallbackTotal int) ContactBreakdown {
	if b == nil {
		b = &Breakdown{}
	}
	out := ContactBreakdown{
		Total:     trusted(b.Total, fallbackTotal),
		Pending:   trusted(b.Pending, 0),
		Finalized: trusted(b.Finalized, 0),
		Active:    trusted(b.Active, 0),
	}
	rest := out.Total - out.Finalized - out.Active - out.Pending
	if rest < 0 {
		rest = 0
	}
	out.Other = trusted(b.Other, rest)

	for _, st := range b.Stages {
		if strings.TrimSpace(st.StageName) == "" {
			continue
		}
		out.Stages = append(out.Stages, st)
	}
	sort.SliceStable(out.Stages, func(i, j int) bool { return out.Stages[i].Total > out.Stages[j].Total })

	total := float64(out.Total)
	out.ActivePercent = FormatPercent(float64(out.Active), total)
	out.PendingPercent = FormatPercent(float64(out.Pending), total)
	out.FinalizedPercent = FormatPercent(float64(out.Finalized), total)
	out.OtherPercent = FormatPercent(float64(out.Other), total)
	return out
}

func trusted(v *float64, fallback int) int {
	if v == nil || math.IsNaN(*v) || math.IsInf(*v, 0) || *v < 0 {
		return fallback
	}
	return int(*v)
}

// VendorContacts is the received-contacts figure used when a breakdown has no total.
func VendorContacts(rows []VendorSummary, vendor string) int {
	for _, v := range rows {
		if v.Vendedor == vendor {
			return v.ContactsReceived
		}
	}
	return 0
}
