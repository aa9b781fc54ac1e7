package service

import (
	"strings"
	"time"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/vogaflex/crm-insights/internal/models"
	"github.com/vogaflex/crm-insights/internal/normalize"
)

// StatusOptions are the canonical status labels; they never appear as funnel stages.
var StatusOptions = []string{models.AllOption, "Triagem", "Aguardando", "Em atendimento", "Finalizado"}

var inactiveStatuses = []string{"perdido", "fechado", "finalizado", "cancelado"}

type Range struct {
	From    time.Time
	To      time.Time
	HasFrom bool
	HasTo   bool
}

func (r Range) Active() bool {
	return r.HasFrom || r.HasTo
}

func (r Range) Contains(t time.Time) bool {
	if r.HasFrom && t.Before(r.From) {
		return false
	}
	if r.HasTo && !t.Before(r.To) {
		return false
	}
	return true
}

// DateRange resolves the period predicate of a filter state. Explicit bounds are
// inclusive days; otherwise the current month toggle yields [monthStart, nextMonthStart).
func DateRange(state models.FilterState, now time.Time, loc *time.Location) Range {
	if loc == nil {
		loc = time.UTC
	}
	var r Range
	if from, ok := normalize.ParseDay(state.DateFrom, loc); ok {
		r.From, r.HasFrom = from, true
	}
	if to, ok := normalize.ParseDay(state.DateTo, loc); ok {
		r.To, r.HasTo = to.AddDate(0, 0, 1), true
	}
	if r.Active() || !state.CurrentMonth {
		return r
	}
	local := now.In(loc)
	start := time.Date(local.Year(), local.Month(), 1, 0, 0, 0, 0, loc)
	return Range{From: start, To: start.AddDate(0, 1, 0), HasFrom: true, HasTo: true}
}

// Apply evaluates every active predicate independently and keeps the
// conversations passing all of them, newest first.
func Apply(convs []models.Conversation, state models.FilterState, now time.Time, loc *time.Location) []models.Conversation {
	period := DateRange(state, now, loc)
	term := normalize.Text(state.Search)

	out := make([]models.Conversation, 0, len(convs))
	for _, c := range convs {
		if period.Active() {
			basis, ok := normalize.BasisTime(c.RawEvent, loc)
			if !ok || !period.Contains(basis) {
				continue
			}
		}
		if !matchStatus(c, state.Status) {
			continue
		}
		if !matchEqual(c.EtapaFunil, state.Etapa) {
			continue
		}
		if !matchEqual(c.Departamento, state.Departamento) {
			continue
		}
		if !matchEqual(c.VendedorNome, state.Vendedor) {
			continue
		}
		if !matchEqual(c.InstanciaNome, state.Instancia) {
			continue
		}
		if term != "" && !strings.Contains(Haystack(c), term) {
			continue
		}
		out = append(out, c)
	}
	return SortByRecency(out, now, loc)
}

// Haystack is the searchable text of a conversation.
func Haystack(c models.Conversation) string {
	fields := []string{
		c.Protocolo.String(),
		c.ChatID.String(),
		c.ClienteNome,
		c.ClienteTelefone,
		c.VendedorNome,
		c.VendedorEmail,
		c.StatusNormalizado,
	}
	for i, f := range fields {
		fields[i] = normalize.Text(f)
	}
	return strings.Join(fields, " ")
}

func matchEqual(value, want string) bool {
	if normalize.IsWildcard(want) {
		return true
	}
	return value == want
}

func matchStatus(c models.Conversation, want string) bool {
	if normalize.IsWildcard(want) {
		return true
	}
	return c.StatusConversa == want || c.StatusNormalizado == want
}

// ResolveSelection keeps the selected id when it survived filtering, else falls
// back to the first (newest) result, else to no selection.
func ResolveSelection(filtered []models.Conversation, selected string) string {
	if len(filtered) == 0 {
		return ""
	}
	if selected != "" {
		for _, c := range filtered {
			if c.Key == selected {
				return selected
			}
		}
	}
	return filtered[0].Key
}

type OptionLists struct {
	Vendedores    []string `json:"vendedores"`
	Etapas        []string `json:"etapas"`
	Status        []string `json:"status"`
	Departamentos []string `json:"departamentos"`
	Instancias    []string `json:"instancias"`
}

// Options derives the select lists from all conversations, not the filtered subset.
func Options(convs []models.Conversation) OptionLists {
	statusSet := map[string]struct{}{}
	for _, s := range StatusOptions {
		statusSet[normalize.Text(s)] = struct{}{}
	}

	var vendors, stages, statuses, departments, instances []string
	for _, c := range convs {
		vendors = append(vendors, c.VendedorNome)
		if _, clash := statusSet[normalize.Text(c.EtapaFunil)]; !clash {
			stages = append(stages, c.EtapaFunil)
		}
		statuses = append(statuses, c.StatusConversa)
		departments = append(departments, c.Departamento)
		instances = append(instances, c.InstanciaNome)
	}
	return OptionLists{
		Vendedores:    withWildcard(uniqueSorted(vendors)),
		Etapas:        withWildcard(uniqueSorted(stages)),
		Status:        withWildcard(uniqueSorted(statuses)),
		Departamentos: withWildcard(uniqueSorted(departments)),
		Instancias:    withWildcard(uniqueSorted(instances)),
	}
}

func uniqueSorted(values []string) []string {
	seen := map[string]struct{}{}
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	collate.New(language.BrazilianPortuguese).SortStrings(out)
	return out
}

func withWildcard(values []string) []string {
	return append([]string{models.AllOption}, values...)
}

type ListMetrics struct {
	Total        int     `json:"total"`
	TotalValue   float64 `json:"total_value"`
	AverageValue float64 `json:"average_value"`
	Active       int     `json:"active"`
}

func Metrics(filtered []models.Conversation) ListMetrics {
	m := ListMetrics{Total: len(filtered)}
	for _, c := range filtered {
		m.TotalValue += c.ValorOrcamento
		if !isInactive(c.StatusConversa) {
			m.Active++
		}
	}
	if m.Total > 0 {
		m.AverageValue = m.TotalValue / float64(m.Total)
	}
	return m
}

func isInactive(status string) bool {
	s := normalize.Text(status)
	for _, v := range inactiveStatuses {
		if s == v {
			return true
		}
	}
	return false
}

// PeriodLabel describes the active period in the dashboard's own words.
func PeriodLabel(state models.FilterState) string {
	switch {
	case state.DateFrom != "" && state.DateTo != "":
		return state.DateFrom + " até " + state.DateTo
	case state.DateFrom != "":
		return "A partir de " + state.DateFrom
	case state.DateTo != "":
		return "Até " + state.DateTo
	case state.CurrentMonth:
		return "Mês corrente"
	default:
		return "Todo o período"
	}
}

func Chips(state models.FilterState) []string {
	chips := []string{"Período: " + PeriodLabel(state)}
	if !normalize.IsWildcard(state.Status) {
		chips = append(chips, "Status: "+state.Status)
	}
	if !normalize.IsWildcard(state.Etapa) {
		chips = append(chips, "Etapa: "+state.Etapa)
	}
	if !normalize.IsWildcard(state.Departamento) {
		chips = append(chips, "Departamento: "+state.Departamento)
	}
	if !normalize.IsWildcard(state.Vendedor) {
		chips = append(chips, "Vendedor: "+state.Vendedor)
	}
	if !normalize.IsWildcard(state.Instancia) {
		chips = append(chips, "Instância: "+state.Instancia)
	}
	return chips
}
