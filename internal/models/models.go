package models

import (
	"bytes"
	"encoding/json"
	"time"
)

// FlexString decodes JSON strings, numbers, booleans and null into text.
// The boundary API emits ids and ratings with whatever type the source column had.
type FlexString string

func (f *FlexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*f = ""
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = FlexString(s)
		return nil
	}
	*f = FlexString(string(b))
	return nil
}

func (f FlexString) String() string {
	return string(f)
}

type RawEvent struct {
	ID                  FlexString `json:"id"`
	ChatID              FlexString `json:"chat_id"`
	Protocolo           FlexString `json:"protocolo"`
	ClienteNome         string     `json:"cliente_nome"`
	ClienteTelefone     string     `json:"cliente_telefone"`
	ClienteIDCRM        FlexString `json:"cliente_id_crm,omitempty"`
	VendedorNome        string     `json:"vendedor_nome"`
	VendedorEmail       string     `json:"vendedor_email"`
	StatusConversa      string     `json:"status_conversa"`
	StatusNormalizado   string     `json:"status_normalizado,omitempty"`
	EtapaFunil          string     `json:"etapa_funil"`
	ColunaKanban        string     `json:"coluna_kanban"`
	Departamento        string     `json:"departamento"`
	InstanciaNome       string     `json:"instancia_nome"`
	TipoFluxo           string     `json:"tipo_fluxo,omitempty"`
	ProdutoInteresse    string     `json:"produto_interesse"`
	MotivoPerda         string     `json:"motivo_perda"`
	ContactReason       string     `json:"contact_reason,omitempty"`
	ValorOrcamento      any        `json:"valor_orcamento"`
	DataCriacaoChat     string     `json:"data_criacao_chat"`
	DataFechamento      string     `json:"data_fechamento"`
	EventoTimestamp     string     `json:"evento_timestamp"`
	UpdatedAt           string     `json:"updated_at,omitempty"`
	CreatedAt           string     `json:"created_at,omitempty"`
	MsgConteudo         string     `json:"msg_conteudo"`
	MsgTipo             string     `json:"msg_tipo"`
	MsgFromClient       *bool      `json:"msg_from_client"`
	MsgStatusEnvio      FlexString `json:"msg_status_envio"`
	AIAgentRating       FlexString `json:"ai_agent_rating,omitempty"`
	AICustomerSentiment string     `json:"ai_customer_sentiment,omitempty"`
	AISummary           string     `json:"ai_summary,omitempty"`
	AISuggestion        string     `json:"ai_suggestion,omitempty"`
}

// FromClient reports whether the event was explicitly flagged as client-originated.
func (e RawEvent) FromClient() bool {
	return e.MsgFromClient != nil && *e.MsgFromClient
}

// Conversation is the aggregate of every RawEvent sharing one group key.
// Scalar fields come from the latest event; ValorOrcamento is the last positive budget.
type Conversation struct {
	Key string `json:"key"`
	RawEvent
	ValorOrcamento  float64    `json:"valor_orcamento"`
	BudgetUpdatedAt string     `json:"budget_updated_at,omitempty"`
	Timeline        []RawEvent `json:"timeline,omitempty"`
}

type SenderRole string

const (
	RoleClient SenderRole = "client"
	RoleVendor SenderRole = "vendor"
	RoleBot    SenderRole = "bot"
)

type MessageEntry struct {
	ID             string     `json:"id,omitempty"`
	SenderRole     SenderRole `json:"sender_role"`
	SenderName     string     `json:"sender_name"`
	DisplayContent string     `json:"display_content"`
	Timestamp      string     `json:"timestamp"`
	MessageType    string     `json:"message_type,omitempty"`
	DeliveryStatus string     `json:"delivery_status,omitempty"`
	Rule           string     `json:"rule"`
}

// FilterState is owned by the session and only mutated through it.
type FilterState struct {
	Search       string `json:"search"`
	Status       string `json:"status"`
	Etapa        string `json:"etapa"`
	Departamento string `json:"departamento"`
	Vendedor     string `json:"vendedor"`
	Instancia    string `json:"instancia"`
	DateFrom     string `json:"date_from"`
	DateTo       string `json:"date_to"`
	CurrentMonth bool   `json:"current_month"`
	SelectedID   string `json:"selected_id"`
}

// AllOption is the wildcard value of every select-style filter.
const AllOption = "Todos"

func DefaultFilterState() FilterState {
	return FilterState{
		Status:       AllOption,
		Etapa:        AllOption,
		Departamento: AllOption,
		Vendedor:     AllOption,
		Instancia:    AllOption,
		CurrentMonth: true,
	}
}

// EventQuery carries the server-side filters understood by the boundary API.
type EventQuery struct {
	Limit    int
	Status   string
	Etapa    string
	DateFrom string
	DateTo   string
	Vendedor string
}

type DashboardQuery struct {
	DateFrom string
	DateTo   string
	Vendedor string
}

// CacheKey identifies a dashboard request independently of parameter order.
func (q DashboardQuery) CacheKey() string {
	return q.DateFrom + "|" + q.DateTo + "|" + q.Vendedor
}

type Run struct {
	Flow       string    `json:"flow"`
	Generation uint64    `json:"generation"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Status     string    `json:"status"`
	Count      int       `json:"count"`
	Error      string    `json:"error,omitempty"`
}
