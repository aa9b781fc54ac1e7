package db

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vogaflex/crm-insights/internal/models"
	"github.com/vogaflex/crm-insights/internal/normalize"
)

const (
	defaultEventLimit   = 5000
	defaultMessageLimit = 500
)

// Store reads CRM events straight from the pipeline's Postgres tables.
type Store struct {
	Pool *pgxpool.Pool
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, err
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &Store{Pool: pool}, nil
}

func (s *Store) Close() {
	s.Pool.Close()
}

func (s *Store) Ping(ctx context.Context) error {
	return s.Pool.Ping(ctx)
}

const msgFromClientSQL = `
CASE
  WHEN LOWER(COALESCE(r.msg_direcao, '')) IN ('inbound', 'recebida', 'received') THEN TRUE
  WHEN LOWER(COALESCE(r.msg_direcao, '')) IN ('outbound', 'enviada', 'sent') THEN FALSE
  ELSE NULL
END`

const statusNormalizedSQL = `
CASE
  WHEN LOWER(COALESCE(r.status_conversa, '')) IN ('screening', 'triagem') THEN 'Triagem'
  WHEN LOWER(COALESCE(r.status_conversa, '')) IN ('waiting', 'em espera', 'aguardando') THEN 'Aguardando'
  WHEN LOWER(COALESCE(r.status_conversa, '')) IN ('em atendimento', 'active') THEN 'Em atendimento'
  WHEN LOWER(COALESCE(r.status_conversa, '')) IN ('finalizado', 'finished', 'closed') THEN 'Finalizado'
  WHEN LOWER(COALESCE(r.etapa_funil, '')) IN ('finalizado', 'finished', 'closed') THEN 'Finalizado'
  WHEN LOWER(COALESCE(r.coluna_kanban, '')) IN ('finalizado', 'finished', 'closed') THEN 'Finalizado'
  ELSE NULL
END`

// Events returns raw events newest first, applying the same filters the
// boundary API accepts. Wildcard values are ignored.
func (s *Store) Events(ctx context.Context, q models.EventQuery) ([]models.RawEvent, error) {
	limit := q.Limit
	if limit <= 0 || limit > defaultEventLimit {
		limit = defaultEventLimit
	}

	query := `SELECT r.id::text, r.chat_id::text, r.protocolo::text, r.cliente_nome, r.cliente_telefone,
		r.cliente_id_crm::text, r.vendedor_nome, r.vendedor_email, r.status_conversa, ` + statusNormalizedSQL + `,
		r.etapa_funil, r.coluna_kanban, r.departamento, r.instancia_nome, r.tipo_fluxo,
		r.produto_interesse, r.motivo_perda, r.valor_orcamento::text,
		r.data_criacao_chat, r.data_fechamento,
		COALESCE(r.evento_timestamp, r.data_criacao_chat, r.ingested_at),
		r.ingested_at,
		r.msg_conteudo, r.msg_tipo, ` + msgFromClientSQL + `,
		CASE
		  WHEN r.msg_status_envio IS TRUE THEN NULL
		  WHEN r.msg_status_envio IS FALSE THEN COALESCE(NULLIF(BTRIM(r.msg_erro_motivo), ''), 'false')
		  ELSE NULL
		END
		FROM public.smclick_raw_events r`

	var args []any
	var wheres []string
	if !normalize.IsWildcard(q.Status) {
		args = append(args, q.Status)
		wheres = append(wheres, fmt.Sprintf("(r.status_conversa = $%d OR %s = $%d)", len(args), statusNormalizedSQL, len(args)))
	}
	if !normalize.IsWildcard(q.Etapa) {
		args = append(args, q.Etapa)
		wheres = append(wheres, fmt.Sprintf("r.etapa_funil = $%d", len(args)))
	}
	if q.DateFrom != "" {
		args = append(args, q.DateFrom)
		wheres = append(wheres, fmt.Sprintf("COALESCE(r.evento_timestamp, r.data_criacao_chat, r.ingested_at)::date >= $%d::date", len(args)))
	}
	if q.DateTo != "" {
		args = append(args, q.DateTo)
		wheres = append(wheres, fmt.Sprintf("COALESCE(r.evento_timestamp, r.data_criacao_chat, r.ingested_at)::date <= $%d::date", len(args)))
	}
	if !normalize.IsWildcard(q.Vendedor) {
		args = append(args, q.Vendedor)
		wheres = append(wheres, fmt.Sprintf("r.vendedor_nome = $%d", len(args)))
	}
	if len(wheres) > 0 {
		query += " WHERE " + strings.Join(wheres, " AND ")
	}
	query += " ORDER BY COALESCE(r.evento_timestamp, r.data_criacao_chat, r.ingested_at) DESC, r.id DESC LIMIT $" + strconv.Itoa(len(args)+1)
	args = append(args, limit)

	rows, err := s.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var out []models.RawEvent
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func scanEvent(rows pgx.Rows) (models.RawEvent, error) {
	var (
		id, chatID, protocolo, clienteNome, clienteTelefone, clienteIDCRM *string
		vendedorNome, vendedorEmail, status, statusNorm                   *string
		etapa, kanban, departamento, instancia, fluxo, produto, motivo    *string
		valor, conteudo, tipo, statusEnvio                                *string
		criacao, fechamento, evento, ingested                             *time.Time
		fromClient                                                        *bool
	)
	if err := rows.Scan(
		&id, &chatID, &protocolo, &clienteNome, &clienteTelefone,
		&clienteIDCRM, &vendedorNome, &vendedorEmail, &status, &statusNorm,
		&etapa, &kanban, &departamento, &instancia, &fluxo,
		&produto, &motivo, &valor,
		&criacao, &fechamento, &evento, &ingested,
		&conteudo, &tipo, &fromClient, &statusEnvio,
	); err != nil {
		return models.RawEvent{}, err
	}
	e := models.RawEvent{
		ID:                models.FlexString(derefString(id)),
		ChatID:            models.FlexString(derefString(chatID)),
		Protocolo:         models.FlexString(derefString(protocolo)),
		ClienteNome:       derefString(clienteNome),
		ClienteTelefone:   derefString(clienteTelefone),
		ClienteIDCRM:      models.FlexString(derefString(clienteIDCRM)),
		VendedorNome:      derefString(vendedorNome),
		VendedorEmail:     derefString(vendedorEmail),
		StatusConversa:    derefString(status),
		StatusNormalizado: derefString(statusNorm),
		EtapaFunil:        derefString(etapa),
		ColunaKanban:      derefString(kanban),
		Departamento:      derefString(departamento),
		InstanciaNome:     derefString(instancia),
		TipoFluxo:         derefString(fluxo),
		ProdutoInteresse:  derefString(produto),
		MotivoPerda:       derefString(motivo),
		DataCriacaoChat:   formatTime(criacao),
		DataFechamento:    formatTime(fechamento),
		EventoTimestamp:   formatTime(evento),
		CreatedAt:         formatTime(ingested),
		MsgConteudo:       derefString(conteudo),
		MsgTipo:           derefString(tipo),
		MsgFromClient:     fromClient,
		MsgStatusEnvio:    models.FlexString(derefString(statusEnvio)),
	}
	if valor != nil {
		e.ValorOrcamento = *valor
	}
	return e, nil
}

// Messages returns the message history of one chat, merged from both message
// tables. Copies of the same message are collapsed, preferring semclick_messages.
func (s *Store) Messages(ctx context.Context, chatID string, limit int) ([]models.RawEvent, error) {
	if limit <= 0 {
		limit = defaultMessageLimit
	}
	rows, err := s.Pool.Query(ctx, `
		WITH messages_union AS (
			SELECT
				1 AS source_priority,
				sm.id::text AS source_id,
				sm.chat_id::text AS chat_id,
				COALESCE(sm.message_time, sm.created_at) AS evento_timestamp,
				NULLIF(BTRIM(COALESCE(sm.msg_tipo, '')), '') AS msg_tipo,
				NULLIF(BTRIM(COALESCE(sm.msg_conteudo, '')), '') AS msg_conteudo,
				CASE
					WHEN LOWER(COALESCE(sm.author_type, '')) IN ('client', 'customer', 'contato', 'cliente', 'inbound') THEN TRUE
					WHEN LOWER(COALESCE(sm.author_type, '')) IN ('agent', 'attendant', 'vendedor', 'seller', 'outbound', 'system', 'bot') THEN FALSE
					ELSE NULL
				END AS msg_from_client,
				CASE
					WHEN sm.msg_status_envio IS FALSE THEN COALESCE(NULLIF(BTRIM(sm.msg_erro_motivo), ''), 'false')
					ELSE NULL
				END AS msg_status_envio
			FROM semclick_messages sm
			WHERE sm.chat_id IS NOT NULL

			UNION ALL

			SELECT
				2 AS source_priority,
				COALESCE(m.message_id::text, md5(COALESCE(m.chat_id::text, '') || '|' || COALESCE(m."timestamp"::text, '') || '|' || COALESCE(m.content, ''))) AS source_id,
				m.chat_id::text AS chat_id,
				m."timestamp" AS evento_timestamp,
				NULLIF(BTRIM(COALESCE(m.message_type, '')), '') AS msg_tipo,
				NULLIF(BTRIM(COALESCE(m.content, '')), '') AS msg_conteudo,
				m.from_client AS msg_from_client,
				NULL::text AS msg_status_envio
			FROM messages m
			WHERE m.chat_id IS NOT NULL
		),
		ranked AS (
			SELECT
				mu.*,
				ROW_NUMBER() OVER (
					PARTITION BY mu.chat_id, mu.evento_timestamp, mu.msg_from_client,
						COALESCE(mu.msg_tipo, ''), COALESCE(mu.msg_conteudo, '')
					ORDER BY mu.source_priority ASC, mu.source_id DESC
				) AS dedup_rank
			FROM messages_union mu
			WHERE mu.chat_id = $1
				AND (mu.msg_tipo IS NOT NULL OR mu.msg_conteudo IS NOT NULL)
		)
		SELECT source_id, chat_id, evento_timestamp, msg_conteudo, msg_tipo, msg_from_client, msg_status_envio
		FROM ranked
		WHERE dedup_rank = 1
		ORDER BY evento_timestamp ASC NULLS LAST, source_id ASC
		LIMIT $2
	`, chatID, limit)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	var out []models.RawEvent
	for rows.Next() {
		var (
			id, chat, conteudo, tipo, statusEnvio *string
			evento                                *time.Time
			fromClient                            *bool
		)
		if err := rows.Scan(&id, &chat, &evento, &conteudo, &tipo, &fromClient, &statusEnvio); err != nil {
			return nil, err
		}
		out = append(out, models.RawEvent{
			ID:              models.FlexString(derefString(id)),
			ChatID:          models.FlexString(derefString(chat)),
			EventoTimestamp: formatTime(evento),
			MsgConteudo:     derefString(conteudo),
			MsgTipo:         derefString(tipo),
			MsgFromClient:   fromClient,
			MsgStatusEnvio:  models.FlexString(derefString(statusEnvio)),
		})
	}
	return out, rows.Err()
}

func derefString(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}

func formatTime(v *time.Time) string {
	if v == nil {
		return ""
	}
	return v.UTC().Format(time.RFC3339Nano)
}
