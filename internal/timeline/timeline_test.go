package timeline

import (
	"testing"

	"github.com/vogaflex/crm-insights/internal/models"
)

func boolPtr(v bool) *bool { return &v }

func TestContentPlaceholders(t *testing.T) {
	cases := map[string]string{
		"image":    "[Imagem]",
		" AUDIO ":  "[Áudio]",
		"location": "[Localização]",
		"sticker":  "[Mensagem]",
		"":         "[Mensagem]",
	}
	for msgType, want := range cases {
		if got := Content(models.RawEvent{MsgTipo: msgType}); got != want {
			t.Fatalf("type %q: expected %q, got %q", msgType, want, got)
		}
	}
	if got := Content(models.RawEvent{MsgTipo: "image", MsgConteudo: "legenda"}); got != "legenda" {
		t.Fatalf("expected content to win over placeholder, got %q", got)
	}
}

func TestClean(t *testing.T) {
	cases := map[string]string{
		"\r\n\r\n:\r\n\r\nOlá\r\nTudo bem?  ": "Olá\nTudo bem?",
		"   ":            "--",
		":\n":            "--",
		"linha\r":        "linha",
		"a:\nb":          "a:\nb",
	}
	for in, want := range cases {
		if got := Clean(in); got != want {
			t.Fatalf("Clean(%q): expected %q, got %q", in, want, got)
		}
	}
}

func TestSplitVendorName(t *testing.T) {
	name, rest, ok := SplitVendorName("*João* Segue o orçamento")
	if !ok || name != "João" || rest != "Segue o orçamento" {
		t.Fatalf("unexpected split: %q %q %v", name, rest, ok)
	}

	rejected := []string{
		"*Horário de atendimento* das 8h",
		"*Pedido 123* enviado",
		"*Atenção:* leia",
		"*um dois tres quatro cinco seis* oi",
		"sem negrito",
	}
	for _, in := range rejected {
		if _, _, ok := SplitVendorName(in); ok {
			t.Fatalf("expected %q to be rejected", in)
		}
	}

	if _, rest, ok := SplitVendorName("*Carla*"); !ok || rest != "--" {
		t.Fatalf("expected empty remainder placeholder, got %q", rest)
	}
}

func TestClassifyRules(t *testing.T) {
	conv := models.Conversation{Key: "c1", RawEvent: models.RawEvent{ClienteNome: "Maria", VendedorNome: "Ana"}}

	cases := []struct {
		name     string
		event    models.RawEvent
		role     models.SenderRole
		sender   string
		content  string
		ruleName string
	}{
		{
			name:     "client flag",
			event:    models.RawEvent{MsgConteudo: "Quero um orçamento", MsgFromClient: boolPtr(true)},
			role:     models.RoleClient,
			sender:   "Maria",
			content:  "Quero um orçamento",
			ruleName: "client_flag",
		},
		{
			name:     "greeting is bot",
			event:    models.RawEvent{MsgConteudo: "Olá, seja bem-vindo(a)! Sou a Helena, assistente de vendas da Vogaflex."},
			role:     models.RoleBot,
			sender:   "Bot",
			content:  "Olá, seja bem-vindo(a)! Sou a Helena, assistente de vendas da Vogaflex.",
			ruleName: "bot_boilerplate",
		},
		{
			name:     "template type",
			event:    models.RawEvent{MsgTipo: "Template", MsgConteudo: "*Ana* lembrete"},
			role:     models.RoleBot,
			sender:   "Bot",
			content:  "*Ana* lembrete",
			ruleName: "bot_message_type",
		},
		{
			name:     "vendor signature",
			event:    models.RawEvent{MsgConteudo: "*João* Segue o orçamento", MsgFromClient: boolPtr(false)},
			role:     models.RoleVendor,
			sender:   "João",
			content:  "Segue o orçamento",
			ruleName: "vendor_signature",
		},
		{
			name:     "unsigned outbound",
			event:    models.RawEvent{MsgConteudo: "Pedido confirmado"},
			role:     models.RoleBot,
			sender:   "Bot",
			content:  "Pedido confirmado",
			ruleName: "default_bot",
		},
	}
	for _, tc := range cases {
		got := Classify(tc.event, conv)
		if got.SenderRole != tc.role || got.SenderName != tc.sender || got.DisplayContent != tc.content || got.Rule != tc.ruleName {
			t.Fatalf("%s: unexpected entry %+v", tc.name, got)
		}
	}
}

func TestClassifyClientFallbackName(t *testing.T) {
	got := Classify(models.RawEvent{MsgFromClient: boolPtr(true)}, models.Conversation{})
	if got.SenderName != "Cliente" || got.DisplayContent != "[Mensagem]" {
		t.Fatalf("unexpected entry %+v", got)
	}
}

func TestDeliveryStatus(t *testing.T) {
	if got := DeliveryStatus(models.RawEvent{MsgStatusEnvio: "TRUE"}); got != "" {
		t.Fatalf("expected boolean status hidden, got %q", got)
	}
	if got := DeliveryStatus(models.RawEvent{MsgStatusEnvio: " lida "}); got != "lida" {
		t.Fatalf("expected trimmed status, got %q", got)
	}
}

func TestDedupe(t *testing.T) {
	events := []models.RawEvent{
		{ID: "1", EventoTimestamp: "2024-05-01T10:00:00Z", MsgConteudo: "oi"},
		{ID: "2", EventoTimestamp: "2024-05-01T10:00:00Z", MsgConteudo: "\r\noi  "},
		{ID: "3", EventoTimestamp: "2024-05-01T10:00:00Z", MsgConteudo: "oi", MsgFromClient: boolPtr(true)},
		{ID: "4", ChatID: "other", EventoTimestamp: "2024-05-01T10:00:00Z", MsgConteudo: "oi"},
		{ID: "5"},
		{ID: "6", EventoTimestamp: "2024-05-01T10:01:00Z"},
	}
	got := Dedupe(events, "c1")
	ids := ""
	for _, e := range got {
		ids += e.ID.String()
	}
	if ids != "13456" {
		t.Fatalf("expected ids 13456, got %s", ids)
	}
}

func TestDedupeUsesFallbackChatID(t *testing.T) {
	events := []models.RawEvent{
		{ID: "1", MsgConteudo: "oi"},
		{ID: "2", ChatID: "c1", MsgConteudo: "oi"},
	}
	if got := Dedupe(events, "c1"); len(got) != 1 {
		t.Fatalf("expected fallback chat id to collapse duplicates, got %d", len(got))
	}
}

func TestBuild(t *testing.T) {
	conv := models.Conversation{Key: "c1", RawEvent: models.RawEvent{ClienteNome: "Maria"}}
	events := []models.RawEvent{
		{ID: "1", EventoTimestamp: "t1", MsgConteudo: "Oi", MsgFromClient: boolPtr(true)},
		{ID: "2", EventoTimestamp: "t1", MsgConteudo: "Oi", MsgFromClient: boolPtr(true)},
		{ID: "3", EventoTimestamp: "t2", MsgConteudo: "Vou encaminhar ao nosso time de vendas", MsgStatusEnvio: "entregue"},
	}
	entries := Build(events, conv)
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[1].SenderRole != models.RoleBot || entries[1].DeliveryStatus != "entregue" || entries[1].ID != "3" {
		t.Fatalf("unexpected handoff entry %+v", entries[1])
	}
}

func TestIsHandoff(t *testing.T) {
	if !IsHandoff("Obrigada, vou encaminhar ao nosso time de vendas!") {
		t.Fatalf("expected handoff phrase to match")
	}
	if IsHandoff("Segue o orçamento") {
		t.Fatalf("expected plain text not to match")
	}
}
