package timeline

import (
	"strings"

	"github.com/vogaflex/crm-insights/internal/normalize"
)

// HandoffPhrases are the SDR bot's transfer messages, accent-free and lower-case.
var HandoffPhrases = []string{
	"agradeco pelas informacoes! estou direcionando o seu atendimento ao nosso setor de vendas",
	"agradeco pelas informacoes! estou direcionando o seu atendimento ao nosso time de vendas",
	"vou direcionar seu atendimento ao nosso time de vendas",
	"vou encaminhar ao nosso time de vendas",
	"obrigado, vou encaminhar ao nosso time de vendas",
	"obrigada, vou encaminhar ao nosso time de vendas",
	"atendimento ao nosso setor de vendas.",
}

var greetingPhrases = []string{
	"ola, seja bem-vindo(a)! sou a helena, assistente de vendas da vogaflex.",
	"deseja tirar alguma duvida ou gostaria de um orcamento?",
	"nosso horario de atendimento e das 08h as 17h, de segunda a sexta-feira.",
	"no momento, nossos atendentes estao fora do horario de atendimento. assim que retornarmos, daremos sequencia a nossa conversa.",
}

var boilerplateFragments = []string{
	"assistente de vendas",
	"horario de atendimento",
	"fora do horario",
	"daremos sequencia",
	"retornarmos",
	"seja bem-vind",
	"deseja tirar alguma duvida",
	"gostaria de um orcamento",
}

var botMessageTypes = map[string]struct{}{
	"template":   {},
	"system":     {},
	"bot":        {},
	"automation": {},
	"automated":  {},
}

// nameBlocklist rejects bold spans that are bot headings rather than signatures.
var nameBlocklist = []string{
	"horario de atendimento",
	"fora do horario",
	"assistente",
	"setor de vendas",
	"time de vendas",
}

// IsHandoff reports whether text is one of the bot's transfer-to-sales messages.
func IsHandoff(text string) bool {
	return containsAny(normalize.BotText(text), HandoffPhrases)
}

// IsBoilerplate reports whether text is canned bot copy.
func IsBoilerplate(text string) bool {
	normalized := normalize.BotText(text)
	if normalized == "" || normalized == "null" {
		return false
	}
	return containsAny(normalized, greetingPhrases) ||
		containsAny(normalized, HandoffPhrases) ||
		containsAny(normalized, boilerplateFragments)
}

func isBotType(msgType string) bool {
	_, ok := botMessageTypes[normalize.BotText(msgType)]
	return ok
}

func containsAny(s string, phrases []string) bool {
	for _, p := range phrases {
		if strings.Contains(s, p) {
			return true
		}
	}
	return false
}
