package timeline

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/vogaflex/crm-insights/internal/models"
	"github.com/vogaflex/crm-insights/internal/normalize"
)

const emptyContent = "--"

var placeholders = map[string]string{
	"image":    "[Imagem]",
	"audio":    "[Áudio]",
	"video":    "[Vídeo]",
	"file":     "[Arquivo]",
	"document": "[Documento]",
	"template": "[Template]",
	"call":     "[Chamada]",
	"vcard":    "[Contato]",
	"location": "[Localização]",
}

// Content is the message text, or a bracketed placeholder for media and empty rows.
func Content(e models.RawEvent) string {
	if e.MsgConteudo != "" {
		return e.MsgConteudo
	}
	if p, ok := placeholders[normalize.Text(e.MsgTipo)]; ok {
		return p
	}
	return "[Mensagem]"
}

// Clean normalizes line endings and drops the leading blank lines and the lone
// ":" line some channels prepend to forwarded text.
func Clean(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	lines := strings.Split(s, "\n")
	lines = dropBlank(lines)
	if len(lines) > 0 && strings.TrimSpace(lines[0]) == ":" {
		lines = lines[1:]
	}
	lines = dropBlank(lines)
	cleaned := strings.TrimSpace(strings.Join(lines, "\n"))
	if cleaned == "" {
		return emptyContent
	}
	return cleaned
}

func dropBlank(lines []string) []string {
	for len(lines) > 0 && strings.TrimSpace(lines[0]) == "" {
		lines = lines[1:]
	}
	return lines
}

var boldSpan = regexp.MustCompile(`\*([^*]+)\*`)

// SplitVendorName extracts a "*Name*" signature from vendor text. When the first
// bold span does not look like a person's name, ok is false and the text is
// returned trimmed.
func SplitVendorName(s string) (name, rest string, ok bool) {
	loc := boldSpan.FindStringSubmatchIndex(s)
	if loc == nil {
		return "", orEmpty(strings.TrimSpace(s)), false
	}
	candidate := strings.TrimSpace(s[loc[2]:loc[3]])
	if !plausibleName(candidate) {
		return "", orEmpty(strings.TrimSpace(s)), false
	}
	rest = strings.TrimSpace(s[:loc[0]] + s[loc[1]:])
	return candidate, orEmpty(rest), true
}

func plausibleName(candidate string) bool {
	if candidate == "" || utf8.RuneCountInString(candidate) > 40 {
		return false
	}
	if len(strings.Fields(candidate)) > 5 {
		return false
	}
	if strings.ContainsAny(candidate, ".!?:;") {
		return false
	}
	if strings.IndexFunc(candidate, unicode.IsDigit) >= 0 {
		return false
	}
	return !containsAny(normalize.BotText(candidate), nameBlocklist)
}

func orEmpty(s string) string {
	if s == "" {
		return emptyContent
	}
	return s
}

// DeliveryStatus hides the boolean "true" some channels report instead of a status.
func DeliveryStatus(e models.RawEvent) string {
	status := strings.TrimSpace(e.MsgStatusEnvio.String())
	if status == "" || strings.EqualFold(status, "true") {
		return ""
	}
	return status
}
