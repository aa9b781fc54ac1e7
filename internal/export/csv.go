package export

import (
	"bufio"
	"io"
	"strconv"
	"strings"

	"github.com/vogaflex/crm-insights/internal/models"
)

var header = []string{"protocolo", "cliente", "vendedor", "etapa", "status", "valor", "data"}

// WriteCSV writes one row per conversation. Every field is quoted so spreadsheet
// tools never reinterpret phone numbers or protocol ids.
func WriteCSV(w io.Writer, convs []models.Conversation) error {
	bw := bufio.NewWriter(w)
	if err := writeRow(bw, header); err != nil {
		return err
	}
	for _, c := range convs {
		if err := writeRow(bw, Row(c)); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// Row is the exported projection of a conversation.
func Row(c models.Conversation) []string {
	protocolo := c.Protocolo.String()
	if protocolo == "" {
		protocolo = c.ChatID.String()
	}
	data := c.EventoTimestamp
	if data == "" {
		data = c.DataCriacaoChat
	}
	return []string{
		protocolo,
		c.ClienteNome,
		c.VendedorNome,
		c.EtapaFunil,
		c.StatusConversa,
		strconv.FormatFloat(c.ValorOrcamento, 'f', -1, 64),
		data,
	}
}

func writeRow(w *bufio.Writer, fields []string) error {
	for i, f := range fields {
		if i > 0 {
			if err := w.WriteByte(','); err != nil {
				return err
			}
		}
		if _, err := w.WriteString(quote(f)); err != nil {
			return err
		}
	}
	return w.WriteByte('\n')
}

func quote(field string) string {
	return `"` + strings.ReplaceAll(field, `"`, `""`) + `"`
}
