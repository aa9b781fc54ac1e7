package timeline

import (
	"github.com/vogaflex/crm-insights/internal/models"
)

const botName = "Bot"

// message is the per-event input every rule sees.
type message struct {
	event      models.RawEvent
	conv       models.Conversation
	content    string
	vendorName string
	vendorText string
	hasVendor  bool
}

// Rule is one step of the sender attribution. Rules run in order and the first
// match decides the entry.
type Rule struct {
	Name  string
	Match func(m message) (models.MessageEntry, bool)
}

// rules is the attribution order. Client flags are trusted over any content heuristic.
var rules = []Rule{
	{Name: "client_flag", Match: matchClient},
	{Name: "bot_message_type", Match: matchBotType},
	{Name: "bot_boilerplate", Match: matchBoilerplate},
	{Name: "vendor_signature", Match: matchVendor},
	{Name: "default_bot", Match: matchDefault},
}

// Classify attributes one message event to client, vendor or bot.
func Classify(e models.RawEvent, conv models.Conversation) models.MessageEntry {
	content := Clean(Content(e))
	name, rest, ok := SplitVendorName(content)
	m := message{
		event:      e,
		conv:       conv,
		content:    content,
		vendorName: name,
		vendorText: rest,
		hasVendor:  ok,
	}
	for _, r := range rules {
		if entry, matched := r.Match(m); matched {
			entry.Rule = r.Name
			entry.ID = e.ID.String()
			entry.Timestamp = e.EventoTimestamp
			entry.MessageType = e.MsgTipo
			entry.DeliveryStatus = DeliveryStatus(e)
			return entry
		}
	}
	return models.MessageEntry{}
}

func matchClient(m message) (models.MessageEntry, bool) {
	if !m.event.FromClient() {
		return models.MessageEntry{}, false
	}
	name := m.conv.ClienteNome
	if name == "" {
		name = "Cliente"
	}
	return models.MessageEntry{SenderRole: models.RoleClient, SenderName: name, DisplayContent: m.content}, true
}

func matchBotType(m message) (models.MessageEntry, bool) {
	if !isBotType(m.event.MsgTipo) {
		return models.MessageEntry{}, false
	}
	return botEntry(m), true
}

func matchBoilerplate(m message) (models.MessageEntry, bool) {
	if !IsBoilerplate(m.content) {
		return models.MessageEntry{}, false
	}
	return botEntry(m), true
}

func matchVendor(m message) (models.MessageEntry, bool) {
	if !m.hasVendor {
		return models.MessageEntry{}, false
	}
	name := m.vendorName
	if name == "" {
		name = m.conv.VendedorNome
	}
	if name == "" {
		name = "Vendedor"
	}
	return models.MessageEntry{SenderRole: models.RoleVendor, SenderName: name, DisplayContent: m.vendorText}, true
}

func matchDefault(m message) (models.MessageEntry, bool) {
	return botEntry(m), true
}

func botEntry(m message) models.MessageEntry {
	return models.MessageEntry{SenderRole: models.RoleBot, SenderName: botName, DisplayContent: m.content}
}
