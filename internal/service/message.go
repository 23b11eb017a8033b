package service

import (
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"estate_tracker/internal/domain"
)

var printer = message.NewPrinter(language.English)

// FormatNotification renders the chat message announcing a listing.
func FormatNotification(c domain.Candidate) string {
	var parts []string
	for _, p := range []*string{c.City, c.Municipality, c.MicroLocation} {
		if p != nil && strings.TrimSpace(*p) != "" {
			parts = append(parts, strings.TrimSpace(*p))
		}
	}

	var size, rooms float64
	if c.SizeM2 != nil {
		size = *c.SizeM2
	}
	if c.Rooms != nil {
		rooms = *c.Rooms
	}
	city := ""
	if c.City != nil {
		city = *c.City
	}

	var sb strings.Builder
	sb.WriteString(printer.Sprintf("🏢 City: %s\n", city))
	sb.WriteString(printer.Sprintf("📍 Location: %s\n", strings.Join(parts, " - ")))
	sb.WriteString(printer.Sprintf("💰 Price: € %d\n", int64(c.Price)))
	sb.WriteString(printer.Sprintf("📏 Size: %.2f m²\n", size))
	sb.WriteString(printer.Sprintf("🏠 Rooms: %.2f\n", rooms))
	sb.WriteString(printer.Sprintf("📅 Publication date: %s\n", c.FirstSeenAt.Format("2006-01-02")))
	sb.WriteString(printer.Sprintf("🔗 Link: %s", c.URL))
	return sb.String()
}
