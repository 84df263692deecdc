package address

import (
	"fmt"
	"strings"

	"github.com/superskip/dispatch/internal/models"
)

// Format renders one record as "ADDRESS, CITY, STATE ZIP".
// Address, city and state are trimmed and upper-cased; zip is trimmed only.
// Missing fields render as empty segments, never an error.
func Format(rec models.AddressRecord) string {
	addr := strings.ToUpper(strings.TrimSpace(rec.Address))
	city := strings.ToUpper(strings.TrimSpace(rec.City))
	state := strings.ToUpper(strings.TrimSpace(rec.State))
	zip := strings.TrimSpace(rec.Zip)

	// No comma between state and zip.
	return fmt.Sprintf("%s, %s, %s %s", addr, city, state, zip)
}

// FormatRecords maps records to formatted addresses one-to-one, preserving order.
func FormatRecords(records []models.AddressRecord) []string {
	formatted := make([]string, 0, len(records))
	for _, rec := range records {
		formatted = append(formatted, Format(rec))
	}

	return formatted
}

// Join renders formatted addresses as newline-joined plain text for export.
func Join(addresses []string) string {
	return strings.Join(addresses, "\n")
}
