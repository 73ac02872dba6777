package listing

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/pointage-admin/pointage-admin/internal/entity"
)

// fold lowers s and strips combining accents so "Département" matches "departement".
func fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	stripped, _, err := transform.String(t, s)
	if err != nil {
		stripped = s
	}
	return cases.Fold().String(strings.TrimSpace(stripped))
}

// filterRows keeps the rows where any visible cell contains every word of query.
func filterRows(rows []entity.Record, query string) []entity.Record {
	words := strings.Fields(fold(query))
	if len(words) == 0 {
		return rows
	}
	out := make([]entity.Record, 0, len(rows))
	for _, row := range rows {
		haystack := fold(strings.Join(row.Cells(), " "))
		match := true
		for _, w := range words {
			if !strings.Contains(haystack, w) {
				match = false
				break
			}
		}
		if match {
			out = append(out, row)
		}
	}
	return out
}
