// Package fetcher reads MTR line items from spreadsheets and writes the
// normalized output back. The pipeline itself never touches the file
// format; it only sees ordered column mappings.
package fetcher

import (
	"strings"

	"github.com/promdata/mtr-cli/internal/model"
)

// headerAliases maps source header spellings (lowercased, trimmed) to
// canonical column keys. Russian headers come from the procurement
// sheets this tool was built for; English ones cover exports.
var headerAliases = map[string]string{
	"наименование":           model.ColOriginalName,
	"наименование мтр":       model.ColOriginalName,
	"наименование позиции":   model.ColOriginalName,
	"название":               model.ColOriginalName,
	"name":                   model.ColOriginalName,
	"description":            model.ColOriginalName,
	"ед. изм.":               model.ColOriginalUnit,
	"ед.изм.":                model.ColOriginalUnit,
	"ед изм":                 model.ColOriginalUnit,
	"единица измерения":      model.ColOriginalUnit,
	"unit":                   model.ColOriginalUnit,
	"код":                    model.ColInternalCode,
	"внутренний код":         model.ColInternalCode,
	"код мтр":                model.ColInternalCode,
	"internal code":          model.ColInternalCode,
	"code":                   model.ColInternalCode,
	"категория":              model.ColCategoryName,
	"category":               model.ColCategoryName,
	"нормализованная ед.":    model.ColNormalizedUnit,
	"код окпд2":              model.ColOKPD2Code,
	"окпд2":                  model.ColOKPD2Code,
	"комментарий":            model.ColComment,
	"примечание":             model.ColComment,
}

// canonicalColumn maps one source header to its canonical key, or ""
// when the header is not recognized.
func canonicalColumn(header string) string {
	return headerAliases[strings.ToLower(strings.TrimSpace(header))]
}

// mapHeader converts a header row to canonical keys, keeping
// unrecognized headers as-is (lowercased) so their cells survive into
// the output untouched.
func mapHeader(cells []string) []string {
	out := make([]string, len(cells))
	for i, c := range cells {
		if canonical := canonicalColumn(c); canonical != "" {
			out[i] = canonical
			continue
		}
		out[i] = strings.ToLower(strings.TrimSpace(c))
	}
	return out
}

// isHeaderRow reports whether a row looks like the header: it must name
// the description column under a known alias.
func isHeaderRow(cells []string) bool {
	for _, c := range cells {
		if canonicalColumn(c) == model.ColOriginalName {
			return true
		}
	}
	return false
}
