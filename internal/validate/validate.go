// Package validate applies the compliance rules to a fully enriched,
// classified record. Validation is a pure function: no I/O, no clock,
// no dependence on where the row sat in the batch.
package validate

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/promdata/mtr-cli/internal/fingerprint"
	"github.com/promdata/mtr-cli/internal/model"
)

// Validator holds the thresholds the rules evaluate against.
type Validator struct {
	// MinFieldConfidence is the confidence a schema field must reach to
	// count as resolved.
	MinFieldConfidence float64
}

// New builds a Validator with the given field-confidence threshold.
func New(minFieldConfidence float64) *Validator {
	return &Validator{MinFieldConfidence: minFieldConfidence}
}

// Validate runs the rules in order; the first failing rule determines
// the rejection reason. Rejection texts are fixed-format Russian, the
// language of the compliance domain.
func (v *Validator) Validate(rec *model.EnrichedRecord, cls model.ClassificationResult) model.ValidationOutcome {
	if reason := checkSpecificity(cls); reason != "" {
		return model.Reject(reason)
	}
	if reason := v.checkRequiredFields(rec); reason != "" {
		return model.Reject(reason)
	}
	if reason := checkUnit(rec); reason != "" {
		return model.Reject(reason)
	}
	if reason := checkConsistency(rec); reason != "" {
		return model.Reject(reason)
	}
	return model.Accept()
}

// Rule (a): when finer codes exist in the registry, stopping at the
// category prefix is a rejection. A prefix-level code with no finer
// entry at all is the best the classifier can do and passes.
func checkSpecificity(cls model.ClassificationResult) string {
	if cls.MinimumSpecificity && cls.FinerExists {
		return fmt.Sprintf("Не подлежит нормализации: код ОКПД2 %s не достигает максимальной детализации", cls.Code)
	}
	return ""
}

// Rule (b): every schema field resolved with sufficient confidence.
func (v *Validator) checkRequiredFields(rec *model.EnrichedRecord) string {
	missing := rec.MissingFields(v.MinFieldConfidence)
	if len(missing) == 0 {
		return ""
	}
	return fmt.Sprintf("Не подлежит нормализации: не определены обязательные характеристики: %s",
		strings.Join(missing, ", "))
}

// Rule (c): the source unit must match the category's expected unit or
// convert to it via the known table.
func checkUnit(rec *model.EnrichedRecord) string {
	expected := rec.Category.Unit
	raw := rec.Raw.Unit()
	if expected == "" || raw == "" {
		return ""
	}
	canonical, ok := NormalizeUnit(raw)
	if !ok || canonical != expected {
		return fmt.Sprintf("Не подлежит нормализации: единица измерения «%s» не соответствует ожидаемой «%s»", raw, expected)
	}
	return ""
}

var (
	rangePattern = regexp.MustCompile(`(?i)\bот\s+\d+([.,]\d+)?\s+до\s+\d+([.,]\d+)?`)
	multiDiam    = regexp.MustCompile(`(?i)[øф⌀]\s*\d+([.,]\d+)?\s*[,;/]\s*[øф⌀]?\s*\d+`)
)

// Rule (d): the raw description must not contradict the researched
// attributes, and names covering a range of variants («от 10 до 50»,
// multi-diameter lists) describe several products, not one.
func checkConsistency(rec *model.EnrichedRecord) string {
	desc := rec.Raw.Description()
	if rangePattern.MatchString(desc) || multiDiam.MatchString(desc) {
		return "Не подлежит нормализации: переменные характеристики в наименовании"
	}

	normDesc := fingerprint.Normalize(desc)
	for dimension, values := range attributeValues {
		mentioned := valueIn(normDesc, values)
		if mentioned == "" {
			continue
		}
		for _, fv := range rec.Fields {
			resolved := valueIn(fingerprint.Normalize(fv.Value), values)
			if resolved != "" && resolved != mentioned {
				return fmt.Sprintf("Не подлежит нормализации: противоречие характеристик (%s)", dimension)
			}
		}
	}
	return ""
}

// attributeValues lists mutually exclusive values per attribute
// dimension, keyed by the Russian dimension name used in reasons.
// Each value maps the word stems that spell it.
var attributeValues = map[string]map[string][]string{
	"цвет": {
		"красный":   {"красн"},
		"синий":     {"син"},
		"черный":    {"черн"},
		"белый":     {"бел"},
		"зеленый":   {"зелен"},
		"желтый":    {"желт"},
		"оранжевый": {"оранжев"},
	},
	"материал": {
		"сталь":    {"стальн", "сталь"},
		"медь":     {"медн", "медь"},
		"алюминий": {"алюмини"},
		"резина":   {"резинов", "резин"},
		"пластик":  {"пластик"},
		"латунь":   {"латунн", "латунь"},
		"чугун":    {"чугун"},
		"титан":    {"титанов", "титан"},
	},
}

// valueIn returns the attribute value whose stem prefixes a word of the
// normalized text, or "".
func valueIn(normText string, values map[string][]string) string {
	for _, w := range strings.Fields(normText) {
		for value, stems := range values {
			for _, stem := range stems {
				if strings.HasPrefix(w, stem) {
					return value
				}
			}
		}
	}
	return ""
}

// unitTable maps accepted unit spellings to their canonical form.
var unitTable = map[string]string{
	"шт":    "штука",
	"шт.":   "штука",
	"штука": "штука",
	"штук":  "штука",
	"т":     "тонна",
	"тн":    "тонна",
	"тонна": "тонна",
	"тонн":  "тонна",
	"кг":    "килограмм",
	"м":     "метр",
	"м.":    "метр",
	"метр":  "метр",
}

// NormalizeUnit converts a source unit spelling to its canonical form.
func NormalizeUnit(raw string) (string, bool) {
	key := strings.ToLower(strings.TrimSpace(raw))
	canonical, ok := unitTable[key]
	return canonical, ok
}
