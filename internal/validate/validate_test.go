package validate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/promdata/mtr-cli/internal/model"
)

func testCategory() *model.Category {
	return &model.Category{
		Name:        "PRESSURE_SENSOR",
		Unit:        "штука",
		OKPD2Prefix: "26.51.52",
		Schema:      []string{"type", "measurement_range"},
	}
}

func enriched(desc, unit string) *model.EnrichedRecord {
	rec := model.NewEnrichedRecord(model.RawRecord{
		Values: map[string]string{
			model.ColOriginalName: desc,
			model.ColOriginalUnit: unit,
		},
	}, testCategory(), 0.9)
	rec.SetField("type", model.FieldValue{Value: "избыточное давление", Confidence: 0.9})
	rec.SetField("measurement_range", model.FieldValue{Value: "0-16 МПа", Confidence: 0.85})
	return rec
}

func deepClassification() model.ClassificationResult {
	return model.ClassificationResult{Code: "26.51.52.130", Level: 4, Confidence: 0.9}
}

func TestValidateAccepts(t *testing.T) {
	v := New(0.6)
	out := v.Validate(enriched("Датчик давления ДМ-02", "шт"), deepClassification())
	assert.True(t, out.Accepted)
	assert.Empty(t, out.Reason)
}

func TestValidatePrefixCodeNoFinerEntryAccepted(t *testing.T) {
	// The registry has nothing deeper than the prefix: minimum
	// specificity alone is not a defect.
	v := New(0.6)
	cls := model.ClassificationResult{
		Code: "26.51.52", Level: 3, MinimumSpecificity: true, FinerExists: false,
	}
	out := v.Validate(enriched("Датчик давления ДМ-02", "шт"), cls)
	assert.True(t, out.Accepted)
}

func TestValidatePrefixCodeFinerExistsRejected(t *testing.T) {
	v := New(0.6)
	cls := model.ClassificationResult{
		Code: "26.51.52", Level: 3, MinimumSpecificity: true, FinerExists: true,
	}
	out := v.Validate(enriched("Датчик давления ДМ-02", "шт"), cls)
	require.False(t, out.Accepted)
	assert.Contains(t, out.Reason, "Не подлежит нормализации")
	assert.Contains(t, out.Reason, "детализации")
}

func TestValidateMissingFieldRejected(t *testing.T) {
	v := New(0.6)
	rec := enriched("Датчик давления ДМ-02", "шт")
	rec.Fields = map[string]model.FieldValue{
		"type": {Value: "избыточное давление", Confidence: 0.9},
	}
	out := v.Validate(rec, deepClassification())
	require.False(t, out.Accepted)
	assert.Contains(t, out.Reason, "measurement_range")
}

func TestValidateLowConfidenceFieldRejected(t *testing.T) {
	v := New(0.6)
	rec := enriched("Датчик давления ДМ-02", "шт")
	rec.Fields["measurement_range"] = model.FieldValue{Value: "0-16 МПа", Confidence: 0.3}
	out := v.Validate(rec, deepClassification())
	assert.False(t, out.Accepted)
}

func TestValidateUnitMismatchRejected(t *testing.T) {
	v := New(0.6)
	out := v.Validate(enriched("Датчик давления ДМ-02", "тн"), deepClassification())
	require.False(t, out.Accepted)
	assert.Contains(t, out.Reason, "единица измерения")
}

func TestValidateConvertibleUnitAccepted(t *testing.T) {
	v := New(0.6)
	for _, unit := range []string{"шт", "шт.", "штука", "ШТ"} {
		out := v.Validate(enriched("Датчик давления ДМ-02", unit), deepClassification())
		assert.True(t, out.Accepted, "unit %q", unit)
	}
}

func TestValidateVariableRangeRejected(t *testing.T) {
	v := New(0.6)
	out := v.Validate(enriched("Датчик давления от 10 до 50 МПа", "шт"), deepClassification())
	require.False(t, out.Accepted)
	assert.Contains(t, out.Reason, "переменные характеристики")
}

func TestValidateMaterialContradictionRejected(t *testing.T) {
	v := New(0.6)
	rec := enriched("Датчик давления стальной ДМ-02", "шт")
	rec.SetField("material", model.FieldValue{Value: "латунь", Confidence: 0.9})
	out := v.Validate(rec, deepClassification())
	require.False(t, out.Accepted)
	assert.Contains(t, out.Reason, "противоречие")
}

func TestValidateRuleOrderFirstFailureWins(t *testing.T) {
	// Both specificity and unit would fail; the specificity reason must
	// win because it is checked first.
	v := New(0.6)
	cls := model.ClassificationResult{
		Code: "26.51.52", MinimumSpecificity: true, FinerExists: true,
	}
	out := v.Validate(enriched("Датчик давления ДМ-02", "тонна"), cls)
	require.False(t, out.Accepted)
	assert.Contains(t, out.Reason, "детализации")
}

func TestValidateDeterministic(t *testing.T) {
	v := New(0.6)
	rec := enriched("Датчик давления ДМ-02", "шт")
	first := v.Validate(rec, deepClassification())
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, v.Validate(rec, deepClassification()))
	}
}

func TestNormalizeUnit(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"шт", "штука", true},
		{"шт.", "штука", true},
		{"ШТУКА", "штука", true},
		{"т", "тонна", true},
		{"тн", "тонна", true},
		{"бухта", "", false},
	}
	for _, tt := range tests {
		got, ok := NormalizeUnit(tt.in)
		assert.Equal(t, tt.ok, ok, "unit %q", tt.in)
		assert.Equal(t, tt.want, got, "unit %q", tt.in)
	}
}
