package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sensorCategory() *Category {
	return &Category{
		Name:        "PRESSURE_SENSOR",
		Unit:        "штука",
		OKPD2Prefix: "26.51.52",
		Schema:      []string{"тип", "диапазон измерения", "класс точности"},
	}
}

func TestSetFieldKeepsHigherConfidence(t *testing.T) {
	rec := NewEnrichedRecord(RawRecord{}, sensorCategory(), 0.9)

	rec.SetField("тип", FieldValue{Value: "избыточное давление", Confidence: 0.8, Source: SourceName})
	rec.SetField("тип", FieldValue{Value: "абсолютное давление", Confidence: 0.4, Source: SourceWeb})

	fv, ok := rec.Resolved("тип")
	require.True(t, ok)
	assert.Equal(t, "избыточное давление", fv.Value)

	// Higher confidence replaces.
	rec.SetField("тип", FieldValue{Value: "абсолютное давление", Confidence: 0.95, Source: SourceWeb})
	fv, _ = rec.Resolved("тип")
	assert.Equal(t, "абсолютное давление", fv.Value)
}

func TestMissingFieldsRespectsThresholdAndOrder(t *testing.T) {
	rec := NewEnrichedRecord(RawRecord{}, sensorCategory(), 0.9)
	rec.SetField("диапазон измерения", FieldValue{Value: "0-16 МПа", Confidence: 0.9})
	rec.SetField("класс точности", FieldValue{Value: "1.5", Confidence: 0.2})

	missing := rec.MissingFields(0.6)
	assert.Equal(t, []string{"тип", "класс точности"}, missing)
}

func TestRawRecordAccessors(t *testing.T) {
	rec := RawRecord{
		Values: map[string]string{
			ColOriginalName: "  Датчик давления ДМ-02 ",
			ColOriginalUnit: "шт",
		},
	}
	assert.Equal(t, "Датчик давления ДМ-02", rec.Description())
	assert.Equal(t, "шт", rec.Unit())
	assert.True(t, rec.HasMandatoryColumns())

	assert.False(t, RawRecord{}.HasMandatoryColumns())
}
