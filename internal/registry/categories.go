// Package registry loads the process-wide category table: the built-in
// defaults, optionally overridden by an operator-maintained YAML file.
// The table is immutable after load; dynamic category proposals are
// staged by the detector and reviewed outside the hot path.
package registry

import (
	"os"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/promdata/mtr-cli/internal/model"
)

// DefaultCategories returns the built-in category table for the four
// product families the normalization service was commissioned for.
func DefaultCategories() []model.Category {
	return []model.Category{
		{
			Name:        "PRESSURE_SENSOR",
			Keywords:    []string{"датчик давления", "датчик", "давлен", "преобразователь давления", "pressure sensor", "pressure"},
			Unit:        "штука",
			OKPD2Prefix: "26.51.52",
			Schema: []string{
				"product", "type", "measured_quantity", "trademark_producer",
				"model_article", "identification", "measurement_range",
				"ambient_temperature", "accuracy_class", "output_signal",
				"climate_category", "explosion_protection", "electrical_connector",
				"additional_characteristics", "sensor_mount", "protection_degree",
				"material", "size_mm", "standard", "weight_kg",
			},
		},
		{
			Name:        "STEEL_CIRCLE",
			Keywords:    []string{"круг стальной", "круг", "сталь", "прокат", "steel circle", "steel"},
			Unit:        "тонна",
			OKPD2Prefix: "24.10.75",
			Schema: []string{
				"product", "hardness", "rolling_accuracy", "curvature_class",
				"diameter_mm", "length", "length_dimension", "standard_assortment",
				"surface_quality", "steel_grade", "standard_material", "weight_ton",
			},
		},
		{
			Name:        "HAMMER",
			Keywords:    []string{"молоток", "молот", "hammer"},
			Unit:        "штука",
			OKPD2Prefix: "25.73.30",
			Schema: []string{
				"product", "type", "striker_type", "trademark", "model_designation",
				"article", "striker_weight_kg", "length_mm", "handle_material",
				"handle_type", "standard", "additional_characteristics", "weight_kg",
			},
		},
		{
			Name:        "TIRE",
			Keywords:    []string{"шина", "покрышка", "резина", "tire"},
			Unit:        "штука",
			OKPD2Prefix: "22.11.11",
			Schema: []string{
				"product", "season", "spikes_on_tires", "trademark_manufacturer",
				"model", "article", "width", "profile", "diameter", "speed_index",
				"load_index", "extra_load", "construction", "weight_kg",
			},
		},
	}
}

type categoriesFile struct {
	Categories []model.Category `yaml:"categories"`
}

// Load builds the category registry. An empty path means built-in
// defaults; otherwise the YAML file replaces the table wholesale so
// operators control exactly what is registered.
func Load(path string) (*model.CategoryRegistry, error) {
	if path == "" {
		return model.NewCategoryRegistry(DefaultCategories()), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "registry: read %s", path)
	}
	var f categoriesFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, eris.Wrapf(err, "registry: parse %s", path)
	}
	if len(f.Categories) == 0 {
		return nil, eris.Errorf("registry: %s defines no categories", path)
	}
	for _, c := range f.Categories {
		if c.Name == "" || c.OKPD2Prefix == "" || len(c.Keywords) == 0 {
			return nil, eris.Errorf("registry: category %q missing name, prefix or keywords", c.Name)
		}
	}

	zap.L().Info("category registry loaded",
		zap.String("path", path),
		zap.Int("categories", len(f.Categories)),
	)
	return model.NewCategoryRegistry(f.Categories), nil
}
