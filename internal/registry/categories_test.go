package registry

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/promdata/mtr-cli/internal/model"
)

func TestDefaultCategoriesWellFormed(t *testing.T) {
	cats := DefaultCategories()
	require.Len(t, cats, 4)

	names := make(map[string]bool)
	for _, c := range cats {
		assert.NotEmpty(t, c.Name)
		assert.NotEmpty(t, c.Keywords, "category %s", c.Name)
		assert.NotEmpty(t, c.Unit, "category %s", c.Name)
		assert.True(t, model.IsValidOKPD2(c.OKPD2Prefix), "category %s prefix %s", c.Name, c.OKPD2Prefix)
		assert.NotEmpty(t, c.Schema, "category %s", c.Name)
		assert.False(t, names[c.Name], "duplicate %s", c.Name)
		names[c.Name] = true
	}
}

func TestLoadDefaults(t *testing.T) {
	reg, err := Load("")
	require.NoError(t, err)
	assert.NotNil(t, reg.ByName("PRESSURE_SENSOR"))
	assert.NotNil(t, reg.ByName(model.CategoryUnknown))
	assert.Nil(t, reg.ByName("TURBINE"))
}

func TestLoadOverrideFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "categories.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
categories:
  - name: CABLE
    keywords: ["кабель", "провод"]
    unit: "метр"
    okpd2_prefix: "27.32.13"
    schema: ["section", "material"]
`), 0o644))

	reg, err := Load(path)
	require.NoError(t, err)

	// Override replaces the table wholesale.
	assert.Nil(t, reg.ByName("PRESSURE_SENSOR"))
	cable := reg.ByName("CABLE")
	require.NotNil(t, cable)
	assert.Equal(t, "метр", cable.Unit)
	assert.Equal(t, []string{"section", "material"}, cable.Schema)
}

func TestLoadRejectsInvalidCategory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "categories.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
categories:
  - name: BROKEN
    keywords: []
    unit: "шт"
    okpd2_prefix: "27.32.13"
`), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load("/nonexistent/categories.yaml")
	assert.Error(t, err)
}
