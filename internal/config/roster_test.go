package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const rosterYAML = `
cities:
  - name: Baguio
    urban: true
    total_population: 366358
    urban_population: 236926
  - name: " SJDM "
    query: San Jose del Monte
    urban: true
  - name: Barili
    total_population: 80715
`

func TestParseRoster(t *testing.T) {
	cities, err := ParseRoster([]byte(rosterYAML))
	require.NoError(t, err)
	require.Len(t, cities, 3)

	assert.Equal(t, "Baguio", cities[0].Name)
	assert.True(t, cities[0].Urban)
	require.NotNil(t, cities[0].TotalPopulation)
	assert.Equal(t, int64(366358), *cities[0].TotalPopulation)
	assert.Equal(t, "Baguio", cities[0].GeocodeQuery())

	assert.Equal(t, "SJDM", cities[1].Name)
	assert.Equal(t, "San Jose del Monte", cities[1].GeocodeQuery())
	assert.Nil(t, cities[1].TotalPopulation)

	assert.False(t, cities[2].Urban)
	assert.Nil(t, cities[2].UrbanPopulation)
}

func TestParseRoster_Rejects(t *testing.T) {
	_, err := ParseRoster([]byte("cities:\n  - name: Naga\n  - name: naga\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "twice")

	_, err = ParseRoster([]byte("cities:\n  - query: somewhere\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "has no name")

	_, err = ParseRoster([]byte("cities: {"))
	assert.Error(t, err)
}

func TestLoadRoster(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cities.yaml")
	require.NoError(t, os.WriteFile(path, []byte(rosterYAML), 0o644))

	cities, err := LoadRoster(path)
	require.NoError(t, err)
	assert.Len(t, cities, 3)

	_, err = LoadRoster(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestFilterCities(t *testing.T) {
	cities, err := ParseRoster([]byte(rosterYAML))
	require.NoError(t, err)

	kept, unknown := FilterCities(cities, []string{"barili", "Atlantis", "Baguio"})
	require.Len(t, kept, 2)
	assert.Equal(t, "Baguio", kept[0].Name, "roster order is kept")
	assert.Equal(t, "Barili", kept[1].Name)
	assert.Equal(t, []string{"Atlantis"}, unknown)

	all, none := FilterCities(cities, nil)
	assert.Len(t, all, 3)
	assert.Empty(t, none)
}
