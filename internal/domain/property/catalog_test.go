package property

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"propertybook/internal/domain/rate"
)

const catalogTOML = `
[[property]]
name = "Villa Senja"
capacity = 2
capacity_max = 6
base_rate = 500000
weekend_premium_percent = 20
cleaning_fee = 100000
extra_bed_rate = 150000
min_stay_weekend = 2

  [[property.season]]
  name = "Year End"
  start = "2026-12-24"
  end = "2027-01-02"
  premium_percent = 50
  peak = true

[[property]]
name = "Bungalow Kecil"
capacity = 2
base_rate = 250000
`

func TestLoadCatalog(t *testing.T) {
	loc, err := time.LoadLocation("Asia/Jakarta")
	require.NoError(t, err)

	props, err := LoadCatalog(strings.NewReader(catalogTOML), rate.NewCalendar(loc, nil))
	require.NoError(t, err)
	require.Len(t, props, 2)

	villa := props[0]
	assert.Equal(t, "Villa Senja", villa.Name)
	assert.Equal(t, 2, villa.MinStayWeekend)
	require.Len(t, villa.Seasons, 1)
	assert.True(t, villa.Seasons[0].Peak)
	assert.Equal(t, loc, villa.Seasons[0].StartDate.Location())
	assert.Equal(t, 24, villa.Seasons[0].StartDate.Day())

	assert.Equal(t, 2, props[1].CapacityMax)
}

func TestLoadCatalogRejects(t *testing.T) {
	cases := map[string]string{
		"unknown key": "[[property]]\nname = \"A\"\ncapacity = 1\ncolour = \"red\"\n",
		"bad date":    "[[property]]\nname = \"A\"\ncapacity = 1\n[[property.season]]\nname = \"S\"\nstart = \"24/12\"\nend = \"2026-12-31\"\n",
		"invalid":     "[[property]]\nname = \"\"\ncapacity = 0\n",
		"not toml":    "[[property",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := LoadCatalog(strings.NewReader(doc), rate.Calendar{})
			assert.Error(t, err)
		})
	}
}
