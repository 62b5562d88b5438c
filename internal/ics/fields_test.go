package ics

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"neucal/internal/model"
)

func TestResolveGeo(t *testing.T) {
	tests := []struct {
		name string
		in   geoValue
		want *model.Geo
	}{
		{"structured", geoPoint{Latitude: 42.34, Longitude: -71.08}, &model.Geo{Latitude: 42.34, Longitude: -71.08}},
		{"tuple", geoTuple{"42.34", " -71.08"}, &model.Geo{Latitude: 42.34, Longitude: -71.08}},
		{"short tuple", geoTuple{"42.34"}, nil},
		{"semicolon", geoText("42.34;-71.08"), &model.Geo{Latitude: 42.34, Longitude: -71.08}},
		{"semicolon falls through to numbers", geoText("lat 42.34; lon -71.08"), &model.Geo{Latitude: 42.34, Longitude: -71.08}},
		{"free form", geoText("(42.34, -71.08)"), &model.Geo{Latitude: 42.34, Longitude: -71.08}},
		{"integers", geoText("42 -71"), &model.Geo{Latitude: 42, Longitude: -71}},
		{"one number", geoText("42.34"), nil},
		{"no numbers", geoText("TBD"), nil},
		{"not finite", geoTuple{"NaN", "1"}, nil},
		{"nil", nil, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := resolveGeo(tt.in)
			if tt.want == nil {
				assert.False(t, ok)
				assert.Nil(t, got)
				return
			}
			require.True(t, ok)
			assert.InDelta(t, tt.want.Latitude, got.Latitude, 1e-9)
			assert.InDelta(t, tt.want.Longitude, got.Longitude, 1e-9)
		})
	}
}

func TestAppleGeo(t *testing.T) {
	assert.Equal(t, geoPoint{Latitude: 42.3398, Longitude: -71.0892}, appleGeo("geo:42.3398,-71.0892"))
	assert.Equal(t, geoPoint{Latitude: 1, Longitude: 2}, appleGeo("GEO:1,2;u=35"))
	assert.Equal(t, geoText("abc"), appleGeo("geo:abc"))
	assert.Nil(t, appleGeo("https://maps.example.com"))
}

func TestResolveCategories(t *testing.T) {
	tests := []struct {
		name string
		in   categoryValue
		want []string
	}{
		{"text", categoryText("Workshop, Lecture ,Sports"), []string{"Workshop", "Lecture", "Sports"}},
		{"text empties", categoryText(" , ,"), []string{}},
		{"list", categoryList{"Arts,Music", "Sports"}, []string{"Arts", "Music", "Sports"}},
		{"utf8 bytes", categoryBytes("Café,Music"), []string{"Café", "Music"}},
		{"latin1 bytes", categoryBytes("Caf\xe9, Music"), []string{"Café", "Music"}},
		{"duplicates kept", categoryText("A,B,A"), []string{"A", "B", "A"}},
		{"nil", nil, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, resolveCategories(tt.in))
		})
	}
}

func TestDecodeText(t *testing.T) {
	assert.Equal(t, "naïve", decodeText([]byte("naïve")))
	assert.Equal(t, "naïve", decodeText([]byte("na\xefve")))
}

func TestParseDateTimeLayouts(t *testing.T) {
	for _, v := range []string{"20240310T1400", "2024-03-10T14:00:00", "20240310T140000"} {
		got, err := parseDateTime(v, "", nil)
		require.NoError(t, err, v)
		assert.Equal(t, "2024-03-10 14:00", got.Format("2006-01-02 15:04"))
	}

	_, err := parseDateTime("tomorrow", "", nil)
	assert.Error(t, err)
}

func TestParseDateTimeUnknownTZIDKeepsWallClock(t *testing.T) {
	got, err := parseDateTime("20240310T140000", "Eastern Standard Time", nil)
	require.NoError(t, err)
	assert.Equal(t, "14:00", got.Format(model.TimeLayout))
}
