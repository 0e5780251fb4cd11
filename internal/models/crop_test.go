package models

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCropFromLabel(t *testing.T) {
	cases := []struct {
		label string
		want  string
	}{
		{"Maize_blight", "maize"},
		{"maize_common_rust", "maize"},
		{"Plantain___pestalotiopsis", "plantain"},
		{"  Plantain_black_sigatoka ", "plantain"},
		{"Unknown", UnknownCrop},
		{"", UnknownCrop},
		{"healthy", UnknownCrop},
		{"_orphan", UnknownCrop},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, CropFromLabel(tc.label), "label=%q", tc.label)
	}
}

func TestWeatherSummary(t *testing.T) {
	var w *Weather
	require.Equal(t, UnknownWeather, w.Summary())
	require.Equal(t, UnknownWeather, (&Weather{}).Summary())
	require.Equal(t, "Rain", (&Weather{Condition: "Rain"}).Summary())
}
