package services

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func defaultRuleAdvisor(t *testing.T) *RuleAdvisor {
	t.Helper()
	rs, err := LoadRuleSet("")
	require.NoError(t, err)
	return NewRuleAdvisor(rs)
}

func TestRuleAdvisor_DefaultRules(t *testing.T) {
	advisor := defaultRuleAdvisor(t)

	cases := []struct {
		name    string
		crop    string
		disease string
		weather string
		want    []string
	}{
		{
			name:    "maize blight in rain",
			crop:    "maize",
			disease: "Maize_blight",
			weather: "Rain",
			want: []string{
				"Spray copper-based fungicides during dry conditions.",
				"Remove infected leaves to prevent spread.",
				"Avoid applying pesticides or fertilizers before rainfall.",
			},
		},
		{
			name:    "maize rust unknown weather",
			crop:    "Maize",
			disease: "maize_common_rust",
			weather: "Unknown",
			want: []string{
				"Use resistant maize varieties if available.",
				"Apply Mancozeb or Propiconazole at early infection.",
				"Monitor soil moisture and weather regularly.",
			},
		},
		{
			name:    "maize streak dry",
			crop:    "maize",
			disease: "Maize_streak",
			weather: "Dry",
			want: []string{
				"Control insect vectors (aphids) with appropriate insecticides.",
				"Avoid planting new maize near infected fields.",
				"Irrigate if soil moisture is low and no rain expected soon.",
			},
		},
		{
			name:    "plantain sigatoka drizzle counts as rain",
			crop:    "plantain",
			disease: "Plantain_black_sigatoka",
			weather: "light rain",
			want: []string{
				"Prune affected leaves and destroy them.",
				"Use systemic fungicides like Propiconazole.",
				"Avoid applying pesticides or fertilizers before rainfall.",
			},
		},
		{
			name:    "plantain bunchy top",
			crop:    "plantain",
			disease: "Plantain_banana_bunchy_top",
			weather: "Clouds",
			want: []string{
				"Remove and burn infected suckers immediately.",
				"Control aphids to limit transmission.",
				"Monitor soil moisture and weather regularly.",
			},
		},
		{
			name:    "unknown crop only gets weather advice",
			crop:    "Unknown crop",
			disease: "Unknown",
			weather: "Clear",
			want:    []string{"Monitor soil moisture and weather regularly."},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := advisor.Generate(context.Background(), tc.crop, tc.disease, tc.weather)
			require.NoError(t, err)
			require.Equal(t, tc.want, got)
		})
	}
}

func TestRuleAdvisor_FallbackWhenNothingMatches(t *testing.T) {
	rs, err := ParseRuleSet([]byte(`
crops:
  maize:
    - match: blight
      advice: [Spray.]
fallback: Keep watching.
`))
	require.NoError(t, err)

	got, err := NewRuleAdvisor(rs).Generate(context.Background(), "cassava", "Cassava_mosaic", "Clear")
	require.NoError(t, err)
	require.Equal(t, []string{"Keep watching."}, got)
}

func TestRuleSet_Treatment(t *testing.T) {
	rs, err := LoadRuleSet("")
	require.NoError(t, err)
	require.Contains(t, rs.Treatment("Maize_blight"), "fungicide")
	require.Equal(t, "No treatment info available for this disease yet.", rs.Treatment("Cassava_mosaic"))
}

func TestLoadRuleSet_FromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
crops:
  COCOA:
    - match: Black_Pod
      advice: [Harvest pods often.]
weather_default: Check the sky.
`), 0o600))

	rs, err := LoadRuleSet(path)
	require.NoError(t, err)
	got, err := NewRuleAdvisor(rs).Generate(context.Background(), "cocoa", "Cocoa_black_pod", "Clear")
	require.NoError(t, err)
	require.Equal(t, []string{"Harvest pods often.", "Check the sky."}, got)

	_, err = LoadRuleSet(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}
