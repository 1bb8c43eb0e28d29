package health

import (
	"testing"
	"time"

	"github.com/and161185/plant-keeper/internal/model"
	"github.com/stretchr/testify/require"
)

func TestStatus_HealthShortCircuitsLowHydration(t *testing.T) {
	got := Status(model.Vitals{HealthScore: model.Int(85), HydrationLevel: model.Int(10)})
	require.Equal(t, Happy, got.Status)
}

func TestStatus_Order(t *testing.T) {
	cases := []struct {
		name string
		v    model.Vitals
		want StatusKind
	}{
		{"empty is healthy", model.Vitals{}, Happy},
		{"exactly 80", model.Vitals{HealthScore: model.Int(80)}, Happy},
		{"thirsty before dark", model.Vitals{HealthScore: model.Int(50), HydrationLevel: model.Int(29), LightExposure: model.Int(0)}, Thirsty},
		{"hydration 30 is fine", model.Vitals{HealthScore: model.Int(50), HydrationLevel: model.Int(30), LightExposure: model.Int(39)}, NeedsLight},
		{"light 40 is fine", model.Vitals{HealthScore: model.Int(50), LightExposure: model.Int(40)}, NeedsAttention},
		{"missing hydration is full", model.Vitals{HealthScore: model.Int(10)}, NeedsAttention},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got := Status(c.v)
			require.Equal(t, c.want, got.Status)
			require.NotEmpty(t, got.Message)
			require.NotEmpty(t, got.Color)
		})
	}
}

func TestDecay(t *testing.T) {
	added := time.Date(2025, 5, 1, 9, 0, 0, 0, time.UTC)
	p := model.Plant{
		DateAdded: added,
		Frequency: model.Schedule{model.Water: 5, model.Mist: 2, model.Fertilize: 30, model.Rotate: 7},
		LastCare:  map[model.CareAction]time.Time{model.Mist: added.Add(48 * time.Hour)},
		Vitals:    model.Vitals{HealthScore: model.Int(70), LightExposure: model.Int(55)},
	}

	v := Decay(p, added.Add(5*24*time.Hour))
	require.Equal(t, 50, *v.HydrationLevel)
	require.Equal(t, 25, *v.HumidityLevel)
	require.Equal(t, 70, *v.HealthScore)
	require.Equal(t, 55, *v.LightExposure)

	v = Decay(p, added.Add(30*24*time.Hour))
	require.Equal(t, 0, *v.HydrationLevel)

	v = Decay(p, added)
	require.Equal(t, 100, *v.HydrationLevel)
}

func TestTagline(t *testing.T) {
	p := model.Plant{Personality: model.PersonalityDramaQueen}
	require.Equal(t, "Living my best life, darling!", Tagline(p))

	p.HealthScore = model.Int(20)
	require.Equal(t, "I am WILTING. Nobody cares about me.", Tagline(p))

	require.NotEmpty(t, Tagline(model.Plant{}))
}
