package suggest

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/and161185/plant-keeper/internal/model"
)

var summer = time.Date(2025, 7, 15, 12, 0, 0, 0, time.UTC)

func plant(water int, events ...model.CareEvent) model.Plant {
	return model.Plant{
		Nickname:    "Fern",
		Frequency:   model.Schedule{model.Water: water, model.Mist: 2, model.Fertilize: 30, model.Rotate: 7},
		CareHistory: events,
	}
}

func watered(daysAgo int, note string) model.CareEvent {
	return model.CareEvent{Action: model.Water, Date: summer.AddDate(0, 0, -daysAgo), Note: note}
}

func ids(list []Suggestion) []string {
	out := make([]string, 0, len(list))
	for _, s := range list {
		out = append(out, s.ID)
	}
	return out
}

func TestFor_Winter(t *testing.T) {
	got := For(plant(7), time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC))
	require.Equal(t, []string{"winter-dormancy"}, ids(got))
	require.Equal(t, 10, *got[0].Frequency)

	require.Empty(t, For(plant(12), time.Date(2025, 12, 1, 0, 0, 0, 0, time.UTC)))
	require.Empty(t, For(plant(7), summer))
}

func TestFor_ThirstyTrend(t *testing.T) {
	p := plant(7, watered(14, "looked Thirsty"), watered(7, "thirsty again"))
	got := For(p, summer)
	require.Equal(t, []string{"more-water"}, ids(got))
	require.Equal(t, 5, *got[0].Frequency)
	require.Contains(t, got[0].Description, "Fern")

	require.Empty(t, For(plant(3, watered(9, "thirsty"), watered(6, "thirsty")), summer))
}

func TestFor_HistoricalTuning(t *testing.T) {
	p := plant(10, watered(12, ""), watered(8, ""), watered(4, ""))
	got := For(p, summer)
	require.Equal(t, []string{"historical-tune"}, ids(got))
	require.Equal(t, 4, *got[0].Frequency)

	// within one day of the schedule
	require.Empty(t, For(plant(5, watered(12, ""), watered(8, ""), watered(4, "")), summer))
}

func TestFor_PerfectBalanceOnlyAlone(t *testing.T) {
	var ev []model.CareEvent
	for i := 6; i > 0; i-- {
		ev = append(ev, model.CareEvent{Action: model.Mist, Date: summer.AddDate(0, 0, -i)})
	}
	p := plant(7, ev...)
	p.HealthScore = model.Int(97)
	got := For(p, summer)
	require.Equal(t, []string{"perfect-balance"}, ids(got))
	require.Nil(t, got[0].Frequency)

	got = For(p, time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC))
	require.Equal(t, []string{"winter-dormancy"}, ids(got))
}
