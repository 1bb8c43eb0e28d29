// Package suggest proposes watering schedule changes from a plant's history.
package suggest

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/and161185/plant-keeper/internal/model"
	"github.com/and161185/plant-keeper/internal/timeutil"
)

// Suggestion is one proposed schedule change. Frequency is nil when the
// suggestion has nothing to apply.
type Suggestion struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Frequency   *int   `json:"wateringFrequencyDays,omitempty"`
}

const (
	winterDays      = 10
	minWaterDays    = 3
	thirstyEvents   = 2
	historyWindow   = 3
	driftDays       = 2
	maxTunedDays    = 30
	stableHealth    = 95
	stableMinEvents = 5
)

// For returns the suggestions for p at time now, in priority order.
func For(p model.Plant, now time.Time) []Suggestion {
	var out []Suggestion
	water := p.Frequency.Days(model.Water)

	if isWinter(now) && water < winterDays {
		out = append(out, Suggestion{
			ID:          "winter-dormancy",
			Title:       "Winter Dormancy",
			Description: fmt.Sprintf("Plants grow slower in winter. Suggest increasing watering interval to %d days.", winterDays),
			Frequency:   days(winterDays),
		})
	}

	events := waterEvents(p.CareHistory)

	thirsty := 0
	for _, e := range events {
		if strings.Contains(strings.ToLower(e.Note), "thirsty") {
			thirsty++
		}
	}
	if thirsty >= thirstyEvents && water > minWaterDays {
		n := max(minWaterDays, water-2)
		out = append(out, Suggestion{
			ID:          "more-water",
			Title:       "Thirsty Trend",
			Description: fmt.Sprintf("%s seems thirsty often. Suggest watering every %d days instead of %d.", p.Nickname, n, water),
			Frequency:   days(n),
		})
	}

	if avg, ok := averageInterval(events); ok && avg > 0 && avg <= maxTunedDays && abs(avg-water) >= driftDays {
		out = append(out, Suggestion{
			ID:          "historical-tune",
			Title:       "Care Pattern Detected",
			Description: fmt.Sprintf("Based on your recent logs, you water every %d days. Sync your schedule?", avg),
			Frequency:   days(avg),
		})
	}

	if len(out) == 0 && model.OrFull(p.HealthScore) > stableHealth && len(p.CareHistory) > stableMinEvents {
		out = append(out, Suggestion{
			ID:          "perfect-balance",
			Title:       "Perfect Balance",
			Description: "Your current schedule is working perfectly! No changes needed.",
		})
	}
	return out
}

func isWinter(t time.Time) bool {
	m := t.Month()
	return m == time.December || m == time.January || m == time.February
}

func waterEvents(h []model.CareEvent) []model.CareEvent {
	var out []model.CareEvent
	for _, e := range h {
		if e.Action == model.Water {
			out = append(out, e)
		}
	}
	return out
}

// averageInterval is the rounded mean gap, in days, between the last three waterings.
func averageInterval(events []model.CareEvent) (int, bool) {
	if len(events) < historyWindow {
		return 0, false
	}
	last := events[len(events)-historyWindow:]
	var total float64
	for i := 1; i < len(last); i++ {
		total += last[i].Date.Sub(last[i-1].Date).Hours() / timeutil.Day.Hours()
	}
	return int(math.Round(total / float64(len(last)-1))), true
}

func days(n int) *int { return &n }

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
