// Package achievement defines badges and evaluates unlock thresholds.
package achievement

import (
	"time"

	"github.com/and161185/plant-keeper/internal/model"
)

// Trigger names the mutation after which a badge is checked.
type Trigger int

const (
	PlantAdded Trigger = iota + 1
	TaskCompleted
)

// Metric selects the Stats field a badge measures.
type Metric int

const (
	Plants Metric = iota + 1
	Streak
	Tasks
)

// Stats is the post-mutation snapshot the evaluator reads.
type Stats struct {
	Plants int
	Streak int
	Tasks  int
}

func (s Stats) value(m Metric) int {
	switch m {
	case Plants:
		return s.Plants
	case Streak:
		return s.Streak
	case Tasks:
		return s.Tasks
	}
	return 0
}

// StatsOf builds a snapshot from a profile and the number of owned plants.
func StatsOf(p model.Profile, plants int) Stats {
	return Stats{Plants: plants, Streak: p.StreakDays, Tasks: p.TotalTasksCompleted}
}

// Definition describes one badge.
type Definition struct {
	ID          string
	Name        string
	Description string
	Icon        string
	Trigger     Trigger
	Metric      Metric
	Target      int
}

// Met reports whether s reaches the badge target.
func (d Definition) Met(s Stats) bool { return s.value(d.Metric) >= d.Target }

// Definitions is the ordered badge catalogue.
var Definitions = []Definition{
	{ID: "first-bloom", Name: "First Bloom", Description: "Add your first plant", Icon: "leaf.fill", Trigger: PlantAdded, Metric: Plants, Target: 1},
	{ID: "jungle-king", Name: "Jungle King", Description: "Grow a collection of 10 plants", Icon: "crown.fill", Trigger: PlantAdded, Metric: Plants, Target: 10},
	{ID: "hydration-hero", Name: "Hydration Hero", Description: "Keep a 7 day care streak", Icon: "drop.fill", Trigger: TaskCompleted, Metric: Streak, Target: 7},
	{ID: "consistency-champion", Name: "Consistency Champion", Description: "Keep a 30 day care streak", Icon: "flame.fill", Trigger: TaskCompleted, Metric: Streak, Target: 30},
	{ID: "green-thumb", Name: "Green Thumb", Description: "Complete 50 care tasks", Icon: "hand.thumbsup.fill", Trigger: TaskCompleted, Metric: Tasks, Target: 50},
}

// Lookup returns the definition with id.
func Lookup(id string) (Definition, bool) {
	for _, d := range Definitions {
		if d.ID == id {
			return d, true
		}
	}
	return Definition{}, false
}

// Evaluate returns the badges checked on trigger that s newly satisfies.
// Ids already present in unlocked are never returned.
func Evaluate(trigger Trigger, s Stats, unlocked map[string]time.Time) []Definition {
	var out []Definition
	for _, d := range Definitions {
		if d.Trigger != trigger {
			continue
		}
		if _, done := unlocked[d.ID]; done {
			continue
		}
		if d.Met(s) {
			out = append(out, d)
		}
	}
	return out
}

// Unlocks turns newly met definitions into unlock records at time at.
func Unlocks(defs []Definition, at time.Time) []model.Unlock {
	out := make([]model.Unlock, 0, len(defs))
	for _, d := range defs {
		out = append(out, model.Unlock{AchievementID: d.ID, UnlockedAt: at})
	}
	return out
}

// Views joins the catalogue with the user's unlock state. Progress is capped
// at the target; an unlocked badge always shows full progress.
func Views(s Stats, unlocked map[string]time.Time) []model.Achievement {
	out := make([]model.Achievement, 0, len(Definitions))
	for _, d := range Definitions {
		a := model.Achievement{
			ID:          d.ID,
			Name:        d.Name,
			Description: d.Description,
			Icon:        d.Icon,
			Progress:    min(s.value(d.Metric), d.Target),
			Target:      d.Target,
		}
		if at, ok := unlocked[d.ID]; ok {
			a.UnlockedAt = &at
			a.Progress = d.Target
		}
		out = append(out, a)
	}
	return out
}
