// Package progress applies completion rewards to a user profile.
package progress

import (
	"time"

	"github.com/and161185/plant-keeper/internal/leveling"
	"github.com/and161185/plant-keeper/internal/model"
	"github.com/and161185/plant-keeper/internal/timeutil"
)

// TaskXP is awarded for every completed care task.
const TaskXP = 25

// Apply returns p after one task completion at time at worth xp.
//
// Streak: same calendar day keeps it, the next day extends it, a longer gap
// (or no previous activity) restarts it at 1. Days are counted on at's
// calendar. LastActiveDate always moves to at.
func Apply(p model.Profile, xp int, at time.Time) model.Profile {
	p.XP += xp
	p.TotalTasksCompleted++

	switch {
	case p.LastActiveDate == nil:
		p.StreakDays = 1
	default:
		last := p.LastActiveDate.In(at.Location())
		switch d := timeutil.DaysBetween(last, at); {
		case d <= 0:
			if p.StreakDays == 0 {
				p.StreakDays = 1
			}
		case d == 1:
			p.StreakDays++
		default:
			p.StreakDays = 1
		}
	}
	p.LongestStreak = max(p.LongestStreak, p.StreakDays)
	p.LastActiveDate = &at

	return Refresh(p)
}

// Refresh recomputes the level fields cached on p from its XP.
func Refresh(p model.Profile) model.Profile {
	l := leveling.Calculate(p.XP)
	p.Level = l.Level
	p.LevelName = l.Name
	p.LevelProgress = l.Progress
	return p
}
