// Package leveling maps cumulative experience points to a level.
package leveling

// XPPerLevel is the experience needed to advance one level.
const XPPerLevel = 100

// Names are the level titles; levels beyond the list keep the last title.
var Names = []string{
	"Seedling",
	"Sprout",
	"Leaf Lover",
	"Plant Parent",
	"Green Thumb",
	"Plant Whisperer",
	"Botanist",
	"Jungle Master",
}

// Level is the derived position on the level ladder.
type Level struct {
	Level    int     `json:"level"`
	Name     string  `json:"levelName"`
	Progress float64 `json:"progress"` // in [0, 1)
}

// Calculate derives the level from xp. Negative xp counts as zero.
func Calculate(xp int) Level {
	xp = max(0, xp)
	lvl := xp/XPPerLevel + 1
	idx := min(lvl-1, len(Names)-1)
	return Level{
		Level:    lvl,
		Name:     Names[idx],
		Progress: float64(xp%XPPerLevel) / XPPerLevel,
	}
}
