// Package health derives display status and decayed vitals for a plant.
package health

import (
	"time"

	"github.com/and161185/plant-keeper/internal/model"
	"github.com/and161185/plant-keeper/internal/timeutil"
)

// StatusKind is the display status of a plant.
type StatusKind string

const (
	Happy          StatusKind = "happy"
	Thirsty        StatusKind = "thirsty"
	NeedsLight     StatusKind = "needs-light"
	NeedsAttention StatusKind = "needs-attention"
)

// Thresholds for Status.
const (
	HappyScore   = 80
	ThirstyBelow = 30
	DarkBelow    = 40
)

// Result is the derived display status.
type Result struct {
	Status  StatusKind `json:"status"`
	Message string     `json:"message"`
	Color   string     `json:"color"`
}

var results = map[StatusKind]Result{
	Happy:          {Happy, "Thriving and happy", "#22C55E"},
	Thirsty:        {Thirsty, "Needs water soon", "#3B82F6"},
	NeedsLight:     {NeedsLight, "Could use more light", "#F59E0B"},
	NeedsAttention: {NeedsAttention, "Needs some attention", "#EF4444"},
}

// Status evaluates vitals in a fixed order; the first match wins.
// Missing values count as 100.
func Status(v model.Vitals) Result {
	switch {
	case model.OrFull(v.HealthScore) >= HappyScore:
		return results[Happy]
	case model.OrFull(v.HydrationLevel) < ThirstyBelow:
		return results[Thirsty]
	case model.OrFull(v.LightExposure) < DarkBelow:
		return results[NeedsLight]
	default:
		return results[NeedsAttention]
	}
}

// Decay returns p's vitals as of now. Hydration and humidity fall linearly
// from 100 at the last water/mist (or dateAdded) to 0 at twice the
// configured frequency. Health score and light exposure are stored values
// and pass through unchanged.
func Decay(p model.Plant, now time.Time) model.Vitals {
	v := p.Vitals.Clone()
	v.HydrationLevel = model.Int(level(p, model.Water, now))
	v.HumidityLevel = model.Int(level(p, model.Mist, now))
	return v
}

func level(p model.Plant, a model.CareAction, now time.Time) int {
	since := p.DateAdded
	if t, ok := p.LastPerformed(a); ok {
		since = t
	}
	freq := p.Frequency.Days(a)
	if freq <= 0 {
		return 100
	}
	elapsed := now.Sub(since)
	if elapsed <= 0 {
		return 100
	}
	span := 2 * time.Duration(freq) * timeutil.Day
	return 100 - int(100*elapsed.Hours()/span.Hours())
}

var taglines = map[model.Personality][2]string{
	model.PersonalityDramaQueen:      {"Living my best life, darling!", "I am WILTING. Nobody cares about me."},
	model.PersonalityLowMaintenance:  {"Just vibing, no complaints.", "A sip of water wouldn't hurt."},
	model.PersonalityAttentionSeeker: {"Look at me! Look at my leaves!", "Hello? Anyone? I need you!"},
	model.PersonalitySilentTreatment: {"...", "I'm not talking to you until I get water."},
	model.PersonalityMainCharacter:   {"This is my moment in the sun.", "Every hero has a low point. This is mine."},
	model.PersonalityChillVibes:      {"All good over here.", "Feeling a little dry, no stress though."},
}

// Tagline returns a short line in the plant's voice for its current status.
func Tagline(p model.Plant) string {
	t, ok := taglines[p.Personality]
	if !ok {
		t = taglines[model.PersonalityChillVibes]
	}
	if Status(p.Vitals).Status == Happy {
		return t[0]
	}
	return t[1]
}
