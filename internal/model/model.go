// Package model defines domain entities used by services and repositories.
package model

import (
	"time"

	"github.com/gofrs/uuid/v5"
)

// Condition is the coarse-grained tag stored on a plant.
type Condition string

const (
	ConditionThirsty    Condition = "thirsty"
	ConditionMist       Condition = "mist"
	ConditionFertilize  Condition = "fertilize"
	ConditionThriving   Condition = "thriving"
	ConditionGrowing    Condition = "growing"
	ConditionStruggling Condition = "struggling"
	ConditionDormant    Condition = "dormant"
	ConditionDead       Condition = "dead"
)

// Valid reports whether c is a known condition tag.
func (c Condition) Valid() bool {
	switch c {
	case ConditionThirsty, ConditionMist, ConditionFertilize, ConditionThriving,
		ConditionGrowing, ConditionStruggling, ConditionDormant, ConditionDead:
		return true
	}
	return false
}

// Personality is a playful trait shown next to the plant's status.
type Personality string

const (
	PersonalityDramaQueen      Personality = "drama-queen"
	PersonalityLowMaintenance  Personality = "low-maintenance"
	PersonalityAttentionSeeker Personality = "attention-seeker"
	PersonalitySilentTreatment Personality = "silent-treatment"
	PersonalityMainCharacter   Personality = "main-character"
	PersonalityChillVibes      Personality = "chill-vibes"
)

// Vitals are the 0-100 inputs to status derivation. Nil means "no data".
type Vitals struct {
	HealthScore    *int `json:"healthScore,omitempty"`
	HydrationLevel *int `json:"hydrationLevel,omitempty"`
	LightExposure  *int `json:"lightExposure,omitempty"`
	HumidityLevel  *int `json:"humidityLevel,omitempty"`
}

// Clone returns a deep copy.
func (v Vitals) Clone() Vitals {
	return Vitals{
		HealthScore:    cloneInt(v.HealthScore),
		HydrationLevel: cloneInt(v.HydrationLevel),
		LightExposure:  cloneInt(v.LightExposure),
		HumidityLevel:  cloneInt(v.HumidityLevel),
	}
}

// Int returns a pointer to n clamped to [0, 100].
func Int(n int) *int {
	n = max(0, min(100, n))
	return &n
}

// OrFull returns *p, or 100 when p is nil.
func OrFull(p *int) int {
	if p == nil {
		return 100
	}
	return *p
}

func cloneInt(p *int) *int {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// CareEvent is an immutable record of one completed action.
type CareEvent struct {
	ID     uuid.UUID  `json:"id"`
	Action CareAction `json:"type"`
	Date   time.Time  `json:"date"`
	Note   string     `json:"note,omitempty"`
}

// Plant is one physical plant owned by a user.
type Plant struct {
	ID             uuid.UUID                `json:"id"`
	Nickname       string                   `json:"nickname"`
	Species        string                   `json:"species"`
	ScientificName string                   `json:"scientificName,omitempty"`
	Photo          string                   `json:"photo,omitempty"`
	Personality    Personality              `json:"personality,omitempty"`
	DateAdded      time.Time                `json:"dateAdded"`
	Frequency      Schedule                 `json:"frequencyDays"`
	LastCare       map[CareAction]time.Time `json:"lastCare"`
	Condition      Condition                `json:"status"`
	CareHistory    []CareEvent              `json:"careHistory"`
	Vitals
}

// Clone returns a deep copy so callers can mutate it without touching shared state.
func (p Plant) Clone() Plant {
	out := p
	out.Frequency = p.Frequency.Clone()
	out.LastCare = make(map[CareAction]time.Time, len(p.LastCare))
	for k, v := range p.LastCare {
		out.LastCare[k] = v
	}
	out.CareHistory = append([]CareEvent(nil), p.CareHistory...)
	out.Vitals = p.Vitals.Clone()
	return out
}

// LastPerformed returns when action was last completed.
func (p Plant) LastPerformed(a CareAction) (time.Time, bool) {
	t, ok := p.LastCare[a]
	return t, ok && !t.IsZero()
}

// RecordCare appends ev to the history, moves the action's last-care time
// and refills the vital the action restores. p must own its maps.
func (p *Plant) RecordCare(ev CareEvent) {
	if p.LastCare == nil {
		p.LastCare = make(map[CareAction]time.Time)
	}
	if last, ok := p.LastCare[ev.Action]; !ok || !last.After(ev.Date) {
		p.LastCare[ev.Action] = ev.Date
	}
	p.CareHistory = append(p.CareHistory, ev)
	switch ev.Action {
	case Water:
		p.HydrationLevel = Int(100)
	case Mist:
		p.HumidityLevel = Int(100)
	}
}

// In returns a copy of p with every timestamp read in loc.
func (p Plant) In(loc *time.Location) Plant {
	out := p.Clone()
	out.DateAdded = out.DateAdded.In(loc)
	for a, t := range out.LastCare {
		out.LastCare[a] = t.In(loc)
	}
	for i := range out.CareHistory {
		out.CareHistory[i].Date = out.CareHistory[i].Date.In(loc)
	}
	return out
}

// PlantEdit lists stored plant fields to overwrite. Nil fields keep the
// stored value and Frequency entries merge into the stored schedule.
// LastCare and history are owned by completions and never edited.
type PlantEdit struct {
	Nickname       *string
	Species        *string
	ScientificName *string
	Photo          *string
	Personality    *Personality
	Frequency      Schedule
	Condition      *Condition
	Vitals
}

// Apply writes the edit onto p in place. p must own its maps.
func (e PlantEdit) Apply(p *Plant) {
	set := func(dst *string, src *string) {
		if src != nil {
			*dst = *src
		}
	}
	set(&p.Nickname, e.Nickname)
	set(&p.Species, e.Species)
	set(&p.ScientificName, e.ScientificName)
	set(&p.Photo, e.Photo)
	if e.Personality != nil {
		p.Personality = *e.Personality
	}
	if e.Condition != nil {
		p.Condition = *e.Condition
	}
	if p.Frequency == nil {
		p.Frequency = Schedule{}
	}
	for a, d := range e.Frequency {
		p.Frequency[a] = d
	}
	for _, f := range []struct{ dst, src **int }{
		{&p.HealthScore, &e.HealthScore},
		{&p.HydrationLevel, &e.HydrationLevel},
		{&p.LightExposure, &e.LightExposure},
		{&p.HumidityLevel, &e.HumidityLevel},
	} {
		if *f.src != nil {
			*f.dst = Int(**f.src)
		}
	}
}

// CareTask is a single pending or completed occurrence of a care action.
type CareTask struct {
	ID            uuid.UUID  `json:"id"`
	PlantID       uuid.UUID  `json:"plantId"`
	Action        CareAction `json:"type"`
	DueDate       time.Time  `json:"dueDate"`
	Completed     bool       `json:"completed"`
	CompletedDate *time.Time `json:"completedDate,omitempty"`
	SnoozedUntil  *time.Time `json:"snoozedUntil,omitempty"`
	XPEarned      int        `json:"xpEarned,omitempty"`
}

// In returns a copy of t with every timestamp read in loc.
func (t CareTask) In(loc *time.Location) CareTask {
	t.DueDate = t.DueDate.In(loc)
	t.CompletedDate = timeIn(t.CompletedDate, loc)
	t.SnoozedUntil = timeIn(t.SnoozedUntil, loc)
	return t
}

func timeIn(t *time.Time, loc *time.Location) *time.Time {
	if t == nil {
		return nil
	}
	v := t.In(loc)
	return &v
}

// ExperienceLevel is the self-declared gardening experience of a user.
type ExperienceLevel string

const (
	ExperienceBeginner ExperienceLevel = "beginner"
	ExperienceGrowing  ExperienceLevel = "growing"
	ExperienceExpert   ExperienceLevel = "expert"
)

// Valid reports whether e is a known experience level.
func (e ExperienceLevel) Valid() bool {
	return e == ExperienceBeginner || e == ExperienceGrowing || e == ExperienceExpert
}

// Profile is the per-user progress document. Level and LevelName are caches of XP.
type Profile struct {
	UserID              uuid.UUID       `json:"userId"`
	Username            string          `json:"username"`
	ExperienceLevel     ExperienceLevel `json:"experienceLevel"`
	XP                  int             `json:"xp"`
	Level               int             `json:"level"`
	LevelName           string          `json:"levelName"`
	LevelProgress       float64         `json:"levelProgress"`
	StreakDays          int             `json:"streakDays"`
	LongestStreak       int             `json:"longestStreak"`
	TotalPlantsAdded    int             `json:"totalPlantsAdded"`
	TotalTasksCompleted int             `json:"totalTasksCompleted"`
	LastActiveDate      *time.Time      `json:"lastActiveDate,omitempty"`
	Preferences         Preferences     `json:"preferences"`

	// Version counts stored writes; 0 means never stored. Writes carry
	// the version they were computed from.
	Version int64 `json:"-"`
}

// In returns a copy of p with its timestamps read in loc.
func (p Profile) In(loc *time.Location) Profile {
	p.LastActiveDate = timeIn(p.LastActiveDate, loc)
	return p
}

// Units is the measurement system shown to the user.
type Units string

const (
	UnitsMetric   Units = "metric"
	UnitsImperial Units = "imperial"
)

// Valid reports whether u is a known unit system.
func (u Units) Valid() bool { return u == UnitsMetric || u == UnitsImperial }

// Preferences are the user's reminder and display settings.
type Preferences struct {
	NotificationsEnabled bool  `json:"notificationsEnabled"`
	MorningReminders     bool  `json:"morningReminders"`
	WeeklySummaries      bool  `json:"weeklySummaries"`
	Units                Units `json:"units"`
}

// DefaultPreferences are given to new users.
func DefaultPreferences() Preferences {
	return Preferences{
		NotificationsEnabled: true,
		MorningReminders:     true,
		WeeklySummaries:      true,
		Units:                UnitsMetric,
	}
}

// Achievement is a badge definition joined with the user's unlock state.
type Achievement struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Icon        string     `json:"icon"`
	UnlockedAt  *time.Time `json:"unlockedAt,omitempty"`
	Progress    int        `json:"progress"`
	Target      int        `json:"target"`
}

// Unlock records when an achievement was earned.
type Unlock struct {
	AchievementID string
	UnlockedAt    time.Time
}

// InsightType classifies an insight.
type InsightType string

const (
	InsightTip       InsightType = "tip"
	InsightWarning   InsightType = "warning"
	InsightMilestone InsightType = "milestone"
	InsightMemorial  InsightType = "memorial"
)

// Insight is a dismissible notification or memory.
type Insight struct {
	ID        uuid.UUID   `json:"id"`
	PlantID   *uuid.UUID  `json:"plantId,omitempty"`
	Type      InsightType `json:"type"`
	Title     string      `json:"title"`
	Message   string      `json:"message"`
	CreatedAt time.Time   `json:"createdAt"`
	Dismissed bool        `json:"dismissed"`
}

// PlantCreation is the change set written when a plant is added.
type PlantCreation struct {
	Plant    Plant
	Tasks    []CareTask
	Profile  Profile
	Unlocks  []Unlock
	Insights []Insight
}

// Completion is the change set written when a task is completed.
type Completion struct {
	Task     CareTask // the closed task
	Next     CareTask // the spawned occurrence
	PlantID  uuid.UUID
	Event    CareEvent // merged into the stored plant with Plant.RecordCare
	Profile  Profile
	Unlocks  []Unlock
	Insights []Insight
}

// AssistantPlant is the per-plant slice of AssistantContext.
type AssistantPlant struct {
	Nickname    string `json:"nickname"`
	Species     string `json:"species"`
	HealthScore int    `json:"healthScore"`
}

// AssistantContext is what the engine hands to the language-model collaborator.
type AssistantContext struct {
	Plants       []AssistantPlant `json:"plants"`
	PendingTasks int              `json:"pendingTasks"`
	OverdueTasks int              `json:"overdueTasks"`
	StreakDays   int              `json:"streakDays"`
	LevelName    string           `json:"levelName"`
}
