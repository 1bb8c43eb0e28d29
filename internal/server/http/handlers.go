package httpserver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"

	"github.com/and161185/plant-keeper/internal/errs"
	"github.com/and161185/plant-keeper/internal/identity"
	"github.com/and161185/plant-keeper/internal/model"
	"github.com/and161185/plant-keeper/internal/service"
	"github.com/and161185/plant-keeper/internal/suggest"
)

// CareService is the engine surface used by the handlers.
type CareService interface {
	AddPlant(ctx context.Context, userID uuid.UUID, in service.PlantInput) (model.Plant, error)
	UpdatePlant(ctx context.Context, userID, plantID uuid.UUID, patch service.PlantPatch) (model.Plant, error)
	RemovePlant(ctx context.Context, userID, plantID uuid.UUID) error
	MarkDead(ctx context.Context, userID, plantID uuid.UUID, reflection string) (model.Insight, error)
	Plants(ctx context.Context, userID uuid.UUID) ([]model.Plant, error)
	Plant(ctx context.Context, userID, plantID uuid.UUID) (model.Plant, error)
	PlantStatus(ctx context.Context, userID, plantID uuid.UUID) (service.PlantStatus, error)
	Suggestions(ctx context.Context, userID, plantID uuid.UUID) ([]suggest.Suggestion, error)
	LogCare(ctx context.Context, userID, plantID uuid.UUID, action model.CareAction, note string) (model.Plant, error)

	CompleteTask(ctx context.Context, userID, taskID uuid.UUID, note string) (service.CompleteResult, error)
	SnoozeTask(ctx context.Context, userID, taskID uuid.UUID, days int) (model.CareTask, error)
	Tasks(ctx context.Context, userID uuid.UUID, view service.TaskView, day time.Time) ([]model.CareTask, error)
	PlantTasks(ctx context.Context, userID, plantID uuid.UUID) ([]model.CareTask, error)

	Profile(ctx context.Context, userID uuid.UUID) (model.Profile, error)
	UpdateProfile(ctx context.Context, userID uuid.UUID, patch service.ProfilePatch) (model.Profile, error)
	Achievements(ctx context.Context, userID uuid.UUID) ([]model.Achievement, error)
	Insights(ctx context.Context, userID uuid.UUID, all bool) ([]model.Insight, error)
	AddInsight(ctx context.Context, userID uuid.UUID, in model.Insight) (model.Insight, error)
	DismissInsight(ctx context.Context, userID, insightID uuid.UUID) error
	AssistantContext(ctx context.Context, userID uuid.UUID) (model.AssistantContext, error)

	CloseSession(userID uuid.UUID)
	Ping(ctx context.Context) error
}

// Handler serves the care API.
type Handler struct {
	svc CareService
	loc *time.Location
	log *zap.Logger
}

// NewHandler returns a Handler. loc is used to read ?date= values.
func NewHandler(svc CareService, loc *time.Location, log *zap.Logger) *Handler {
	if loc == nil {
		loc = time.UTC
	}
	return &Handler{svc: svc, loc: loc, log: log.With(zap.String("handler", "CareHandler"))}
}

type plantRequest struct {
	Nickname        *string            `json:"nickname"`
	Species         *string            `json:"species"`
	ScientificName  *string            `json:"scientificName"`
	Photo           *string            `json:"photo"`
	Personality     *model.Personality `json:"personality"`
	WateringDays    *int               `json:"wateringFrequencyDays"`
	MistingDays     *int               `json:"mistingFrequencyDays"`
	FertilizingDays *int               `json:"fertilizingFrequencyDays"`
	RotatingDays    *int               `json:"rotatingFrequencyDays"`
	Condition       *model.Condition   `json:"status"`
	HealthScore     *int               `json:"healthScore"`
	HydrationLevel  *int               `json:"hydrationLevel"`
	LightExposure   *int               `json:"lightExposure"`
	HumidityLevel   *int               `json:"humidityLevel"`
}

func (r plantRequest) schedule() model.Schedule {
	s := model.Schedule{}
	for a, d := range map[model.CareAction]*int{
		model.Water:     r.WateringDays,
		model.Mist:      r.MistingDays,
		model.Fertilize: r.FertilizingDays,
		model.Rotate:    r.RotatingDays,
	} {
		if d != nil {
			s[a] = *d
		}
	}
	return s
}

func (r plantRequest) input() service.PlantInput {
	in := service.PlantInput{
		Frequency: r.schedule(),
		Vitals: model.Vitals{
			HealthScore:    r.HealthScore,
			HydrationLevel: r.HydrationLevel,
			LightExposure:  r.LightExposure,
			HumidityLevel:  r.HumidityLevel,
		},
	}
	if r.Nickname != nil {
		in.Nickname = *r.Nickname
	}
	if r.Species != nil {
		in.Species = *r.Species
	}
	if r.ScientificName != nil {
		in.ScientificName = *r.ScientificName
	}
	if r.Photo != nil {
		in.Photo = *r.Photo
	}
	if r.Personality != nil {
		in.Personality = *r.Personality
	}
	if r.Condition != nil {
		in.Condition = *r.Condition
	}
	return in
}

func (r plantRequest) patch() service.PlantPatch {
	p := service.PlantPatch{
		Nickname:       r.Nickname,
		Species:        r.Species,
		ScientificName: r.ScientificName,
		Photo:          r.Photo,
		Personality:    r.Personality,
		Condition:      r.Condition,
		HealthScore:    r.HealthScore,
		HydrationLevel: r.HydrationLevel,
		LightExposure:  r.LightExposure,
		HumidityLevel:  r.HumidityLevel,
	}
	if s := r.schedule(); len(s) > 0 {
		p.Frequency = s
	}
	return p
}

type completeRequest struct {
	Note string `json:"note"`
}

type careRequest struct {
	Type string `json:"type"`
	Note string `json:"note"`
}

type snoozeRequest struct {
	Days int `json:"days"`
}

type deadRequest struct {
	Reflection string `json:"reflection"`
}

type profileRequest struct {
	Username        *string                `json:"username"`
	ExperienceLevel *model.ExperienceLevel `json:"experienceLevel"`
	Preferences     struct {
		NotificationsEnabled *bool        `json:"notificationsEnabled"`
		MorningReminders     *bool        `json:"morningReminders"`
		WeeklySummaries      *bool        `json:"weeklySummaries"`
		Units                *model.Units `json:"units"`
	} `json:"preferences"`
}

type insightRequest struct {
	PlantID *uuid.UUID        `json:"plantId"`
	Type    model.InsightType `json:"type"`
	Title   string            `json:"title"`
	Message string            `json:"message"`
}

// bind decodes the JSON body into dst. An empty body is accepted when
// optional is set.
func bind(c *gin.Context, dst any, optional bool) error {
	err := c.ShouldBindJSON(dst)
	if err == nil || (optional && errors.Is(err, io.EOF)) {
		return nil
	}
	return fmt.Errorf("%w: bad request body: %v", errs.ErrValidation, err)
}

func pathID(c *gin.Context, name string) (uuid.UUID, error) {
	id, err := uuid.FromString(c.Param(name))
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: bad %s", errs.ErrValidation, name)
	}
	return id, nil
}

// ids resolves the caller and the path ids listed in names. On failure the
// error response is already written.
func ids(c *gin.Context, names ...string) (uuid.UUID, []uuid.UUID, bool) {
	userID, err := identity.CurrentUser(c.Request.Context())
	if err != nil {
		RespondError(c, err)
		return uuid.Nil, nil, false
	}
	out := make([]uuid.UUID, 0, len(names))
	for _, n := range names {
		id, err := pathID(c, n)
		if err != nil {
			RespondError(c, err)
			return uuid.Nil, nil, false
		}
		out = append(out, id)
	}
	return userID, out, true
}

// GET /healthcheck
func (h *Handler) HealthCheck(c *gin.Context) {
	if err := h.svc.Ping(c.Request.Context()); err != nil {
		RespondError(c, fmt.Errorf("%w: %v", errs.ErrStoreUnavailable, err))
		return
	}
	RespondOK(c, gin.H{"status": "ok"})
}

// GET /api/plants
func (h *Handler) ListPlants(c *gin.Context) {
	userID, _, ok := ids(c)
	if !ok {
		return
	}
	plants, err := h.svc.Plants(c.Request.Context(), userID)
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, gin.H{"plants": plants})
}

// POST /api/plants
func (h *Handler) AddPlant(c *gin.Context) {
	userID, _, ok := ids(c)
	if !ok {
		return
	}
	var req plantRequest
	if err := bind(c, &req, false); err != nil {
		RespondError(c, err)
		return
	}
	p, err := h.svc.AddPlant(c.Request.Context(), userID, req.input())
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"plant": p})
}

// GET /api/plants/:id
func (h *Handler) GetPlant(c *gin.Context) {
	userID, p, ok := ids(c, "id")
	if !ok {
		return
	}
	plant, err := h.svc.Plant(c.Request.Context(), userID, p[0])
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, gin.H{"plant": plant})
}

// PATCH /api/plants/:id
func (h *Handler) UpdatePlant(c *gin.Context) {
	userID, p, ok := ids(c, "id")
	if !ok {
		return
	}
	var req plantRequest
	if err := bind(c, &req, false); err != nil {
		RespondError(c, err)
		return
	}
	plant, err := h.svc.UpdatePlant(c.Request.Context(), userID, p[0], req.patch())
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, gin.H{"plant": plant})
}

// POST /api/plants/:id/care
// Body: {"type": "fertilize", "note": "..."}.
func (h *Handler) LogCare(c *gin.Context) {
	userID, p, ok := ids(c, "id")
	if !ok {
		return
	}
	var req careRequest
	if err := bind(c, &req, false); err != nil {
		RespondError(c, err)
		return
	}
	action, err := model.ParseCareAction(req.Type)
	if err != nil {
		RespondError(c, err)
		return
	}
	plant, err := h.svc.LogCare(c.Request.Context(), userID, p[0], action, req.Note)
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, gin.H{"plant": plant})
}

// DELETE /api/plants/:id
func (h *Handler) RemovePlant(c *gin.Context) {
	userID, p, ok := ids(c, "id")
	if !ok {
		return
	}
	if err := h.svc.RemovePlant(c.Request.Context(), userID, p[0]); err != nil {
		RespondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// POST /api/plants/:id/dead
// Optional body: {"reflection": "..."}.
func (h *Handler) MarkDead(c *gin.Context) {
	userID, p, ok := ids(c, "id")
	if !ok {
		return
	}
	var req deadRequest
	if err := bind(c, &req, true); err != nil {
		RespondError(c, err)
		return
	}
	in, err := h.svc.MarkDead(c.Request.Context(), userID, p[0], req.Reflection)
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, gin.H{"insight": in})
}

// GET /api/plants/:id/status
func (h *Handler) PlantStatus(c *gin.Context) {
	userID, p, ok := ids(c, "id")
	if !ok {
		return
	}
	st, err := h.svc.PlantStatus(c.Request.Context(), userID, p[0])
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, st)
}

// GET /api/plants/:id/suggestions
func (h *Handler) Suggestions(c *gin.Context) {
	userID, p, ok := ids(c, "id")
	if !ok {
		return
	}
	list, err := h.svc.Suggestions(c.Request.Context(), userID, p[0])
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, gin.H{"suggestions": list})
}

// GET /api/plants/:id/tasks
func (h *Handler) PlantTasks(c *gin.Context) {
	userID, p, ok := ids(c, "id")
	if !ok {
		return
	}
	list, err := h.svc.PlantTasks(c.Request.Context(), userID, p[0])
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, gin.H{"tasks": list})
}

// GET /api/tasks?view=&date=YYYY-MM-DD
func (h *Handler) ListTasks(c *gin.Context) {
	userID, _, ok := ids(c)
	if !ok {
		return
	}
	view, err := service.ParseTaskView(c.Query("view"))
	if err != nil {
		RespondError(c, err)
		return
	}
	var day time.Time
	if s := c.Query("date"); s != "" {
		if day, err = time.ParseInLocation(time.DateOnly, s, h.loc); err != nil {
			RespondError(c, fmt.Errorf("%w: date must be YYYY-MM-DD", errs.ErrValidation))
			return
		}
	}
	list, err := h.svc.Tasks(c.Request.Context(), userID, view, day)
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, gin.H{"view": view, "tasks": list})
}

// POST /api/tasks/:id/complete
func (h *Handler) CompleteTask(c *gin.Context) {
	userID, p, ok := ids(c, "id")
	if !ok {
		return
	}
	var req completeRequest
	if err := bind(c, &req, true); err != nil {
		RespondError(c, err)
		return
	}
	res, err := h.svc.CompleteTask(c.Request.Context(), userID, p[0], req.Note)
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, res)
}

// POST /api/tasks/:id/snooze
func (h *Handler) SnoozeTask(c *gin.Context) {
	userID, p, ok := ids(c, "id")
	if !ok {
		return
	}
	var req snoozeRequest
	if err := bind(c, &req, false); err != nil {
		RespondError(c, err)
		return
	}
	t, err := h.svc.SnoozeTask(c.Request.Context(), userID, p[0], req.Days)
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, gin.H{"task": t})
}

// GET /api/profile
func (h *Handler) GetProfile(c *gin.Context) {
	userID, _, ok := ids(c)
	if !ok {
		return
	}
	p, err := h.svc.Profile(c.Request.Context(), userID)
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, gin.H{"profile": p})
}

// PATCH /api/profile
func (h *Handler) UpdateProfile(c *gin.Context) {
	userID, _, ok := ids(c)
	if !ok {
		return
	}
	var req profileRequest
	if err := bind(c, &req, false); err != nil {
		RespondError(c, err)
		return
	}
	p, err := h.svc.UpdateProfile(c.Request.Context(), userID, service.ProfilePatch{
		Username:        req.Username,
		ExperienceLevel: req.ExperienceLevel,
		Preferences:     service.PreferencesPatch(req.Preferences),
	})
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, gin.H{"profile": p})
}

// GET /api/achievements
func (h *Handler) Achievements(c *gin.Context) {
	userID, _, ok := ids(c)
	if !ok {
		return
	}
	list, err := h.svc.Achievements(c.Request.Context(), userID)
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, gin.H{"achievements": list})
}

// GET /api/insights?all=true
func (h *Handler) ListInsights(c *gin.Context) {
	userID, _, ok := ids(c)
	if !ok {
		return
	}
	all := false
	if s := c.Query("all"); s != "" {
		v, err := strconv.ParseBool(s)
		if err != nil {
			RespondError(c, fmt.Errorf("%w: all must be a boolean", errs.ErrValidation))
			return
		}
		all = v
	}
	list, err := h.svc.Insights(c.Request.Context(), userID, all)
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, gin.H{"insights": list})
}

// POST /api/insights
func (h *Handler) AddInsight(c *gin.Context) {
	userID, _, ok := ids(c)
	if !ok {
		return
	}
	var req insightRequest
	if err := bind(c, &req, false); err != nil {
		RespondError(c, err)
		return
	}
	in, err := h.svc.AddInsight(c.Request.Context(), userID, model.Insight{
		PlantID: req.PlantID,
		Type:    req.Type,
		Title:   req.Title,
		Message: req.Message,
	})
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"insight": in})
}

// POST /api/insights/:id/dismiss
func (h *Handler) DismissInsight(c *gin.Context) {
	userID, p, ok := ids(c, "id")
	if !ok {
		return
	}
	if err := h.svc.DismissInsight(c.Request.Context(), userID, p[0]); err != nil {
		RespondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// GET /api/assistant/context
func (h *Handler) AssistantContext(c *gin.Context) {
	userID, _, ok := ids(c)
	if !ok {
		return
	}
	ac, err := h.svc.AssistantContext(c.Request.Context(), userID)
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, ac)
}

// POST /api/session/close
// Drops the caller's cached session, e.g. on sign-out.
func (h *Handler) CloseSession(c *gin.Context) {
	userID, _, ok := ids(c)
	if !ok {
		return
	}
	h.svc.CloseSession(userID)
	h.log.Debug("session closed", zap.String("user_id", userID.String()))
	c.Status(http.StatusNoContent)
}
