package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gofrs/uuid/v5"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/and161185/plant-keeper/internal/identity"
	"github.com/and161185/plant-keeper/internal/limiter"
	"github.com/and161185/plant-keeper/internal/model"
	"github.com/and161185/plant-keeper/internal/repository"
	"github.com/and161185/plant-keeper/internal/repository/memory"
	"github.com/and161185/plant-keeper/internal/service"
)

var (
	testKey = []byte("test-key")
	t0      = time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC)
)

type downPing struct{ *memory.Store }

func (downPing) Ping(context.Context) error { return errors.New("connection refused") }

type api struct {
	t      *testing.T
	router *gin.Engine
	token  string
}

func newAPI(t *testing.T, store repository.Store, lim limiter.Limiter) *api {
	t.Helper()
	gin.SetMode(gin.TestMode)
	log := zaptest.NewLogger(t)
	svc := service.NewCareService(store, nil, log, service.Options{
		Now:    func() time.Time { return t0 },
		Origin: "test",
	})
	router := NewRouter(RouterConfig{
		Handler:  NewHandler(svc, time.UTC, log),
		Verifier: identity.NewVerifier(testKey),
		Limiter:  lim,
		Log:      log,
	})
	tok, err := identity.Issue(testKey, uuid.Must(uuid.NewV4()), time.Hour, time.Now())
	require.NoError(t, err)
	return &api{t: t, router: router, token: tok}
}

func (a *api) do(method, path string, body any) *httptest.ResponseRecorder {
	a.t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(a.t, err)
		r = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if a.token != "" {
		req.Header.Set("Authorization", "Bearer "+a.token)
	}
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func requireError(t *testing.T, w *httptest.ResponseRecorder, status int, code string) {
	t.Helper()
	require.Equal(t, status, w.Code, w.Body.String())
	env := decode[ErrorEnvelope](t, w)
	require.Equal(t, code, env.Error.Code)
	require.NotEmpty(t, env.Error.Message)
}

var fern = gin.H{
	"nickname":                 "Fern",
	"species":                  "Boston fern",
	"wateringFrequencyDays":    7,
	"mistingFrequencyDays":     3,
	"fertilizingFrequencyDays": 30,
	"rotatingFrequencyDays":    14,
}

func (a *api) addFern() model.Plant {
	a.t.Helper()
	w := a.do(http.MethodPost, "/api/plants", fern)
	require.Equal(a.t, http.StatusCreated, w.Code, w.Body.String())
	return decode[struct{ Plant model.Plant }](a.t, w).Plant
}

func (a *api) tasks(query string) []model.CareTask {
	a.t.Helper()
	w := a.do(http.MethodGet, "/api/tasks"+query, nil)
	require.Equal(a.t, http.StatusOK, w.Code, w.Body.String())
	return decode[struct{ Tasks []model.CareTask }](a.t, w).Tasks
}

func TestAPI_RequiresToken(t *testing.T) {
	a := newAPI(t, memory.New(), nil)

	a.token = ""
	requireError(t, a.do(http.MethodGet, "/api/plants", nil), http.StatusUnauthorized, "unauthorized")

	other, err := identity.Issue([]byte("other-key"), uuid.Must(uuid.NewV4()), time.Hour, time.Now())
	require.NoError(t, err)
	a.token = other
	requireError(t, a.do(http.MethodGet, "/api/plants", nil), http.StatusUnauthorized, "unauthorized")
}

func TestAPI_BlocksRepeatedAuthFailures(t *testing.T) {
	lim := limiter.NewMemory(limiter.Settings{Window: time.Minute, MaxFails: 2, BlockFor: time.Minute})
	a := newAPI(t, memory.New(), lim)
	good := a.token

	a.token = "garbage"
	requireError(t, a.do(http.MethodGet, "/api/profile", nil), http.StatusUnauthorized, "unauthorized")
	requireError(t, a.do(http.MethodGet, "/api/profile", nil), http.StatusUnauthorized, "unauthorized")

	a.token = good
	w := a.do(http.MethodGet, "/api/profile", nil)
	requireError(t, w, http.StatusTooManyRequests, "rate_limited")
	require.NotEmpty(t, w.Header().Get("Retry-After"))
}

func TestAPI_PlantAndCompletionFlow(t *testing.T) {
	a := newAPI(t, memory.New(), nil)
	p := a.addFern()
	require.Equal(t, 7, p.Frequency[model.Water])

	pending := a.tasks("?view=pending")
	require.Len(t, pending, 2)
	var water model.CareTask
	for _, task := range pending {
		if task.Action == model.Water {
			water = task
		}
	}
	require.Equal(t, p.ID, water.PlantID)

	// no body: note is optional
	w := a.do(http.MethodPost, "/api/tasks/"+water.ID.String()+"/complete", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	res := decode[service.CompleteResult](t, w)
	require.True(t, res.Task.Completed)
	require.Equal(t, 25, res.Task.XPEarned)
	require.False(t, res.Next.Completed)
	require.Equal(t, 25, res.Profile.XP)
	require.Equal(t, 1, res.Profile.TotalTasksCompleted)

	requireError(t, a.do(http.MethodPost, "/api/tasks/"+water.ID.String()+"/complete", gin.H{"note": "again"}),
		http.StatusConflict, "already_completed")

	w = a.do(http.MethodGet, "/api/plants/"+p.ID.String()+"/status", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	st := decode[service.PlantStatus](t, w)
	require.NotEmpty(t, st.Status)
	require.Contains(t, st.NextDue, model.Water)

	w = a.do(http.MethodGet, "/api/plants/"+p.ID.String()+"/tasks", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, decode[struct{ Tasks []model.CareTask }](t, w).Tasks, 3)

	require.Len(t, a.tasks("?view=completed-today"), 1)
}

func TestAPI_LogCare(t *testing.T) {
	a := newAPI(t, memory.New(), nil)
	p := a.addFern()
	path := "/api/plants/" + p.ID.String() + "/care"

	w := a.do(http.MethodPost, path, gin.H{"type": "Fertilize", "note": " half dose "})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	got := decode[struct{ Plant model.Plant }](t, w).Plant
	require.Equal(t, t0, got.LastCare[model.Fertilize].UTC())
	require.Len(t, got.CareHistory, 1)
	require.Equal(t, "half dose", got.CareHistory[0].Note)

	// off-schedule care earns nothing and leaves the task list alone
	w = a.do(http.MethodGet, "/api/profile", nil)
	require.Zero(t, decode[struct{ Profile model.Profile }](t, w).Profile.XP)
	require.Len(t, a.tasks("?view=pending"), 2)

	requireError(t, a.do(http.MethodPost, path, gin.H{"type": "prune"}), http.StatusBadRequest, "validation")
	requireError(t, a.do(http.MethodPost, path, nil), http.StatusBadRequest, "validation")
	requireError(t, a.do(http.MethodPost, "/api/plants/"+uuid.Must(uuid.NewV4()).String()+"/care", gin.H{"type": "water"}),
		http.StatusNotFound, "not_found")
}

func TestAPI_Validation(t *testing.T) {
	a := newAPI(t, memory.New(), nil)

	bad := gin.H{}
	for k, v := range fern {
		bad[k] = v
	}
	bad["wateringFrequencyDays"] = 0
	requireError(t, a.do(http.MethodPost, "/api/plants", bad), http.StatusBadRequest, "invalid_frequency")

	requireError(t, a.do(http.MethodGet, "/api/plants/not-a-uuid", nil), http.StatusBadRequest, "validation")
	requireError(t, a.do(http.MethodGet, "/api/plants/"+uuid.Must(uuid.NewV4()).String(), nil),
		http.StatusNotFound, "not_found")
	requireError(t, a.do(http.MethodGet, "/api/tasks?view=someday", nil), http.StatusBadRequest, "validation")
	requireError(t, a.do(http.MethodGet, "/api/tasks?date=03/10/2024", nil), http.StatusBadRequest, "validation")
	requireError(t, a.do(http.MethodGet, "/api/insights?all=maybe", nil), http.StatusBadRequest, "validation")
}

func TestAPI_SnoozeAndDateViews(t *testing.T) {
	a := newAPI(t, memory.New(), nil)
	a.addFern()

	due := a.tasks("?view=today&date=2024-03-13")
	require.Len(t, due, 1)
	require.Equal(t, model.Mist, due[0].Action)

	requireError(t, a.do(http.MethodPost, "/api/tasks/"+due[0].ID.String()+"/snooze", gin.H{"days": 0}),
		http.StatusBadRequest, "validation")

	w := a.do(http.MethodPost, "/api/tasks/"+due[0].ID.String()+"/snooze", gin.H{"days": 2})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	snoozed := decode[struct{ Task model.CareTask }](t, w).Task
	require.NotNil(t, snoozed.SnoozedUntil)
	require.Equal(t, time.Date(2024, 3, 15, 9, 0, 0, 0, time.UTC), snoozed.DueDate.UTC())

	require.Empty(t, a.tasks("?view=today&date=2024-03-13"))
	require.Len(t, a.tasks("?view=today&date=2024-03-15"), 1)
}

func TestAPI_ProfileInsightsAndSession(t *testing.T) {
	a := newAPI(t, memory.New(), nil)

	w := a.do(http.MethodGet, "/api/profile", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, service.DefaultUsername, decode[struct{ Profile model.Profile }](t, w).Profile.Username)

	w = a.do(http.MethodPatch, "/api/profile", gin.H{"username": "Ivy", "experienceLevel": "expert"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	prof := decode[struct{ Profile model.Profile }](t, w).Profile
	require.Equal(t, "Ivy", prof.Username)
	require.Equal(t, model.ExperienceExpert, prof.ExperienceLevel)
	require.Equal(t, model.DefaultPreferences(), prof.Preferences)

	w = a.do(http.MethodPatch, "/api/profile", gin.H{"preferences": gin.H{"weeklySummaries": false, "units": "imperial"}})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	prefs := decode[struct{ Profile model.Profile }](t, w).Profile.Preferences
	require.False(t, prefs.WeeklySummaries)
	require.True(t, prefs.MorningReminders)
	require.Equal(t, model.UnitsImperial, prefs.Units)
	requireError(t, a.do(http.MethodPatch, "/api/profile", gin.H{"preferences": gin.H{"units": "cubits"}}),
		http.StatusBadRequest, "validation")

	w = a.do(http.MethodPost, "/api/insights", gin.H{"type": "tip", "title": "Rotate weekly", "message": "Even growth."})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	in := decode[struct{ Insight model.Insight }](t, w).Insight

	w = a.do(http.MethodPost, "/api/insights/"+in.ID.String()+"/dismiss", nil)
	require.Equal(t, http.StatusNoContent, w.Code)

	w = a.do(http.MethodGet, "/api/insights", nil)
	require.Empty(t, decode[struct{ Insights []model.Insight }](t, w).Insights)
	w = a.do(http.MethodGet, "/api/insights?all=true", nil)
	require.Len(t, decode[struct{ Insights []model.Insight }](t, w).Insights, 1)

	w = a.do(http.MethodPost, "/api/session/close", nil)
	require.Equal(t, http.StatusNoContent, w.Code)

	// reloaded from the store after the session was dropped
	w = a.do(http.MethodGet, "/api/profile", nil)
	require.Equal(t, "Ivy", decode[struct{ Profile model.Profile }](t, w).Profile.Username)
}

func TestAPI_MarkDeadAndAssistant(t *testing.T) {
	a := newAPI(t, memory.New(), nil)
	p := a.addFern()

	w := a.do(http.MethodGet, "/api/assistant/context", nil)
	require.Equal(t, http.StatusOK, w.Code)
	ac := decode[model.AssistantContext](t, w)
	require.Len(t, ac.Plants, 1)
	require.Equal(t, 2, ac.PendingTasks)

	w = a.do(http.MethodPost, "/api/plants/"+p.ID.String()+"/dead", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	in := decode[struct{ Insight model.Insight }](t, w).Insight
	require.Equal(t, model.InsightMemorial, in.Type)
	require.Equal(t, "Goodbye, Fern", in.Title)

	requireError(t, a.do(http.MethodGet, "/api/plants/"+p.ID.String(), nil), http.StatusNotFound, "not_found")
	require.Empty(t, a.tasks(""))
}

func TestAPI_HealthCheck(t *testing.T) {
	a := newAPI(t, memory.New(), nil)
	a.token = ""
	w := a.do(http.MethodGet, "/healthcheck", nil)
	require.Equal(t, http.StatusOK, w.Code)

	a = newAPI(t, downPing{memory.New()}, nil)
	a.token = ""
	requireError(t, a.do(http.MethodGet, "/healthcheck", nil), http.StatusServiceUnavailable, "store_unavailable")
}
