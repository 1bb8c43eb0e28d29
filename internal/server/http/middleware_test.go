package httpserver

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/gofrs/uuid/v5"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/and161185/plant-keeper/internal/errs"
	"github.com/and161185/plant-keeper/internal/identity"
)

func serve(r *gin.Engine, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func TestRequestLogger_LevelsAndFields(t *testing.T) {
	gin.SetMode(gin.TestMode)
	core, logs := observer.New(zapcore.DebugLevel)
	user := uuid.Must(uuid.NewV4())

	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Request = c.Request.WithContext(identity.WithUserID(c.Request.Context(), user))
		c.Next()
	}, RequestLogger(zap.New(core)))
	r.GET("/ok/:id", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/missing", func(c *gin.Context) { RespondError(c, errs.ErrNotFound) })
	r.GET("/boom", func(c *gin.Context) { RespondError(c, errors.New("db exploded")) })

	serve(r, "/ok/1")
	serve(r, "/missing")
	w := serve(r, "/boom")
	require.NotContains(t, w.Body.String(), "exploded", "internal causes stay in the log")

	entries := logs.All()
	require.Len(t, entries, 3)
	require.Equal(t, zapcore.InfoLevel, entries[0].Level)
	require.Equal(t, "/ok/:id", entries[0].ContextMap()["path"])
	require.Equal(t, user.String(), entries[0].ContextMap()["user_id"])
	require.Equal(t, zapcore.WarnLevel, entries[1].Level)
	require.Equal(t, zapcore.ErrorLevel, entries[2].Level)
	require.Equal(t, "db exploded", entries[2].ContextMap()["error"])
}

func TestThrottle(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Throttle(0.001, 2))
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	require.Equal(t, http.StatusOK, serve(r, "/x").Code)
	require.Equal(t, http.StatusOK, serve(r, "/x").Code)
	w := serve(r, "/x")
	require.Equal(t, http.StatusTooManyRequests, w.Code)
	require.Equal(t, "1", w.Header().Get("Retry-After"))

	off := gin.New()
	off.Use(Throttle(0, 0))
	off.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })
	for range 5 {
		require.Equal(t, http.StatusOK, serve(off, "/x").Code)
	}
}

func TestStatusOf(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{errs.ErrNotFound, http.StatusNotFound, "not_found"},
		{errs.ErrAlreadyCompleted, http.StatusConflict, "already_completed"},
		{errs.ErrPendingExists, http.StatusConflict, "pending_exists"},
		{errs.ErrConflict, http.StatusConflict, "conflict"},
		{errs.ErrInvalidFrequency, http.StatusBadRequest, "invalid_frequency"},
		{errs.ErrValidation, http.StatusBadRequest, "validation"},
		{errs.ErrUnauthorized, http.StatusUnauthorized, "unauthorized"},
		{errs.ErrRateLimited, http.StatusTooManyRequests, "rate_limited"},
		{errs.ErrStoreUnavailable, http.StatusServiceUnavailable, "store_unavailable"},
		{errors.New("other"), http.StatusInternalServerError, "internal"},
	}
	for _, tc := range cases {
		status, code := statusOf(tc.err)
		require.Equal(t, tc.status, status, tc.err.Error())
		require.Equal(t, tc.code, code)
	}
}
