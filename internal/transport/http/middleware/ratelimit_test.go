package middleware_test

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ErlanBelekov/todo-api/internal/transport/http/middleware"
	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err, "failed to start miniredis")

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = client.Close()
		mr.Close()
	})
	return client, mr
}

func newLimitedEngine(rdb *redis.Client, limit int) *gin.Engine {
	r := gin.New()
	r.POST("/users/login",
		middleware.RateLimit(rdb, limit, time.Minute, slog.New(slog.NewTextHandler(io.Discard, nil))),
		func(c *gin.Context) { c.Status(http.StatusOK) })
	return r
}

func post(r *gin.Engine, remoteAddr string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/users/login", nil)
	req.RemoteAddr = remoteAddr
	r.ServeHTTP(w, req)
	return w
}

func TestRateLimit_BlocksAfterLimit(t *testing.T) {
	rdb, _ := setupTestRedis(t)
	r := newLimitedEngine(rdb, 3)

	for i := range 3 {
		w := post(r, "10.0.0.1:1234")
		require.Equal(t, http.StatusOK, w.Code, "request %d", i)
		assert.Equal(t, "3", w.Header().Get("X-RateLimit-Limit"))
	}

	w := post(r, "10.0.0.1:1234")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))
	assert.NotEmpty(t, w.Header().Get("Retry-After"))
}

func TestRateLimit_PerClient(t *testing.T) {
	rdb, _ := setupTestRedis(t)
	r := newLimitedEngine(rdb, 1)

	assert.Equal(t, http.StatusOK, post(r, "10.0.0.1:1234").Code)
	assert.Equal(t, http.StatusTooManyRequests, post(r, "10.0.0.1:1234").Code)
	assert.Equal(t, http.StatusOK, post(r, "10.0.0.2:1234").Code)
}

func TestRateLimit_WindowExpires(t *testing.T) {
	rdb, mr := setupTestRedis(t)
	r := newLimitedEngine(rdb, 1)

	assert.Equal(t, http.StatusOK, post(r, "10.0.0.1:1234").Code)
	assert.Equal(t, http.StatusTooManyRequests, post(r, "10.0.0.1:1234").Code)

	mr.FastForward(time.Minute + time.Second)
	assert.Equal(t, http.StatusOK, post(r, "10.0.0.1:1234").Code)
}

func TestRateLimit_FailsOpenWhenRedisDown(t *testing.T) {
	rdb, mr := setupTestRedis(t)
	r := newLimitedEngine(rdb, 1)
	mr.Close()

	for range 3 {
		assert.Equal(t, http.StatusOK, post(r, "10.0.0.1:1234").Code)
	}
}

func TestRateLimit_NilClientDisabled(t *testing.T) {
	r := newLimitedEngine(nil, 1)
	for range 3 {
		assert.Equal(t, http.StatusOK, post(r, "10.0.0.1:1234").Code)
	}
}
