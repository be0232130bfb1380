package handler

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/libris-backend/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMemInfo(t *testing.T) {
	total, avail := parseMemInfo(strings.NewReader("MemTotal:       2048 kB\nMemFree:        100 kB\nMemAvailable:   1024 kB\n"))
	assert.Equal(t, uint64(2048*1024), total)
	assert.Equal(t, uint64(1024*1024), avail)
}

func TestParseLoadAvg(t *testing.T) {
	l1, l5, l15, err := parseLoadAvg("0.52 0.58 0.59 1/467 12345\n")
	require.NoError(t, err)
	assert.Equal(t, []float64{0.52, 0.58, 0.59}, []float64{l1, l5, l15})

	_, _, _, err = parseLoadAvg("garbage")
	assert.Error(t, err)
}

func TestFormatUptime(t *testing.T) {
	assert.Equal(t, "2m 5s", formatUptime(125*time.Second))
	assert.Equal(t, "1h 0m 1s", formatUptime(time.Hour+time.Second))
	assert.Equal(t, "1d 2h 0m 0s", formatUptime(26*time.Hour))
}

func TestSystemStatusSnapshot(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	_, err := mr.Push(config.WorkerKey.PasswordResetQueue, "a", "b")
	require.NoError(t, err)

	h := NewSystemHandler(nil, rdb, zerolog.Nop())
	r := gin.New()
	r.GET("/status", h.Status)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/status?once=1", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"redis_up":true`)
	assert.Contains(t, w.Body.String(), `"reset_queue_depth":2`)
	assert.Contains(t, w.Body.String(), `"postgres_up":false`)
}
