package handler

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/libris-backend/internal/config"
	"github.com/stemsi/libris-backend/internal/response"
)

const (
	statusInterval     = 10 * time.Second
	statusProbeTimeout = 2 * time.Second
)

// SystemHandler streams server health to admin dashboards over SSE.
type SystemHandler struct {
	pool      *pgxpool.Pool
	rdb       *redis.Client
	startTime time.Time
	log       zerolog.Logger
}

func NewSystemHandler(pool *pgxpool.Pool, rdb *redis.Client, log zerolog.Logger) *SystemHandler {
	return &SystemHandler{
		pool:      pool,
		rdb:       rdb,
		startTime: time.Now(),
		log:       log.With().Str("component", "system_handler").Logger(),
	}
}

type serverStatus struct {
	Timestamp int64  `json:"timestamp"`
	Uptime    string `json:"uptime"`

	// Host
	MemUsedBytes  uint64  `json:"mem_used_bytes"`
	MemTotalBytes uint64  `json:"mem_total_bytes"`
	LoadAvg1      float64 `json:"load_avg_1"`
	LoadAvg5      float64 `json:"load_avg_5"`
	LoadAvg15     float64 `json:"load_avg_15"`

	// Process
	Goroutines int    `json:"goroutines"`
	HeapAlloc  uint64 `json:"heap_alloc"`
	NumGC      uint32 `json:"num_gc"`
	GoVersion  string `json:"go_version"`

	// Backends
	PostgresUp       bool  `json:"postgres_up"`
	PostgresAcquired int32 `json:"postgres_acquired_conns"`
	PostgresTotal    int32 `json:"postgres_total_conns"`
	RedisUp          bool  `json:"redis_up"`
	RedisLatencyMs   int64 `json:"redis_latency_ms"`
	ResetQueueDepth  int64 `json:"reset_queue_depth"`
}

// StatusStream godoc
// GET /api/v1/admin/system/status
func (h *SystemHandler) StatusStream(c *gin.Context) {
	ctx := c.Request.Context()

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Status(http.StatusOK)

	ticker := time.NewTicker(statusInterval)
	defer ticker.Stop()

	h.writeStatus(c)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			h.writeStatus(c)
		}
	}
}

// Status godoc
// GET /api/v1/admin/system/status?once=1
// Returns a single snapshot instead of a stream.
func (h *SystemHandler) Status(c *gin.Context) {
	if c.Query("once") == "" {
		h.StatusStream(c)
		return
	}
	response.Success(c, http.StatusOK, h.collect(c.Request.Context()))
}

func (h *SystemHandler) writeStatus(c *gin.Context) {
	data, err := json.Marshal(h.collect(c.Request.Context()))
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to encode server status")
		return
	}
	fmt.Fprintf(c.Writer, "data: %s\n\n", data)
	c.Writer.Flush()
}

func (h *SystemHandler) collect(ctx context.Context) serverStatus {
	s := serverStatus{
		Timestamp: time.Now().Unix(),
		Uptime:    formatUptime(time.Since(h.startTime)),
		GoVersion: runtime.Version(),
	}

	if f, err := os.Open("/proc/meminfo"); err == nil {
		total, avail := parseMemInfo(f)
		f.Close()
		if total > avail {
			s.MemTotalBytes = total
			s.MemUsedBytes = total - avail
		}
	}
	if data, err := os.ReadFile("/proc/loadavg"); err == nil {
		s.LoadAvg1, s.LoadAvg5, s.LoadAvg15, _ = parseLoadAvg(string(data))
	}

	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	s.Goroutines = runtime.NumGoroutine()
	s.HeapAlloc = ms.HeapAlloc
	s.NumGC = ms.NumGC

	ctx, cancel := context.WithTimeout(ctx, statusProbeTimeout)
	defer cancel()

	if h.pool != nil {
		s.PostgresUp = h.pool.Ping(ctx) == nil
		stat := h.pool.Stat()
		s.PostgresAcquired = stat.AcquiredConns()
		s.PostgresTotal = stat.TotalConns()
	}

	if h.rdb != nil {
		start := time.Now()
		pipe := h.rdb.Pipeline()
		ping := pipe.Ping(ctx)
		depth := pipe.LLen(ctx, config.WorkerKey.PasswordResetQueue)
		if _, err := pipe.Exec(ctx); err == nil {
			s.RedisUp = ping.Err() == nil
			s.RedisLatencyMs = time.Since(start).Milliseconds()
			s.ResetQueueDepth, _ = depth.Result()
		}
	}

	return s
}

// parseMemInfo reads MemTotal and MemAvailable, in bytes, from /proc/meminfo.
func parseMemInfo(r io.Reader) (total, available uint64) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "MemTotal:"):
			total = memInfoBytes(line)
		case strings.HasPrefix(line, "MemAvailable:"):
			available = memInfoBytes(line)
		}
	}
	return total, available
}

// memInfoBytes parses a "Key:   1234 kB" line.
func memInfoBytes(line string) uint64 {
	fields := strings.Fields(line)
	if len(fields) < 2 {
		return 0
	}
	val, _ := strconv.ParseUint(fields[1], 10, 64)
	return val * 1024
}

// parseLoadAvg parses the first three fields of /proc/loadavg.
func parseLoadAvg(data string) (load1, load5, load15 float64, err error) {
	fields := strings.Fields(data)
	if len(fields) < 3 {
		return 0, 0, 0, fmt.Errorf("unexpected loadavg format %q", data)
	}
	load1, _ = strconv.ParseFloat(fields[0], 64)
	load5, _ = strconv.ParseFloat(fields[1], 64)
	load15, _ = strconv.ParseFloat(fields[2], 64)
	return load1, load5, load15, nil
}

func formatUptime(d time.Duration) string {
	days := int(d.Hours()) / 24
	hours := int(d.Hours()) % 24
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60

	if days > 0 {
		return fmt.Sprintf("%dd %dh %dm %ds", days, hours, minutes, seconds)
	}
	if hours > 0 {
		return fmt.Sprintf("%dh %dm %ds", hours, minutes, seconds)
	}
	return fmt.Sprintf("%dm %ds", minutes, seconds)
}
