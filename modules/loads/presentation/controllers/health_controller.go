package controllers

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/gorilla/mux"
	"github.com/redis/go-redis/v9"

	"github.com/loadwise/loadwise/pkg/application"
	"github.com/loadwise/loadwise/pkg/configuration"
)

type healthStatus string

const (
	healthStatusHealthy  healthStatus = "healthy"
	healthStatusDegraded healthStatus = "degraded"
	healthStatusDown     healthStatus = "down"
)

type healthResponse struct {
	Status    healthStatus   `json:"status"`
	Timestamp string         `json:"timestamp"`
	Checks    map[string]any `json:"checks"`
}

type componentHealth struct {
	Status       healthStatus   `json:"status"`
	ResponseTime string         `json:"responseTime,omitempty"`
	Error        string         `json:"error,omitempty"`
	Details      map[string]any `json:"details,omitempty"`
}

const (
	dbDegradedLatency    = 100 * time.Millisecond
	redisDegradedLatency = 50 * time.Millisecond
)

// HealthController reports liveness of the pieces an analysis run touches.
// In production the routing ops guard fronts it.
type HealthController struct {
	app      application.Application
	redis    *redis.Client
	sheets   string
	basePath string
}

func NewHealthController(app application.Application) application.Controller {
	conf := configuration.Use()
	var client *redis.Client
	if conf.RedisURL != "" {
		if opts, err := redis.ParseURL(conf.RedisURL); err == nil {
			client = redis.NewClient(opts)
		} else {
			client = redis.NewClient(&redis.Options{Addr: conf.RedisURL})
		}
	}
	return &HealthController{
		app:      app,
		redis:    client,
		sheets:   conf.Analysis.SheetsDir,
		basePath: "/health",
	}
}

func (c *HealthController) Key() string {
	return c.basePath
}

func (c *HealthController) Register(r *mux.Router) {
	r.HandleFunc(c.basePath, c.Get).Methods(http.MethodGet)
}

func (c *HealthController) Get(w http.ResponseWriter, r *http.Request) {
	response := c.performHealthChecks(r.Context())

	var status int
	switch response.Status {
	case healthStatusHealthy, healthStatusDegraded:
		status = http.StatusOK
	default:
		status = http.StatusServiceUnavailable
	}

	writeJSON(w, status, response)
}

func (c *HealthController) performHealthChecks(ctx context.Context) healthResponse {
	checks := make(map[string]any)
	overall := healthStatusHealthy

	dbHealth := c.checkDatabase(ctx)
	checks["database"] = dbHealth
	overall = mergeHealthStatus(overall, dbHealth.Status)

	redisHealth := c.checkRedis(ctx)
	checks["redis"] = redisHealth
	overall = mergeHealthStatus(overall, redisHealth.Status)

	sheetsHealth := c.checkSheetsDir()
	checks["sheets"] = sheetsHealth
	overall = mergeHealthStatus(overall, sheetsHealth.Status)

	return healthResponse{
		Status:    overall,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Checks:    checks,
	}
}

func mergeHealthStatus(current, next healthStatus) healthStatus {
	if next == healthStatusDown {
		return healthStatusDown
	}
	if next == healthStatusDegraded && current == healthStatusHealthy {
		return healthStatusDegraded
	}
	return current
}

func (c *HealthController) checkDatabase(ctx context.Context) componentHealth {
	start := time.Now()

	timeoutCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	db := c.app.DB()
	if db == nil {
		return componentHealth{
			Status:       healthStatusDown,
			ResponseTime: time.Since(start).String(),
			Error:        "database connection pool not available",
		}
	}

	var result int
	err := db.QueryRow(timeoutCtx, "SELECT 1").Scan(&result)
	responseTime := time.Since(start)
	if err != nil {
		return componentHealth{
			Status:       healthStatusDown,
			ResponseTime: responseTime.String(),
			Error:        fmt.Sprintf("database query failed: %v", err),
		}
	}

	status := healthStatusHealthy
	if responseTime > dbDegradedLatency {
		status = healthStatusDegraded
	}

	return componentHealth{
		Status:       status,
		ResponseTime: responseTime.String(),
	}
}

// checkRedis pings the remap store. Redis holds only the per-user remap
// tables, so an outage degrades analysis rather than taking it down.
func (c *HealthController) checkRedis(ctx context.Context) componentHealth {
	start := time.Now()

	if c.redis == nil {
		return componentHealth{
			Status:  healthStatusHealthy,
			Details: map[string]any{"enabled": false},
		}
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := c.redis.Ping(timeoutCtx).Err(); err != nil {
		return componentHealth{
			Status:       healthStatusDegraded,
			ResponseTime: time.Since(start).String(),
			Error:        fmt.Sprintf("redis ping failed: %v", err),
			Details:      map[string]any{"enabled": true},
		}
	}

	responseTime := time.Since(start)
	status := healthStatusHealthy
	if responseTime > redisDegradedLatency {
		status = healthStatusDegraded
	}

	return componentHealth{
		Status:       status,
		ResponseTime: responseTime.String(),
		Details:      map[string]any{"enabled": true},
	}
}

func (c *HealthController) checkSheetsDir() componentHealth {
	start := time.Now()

	info, err := os.Stat(c.sheets)
	if err != nil {
		return componentHealth{
			Status:       healthStatusDown,
			ResponseTime: time.Since(start).String(),
			Error:        fmt.Sprintf("sheets directory unavailable: %v", err),
			Details:      map[string]any{"path": c.sheets},
		}
	}
	if !info.IsDir() {
		return componentHealth{
			Status:       healthStatusDown,
			ResponseTime: time.Since(start).String(),
			Error:        "sheets path is not a directory",
			Details:      map[string]any{"path": c.sheets},
		}
	}

	return componentHealth{
		Status:       healthStatusHealthy,
		ResponseTime: time.Since(start).String(),
		Details:      map[string]any{"path": c.sheets},
	}
}
