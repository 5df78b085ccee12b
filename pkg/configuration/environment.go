package configuration

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/loadwise/loadwise/pkg/logging"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v11"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

const Production = "production"

var singleton = sync.OnceValue(func() *Configuration {
	c := &Configuration{}
	if err := c.load([]string{".env", ".env.local"}); err != nil {
		c.Unload()
		panic(err)
	}
	return c
})

// LoadEnv loads env files relative to the working directory, falling back to
// the module root (nearest go.mod) so tests run from package directories
// still pick up the repo's .env files.
func LoadEnv(envFiles []string) (int, error) {
	existing := make([]string, 0, len(envFiles))
	for _, file := range envFiles {
		if fileExists(file) {
			existing = append(existing, file)
		}
	}
	if len(existing) == 0 {
		if root, ok := moduleRoot(); ok {
			for _, file := range envFiles {
				p := filepath.Join(root, file)
				if fileExists(p) {
					existing = append(existing, p)
				}
			}
		}
	}

	if len(existing) == 0 {
		return 0, nil
	}

	return len(existing), godotenv.Load(existing...)
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func moduleRoot() (string, bool) {
	dir, err := os.Getwd()
	if err != nil {
		return "", false
	}
	for {
		if fileExists(filepath.Join(dir, "go.mod")) {
			return dir, true
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", false
		}
		dir = parent
	}
}

type DatabaseOptions struct {
	Opts     string `env:"-"`
	Name     string `env:"DB_NAME" envDefault:"loadwise"`
	Host     string `env:"DB_HOST" envDefault:"localhost"`
	Port     string `env:"DB_PORT" envDefault:"5432"`
	User     string `env:"DB_USER" envDefault:"postgres"`
	Password string `env:"DB_PASSWORD" envDefault:"postgres"`
}

func (d *DatabaseOptions) ConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s dbname=%s password=%s sslmode=disable",
		d.Host, d.Port, d.User, d.Name, d.Password,
	)
}

type OpenTelemetryOptions struct {
	Enabled     bool   `env:"OTEL_ENABLED" envDefault:"false"`
	TempoURL    string `env:"OTEL_TEMPO_URL" envDefault:"localhost:4318"`
	ServiceName string `env:"OTEL_SERVICE_NAME" envDefault:"loadwise"`
}

type PrometheusOptions struct {
	Enabled bool   `env:"PROMETHEUS_METRICS_ENABLED" envDefault:"false"`
	Path    string `env:"PROMETHEUS_METRICS_PATH" envDefault:"/debug/prometheus"`
}

type RateLimitOptions struct {
	Enabled   bool   `env:"RATE_LIMIT_ENABLED" envDefault:"true"`
	GlobalRPS int    `env:"RATE_LIMIT_GLOBAL_RPS" envDefault:"1000"`
	Storage   string `env:"RATE_LIMIT_STORAGE" envDefault:"memory"` // memory or redis
	RedisURL  string `env:"RATE_LIMIT_REDIS_URL"`
}

// Validate checks the rate limit configuration for errors
func (r *RateLimitOptions) Validate() error {
	if r.GlobalRPS < 0 {
		return fmt.Errorf("rate limit GlobalRPS must be non-negative, got %d", r.GlobalRPS)
	}
	if r.GlobalRPS > 1000000 {
		return fmt.Errorf("rate limit GlobalRPS too high, maximum is 1,000,000, got %d", r.GlobalRPS)
	}
	if r.Storage != "memory" && r.Storage != "redis" {
		return fmt.Errorf("rate limit Storage must be 'memory' or 'redis', got '%s'", r.Storage)
	}
	if r.Storage == "redis" && r.RedisURL == "" {
		return fmt.Errorf("rate limit RedisURL is required when Storage is 'redis'")
	}
	return nil
}

type OpenAIOptions struct {
	Key     string `env:"OPENAI_KEY"`
	Model   string `env:"OPENAI_MODEL"`
	BaseURL string `env:"OPENAI_BASE_URL"`
}

// AnalysisOptions controls the load-sheet analysis pipeline.
type AnalysisOptions struct {
	SheetsDir string `env:"SHEETS_DIR" envDefault:"sheets"`
	// Upper bound on data rows read per analysis.
	MaxRows int `env:"ANALYZE_MAX_ROWS" envDefault:"500"`
	// IANA zone applied to timestamps that carry no explicit offset.
	FallbackTimezone string `env:"FALLBACK_TIMEZONE" envDefault:"America/Chicago"`
	// Severity recorded when the fallback zone is assumed (error|warn).
	AssumedTimezoneSeverity string `env:"ASSUMED_TIMEZONE_SEVERITY" envDefault:"error"`
	// Optional TOML file of operator header-to-field overrides.
	HeaderOverridesPath string `env:"HEADER_OVERRIDES_PATH"`
	// Per-identity analyze invocations per minute. 0 disables the gate.
	RatePerMinute int `env:"ANALYZE_RATE_PER_MINUTE" envDefault:"6"`
}

func (a *AnalysisOptions) Validate() error {
	if a.MaxRows < 1 {
		return fmt.Errorf("ANALYZE_MAX_ROWS must be positive, got %d", a.MaxRows)
	}
	if a.RatePerMinute < 0 {
		return fmt.Errorf("ANALYZE_RATE_PER_MINUTE must be non-negative, got %d", a.RatePerMinute)
	}
	sev := strings.ToLower(strings.TrimSpace(a.AssumedTimezoneSeverity))
	if sev == "" {
		sev = "error"
	}
	switch sev {
	case "error", "warn":
	default:
		return fmt.Errorf("invalid ASSUMED_TIMEZONE_SEVERITY=%q (expected error|warn)", a.AssumedTimezoneSeverity)
	}
	a.AssumedTimezoneSeverity = sev
	return nil
}

type Configuration struct {
	Database      DatabaseOptions
	OpenTelemetry OpenTelemetryOptions
	Prometheus    PrometheusOptions
	RateLimit     RateLimitOptions
	OpenAI        OpenAIOptions
	Analysis      AnalysisOptions

	// Remap tables and the readiness probe use Redis when this is set.
	RedisURL         string `env:"REDIS_URL"`
	MigrationsDir    string `env:"MIGRATIONS_DIR" envDefault:"migrations"`
	ServerPort       int    `env:"PORT" envDefault:"3200"`
	GoAppEnvironment string `env:"GO_APP_ENV" envDefault:"development"`
	SocketAddress    string `env:"-"`
	Domain           string `env:"DOMAIN" envDefault:"localhost"`
	Origin           string `env:"ORIGIN" envDefault:"http://localhost:3200"`
	PageSize         int    `env:"PAGE_SIZE" envDefault:"25"`
	MaxPageSize      int    `env:"MAX_PAGE_SIZE" envDefault:"100"`
	LogLevel         string `env:"LOG_LEVEL" envDefault:"error"`
	LogPath          string `env:"LOG_PATH" envDefault:"./logs/app.log"`
	// The server will look for this header in the request, if it's not present, it will generate a random uuidv4
	RequestIDHeader string `env:"REQUEST_ID_HEADER" envDefault:"X-Request-ID"`
	// The server will look for this header in the request, if it's not present, it will use request.RemoteAddr
	RealIPHeader string `env:"REAL_IP_HEADER" envDefault:"X-Real-IP"`
	// Header carrying the caller's tenant id; requests without it get DefaultTenantID.
	TenantIDHeader string `env:"TENANT_ID_HEADER" envDefault:"X-Tenant-ID"`
	// Header carrying the caller's user id for remap scoping and rate identity.
	UserIDHeader string `env:"USER_ID_HEADER" envDefault:"X-User-ID"`
	// Tenant assigned to requests that carry no tenant header.
	DefaultTenantID string `env:"DEFAULT_TENANT_ID" envDefault:"00000000-0000-0000-0000-000000000001"`

	// RLS enforcement mode (disabled/enforce).
	RLSEnforce string `env:"RLS_ENFORCE" envDefault:"disabled"`

	// Ops endpoints guard (/health, /debug/prometheus). Enforced only in production.
	OpsGuardEnabled       bool   `env:"OPS_GUARD_ENABLED" envDefault:"true"`
	OpsGuardCIDRs         string `env:"OPS_GUARD_CIDRS" envDefault:""`
	OpsGuardToken         string `env:"OPS_GUARD_TOKEN" envDefault:""`
	OpsGuardBasicAuthUser string `env:"OPS_GUARD_BASIC_AUTH_USER" envDefault:""`
	OpsGuardBasicAuthPass string `env:"OPS_GUARD_BASIC_AUTH_PASS" envDefault:""`

	headerOverrides  map[string]string
	fallbackLocation *time.Location
	defaultTenant    uuid.UUID
	logFile          *os.File
	logger           *logrus.Logger
}

func (c *Configuration) Logger() *logrus.Logger {
	return c.logger
}

func (c *Configuration) LogrusLogLevel() logrus.Level {
	switch c.LogLevel {
	case "silent":
		return logrus.PanicLevel
	case "error":
		return logrus.ErrorLevel
	case "warn":
		return logrus.WarnLevel
	case "info":
		return logrus.InfoLevel
	case "debug":
		return logrus.DebugLevel
	default:
		return logrus.ErrorLevel
	}
}

func (c *Configuration) Scheme() string {
	if c.GoAppEnvironment == Production { // assume 'https' on production mode
		return "https"
	}
	return "http"
}

// FallbackLocation returns the loaded FALLBACK_TIMEZONE zone.
func (c *Configuration) FallbackLocation() *time.Location {
	return c.fallbackLocation
}

// DefaultTenant returns the parsed DEFAULT_TENANT_ID.
func (c *Configuration) DefaultTenant() uuid.UUID {
	return c.defaultTenant
}

// HeaderOverrides returns the operator header-to-field overrides loaded from
// HEADER_OVERRIDES_PATH, keyed by raw header text. Nil when no file is set.
func (c *Configuration) HeaderOverrides() map[string]string {
	return c.headerOverrides
}

func Use() *Configuration {
	return singleton()
}

func (c *Configuration) load(envFiles []string) error {
	n, err := LoadEnv(envFiles)
	if err != nil {
		return err
	}
	if n == 0 {
		wd, _ := os.Getwd()
		log.Println("No .env files found. Tried:")
		for _, file := range envFiles {
			log.Println(filepath.Join(wd, file))
		}
	}
	if err := env.Parse(c); err != nil {
		return err
	}

	// Validate rate limiting configuration
	if err := c.RateLimit.Validate(); err != nil {
		return fmt.Errorf("rate limit configuration error: %w", err)
	}
	if err := c.Analysis.Validate(); err != nil {
		return fmt.Errorf("analysis configuration error: %w", err)
	}

	if err := c.validateRLS(); err != nil {
		return err
	}

	loc, err := time.LoadLocation(c.Analysis.FallbackTimezone)
	if err != nil {
		return fmt.Errorf("invalid FALLBACK_TIMEZONE=%q: %w", c.Analysis.FallbackTimezone, err)
	}
	c.fallbackLocation = loc

	tenantID, err := uuid.Parse(c.DefaultTenantID)
	if err != nil {
		return fmt.Errorf("invalid DEFAULT_TENANT_ID=%q: %w", c.DefaultTenantID, err)
	}
	c.defaultTenant = tenantID

	if err := c.loadHeaderOverrides(); err != nil {
		return err
	}

	f, logger, err := logging.FileLogger(c.LogrusLogLevel(), c.LogPath)
	if err != nil {
		return err
	}
	c.logFile = f
	c.logger = logger

	c.Database.Opts = c.Database.ConnectionString()
	if c.GoAppEnvironment == Production {
		c.SocketAddress = fmt.Sprintf(":%d", c.ServerPort)
	} else {
		c.SocketAddress = fmt.Sprintf("localhost:%d", c.ServerPort)
	}

	// Update Domain and Origin dynamically if they weren't explicitly set via environment variables
	// This ensures logs show the correct port when PORT is set via environment
	if os.Getenv("DOMAIN") == "" {
		c.Domain = "localhost"
	}
	if os.Getenv("ORIGIN") == "" {
		// Only include port in Origin for development environment
		// Production and staging should use standard ports (80/443)
		if c.GoAppEnvironment == "development" {
			c.Origin = fmt.Sprintf("%s://%s:%d", c.Scheme(), c.Domain, c.ServerPort)
		} else {
			c.Origin = fmt.Sprintf("%s://%s", c.Scheme(), c.Domain)
		}
	}

	return nil
}

func (c *Configuration) validateRLS() error {
	mode := strings.ToLower(strings.TrimSpace(c.RLSEnforce))
	if mode == "" {
		mode = "disabled"
	}
	switch mode {
	case "disabled", "enforce":
	default:
		return fmt.Errorf("invalid RLS_ENFORCE=%q (expected disabled|enforce)", c.RLSEnforce)
	}

	if mode == "enforce" && strings.EqualFold(strings.TrimSpace(c.Database.User), "postgres") {
		return fmt.Errorf("RLS_ENFORCE=enforce requires a non-superuser DB_USER (postgres will bypass RLS)")
	}

	c.RLSEnforce = mode
	return nil
}

type headerOverridesFile struct {
	Overrides map[string]string `toml:"overrides"`
}

func (c *Configuration) loadHeaderOverrides() error {
	path := strings.TrimSpace(c.Analysis.HeaderOverridesPath)
	if path == "" {
		return nil
	}
	var parsed headerOverridesFile
	if _, err := toml.DecodeFile(path, &parsed); err != nil {
		return fmt.Errorf("header overrides %s: %w", path, err)
	}
	c.headerOverrides = parsed.Overrides
	return nil
}

// unload handles a graceful shutdown.
func (c *Configuration) Unload() {
	if c.logFile != nil {
		if err := c.logFile.Close(); err != nil {
			log.Printf("Failed to close log file: %v", err)
		}
	}
}
