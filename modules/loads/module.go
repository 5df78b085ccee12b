package loads

import (
	"embed"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/ulule/limiter/v3"
	memorystore "github.com/ulule/limiter/v3/drivers/store/memory"

	"github.com/loadwise/loadwise/modules/loads/domain/aggregates/load"
	"github.com/loadwise/loadwise/modules/loads/domain/entities/issue"
	"github.com/loadwise/loadwise/modules/loads/domain/entities/remap"
	"github.com/loadwise/loadwise/modules/loads/handlers"
	"github.com/loadwise/loadwise/modules/loads/infrastructure/persistence"
	"github.com/loadwise/loadwise/modules/loads/infrastructure/suggest"
	"github.com/loadwise/loadwise/modules/loads/presentation/controllers"
	"github.com/loadwise/loadwise/modules/loads/services"
	"github.com/loadwise/loadwise/pkg/application"
	"github.com/loadwise/loadwise/pkg/configuration"
	"github.com/loadwise/loadwise/pkg/grid/xlsx"
)

//go:embed infrastructure/persistence/schema/00001_loads.sql
var migrationFiles embed.FS

func NewModule() application.Module {
	return &Module{}
}

type Module struct {
}

func (m *Module) Register(app application.Application) error {
	conf := configuration.Use()
	logger := conf.Logger()

	sheets := xlsx.NewStore(conf.Analysis.SheetsDir)
	analysis := services.AnalysisConfig{
		MaxRows:         conf.Analysis.MaxRows,
		Zone:            conf.FallbackLocation(),
		ZoneName:        conf.Analysis.FallbackTimezone,
		AssumedSeverity: issue.Severity(conf.Analysis.AssumedTimezoneSeverity),
		Overrides:       FieldOverrides(conf, logger),
	}

	remaps := remapRepository(conf)
	runs := persistence.NewAnalysisRunRepository()

	app.Migrations().RegisterSchema(&migrationFiles)
	app.RegisterServices(
		services.NewAnalysisService(services.AnalysisServiceConfig{
			Source:    sheets,
			Remaps:    remaps,
			Runs:      runs,
			Suggester: headerSuggester(conf, logger),
			Publisher: app.EventPublisher(),
			Gate:      analyzeGate(conf),
			Logger:    logger,
			Analysis:  analysis,
		}),
		services.NewAutoFixService(services.AutoFixServiceConfig{
			Store:    sheets,
			Logger:   logger,
			Analysis: analysis,
		}),
		services.NewRemapService(remaps, app.EventPublisher()),
		services.NewRunService(runs),
	)
	app.RegisterControllers(
		controllers.NewLoadsAPIController(app),
		controllers.NewHealthController(app),
	)
	handlers.RegisterAnalysisEventHandlers(app)
	return nil
}

func (m *Module) Name() string {
	return "loads"
}

// remapRepository picks the Redis-backed store when REDIS_URL is set and the
// in-process one otherwise, so single-binary deployments work without Redis.
func remapRepository(conf *configuration.Configuration) remap.Repository {
	if conf.RedisURL == "" {
		return persistence.NewInmemRemapRepository()
	}
	opts, err := redis.ParseURL(conf.RedisURL)
	if err != nil {
		opts = &redis.Options{Addr: conf.RedisURL}
	}
	return persistence.NewRemapRepository(redis.NewClient(opts))
}

func analyzeGate(conf *configuration.Configuration) *limiter.Limiter {
	if conf.Analysis.RatePerMinute <= 0 {
		return nil
	}
	return limiter.New(memorystore.NewStore(), limiter.Rate{
		Period: time.Minute,
		Limit:  int64(conf.Analysis.RatePerMinute),
	})
}

func headerSuggester(conf *configuration.Configuration, logger *logrus.Logger) services.Suggester {
	if conf.OpenAI.Key == "" {
		return nil
	}
	return suggest.NewOpenAIProvider(suggest.OpenAIProviderConfig{
		APIKey:  conf.OpenAI.Key,
		BaseURL: conf.OpenAI.BaseURL,
		Model:   conf.OpenAI.Model,
		Logger:  logger,
	})
}

// FieldOverrides converts the operator's header-to-field file into typed
// fields. Entries naming an unknown field are skipped with a warning rather
// than failing startup.
func FieldOverrides(conf *configuration.Configuration, logger *logrus.Logger) map[string]load.Field {
	raw := conf.HeaderOverrides()
	if len(raw) == 0 {
		return nil
	}
	out := make(map[string]load.Field, len(raw))
	for header, name := range raw {
		field, ok := load.FieldNamed(name)
		if !ok {
			if logger != nil {
				logger.WithFields(logrus.Fields{
					"header": header,
					"field":  name,
				}).Warn("header override names an unknown field, skipping")
			}
			continue
		}
		out[header] = field
	}
	return out
}
