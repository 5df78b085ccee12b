package application

import (
	"context"
	"embed"
	"reflect"

	"github.com/gorilla/mux"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/loadwise/loadwise/pkg/eventbus"
)

// Controller mounts a group of HTTP routes on the application's router.
// Key must be unique across the application; registering a controller with
// an existing key replaces it.
type Controller interface {
	Key() string
	Register(r *mux.Router)
}

// Module is a self-contained vertical (domain, services, controllers,
// schema) wired into the application on startup.
type Module interface {
	Name() string
	Register(app Application) error
}

type SeedFunc func(ctx context.Context, app Application) error

type Seeder interface {
	Seed(ctx context.Context, app Application) error
	Register(seedFuncs ...SeedFunc)
}

// MigrationManager collects embedded per-module schema directories and
// applies them in registration order.
type MigrationManager interface {
	Run() error
	Rollback() error
	RegisterSchema(fs *embed.FS)
}

type Application interface {
	DB() *pgxpool.Pool
	EventPublisher() eventbus.EventBus
	Controllers() []Controller
	Middleware() []mux.MiddlewareFunc
	Migrations() MigrationManager
	RegisterControllers(controllers ...Controller)
	RegisterMiddleware(middleware ...mux.MiddlewareFunc)
	RegisterServices(services ...interface{})
	Service(service interface{}) interface{}
	Services() map[reflect.Type]interface{}
}
