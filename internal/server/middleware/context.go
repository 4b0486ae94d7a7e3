package middleware

import (
	"context"
	"time"

	"github.com/OFFIS-RIT/segbench/internal/queue"
	"github.com/OFFIS-RIT/segbench/internal/store"
	"github.com/OFFIS-RIT/segbench/pkg/common"
	"github.com/OFFIS-RIT/segbench/pkg/evaluation"

	"github.com/MicahParks/keyfunc/v3"
	"github.com/labstack/echo/v4"
)

type AppUser struct {
	UserID      string
	Role        string
	Permissions []string
}

// Runner executes an evaluation. *evaluation.Orchestrator implements it.
type Runner interface {
	Run(ctx context.Context, raw string, cfg evaluation.AIConfig) (*common.BatchComparisonData, error)
}

// RunStore is the part of *store.RunStore used by the handlers.
type RunStore interface {
	Create(ctx context.Context, input string, cfg evaluation.AIConfig) (*store.Run, error)
	Get(ctx context.Context, id string) (*store.Run, error)
	Complete(ctx context.Context, id string, data *common.BatchComparisonData) error
	Fail(ctx context.Context, id string, message string) error
}

// Exporter uploads exports. *storage.Exports implements it.
type Exporter interface {
	PutExport(ctx context.Context, id string, data *common.BatchComparisonData, t time.Time) (string, error)
	DownloadLink(ctx context.Context, key string) (string, error)
}

// App holds the dependencies shared by all requests. Runs, Queue and
// Exports are nil when the matching backend is not configured.
type App struct {
	Runner   Runner
	Defaults func() evaluation.AIConfig

	Runs    RunStore
	Queue   queue.Publisher
	Exports Exporter

	Key            keyfunc.Keyfunc
	MasterAPIKey   string
	MasterUserID   string
	MasterUserRole string
	// AuthDisabled grants every request all permissions. It is set when
	// neither a JWKS url nor a master key is configured.
	AuthDisabled bool
}

// DefaultConfig returns a fresh default evaluation config.
func (a *App) DefaultConfig() evaluation.AIConfig {
	if a.Defaults != nil {
		return a.Defaults()
	}
	return evaluation.DefaultConfig()
}

type AppContext struct {
	echo.Context
	App  *App
	User *AppUser
}

func AppContextMiddleware(app *App) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			cc := &AppContext{c, app, nil}
			return next(cc)
		}
	}
}
