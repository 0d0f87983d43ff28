package app

import (
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"gridguard/auth"
	"gridguard/config"
	"gridguard/db"
	"gridguard/ml"
	"gridguard/monitoring"
)

// Download is an annotated table kept for the dashboard's download link.
type Download struct {
	Filename string
	Body     []byte
	Created  time.Time
}

// App is the process context, built once at startup and shared read-only
// by every handler.
type App struct {
	Config    *config.Config
	Log       *zap.SugaredLogger
	Models    *ml.ModelHolder
	Invoker   *ml.Invoker
	Guard     *auth.Guard
	Store     *db.Store // nil when auditing is disabled
	Hub       *monitoring.Hub
	Metrics   *monitoring.Metrics
	Downloads *lru.Cache[string, Download]
}

// New wires the process context. It does not load the model.
func New(cfg *config.Config, log *zap.SugaredLogger) (*App, error) {
	size := cfg.Dashboard.DownloadCacheSize
	if size <= 0 {
		size = 32
	}
	downloads, err := lru.New[string, Download](size)
	if err != nil {
		return nil, err
	}

	var store *db.Store
	if cfg.Database.Path != "" {
		store, err = db.Open(cfg.Database.Path)
		if err != nil {
			return nil, fmt.Errorf("open audit database: %w", err)
		}
	}

	models := ml.NewModelHolder()
	return &App{
		Config:    cfg,
		Log:       log,
		Models:    models,
		Invoker:   ml.NewInvoker(models),
		Guard:     auth.NewGuard(cfg.Auth.APIKey),
		Store:     store,
		Hub:       monitoring.NewHub(log, cfg.HTTP.AllowedOrigins),
		Metrics:   monitoring.NewMetrics(),
		Downloads: downloads,
	}, nil
}

// LoadModel loads the configured artifact. A failure is logged and kept:
// the process keeps serving and inference reports the model as unavailable.
func (a *App) LoadModel() error {
	path := a.Config.Model.Path
	err := a.Models.Load(path)
	a.Metrics.SetModelLoaded(a.Models.Loaded())

	status := monitoring.ModelStatusMessage{Loaded: a.Models.Loaded(), Path: path}
	if err != nil {
		status.Error = err.Error()
		a.Log.Errorw("model load failed, inference disabled", "path", path, "error", err)
	} else {
		model, _ := a.Models.Get()
		a.Log.Infow("model loaded", "path", path, "classifier", model.Name(), "features", model.Schema().Len())
	}
	if !a.Guard.Configured() {
		a.Log.Warnw("no API key configured, every inference request will be denied")
	}
	if perr := a.Hub.Publish(monitoring.ModelStatus, status); perr != nil {
		a.Log.Warnw("failed to publish model status", "error", perr)
	}
	return err
}

func (a *App) Close() error {
	return a.Store.Close()
}
