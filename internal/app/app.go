// Package app provides application-level wiring for the orchestration
// server: repositories, provisioning and execution backends, and services.
package app

import (
	"database/sql"
	"log/slog"

	"kadali/internal/config"
	"kadali/internal/db/repository"
	"kadali/internal/domain"
	"kadali/internal/engine"
	"kadali/internal/provisioner"
	"kadali/internal/service/catalog"
	"kadali/internal/service/cluster"
	"kadali/internal/service/query"
)

// Deps holds the external dependencies that main() must provide: database
// handles, config, and the logger.
type Deps struct {
	Cfg     *config.Config
	WriteDB *sql.DB
	ReadDB  *sql.DB
	DuckDB  *sql.DB // embedded engine; unused when a remote engine is configured
	Logger  *slog.Logger
}

// App holds the fully-wired application.
type App struct {
	Clusters *cluster.Service
	Queries  *query.Service
	Catalog  *catalog.Service
	Reaper   *cluster.Reaper
}

// New wires repositories, backends, and services from the provided deps.
// Remote provisioning and execution agents are used when configured;
// otherwise the local simulator and the embedded DuckDB engine serve.
func New(deps Deps) *App {
	cfg := deps.Cfg

	clusterRepo := repository.NewClusterRepo(deps.WriteDB, deps.ReadDB)
	queryRepo := repository.NewQueryRepo(deps.WriteDB, deps.ReadDB)
	datasetRepo := repository.NewDatasetRepo(deps.WriteDB, deps.ReadDB)

	var prov domain.Provisioner
	if cfg.ProvisionerURL != "" {
		prov = provisioner.NewRemote(cfg.ProvisionerURL, cfg.ProvisionerToken)
	} else {
		prov = provisioner.NewLocal(cfg.ProvisionDelay, deps.Logger)
	}

	var eng domain.ExecutionEngine
	if cfg.EngineURL != "" {
		eng = engine.NewRemoteEngine(cfg.EngineURL, cfg.EngineToken)
	} else {
		eng = engine.NewLocalEngine(deps.DuckDB, deps.Logger)
	}

	clusterSvc := cluster.NewService(clusterRepo, prov, deps.Logger)
	querySvc := query.NewService(queryRepo, eng, cfg.QueryRowLimit, deps.Logger)
	catalogSvc := catalog.NewService(datasetRepo, deps.Logger)

	reaper := cluster.NewReaper(clusterSvc, cfg.ReaperInterval, cfg.IdleTimeout, deps.Logger)

	return &App{
		Clusters: clusterSvc,
		Queries:  querySvc,
		Catalog:  catalogSvc,
		Reaper:   reaper,
	}
}
