package fx

import (
	"go.uber.org/fx"

	"scorekeeper/internal/api"
	"scorekeeper/internal/config"
	"scorekeeper/internal/database"
	"scorekeeper/internal/domain"
	"scorekeeper/internal/gate"
	"scorekeeper/internal/logger"
	"scorekeeper/internal/repository"
	"scorekeeper/internal/server"
	"scorekeeper/internal/service"
)

func ProvideMetricPolicy(cfg *config.Config) domain.MetricPolicy {
	return domain.NewMetricPolicy(cfg.NonNegativeMetrics)
}

var Module = fx.Options(
	fx.Provide(logger.New),
	fx.Provide(config.Load),
	fx.Provide(database.New),
	fx.Provide(gate.New),
	fx.Provide(ProvideMetricPolicy),
	// repos
	fx.Provide(repository.NewMatchRepository),
	// api client
	fx.Provide(api.NewIdentityClient),
	// svc
	fx.Provide(service.NewMatchService),
	fx.Provide(service.NewRosterService),
	fx.Provide(service.NewScoreService),
	fx.Provide(service.NewStatService),
	// server
	fx.Provide(server.NewUmpireServer),
)
