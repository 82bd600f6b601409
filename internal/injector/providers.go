package injector

import (
	"github.com/google/wire"
	"github.com/prometheus/client_golang/prometheus"
	backend "github.com/redis/go-redis/v9"

	"github.com/zeusync/btcore/internal/config"
	"github.com/zeusync/btcore/internal/core/agent"
	"github.com/zeusync/btcore/internal/core/bt"
	"github.com/zeusync/btcore/internal/core/bt/nodes"
	"github.com/zeusync/btcore/internal/core/bt/template"
	"github.com/zeusync/btcore/internal/core/events/bus"
	"github.com/zeusync/btcore/internal/core/observability/log"
	"github.com/zeusync/btcore/internal/core/observability/metrics"
)

// App is everything a btsim command needs.
type App struct {
	Config   *config.Config
	Logger   log.Log
	Registry *bt.Registry
	Store    template.Store
	Bus      bus.Bus
	Metrics  *metrics.Metrics
	Manager  *agent.Manager
}

var ProviderSet = wire.NewSet(
	ProvideLogger,
	ProvideRegistry,
	ProvideStore,
	ProvideBus,
	ProvideMetrics,
	ProvideManager,
)

func ProvideLogger(cfg *config.Config) (log.Log, error) {
	level, err := log.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, err
	}
	return log.New(level), nil
}

// ProvideRegistry returns a registry holding the built-in node kinds.
func ProvideRegistry() *bt.Registry {
	reg := bt.NewRegistry()
	nodes.RegisterBuiltins(reg)
	return reg
}

// ProvideStore uses Redis when an address is configured and process memory
// otherwise. The cleanup closes the Redis client.
func ProvideStore(cfg *config.Config) (template.Store, func(), error) {
	if cfg.Redis.Addr == "" {
		return template.NewMemoryStore(), func() {}, nil
	}
	client := backend.NewClient(&backend.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	store := template.NewRedisStore(client,
		template.WithPrefix(cfg.Redis.Prefix),
		template.WithTTL(cfg.Redis.TTL),
	)
	return store, func() { _ = client.Close() }, nil
}

func ProvideBus() bus.Bus { return bus.New() }

// ProvideMetrics returns nil, which disables metrics, unless an endpoint
// address is configured.
func ProvideMetrics(cfg *config.Config) *metrics.Metrics {
	if cfg.Metrics.Addr == "" {
		return nil
	}
	return metrics.New(prometheus.DefaultRegisterer)
}

func ProvideManager(cfg *config.Config, logger log.Log, events bus.Bus, m *metrics.Metrics) (*agent.Manager, error) {
	policy, err := agent.ParseFaultPolicy(cfg.Simulation.FaultPolicy)
	if err != nil {
		return nil, err
	}
	return agent.NewManager(
		agent.WithWorkers(cfg.Simulation.Workers),
		agent.WithFaultPolicy(policy),
		agent.WithLogger(logger),
		agent.WithBus(events),
		agent.WithMetrics(m),
	), nil
}
