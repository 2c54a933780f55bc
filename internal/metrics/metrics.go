package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
)

type Registry struct {
	reg *prometheus.Registry

	PlayersDiscovered prometheus.Counter
	PlayersSynced     prometheus.Counter
	BattlesIngested   prometheus.Counter
	UpstreamErrors    prometheus.Counter
}

func NewRegistry() *Registry {
	r := prometheus.NewRegistry()
	discovered := prometheus.NewCounter(prometheus.CounterOpts{Name: "rta_players_discovered_total"})
	synced := prometheus.NewCounter(prometheus.CounterOpts{Name: "rta_players_synced_total"})
	ingested := prometheus.NewCounter(prometheus.CounterOpts{Name: "rta_battles_ingested_total"})
	upstreamErrors := prometheus.NewCounter(prometheus.CounterOpts{Name: "rta_upstream_errors_total"})

	r.MustRegister(discovered, synced, ingested, upstreamErrors)
	return &Registry{
		reg:               r,
		PlayersDiscovered: discovered,
		PlayersSynced:     synced,
		BattlesIngested:   ingested,
		UpstreamErrors:    upstreamErrors,
	}
}

func (r *Registry) Handler() http.Handler { return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{}) }

var Module = fx.Provide(NewRegistry)
