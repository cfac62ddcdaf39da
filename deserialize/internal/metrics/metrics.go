// Prometheus collectors for the deserializer.
//
// Collectors are always updated. They are only exported once registered,
// see `deserialize.RegisterMetrics`.
package metrics

import (
	"github.com/cockroachdb/errors"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	namespace = "graphdasse"

	resultLabelName  = "result"
	outcomeLabelName = "outcome"

	CacheHit  = "hit"
	CacheMiss = "miss"

	OutcomeSuccess = "success"
)

var (
	DescriptorCache = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "descriptor_cache_total",
			Help:      "lookups in the type descriptor cache",
		}, []string{resultLabelName})

	Deserializations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "deserializations_total",
			Help:      "top-level deserializations, by outcome (success or error kind)",
		}, []string{outcomeLabelName})
)

// Register all collectors. Registering twice with the same registerer is
// not an error.
func Register(registerer prometheus.Registerer) error {
	for _, collector := range []prometheus.Collector{DescriptorCache, Deserializations} {
		if err := registerer.Register(collector); err != nil {
			var already prometheus.AlreadyRegisteredError
			if errors.As(err, &already) {
				continue
			}
			return errors.Wrap(err, "failed to register deserializer metrics")
		}
	}
	return nil
}
