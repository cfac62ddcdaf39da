package deserialize_test

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"gotest.tools/v3/assert"

	"github.com/pasqal-io/graphdasse/deserialize"
	"github.com/pasqal-io/graphdasse/deserialize/internal/metrics"
)

func TestRegisterMetrics(t *testing.T) {
	registry := prometheus.NewRegistry()
	assert.NilError(t, deserialize.RegisterMetrics(registry))
	// Registering twice is harmless.
	assert.NilError(t, deserialize.RegisterMetrics(registry))

	// Counters only show up once they have a value.
	_, err := deserialize.Deserialize[SimpleStruct]([]byte(`{}`), deserialize.JSONOptions(""), nil)
	assert.NilError(t, err)
	count, err := testutil.GatherAndCount(registry, "graphdasse_deserializations_total", "graphdasse_descriptor_cache_total")
	assert.NilError(t, err)
	assert.Assert(t, count >= 2)
}

func TestOutcomeMetrics(t *testing.T) {
	deserializer, err := deserialize.MakeDeserializer[SimpleStruct](deserialize.JSONOptions(""))
	assert.NilError(t, err)

	success := testutil.ToFloat64(metrics.Deserializations.WithLabelValues(metrics.OutcomeSuccess))
	syntax := testutil.ToFloat64(metrics.Deserializations.WithLabelValues("syntax"))
	shape := testutil.ToFloat64(metrics.Deserializations.WithLabelValues("shape_mismatch"))
	hits := testutil.ToFloat64(metrics.DescriptorCache.WithLabelValues(metrics.CacheHit))

	_, err = deserializer.DeserializeString(`{"SomeString": "abc"}`, nil)
	assert.NilError(t, err)
	_, err = deserializer.DeserializeString(`{"SomeString": `, nil)
	assert.Assert(t, err != nil)
	_, err = deserializer.DeserializeString(`{"SomeString": {}}`, nil)
	assert.Assert(t, err != nil)

	assert.Equal(t, testutil.ToFloat64(metrics.Deserializations.WithLabelValues(metrics.OutcomeSuccess)), success+1)
	assert.Equal(t, testutil.ToFloat64(metrics.Deserializations.WithLabelValues("syntax")), syntax+1)
	assert.Equal(t, testutil.ToFloat64(metrics.Deserializations.WithLabelValues("shape_mismatch")), shape+1)
	assert.Assert(t, testutil.ToFloat64(metrics.DescriptorCache.WithLabelValues(metrics.CacheHit)) >= hits+2)
}
