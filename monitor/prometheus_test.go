package monitor

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrometheus_Records(t *testing.T) {
	reg := prometheus.NewRegistry()
	p, err := NewPrometheus(reg)
	require.NoError(t, err)

	p.CacheLookup("memory", true)
	p.CacheLookup("memory", false)
	p.CacheLookup("memory", false)
	p.ProviderCall("openai", "embed", errors.New("quota"), 10*time.Millisecond)
	p.CoordinatorRequest("recommendations", "started")
	p.TaskRun("embedding", OutcomeOK, time.Second)

	assert.Equal(t, 1.0, testutil.ToFloat64(p.cacheLookups.WithLabelValues("memory", "hit")))
	assert.Equal(t, 2.0, testutil.ToFloat64(p.cacheLookups.WithLabelValues("memory", "miss")))
	assert.Equal(t, 1.0, testutil.ToFloat64(p.providerCalls.WithLabelValues("openai", "embed", OutcomeError)))
	assert.Equal(t, 1.0, testutil.ToFloat64(p.coordinator.WithLabelValues("recommendations", "started")))
	assert.Equal(t, 1.0, testutil.ToFloat64(p.taskRuns.WithLabelValues("embedding", OutcomeOK)))
}

func TestPrometheus_DoubleRegisterFails(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := NewPrometheus(reg)
	require.NoError(t, err)

	_, err = NewPrometheus(reg)
	assert.Error(t, err)
}

func TestInMemoryCollector(t *testing.T) {
	c := NewInMemoryCollector()
	c.ProviderCall("gemini", "embed", nil, 0)
	c.ProviderCall("gemini", "embed", errors.New("x"), 0)
	c.CoordinatorRequest("embedding", "ready")

	assert.Equal(t, 1, c.Count("provider:gemini:embed:ok"))
	assert.Equal(t, 1, c.Count("provider:gemini:embed:error"))
	assert.Equal(t, 1, c.Count("coordinator:embedding:ready"))

	c.Reset()
	assert.Empty(t, c.Snapshot())
}

func TestOrNoOp(t *testing.T) {
	assert.IsType(t, NoOpCollector{}, OrNoOp(nil))
	c := NewInMemoryCollector()
	assert.Same(t, c, OrNoOp(c))
}
