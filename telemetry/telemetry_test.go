package telemetry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveEndpoints(t *testing.T) {
	tests := []struct {
		name           string
		kubernetesHost string
		config         Config
		wantTraces     string
		wantLogs       string
	}{
		{
			name:           "cluster detected",
			kubernetesHost: "10.0.0.1",
			wantTraces:     clusterCollectorEndpoint,
			wantLogs:       clusterCollectorEndpoint,
		},
		{
			name: "outside cluster",
		},
		{
			name:           "explicit endpoint wins",
			kubernetesHost: "10.0.0.1",
			config:         Config{TracesEndpoint: "http://custom-collector:4318"},
			wantTraces:     "http://custom-collector:4318",
			wantLogs:       clusterCollectorEndpoint,
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			t.Setenv("KUBERNETES_SERVICE_HOST", test.kubernetesHost)

			config := test.config
			config.ResolveEndpoints()

			assert.Equal(t, test.wantTraces, config.TracesEndpoint)
			assert.Equal(t, test.wantLogs, config.LogsEndpoint)
		})
	}
}

func TestInitializeDisabled(t *testing.T) {
	require.NoError(t, Initialize(t.Context(), nil))
	require.NoError(t, Initialize(t.Context(), &Config{Enabled: false, TracesEndpoint: "http://localhost:4318"}))
	require.NoError(t, Initialize(t.Context(), &Config{Enabled: true}))

	assert.Nil(t, SlogHandler())
	require.NoError(t, Shutdown(t.Context()))
}

func TestInitializeAndShutdown(t *testing.T) {
	config := &Config{
		Enabled:        true,
		ServiceName:    "fsm-test",
		ServiceVersion: "0.0.1",
		Environment:    "test",
		TracesEndpoint: "http://127.0.0.1:4318",
		LogsEndpoint:   "http://127.0.0.1:4318",
	}

	require.NoError(t, Initialize(t.Context(), config))
	assert.NotNil(t, SlogHandler())

	// Nothing was recorded, so shutdown has nothing to flush.
	require.NoError(t, Shutdown(t.Context()))
	assert.Nil(t, SlogHandler())
}
