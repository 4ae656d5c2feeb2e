package instrumentation

import (
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	// t.Setenv guards against env leakage between tests; set the keys
	// we depend on to their "unset" equivalents.
	t.Setenv("OTEL_SERVICE_NAME", "")
	t.Setenv("METRICS_ENABLED", "")
	t.Setenv("METRICS_EXPORTER", "")

	config := DefaultConfig()

	if config.ServiceName != "mailmcp" {
		t.Errorf("expected ServiceName 'mailmcp', got %q", config.ServiceName)
	}

	if config.Enabled {
		t.Error("expected Enabled to be false by default")
	}

	if config.MetricsExporter != ExporterPrometheus {
		t.Errorf("expected MetricsExporter 'prometheus', got %q", config.MetricsExporter)
	}

	if config.PrometheusEndpoint != "/metrics" {
		t.Errorf("expected PrometheusEndpoint '/metrics', got %q", config.PrometheusEndpoint)
	}
}

func TestDefaultConfig_FromEnv(t *testing.T) {
	t.Setenv("OTEL_SERVICE_NAME", "test-service")
	t.Setenv("METRICS_ENABLED", "true")
	t.Setenv("METRICS_EXPORTER", "stdout")

	config := DefaultConfig()

	if config.ServiceName != "test-service" {
		t.Errorf("expected ServiceName 'test-service', got %q", config.ServiceName)
	}

	if !config.Enabled {
		t.Error("expected Enabled to be true")
	}

	if config.MetricsExporter != ExporterStdout {
		t.Errorf("expected MetricsExporter 'stdout', got %q", config.MetricsExporter)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr bool
	}{
		{
			name:    "valid prometheus",
			config:  Config{MetricsExporter: ExporterPrometheus},
			wantErr: false,
		},
		{
			name:    "valid otlp with endpoint",
			config:  Config{MetricsExporter: ExporterOTLP, OTLPEndpoint: "localhost:4318"},
			wantErr: false,
		},
		{
			name:    "otlp without endpoint",
			config:  Config{MetricsExporter: ExporterOTLP},
			wantErr: true,
		},
		{
			name:    "invalid exporter",
			config:  Config{MetricsExporter: "graphite"},
			wantErr: true,
		},
		{
			name:    "empty exporter allowed",
			config:  Config{},
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
