package metrics

import (
	"fmt"
	"log"
	"net/http"
	"os"
	"strconv"

	"github.com/VictoriaMetrics/metrics"
)

// Exposition server settings, read from the environment so the pipeline
// config file stays free of operational knobs.
type Config struct {
	Enabled bool
	Port    int
	Path    string
}

var config Config

// Init reads the exposition settings and starts the scrape endpoint.
func Init() error {
	config = Config{
		Enabled: getEnvBool("METRICS_ENABLED", true),
		Port:    getEnvInt("METRICS_PORT", 8081),
		Path:    getEnvString("METRICS_PATH", "/metrics"),
	}

	if !config.Enabled {
		log.Printf("[METRICS] Metrics collection disabled, counters become no-ops")
		return nil
	}

	log.Printf("[METRICS] Exposing pipeline metrics on port %d", config.Port)

	go serveMetrics()

	return nil
}

func serveMetrics() {
	mux := http.NewServeMux()

	mux.HandleFunc(config.Path, func(w http.ResponseWriter, r *http.Request) {
		metrics.WritePrometheus(w, true)
	})

	// Liveness probe for the supervisor
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	addr := fmt.Sprintf("127.0.0.1:%d", config.Port)
	log.Printf("[METRICS] Scrape endpoint listening on %s%s", addr, config.Path)

	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Printf("[METRICS] Error serving metrics endpoint: %v", err)
	}
}

// IsEnabled reports whether counters are being collected.
func IsEnabled() bool {
	return config.Enabled
}

// GetMetricsSummary returns the exposition settings for diagnostics.
func GetMetricsSummary() map[string]interface{} {
	return map[string]interface{}{
		"enabled":  config.Enabled,
		"port":     config.Port,
		"endpoint": config.Path,
	}
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvString(key string, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
