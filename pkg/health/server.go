package health

import (
	"encoding/json"
	"log"
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wayfinder-hq/wayfinder-router/pkg/chains"
	"github.com/wayfinder-hq/wayfinder-router/pkg/models"
	"github.com/wayfinder-hq/wayfinder-router/pkg/registry"
	"github.com/wayfinder-hq/wayfinder-router/pkg/resilience"
)

// Server represents a health check HTTP server
type Server struct {
	port          string
	registry      *registry.Registry
	wrapper       *resilience.Wrapper
	metricsAPIKey string
}

// NewServer creates a new health check server
func NewServer(port string, reg *registry.Registry, wrapper *resilience.Wrapper, metricsAPIKey string) *Server {
	return &Server{
		port:          port,
		registry:      reg,
		wrapper:       wrapper,
		metricsAPIKey: metricsAPIKey,
	}
}

// metricsAuthMiddleware is a middleware that checks for a valid API key
func (s *Server) metricsAuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Skip auth if no API key is configured
		if s.metricsAPIKey == "" {
			next.ServeHTTP(w, r)
			return
		}

		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			http.Error(w, "Missing Authorization header", http.StatusUnauthorized)
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			http.Error(w, "Invalid Authorization header format", http.StatusUnauthorized)
			return
		}

		if parts[1] != s.metricsAPIKey {
			http.Error(w, "Invalid API key", http.StatusUnauthorized)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// Start starts the health check server
func (s *Server) Start() {
	// Health check endpoint
	http.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	// Readiness check: ready once at least one venue is registered
	http.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		if len(s.registry.All()) == 0 {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("No venues registered"))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("Ready"))
	})

	// Venue status endpoint. Circuit breakers are keyed per endpoint,
	// so each venue reports one state per endpoint it has served.
	http.HandleFunc("/status", func(w http.ResponseWriter, r *http.Request) {
		circuits := s.wrapper.CircuitStates()

		status := make(map[string]interface{})
		for _, adapter := range s.registry.All() {
			name := adapter.Name()
			capability := adapter.Capability()

			chainNames := make([]string, 0, len(capability.SupportedChains))
			for _, chainID := range capability.SupportedChains {
				chainNames = append(chainNames, chains.GetChainName(chainID))
			}

			venueCircuits := make(map[string]string)
			for key, state := range circuits {
				if venue, endpoint, ok := strings.Cut(key, "|"); ok && venue == name {
					venueCircuits[endpoint] = state
				}
			}

			status[name] = map[string]interface{}{
				"operations": operationNames(capability),
				"chains":     chainNames,
				"circuits":   venueCircuits,
			}
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(status); err != nil {
			log.Printf("Error encoding status JSON: %v", err)
		}
	})

	// Circuit breaker admin control endpoint
	http.HandleFunc("/circuit/reset", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}

		name := r.URL.Query().Get("venue")
		if name == "" {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte("Missing venue parameter"))
			return
		}

		if !s.wrapper.ResetCircuit(name) {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte("No circuit breaker for venue " + name))
			return
		}

		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("Circuit breaker for venue " + name + " reset"))
	})

	// Expose Prometheus metrics with API key authentication
	http.Handle("/metrics", s.metricsAuthMiddleware(promhttp.Handler()))

	log.Printf("Starting health and metrics server on port %s", s.port)
	if err := http.ListenAndServe(":"+s.port, nil); err != nil {
		log.Printf("Health server error: %v", err)
	}
}

func operationNames(capability *models.ProtocolCapability) []string {
	names := make([]string, 0, len(capability.SupportedOps))
	for _, op := range capability.SupportedOps {
		names = append(names, string(op))
	}
	return names
}
