package main

import (
	"fmt"
	"net/http"
	"sort"

	"github.com/theinterneti/augment-adam-sub002/pkg/agent/middleware/resilience/circuit"
)

// healthHandler serves /health: 200 "OK" while every backend circuit admits
// calls, 503 listing the open circuits otherwise.
func healthHandler(states func() map[string]circuit.State) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		w.Header().Set("Content-Type", "text/plain")

		var open []string
		for provider, state := range states() {
			if state == circuit.Open {
				open = append(open, provider)
			}
		}
		if len(open) == 0 {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("OK"))
			return
		}

		sort.Strings(open)
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = fmt.Fprintf(w, "circuit open: %v", open)
	}
}
