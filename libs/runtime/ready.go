package runtime

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"
)

// ReadyCheck is a named dependency check for /readyz.
type ReadyCheck struct {
	Name  string
	Check func(context.Context) error
}

const checkTimeout = 2 * time.Second

// RunChecks runs the checks concurrently, each with its own budget, and
// returns one "name: error" entry per failing dependency in check order.
func RunChecks(ctx context.Context, checks ...ReadyCheck) []string {
	errs := make([]error, len(checks))
	var wg sync.WaitGroup
	for i, c := range checks {
		if c.Check == nil {
			continue
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			cctx, cancel := context.WithTimeout(ctx, checkTimeout)
			defer cancel()
			errs[i] = c.Check(cctx)
		}()
	}
	wg.Wait()

	var failures []string
	for i, err := range errs {
		if err != nil {
			failures = append(failures, checkName(checks[i])+": "+err.Error())
		}
	}
	return failures
}

func checkName(c ReadyCheck) string {
	if c.Name == "" {
		return "dependency"
	}
	return c.Name
}

type readyBody struct {
	Status   string   `json:"status"`
	Failures []string `json:"failures,omitempty"`
}

// NewBaseMuxWithReady serves /healthz (process liveness) and /readyz
// (every check passing).
func NewBaseMuxWithReady(checks ...ReadyCheck) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeReady(w, http.StatusOK, readyBody{Status: "ok"})
	})
	mux.HandleFunc("GET /readyz", func(w http.ResponseWriter, r *http.Request) {
		if failures := RunChecks(r.Context(), checks...); len(failures) > 0 {
			writeReady(w, http.StatusServiceUnavailable, readyBody{Status: "unavailable", Failures: failures})
			return
		}
		writeReady(w, http.StatusOK, readyBody{Status: "ok"})
	})
	return mux
}

func writeReady(w http.ResponseWriter, status int, body readyBody) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
