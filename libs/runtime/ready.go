package runtime

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// ReadyCheck is a named dependency check for /readyz.
type ReadyCheck struct {
	Name  string
	Check func(context.Context) error
}

const readyCheckTimeout = 2 * time.Second

// Probe runs every check with its own timeout and joins the failures, each
// prefixed with the check name. A nil result means every dependency answered.
func Probe(ctx context.Context, checks []ReadyCheck) error {
	var errs []error
	for _, c := range checks {
		if c.Check == nil {
			continue
		}
		checkCtx, cancel := context.WithTimeout(ctx, readyCheckTimeout)
		err := c.Check(checkCtx)
		cancel()
		if err != nil {
			name := c.Name
			if name == "" {
				name = "dependency"
			}
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}
	return errors.Join(errs...)
}

// NewBaseMuxWithReady returns a mux serving /healthz (process liveness) and
// /readyz (dependency readiness via Probe).
func NewBaseMuxWithReady(checks ...ReadyCheck) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeText(w, http.StatusOK, "ok")
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if err := Probe(r.Context(), checks); err != nil {
			writeText(w, http.StatusServiceUnavailable, err.Error())
			return
		}
		writeText(w, http.StatusOK, "ok")
	})
	return mux
}

func writeText(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}
