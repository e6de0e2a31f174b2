// Package health serves liveness and readiness probes.
package health

import (
	"context"
	"errors"
	"net/http"
	"sort"
	"time"

	"github.com/goccy/go-json"
)

func Liveness() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}
}

// Check reports nil when a dependency is usable.
type Check func(ctx context.Context) error

type Pinger interface {
	Ping(ctx context.Context) error
}

func PingCheck(p Pinger) Check {
	return p.Ping
}

type ReadinessReporter interface {
	Readiness() (ready bool, partitions []int32)
}

var errNoPartitions = errors.New("no partitions assigned")

func PartitionCheck(rr ReadinessReporter) Check {
	return func(context.Context) error {
		if ok, _ := rr.Readiness(); !ok {
			return errNoPartitions
		}
		return nil
	}
}

// Readiness runs every check with timeout and answers 503 if any fails.
func Readiness(checks map[string]Check, timeout time.Duration) http.HandlerFunc {
	if timeout <= 0 {
		timeout = time.Second
	}
	names := make([]string, 0, len(checks))
	for n := range checks {
		names = append(names, n)
	}
	sort.Strings(names)

	return func(w http.ResponseWriter, r *http.Request) {
		type resp struct {
			Status string            `json:"status"`
			Checks map[string]string `json:"checks,omitempty"`
		}
		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		defer cancel()

		out := resp{Status: "ready", Checks: make(map[string]string, len(names))}
		for _, n := range names {
			if err := checks[n](ctx); err != nil {
				out.Status = "not_ready"
				out.Checks[n] = err.Error()
				continue
			}
			out.Checks[n] = "ok"
		}
		w.Header().Set("Content-Type", "application/json")
		if out.Status != "ready" {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		_ = json.NewEncoder(w).Encode(out)
	}
}
