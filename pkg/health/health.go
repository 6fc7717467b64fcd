package health

import (
	"fmt"
	"net/http"
	"sync"
	"time"
)

// HealthChecker reports the outcome of the most recent reconcile pass.
type HealthChecker struct {
	mu       sync.RWMutex
	lastErr  error
	lastPass time.Time
	passes   int
}

// Record stores the outcome of a finished pass.
func (hc *HealthChecker) Record(err error) {
	hc.mu.Lock()
	defer hc.mu.Unlock()
	hc.lastErr = err
	hc.lastPass = time.Now()
	hc.passes++
}

// Healthy is nil until a pass has failed.
func (hc *HealthChecker) Healthy() error {
	hc.mu.RLock()
	defer hc.mu.RUnlock()
	return hc.lastErr
}

func (hc *HealthChecker) HealthCheckHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hc.mu.RLock()
		err, passes, last := hc.lastErr, hc.passes, hc.lastPass
		hc.mu.RUnlock()

		if err != nil {
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte(fmt.Sprintf("last reconcile at %s failed: %v",
				last.UTC().Format(time.RFC3339), err)))
			return
		}
		w.WriteHeader(http.StatusOK)
		if passes == 0 {
			w.Write([]byte("Ok"))
			return
		}
		w.Write([]byte(fmt.Sprintf("Ok, %d passes", passes)))
	})
}
