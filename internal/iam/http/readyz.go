package http

import (
	"net/http"
	"time"

	"github.com/phoenixiam/phoenix/internal/iam/store"
	"github.com/phoenixiam/phoenix/pkg/authsdk"
	"github.com/phoenixiam/phoenix/pkg/httpx"
	"github.com/phoenixiam/phoenix/pkg/keyring"
)

// ReadyzHandler answers 200 only when the store is reachable and a signing
// key is available.
func ReadyzHandler(
	startTime time.Time,
	version string,
	st store.Store,
	ring *keyring.Ring,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checks := &authsdk.HealthChecks{
			Database: "ok",
			Signer:   "ok",
		}
		status := "ok"
		code := http.StatusOK

		if err := st.Ping(r.Context()); err != nil {
			checks.Database = "error: " + err.Error()
			status = "degraded"
			code = http.StatusServiceUnavailable
		}

		if _, err := ring.SigningKey(); err != nil {
			checks.Signer = "error: " + err.Error()
			status = "degraded"
			code = http.StatusServiceUnavailable
		}

		httpx.WriteJSON(w, code, authsdk.HealthResponse{
			Status:  status,
			Uptime:  time.Since(startTime).String(),
			Version: version,
			Checks:  checks,
		})
	}
}
