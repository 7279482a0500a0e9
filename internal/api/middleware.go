package api

import (
	"fmt"
	"net/http"
	"strings"
)

func (s *PairUpApp) errorHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				var panicError error
				switch e := err.(type) {
				case error:
					panicError = e
				default:
					panicError = fmt.Errorf("%v", e)
				}
				s.log.Printf("panic: %v", panicError)
				errResp := NewInternalServerError(panicError)
				w.Header().Set("Connection", "close")
				s.writeJson(w, errResp.StatusCode, errResp)
				return
			}
		}()

		next.ServeHTTP(w, r)
	})
}

func bearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(auth, prefix) {
		return ""
	}
	return strings.TrimPrefix(auth, prefix)
}

// adminMiddleware gates privileged handlers on a live admin session
// token presented as a bearer credential.
func (s *PairUpApp) adminMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		ok, err := s.admin.IsValid(r.Context(), token)
		if err != nil {
			errResp := domainError(err)
			s.log.Printf("admin token check: %v", err)
			s.writeJson(w, errResp.StatusCode, errResp)
			return
		}
		if !ok {
			errResp := NewUnauthorizedError()
			s.writeJson(w, errResp.StatusCode, errResp)
			return
		}

		w.Header().Set("Cache-Control", "no-store, no-cache, must-revalidate, private")
		next(w, r)
	}
}

// maintenanceMiddleware rejects room creation and joining while the
// process-wide shutdown flag is set. Existing rooms keep operating so
// rounds in flight can finish.
func (s *PairUpApp) maintenanceMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		down, err := s.admin.IsShutdown(r.Context())
		if err != nil {
			errResp := domainError(err)
			s.log.Printf("shutdown flag check: %v", err)
			s.writeJson(w, errResp.StatusCode, errResp)
			return
		}
		if down {
			errResp := NewServiceUnavailableError()
			s.writeJson(w, errResp.StatusCode, errResp)
			return
		}

		next(w, r)
	}
}
