package session

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// CookieName keys the shopper's cart slot.
const CookieName = "cb_session"

// cookieTTL keeps carts around for two weeks of inactivity.
const cookieTTL = 14 * 24 * time.Hour

// Middleware mints a session cookie for first-time shoppers and validates
// the Storefront-Client header when a minimum version is configured.
// Health endpoints are exempt; they are infrastructure, not shoppers.
func Middleware(minClientVersion string, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if isExemptPath(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			if header := r.Header.Get(ClientHeader); header != "" {
				info, err := ParseClientHeader(header)
				if err != nil {
					logger.Warn("invalid client header",
						slog.String("header", header),
						slog.String("error", err.Error()))
					writeSessionError(w, http.StatusBadRequest, "invalid_client_header", err.Error())
					return
				}
				if !CheckVersion(info.Version, minClientVersion) {
					writeSessionError(w, http.StatusUpgradeRequired, "client_upgrade_required",
						"client version "+info.Version+" is below the minimum "+minClientVersion)
					return
				}
			}

			id := sessionID(r)
			if id == "" {
				id = uuid.NewString()
				http.SetCookie(w, &http.Cookie{
					Name:     CookieName,
					Value:    id,
					Path:     "/",
					MaxAge:   int(cookieTTL.Seconds()),
					HttpOnly: true,
					SameSite: http.SameSiteLaxMode,
				})
			}

			next.ServeHTTP(w, r.WithContext(WithSessionID(r.Context(), id)))
		})
	}
}

// sessionID reads the shopper's session cookie, if any.
func sessionID(r *http.Request) string {
	cookie, err := r.Cookie(CookieName)
	if err != nil {
		return ""
	}
	if _, err := uuid.Parse(cookie.Value); err != nil {
		// Tampered or legacy cookie; mint a fresh one.
		return ""
	}
	return cookie.Value
}

func isExemptPath(path string) bool {
	switch path {
	case "/health", "/healthz":
		return true
	default:
		return false
	}
}

func writeSessionError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	resp := struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}{}
	resp.Error.Code = code
	resp.Error.Message = message

	json.NewEncoder(w).Encode(resp)
}
