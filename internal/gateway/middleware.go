package gateway

import (
	"net/http"

	"github.com/chatly-hq/chatly/internal/identity"
	"github.com/google/uuid"
)

// Identity resolves the acting user from the X-User-ID header the front
// proxy sets after authenticating the request. X-User-Admin marks site
// administrators. Requests without a valid user id are rejected.
func Identity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, err := uuid.Parse(r.Header.Get("X-User-ID"))
		if err != nil || userID == uuid.Nil {
			http.Error(w, "unauthenticated", http.StatusUnauthorized)
			return
		}

		actor := identity.Actor{
			UserID:          userID,
			IsAdministrator: r.Header.Get("X-User-Admin") == "true",
		}
		next.ServeHTTP(w, r.WithContext(identity.WithActor(r.Context(), actor)))
	})
}
