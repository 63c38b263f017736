package mw

import (
	"errors"
	"net/http"

	"github.com/hivehq/hive-api/internal/service"
)

// RequirePlan returns middleware that blocks requests from users without an
// active subscription. It must run after Auth so user claims are present.
func RequirePlan(billing *service.BillingService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims := GetUserClaims(r.Context())
			if claims == nil {
				http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
				return
			}

			if err := billing.RequireActivePlan(r.Context(), claims.UserID); err != nil {
				if errors.Is(err, service.ErrPlanRequired) {
					http.Error(w, `{"error":"active subscription required"}`, http.StatusPaymentRequired)
					return
				}
				http.Error(w, `{"error":"failed to check subscription"}`, http.StatusInternalServerError)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
