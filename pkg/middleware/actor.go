package middleware

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/pipetrak/pipetrak/pkg/composables"
)

// ActorHeader carries the operator id performing the request. Auth proper is
// terminated upstream; the engine only needs to know who to attribute writes to.
const ActorHeader = "X-Operator-ID"

// WithActor injects the operator id from the request header into the context.
// Requests without the header pass through; write endpoints fail later with
// composables.ErrNoActor.
func WithActor() mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if raw := r.Header.Get(ActorHeader); raw != "" {
				if actorID, err := uuid.Parse(raw); err == nil {
					r = r.WithContext(composables.WithActorID(r.Context(), actorID))
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}
