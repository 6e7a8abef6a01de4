package handler

import (
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/promo-engine/internal/domain/auth"
)

var errForbidden = errors.New("insufficient scope")

// authenticate resolves the api_key header to a key and stores it in the
// request context.
func (h *Handler) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key, err := h.authenticator.Authenticate(r.Context(), r.Header.Get(APIKeyHeader))
		if err != nil {
			h.writeError(w, r, auth.ErrUnauthorized)
			return
		}
		ctx := auth.WithKey(r.Context(), key)
		ctx = zctx.With(ctx, zap.String("user_id", key.UserID))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requireScope rejects keys without scope. Run after authenticate.
func requireScope(scope string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key, ok := auth.FromContext(r.Context())
			if !ok {
				writeMessage(w, http.StatusUnauthorized, auth.ErrUnauthorized.Error())
				return
			}
			if !key.HasScope(scope) {
				writeMessage(w, http.StatusForbidden, errForbidden.Error())
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// caller returns the authenticated key. Only call behind authenticate.
func caller(r *http.Request) *auth.APIKeyInfo {
	key, _ := auth.FromContext(r.Context())
	return key
}
