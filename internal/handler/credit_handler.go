/*
Package handler provides HTTP handler functions for the credit ledger.
*/
package handler

import (
	"net/http"

	"bizhub/internal/pkg/auth/jwt"
	"bizhub/internal/pkg/errs"
	"bizhub/internal/pkg/resp"
)

// HandleGetCredits returns the caller's current credit balance, applying the
// daily reset if a new calendar day has started.
func HandleGetCredits(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		payload := jwt.GetPayloadFromContext(r)
		if payload == nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrUnauthorized))
			return
		}

		balance, customErr := deps.Ledger.Balance(payload.ID)
		if customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		resp.RespondSuccess(w, r, map[string]any{"credits": balance})
	}
}
