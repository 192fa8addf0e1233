/*
Package handler provides HTTP handler functions for income/expense transactions.
*/
package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"bizhub/internal/app/books"
	"bizhub/internal/pkg/auth/jwt"
	"bizhub/internal/pkg/errs"
	"bizhub/internal/pkg/req"
	"bizhub/internal/pkg/resp"
)

// HandleCreateTransaction records an income or expense entry. Bookkeeping
// entries are unmetered.
func HandleCreateTransaction(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		payload := jwt.GetPayloadFromContext(r)
		if payload == nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrUnauthorized))
			return
		}

		var draft books.Transaction
		if customErr := req.BindJSON(r, &draft); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		txn, customErr := deps.Books.CreateTransaction(payload.ID, draft)
		if customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		resp.RespondSuccess(w, r, map[string]any{"transaction": txn})
	}
}

// HandleListTransactions returns the caller's transactions in creation order.
func HandleListTransactions(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		payload := jwt.GetPayloadFromContext(r)
		if payload == nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrUnauthorized))
			return
		}

		transactions, customErr := deps.Books.ListTransactions(payload.ID)
		if customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		resp.RespondSuccess(w, r, map[string]any{"transactions": transactions})
	}
}

// HandleMarkTransactionPaid flips a pending transaction's status to paid.
func HandleMarkTransactionPaid(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		payload := jwt.GetPayloadFromContext(r)
		if payload == nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrUnauthorized))
			return
		}

		txnID := chi.URLParam(r, "transactionID")
		if customErr := deps.Books.MarkTransactionPaid(payload.ID, txnID); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		resp.RespondSuccess(w, r, map[string]any{"status": books.TransactionStatusPaid})
	}
}

// HandleDeleteTransaction removes one of the caller's transactions.
func HandleDeleteTransaction(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		payload := jwt.GetPayloadFromContext(r)
		if payload == nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrUnauthorized))
			return
		}

		txnID := chi.URLParam(r, "transactionID")
		if customErr := deps.Books.DeleteTransaction(payload.ID, txnID); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		resp.RespondSuccess(w, r, map[string]any{"deleted": true})
	}
}
