/*
Package handler provides HTTP handler functions for invoice management.
*/
package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"bizhub/internal/app/books"
	"bizhub/internal/app/credits"
	"bizhub/internal/pkg/auth/jwt"
	"bizhub/internal/pkg/errs"
	"bizhub/internal/pkg/req"
	"bizhub/internal/pkg/resp"
)

// HandleCreateInvoice charges the invoice-generation cost, validates the
// draft, and stores it with server-computed totals.
func HandleCreateInvoice(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		payload := jwt.GetPayloadFromContext(r)
		if payload == nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrUnauthorized))
			return
		}

		var draft books.Invoice
		if customErr := req.BindJSON(r, &draft); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		// Validate before debiting so a rejected draft never costs credits.
		if customErr := books.ValidateInvoice(draft); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		result, customErr := deps.Ledger.Debit(payload.ID, credits.FeatureInvoiceGenerator)
		if customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}
		if !result.Approved {
			resp.RespondError(w, r, errs.NewError(errs.ErrInsufficientCredits, result.Cost))
			return
		}

		invoice, customErr := deps.Books.CreateInvoice(payload.ID, draft)
		if customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		resp.RespondSuccess(w, r, map[string]any{
			"invoice":     invoice,
			"creditsUsed": result.Cost,
			"newBalance":  result.NewBalance,
		})
	}
}

// HandleListInvoices returns the caller's invoices in creation order.
func HandleListInvoices(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		payload := jwt.GetPayloadFromContext(r)
		if payload == nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrUnauthorized))
			return
		}

		invoices, customErr := deps.Books.ListInvoices(payload.ID)
		if customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		resp.RespondSuccess(w, r, map[string]any{"invoices": invoices})
	}
}

// HandleGetInvoice returns one of the caller's invoices.
func HandleGetInvoice(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		payload := jwt.GetPayloadFromContext(r)
		if payload == nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrUnauthorized))
			return
		}

		invoice, customErr := deps.Books.GetInvoice(payload.ID, chi.URLParam(r, "invoiceID"))
		if customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		resp.RespondSuccess(w, r, map[string]any{"invoice": invoice})
	}
}

// HandleUpdateInvoice replaces an invoice's content. Editing an existing
// invoice is free; only creation is metered.
func HandleUpdateInvoice(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		payload := jwt.GetPayloadFromContext(r)
		if payload == nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrUnauthorized))
			return
		}

		var draft books.Invoice
		if customErr := req.BindJSON(r, &draft); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		invoice, customErr := deps.Books.UpdateInvoice(payload.ID, chi.URLParam(r, "invoiceID"), draft)
		if customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		resp.RespondSuccess(w, r, map[string]any{"invoice": invoice})
	}
}

// HandleMarkInvoicePaid flips an invoice's status to paid.
func HandleMarkInvoicePaid(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		payload := jwt.GetPayloadFromContext(r)
		if payload == nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrUnauthorized))
			return
		}

		invoiceID := chi.URLParam(r, "invoiceID")
		if customErr := deps.Books.MarkInvoicePaid(payload.ID, invoiceID); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		resp.RespondSuccess(w, r, map[string]any{"status": books.StatusPaid})
	}
}

// HandleDeleteInvoice removes one of the caller's invoices.
func HandleDeleteInvoice(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		payload := jwt.GetPayloadFromContext(r)
		if payload == nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrUnauthorized))
			return
		}

		invoiceID := chi.URLParam(r, "invoiceID")
		if customErr := deps.Books.DeleteInvoice(payload.ID, invoiceID); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		resp.RespondSuccess(w, r, map[string]any{"deleted": true})
	}
}
