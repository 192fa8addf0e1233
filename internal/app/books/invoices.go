/*
Package books contains the bookkeeping features: invoices and income/expense
transactions, stored per user in the realtime store.

This file defines the invoice model and its operations. Totals are always
recomputed server-side from the line items, so a client can never store an
invoice whose total disagrees with its contents.
*/
package books

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"bizhub/internal/app/rtstore"
	"bizhub/internal/pkg/errs"
	"bizhub/internal/pkg/logx"

	"github.com/rs/zerolog"
)

const (
	TaxTypePercentage = "percentage"
	TaxTypeAmount     = "amount"

	PaymentMethodLink = "link"
	PaymentMethodNone = "none"

	StatusPaid   = "paid"
	StatusUnpaid = "unpaid"

	// maxLineItems bounds an invoice's item list.
	maxLineItems = 100
)

// supportedCurrencies are the currency codes invoices and transactions accept.
var supportedCurrencies = map[string]struct{}{
	"USD": {},
	"INR": {},
}

// LineItem is one billable row on an invoice.
type LineItem struct {
	Description string  `json:"description"`
	Quantity    float64 `json:"quantity"`
	Price       float64 `json:"price"`
}

// Invoice is the document stored at users/{uid}/invoices/{id}.
type Invoice struct {
	ID              string     `json:"id"`
	InvoiceNumber   string     `json:"invoiceNumber"`
	BusinessName    string     `json:"businessName"`
	BusinessAddress string     `json:"businessAddress"`
	BusinessContact string     `json:"businessContact,omitempty"`
	ClientName      string     `json:"clientName"`
	ClientAddress   string     `json:"clientAddress,omitempty"`
	ClientContact   string     `json:"clientContact,omitempty"`
	InvoiceDate     string     `json:"invoiceDate"`
	DueDate         string     `json:"dueDate"`
	Items           []LineItem `json:"items"`
	Subtotal        float64    `json:"subtotal"`
	Tax             float64    `json:"tax"`
	TaxType         string     `json:"taxType"`
	Total           float64    `json:"total"`
	Notes           string     `json:"notes,omitempty"`
	Currency        string     `json:"currency"`
	PaymentMethod   string     `json:"paymentMethod"`
	LinkPayURL      string     `json:"linkPayUrl,omitempty"`
	Status          string     `json:"status"`
	CreatedAt       int64      `json:"createdAt"`
}

// ComputeTotals derives an invoice's subtotal, tax amount and total from its
// line items. A percentage tax applies to the subtotal; an amount tax is added
// as-is.
func ComputeTotals(items []LineItem, tax float64, taxType string) (subtotal, taxAmount, total float64) {
	for _, item := range items {
		subtotal += item.Quantity * item.Price
	}

	if taxType == TaxTypePercentage {
		taxAmount = subtotal * tax / 100
	} else {
		taxAmount = tax
	}

	return subtotal, taxAmount, subtotal + taxAmount
}

// ValidateInvoice checks a draft invoice and returns the first problem found.
// It touches no state, so callers can run it before charging the creation cost.
func ValidateInvoice(invoice Invoice) *errs.CustomError {
	switch {
	case strings.TrimSpace(invoice.InvoiceNumber) == "":
		return errs.NewError(errs.ErrInvoiceInvalid, "invoiceNumber is required")
	case strings.TrimSpace(invoice.BusinessName) == "":
		return errs.NewError(errs.ErrInvoiceInvalid, "businessName is required")
	case strings.TrimSpace(invoice.ClientName) == "":
		return errs.NewError(errs.ErrInvoiceInvalid, "clientName is required")
	case invoice.InvoiceDate == "":
		return errs.NewError(errs.ErrInvoiceInvalid, "invoiceDate is required")
	case invoice.DueDate == "":
		return errs.NewError(errs.ErrInvoiceInvalid, "dueDate is required")
	case len(invoice.Items) == 0:
		return errs.NewError(errs.ErrInvoiceInvalid, "at least one line item is required")
	case len(invoice.Items) > maxLineItems:
		return errs.NewError(errs.ErrInvoiceInvalid, fmt.Sprintf("at most %d line items are allowed", maxLineItems))
	}

	for i, item := range invoice.Items {
		if item.Quantity <= 0 {
			return errs.NewError(errs.ErrInvoiceInvalid, fmt.Sprintf("item %d quantity must be positive", i+1))
		}
		if item.Price < 0 {
			return errs.NewError(errs.ErrInvoiceInvalid, fmt.Sprintf("item %d price must not be negative", i+1))
		}
	}

	if invoice.Tax < 0 {
		return errs.NewError(errs.ErrInvoiceInvalid, "tax must not be negative")
	}
	if invoice.TaxType != TaxTypePercentage && invoice.TaxType != TaxTypeAmount {
		return errs.NewError(errs.ErrInvoiceInvalid, "taxType must be percentage or amount")
	}
	if _, ok := supportedCurrencies[invoice.Currency]; !ok {
		return errs.NewError(errs.ErrInvoiceInvalid, "unsupported currency")
	}

	switch invoice.PaymentMethod {
	case PaymentMethodLink:
		if strings.TrimSpace(invoice.LinkPayURL) == "" {
			return errs.NewError(errs.ErrInvoiceInvalid, "linkPayUrl is required for link payment")
		}
	case PaymentMethodNone:
	default:
		return errs.NewError(errs.ErrInvoiceInvalid, "paymentMethod must be link or none")
	}

	if invoice.Status != "" && invoice.Status != StatusPaid && invoice.Status != StatusUnpaid {
		return errs.NewError(errs.ErrInvoiceInvalid, "status must be paid or unpaid")
	}

	return nil
}

// Service owns invoice and transaction storage for all users.
type Service struct {
	store  *rtstore.Store
	logger zerolog.Logger
}

// NewService constructs a bookkeeping Service over the given store.
func NewService(store *rtstore.Store) *Service {
	return &Service{
		store:  store,
		logger: logx.Logger().With().Str("component", "BooksService").Logger(),
	}
}

func invoicesPath(uid string) string {
	return "users/" + uid + "/invoices"
}

func invoicePath(uid, invoiceID string) string {
	return invoicesPath(uid) + "/" + invoiceID
}

// CreateInvoice validates the draft, recomputes its totals, and appends it to
// the user's invoice list. The generated list key becomes the invoice id.
func (s *Service) CreateInvoice(uid string, draft Invoice) (Invoice, *errs.CustomError) {
	if customErr := ValidateInvoice(draft); customErr != nil {
		return Invoice{}, customErr
	}

	draft.Subtotal, _, draft.Total = computeInvoiceTotals(draft)
	if draft.Status == "" {
		draft.Status = StatusUnpaid
	}
	if draft.PaymentMethod != PaymentMethodLink {
		draft.LinkPayURL = ""
	}

	err := s.store.RunUpdate(func(tx *rtstore.Tx) error {
		key, err := tx.Append(invoicesPath(uid), toStoreDoc(draft))
		if err != nil {
			return err
		}

		draft.ID = key
		return tx.Update(invoicePath(uid, key), map[string]any{"id": key})
	})
	if err != nil {
		logx.Error(err, "Failed to create invoice", "user_id", uid)
		return Invoice{}, errs.NewError(errs.ErrStoreUnavailable)
	}

	created, customErr := s.GetInvoice(uid, draft.ID)
	if customErr != nil {
		return Invoice{}, customErr
	}

	s.logger.Info().
		Str("user_id", uid).
		Str("invoice_id", created.ID).
		Str("invoice_number", created.InvoiceNumber).
		Msg("Invoice created.")

	return created, nil
}

// GetInvoice returns one invoice document.
func (s *Service) GetInvoice(uid, invoiceID string) (Invoice, *errs.CustomError) {
	var invoice Invoice

	exists, err := s.store.ReadInto(invoicePath(uid, invoiceID), &invoice)
	if err != nil {
		logx.Error(err, "Failed to read invoice", "user_id", uid, "invoice_id", invoiceID)
		return Invoice{}, errs.NewError(errs.ErrStoreUnavailable)
	}
	if !exists {
		return Invoice{}, errs.NewError(errs.ErrInvoiceNotFound)
	}

	return invoice, nil
}

// ListInvoices returns the user's invoices in creation order.
func (s *Service) ListInvoices(uid string) ([]Invoice, *errs.CustomError) {
	var byKey map[string]Invoice

	exists, err := s.store.ReadInto(invoicesPath(uid), &byKey)
	if err != nil {
		logx.Error(err, "Failed to list invoices", "user_id", uid)
		return nil, errs.NewError(errs.ErrStoreUnavailable)
	}
	if !exists {
		return []Invoice{}, nil
	}

	keys := make([]string, 0, len(byKey))
	for key := range byKey {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	invoices := make([]Invoice, 0, len(keys))
	for _, key := range keys {
		invoice := byKey[key]
		invoice.ID = key
		invoices = append(invoices, invoice)
	}

	return invoices, nil
}

// UpdateInvoice replaces an invoice's content with the validated draft,
// preserving its id, status and creation time. Totals are recomputed.
func (s *Service) UpdateInvoice(uid, invoiceID string, draft Invoice) (Invoice, *errs.CustomError) {
	if customErr := ValidateInvoice(draft); customErr != nil {
		return Invoice{}, customErr
	}

	draft.Subtotal, _, draft.Total = computeInvoiceTotals(draft)
	if draft.PaymentMethod != PaymentMethodLink {
		draft.LinkPayURL = ""
	}

	var updated Invoice

	err := s.store.RunUpdate(func(tx *rtstore.Tx) error {
		var current Invoice
		exists, err := tx.ReadInto(invoicePath(uid, invoiceID), &current)
		if err != nil {
			return err
		}
		if !exists {
			return errs.NewError(errs.ErrInvoiceNotFound)
		}

		draft.ID = invoiceID
		draft.CreatedAt = current.CreatedAt
		if draft.Status == "" {
			draft.Status = current.Status
		}

		updated = draft
		return tx.Write(invoicePath(uid, invoiceID), draft)
	})
	if customErr := asCustomError(err); customErr != nil {
		return Invoice{}, customErr
	}
	if err != nil {
		logx.Error(err, "Failed to update invoice", "user_id", uid, "invoice_id", invoiceID)
		return Invoice{}, errs.NewError(errs.ErrStoreUnavailable)
	}

	return updated, nil
}

// MarkInvoicePaid flips an invoice's status to paid.
func (s *Service) MarkInvoicePaid(uid, invoiceID string) *errs.CustomError {
	err := s.store.RunUpdate(func(tx *rtstore.Tx) error {
		_, exists, err := tx.Read(invoicePath(uid, invoiceID))
		if err != nil {
			return err
		}
		if !exists {
			return errs.NewError(errs.ErrInvoiceNotFound)
		}

		return tx.Update(invoicePath(uid, invoiceID), map[string]any{"status": StatusPaid})
	})
	if customErr := asCustomError(err); customErr != nil {
		return customErr
	}
	if err != nil {
		logx.Error(err, "Failed to mark invoice paid", "user_id", uid, "invoice_id", invoiceID)
		return errs.NewError(errs.ErrStoreUnavailable)
	}

	return nil
}

// DeleteInvoice removes one invoice document.
func (s *Service) DeleteInvoice(uid, invoiceID string) *errs.CustomError {
	err := s.store.RunUpdate(func(tx *rtstore.Tx) error {
		_, exists, err := tx.Read(invoicePath(uid, invoiceID))
		if err != nil {
			return err
		}
		if !exists {
			return errs.NewError(errs.ErrInvoiceNotFound)
		}

		return tx.Delete(invoicePath(uid, invoiceID))
	})
	if customErr := asCustomError(err); customErr != nil {
		return customErr
	}
	if err != nil {
		logx.Error(err, "Failed to delete invoice", "user_id", uid, "invoice_id", invoiceID)
		return errs.NewError(errs.ErrStoreUnavailable)
	}

	return nil
}

// computeInvoiceTotals applies ComputeTotals to a draft's items and tax fields.
func computeInvoiceTotals(invoice Invoice) (subtotal, taxAmount, total float64) {
	return ComputeTotals(invoice.Items, invoice.Tax, invoice.TaxType)
}

// toStoreDoc renders an invoice for storage, letting the store assign the
// creation timestamp at commit time.
func toStoreDoc(invoice Invoice) map[string]any {
	doc := map[string]any{
		"invoiceNumber":   invoice.InvoiceNumber,
		"businessName":    invoice.BusinessName,
		"businessAddress": invoice.BusinessAddress,
		"clientName":      invoice.ClientName,
		"invoiceDate":     invoice.InvoiceDate,
		"dueDate":         invoice.DueDate,
		"items":           invoice.Items,
		"subtotal":        invoice.Subtotal,
		"tax":             invoice.Tax,
		"taxType":         invoice.TaxType,
		"total":           invoice.Total,
		"currency":        invoice.Currency,
		"paymentMethod":   invoice.PaymentMethod,
		"status":          invoice.Status,
		"createdAt":       rtstore.ServerTimestamp,
	}

	if invoice.BusinessContact != "" {
		doc["businessContact"] = invoice.BusinessContact
	}
	if invoice.ClientAddress != "" {
		doc["clientAddress"] = invoice.ClientAddress
	}
	if invoice.ClientContact != "" {
		doc["clientContact"] = invoice.ClientContact
	}
	if invoice.Notes != "" {
		doc["notes"] = invoice.Notes
	}
	if invoice.LinkPayURL != "" {
		doc["linkPayUrl"] = invoice.LinkPayURL
	}

	return doc
}

// asCustomError unwraps a domain error carried out of a store transaction.
func asCustomError(err error) *errs.CustomError {
	var customErr *errs.CustomError
	if errors.As(err, &customErr) {
		return customErr
	}
	return nil
}
