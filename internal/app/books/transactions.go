/*
Package books contains the bookkeeping features.

This file defines the income/expense transaction model and its operations.
*/
package books

import (
	"sort"
	"strings"

	"bizhub/internal/app/rtstore"
	"bizhub/internal/pkg/errs"
	"bizhub/internal/pkg/logx"
)

const (
	TransactionTypeIncome  = "income"
	TransactionTypeExpense = "expense"

	TransactionStatusPaid    = "paid"
	TransactionStatusPending = "pending"
)

// Transaction is the document stored at users/{uid}/transactions/{id}.
type Transaction struct {
	ID          string  `json:"id"`
	Type        string  `json:"type"`
	Amount      float64 `json:"amount"`
	Currency    string  `json:"currency"`
	Category    string  `json:"category"`
	Description string  `json:"description,omitempty"`
	Date        string  `json:"date"`
	Status      string  `json:"status"`
	CreatedAt   int64   `json:"createdAt"`
}

// validateTransaction checks a draft transaction and returns the first problem found.
func validateTransaction(txn Transaction) *errs.CustomError {
	switch {
	case txn.Type != TransactionTypeIncome && txn.Type != TransactionTypeExpense:
		return errs.NewError(errs.ErrTransactionInvalid, "type must be income or expense")
	case txn.Amount <= 0:
		return errs.NewError(errs.ErrTransactionInvalid, "amount must be positive")
	case strings.TrimSpace(txn.Category) == "":
		return errs.NewError(errs.ErrTransactionInvalid, "category is required")
	case txn.Date == "":
		return errs.NewError(errs.ErrTransactionInvalid, "date is required")
	}

	if _, ok := supportedCurrencies[txn.Currency]; !ok {
		return errs.NewError(errs.ErrTransactionInvalid, "unsupported currency")
	}
	if txn.Status != TransactionStatusPaid && txn.Status != TransactionStatusPending {
		return errs.NewError(errs.ErrTransactionInvalid, "status must be paid or pending")
	}

	return nil
}

func transactionsPath(uid string) string {
	return "users/" + uid + "/transactions"
}

func transactionPath(uid, txnID string) string {
	return transactionsPath(uid) + "/" + txnID
}

// CreateTransaction validates the draft and appends it to the user's ledger.
// The generated list key becomes the transaction id.
func (s *Service) CreateTransaction(uid string, draft Transaction) (Transaction, *errs.CustomError) {
	if customErr := validateTransaction(draft); customErr != nil {
		return Transaction{}, customErr
	}

	err := s.store.RunUpdate(func(tx *rtstore.Tx) error {
		doc := map[string]any{
			"type":      draft.Type,
			"amount":    draft.Amount,
			"currency":  draft.Currency,
			"category":  draft.Category,
			"date":      draft.Date,
			"status":    draft.Status,
			"createdAt": rtstore.ServerTimestamp,
		}
		if draft.Description != "" {
			doc["description"] = draft.Description
		}

		key, err := tx.Append(transactionsPath(uid), doc)
		if err != nil {
			return err
		}

		draft.ID = key
		return tx.Update(transactionPath(uid, key), map[string]any{"id": key})
	})
	if err != nil {
		logx.Error(err, "Failed to create transaction", "user_id", uid)
		return Transaction{}, errs.NewError(errs.ErrStoreUnavailable)
	}

	created, customErr := s.GetTransaction(uid, draft.ID)
	if customErr != nil {
		return Transaction{}, customErr
	}

	s.logger.Info().
		Str("user_id", uid).
		Str("transaction_id", created.ID).
		Str("type", created.Type).
		Msg("Transaction recorded.")

	return created, nil
}

// GetTransaction returns one transaction document.
func (s *Service) GetTransaction(uid, txnID string) (Transaction, *errs.CustomError) {
	var txn Transaction

	exists, err := s.store.ReadInto(transactionPath(uid, txnID), &txn)
	if err != nil {
		logx.Error(err, "Failed to read transaction", "user_id", uid, "transaction_id", txnID)
		return Transaction{}, errs.NewError(errs.ErrStoreUnavailable)
	}
	if !exists {
		return Transaction{}, errs.NewError(errs.ErrTransactionNotFound)
	}

	return txn, nil
}

// ListTransactions returns the user's transactions in creation order.
func (s *Service) ListTransactions(uid string) ([]Transaction, *errs.CustomError) {
	var byKey map[string]Transaction

	exists, err := s.store.ReadInto(transactionsPath(uid), &byKey)
	if err != nil {
		logx.Error(err, "Failed to list transactions", "user_id", uid)
		return nil, errs.NewError(errs.ErrStoreUnavailable)
	}
	if !exists {
		return []Transaction{}, nil
	}

	keys := make([]string, 0, len(byKey))
	for key := range byKey {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	transactions := make([]Transaction, 0, len(keys))
	for _, key := range keys {
		txn := byKey[key]
		txn.ID = key
		transactions = append(transactions, txn)
	}

	return transactions, nil
}

// MarkTransactionPaid flips a pending transaction's status to paid.
func (s *Service) MarkTransactionPaid(uid, txnID string) *errs.CustomError {
	err := s.store.RunUpdate(func(tx *rtstore.Tx) error {
		_, exists, err := tx.Read(transactionPath(uid, txnID))
		if err != nil {
			return err
		}
		if !exists {
			return errs.NewError(errs.ErrTransactionNotFound)
		}

		return tx.Update(transactionPath(uid, txnID), map[string]any{"status": TransactionStatusPaid})
	})
	if customErr := asCustomError(err); customErr != nil {
		return customErr
	}
	if err != nil {
		logx.Error(err, "Failed to mark transaction paid", "user_id", uid, "transaction_id", txnID)
		return errs.NewError(errs.ErrStoreUnavailable)
	}

	return nil
}

// DeleteTransaction removes one transaction document.
func (s *Service) DeleteTransaction(uid, txnID string) *errs.CustomError {
	err := s.store.RunUpdate(func(tx *rtstore.Tx) error {
		_, exists, err := tx.Read(transactionPath(uid, txnID))
		if err != nil {
			return err
		}
		if !exists {
			return errs.NewError(errs.ErrTransactionNotFound)
		}

		return tx.Delete(transactionPath(uid, txnID))
	})
	if customErr := asCustomError(err); customErr != nil {
		return customErr
	}
	if err != nil {
		logx.Error(err, "Failed to delete transaction", "user_id", uid, "transaction_id", txnID)
		return errs.NewError(errs.ErrStoreUnavailable)
	}

	return nil
}
