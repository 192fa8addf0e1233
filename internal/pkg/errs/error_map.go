/*
Package errs provides custom error types and application-level error code constants.

This file defines the map from error codes to CustomError values, used to
standardize HTTP responses and internal error handling.
*/
package errs

import "net/http"

// errorMap stores the CustomError template for every application error code.
var errorMap = map[int]CustomError{
	// 1xxx: General Request Handling Errors
	ErrInvalidParams:         {Code: ErrInvalidParams, Message: "Invalid request parameters."},
	ErrUnsupportedMediaType:  {Code: ErrUnsupportedMediaType, Message: "Unsupported request format."},
	ErrInvalidJSONFormat:     {Code: ErrInvalidJSONFormat, Message: "Unsupported request format."},
	ErrExtraContentInBody:    {Code: ErrExtraContentInBody, Message: "Request contains unexpected data."},
	ErrRequestEntityTooLarge: {Code: ErrRequestEntityTooLarge, Message: "Request size is too large."},
	ErrRateLimitExceeded:     {Code: ErrRateLimitExceeded, Message: "Too many requests. Please try again later.", Status: http.StatusTooManyRequests},

	// 2xxx: Room and Messaging Business Logic Errors
	ErrRoomNotFound:          {Code: ErrRoomNotFound, Message: "This room may have been deleted by the host."},
	ErrRoomIsFull:            {Code: ErrRoomIsFull, Message: "This room has reached its maximum number of participants."},
	ErrNotRoomHost:           {Code: ErrNotRoomHost, Message: "Only the room host can do that."},
	ErrRoomNameRequired:      {Code: ErrRoomNameRequired, Message: "A room name is required."},
	ErrMessageContentInvalid: {Code: ErrMessageContentInvalid, Message: "Message is empty or too long."},

	// 25xx: Credit Ledger Errors
	ErrInsufficientCredits: {Code: ErrInsufficientCredits, Message: "You need %d credits for this feature."},
	ErrUnknownFeature:      {Code: ErrUnknownFeature, Message: "Unknown feature."},

	// 26xx: Invoice and Transaction Errors
	ErrInvoiceInvalid:      {Code: ErrInvoiceInvalid, Message: "Invoice is invalid: %s"},
	ErrInvoiceNotFound:     {Code: ErrInvoiceNotFound, Message: "Invoice not found."},
	ErrTransactionInvalid:  {Code: ErrTransactionInvalid, Message: "Transaction is invalid: %s"},
	ErrTransactionNotFound: {Code: ErrTransactionNotFound, Message: "Transaction not found."},

	// 3xxx: User, Session, and Security Errors
	ErrInvalidEmail:       {Code: ErrInvalidEmail, Message: "Invalid email address."},
	ErrInvalidPassword:    {Code: ErrInvalidPassword, Message: "Invalid password."},
	ErrInvalidDisplayName: {Code: ErrInvalidDisplayName, Message: "Invalid display name."},
	ErrUserAlreadyExists:  {Code: ErrUserAlreadyExists, Message: "An account with this email already exists."},
	ErrInvalidCredentials: {Code: ErrInvalidCredentials, Message: "Incorrect email or password."},
	ErrUserNotFound:       {Code: ErrUserNotFound, Message: "Account not found."},
	ErrAlreadySignedIn:    {Code: ErrAlreadySignedIn, Message: "You are already signed in."},
	ErrSessionReplaced:    {Code: ErrSessionReplaced, Message: "You joined this room from another device."},
	ErrUnauthorized:       {Code: ErrUnauthorized, Message: "Please sign in to continue.", Status: http.StatusUnauthorized},

	// 5xxx: Internal and Upstream Errors
	ErrUnknown:           {Code: ErrUnknown, Message: "Something went wrong. Please try again.", Status: http.StatusInternalServerError},
	ErrStoreUnavailable:  {Code: ErrStoreUnavailable, Message: "Could not reach the data store. Please try again."},
	ErrGenerationFailed:  {Code: ErrGenerationFailed, Message: "Content generation failed. Please try again."},
	ErrFileStorageFailed: {Code: ErrFileStorageFailed, Message: "File upload failed. Please try again."},
}
