/*
Package errs provides custom error types and application-level error code constants.

These error codes identify specific business or system errors both internally
within the server and in communication with clients.
*/
package errs

// 1xxx: General Request Handling Errors
const (
	// ErrInvalidParams indicates that request parameter validation failed.
	ErrInvalidParams = 1001

	// ErrUnsupportedMediaType indicates that the request Content-Type is not supported.
	ErrUnsupportedMediaType = 1002

	// ErrInvalidJSONFormat indicates that the request body JSON is malformed.
	ErrInvalidJSONFormat = 1003

	// ErrExtraContentInBody indicates trailing content after valid JSON data.
	ErrExtraContentInBody = 1004

	// ErrRequestEntityTooLarge indicates that the request body exceeded the server limit.
	ErrRequestEntityTooLarge = 1006

	// ErrRateLimitExceeded indicates that the request rate has exceeded the set limit.
	ErrRateLimitExceeded = 1007
)

// 2xxx: Room and Messaging Business Logic Errors
const (
	// ErrRoomNotFound indicates that the requested room does not exist or was deleted.
	ErrRoomNotFound = 2101

	// ErrRoomIsFull indicates that the room has reached its participant capacity.
	ErrRoomIsFull = 2102

	// ErrNotRoomHost indicates a host-only operation attempted by a non-host participant.
	ErrNotRoomHost = 2103

	// ErrRoomNameRequired indicates that room creation was attempted without a name.
	ErrRoomNameRequired = 2104

	// ErrMessageContentInvalid indicates an empty or oversized chat message.
	ErrMessageContentInvalid = 2201
)

// 25xx: Credit Ledger Errors
const (
	// ErrInsufficientCredits indicates a debit attempted with balance below the feature cost.
	ErrInsufficientCredits = 2501

	// ErrUnknownFeature indicates a metered-feature id missing from the cost table.
	ErrUnknownFeature = 2502
)

// 26xx: Invoice and Transaction Errors
const (
	// ErrInvoiceInvalid indicates that invoice field validation failed.
	ErrInvoiceInvalid = 2601

	// ErrInvoiceNotFound indicates that the requested invoice does not exist.
	ErrInvoiceNotFound = 2602

	// ErrTransactionInvalid indicates that transaction field validation failed.
	ErrTransactionInvalid = 2603

	// ErrTransactionNotFound indicates that the requested transaction does not exist.
	ErrTransactionNotFound = 2604
)

// 3xxx: User, Session, and Security Errors
const (
	// ErrInvalidEmail indicates an email address that failed validation.
	ErrInvalidEmail = 3101

	// ErrInvalidPassword indicates a password outside the allowed length range.
	ErrInvalidPassword = 3102

	// ErrInvalidDisplayName indicates a display name that failed validation.
	ErrInvalidDisplayName = 3103

	// ErrUserAlreadyExists indicates a sign-up with an email that is already registered.
	ErrUserAlreadyExists = 3104

	// ErrInvalidCredentials indicates a sign-in with a wrong email or password.
	ErrInvalidCredentials = 3105

	// ErrUserNotFound indicates that the referenced account does not exist.
	ErrUserNotFound = 3106

	// ErrAlreadySignedIn indicates an auth operation performed while already signed in.
	ErrAlreadySignedIn = 3107

	// ErrSessionReplaced indicates that the connection was closed in favor of a newer one.
	ErrSessionReplaced = 3108

	// ErrUnauthorized indicates a missing or invalid identity token.
	ErrUnauthorized = 3109
)

// 5xxx: Internal and Upstream Errors
const (
	// ErrUnknown represents an unclassified server internal error.
	ErrUnknown = 5000

	// ErrStoreUnavailable indicates a failure talking to the realtime store.
	ErrStoreUnavailable = 5001

	// ErrGenerationFailed indicates a failure from the generative content service.
	ErrGenerationFailed = 5002

	// ErrFileStorageFailed indicates a failure from the object storage service.
	ErrFileStorageFailed = 5003
)
