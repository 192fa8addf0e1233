/*
Package identity contains the core data structure for an authenticated user.

It defines the Identity struct handed out by the auth layer and consumed by the
credit ledger, room presence, and content handlers.
*/
package identity

// Identity represents an authenticated account as the rest of the system sees it.
type Identity struct {

	// ID is the stable opaque account identifier.
	ID string `json:"id"`

	// DisplayName is the name shown to other participants.
	DisplayName string `json:"displayName"`

	// Email is the account email address.
	Email string `json:"email,omitempty"`

	// AvatarURL points at the account's avatar image, empty if none.
	AvatarURL string `json:"avatarUrl,omitempty"`
}
