package jwt

import "github.com/golang-jwt/jwt"

// Payload defines the JWT claims carried by bizhub identity tokens.
// It mirrors the Identity shape the rest of the system consumes:
// {id, displayName, email, avatarUrl}.
type Payload struct {
	// StandardClaims embeds Exp, Iat and Iss, required for validity checks.
	jwt.StandardClaims `json:"standard_claims"`

	// ID is the stable opaque account identifier assigned at sign-up.
	ID string `json:"id"`

	// DisplayName is the name shown to other room participants.
	DisplayName string `json:"display_name"`

	// Email is the account email, used for entitlement grant lookups.
	Email string `json:"email"`

	// AvatarURL points at the user's avatar image, empty if none was uploaded.
	AvatarURL string `json:"avatar_url,omitempty"`
}
