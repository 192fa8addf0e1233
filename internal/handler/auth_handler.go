/*
Package handler provides HTTP handler functions for account sign-up, sign-in
and profile access.
*/
package handler

import (
	"net/http"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"bizhub/internal/app/db"
	"bizhub/internal/app/identity"
	"bizhub/internal/pkg/auth/jwt"
	"bizhub/internal/pkg/errs"
	"bizhub/internal/pkg/logx"
	"bizhub/internal/pkg/randx"
	"bizhub/internal/pkg/req"
	"bizhub/internal/pkg/resp"

	"golang.org/x/crypto/bcrypt"
)

var emailRegex = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// identityFromPayload converts the JWT claims into the internal identity type.
func identityFromPayload(payload *jwt.Payload) identity.Identity {
	return identity.Identity{
		ID:          payload.ID,
		DisplayName: payload.DisplayName,
		Email:       payload.Email,
		AvatarURL:   payload.AvatarURL,
	}
}

func accountResponse(account db.Account, token string) map[string]any {
	var lastLogin any
	if account.LastLoginAt != nil {
		lastLogin = account.LastLoginAt.Format(time.RFC3339)
	}

	return map[string]any{
		"token": token,
		"user": map[string]any{
			"id":          account.ID,
			"email":       account.Email,
			"displayName": account.DisplayName,
			"avatarUrl":   account.AvatarURL,
			"lastLoginAt": lastLogin,
		},
	}
}

func issueToken(deps *AppDeps, account db.Account) (string, error) {
	payload := &jwt.Payload{
		ID:          account.ID,
		DisplayName: account.DisplayName,
		Email:       account.Email,
		AvatarURL:   account.AvatarURL,
	}
	return jwt.GenerateToken(payload, deps.Config.JWTSecret, jwt.IdentityExpiration)
}

type SignUpInput struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"displayName"`
}

// HandleSignUp processes the request to create a new account. A fresh credit
// profile with the daily allowance is seeded in the same request.
func HandleSignUp(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if payload := jwt.GetPayloadFromContext(r); payload != nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrAlreadySignedIn))
			return
		}

		var input SignUpInput
		if customErr := req.BindJSON(r, &input); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		email := strings.ToLower(strings.TrimSpace(input.Email))
		if !emailRegex.MatchString(email) {
			resp.RespondError(w, r, errs.NewError(errs.ErrInvalidEmail))
			return
		}

		passwordLen := utf8.RuneCountInString(input.Password)
		if passwordLen < 6 || passwordLen > 50 {
			resp.RespondError(w, r, errs.NewError(errs.ErrInvalidPassword))
			return
		}

		displayName := strings.TrimSpace(input.DisplayName)
		if displayName == "" || utf8.RuneCountInString(displayName) > 50 {
			resp.RespondError(w, r, errs.NewError(errs.ErrInvalidDisplayName))
			return
		}

		hashedPassword, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
		if err != nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrUnknown))
			return
		}

		account := db.Account{
			ID:           randx.RecordID(),
			Email:        email,
			DisplayName:  displayName,
			PasswordHash: string(hashedPassword),
		}

		if err := deps.Accounts.CreateAccount(r.Context(), account); err != nil {
			if db.IsUniqueViolation(err) {
				logx.Warn("Sign-up conflict: email already registered", "email", email)
				resp.RespondError(w, r, errs.NewError(errs.ErrUserAlreadyExists))
				return
			}

			logx.Error(err, "Failed to create account")
			resp.RespondError(w, r, errs.NewError(errs.ErrUnknown))
			return
		}

		if customErr := deps.Ledger.EnsureProfile(identity.Identity{
			ID:          account.ID,
			DisplayName: account.DisplayName,
			Email:       account.Email,
		}); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		if err := deps.Accounts.UpdateLastLogin(r.Context(), account.ID); err != nil {
			logx.Error(err, "Sign-up: failed to update last_login_at", "user_id", account.ID)
		}

		token, err := issueToken(deps, account)
		if err != nil {
			logx.Error(err, "Failed to generate token after sign-up")
			resp.RespondError(w, r, errs.NewError(errs.ErrUnknown))
			return
		}

		resp.RespondSuccess(w, r, accountResponse(account, token))
	}
}

type SignInInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// HandleSignIn verifies credentials and issues a JWT token. The credit profile
// is refreshed with the account's current display fields.
func HandleSignIn(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if payload := jwt.GetPayloadFromContext(r); payload != nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrAlreadySignedIn))
			return
		}

		var input SignInInput
		if customErr := req.BindJSON(r, &input); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		email := strings.ToLower(strings.TrimSpace(input.Email))

		account, err := deps.Accounts.GetAccountByEmail(r.Context(), email)
		if err != nil {
			logx.Warn("Sign-in: account fetch failed", "email", email, "error", err)
			resp.RespondError(w, r, errs.NewError(errs.ErrInvalidCredentials))
			return
		}

		if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(input.Password)); err != nil {
			logx.Warn("Sign-in: password mismatch", "email", email)
			resp.RespondError(w, r, errs.NewError(errs.ErrInvalidCredentials))
			return
		}

		if customErr := deps.Ledger.EnsureProfile(identity.Identity{
			ID:          account.ID,
			DisplayName: account.DisplayName,
			Email:       account.Email,
			AvatarURL:   account.AvatarURL,
		}); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		if err := deps.Accounts.UpdateLastLogin(r.Context(), account.ID); err != nil {
			logx.Error(err, "Sign-in: failed to update last_login_at", "user_id", account.ID)
		}

		token, err := issueToken(deps, account)
		if err != nil {
			logx.Error(err, "Sign-in: jwt generation failed")
			resp.RespondError(w, r, errs.NewError(errs.ErrUnknown))
			return
		}

		resp.RespondSuccess(w, r, accountResponse(account, token))
	}
}

// HandleGetProfile retrieves the current authenticated user's account and
// credit balance.
func HandleGetProfile(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		payload := jwt.GetPayloadFromContext(r)
		if payload == nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrUnauthorized))
			return
		}

		account, err := deps.Accounts.GetAccountByID(r.Context(), payload.ID)
		if err != nil {
			logx.Warn("Get profile: account not found", "user_id", payload.ID)
			resp.RespondError(w, r, errs.NewError(errs.ErrUserNotFound))
			return
		}

		balance, customErr := deps.Ledger.Balance(account.ID)
		if customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		var lastLogin any
		if account.LastLoginAt != nil {
			lastLogin = account.LastLoginAt.Format(time.RFC3339)
		}

		resp.RespondSuccess(w, r, map[string]any{
			"user": map[string]any{
				"id":          account.ID,
				"email":       account.Email,
				"displayName": account.DisplayName,
				"avatarUrl":   account.AvatarURL,
				"credits":     balance,
				"lastLoginAt": lastLogin,
			},
		})
	}
}
