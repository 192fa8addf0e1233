/*
Package credits implements the per-user credit ledger that meters paid features.

Every account gets a fixed daily allowance, lazily reset on the first
balance-touching operation after a calendar day boundary. Debits run inside a
store transaction, so concurrent use of a feature can neither overdraft the
balance nor double-charge a single action.
*/
package credits

import (
	"encoding/json"
	"strings"
	"time"

	"bizhub/internal/app/identity"
	"bizhub/internal/app/rtstore"
	"bizhub/internal/pkg/errs"
	"bizhub/internal/pkg/logx"

	"github.com/rs/zerolog"
)

// DailyFreeCredits is the allowance every account is reset to each calendar day.
const DailyFreeCredits = 50

// Feature identifies a metered feature in the cost table.
type Feature string

const (
	FeatureCoWorkingRoom        Feature = "co-working-room"
	FeatureDocumentIntelligence Feature = "document-intelligence"
	FeatureStartupGenerator     Feature = "startup-generator"
	FeatureInvoiceGenerator     Feature = "invoice-generator"
	FeatureEmailGenerator       Feature = "email-generator"
	FeatureAccountingAI         Feature = "accounting-ai"
)

// featureCosts is the static cost table. Unknown feature ids are rejected
// rather than defaulting to free, so a typo cannot silently bypass metering.
var featureCosts = map[Feature]int{
	FeatureCoWorkingRoom:        2,
	FeatureDocumentIntelligence: 5,
	FeatureStartupGenerator:     5,
	FeatureInvoiceGenerator:     2,
	FeatureEmailGenerator:       5,
	FeatureAccountingAI:         5,
}

// Cost looks up the fixed credit cost of a feature.
func Cost(feature Feature) (int, *errs.CustomError) {
	cost, ok := featureCosts[feature]
	if !ok {
		return 0, errs.NewError(errs.ErrUnknownFeature)
	}
	return cost, nil
}

// Profile is the per-user ledger record stored at users/{uid}.
type Profile struct {
	UID              string `json:"uid"`
	DisplayName      string `json:"displayName,omitempty"`
	Email            string `json:"email,omitempty"`
	AvatarURL        string `json:"avatarUrl,omitempty"`
	Credits          int    `json:"credits"`
	CreditsLastReset string `json:"creditsLastReset"`
}

// DebitResult reports the outcome of a debit attempt.
type DebitResult struct {
	// Approved is true when the balance covered the cost and was deducted.
	Approved bool `json:"approved"`

	// NewBalance is the balance after the operation (unchanged when rejected).
	NewBalance int `json:"newBalance"`

	// Cost is the fixed cost of the requested feature.
	Cost int `json:"cost"`
}

// Ledger gates metered features behind the per-user daily credit budget.
type Ledger struct {
	store *rtstore.Store

	// grants maps lowercased account emails to an elevated daily allowance
	// that replaces DailyFreeCredits at reset time.
	grants map[string]int

	now    func() time.Time
	logger zerolog.Logger
}

// NewLedger constructs a Ledger over the given store with entitlement grants.
func NewLedger(store *rtstore.Store, grants map[string]int) *Ledger {
	return &Ledger{
		store:  store,
		grants: grants,
		now:    time.Now,
		logger: logx.Logger().With().Str("component", "Ledger").Logger(),
	}
}

func profilePath(uid string) string {
	return "users/" + uid
}

// ResetIfStale applies the lazy daily reset rule: if the profile's last-reset
// date differs from today's calendar date, the balance returns to allowance
// and the reset date moves to now. Pure; the second return reports whether
// anything changed.
func ResetIfStale(p Profile, today time.Time, allowance int) (Profile, bool) {
	lastReset, err := time.Parse(time.RFC3339, p.CreditsLastReset)
	if err != nil {
		// Older records may predate the reset field; treat them as stale.
		p.Credits = allowance
		p.CreditsLastReset = today.Format(time.RFC3339)
		return p, true
	}

	ly, lm, ld := lastReset.In(today.Location()).Date()
	ty, tm, td := today.Date()
	if ly == ty && lm == tm && ld == td {
		return p, false
	}

	p.Credits = allowance
	p.CreditsLastReset = today.Format(time.RFC3339)
	return p, true
}

// allowance returns the daily allowance for an account email: the configured
// grant when one exists, the standard free allowance otherwise.
func (l *Ledger) allowance(email string) int {
	if email != "" {
		if grant, ok := l.grants[strings.ToLower(email)]; ok {
			return grant
		}
	}
	return DailyFreeCredits
}

// EnsureProfile creates the ledger record for a fresh account with the full
// daily allowance. Existing profiles keep their balance; display fields are
// refreshed from the identity.
func (l *Ledger) EnsureProfile(id identity.Identity) *errs.CustomError {
	err := l.store.Transact(profilePath(id.ID), func(current json.RawMessage) (any, error) {
		profile := l.decodeOrSeed(current, id.ID)
		if current == nil {
			profile.Credits = l.allowance(id.Email)
		}

		profile.DisplayName = id.DisplayName
		profile.Email = id.Email
		profile.AvatarURL = id.AvatarURL

		return profile, nil
	})
	if err != nil {
		logx.Error(err, "Failed to ensure credit profile", "user_id", id.ID)
		return errs.NewError(errs.ErrStoreUnavailable)
	}

	return nil
}

// Balance returns the user's current credit balance, applying the lazy reset
// rule first. A missing record is created with the full daily allowance, so
// this "read" may mutate stored state.
func (l *Ledger) Balance(uid string) (int, *errs.CustomError) {
	var balance int

	err := l.store.Transact(profilePath(uid), func(current json.RawMessage) (any, error) {
		profile := l.decodeOrSeed(current, uid)
		profile, _ = ResetIfStale(profile, l.now(), l.allowance(profile.Email))

		balance = profile.Credits
		return profile, nil
	})
	if err != nil {
		logx.Error(err, "Failed to read credit balance", "user_id", uid)
		return 0, errs.NewError(errs.ErrStoreUnavailable)
	}

	return balance, nil
}

// Debit atomically charges the fixed cost of feature against the user's
// balance. The reset, grant, balance check and deduction all happen in one
// store transaction: two concurrent debits can never both spend the same
// credits. A rejected debit leaves the balance untouched (apart from the
// lazy reset, which is persisted either way).
func (l *Ledger) Debit(uid string, feature Feature) (DebitResult, *errs.CustomError) {
	cost, customErr := Cost(feature)
	if customErr != nil {
		return DebitResult{}, customErr
	}

	var result DebitResult

	err := l.store.Transact(profilePath(uid), func(current json.RawMessage) (any, error) {
		profile := l.decodeOrSeed(current, uid)
		profile, _ = ResetIfStale(profile, l.now(), l.allowance(profile.Email))

		if profile.Credits < cost {
			result = DebitResult{Approved: false, NewBalance: profile.Credits, Cost: cost}
			return profile, nil
		}

		profile.Credits -= cost
		result = DebitResult{Approved: true, NewBalance: profile.Credits, Cost: cost}
		return profile, nil
	})
	if err != nil {
		logx.Error(err, "Failed to debit credits", "user_id", uid, "feature", string(feature))
		return DebitResult{}, errs.NewError(errs.ErrStoreUnavailable)
	}

	if result.Approved {
		l.logger.Info().
			Str("user_id", uid).
			Str("feature", string(feature)).
			Int("cost", cost).
			Int("new_balance", result.NewBalance).
			Msg("Credits debited.")
	} else {
		l.logger.Info().
			Str("user_id", uid).
			Str("feature", string(feature)).
			Int("cost", cost).
			Int("balance", result.NewBalance).
			Msg("Debit rejected: insufficient credits.")
	}

	return result, nil
}

// decodeOrSeed parses the stored profile, seeding a fresh record with the full
// daily allowance when none exists yet.
func (l *Ledger) decodeOrSeed(current json.RawMessage, uid string) Profile {
	if current == nil {
		return Profile{
			UID:              uid,
			Credits:          DailyFreeCredits,
			CreditsLastReset: l.now().Format(time.RFC3339),
		}
	}

	var profile Profile
	if err := json.Unmarshal(current, &profile); err != nil {
		logx.Warn("Corrupt credit profile, reseeding", "user_id", uid, "error", err)
		return Profile{
			UID:              uid,
			Credits:          DailyFreeCredits,
			CreditsLastReset: l.now().Format(time.RFC3339),
		}
	}

	if profile.UID == "" {
		profile.UID = uid
	}
	return profile
}
