package credits

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"bizhub/internal/app/identity"
	"bizhub/internal/app/rtstore"
	"bizhub/internal/pkg/errs"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLedger(t *testing.T, grants map[string]int) (*Ledger, *rtstore.Store) {
	t.Helper()

	store, err := rtstore.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = store.Close()
	})

	return NewLedger(store, grants), store
}

func TestCostTable(t *testing.T) {
	cases := []struct {
		feature Feature
		cost    int
	}{
		{feature: FeatureCoWorkingRoom, cost: 2},
		{feature: FeatureDocumentIntelligence, cost: 5},
		{feature: FeatureStartupGenerator, cost: 5},
		{feature: FeatureInvoiceGenerator, cost: 2},
		{feature: FeatureEmailGenerator, cost: 5},
		{feature: FeatureAccountingAI, cost: 5},
	}

	for _, tc := range cases {
		t.Run(string(tc.feature), func(t *testing.T) {
			cost, err := Cost(tc.feature)
			require.Nil(t, err)
			assert.Equal(t, tc.cost, cost)
		})
	}
}

func TestCostRejectsUnknownFeature(t *testing.T) {
	_, err := Cost(Feature("time-travel"))
	require.NotNil(t, err)
	assert.Equal(t, errs.ErrUnknownFeature, err.Code)
}

func TestBalanceSeedsNewProfile(t *testing.T) {
	ledger, _ := newTestLedger(t, nil)

	balance, err := ledger.Balance("u1")
	require.Nil(t, err)
	assert.Equal(t, DailyFreeCredits, balance)
}

func TestDebitSequentialAccounting(t *testing.T) {
	ledger, _ := newTestLedger(t, nil)

	result, err := ledger.Debit("u1", FeatureEmailGenerator)
	require.Nil(t, err)
	require.True(t, result.Approved)
	assert.Equal(t, 45, result.NewBalance)

	result, err = ledger.Debit("u1", FeatureCoWorkingRoom)
	require.Nil(t, err)
	require.True(t, result.Approved)
	assert.Equal(t, 43, result.NewBalance)

	balance, err := ledger.Balance("u1")
	require.Nil(t, err)
	assert.Equal(t, 43, balance)
}

func TestDebitNeverOverdrafts(t *testing.T) {
	ledger, _ := newTestLedger(t, nil)

	// Drain the daily allowance: ten 5-credit generations.
	for i := 0; i < 10; i++ {
		result, err := ledger.Debit("u1", FeatureAccountingAI)
		require.Nil(t, err)
		require.True(t, result.Approved)
	}

	result, err := ledger.Debit("u1", FeatureCoWorkingRoom)
	require.Nil(t, err)
	assert.False(t, result.Approved)
	assert.Equal(t, 0, result.NewBalance)

	balance, err := ledger.Balance("u1")
	require.Nil(t, err)
	assert.Equal(t, 0, balance)
}

func TestDebitRejectedWhenOneShort(t *testing.T) {
	ledger, _ := newTestLedger(t, nil)

	// Spend down to 1 credit: 9 generations at 5, then two rooms at 2 each.
	for i := 0; i < 9; i++ {
		result, err := ledger.Debit("u1", FeatureAccountingAI)
		require.Nil(t, err)
		require.True(t, result.Approved)
	}
	for i := 0; i < 2; i++ {
		result, err := ledger.Debit("u1", FeatureCoWorkingRoom)
		require.Nil(t, err)
		require.True(t, result.Approved)
	}

	result, err := ledger.Debit("u1", FeatureInvoiceGenerator)
	require.Nil(t, err)
	assert.False(t, result.Approved)
	assert.Equal(t, 1, result.NewBalance)
}

func TestDebitUnknownFeature(t *testing.T) {
	ledger, _ := newTestLedger(t, nil)

	_, err := ledger.Debit("u1", Feature("mystery"))
	require.NotNil(t, err)
	assert.Equal(t, errs.ErrUnknownFeature, err.Code)

	// The rejected debit must not have touched the balance.
	balance, balErr := ledger.Balance("u1")
	require.Nil(t, balErr)
	assert.Equal(t, DailyFreeCredits, balance)
}

func TestDailyResetRestoresAllowance(t *testing.T) {
	ledger, _ := newTestLedger(t, nil)

	day1 := time.Date(2025, 6, 1, 23, 50, 0, 0, time.UTC)
	ledger.now = func() time.Time { return day1 }

	result, err := ledger.Debit("u1", FeatureAccountingAI)
	require.Nil(t, err)
	require.True(t, result.Approved)
	require.Equal(t, 45, result.NewBalance)

	// Ten minutes later it is a new calendar day.
	day2 := day1.Add(10 * time.Minute)
	ledger.now = func() time.Time { return day2 }

	balance, err := ledger.Balance("u1")
	require.Nil(t, err)
	assert.Equal(t, DailyFreeCredits, balance)
}

func TestNoResetWithinSameDay(t *testing.T) {
	ledger, _ := newTestLedger(t, nil)

	morning := time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)
	ledger.now = func() time.Time { return morning }

	_, err := ledger.Debit("u1", FeatureAccountingAI)
	require.Nil(t, err)

	evening := morning.Add(14 * time.Hour)
	ledger.now = func() time.Time { return evening }

	balance, err := ledger.Balance("u1")
	require.Nil(t, err)
	assert.Equal(t, 45, balance)
}

func TestResetIfStale(t *testing.T) {
	today := time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)

	cases := []struct {
		name      string
		lastReset string
		credits   int
		wantReset bool
		wantCred  int
	}{
		{
			name:      "same day keeps balance",
			lastReset: "2025-06-02T00:30:00Z",
			credits:   12,
			wantReset: false,
			wantCred:  12,
		},
		{
			name:      "previous day resets",
			lastReset: "2025-06-01T23:59:00Z",
			credits:   3,
			wantReset: true,
			wantCred:  DailyFreeCredits,
		},
		{
			name:      "missing reset date resets",
			lastReset: "",
			credits:   7,
			wantReset: true,
			wantCred:  DailyFreeCredits,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			profile := Profile{UID: "u1", Credits: tc.credits, CreditsLastReset: tc.lastReset}
			got, changed := ResetIfStale(profile, today, DailyFreeCredits)
			assert.Equal(t, tc.wantReset, changed)
			assert.Equal(t, tc.wantCred, got.Credits)
		})
	}
}

func TestGrantElevatesDailyAllowance(t *testing.T) {
	ledger, _ := newTestLedger(t, map[string]int{"founder@example.com": 100})

	day1 := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	ledger.now = func() time.Time { return day1 }

	err := ledger.EnsureProfile(identity.Identity{
		ID:          "u1",
		DisplayName: "Founder",
		Email:       "Founder@Example.com",
	})
	require.Nil(t, err)

	balance, balErr := ledger.Balance("u1")
	require.Nil(t, balErr)
	assert.Equal(t, 100, balance)

	// Spending draws the balance down normally; the grant is not a floor.
	result, debitErr := ledger.Debit("u1", FeatureAccountingAI)
	require.Nil(t, debitErr)
	require.True(t, result.Approved)
	assert.Equal(t, 95, result.NewBalance)

	result, debitErr = ledger.Debit("u1", FeatureAccountingAI)
	require.Nil(t, debitErr)
	require.True(t, result.Approved)
	assert.Equal(t, 90, result.NewBalance)

	// The next calendar day resets to the elevated allowance.
	ledger.now = func() time.Time { return day1.Add(24 * time.Hour) }

	balance, balErr = ledger.Balance("u1")
	require.Nil(t, balErr)
	assert.Equal(t, 100, balance)
}

func TestEnsureProfileKeepsExistingBalance(t *testing.T) {
	ledger, _ := newTestLedger(t, nil)

	require.Nil(t, ledger.EnsureProfile(identity.Identity{ID: "u1", DisplayName: "Ann"}))

	result, err := ledger.Debit("u1", FeatureAccountingAI)
	require.Nil(t, err)
	require.True(t, result.Approved)

	// A repeat sign-in must not top the balance back up.
	require.Nil(t, ledger.EnsureProfile(identity.Identity{ID: "u1", DisplayName: "Ann B."}))

	balance, balErr := ledger.Balance("u1")
	require.Nil(t, balErr)
	assert.Equal(t, 45, balance)
}

func TestConcurrentDebitsNeverOverspend(t *testing.T) {
	ledger, _ := newTestLedger(t, nil)

	// 25 racing debits of 5 against an allowance of 50: exactly 10 may win.
	const workers = 25

	var wg sync.WaitGroup
	var approved atomic.Int32

	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()

			result, err := ledger.Debit("u1", FeatureAccountingAI)
			if err == nil && result.Approved {
				approved.Add(1)
			}
		}()
	}
	wg.Wait()

	balance, balErr := ledger.Balance("u1")
	require.Nil(t, balErr)

	assert.EqualValues(t, 10, approved.Load())
	assert.Equal(t, DailyFreeCredits-5*int(approved.Load()), balance)
	assert.GreaterOrEqual(t, balance, 0)
}
