package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bizhub/internal/app/books"
	"bizhub/internal/app/credits"
	"bizhub/internal/app/genai"
	"bizhub/internal/app/rooms"
	"bizhub/internal/app/rtstore"
	"bizhub/internal/configs"
	"bizhub/internal/pkg/auth/jwt"
	"bizhub/internal/pkg/errs"
)

const testJWTSecret = "test_secret"

// stubContent returns canned results so handler tests never reach a real
// generation backend.
type stubContent struct {
	email genai.Email
}

func (s *stubContent) GenerateEmail(ctx context.Context, prompt, tone string) (genai.Email, *errs.CustomError) {
	if prompt == "" {
		return genai.Email{}, errs.NewError(errs.ErrInvalidParams, "prompt is required")
	}
	return s.email, nil
}

func (s *stubContent) SummarizeMeeting(ctx context.Context, transcript string) (genai.MeetingSummary, *errs.CustomError) {
	return genai.MeetingSummary{Summary: "short", Notes: "none"}, nil
}

func (s *stubContent) FinancialAdvice(ctx context.Context, transactions []books.Transaction, userQuery string) (genai.Advice, *errs.CustomError) {
	return genai.Advice{Advice: fmt.Sprintf("%d transactions reviewed", len(transactions))}, nil
}

func (s *stubContent) StartupAssets(ctx context.Context, idea string) (genai.StartupAssets, *errs.CustomError) {
	return genai.StartupAssets{StartupName: "Acme"}, nil
}

func (s *stubContent) AnalyzeDocument(ctx context.Context, documentDataURI string) (genai.DocumentAnalysis, *errs.CustomError) {
	return genai.DocumentAnalysis{Summary: "fine"}, nil
}

func newTestServer(t *testing.T) (*httptest.Server, *AppDeps) {
	t.Helper()

	store, err := rtstore.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	deps := &AppDeps{
		Config: &configs.AppConfig{
			Environment: "development",
			JWTSecret:   testJWTSecret,
		},
		Store:   store,
		Ledger:  credits.NewLedger(store, nil),
		Rooms:   rooms.NewService(store),
		Hub:     rooms.NewHub(),
		Books:   books.NewService(store),
		Content: &stubContent{email: genai.Email{Subject: "Hello", Body: "World"}},
	}

	server := httptest.NewServer(Router(deps))
	t.Cleanup(server.Close)

	return server, deps
}

func signedToken(t *testing.T, uid, name, email string) string {
	t.Helper()

	token, err := jwt.GenerateToken(&jwt.Payload{
		ID:          uid,
		DisplayName: name,
		Email:       email,
	}, testJWTSecret, jwt.IdentityExpiration)
	require.NoError(t, err)

	return token
}

func doJSON(t *testing.T, method, url, token string, body any) (int, JSONEnvelope) {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(encoded)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, url, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	res, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer res.Body.Close()

	var envelope JSONEnvelope
	require.NoError(t, json.NewDecoder(res.Body).Decode(&envelope))

	return res.StatusCode, envelope
}

// JSONEnvelope mirrors the response envelope for decoding in tests.
type JSONEnvelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func TestHealthEndpoint(t *testing.T) {
	server, _ := newTestServer(t)

	res, err := http.Get(server.URL + "/health")
	require.NoError(t, err)
	defer res.Body.Close()

	assert.Equal(t, http.StatusOK, res.StatusCode)
}

func TestGetCreditsRequiresAuth(t *testing.T) {
	server, _ := newTestServer(t)

	_, envelope := doJSON(t, http.MethodGet, server.URL+"/api/credits", "", nil)
	assert.Equal(t, errs.ErrUnauthorized, envelope.Code)
}

func TestGetCreditsSeedsDailyAllowance(t *testing.T) {
	server, _ := newTestServer(t)
	token := signedToken(t, "u1", "Alice", "alice@example.com")

	_, envelope := doJSON(t, http.MethodGet, server.URL+"/api/credits", token, nil)
	require.Equal(t, 0, envelope.Code)

	var data struct {
		Credits int `json:"credits"`
	}
	require.NoError(t, json.Unmarshal(envelope.Data, &data))
	assert.Equal(t, credits.DailyFreeCredits, data.Credits)
}

func TestCreateRoomChargesCredits(t *testing.T) {
	server, _ := newTestServer(t)
	token := signedToken(t, "u1", "Alice", "alice@example.com")

	_, envelope := doJSON(t, http.MethodPost, server.URL+"/api/rooms/", token, map[string]any{
		"name":        "Standup",
		"companyName": "Acme",
		"maxMembers":  5,
	})
	require.Equal(t, 0, envelope.Code, envelope.Message)

	var data struct {
		Room        rooms.Room `json:"room"`
		CreditsUsed int        `json:"creditsUsed"`
		NewBalance  int        `json:"newBalance"`
	}
	require.NoError(t, json.Unmarshal(envelope.Data, &data))
	assert.Equal(t, "Standup", data.Room.Name)
	assert.Equal(t, "u1", data.Room.Creator)
	assert.Equal(t, 2, data.CreditsUsed)
	assert.Equal(t, credits.DailyFreeCredits-2, data.NewBalance)
}

func TestCreateRoomRejectedWhenBroke(t *testing.T) {
	server, deps := newTestServer(t)
	token := signedToken(t, "u1", "Alice", "alice@example.com")

	// Drain the daily allowance.
	for range 10 {
		_, customErr := deps.Ledger.Debit("u1", credits.FeatureAccountingAI)
		require.Nil(t, customErr)
	}

	_, envelope := doJSON(t, http.MethodPost, server.URL+"/api/rooms/", token, map[string]any{
		"name":       "Standup",
		"maxMembers": 5,
	})
	assert.Equal(t, errs.ErrInsufficientCredits, envelope.Code)
}

func TestInvoiceLifecycleOverHTTP(t *testing.T) {
	server, _ := newTestServer(t)
	token := signedToken(t, "u1", "Alice", "alice@example.com")

	draft := map[string]any{
		"invoiceNumber":   "INV-001",
		"businessName":    "Acme LLC",
		"businessAddress": "1 Main St",
		"businessContact": "acme@example.com",
		"clientName":      "Globex",
		"clientAddress":   "2 Side St",
		"clientContact":   "globex@example.com",
		"invoiceDate":     "2026-08-01",
		"dueDate":         "2026-09-01",
		"items": []map[string]any{
			{"description": "Consulting", "quantity": 2, "price": 50},
		},
		"tax":           10,
		"taxType":       "percentage",
		"currency":      "USD",
		"paymentMethod": "none",
	}

	_, envelope := doJSON(t, http.MethodPost, server.URL+"/api/invoices/", token, draft)
	require.Equal(t, 0, envelope.Code, envelope.Message)

	var created struct {
		Invoice books.Invoice `json:"invoice"`
	}
	require.NoError(t, json.Unmarshal(envelope.Data, &created))
	require.NotEmpty(t, created.Invoice.ID)
	assert.Equal(t, 110.0, created.Invoice.Total)
	assert.Equal(t, books.StatusUnpaid, created.Invoice.Status)

	_, envelope = doJSON(t, http.MethodPost,
		server.URL+"/api/invoices/"+created.Invoice.ID+"/paid", token, nil)
	require.Equal(t, 0, envelope.Code)

	_, envelope = doJSON(t, http.MethodGet, server.URL+"/api/invoices/", token, nil)
	require.Equal(t, 0, envelope.Code)

	var listed struct {
		Invoices []books.Invoice `json:"invoices"`
	}
	require.NoError(t, json.Unmarshal(envelope.Data, &listed))
	require.Len(t, listed.Invoices, 1)
	assert.Equal(t, books.StatusPaid, listed.Invoices[0].Status)
}

func TestInvoicesAreScopedToCaller(t *testing.T) {
	server, _ := newTestServer(t)
	aliceToken := signedToken(t, "u1", "Alice", "alice@example.com")
	bobToken := signedToken(t, "u2", "Bob", "bob@example.com")

	draft := map[string]any{
		"invoiceNumber":   "INV-001",
		"businessName":    "Acme LLC",
		"businessAddress": "1 Main St",
		"businessContact": "acme@example.com",
		"clientName":      "Globex",
		"clientAddress":   "2 Side St",
		"clientContact":   "globex@example.com",
		"invoiceDate":     "2026-08-01",
		"dueDate":         "2026-09-01",
		"items":           []map[string]any{{"description": "Work", "quantity": 1, "price": 10}},
		"taxType":         "amount",
		"currency":        "USD",
		"paymentMethod":   "none",
	}

	_, envelope := doJSON(t, http.MethodPost, server.URL+"/api/invoices/", aliceToken, draft)
	require.Equal(t, 0, envelope.Code, envelope.Message)

	_, envelope = doJSON(t, http.MethodGet, server.URL+"/api/invoices/", bobToken, nil)
	require.Equal(t, 0, envelope.Code)

	var listed struct {
		Invoices []books.Invoice `json:"invoices"`
	}
	require.NoError(t, json.Unmarshal(envelope.Data, &listed))
	assert.Empty(t, listed.Invoices)
}

func TestGenerateEmailChargesCredits(t *testing.T) {
	server, _ := newTestServer(t)
	token := signedToken(t, "u1", "Alice", "alice@example.com")

	_, envelope := doJSON(t, http.MethodPost, server.URL+"/api/ai/email", token, map[string]any{
		"prompt": "follow up after the demo",
		"tone":   "friendly",
	})
	require.Equal(t, 0, envelope.Code, envelope.Message)

	var data struct {
		Email       genai.Email `json:"email"`
		CreditsUsed int         `json:"creditsUsed"`
		NewBalance  int         `json:"newBalance"`
	}
	require.NoError(t, json.Unmarshal(envelope.Data, &data))
	assert.Equal(t, "Hello", data.Email.Subject)
	assert.Equal(t, 5, data.CreditsUsed)
	assert.Equal(t, credits.DailyFreeCredits-5, data.NewBalance)
}

func TestSummarizeMeetingIsFree(t *testing.T) {
	server, deps := newTestServer(t)
	token := signedToken(t, "u1", "Alice", "alice@example.com")

	_, envelope := doJSON(t, http.MethodPost, server.URL+"/api/ai/meeting-summary", token, map[string]any{
		"transcript": "we agreed to ship on Friday",
	})
	require.Equal(t, 0, envelope.Code, envelope.Message)

	balance, customErr := deps.Ledger.Balance("u1")
	require.Nil(t, customErr)
	assert.Equal(t, credits.DailyFreeCredits, balance)
}

func TestTransactionsOverHTTP(t *testing.T) {
	server, _ := newTestServer(t)
	token := signedToken(t, "u1", "Alice", "alice@example.com")

	_, envelope := doJSON(t, http.MethodPost, server.URL+"/api/transactions/", token, map[string]any{
		"type":        "expense",
		"amount":      120.5,
		"currency":    "USD",
		"category":    "software",
		"description": "annual license",
		"date":        "2026-08-15",
		"status":      "pending",
	})
	require.Equal(t, 0, envelope.Code, envelope.Message)

	var created struct {
		Transaction books.Transaction `json:"transaction"`
	}
	require.NoError(t, json.Unmarshal(envelope.Data, &created))
	require.NotEmpty(t, created.Transaction.ID)

	_, envelope = doJSON(t, http.MethodPost,
		server.URL+"/api/transactions/"+created.Transaction.ID+"/paid", token, nil)
	require.Equal(t, 0, envelope.Code)

	_, envelope = doJSON(t, http.MethodGet, server.URL+"/api/transactions/", token, nil)
	require.Equal(t, 0, envelope.Code)

	var listed struct {
		Transactions []books.Transaction `json:"transactions"`
	}
	require.NoError(t, json.Unmarshal(envelope.Data, &listed))
	require.Len(t, listed.Transactions, 1)
	assert.Equal(t, books.TransactionStatusPaid, listed.Transactions[0].Status)
}

func TestDeleteRoomRequiresHost(t *testing.T) {
	server, _ := newTestServer(t)
	hostToken := signedToken(t, "u1", "Alice", "alice@example.com")
	otherToken := signedToken(t, "u2", "Bob", "bob@example.com")

	_, envelope := doJSON(t, http.MethodPost, server.URL+"/api/rooms/", hostToken, map[string]any{
		"name":       "Standup",
		"maxMembers": 5,
	})
	require.Equal(t, 0, envelope.Code, envelope.Message)

	var created struct {
		Room rooms.Room `json:"room"`
	}
	require.NoError(t, json.Unmarshal(envelope.Data, &created))

	_, envelope = doJSON(t, http.MethodDelete, server.URL+"/api/rooms/"+created.Room.ID, otherToken, nil)
	assert.Equal(t, errs.ErrNotRoomHost, envelope.Code)

	_, envelope = doJSON(t, http.MethodDelete, server.URL+"/api/rooms/"+created.Room.ID, hostToken, nil)
	assert.Equal(t, 0, envelope.Code)
}

func TestCreateRoomBadInputIsNotCharged(t *testing.T) {
	server, deps := newTestServer(t)
	token := signedToken(t, "u1", "Alice", "alice@example.com")

	_, envelope := doJSON(t, http.MethodPost, server.URL+"/api/rooms/", token, map[string]any{
		"name":       "Standup",
		"maxMembers": 1,
	})
	require.Equal(t, errs.ErrInvalidParams, envelope.Code)

	balance, customErr := deps.Ledger.Balance("u1")
	require.Nil(t, customErr)
	assert.Equal(t, credits.DailyFreeCredits, balance)
}

func TestCreateInvoiceBadInputIsNotCharged(t *testing.T) {
	server, deps := newTestServer(t)
	token := signedToken(t, "u1", "Alice", "alice@example.com")

	_, envelope := doJSON(t, http.MethodPost, server.URL+"/api/invoices/", token, map[string]any{
		"invoiceNumber": "INV-001",
	})
	require.Equal(t, errs.ErrInvoiceInvalid, envelope.Code)

	balance, customErr := deps.Ledger.Balance("u1")
	require.Nil(t, customErr)
	assert.Equal(t, credits.DailyFreeCredits, balance)
}

func TestGenerateEmailBadToneIsNotCharged(t *testing.T) {
	server, deps := newTestServer(t)
	token := signedToken(t, "u1", "Alice", "alice@example.com")

	_, envelope := doJSON(t, http.MethodPost, server.URL+"/api/ai/email", token, map[string]any{
		"prompt": "follow up after the demo",
		"tone":   "angry",
	})
	require.Equal(t, errs.ErrInvalidParams, envelope.Code)

	balance, customErr := deps.Ledger.Balance("u1")
	require.Nil(t, customErr)
	assert.Equal(t, credits.DailyFreeCredits, balance)
}

func TestAnalyzeDocumentBadURIIsNotCharged(t *testing.T) {
	server, deps := newTestServer(t)
	token := signedToken(t, "u1", "Alice", "alice@example.com")

	_, envelope := doJSON(t, http.MethodPost, server.URL+"/api/ai/analyze-document", token, map[string]any{
		"documentDataUri": "not a data uri",
	})
	require.Equal(t, errs.ErrInvalidParams, envelope.Code)

	balance, customErr := deps.Ledger.Balance("u1")
	require.Nil(t, customErr)
	assert.Equal(t, credits.DailyFreeCredits, balance)
}
