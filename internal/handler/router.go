/*
Package handler provides the HTTP handlers and routing setup for the BizHub server.

This file defines the main Router, applying necessary middleware like logging, CORS,
and IP-based rate limiting before delegating requests to specific handlers (API and WebSocket).
*/
package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/rs/cors"
	"golang.org/x/time/rate"

	"bizhub/internal/pkg/auth/jwt"
	"bizhub/internal/pkg/limiter"
	"bizhub/internal/pkg/logx"
	"bizhub/internal/pkg/resp"
)

const (
	CreateRate  = 0.05
	CreateBurst = 2
	JoinRate    = 0.2
	JoinBurst   = 5
)

// Router sets up the main HTTP routing table (chi.Router) for the application.
// It initializes IP-based rate limiters, configures CORS, and applies global and per-route middleware.
func Router(deps *AppDeps) http.Handler {
	createLimiter := limiter.NewIPRateLimiter(rate.Limit(CreateRate), CreateBurst)
	joinLimiter := limiter.NewIPRateLimiter(rate.Limit(JoinRate), JoinBurst)

	r := chi.NewRouter()

	allowedOrigins := make(map[string]struct{})
	for _, origin := range deps.Config.AllowedOrigins {
		allowedOrigins[origin] = struct{}{}
	}

	var wsUpgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			if deps.Config.Environment == "development" {
				return true
			}

			origin := r.Header.Get("Origin")
			if _, ok := allowedOrigins[origin]; ok {
				return true
			}

			logx.Warn("WebSocket connection rejected: Origin not allowed.", "origin", origin)
			return false
		},
	}

	corsAllowedOrigins := []string{}
	if deps.Config.Environment == "development" {
		corsAllowedOrigins = []string{"*"}
	} else if len(deps.Config.AllowedOrigins) > 0 {
		corsAllowedOrigins = deps.Config.AllowedOrigins
	}

	c := cors.New(cors.Options{
		AllowedOrigins:   corsAllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{},
		AllowCredentials: true,
		MaxAge:           300,
	})
	r.Use(c.Handler)

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(logx.RequestLogger())
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		logx.Info("Health check endpoint hit")

		data := map[string]string{
			"status":  "ok",
			"service": "BizHub Server",
		}
		resp.RespondSuccess(w, r, data)
	})

	r.Route("/api", func(api chi.Router) {
		api.Use(jwt.IdentityExtractorMiddleware(deps.Config.JWTSecret))

		api.Route("/auth", func(auth chi.Router) {
			auth.Post("/signup", HandleSignUp(deps))
			auth.Post("/signin", HandleSignIn(deps))
		})

		api.Route("/user", func(user chi.Router) {
			user.Get("/profile", HandleGetProfile(deps))
			user.Post("/avatar/presign", HandlePresignAvatarUpload(deps))
		})

		api.Get("/credits", HandleGetCredits(deps))

		api.Route("/rooms", func(rooms chi.Router) {
			rateLimitedCreate := createLimiter.Middleware(HandleCreateRoom(deps))
			rooms.Post("/", http.HandlerFunc(rateLimitedCreate.ServeHTTP))
			rooms.Get("/{roomID}", HandleGetRoom(deps))
			rooms.Delete("/{roomID}", HandleDeleteRoom(deps))
		})

		api.Route("/invoices", func(inv chi.Router) {
			inv.Post("/", HandleCreateInvoice(deps))
			inv.Get("/", HandleListInvoices(deps))
			inv.Get("/{invoiceID}", HandleGetInvoice(deps))
			inv.Put("/{invoiceID}", HandleUpdateInvoice(deps))
			inv.Post("/{invoiceID}/paid", HandleMarkInvoicePaid(deps))
			inv.Delete("/{invoiceID}", HandleDeleteInvoice(deps))
		})

		api.Route("/transactions", func(txn chi.Router) {
			txn.Post("/", HandleCreateTransaction(deps))
			txn.Get("/", HandleListTransactions(deps))
			txn.Post("/{transactionID}/paid", HandleMarkTransactionPaid(deps))
			txn.Delete("/{transactionID}", HandleDeleteTransaction(deps))
		})

		api.Route("/ai", func(ai chi.Router) {
			ai.Post("/email", HandleGenerateEmail(deps))
			ai.Post("/meeting-summary", HandleSummarizeMeeting(deps))
			ai.Post("/financial-advice", HandleFinancialAdvice(deps))
			ai.Post("/startup-assets", HandleStartupAssets(deps))
			ai.Post("/analyze-document", HandleAnalyzeDocument(deps))
		})

		api.Route("/file", func(file chi.Router) {
			file.Post("/document/presign", HandlePresignDocumentUpload(deps))
			file.Post("/presign-download", HandlePresignDownload(deps))
		})
	})

	r.Get("/ws/{roomID}", HandleWebSocket(wsUpgrader, joinLimiter, deps))

	return r
}
