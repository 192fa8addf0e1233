/*
Package handler provides HTTP handler functions for the AI content features.

Each metered feature charges the caller's credit ledger before invoking the
generation backend; the meeting summarizer is free.
*/
package handler

import (
	"net/http"

	"bizhub/internal/app/credits"
	"bizhub/internal/app/genai"
	"bizhub/internal/pkg/auth/jwt"
	"bizhub/internal/pkg/errs"
	"bizhub/internal/pkg/req"
	"bizhub/internal/pkg/resp"
)

type GenerateEmailInput struct {
	Prompt string `json:"prompt"`
	Tone   string `json:"tone"`
}

type SummarizeMeetingInput struct {
	Transcript string `json:"transcript"`
}

type FinancialAdviceInput struct {
	Query string `json:"query"`
}

type StartupAssetsInput struct {
	Idea string `json:"idea"`
}

type AnalyzeDocumentInput struct {
	DocumentDataURI string `json:"documentDataUri"`
}

// HandleGenerateEmail drafts an email from a goal and tone.
func HandleGenerateEmail(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		payload := jwt.GetPayloadFromContext(r)
		if payload == nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrUnauthorized))
			return
		}

		var input GenerateEmailInput
		if customErr := req.BindJSON(r, &input); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		// Validate before debiting so a rejected request never costs credits.
		if customErr := genai.ValidateEmailInput(input.Prompt, input.Tone); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		result, customErr := deps.Ledger.Debit(payload.ID, credits.FeatureEmailGenerator)
		if customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}
		if !result.Approved {
			resp.RespondError(w, r, errs.NewError(errs.ErrInsufficientCredits, result.Cost))
			return
		}

		email, customErr := deps.Content.GenerateEmail(r.Context(), input.Prompt, input.Tone)
		if customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		resp.RespondSuccess(w, r, map[string]any{
			"email":       email,
			"creditsUsed": result.Cost,
			"newBalance":  result.NewBalance,
		})
	}
}

// HandleSummarizeMeeting turns a transcript into a summary and action notes.
// This feature is unmetered.
func HandleSummarizeMeeting(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		payload := jwt.GetPayloadFromContext(r)
		if payload == nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrUnauthorized))
			return
		}

		var input SummarizeMeetingInput
		if customErr := req.BindJSON(r, &input); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		summary, customErr := deps.Content.SummarizeMeeting(r.Context(), input.Transcript)
		if customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		resp.RespondSuccess(w, r, map[string]any{"result": summary})
	}
}

// HandleFinancialAdvice analyzes the caller's recorded transactions and
// answers their optional question.
func HandleFinancialAdvice(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		payload := jwt.GetPayloadFromContext(r)
		if payload == nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrUnauthorized))
			return
		}

		var input FinancialAdviceInput
		if customErr := req.BindJSON(r, &input); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		if customErr := genai.ValidateAdviceQuery(input.Query); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		transactions, customErr := deps.Books.ListTransactions(payload.ID)
		if customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		result, customErr := deps.Ledger.Debit(payload.ID, credits.FeatureAccountingAI)
		if customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}
		if !result.Approved {
			resp.RespondError(w, r, errs.NewError(errs.ErrInsufficientCredits, result.Cost))
			return
		}

		advice, customErr := deps.Content.FinancialAdvice(r.Context(), transactions, input.Query)
		if customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		resp.RespondSuccess(w, r, map[string]any{
			"advice":      advice.Advice,
			"creditsUsed": result.Cost,
			"newBalance":  result.NewBalance,
		})
	}
}

// HandleStartupAssets generates a startup package from a one-line idea.
func HandleStartupAssets(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		payload := jwt.GetPayloadFromContext(r)
		if payload == nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrUnauthorized))
			return
		}

		var input StartupAssetsInput
		if customErr := req.BindJSON(r, &input); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		if customErr := genai.ValidateStartupIdea(input.Idea); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		result, customErr := deps.Ledger.Debit(payload.ID, credits.FeatureStartupGenerator)
		if customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}
		if !result.Approved {
			resp.RespondError(w, r, errs.NewError(errs.ErrInsufficientCredits, result.Cost))
			return
		}

		assets, customErr := deps.Content.StartupAssets(r.Context(), input.Idea)
		if customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		resp.RespondSuccess(w, r, map[string]any{
			"assets":      assets,
			"creditsUsed": result.Cost,
			"newBalance":  result.NewBalance,
		})
	}
}

// HandleAnalyzeDocument summarizes an uploaded document and assesses its
// risks. The document arrives inline as a data URI, so this endpoint accepts
// a larger body than the default bind limit.
func HandleAnalyzeDocument(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		payload := jwt.GetPayloadFromContext(r)
		if payload == nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrUnauthorized))
			return
		}

		var input AnalyzeDocumentInput
		if customErr := req.BindDocumentJSON(r, &input); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		if customErr := genai.ValidateDocumentURI(input.DocumentDataURI); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		result, customErr := deps.Ledger.Debit(payload.ID, credits.FeatureDocumentIntelligence)
		if customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}
		if !result.Approved {
			resp.RespondError(w, r, errs.NewError(errs.ErrInsufficientCredits, result.Cost))
			return
		}

		analysis, customErr := deps.Content.AnalyzeDocument(r.Context(), input.DocumentDataURI)
		if customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		resp.RespondSuccess(w, r, map[string]any{
			"analysis":    analysis,
			"creditsUsed": result.Cost,
			"newBalance":  result.NewBalance,
		})
	}
}
