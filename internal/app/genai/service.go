/*
Package genai contains the AI content features.

This file defines the Service facade: one method per content feature, each
building its prompt, calling the generation backend, and post-processing the
structured result.
*/
package genai

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/url"
	"strings"

	"bizhub/internal/app/books"
	"bizhub/internal/pkg/errs"
	"bizhub/internal/pkg/logx"

	"github.com/rs/zerolog"
)

// Email tones accepted by GenerateEmail.
const (
	ToneFormal    = "formal"
	ToneFriendly  = "friendly"
	ToneMarketing = "marketing"
)

// maxPromptBytes bounds free-text inputs to the generation features.
const maxPromptBytes = 20000

// Email is a generated email draft.
type Email struct {
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// MeetingSummary is the result of summarizing a meeting transcript.
type MeetingSummary struct {
	Summary string `json:"summary"`
	Notes   string `json:"notes"`
}

// Advice is the financial analyst's response.
type Advice struct {
	Advice string `json:"advice"`
}

// StartupAssets is the generated startup package.
type StartupAssets struct {
	StartupName  string `json:"startupName"`
	BusinessPlan string `json:"businessPlan"`
	LogoImageURL string `json:"logoImageUrl"`
	PitchDeckURL string `json:"pitchDeckUrl"`
	Workflow     string `json:"workflow"`
}

// DocumentAnalysis is the result of analyzing an uploaded document.
type DocumentAnalysis struct {
	Summary        string `json:"summary"`
	RiskAssessment string `json:"riskAssessment"`
}

// ContentService is the interface the handlers program against.
type ContentService interface {
	GenerateEmail(ctx context.Context, prompt, tone string) (Email, *errs.CustomError)
	SummarizeMeeting(ctx context.Context, transcript string) (MeetingSummary, *errs.CustomError)
	FinancialAdvice(ctx context.Context, transactions []books.Transaction, userQuery string) (Advice, *errs.CustomError)
	StartupAssets(ctx context.Context, idea string) (StartupAssets, *errs.CustomError)
	AnalyzeDocument(ctx context.Context, documentDataURI string) (DocumentAnalysis, *errs.CustomError)
}

// Service implements ContentService against the Gemini backend.
type Service struct {
	client *Client
	logger zerolog.Logger
}

// NewService constructs a content Service over the given client.
func NewService(client *Client) *Service {
	return &Service{
		client: client,
		logger: logx.Logger().With().Str("component", "ContentService").Logger(),
	}
}

// ValidateEmailInput checks the email drafting parameters. It touches nothing
// remote, so callers can run it before charging the feature cost.
func ValidateEmailInput(prompt, tone string) *errs.CustomError {
	if prompt == "" || len(prompt) > maxPromptBytes {
		return errs.NewError(errs.ErrInvalidParams, "prompt is required")
	}
	if tone != ToneFormal && tone != ToneFriendly && tone != ToneMarketing {
		return errs.NewError(errs.ErrInvalidParams, "tone must be formal, friendly or marketing")
	}

	return nil
}

// ValidateStartupIdea checks the startup generator input.
func ValidateStartupIdea(idea string) *errs.CustomError {
	if idea == "" || len(idea) > maxPromptBytes {
		return errs.NewError(errs.ErrInvalidParams, "startup idea is required")
	}

	return nil
}

// ValidateAdviceQuery checks the optional financial-advice question.
func ValidateAdviceQuery(userQuery string) *errs.CustomError {
	if len(userQuery) > maxPromptBytes {
		return errs.NewError(errs.ErrInvalidParams, "query too long")
	}

	return nil
}

// ValidateDocumentURI checks that the document payload is a well-formed base64
// data URI.
func ValidateDocumentURI(documentDataURI string) *errs.CustomError {
	if _, _, err := parseDataURI(documentDataURI); err != nil {
		return errs.NewError(errs.ErrInvalidParams, "document must be a base64 data URI")
	}

	return nil
}

// GenerateEmail drafts an email for the given goal and tone.
func (s *Service) GenerateEmail(ctx context.Context, prompt, tone string) (Email, *errs.CustomError) {
	if customErr := ValidateEmailInput(prompt, tone); customErr != nil {
		return Email{}, customErr
	}

	text := fmt.Sprintf(`You are an expert email copywriter. A user needs to write an email.
Their goal is: %s
The desired tone is: %s

Please generate a professional and effective email, including a subject line and a full body.
The body should be ready to send, but use placeholders like [Your Name] or [Company Name] where appropriate.
Respond with a JSON object with the string fields "subject" and "body".`, prompt, tone)

	var email Email
	if err := s.client.generateJSON(ctx, []part{{Text: text}}, &email); err != nil {
		logx.Error(err, "Email generation failed")
		return Email{}, errs.NewError(errs.ErrGenerationFailed)
	}

	return email, nil
}

// SummarizeMeeting produces a summary and actionable notes from a transcript.
func (s *Service) SummarizeMeeting(ctx context.Context, transcript string) (MeetingSummary, *errs.CustomError) {
	if transcript == "" || len(transcript) > maxPromptBytes {
		return MeetingSummary{}, errs.NewError(errs.ErrInvalidParams, "meeting transcript is required")
	}

	text := fmt.Sprintf(`You are an AI assistant tasked with summarizing meetings and creating actionable notes.

Given the following meeting transcript, generate a concise summary and a set of meeting notes that highlight action items and key decisions.

Meeting Transcript:
%s

Respond with a JSON object with the string fields "summary" (key points and decisions) and "notes" (actionable notes focusing on who needs to do what, and by when).`, transcript)

	var summary MeetingSummary
	if err := s.client.generateJSON(ctx, []part{{Text: text}}, &summary); err != nil {
		logx.Error(err, "Meeting summarization failed")
		return MeetingSummary{}, errs.NewError(errs.ErrGenerationFailed)
	}

	return summary, nil
}

// FinancialAdvice analyzes the transactions and answers the optional query.
func (s *Service) FinancialAdvice(ctx context.Context, transactions []books.Transaction, userQuery string) (Advice, *errs.CustomError) {
	if customErr := ValidateAdviceQuery(userQuery); customErr != nil {
		return Advice{}, customErr
	}

	var lines strings.Builder
	for _, txn := range transactions {
		fmt.Fprintf(&lines, "- %s of %g %s in category '%s' on %s\n",
			txn.Type, txn.Amount, txn.Currency, txn.Category, txn.Date)
	}

	var query string
	if userQuery != "" {
		query = fmt.Sprintf(`The user has a specific question: %q
Please answer this question first, then provide your general analysis and suggestions.`, userQuery)
	} else {
		query = "Please provide a general analysis and your top suggestions for improving profitability."
	}

	text := fmt.Sprintf(`You are an expert financial analyst. Your task is to analyze the user's transaction data and provide actionable advice to increase profit.

Transaction Data:
%s
Based on this data, provide clear, concise, and actionable suggestions. Focus on identifying top expense categories, opportunities for revenue growth, and potential savings.

%s

Format your response using markdown for readability (e.g., bullet points, bold text).
Respond with a JSON object with the single string field "advice".`, lines.String(), query)

	var advice Advice
	if err := s.client.generateJSON(ctx, []part{{Text: text}}, &advice); err != nil {
		logx.Error(err, "Financial analysis failed")
		return Advice{}, errs.NewError(errs.ErrGenerationFailed)
	}

	return advice, nil
}

// StartupAssets generates a startup package for the given idea. The logo and
// pitch deck links are synthesized deterministically from the generated name,
// so they never depend on what the model put in those fields.
func (s *Service) StartupAssets(ctx context.Context, idea string) (StartupAssets, *errs.CustomError) {
	if customErr := ValidateStartupIdea(idea); customErr != nil {
		return StartupAssets{}, customErr
	}

	text := fmt.Sprintf(`You are an AI-powered business expert. Based on the following startup idea, generate the following:
1. A catchy name for the startup.
2. A concise business plan.
3. A step-by-step workflow to execute the idea.

Startup Idea: %s

Respond with a JSON object with the string fields "startupName", "businessPlan" and "workflow".`, idea)

	var assets StartupAssets
	if err := s.client.generateJSON(ctx, []part{{Text: text}}, &assets); err != nil {
		logx.Error(err, "Startup generation failed")
		return StartupAssets{}, errs.NewError(errs.ErrGenerationFailed)
	}
	if assets.StartupName == "" {
		logx.Error(fmt.Errorf("model omitted startupName"), "Startup generation returned incomplete assets")
		return StartupAssets{}, errs.NewError(errs.ErrGenerationFailed)
	}

	assets.LogoImageURL = LogoURL(assets.StartupName)
	assets.PitchDeckURL = PitchDeckURL(assets.StartupName)

	return assets, nil
}

// AnalyzeDocument summarizes an uploaded document and assesses its risks.
// The document arrives as a data URI, the same shape the upload widget emits.
func (s *Service) AnalyzeDocument(ctx context.Context, documentDataURI string) (DocumentAnalysis, *errs.CustomError) {
	mimeType, data, err := parseDataURI(documentDataURI)
	if err != nil {
		return DocumentAnalysis{}, errs.NewError(errs.ErrInvalidParams, "document must be a base64 data URI")
	}

	text := `You are a document intelligence assistant. Analyze the attached business document.
Respond with a JSON object with the string fields "summary" (a concise summary of the document) and "riskAssessment" (potential risks, liabilities or unusual clauses found in it).`

	parts := []part{
		{Text: text},
		{InlineData: &inlineData{MimeType: mimeType, Data: data}},
	}

	var analysis DocumentAnalysis
	if err := s.client.generateJSON(ctx, parts, &analysis); err != nil {
		logx.Error(err, "Document analysis failed")
		return DocumentAnalysis{}, errs.NewError(errs.ErrGenerationFailed)
	}

	return analysis, nil
}

// LogoURL derives the deterministic placeholder logo link for a startup name.
func LogoURL(startupName string) string {
	return fmt.Sprintf("https://picsum.photos/seed/%s/512/512", url.PathEscape(startupName))
}

// PitchDeckURL derives the deterministic pitch deck link for a startup name.
func PitchDeckURL(startupName string) string {
	title := url.QueryEscape(startupName + " Pitch Deck")
	return "https://docs.google.com/presentation/create?title=" + title
}

// parseDataURI splits a "data:<mime>;base64,<payload>" URI into its mime type
// and base64 payload, validating that the payload decodes.
func parseDataURI(dataURI string) (mimeType, data string, err error) {
	const prefix = "data:"
	if !strings.HasPrefix(dataURI, prefix) {
		return "", "", fmt.Errorf("not a data URI")
	}

	rest := dataURI[len(prefix):]
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return "", "", fmt.Errorf("malformed data URI")
	}

	mimeType, encoding, ok := strings.Cut(meta, ";")
	if !ok || encoding != "base64" || mimeType == "" {
		return "", "", fmt.Errorf("data URI must be base64 encoded with a mime type")
	}

	if _, err := base64.StdEncoding.DecodeString(payload); err != nil {
		return "", "", fmt.Errorf("invalid base64 payload: %w", err)
	}

	return mimeType, payload, nil
}
