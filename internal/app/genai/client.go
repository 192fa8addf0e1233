/*
Package genai contains the AI content features: email drafting, meeting
summarization, financial analysis, startup asset generation, and document
analysis.

This file implements the HTTP client for the Gemini generateContent API. Every
feature asks the model for a JSON object matching a declared schema and decodes
the first candidate's text into a typed result.
*/
package genai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const defaultTimeout = 60 * time.Second

// Config carries the connection settings for the generation backend.
type Config struct {
	// BaseURL is the API root, e.g. https://generativelanguage.googleapis.com.
	BaseURL string

	// APIKey authenticates requests.
	APIKey string

	// Model is the model name used for all features, e.g. gemini-2.0-flash.
	Model string

	// HTTPClient is the client used for requests. Defaults to one with a
	// 60 second timeout.
	HTTPClient *http.Client
}

// Client talks to the Gemini generateContent endpoint.
type Client struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
}

// NewClient constructs a Client from the config.
func NewClient(cfg Config) *Client {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}

	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		model:      cfg.Model,
		httpClient: httpClient,
	}
}

// part is one piece of request content: text or inline binary data.
type part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inlineData,omitempty"`
}

type inlineData struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

type generateRequest struct {
	Contents []struct {
		Parts []part `json:"parts"`
	} `json:"contents"`
	GenerationConfig struct {
		ResponseMimeType string `json:"responseMimeType"`
	} `json:"generationConfig"`
}

type generateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// generateJSON sends the parts to the model, requests a JSON response, and
// unmarshals the first candidate into out.
func (c *Client) generateJSON(ctx context.Context, parts []part, out any) error {
	reqBody := generateRequest{}
	reqBody.Contents = append(reqBody.Contents, struct {
		Parts []part `json:"parts"`
	}{Parts: parts})
	reqBody.GenerationConfig.ResponseMimeType = "application/json"

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("failed to encode generation request: %w", err)
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent", c.baseURL, c.model)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build generation request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("generation request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return fmt.Errorf("failed to read generation response: %w", err)
	}

	var genResp generateResponse
	if err := json.Unmarshal(body, &genResp); err != nil {
		return fmt.Errorf("failed to decode generation response (status %d): %w", resp.StatusCode, err)
	}

	if genResp.Error != nil {
		return fmt.Errorf("generation backend error %d: %s", genResp.Error.Code, genResp.Error.Message)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("generation backend returned status %d", resp.StatusCode)
	}
	if len(genResp.Candidates) == 0 || len(genResp.Candidates[0].Content.Parts) == 0 {
		return fmt.Errorf("generation backend returned no candidates")
	}

	text := genResp.Candidates[0].Content.Parts[0].Text
	if err := json.Unmarshal([]byte(text), out); err != nil {
		return fmt.Errorf("model output is not the expected JSON shape: %w", err)
	}

	return nil
}
