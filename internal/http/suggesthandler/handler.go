// Package suggesthandler proxies the writing games' AI suggestion requests
// to an OpenAI-compatible completion endpoint. The fallback behavior is a
// hard contract: any upstream failure degrades to a fixed suggestion set so
// the game UI never sees an error.
package suggesthandler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const upstreamTimeout = 10 * time.Second

type Handler struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
}

func New(apiKey, baseURL, model string) *Handler {
	return &Handler{
		apiKey:     apiKey,
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		model:      model,
		httpClient: &http.Client{Timeout: upstreamTimeout},
	}
}

func (h *Handler) Register(r gin.IRoutes) {
	r.POST("/api/ai/suggest", h.suggest)
}

func (h *Handler) suggest(c *gin.Context) {
	var req SuggestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	if h.apiKey == "" {
		c.JSON(http.StatusOK, SuggestResponse{Suggestions: fallbackSuggestions(req)})
		return
	}

	suggestions, err := h.complete(c.Request.Context(), req)
	if err != nil {
		zap.L().Warn("suggest.upstream", zap.Error(err))
		c.JSON(http.StatusOK, SuggestResponse{Suggestions: fallbackSuggestions(req)})
		return
	}
	c.JSON(http.StatusOK, SuggestResponse{Suggestions: suggestions})
}

// ---------------------------------------------------------------------------
//  Upstream call
// ---------------------------------------------------------------------------

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model          string        `json:"model"`
	Messages       []chatMessage `json:"messages"`
	Temperature    float64       `json:"temperature"`
	MaxTokens      int           `json:"max_tokens"`
	ResponseFormat struct {
		Type string `json:"type"`
	} `json:"response_format"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func (h *Handler) complete(ctx context.Context, req SuggestRequest) ([]Suggestion, error) {
	body := chatRequest{
		Model: h.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt(req)},
			{Role: "user", Content: userPrompt(req)},
		},
		Temperature: 0.7,
		MaxTokens:   500,
	}
	body.ResponseFormat.Type = "json_object"

	buf, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, h.baseURL+"/chat/completions", bytes.NewReader(buf))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+h.apiKey)

	resp, err := h.httpClient.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("upstream status %d", resp.StatusCode)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	var chat chatResponse
	if err := json.Unmarshal(raw, &chat); err != nil {
		return nil, err
	}
	if len(chat.Choices) == 0 || chat.Choices[0].Message.Content == "" {
		return nil, fmt.Errorf("empty completion")
	}

	return parseSuggestions(chat.Choices[0].Message.Content)
}

// parseSuggestions accepts the shapes the model actually returns: a bare
// array, or an object wrapping it under "suggestions" or "arguments".
func parseSuggestions(content string) ([]Suggestion, error) {
	var list []Suggestion
	if err := json.Unmarshal([]byte(content), &list); err == nil && len(list) > 0 {
		return list, nil
	}

	var wrapped struct {
		Suggestions []Suggestion `json:"suggestions"`
		Arguments   []Suggestion `json:"arguments"`
	}
	if err := json.Unmarshal([]byte(content), &wrapped); err != nil {
		return nil, err
	}
	if len(wrapped.Suggestions) > 0 {
		return wrapped.Suggestions, nil
	}
	if len(wrapped.Arguments) > 0 {
		return wrapped.Arguments, nil
	}
	return nil, fmt.Errorf("no suggestions in completion")
}

func systemPrompt(req SuggestRequest) string {
	if req.Type == "fallacious" {
		return "You are helping with an educational game about logical fallacies. " +
			"Generate argument fragments that contain specific fallacies for the user to practice identifying. " +
			"The context is a family learning activity - keep content appropriate but intellectually challenging."
	}
	return "You are helping with an educational game about sound reasoning. " +
		"Generate argument fragments that use proper reasoning techniques (steelmanning, acknowledging nuance, citing evidence). " +
		"Help users practice constructing valid, persuasive arguments."
}

func userPrompt(req SuggestRequest) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Topic: %s\nPosition to argue: %s\n", req.Topic, req.Position)

	if req.Type == "fallacious" {
		targets := "any"
		if len(req.TargetFallacies) > 0 {
			targets = strings.Join(req.TargetFallacies, ", ")
		}
		fmt.Fprintf(&b, "Fallacies to include (use ALL of these somewhere in the same argument): %s\n", targets)
		if req.ExistingText != "" {
			fmt.Fprintf(&b, "Building on this existing argument text: %q\n", req.ExistingText)
		}
		b.WriteString("\nWrite a single, cohesive argument that is as succinct as possible while still sounding natural and complete. " +
			"Aim for 2-4 sentences max. Make the fallacies subtle and realistic: prefer plausible wording a smart but biased person might actually use. " +
			"Return JSON with a top-level property \"suggestions\" containing an array of objects with fields: " +
			"text (the full argument), technique (which fallacies were used), explanation (why the argument is fallacious overall).")
		return b.String()
	}

	targets := "any sound reasoning"
	if len(req.TargetAntidotes) > 0 {
		targets = strings.Join(req.TargetAntidotes, ", ")
	}
	fmt.Fprintf(&b, "Techniques to use: %s\n", targets)
	if req.ExistingText != "" {
		fmt.Fprintf(&b, "Building on: %q\n", req.ExistingText)
	}
	b.WriteString("\nGenerate 2-3 short argument fragments (1-2 sentences each) that demonstrate sound reasoning. " +
		"Return as JSON array with fields: text, technique (which antidote/technique), explanation (why it's effective).")
	return b.String()
}
