package openrouter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"
)

const (
	OpenRouterAPIURL = "https://openrouter.ai/api/v1/chat/completions"

	TypeAssignment = "assignment"
	TypeAssessment = "assessment"
)

// NormalizationError means the model's response did not match the
// required JSON contract. RawResponse keeps the offending text for
// diagnosis; the item is never silently guessed.
type NormalizationError struct {
	Reason      string
	RawResponse string
}

func (e *NormalizationError) Error() string {
	return fmt.Sprintf("normalization failed: %s", e.Reason)
}

// NormalizedAssignment is the structured form the model must return:
// exactly two string fields, with type constrained to the two literals.
type NormalizedAssignment struct {
	Type string `json:"type"`
	Name string `json:"name"`
}

type Client struct {
	apiKey     string
	apiURL     string
	httpClient *http.Client
	model      *string // Optional: if nil, uses OpenRouter account default
}

func NewClient(apiKey string) *Client {
	return &Client{
		apiKey: apiKey,
		apiURL: OpenRouterAPIURL,
		httpClient: &http.Client{
			Timeout: 300 * time.Second, // free models are slow
		},
		model: nil,
	}
}

// SetModel sets a specific model to use (optional)
func (c *Client) SetModel(model string) {
	c.model = &model
}

// SetAPIURL overrides the chat-completions endpoint (tests)
func (c *Client) SetAPIURL(url string) {
	c.apiURL = url
}

// NormalizeAssignment asks the model to turn raw assignment data into a
// {type, name} record. Any response that is not valid JSON of exactly
// that shape is a hard failure for the item.
func (c *Client) NormalizeAssignment(ctx context.Context, courseName, rawName, rawDescriptionHTML string, dueAt *string) (*NormalizedAssignment, error) {
	prompt := c.buildPrompt(courseName, rawName, StripHTML(rawDescriptionHTML), dueAt)

	reqBody := map[string]interface{}{
		"messages": []map[string]interface{}{
			{
				"role":    "user",
				"content": prompt,
			},
		},
	}

	// Only include model if explicitly set, otherwise use OpenRouter account default
	if c.model != nil {
		reqBody["model"] = *c.model
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(body))
	}

	var apiResp struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}

	if err := json.Unmarshal(body, &apiResp); err != nil {
		return nil, fmt.Errorf("failed to parse API response: %w", err)
	}

	if len(apiResp.Choices) == 0 {
		return nil, fmt.Errorf("no response from LLM")
	}

	content := apiResp.Choices[0].Message.Content
	cleaned := c.cleanJSONResponse(content)

	return parseNormalized(cleaned, content)
}

// parseNormalized enforces the strict two-field contract
func parseNormalized(cleaned, raw string) (*NormalizedAssignment, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(cleaned), &fields); err != nil {
		return nil, &NormalizationError{Reason: "response is not a JSON object", RawResponse: raw}
	}

	var result NormalizedAssignment
	if err := json.Unmarshal([]byte(cleaned), &result); err != nil {
		return nil, &NormalizationError{Reason: "response fields are not strings", RawResponse: raw}
	}

	if _, ok := fields["type"]; !ok {
		return nil, &NormalizationError{Reason: `missing "type" field`, RawResponse: raw}
	}
	if _, ok := fields["name"]; !ok {
		return nil, &NormalizationError{Reason: `missing "name" field`, RawResponse: raw}
	}
	if result.Type != TypeAssignment && result.Type != TypeAssessment {
		return nil, &NormalizationError{Reason: fmt.Sprintf("unexpected type %q", result.Type), RawResponse: raw}
	}
	if result.Name == "" {
		return nil, &NormalizationError{Reason: `empty "name" field`, RawResponse: raw}
	}

	return &result, nil
}

// cleanJSONResponse removes markdown code blocks and extra whitespace from LLM response
func (c *Client) cleanJSONResponse(content string) string {
	content = strings.TrimSpace(content)

	// Find the first { and last } to extract just the JSON object
	startIdx := strings.Index(content, "{")
	endIdx := strings.LastIndex(content, "}")

	if startIdx == -1 || endIdx == -1 || startIdx > endIdx {
		// No valid JSON found, return as is and let the JSON parser fail with a proper error
		return content
	}

	return strings.TrimSpace(content[startIdx : endIdx+1])
}

// buildPrompt builds the LLM prompt from assignment data
func (c *Client) buildPrompt(courseName, rawName, description string, dueAt *string) string {
	due := "unknown"
	if dueAt != nil && *dueAt != "" {
		due = *dueAt
	}

	return fmt.Sprintf(`You are an AI that turns raw school assignment data into a structured record.

Return ONLY a JSON object with exactly these two string fields:

{
  "type": "",
  "name": ""
}

### FIELD DEFINITIONS

type
- one of: "assignment", "assessment"
- Tests, quizzes and exams are assessments. Progress checks are assignments.

name
- The assignment name, reformatted with correct capitalization and spacing.
- Insert a space before a trailing number abbreviation (e.g. "HW7" becomes "HW #7" style only if the original already uses "#", otherwise "HW 7").

### CRITICAL RULES
- Output ONLY the JSON object, no explanations.
- "type" must be exactly "assignment" or "assessment".
- Never invent a name; only reformat the one given.

### Now produce the JSON for this input:

Course: %s
Name: %s
Due: %s

%s`, courseName, rawName, due, description)
}

var tagPattern = regexp.MustCompile(`<[^>]*>`)

// StripHTML removes HTML tags from a description. Best-effort: non-tag
// angle-bracket content is not specially handled.
func StripHTML(s string) string {
	return strings.TrimSpace(tagPattern.ReplaceAllString(s, " "))
}
