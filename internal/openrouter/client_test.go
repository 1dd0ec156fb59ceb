package openrouter

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestCleanJSONResponse(t *testing.T) {
	client := NewClient("test-key")

	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "plain JSON",
			input:    `{"type": "assignment", "name": "HW 7"}`,
			expected: `{"type": "assignment", "name": "HW 7"}`,
		},
		{
			name:     "JSON with markdown code blocks",
			input:    "```json\n{\"type\": \"assignment\", \"name\": \"HW 7\"}\n```",
			expected: `{"type": "assignment", "name": "HW 7"}`,
		},
		{
			name:     "JSON with plain code blocks",
			input:    "```\n{\"type\": \"assessment\", \"name\": \"Unit 3 Test\"}\n```",
			expected: `{"type": "assessment", "name": "Unit 3 Test"}`,
		},
		{
			name:     "JSON with explanatory text before",
			input:    "Here is the record:\n{\"type\": \"assignment\", \"name\": \"Essay Draft\"}",
			expected: `{"type": "assignment", "name": "Essay Draft"}`,
		},
		{
			name:     "JSON with text before and after",
			input:    "Sure!\n{\"type\": \"assignment\", \"name\": \"Lab 2\"}\nLet me know if you need more.",
			expected: `{"type": "assignment", "name": "Lab 2"}`,
		},
		{
			name:     "no JSON at all",
			input:    "I could not process this assignment.",
			expected: "I could not process this assignment.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := client.cleanJSONResponse(tt.input)
			if result != tt.expected {
				t.Errorf("Expected:\n%s\n\nGot:\n%s", tt.expected, result)
			}
		})
	}
}

func TestParseNormalized(t *testing.T) {
	tests := []struct {
		name       string
		input      string
		expectErr  bool
		expectType string
		expectName string
	}{
		{
			name:       "valid assignment",
			input:      `{"type":"assignment","name":"HW 7"}`,
			expectType: TypeAssignment,
			expectName: "HW 7",
		},
		{
			name:       "valid assessment",
			input:      `{"type":"assessment","name":"Unit 3 Test"}`,
			expectType: TypeAssessment,
			expectName: "Unit 3 Test",
		},
		{
			name:      "not an object",
			input:     `["assignment","HW 7"]`,
			expectErr: true,
		},
		{
			name:      "missing type",
			input:     `{"name":"HW 7"}`,
			expectErr: true,
		},
		{
			name:      "missing name",
			input:     `{"type":"assignment"}`,
			expectErr: true,
		},
		{
			name:      "unknown type",
			input:     `{"type":"quiz","name":"Pop Quiz"}`,
			expectErr: true,
		},
		{
			name:      "empty name",
			input:     `{"type":"assignment","name":""}`,
			expectErr: true,
		},
		{
			name:      "non-string fields",
			input:     `{"type":1,"name":2}`,
			expectErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := parseNormalized(tt.input, tt.input)
			if tt.expectErr {
				if err == nil {
					t.Fatal("Expected error, got nil")
				}
				var normErr *NormalizationError
				if !errors.As(err, &normErr) {
					t.Errorf("Expected NormalizationError, got %T", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if result.Type != tt.expectType || result.Name != tt.expectName {
				t.Errorf("Expected {%s %s}, got %+v", tt.expectType, tt.expectName, result)
			}
		})
	}
}

func TestNormalizeAssignmentEndToEnd(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("Unexpected Authorization header %q", got)
		}
		fmt.Fprint(w, `{"choices":[{"message":{"content":"`+
			"```json\\n{\\\"type\\\": \\\"assignment\\\", \\\"name\\\": \\\"HW 7\\\"}\\n```"+
			`"}}]}`)
	}))
	defer server.Close()

	client := NewClient("test-key")
	client.SetAPIURL(server.URL)

	due := "2026-02-10T04:59:00Z"
	result, err := client.NormalizeAssignment(context.Background(), "AP Calculus", "hw7", "<p>Problems 1-10</p>", &due)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if result.Type != TypeAssignment || result.Name != "HW 7" {
		t.Errorf("Unexpected result: %+v", result)
	}
}

func TestNormalizeAssignmentMalformedResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"choices":[{"message":{"content":"I cannot classify this assignment."}}]}`)
	}))
	defer server.Close()

	client := NewClient("test-key")
	client.SetAPIURL(server.URL)

	_, err := client.NormalizeAssignment(context.Background(), "AP Calculus", "hw7", "", nil)
	if err == nil {
		t.Fatal("Expected error for malformed model output")
	}
	var normErr *NormalizationError
	if !errors.As(err, &normErr) {
		t.Errorf("Expected NormalizationError, got %T: %v", err, err)
	}
}

func TestStripHTML(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "simple tags",
			input:    "<p>Read chapter 4</p>",
			expected: "Read chapter 4",
		},
		{
			name:     "nested markup",
			input:    `<div><strong>Due:</strong> Friday</div>`,
			expected: "Due:  Friday",
		},
		{
			name:     "no markup",
			input:    "Plain text",
			expected: "Plain text",
		},
		{
			name:     "empty",
			input:    "",
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := StripHTML(tt.input); got != tt.expected {
				t.Errorf("Expected %q, got %q", tt.expected, got)
			}
		})
	}
}
