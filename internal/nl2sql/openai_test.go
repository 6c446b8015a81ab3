package nl2sql

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestStripCodeFences(t *testing.T) {
	cases := map[string]string{
		"```sql\nSELECT 1;\n```":              "SELECT 1;",
		"  SELECT * FROM products  ":           "SELECT * FROM products",
		"Here:\n```SELECT 2```":                "Here:\nSELECT 2",
		"```sql SELECT a ``` and ```sql b ```": "SELECT a  and  b",
		"":                                     "",
	}
	for input, want := range cases {
		if got := StripCodeFences(input); got != want {
			t.Fatalf("StripCodeFences(%q) = %q, want %q", input, got, want)
		}
	}
}

func TestBuildPromptEmbedsSchemaAndQuestion(t *testing.T) {
	schema := "{\n  \"products\": {}\n}"
	prompt := BuildPrompt("Show me all products in the Electronics category", schema)

	for _, fragment := range []string{
		"expert Database Engineer and Data Analyst",
		"valid PostgreSQL queries",
		ruler + "\n" + schema + "\n" + ruler,
		"Return ONLY the SQL code",
		"'relationships' and 'business_logic'",
		"(Sales Revenue - Purchase Cost)",
		"Show me all products in the Electronics category",
	} {
		if !strings.Contains(prompt, fragment) {
			t.Fatalf("prompt missing %q:\n%s", fragment, prompt)
		}
	}
	if BuildPrompt("q", schema) != BuildPrompt("q", schema) {
		t.Fatal("BuildPrompt() is not deterministic")
	}
}

func TestBuildPromptWithEmptySchema(t *testing.T) {
	prompt := BuildPrompt("How many sales?", "")
	if !strings.Contains(prompt, ruler+"\n\n"+ruler) {
		t.Fatalf("prompt without schema lost its structure:\n%s", prompt)
	}
	if !strings.HasSuffix(prompt, "How many sales?\n") {
		t.Fatalf("prompt does not end with question:\n%s", prompt)
	}
}

func TestOpenAITranslatorSendsPromptAndStripsFences(t *testing.T) {
	var gotAuth string
	var gotBody map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("path = %q", r.URL.Path)
		}
		gotAuth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"` + "```sql\\nSELECT 1\\n```" + `"}}]}`))
	}))
	defer server.Close()

	translator, err := NewOpenAITranslator(OpenAIConfig{BaseURL: server.URL + "/", APIKey: "k-1", Model: "m-1"})
	if err != nil {
		t.Fatalf("NewOpenAITranslator() error = %v", err)
	}
	result, err := translator.Translate(context.Background(), Request{Question: "q", Schema: "{}"})
	if err != nil {
		t.Fatalf("Translate() error = %v", err)
	}
	if result.SQL != "SELECT 1" || result.Provider != ProviderOpenAI || result.Model != "m-1" {
		t.Fatalf("Translate() = %#v", result)
	}
	if gotAuth != "Bearer k-1" {
		t.Fatalf("Authorization = %q", gotAuth)
	}
	messages, _ := gotBody["messages"].([]any)
	if len(messages) != 1 {
		t.Fatalf("messages = %#v", gotBody["messages"])
	}
}

func TestOpenAITranslatorWrapsFailures(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	translator, err := NewOpenAITranslator(OpenAIConfig{BaseURL: server.URL, APIKey: "k"})
	if err != nil {
		t.Fatalf("NewOpenAITranslator() error = %v", err)
	}
	if _, err := translator.Translate(context.Background(), Request{Question: "q"}); !errors.Is(err, ErrGenerationFailed) {
		t.Fatalf("Translate() error = %v, want ErrGenerationFailed", err)
	}
}

func TestNewOpenAITranslatorValidates(t *testing.T) {
	if _, err := NewOpenAITranslator(OpenAIConfig{APIKey: "k"}); err == nil {
		t.Fatal("expected missing base URL error")
	}
	if _, err := NewOpenAITranslator(OpenAIConfig{BaseURL: "http://x"}); err == nil {
		t.Fatal("expected missing api key error")
	}
}
