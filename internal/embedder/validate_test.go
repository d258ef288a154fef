package embedder

import (
	"log/slog"
	"testing"
)

// clearEmbeddingEnv unsets every variable the validator consults so each test
// starts from a clean slate.
func clearEmbeddingEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"MODEL_PROVIDER", "EMBEDDING_PROVIDER", "EMBEDDING_MODEL",
		"EMBEDDING_API_KEY", "EMBEDDING_ENDPOINT",
		"OPENAI_API_KEY", "AZURE_OPENAI_API_KEY", "AZURE_OPENAI_ENDPOINT",
		"GOOGLE_API_KEY",
	} {
		t.Setenv(key, "")
	}
}

func TestValidate_OllamaDefaultPasses(t *testing.T) {
	clearEmbeddingEnv(t)
	if err := Validate(slog.Default()); err != nil {
		t.Errorf("default ollama config rejected: %v", err)
	}
}

func TestValidate_OpenAIRequiresKey(t *testing.T) {
	clearEmbeddingEnv(t)
	t.Setenv("EMBEDDING_PROVIDER", "openai")
	if err := Validate(slog.Default()); err == nil {
		t.Error("openai without an API key accepted")
	}
	t.Setenv("EMBEDDING_API_KEY", "sk-test")
	if err := Validate(slog.Default()); err != nil {
		t.Errorf("openai with EMBEDDING_API_KEY rejected: %v", err)
	}
}

func TestValidate_AzureRequiresEndpoint(t *testing.T) {
	clearEmbeddingEnv(t)
	t.Setenv("EMBEDDING_PROVIDER", "azure")
	t.Setenv("AZURE_OPENAI_API_KEY", "key")
	if err := Validate(slog.Default()); err == nil {
		t.Error("azure without an endpoint accepted")
	}
	t.Setenv("AZURE_OPENAI_ENDPOINT", "https://my.openai.azure.com")
	if err := Validate(slog.Default()); err != nil {
		t.Errorf("azure with key and endpoint rejected: %v", err)
	}
}

func TestValidate_GeminiInheritsChatKey(t *testing.T) {
	clearEmbeddingEnv(t)
	t.Setenv("EMBEDDING_PROVIDER", "gemini")
	if err := Validate(slog.Default()); err == nil {
		t.Error("gemini without an API key accepted")
	}
	t.Setenv("GOOGLE_API_KEY", "AIza-test")
	if err := Validate(slog.Default()); err != nil {
		t.Errorf("gemini with GOOGLE_API_KEY rejected: %v", err)
	}
}

func TestValidate_BedrockUnimplemented(t *testing.T) {
	clearEmbeddingEnv(t)
	t.Setenv("EMBEDDING_PROVIDER", "bedrock")
	if err := Validate(slog.Default()); err == nil {
		t.Error("bedrock embedding accepted despite being unimplemented")
	}
}

func TestLooksLikeChatModel(t *testing.T) {
	t.Parallel()
	cases := []struct {
		model string
		want  bool
	}{
		{"gpt-4o", true},
		{"llama3", true},
		{"Mixtral-8x7B", true},
		{"nomic-embed-text", false},
		{"text-embedding-3-small", false},
		{"text-embedding-004", false},
	}
	for _, tc := range cases {
		if got := looksLikeChatModel(tc.model); got != tc.want {
			t.Errorf("looksLikeChatModel(%q) = %v, want %v", tc.model, got, tc.want)
		}
	}
}
