package internal

import (
	"strings"
	"testing"
	"time"
)

func TestAuthConfig_DisabledMode(t *testing.T) {
	cfg := AuthConfig{Mode: "disabled", Token: ""}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("disabled mode should pass: %v", err)
	}
	if cfg.AuthEnabled() {
		t.Error("disabled mode should not be enabled")
	}
}

func TestAuthConfig_EmptyModeDefaultsDisabled(t *testing.T) {
	cfg := AuthConfig{Mode: "", Token: ""}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("empty mode should default to disabled: %v", err)
	}
	if cfg.Mode != AuthModeDisabled {
		t.Errorf("mode = %q, want %q", cfg.Mode, AuthModeDisabled)
	}
}

func TestAuthConfig_TokenModeValid(t *testing.T) {
	cfg := AuthConfig{Mode: "token", Token: "mysecret"}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("token mode with token should pass: %v", err)
	}
	if !cfg.AuthEnabled() {
		t.Error("token mode should be enabled")
	}
}

func TestAuthConfig_TokenModeEmptyToken(t *testing.T) {
	cfg := AuthConfig{Mode: "token", Token: ""}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("token mode with empty token should fail")
	}
	if !strings.Contains(err.Error(), "token is empty") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestAuthConfig_InvalidMode(t *testing.T) {
	cfg := AuthConfig{Mode: "magic", Token: "x"}
	if err := cfg.Validate(); err == nil {
		t.Fatal("invalid mode should fail validation")
	}
}

func TestAgentConfig(t *testing.T) {
	cfg := AgentConfig{MaxIterations: 10, LLMTimeoutSec: 60, ToolTimeoutSec: 10}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("valid agent config should pass: %v", err)
	}
	if cfg.LLMTimeout() != 60*time.Second {
		t.Errorf("LLMTimeout = %v", cfg.LLMTimeout())
	}
	if cfg.ToolTimeout() != 10*time.Second {
		t.Errorf("ToolTimeout = %v", cfg.ToolTimeout())
	}

	bad := AgentConfig{MaxIterations: 0, LLMTimeoutSec: 60, ToolTimeoutSec: 10}
	if err := bad.Validate(); err == nil {
		t.Error("zero max_iterations should fail")
	}

	tooMany := AgentConfig{MaxIterations: 100, LLMTimeoutSec: 60, ToolTimeoutSec: 10}
	if err := tooMany.Validate(); err == nil {
		t.Error("max_iterations above cap should fail")
	}
}

func TestLLMConfig(t *testing.T) {
	cfg := LLMConfig{Model: "gpt-4o", EmbeddingModel: "text-embedding-3-small"}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("valid llm config should pass: %v", err)
	}

	missing := LLMConfig{Model: "", EmbeddingModel: "text-embedding-3-small"}
	if err := missing.Validate(); err == nil {
		t.Error("missing model should fail")
	}
}

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := NewDefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
}

func TestHTTPConfig_PortBounds(t *testing.T) {
	for _, port := range []int{0, -1, 70000} {
		cfg := HTTPConfig{Port: port}
		if err := cfg.Validate(); err == nil {
			t.Errorf("port %d should fail validation", port)
		}
	}
	cfg := HTTPConfig{Port: 8080}
	if err := cfg.Validate(); err != nil {
		t.Errorf("port 8080 should pass: %v", err)
	}
	if cfg.Address() != ":8080" {
		t.Errorf("address = %q", cfg.Address())
	}
}
