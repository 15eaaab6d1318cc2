package session_test

import (
	"testing"

	"github.com/tailored-agentic-units/chattutor/session"
)

func TestDefaultConfig(t *testing.T) {
	cfg := session.DefaultConfig()

	if cfg.DefaultTopic != session.DefaultTopic {
		t.Errorf("got topic %q, want %q", cfg.DefaultTopic, session.DefaultTopic)
	}
}

func TestConfig_Merge(t *testing.T) {
	cfg := session.DefaultConfig()
	cfg.Merge(&session.Config{})
	if cfg.DefaultTopic != session.DefaultTopic {
		t.Errorf("empty merge changed topic to %q", cfg.DefaultTopic)
	}

	cfg.Merge(&session.Config{DefaultTopic: "Machine Learning"})
	if cfg.DefaultTopic != "Machine Learning" {
		t.Errorf("got topic %q", cfg.DefaultTopic)
	}
}

func TestNewFromConfig(t *testing.T) {
	cfg := session.Config{DefaultTopic: "Statistics"}

	if s := session.NewFromConfig(&cfg, ""); s.CurrentTopic != "Statistics" {
		t.Errorf("got topic %q, want Statistics", s.CurrentTopic)
	}
	if s := session.NewFromConfig(&cfg, "Calculus"); s.CurrentTopic != "Calculus" {
		t.Errorf("got topic %q, want Calculus", s.CurrentTopic)
	}
}
