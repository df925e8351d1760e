package services

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/aulanet/aulanet-backend/internal/logger"
)

func newGrokTestProvider(srv *httptest.Server) *grokProvider {
	return &grokProvider{
		httpClient: srv.Client(),
		log:        logger.Nop(),
		apiKey:     "test-key",
		baseURL:    srv.URL,
		model:      "grok-test",
	}
}

func TestGrokGenerateTrimsCompletion(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"choices":[{"message":{"content":"\n\n  Hola desde el modelo.  \n"},"finish_reason":"stop"}]}`))
	}))
	defer srv.Close()

	p := newGrokTestProvider(srv)
	got, err := p.Generate(context.Background(), []AIMessage{{Role: "user", Content: "hola"}}, nil)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if got != "Hola desde el modelo." {
		t.Fatalf("completion %q, want trimmed text", got)
	}
}

func TestGrokGenerateWhitespaceOnlyIsEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"choices":[{"message":{"content":"\n   \n"},"finish_reason":"stop"}]}`))
	}))
	defer srv.Close()

	p := newGrokTestProvider(srv)
	if _, err := p.Generate(context.Background(), []AIMessage{{Role: "user", Content: "hola"}}, nil); !errors.Is(err, ErrEmptyCompletion) {
		t.Fatalf("error %v, want ErrEmptyCompletion", err)
	}
}
