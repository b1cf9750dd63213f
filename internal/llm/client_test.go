package llm

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"

	"github.com/k11v/sitegen/internal/fault"
)

func TestClientGenerate(t *testing.T) {
	ctx := context.Background()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	t.Run("sends a single user message and returns the first choice", func(t *testing.T) {
		var gotReq chatCompletionRequest
		var gotAuthorization string
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotAuthorization = r.Header.Get("Authorization")
			if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
				t.Errorf("didn't want %q", err)
			}
			w.Header().Set("Content-Type", "application/json")
			_, _ = io.WriteString(w, `{"choices":[{"message":{"role":"assistant","content":"first"}},{"message":{"role":"assistant","content":"second"}}]}`)
		}))
		t.Cleanup(server.Close)

		client := NewClient(&Config{URL: server.URL, APIKey: "key", Model: "model"}, log)
		got, err := client.Generate(ctx, "make a site")
		if err != nil {
			t.Fatalf("didn't want %q", err)
		}
		if want := "first"; got != want {
			t.Errorf("got %q, want %q", got, want)
		}

		wantReq := chatCompletionRequest{
			Model:    "model",
			Messages: []chatMessage{{Role: "user", Content: "make a site"}},
		}
		if !reflect.DeepEqual(gotReq, wantReq) {
			t.Logf("got %#v", gotReq)
			t.Errorf("want %#v", wantReq)
		}
		if want := "Bearer key"; gotAuthorization != want {
			t.Errorf("got %q, want %q", gotAuthorization, want)
		}
	})

	tests := []struct {
		name       string
		statusCode int
		body       string
	}{
		{name: "returns an error when the status is not 2xx", statusCode: http.StatusTooManyRequests, body: `{"error":"slow down"}`},
		{name: "returns an error when there are no choices", statusCode: http.StatusOK, body: `{"choices":[]}`},
		{name: "returns an error when the body isn't JSON", statusCode: http.StatusOK, body: `<html>`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.statusCode)
				_, _ = io.WriteString(w, tt.body)
			}))
			t.Cleanup(server.Close)

			client := NewClient(&Config{URL: server.URL, APIKey: "key"}, log)
			_, err := client.Generate(ctx, "make a site")
			if !errors.Is(err, fault.ErrUpstreamCallFailed) {
				t.Fatalf("got %v, want %v", err, fault.ErrUpstreamCallFailed)
			}
		})
	}

	t.Run("returns an error when the endpoint is unreachable", func(t *testing.T) {
		server := httptest.NewServer(http.NotFoundHandler())
		url := server.URL
		server.Close()

		client := NewClient(&Config{URL: url, APIKey: "key"}, log)
		_, err := client.Generate(ctx, "make a site")
		if !errors.Is(err, fault.ErrUpstreamCallFailed) {
			t.Fatalf("got %v, want %v", err, fault.ErrUpstreamCallFailed)
		}
	})
}
