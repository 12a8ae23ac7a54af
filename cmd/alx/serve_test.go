package main

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/MegaGrindStone/alx/internal/chat"
	"github.com/MegaGrindStone/alx/internal/handlers"
)

type echoDispatcher struct{}

func (echoDispatcher) Dispatch(_ context.Context, prompt string) (string, error) {
	return prompt, nil
}

func TestNewMux(t *testing.T) {
	m, err := handlers.NewMain(echoDispatcher{}, chat.NewRegistry(), slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("NewMain() error = %v", err)
	}
	mux, err := newMux(m)
	if err != nil {
		t.Fatalf("newMux() error = %v", err)
	}

	tests := []struct {
		name       string
		path       string
		wantStatus int
		wantBody   string
	}{
		{name: "Home", path: "/", wantStatus: http.StatusOK, wantBody: "surface_id"},
		{name: "Script", path: "/static/js/chat.js", wantStatus: http.StatusOK, wantBody: "history.replaceState"},
		{name: "Stylesheet", path: "/static/css/style.css", wantStatus: http.StatusOK},
		{name: "Unknown page", path: "/nope", wantStatus: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, tt.path, nil))

			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			if tt.wantBody != "" && !strings.Contains(w.Body.String(), tt.wantBody) {
				t.Errorf("body does not contain %q", tt.wantBody)
			}
		})
	}
}
