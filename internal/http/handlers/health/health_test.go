package health

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ok(context.Context) error { return nil }

func TestHealth(t *testing.T) {
	tests := []struct {
		name       string
		checks     map[string]Check
		wantStatus int
		want       map[string]string
	}{
		{
			name:       "all up",
			checks:     map[string]Check{"database": ok, "cache": ok},
			wantStatus: http.StatusOK,
			want:       map[string]string{"database": "ok", "cache": "ok"},
		},
		{
			name: "database down",
			checks: map[string]Check{
				"database": func(context.Context) error { return errors.New("connection refused") },
				"cache":    ok,
			},
			wantStatus: http.StatusServiceUnavailable,
			want:       map[string]string{"database": "down", "cache": "ok"},
		},
		{
			name:       "no checks",
			checks:     nil,
			wantStatus: http.StatusOK,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := New(slog.New(slog.NewTextHandler(io.Discard, nil)), tt.checks)
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.want == nil {
				return
			}
			var body struct {
				Data map[string]string `json:"data"`
			}
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.want, body.Data)
		})
	}
}
