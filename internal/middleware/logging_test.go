package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	chimw "github.com/go-chi/chi/v5/middleware"
)

// serveLogged はLoggingミドルウェア経由でリクエストを処理し、出力されたログ1行を返す。
func serveLogged(t *testing.T, wrap func(http.Handler) http.Handler, h http.HandlerFunc, req *http.Request) (map[string]any, *httptest.ResponseRecorder) {
	t.Helper()
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	var inner http.Handler = h
	if wrap != nil {
		inner = wrap(inner)
	}
	w := httptest.NewRecorder()
	NewLoggingMiddleware(logger)(inner).ServeHTTP(w, req)

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("JSONログの解析に失敗: %v\nraw: %s", err, buf.String())
	}
	return entry, w
}

func TestLoggingMiddleware_StatusAndLevel(t *testing.T) {
	tests := []struct {
		name       string
		handler    http.HandlerFunc
		wantStatus float64
		wantLevel  string
	}{
		{
			name:       "WriteHeaderなしのWriteは200",
			handler:    func(w http.ResponseWriter, r *http.Request) { w.Write([]byte(`[]`)) },
			wantStatus: 200,
			wantLevel:  "INFO",
		},
		{
			name:       "4xxはWARN",
			handler:    func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusConflict) },
			wantStatus: 409,
			wantLevel:  "WARN",
		},
		{
			name:       "5xxはERROR",
			handler:    func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusBadGateway) },
			wantStatus: 502,
			wantLevel:  "ERROR",
		},
		{
			name: "最初のWriteHeaderを記録",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusCreated)
				w.WriteHeader(http.StatusInternalServerError)
			},
			wantStatus: 201,
			wantLevel:  "INFO",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entry, _ := serveLogged(t, nil, tt.handler, httptest.NewRequest(http.MethodPost, "/api/jobs/7/apply", nil))

			if entry["msg"] != "http_request" {
				t.Errorf("msg = %v", entry["msg"])
			}
			if entry["method"] != "POST" || entry["path"] != "/api/jobs/7/apply" {
				t.Errorf("method/path = %v %v", entry["method"], entry["path"])
			}
			if entry["status"] != tt.wantStatus {
				t.Errorf("status = %v, want %v", entry["status"], tt.wantStatus)
			}
			if entry["level"] != tt.wantLevel {
				t.Errorf("level = %v, want %v", entry["level"], tt.wantLevel)
			}
			if d, ok := entry["duration_ms"].(float64); !ok || d < 0 {
				t.Errorf("duration_ms = %v", entry["duration_ms"])
			}
		})
	}
}

func TestLoggingMiddleware_OptionalFieldsOmitted(t *testing.T) {
	entry, w := serveLogged(t, nil, func(w http.ResponseWriter, r *http.Request) {}, httptest.NewRequest(http.MethodGet, "/health", nil))

	for _, key := range []string{"client_id", "role", "request_id"} {
		if _, ok := entry[key]; ok {
			t.Errorf("%s は未確定なら出力しない: %v", key, entry[key])
		}
	}
	if got := w.Header().Get(requestIDHeader); got != "" {
		t.Errorf("%s = %q, want empty", requestIDHeader, got)
	}
}

func TestLoggingMiddleware_ClientIDFromOuterContext(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/session", nil)
	req = req.WithContext(context.WithValue(req.Context(), clientIDContextKey, "client-outer"))

	entry, _ := serveLogged(t, nil, func(w http.ResponseWriter, r *http.Request) {}, req)

	if entry["client_id"] != "client-outer" {
		t.Errorf("client_id = %v, want client-outer", entry["client_id"])
	}
}

func TestLoggingMiddleware_ClientIDFromInnerMiddleware(t *testing.T) {
	var issued string
	wrap := NewClientMiddleware(ClientCookieConfig{})

	entry, _ := serveLogged(t, wrap, func(w http.ResponseWriter, r *http.Request) {
		issued, _ = ClientIDFromContext(r.Context())
	}, httptest.NewRequest(http.MethodGet, "/api/session", nil))

	if issued == "" || entry["client_id"] != issued {
		t.Errorf("client_id = %v, want %q", entry["client_id"], issued)
	}
}

func TestLoggingMiddleware_RoleFilledByInnerHandler(t *testing.T) {
	entry, _ := serveLogged(t, nil, func(w http.ResponseWriter, r *http.Request) {
		if rl := requestLogFrom(r.Context()); rl != nil {
			rl.role = "employer"
		}
	}, httptest.NewRequest(http.MethodGet, "/api/employer/jobs", nil))

	if entry["role"] != "employer" {
		t.Errorf("role = %v, want employer", entry["role"])
	}
}

func TestLoggingMiddleware_RequestID(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-Id", "req-42")

	entry, w := serveLogged(t, chimw.RequestID, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}, req)

	// RequestIDはLoggingの内側に置いたのでIDは見えない
	if _, ok := entry["request_id"]; ok {
		t.Errorf("内側のRequestIDはログに出ない: %v", entry["request_id"])
	}

	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	w = httptest.NewRecorder()
	chimw.RequestID(NewLoggingMiddleware(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))).ServeHTTP(w, req)

	if got := w.Header().Get(requestIDHeader); got != "req-42" {
		t.Errorf("%s = %q, want req-42", requestIDHeader, got)
	}
	var outer map[string]any
	if err := json.Unmarshal(buf.Bytes(), &outer); err != nil {
		t.Fatalf("JSONログの解析に失敗: %v", err)
	}
	if outer["request_id"] != "req-42" {
		t.Errorf("request_id = %v, want req-42", outer["request_id"])
	}
}
