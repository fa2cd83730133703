package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hitoshi/jobportal/internal/backend"
	"github.com/hitoshi/jobportal/internal/middleware"
	"github.com/hitoshi/jobportal/internal/model"
)

func TestHandleServiceError(t *testing.T) {
	tests := []struct {
		name         string
		err          error
		wantStatus   int
		wantCode     string
		wantMessage  string
		wantRedirect string
	}{
		{
			name:        "APIError(検証エラー)",
			err:         model.NewValidationError(map[string]string{"title": "Job title is required"}),
			wantStatus:  http.StatusBadRequest,
			wantCode:    model.ErrCodeValidationFailed,
			wantMessage: "Job title is required",
		},
		{
			name:        "ラップされたAPIError",
			err:         fmt.Errorf("%w: %w", model.NewLoginFailedError("bad password"), errors.New("401")),
			wantStatus:  http.StatusUnauthorized,
			wantCode:    model.ErrCodeLoginFailed,
			wantMessage: "bad password",
		},
		{
			name:         "セッション期限切れはログイン画面へ",
			err:          model.NewSessionExpiredError(),
			wantStatus:   http.StatusUnauthorized,
			wantCode:     model.ErrCodeSessionExpired,
			wantRedirect: "/login",
		},
		{
			name:       "バックエンド到達不能",
			err:        fmt.Errorf("get profile: %w", backend.ErrUnavailable),
			wantStatus: http.StatusServiceUnavailable,
			wantCode:   model.ErrCodeBackendUnavailable,
		},
		{
			name:         "バックエンドの認証エラー",
			err:          &backend.HTTPError{Backend: "jobseeker", Status: http.StatusUnauthorized},
			wantStatus:   http.StatusUnauthorized,
			wantCode:     model.ErrCodeSessionExpired,
			wantRedirect: "/login",
		},
		{
			name:        "バックエンドの404",
			err:         &backend.HTTPError{Backend: "employer", Status: http.StatusNotFound},
			wantStatus:  http.StatusNotFound,
			wantCode:    model.ErrCodeBackendError,
			wantMessage: "fallback",
		},
		{
			name:        "バックエンドの500はメッセージを引き継ぐ",
			err:         &backend.HTTPError{Backend: "employer", Status: 500, Message: "db error"},
			wantStatus:  http.StatusBadGateway,
			wantCode:    model.ErrCodeBackendError,
			wantMessage: "db error",
		},
		{
			name:        "不正なレスポンス",
			err:         fmt.Errorf("login: %w", backend.ErrInvalidResponse),
			wantStatus:  http.StatusBadGateway,
			wantCode:    model.ErrCodeBackendError,
			wantMessage: "fallback",
		},
		{
			name:       "その他のエラー",
			err:        errors.New("boom"),
			wantStatus: http.StatusInternalServerError,
			wantCode:   "INTERNAL_ERROR",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			handleServiceError(w, tt.err, "fallback")

			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			var body middleware.ErrorResponseBody
			if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
				t.Fatalf("レスポンスのデコードに失敗: %v", err)
			}
			if body.Code != tt.wantCode {
				t.Errorf("code = %q, want %q", body.Code, tt.wantCode)
			}
			if tt.wantMessage != "" && body.Message != tt.wantMessage {
				t.Errorf("message = %q, want %q", body.Message, tt.wantMessage)
			}
			if body.Redirect != tt.wantRedirect {
				t.Errorf("redirect = %q, want %q", body.Redirect, tt.wantRedirect)
			}
		})
	}
}

func TestQueryInt(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{"", 8},
		{"3", 3},
		{"0", 8},
		{"-1", 8},
		{"abc", 8},
	}
	for _, tt := range tests {
		if got := queryInt(tt.in, 8); got != tt.want {
			t.Errorf("queryInt(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}
