// Package handler はBFFのHTTPハンドラーを提供する。
package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/hitoshi/jobportal/internal/backend"
	"github.com/hitoshi/jobportal/internal/clientstate"
	"github.com/hitoshi/jobportal/internal/middleware"
	"github.com/hitoshi/jobportal/internal/model"
)

// noticeResponse は画面に通知を出す操作のレスポンス。
type noticeResponse struct {
	Notice   model.Notice `json:"notice"`
	Redirect string       `json:"redirect,omitempty"`
	Data     any          `json:"data,omitempty"`
}

// writeJSON はJSONレスポンスを書き込む。
func writeJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(v)
}

// decodeJSON はリクエストボディを読み取る。失敗時は400を書き込んでfalseを返す。
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError())
		return false
	}
	return true
}

// writeAPIErrorResponse は統一エラーフォーマットでエラーレスポンスを書き込む。
func writeAPIErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	middleware.WriteErrorResponse(w, statusCode, apiErr)
}

// clientFrom はリクエストのクライアント状態を返す。ない場合は401を書き込んでfalseを返す。
func clientFrom(w http.ResponseWriter, r *http.Request) (*clientstate.Client, bool) {
	c, ok := middleware.ClientFromContext(r.Context())
	if !ok {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return nil, false
	}
	return c, true
}

// handleServiceError はサービス層から返されたエラーを適切なHTTPステータスコードに変換する。
// APIErrorを含まないバックエンドエラーはfallbackを画面向けメッセージとして使う。
func handleServiceError(w http.ResponseWriter, err error, fallback string) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		statusCode := mapAPIErrorToHTTPStatus(apiErr)
		if apiErr.Code == model.ErrCodeSessionExpired {
			middleware.WriteRedirectResponse(w, statusCode, apiErr, "/login")
			return
		}
		writeAPIErrorResponse(w, statusCode, apiErr)
		return
	}

	var httpErr *backend.HTTPError
	switch {
	case errors.Is(err, backend.ErrUnavailable):
		writeAPIErrorResponse(w, http.StatusServiceUnavailable, model.NewBackendUnavailableError())
		return
	case backend.IsAuth(err):
		// バックエンドがトークンを拒否した
		middleware.WriteRedirectResponse(w, http.StatusUnauthorized, model.NewSessionExpiredError(), "/login")
		return
	case backend.IsNotFound(err):
		writeAPIErrorResponse(w, http.StatusNotFound, model.NewBackendError(backend.MessageOf(err, fallback)))
		return
	case errors.As(err, &httpErr), errors.Is(err, backend.ErrInvalidResponse):
		writeAPIErrorResponse(w, http.StatusBadGateway, model.NewBackendError(backend.MessageOf(err, fallback)))
		return
	}

	// それ以外は内部サーバーエラーとして扱う
	slog.Error("internal server error", slog.String("error", err.Error()))
	middleware.WriteInternalServerError(w)
}

// mapAPIErrorToHTTPStatus はAPIErrorコードからHTTPステータスコードにマッピングする。
func mapAPIErrorToHTTPStatus(apiErr *model.APIError) int {
	switch apiErr.Code {
	case model.ErrCodeUnauthorized, model.ErrCodeLoginFailed, model.ErrCodeSessionExpired:
		return http.StatusUnauthorized
	case model.ErrCodeWrongRole:
		return http.StatusForbidden
	case model.ErrCodeValidationFailed, model.ErrCodeInvalidResumeLink, model.ErrCodeInvalidRequest:
		return http.StatusBadRequest
	case model.ErrCodeProfileRequired, model.ErrCodeAlreadyApplied:
		return http.StatusConflict
	case model.ErrCodeProfileNotFound, model.ErrCodeJobNotFound:
		return http.StatusNotFound
	case model.ErrCodeBackendUnavailable:
		return http.StatusServiceUnavailable
	case model.ErrCodeBackendError:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
