package backend

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrUnavailable はバックエンドに到達できない場合のエラー。
	ErrUnavailable = errors.New("backend unavailable")
	// ErrInvalidResponse はレスポンスに必須項目が欠けている場合のエラー。
	ErrInvalidResponse = errors.New("invalid backend response")
	// ErrAlreadyApplied は同じ求人に応募済みの場合のエラー（HTTP 409）。
	ErrAlreadyApplied = errors.New("already applied for this job")
)

// StatusClass はHTTPステータスコードの分類。
type StatusClass int

const (
	// StatusClassOther は下記以外の4xx。
	StatusClassOther StatusClass = iota
	// StatusClassAuth は認証・認可エラー（401, 403）。
	StatusClassAuth
	// StatusClassNotFound はリソース未検出（404, 410）。
	StatusClassNotFound
	// StatusClassConflict は競合（409）。
	StatusClassConflict
	// StatusClassServer はサーバーエラー（5xx）。
	StatusClassServer
)

// ClassifyStatus はHTTPステータスコードを分類する。
func ClassifyStatus(statusCode int) StatusClass {
	switch {
	case statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden:
		return StatusClassAuth
	case statusCode == http.StatusNotFound || statusCode == http.StatusGone:
		return StatusClassNotFound
	case statusCode == http.StatusConflict:
		return StatusClassConflict
	case statusCode >= 500:
		return StatusClassServer
	default:
		return StatusClassOther
	}
}

// HTTPError はバックエンドが2xx以外を返した場合のエラー。
// Messageにはレスポンス本文のmessage（なければerror）を保持する。
type HTTPError struct {
	Backend string
	Status  int
	Message string
}

// Error はerrorインターフェースを実装する。
func (e *HTTPError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s API returned status %d", e.Backend, e.Status)
	}
	return fmt.Sprintf("%s API returned status %d: %s", e.Backend, e.Status, e.Message)
}

// Class はステータスコードの分類を返す。
func (e *HTTPError) Class() StatusClass {
	return ClassifyStatus(e.Status)
}

// MessageOf はエラーチェーン中のHTTPErrorからバックエンドのメッセージを取り出す。
// 取り出せない場合はfallbackを返す。
func MessageOf(err error, fallback string) string {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) && httpErr.Message != "" {
		return httpErr.Message
	}
	return fallback
}

// IsNotFound はエラーが404系かを返す。
func IsNotFound(err error) bool {
	var httpErr *HTTPError
	return errors.As(err, &httpErr) && httpErr.Class() == StatusClassNotFound
}

// IsAuth はエラーが401/403かを返す。
func IsAuth(err error) bool {
	var httpErr *HTTPError
	return errors.As(err, &httpErr) && httpErr.Class() == StatusClassAuth
}
