package model

import (
	"fmt"
	"sort"
	"strings"
)

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string            // エラーコード
	Message  string            // エラーメッセージ
	Category string            // カテゴリ: auth, validation, profile, job, system
	Action   string            // ユーザー向け対処方法
	Fields   map[string]string // フォーム項目ごとのエラー（validationのみ）
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeUnauthorized       = "UNAUTHORIZED"
	ErrCodeLoginFailed        = "LOGIN_FAILED"
	ErrCodeSessionExpired     = "SESSION_EXPIRED"
	ErrCodeWrongRole          = "WRONG_ROLE"
	ErrCodeValidationFailed   = "VALIDATION_FAILED"
	ErrCodeProfileRequired    = "PROFILE_REQUIRED"
	ErrCodeProfileNotFound    = "PROFILE_NOT_FOUND"
	ErrCodeJobNotFound        = "JOB_NOT_FOUND"
	ErrCodeAlreadyApplied     = "ALREADY_APPLIED"
	ErrCodeInvalidResumeLink  = "INVALID_RESUME_LINK"
	ErrCodeBackendUnavailable = "BACKEND_UNAVAILABLE"
	ErrCodeBackendError       = "BACKEND_ERROR"
	ErrCodeInvalidRequest     = "INVALID_REQUEST"
	ErrCodeRateLimited        = "RATE_LIMITED"
)

// NewUnauthorizedError は未認証エラーを生成する。
func NewUnauthorizedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthorized,
		Message:  "Authentication is required.",
		Category: "auth",
		Action:   "Please log in.",
	}
}

// NewRateLimitedError はリクエスト数の上限超過エラーを生成する。
func NewRateLimitedError() *APIError {
	return &APIError{
		Code:     ErrCodeRateLimited,
		Message:  "Too many requests. Please try again later.",
		Category: "system",
		Action:   "Wait a moment and retry.",
	}
}

// NewNotLoggedInError はログアウト時にどちらの役割でもログインしていない場合のエラーを生成する。
func NewNotLoggedInError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthorized,
		Message:  "No user or employer is currently logged in.",
		Category: "auth",
		Action:   "Please log in.",
	}
}

// NewInvalidRequestError はリクエストボディを解析できない場合のエラーを生成する。
func NewInvalidRequestError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidRequest,
		Message:  "Failed to parse the request body.",
		Category: "validation",
		Action:   "Send the request as valid JSON.",
	}
}

// NewLoginFailedError はログイン失敗エラーを生成する。
// messageにはバックエンドが返したメッセージをそのまま使う。
func NewLoginFailedError(message string) *APIError {
	if message == "" {
		message = "Login failed"
	}
	return &APIError{
		Code:     ErrCodeLoginFailed,
		Message:  message,
		Category: "auth",
		Action:   "Check your email address and password.",
	}
}

// NewSessionExpiredError はトークン期限切れエラーを生成する。
func NewSessionExpiredError() *APIError {
	return &APIError{
		Code:     ErrCodeSessionExpired,
		Message:  "Your session has expired.",
		Category: "auth",
		Action:   "Please log in again.",
	}
}

// NewWrongRoleError は他の役割向けページへのアクセスエラーを生成する。
func NewWrongRoleError(want Role) *APIError {
	page := "candidate"
	if want == RoleEmployer {
		page = "employer"
	}
	return &APIError{
		Code:     ErrCodeWrongRole,
		Message:  fmt.Sprintf("this page is for %s only", page),
		Category: "auth",
		Action:   "Log out and sign in with the matching account.",
	}
}

// NewValidationError はフォーム入力エラーを生成する。
// fieldsは項目名からメッセージへの対応。
func NewValidationError(fields map[string]string) *APIError {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	msgs := make([]string, 0, len(keys))
	for _, k := range keys {
		msgs = append(msgs, fields[k])
	}
	return &APIError{
		Code:     ErrCodeValidationFailed,
		Message:  strings.Join(msgs, "; "),
		Category: "validation",
		Action:   "Correct the highlighted fields and submit again.",
		Fields:   fields,
	}
}

// NewProfileRequiredError はプロフィール未作成エラーを生成する。
func NewProfileRequiredError() *APIError {
	return &APIError{
		Code:     ErrCodeProfileRequired,
		Message:  "You have not created a profile yet.",
		Category: "profile",
		Action:   "Create your profile first.",
	}
}

// NewProfileNotFoundError はプロフィール未検出エラーを生成する。
func NewProfileNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeProfileNotFound,
		Message:  "Profile not found.",
		Category: "profile",
		Action:   "Create your profile first.",
	}
}

// NewJobNotFoundError は求人未検出エラーを生成する。
func NewJobNotFoundError(jobID string) *APIError {
	return &APIError{
		Code:     ErrCodeJobNotFound,
		Message:  fmt.Sprintf("Job not found: %s", jobID),
		Category: "job",
		Action:   "Go back to the job list and pick another job.",
	}
}

// NewAlreadyAppliedError は応募済みエラーを生成する。
// 画面ではエラーではなく情報通知として扱う。
func NewAlreadyAppliedError() *APIError {
	return &APIError{
		Code:     ErrCodeAlreadyApplied,
		Message:  "You've already applied for this job.",
		Category: "job",
		Action:   "Check the status in your dashboard.",
	}
}

// NewInvalidResumeLinkError は履歴書リンクが利用できない場合のエラーを生成する。
func NewInvalidResumeLinkError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidResumeLink,
		Message:  fmt.Sprintf("Resume link is not usable: %s", reason),
		Category: "validation",
		Action:   "Use a public https link to your resume.",
	}
}

// NewBackendUnavailableError はバックエンド到達不能エラーを生成する。
func NewBackendUnavailableError() *APIError {
	return &APIError{
		Code:     ErrCodeBackendUnavailable,
		Message:  "The service is temporarily unavailable.",
		Category: "system",
		Action:   "Please wait a moment and try again.",
	}
}

// NewBackendError はバックエンドが返したエラーを生成する。
func NewBackendError(message string) *APIError {
	if message == "" {
		message = "Something went wrong"
	}
	return &APIError{
		Code:     ErrCodeBackendError,
		Message:  message,
		Category: "system",
		Action:   "Please try again later.",
	}
}
