// Package backend は求職者APIと採用企業APIのHTTPクライアントを提供する。
// すべての呼び出しはcontextでキャンセルでき、レスポンスは境界で検証する。
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"sort"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/net/publicsuffix"

	"github.com/hitoshi/jobportal/internal/metrics"
)

const (
	// maxResponseSize はレスポンスボディの最大サイズ（5MB）。
	maxResponseSize = 5 * 1024 * 1024
	userAgent       = "Jobportal/1.0"
)

// NewHTTPClient はバックエンド呼び出し用の*http.Clientを生成する。
// 資格情報付きリクエストのためにCookieJarを持ち、トランスポートはOpenTelemetryで計装する。
func NewHTTPClient(timeout time.Duration) (*http.Client, error) {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("cookie jarの作成に失敗しました: %w", err)
	}
	return &http.Client{
		Timeout:   timeout,
		Jar:       jar,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}, nil
}

// client は2つのAPIクライアントが共有するJSON送受信処理。
type client struct {
	name       string // "jobseeker" または "employer"
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
	metrics    metrics.MetricsCollector
}

func newClient(name, baseURL string, httpClient *http.Client, logger *slog.Logger, m metrics.MetricsCollector) client {
	if m == nil {
		m = metrics.Nop{}
	}
	return client{
		name:       name,
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
		logger:     logger,
		metrics:    m,
	}
}

// call はpathに対してJSONリクエストを送り、レスポンスをoutへデコードする。
// tokenが空でなければBearerトークンを付与する。outがnilならボディは読み捨てる。
func (c *client) call(ctx context.Context, method, path, token string, body, out any) error {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("リクエストボディのエンコードに失敗しました: %w", err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	c.metrics.RecordBackendLatency(c.name, time.Since(start))
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.metrics.RecordBackendFailure(c.name, "transport")
		c.logger.Error("バックエンドAPIの呼び出しに失敗しました",
			slog.String("backend", c.name),
			slog.String("method", method),
			slog.String("path", path),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("%w: %s %s: %v", ErrUnavailable, method, path, err)
	}
	defer resp.Body.Close()

	c.metrics.RecordBackendStatus(c.name, resp.StatusCode)

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		c.metrics.RecordBackendFailure(c.name, "read")
		return fmt.Errorf("%w: レスポンスボディの読み取りに失敗しました: %v", ErrUnavailable, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		httpErr := &HTTPError{
			Backend: c.name,
			Status:  resp.StatusCode,
			Message: extractMessage(data),
		}
		level := slog.LevelWarn
		if httpErr.Class() == StatusClassServer {
			level = slog.LevelError
		}
		c.logger.Log(ctx, level, "バックエンドAPIがエラーステータスを返しました",
			slog.String("backend", c.name),
			slog.String("method", method),
			slog.String("path", path),
			slog.Int("http_status", resp.StatusCode),
		)
		return httpErr
	}

	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		c.metrics.RecordBackendFailure(c.name, "decode")
		c.logger.Error("バックエンドAPIのレスポンスのパースに失敗しました",
			slog.String("backend", c.name),
			slog.String("path", path),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	return nil
}

// extractMessage はエラーレスポンス本文からメッセージを取り出す。
// message、error、errors（項目名順で最初のもの）の順に探す。
func extractMessage(data []byte) string {
	var body struct {
		Message string              `json:"message"`
		Error   string              `json:"error"`
		Errors  map[string][]string `json:"errors"`
	}
	if err := json.Unmarshal(data, &body); err != nil {
		return ""
	}
	if body.Message != "" {
		return body.Message
	}
	if body.Error != "" {
		return body.Error
	}
	fields := make([]string, 0, len(body.Errors))
	for k := range body.Errors {
		fields = append(fields, k)
	}
	sort.Strings(fields)
	for _, k := range fields {
		if len(body.Errors[k]) > 0 {
			return body.Errors[k][0]
		}
	}
	return ""
}

// pathf はパス中の各要素をエスケープして連結する。
func pathf(format string, args ...any) string {
	escaped := make([]any, len(args))
	for i, a := range args {
		escaped[i] = url.PathEscape(fmt.Sprint(a))
	}
	return fmt.Sprintf(format, escaped...)
}
