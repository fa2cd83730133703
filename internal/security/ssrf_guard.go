// Package security はアプリケーションのセキュリティ機能を提供する。
package security

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/netip"
	"net/url"
	"strings"
	"time"

	"github.com/doyensec/safeurl"
)

// LinkChecker は求職者が登録する外部リンク（履歴書・ポートフォリオ）を検証する。
type LinkChecker interface {
	// Check はURLを静的に検証し、SSRF防止付きクライアントで到達可能かを確認する。
	Check(ctx context.Context, rawURL string) error
}

// blockedPrefixes は外部リンクとして受け付けないアドレス範囲。
// safeurlはDNS解決後のIPも検証するので、ここではURLにIPが直書きされた場合だけを見る。
var blockedPrefixes = []netip.Prefix{
	netip.MustParsePrefix("0.0.0.0/8"),
	netip.MustParsePrefix("10.0.0.0/8"),
	netip.MustParsePrefix("100.64.0.0/10"),
	netip.MustParsePrefix("127.0.0.0/8"),
	netip.MustParsePrefix("169.254.0.0/16"),
	netip.MustParsePrefix("172.16.0.0/12"),
	netip.MustParsePrefix("192.168.0.0/16"),
	netip.MustParsePrefix("::1/128"),
	netip.MustParsePrefix("fc00::/7"),
	netip.MustParsePrefix("fe80::/10"),
}

// linkGuard はLinkCheckerの実装。
type linkGuard struct {
	client *http.Client
}

// NewLinkChecker はSSRF防止付きHTTPクライアントを持つLinkCheckerを生成する。
// safeurlはプライベートIP、ループバック、リンクローカル、メタデータIPへの接続を
// net.DialerのControlフックで拒否する。
func NewLinkChecker(timeout time.Duration) *linkGuard {
	config := safeurl.GetConfigBuilder().
		SetTimeout(timeout).
		SetAllowedSchemes("https").
		SetAllowedPorts(443).
		Build()

	return &linkGuard{client: safeurl.Client(config).Client}
}

// Check はURLを検証し、HEADリクエストで到達可能かを確認する。
// HEADを受け付けないサーバーにはGETで再試行する。
func (g *linkGuard) Check(ctx context.Context, rawURL string) error {
	if err := ValidateURL(rawURL); err != nil {
		return err
	}

	status, err := g.probe(ctx, http.MethodHead, rawURL)
	if err == nil && status == http.StatusMethodNotAllowed {
		status, err = g.probe(ctx, http.MethodGet, rawURL)
	}
	if err != nil {
		return fmt.Errorf("link is not reachable: %w", err)
	}
	if status >= 400 {
		return fmt.Errorf("link returned status %d", status)
	}
	return nil
}

func (g *linkGuard) probe(ctx context.Context, method, rawURL string) (int, error) {
	req, err := http.NewRequestWithContext(ctx, method, rawURL, nil)
	if err != nil {
		return 0, err
	}
	req.Header.Set("User-Agent", "Jobportal/1.0 LinkChecker")

	resp, err := g.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 64*1024))
	return resp.StatusCode, nil
}

// ValidateURL はDNS解決を伴わない静的な検証を行う。
// httpsのみを許可し、IPアドレス直書きのプライベート範囲とlocalhostを拒否する。
func ValidateURL(rawURL string) error {
	if rawURL == "" {
		return fmt.Errorf("empty URL")
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if !strings.EqualFold(parsed.Scheme, "https") {
		return fmt.Errorf("disallowed scheme: %q (only https is accepted)", parsed.Scheme)
	}

	host := strings.ToLower(parsed.Hostname())
	if host == "" {
		return fmt.Errorf("empty host in URL: %s", rawURL)
	}

	if addr, err := netip.ParseAddr(host); err == nil {
		addr = addr.Unmap()
		for _, p := range blockedPrefixes {
			if p.Contains(addr) {
				return fmt.Errorf("blocked IP address: %s", addr)
			}
		}
		return nil
	}

	if host == "localhost" || strings.HasSuffix(host, ".localhost") || strings.HasSuffix(host, ".internal") {
		return fmt.Errorf("blocked host: %s", host)
	}
	return nil
}
