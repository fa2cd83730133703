// Package token はバックエンドが発行するJWTの有効期限を判定する。
// 署名は検証しない。期限判定だけを行う。
package token

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
)

// ErrMalformed はトークンの形式が不正な場合のエラー。
var ErrMalformed = errors.New("malformed token")

// ErrNoExpiry はexpクレームが存在しないか数値でない場合のエラー。
var ErrNoExpiry = errors.New("token has no numeric exp claim")

// time.Timeとして扱えるexpの範囲。範囲外の値は端に丸める。
var (
	minExpiry = time.Date(1, time.January, 1, 0, 0, 0, 0, time.UTC).Unix()
	maxExpiry = time.Date(9999, time.December, 31, 23, 59, 59, 0, time.UTC).Unix()
)

// ExpiresAt はトークンのペイロードからexpクレームを取り出す。
// ヘッダーと署名は参照しない。
func ExpiresAt(token string) (time.Time, error) {
	exp, err := expClaim(token)
	if err != nil {
		return time.Time{}, err
	}
	switch {
	case exp > float64(maxExpiry):
		return time.Unix(maxExpiry, 0), nil
	case exp < float64(minExpiry):
		return time.Unix(minExpiry, 0), nil
	}
	return time.Unix(int64(exp), 0), nil
}

// IsExpired はトークンが期限切れかを返す。
// 形式不正・デコード失敗・exp欠落はすべて期限切れとみなす。
// exp がちょうど現在時刻と等しい場合はまだ有効。
func IsExpired(token string, now time.Time) bool {
	exp, err := expClaim(token)
	if err != nil {
		return true
	}
	return exp < float64(now.Unix())
}

func expClaim(token string) (float64, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return 0, fmt.Errorf("%w: expected 3 segments, got %d", ErrMalformed, len(parts))
	}

	payload, err := decodeSegment(parts[1])
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	var claims map[string]any
	if err := json.Unmarshal(payload, &claims); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	exp, ok := claims["exp"].(float64)
	if !ok || math.IsNaN(exp) || math.IsInf(exp, 0) {
		return 0, ErrNoExpiry
	}
	return exp, nil
}

// decodeSegment は=で4の倍数にパディングしてからbase64デコードする。
// URLセーフ・標準のどちらのアルファベットも受け付ける。
func decodeSegment(seg string) ([]byte, error) {
	if seg == "" {
		return nil, errors.New("empty payload")
	}
	seg = strings.TrimRight(seg, "=")
	if rem := len(seg) % 4; rem != 0 {
		seg += strings.Repeat("=", 4-rem)
	}
	if b, err := base64.URLEncoding.DecodeString(seg); err == nil {
		return b, nil
	}
	return base64.StdEncoding.DecodeString(seg)
}
