// Package model はドメインモデルを定義する。
package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// Role はログイン中のクライアントが持つ役割を表す。
type Role string

const (
	// RoleNone は未ログイン（匿名）状態を表す。
	RoleNone Role = ""
	// RoleJobSeeker は求職者としてログインしている状態を表す。
	RoleJobSeeker Role = "jobseeker"
	// RoleEmployer は採用企業としてログインしている状態を表す。
	RoleEmployer Role = "employer"
)

// ID はバックエンドが返す識別子。
// バックエンドは数値と文字列の両方でIDを返すため、文字列に正規化して保持する。
// 空文字列はnull（未設定）を表す。
type ID string

// UnmarshalJSON は数値・文字列・nullのいずれも受け付ける。
func (id *ID) UnmarshalJSON(data []byte) error {
	s, err := decodeScalar(data)
	if err != nil {
		return fmt.Errorf("invalid id %s: %w", string(data), err)
	}
	*id = ID(s)
	return nil
}

// MarshalJSON は未設定ならnull、整数表現なら数値、それ以外は文字列として出力する。
func (id ID) MarshalJSON() ([]byte, error) {
	if id == "" {
		return []byte("null"), nil
	}
	// "007"や"+5"は数値リテラルとして不正なので、正規形と一致する場合だけ数値で出す。
	if n, err := strconv.ParseInt(string(id), 10, 64); err == nil && strconv.FormatInt(n, 10) == string(id) {
		return []byte(id), nil
	}
	return json.Marshal(string(id))
}

// IsZero はIDが未設定かを返す。
func (id ID) IsZero() bool {
	return id == ""
}

// String はIDの文字列表現を返す。
func (id ID) String() string {
	return string(id)
}

// Text は数値でも文字列でも届く値を文字列として保持する。
type Text string

// UnmarshalJSON は数値・文字列・nullのいずれも受け付ける。
func (t *Text) UnmarshalJSON(data []byte) error {
	s, err := decodeScalar(data)
	if err != nil {
		return err
	}
	*t = Text(s)
	return nil
}

func decodeScalar(data []byte) (string, error) {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		return "", nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return "", err
		}
		return s, nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return "", err
	}
	return n.String(), nil
}

// JobSeeker は求職者APIのログイン応答に含まれるユーザー情報。
type JobSeeker struct {
	ID       ID     `json:"id"`
	FullName string `json:"full_name"`
	Email    string `json:"email"`
	Role     string `json:"role"`
}

// Employer は採用企業APIのログイン応答に含まれる企業担当者情報。
type Employer struct {
	ID        ID     `json:"id"`
	FirstName string `json:"first_name"`
	Email     string `json:"email"`
	Role      string `json:"role"`
}

// RoleName はバックエンドが付与したrole文字列を返す。
func (j JobSeeker) RoleName() string { return j.Role }

// Subject は求職者のIDを返す。
func (j JobSeeker) Subject() ID { return j.ID }

// RoleName はバックエンドが付与したrole文字列を返す。
func (e Employer) RoleName() string { return e.Role }

// Subject は担当者のIDを返す。
func (e Employer) Subject() ID { return e.ID }

// Session はクライアントの認証状態をタグ付き共用体として表す。
// Roleに応じてJobSeekerかEmployerのどちらか一方だけが設定される。
type Session struct {
	Role      Role
	Token     string
	JobSeeker *JobSeeker
	Employer  *Employer
}

// Anonymous は未ログイン状態のSessionを返す。
func Anonymous() Session {
	return Session{Role: RoleNone}
}

// IdentityRole はバックエンドが付与したrole文字列を返す。
// 未ログイン時は空文字列。
func (s Session) IdentityRole() string {
	switch s.Role {
	case RoleJobSeeker:
		if s.JobSeeker != nil {
			return s.JobSeeker.Role
		}
	case RoleEmployer:
		if s.Employer != nil {
			return s.Employer.Role
		}
	}
	return ""
}

// SubjectID はログイン中の主体のIDを返す。
func (s Session) SubjectID() ID {
	switch s.Role {
	case RoleJobSeeker:
		if s.JobSeeker != nil {
			return s.JobSeeker.ID
		}
	case RoleEmployer:
		if s.Employer != nil {
			return s.Employer.ID
		}
	}
	return ""
}

// JobSeekerRegistration は求職者登録フォームの入力。
type JobSeekerRegistration struct {
	FullName        string `json:"full_name"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
	Phone           string `json:"phone"`
	LinkedIn        string `json:"linked_in"`
	Portfolio       string `json:"portfolio"`
	TermsAccepted   bool   `json:"terms_accepted"`
}

// EmployerRegistration は採用企業登録フォームの入力。
type EmployerRegistration struct {
	FirstName       string `json:"first_name"`
	LastName        string `json:"last_name"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
	Phone           string `json:"phone"`
	DateOfBirth     string `json:"date_of_birth"`
	Gender          string `json:"gender"`
	TermsAccepted   bool   `json:"terms_accepted"`
}
