package model

// NoticeLevel はユーザー向け通知の種類。
type NoticeLevel string

const (
	NoticeSuccess NoticeLevel = "success"
	NoticeInfo    NoticeLevel = "info"
	NoticeError   NoticeLevel = "error"
)

// Notice は画面にトースト表示するユーザー向けメッセージ。
type Notice struct {
	Level   NoticeLevel `json:"level"`
	Message string      `json:"message"`
}

// Success は成功通知を生成する。
func Success(msg string) Notice {
	return Notice{Level: NoticeSuccess, Message: msg}
}

// Info は情報通知を生成する。
func Info(msg string) Notice {
	return Notice{Level: NoticeInfo, Message: msg}
}

// Failure はエラー通知を生成する。
func Failure(msg string) Notice {
	return Notice{Level: NoticeError, Message: msg}
}
