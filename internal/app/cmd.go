package app

// Command はアプリケーションの起動モードを表す。
type Command string

const (
	// CommandServe はBFFサーバーモードで起動することを示す。
	CommandServe Command = "serve"
	// CommandWorker はワーカーモードで起動することを示す。
	CommandWorker Command = "worker"
	// CommandMigrate はデータベースマイグレーションを実行することを示す。
	CommandMigrate Command = "migrate"
	// CommandHealthcheck はヘルスチェックを実行することを示す。
	// distroless環境でのDockerヘルスチェック用。
	CommandHealthcheck Command = "healthcheck"

	// CommandLogin はローカルクライアントでログインする。
	CommandLogin Command = "login"
	// CommandLogout はローカルクライアントのセッションを終了する。
	CommandLogout Command = "logout"
	// CommandStatus はローカルクライアントのセッションを表示する。
	CommandStatus Command = "status"
)

// ParseCommand はコマンドライン引数からサブコマンドを解析する。
// 引数が空またはサポート外のコマンドの場合はCommandServeを返す。
func ParseCommand(args []string) Command {
	if len(args) == 0 {
		return CommandServe
	}

	switch args[0] {
	case "worker":
		return CommandWorker
	case "serve":
		return CommandServe
	case "migrate":
		return CommandMigrate
	case "healthcheck":
		return CommandHealthcheck
	case "login":
		return CommandLogin
	case "logout":
		return CommandLogout
	case "status":
		return CommandStatus
	default:
		return CommandServe
	}
}

// IsCLI はSTATE_DIRのローカルクライアントを操作するコマンドかを返す。
func (c Command) IsCLI() bool {
	switch c {
	case CommandLogin, CommandLogout, CommandStatus:
		return true
	}
	return false
}
