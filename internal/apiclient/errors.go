package apiclient

import (
	"errors"
	"net/http"
)

// transportMessage はAPIサーバーに到達できなかった場合の利用者向けメッセージ。
const transportMessage = "Failed to connect to server. Ensure the backend is running."

var (
	// ErrUnauthorized は401/403応答を表す。本文の内容に関わらず一律に扱う。
	ErrUnauthorized = errors.New("unauthorized")
	// ErrTransport はリクエストがサーバーに届かなかった、または応答が返らなかったことを表す。
	ErrTransport = errors.New("failed to connect to server")
)

// StatusError はAPIサーバーが2xx以外のステータスを返したことを表す。
// 401/403の場合はerrors.Is(err, ErrUnauthorized)が真になる。
type StatusError struct {
	StatusCode int
	Status     string // "Not Found" などのステータステキスト
	Message    string // サーバーから返されたメッセージ、またはフォールバック文言
}

// Error はerrorインターフェースを実装する。
func (e *StatusError) Error() string {
	return e.Message
}

// Unauthorized は認証・認可エラーかどうかを返す。
func (e *StatusError) Unauthorized() bool {
	return e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden
}

// Is はErrUnauthorizedとの比較を可能にする。
func (e *StatusError) Is(target error) bool {
	return target == ErrUnauthorized && e.Unauthorized()
}

// TransportError は接続拒否などの通信レベルの失敗を表す。
// HTTPレベルのエラーとは異なるメッセージを持つ。
type TransportError struct {
	Err error
}

// Error はerrorインターフェースを実装する。
func (e *TransportError) Error() string {
	return transportMessage
}

// Unwrap は元のエラーを返す。
func (e *TransportError) Unwrap() error {
	return e.Err
}

// Is はErrTransportとの比較を可能にする。
func (e *TransportError) Is(target error) bool {
	return target == ErrTransport
}

// IsUnauthorized はエラーが401/403応答に由来するかを返す。
func IsUnauthorized(err error) bool {
	return errors.Is(err, ErrUnauthorized)
}

// IsTransport はエラーが通信レベルの失敗かを返す。
func IsTransport(err error) bool {
	return errors.Is(err, ErrTransport)
}

// StatusCode はエラーに含まれるHTTPステータスコードを返す。
// StatusErrorでない場合は0を返す。
func StatusCode(err error) int {
	var se *StatusError
	if errors.As(err, &se) {
		return se.StatusCode
	}
	return 0
}
