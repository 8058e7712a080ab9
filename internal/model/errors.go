package model

import "fmt"

// UIError は画面に表示するエラーの統一フォーマットを表す。
// 原因カテゴリと利用者向けの対処方法を含む。
type UIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, cart, backend, system
	Action   string // 利用者向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *UIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeUnauthorized       = "UNAUTHORIZED"
	ErrCodeForbidden          = "FORBIDDEN"
	ErrCodeBackendUnreachable = "BACKEND_UNREACHABLE"
	ErrCodeInvalidQuantity    = "INVALID_QUANTITY"
	ErrCodeCartBusy           = "CART_BUSY"
	ErrCodeValidation         = "VALIDATION"
	ErrCodeNotFound           = "NOT_FOUND"
	ErrCodeOperationFailed    = "OPERATION_FAILED"
)

// NewUnauthorizedError は未認証エラーを生成する。
func NewUnauthorizedError() *UIError {
	return &UIError{
		Code:     ErrCodeUnauthorized,
		Message:  "Your session has expired.",
		Category: "auth",
		Action:   "Please sign in again.",
	}
}

// NewForbiddenError は権限不足エラーを生成する。
func NewForbiddenError() *UIError {
	return &UIError{
		Code:     ErrCodeForbidden,
		Message:  "You do not have access to this page.",
		Category: "auth",
		Action:   "Sign in with an account that has the required role.",
	}
}

// NewBackendUnreachableError はAPIサーバーに到達できない場合のエラーを生成する。
func NewBackendUnreachableError() *UIError {
	return &UIError{
		Code:     ErrCodeBackendUnreachable,
		Message:  "Failed to connect to server.",
		Category: "backend",
		Action:   "Check that the backend is reachable and try again.",
	}
}

// NewInvalidQuantityError は数量が1未満の場合のエラーを生成する。
func NewInvalidQuantityError(quantity int) *UIError {
	return &UIError{
		Code:     ErrCodeInvalidQuantity,
		Message:  fmt.Sprintf("Invalid quantity: %d", quantity),
		Category: "validation",
		Action:   "Quantity must be at least 1.",
	}
}

// NewCartBusyError は同一商品の更新が進行中の場合のエラーを生成する。
func NewCartBusyError(productID string) *UIError {
	return &UIError{
		Code:     ErrCodeCartBusy,
		Message:  fmt.Sprintf("An update for %s is already in progress.", productID),
		Category: "cart",
		Action:   "Wait for the current update to finish.",
	}
}

// NewValidationError は入力値エラーを生成する。
func NewValidationError(message string) *UIError {
	return &UIError{
		Code:     ErrCodeValidation,
		Message:  message,
		Category: "validation",
		Action:   "Correct the highlighted fields and submit again.",
	}
}

// NewNotFoundError は対象が見つからない場合のエラーを生成する。
func NewNotFoundError(what string) *UIError {
	return &UIError{
		Code:     ErrCodeNotFound,
		Message:  fmt.Sprintf("%s not found.", what),
		Category: "system",
		Action:   "Go back and pick another entry.",
	}
}

// NewOperationFailedError は操作失敗エラーを生成する。
// reasonにはサーバーから返されたメッセージを渡す。
func NewOperationFailedError(operation, reason string) *UIError {
	return &UIError{
		Code:     ErrCodeOperationFailed,
		Message:  fmt.Sprintf("Failed to %s: %s", operation, reason),
		Category: "system",
		Action:   "Please try again later.",
	}
}
