// Package errors 提供應用程式錯誤處理
package errors

import (
	"errors"
	"fmt"
)

// 定義錯誤碼
const (
	// ErrCodeNotFound 資源未找到
	ErrCodeNotFound = "NOT_FOUND"
	// ErrCodeInvalidInput 無效輸入
	ErrCodeInvalidInput = "INVALID_INPUT"
	// ErrCodeInternal 內部錯誤
	ErrCodeInternal = "INTERNAL_ERROR"
	// ErrCodeUnavailable 服務不可用
	ErrCodeUnavailable = "SERVICE_UNAVAILABLE"
)

// AppError 應用程式錯誤
type AppError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
	Err     error  `json:"-"`
}

// Error 實現 error 介面
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap 實現 errors.Unwrap
func (e *AppError) Unwrap() error {
	return e.Err
}

// Is 實現 errors.Is，以錯誤碼比對
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// New 創建新的應用程式錯誤
func New(code, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// Wrap 包裝錯誤
func Wrap(err error, code, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// WithDetails 回傳帶有詳細資訊的副本
//
// 預定義錯誤是共用的，不能原地修改。
func (e *AppError) WithDetails(details string) *AppError {
	cp := *e
	cp.Details = details
	return &cp
}

// 預定義錯誤
var (
	// ErrItemNotFound 項目未找到
	ErrItemNotFound = New(ErrCodeNotFound, "Item not found")

	// ErrInvalidInput 請求內容不合法，Details 為回應給客戶端的說明
	ErrInvalidInput = New(ErrCodeInvalidInput, "invalid input")

	// ErrInternal 不對外揭露原因的內部錯誤
	ErrInternal = New(ErrCodeInternal, "internal server error")

	// ErrStoreUnavailable 資料庫不可用
	ErrStoreUnavailable = New(ErrCodeUnavailable, "store unavailable")

	// ErrCacheUnavailable 快取不可用
	ErrCacheUnavailable = New(ErrCodeUnavailable, "cache unavailable")
)

// StoreFailure 將資料庫驅動錯誤包裝為 ErrStoreUnavailable
func StoreFailure(err error, op string) *AppError {
	return ErrStoreUnavailable.wrapCause(err, op)
}

// CacheFailure 將快取驅動錯誤包裝為 ErrCacheUnavailable
func CacheFailure(err error, op string) *AppError {
	return ErrCacheUnavailable.wrapCause(err, op)
}

// InvalidInput 回傳帶有客戶端說明的 ErrInvalidInput
func InvalidInput(details string) *AppError {
	return ErrInvalidInput.WithDetails(details)
}

func (e *AppError) wrapCause(err error, details string) *AppError {
	cp := e.WithDetails(details)
	cp.Err = err
	return cp
}

// IsNotFound 檢查是否為未找到錯誤
func IsNotFound(err error) bool {
	return hasCode(err, ErrCodeNotFound)
}

// IsInvalidInput 檢查是否為無效輸入錯誤
func IsInvalidInput(err error) bool {
	return hasCode(err, ErrCodeInvalidInput)
}

// IsUnavailable 檢查是否為服務不可用錯誤
func IsUnavailable(err error) bool {
	return hasCode(err, ErrCodeUnavailable)
}

func hasCode(err error, code string) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}
