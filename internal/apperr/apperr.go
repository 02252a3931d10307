package apperr

import (
	"errors"

	"github.com/gofiber/fiber/v2"
)

// Code: UI tarafının yerelleştirilmiş metne çevirebildiği sabit hata kodu.
type Code string

const (
	CodeValidation        Code = "VALIDATION_ERROR"
	CodeNotFound          Code = "NOT_FOUND"
	CodeInactiveResource  Code = "INACTIVE_RESOURCE"
	CodeInsufficientStock Code = "INSUFFICIENT_STOCK"
	CodeAlreadyReversed   Code = "ALREADY_REVERSED"
	CodeTxnNotReversible  Code = "TXN_TYPE_NOT_REVERSIBLE"
	CodeConflict          Code = "CONFLICT"
	CodeAuthFailed        Code = "AUTH_FAILED"
	CodePwdChangeRequired Code = "PWD_CHANGE_REQUIRED"
	CodeForbidden         Code = "FORBIDDEN"
	CodeDB                Code = "DB_ERROR"
)

type AppError struct {
	Code    Code
	Message string
}

func (e *AppError) Error() string {
	return string(e.Code) + ": " + e.Message
}

func New(code Code, message string) *AppError {
	return &AppError{Code: code, Message: message}
}

// From: Herhangi bir hatadan AppError çıkarır. Fiber hataları HTTP durumuna
// göre koda çevrilir, geri kalanı DB_ERROR'a sarılır.
func From(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		switch fiberErr.Code {
		case fiber.StatusBadRequest:
			return New(CodeValidation, fiberErr.Message)
		case fiber.StatusNotFound:
			return New(CodeNotFound, fiberErr.Message)
		case fiber.StatusConflict:
			return New(CodeConflict, fiberErr.Message)
		case fiber.StatusUnauthorized:
			return New(CodeAuthFailed, fiberErr.Message)
		case fiber.StatusForbidden:
			return New(CodeForbidden, fiberErr.Message)
		}
	}
	return New(CodeDB, "Veritabanı işlemi başarısız")
}

// HTTPStatus: Hata kodunu HTTP durum koduna çevirir.
func HTTPStatus(code Code) int {
	switch code {
	case CodeValidation:
		return fiber.StatusBadRequest
	case CodeNotFound:
		return fiber.StatusNotFound
	case CodeInactiveResource, CodeInsufficientStock, CodeAlreadyReversed,
		CodeTxnNotReversible, CodeConflict:
		return fiber.StatusConflict
	case CodeAuthFailed:
		return fiber.StatusUnauthorized
	case CodePwdChangeRequired, CodeForbidden:
		return fiber.StatusForbidden
	default:
		return fiber.StatusInternalServerError
	}
}
