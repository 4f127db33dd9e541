package errors

import (
	stderrors "errors"
	"net/http"

	"gorm.io/gorm"
)

func BadRequest(message string) *Error   { return WithCode(http.StatusBadRequest, message) }
func Unauthorized(message string) *Error { return WithCode(http.StatusUnauthorized, message) }
func Forbidden(message string) *Error    { return WithCode(http.StatusForbidden, message) }
func NotFound(message string) *Error     { return WithCode(http.StatusNotFound, message) }
func Unavailable(message string) *Error  { return WithCode(http.StatusServiceUnavailable, message) }

// Internal 包装未预期的错误，对外只暴露通用信息
func Internal(err error) *Error {
	return &Error{
		Code:    http.StatusInternalServerError,
		Message: "internal server error",
		Err:     err,
		Stack:   captureStack(),
	}
}

// FromDB 把 gorm 错误翻译成带状态码的错误，其它错误原样返回
func FromDB(err error, resource string) error {
	switch {
	case err == nil:
		return nil
	case stderrors.Is(err, gorm.ErrRecordNotFound):
		return &Error{Code: http.StatusNotFound, Message: resource + " not found", Err: err}
	case stderrors.Is(err, gorm.ErrDuplicatedKey):
		return &Error{Code: http.StatusBadRequest, Message: resource + " already exists", Err: err}
	case stderrors.Is(err, gorm.ErrForeignKeyViolated):
		return &Error{Code: http.StatusBadRequest, Message: resource + " references a missing record", Err: err}
	}
	return err
}

// HTTPStatus 返回错误对应的 HTTP 状态码，未知错误为 500
func HTTPStatus(err error) int {
	if err == nil {
		return http.StatusOK
	}
	if code := GetCode(err); code >= 400 && code < 600 {
		return code
	}
	if stderrors.Is(err, gorm.ErrRecordNotFound) {
		return http.StatusNotFound
	}
	if stderrors.Is(err, gorm.ErrDuplicatedKey) {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// PublicMessage 返回可以给调用方看的错误信息
func PublicMessage(err error) string {
	if HTTPStatus(err) >= http.StatusInternalServerError {
		var e *Error
		if stderrors.As(err, &e) && e.Code >= 500 && e.Message != "" {
			return e.Message
		}
		return "internal server error"
	}
	return GetMessage(err)
}
