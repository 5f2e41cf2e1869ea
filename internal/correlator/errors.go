package correlator

import (
	"errors"
	"fmt"
	"strings"
)

// Code 处理器终止性错误分类
type Code string

const (
	// CodeMissingKey 关联键缺失，无任何副作用
	CodeMissingKey Code = "missing_key"
	// CodeValidationError 必填字段缺失或格式错误，不做部分写入
	CodeValidationError Code = "validation_error"
	// CodeStorageError 落库失败，唯一允许由传输层重投的错误类
	CodeStorageError Code = "storage_error"
)

// HandlerError 单个事件的结构化失败结果
// 发布/确认类失败不在此列：它们只记日志，不影响处理结果
type HandlerError struct {
	Code          Code
	MissingFields []string
	Err           error
}

func (e *HandlerError) Error() string {
	switch {
	case len(e.MissingFields) > 0:
		return fmt.Sprintf("%s: missing fields [%s]", e.Code, strings.Join(e.MissingFields, ", "))
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Code, e.Err)
	default:
		return string(e.Code)
	}
}

func (e *HandlerError) Unwrap() error {
	return e.Err
}

func missingKeyError(key string) *HandlerError {
	return &HandlerError{Code: CodeMissingKey, MissingFields: []string{key}}
}

func validationError(fields []string) *HandlerError {
	return &HandlerError{Code: CodeValidationError, MissingFields: fields}
}

func storageError(err error) *HandlerError {
	return &HandlerError{Code: CodeStorageError, Err: err}
}

// ErrorCode 提取错误分类，非处理器错误返回空串
func ErrorCode(err error) Code {
	var he *HandlerError
	if errors.As(err, &he) {
		return he.Code
	}
	return ""
}
