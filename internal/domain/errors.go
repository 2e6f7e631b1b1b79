package domain

import "errors"

var (
	// ErrNotFound 目标用户/资源不存在
	ErrNotFound = errors.New("not found")
	// ErrAuthentication 登录或鉴权失败；刻意不区分原因，避免账号枚举
	ErrAuthentication = errors.New("unable to authenticate")
	// ErrInvalidToken 签名/格式/过期校验失败，只在 TokenService 内部使用
	ErrInvalidToken = errors.New("invalid token")
	// ErrDuplicateKey 唯一键冲突（目前只有 email）
	ErrDuplicateKey = errors.New("duplicate key")
)

// ValidationError 字段校验失败
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return e.Field + ": " + e.Reason
}

func invalid(field, reason string) error { return &ValidationError{Field: field, Reason: reason} }

// DuplicateKeyError 带字段名的唯一冲突，errors.Is(err, ErrDuplicateKey) 成立
type DuplicateKeyError struct {
	Field string
}

func (e *DuplicateKeyError) Error() string { return e.Field + " is already registered" }

func (e *DuplicateKeyError) Is(target error) bool { return target == ErrDuplicateKey }

// IsValidation 便捷判断
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
