package domain

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

const (
	MinPasswordLen   = 7
	forbiddenPwdWord = "password"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// 错误里用 json 字段名
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// NormalizeEmail trim + lower，存储和查询两侧共用
func NormalizeEmail(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

// Normalize 去掉首尾空白，email 小写
func (u *User) Normalize() {
	u.Name = strings.TrimSpace(u.Name)
	u.Email = NormalizeEmail(u.Email)
}

// Validate 校验资料字段（不含密码，密码见 ValidatePassword）
func (u *User) Validate() error {
	err := validate.Struct(u)
	if err == nil {
		return nil
	}
	var ves validator.ValidationErrors
	if !errors.As(err, &ves) || len(ves) == 0 {
		return err
	}
	fe := ves[0]
	switch fe.Tag() {
	case "required":
		return invalid(fe.Field(), "is required")
	case "email":
		return invalid(fe.Field(), "email is invalid")
	case "gte":
		return invalid(fe.Field(), "cannot be negative")
	default:
		return invalid(fe.Field(), "failed on "+fe.Tag())
	}
}

// NormalizePassword 明文只做 trim
func NormalizePassword(pw string) string { return strings.TrimSpace(pw) }

// ValidatePassword 至少 7 位（trim 后），且不能包含 "password"（不区分大小写）
func ValidatePassword(pw string) error {
	pw = NormalizePassword(pw)
	if pw == "" {
		return invalid("password", "is required")
	}
	if len([]rune(pw)) < MinPasswordLen {
		return invalid("password", "must be at least 7 characters")
	}
	if strings.Contains(strings.ToLower(pw), forbiddenPwdWord) {
		return invalid("password", `cannot contain "password"`)
	}
	return nil
}

// Normalize 描述去空白
func (t *Task) Normalize() { t.Description = strings.TrimSpace(t.Description) }

// Validate 描述必填
func (t *Task) Validate() error {
	if t.Description == "" {
		return invalid("description", "is required")
	}
	if t.OwnerID == "" {
		return invalid("ownerId", "is required")
	}
	return nil
}
