package service

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"unicode/utf8"

	"warbler/internal/model"
	"warbler/pkg/password"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// 错误中使用json字段名
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("password", func(fl validator.FieldLevel) bool {
		n := utf8.RuneCountInString(fl.Field().String())
		return n >= password.MinLength && n <= password.MaxLength
	})
	return v
}

// validateStruct 校验结构体，返回第一个字段级校验错误
func validateStruct(s interface{}) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return model.NewInternalError(err)
	}

	fe := verrs[0]
	return model.NewValidationError(fe.Field(), validationMessage(fe))
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "This field is required."
	case "max":
		return fmt.Sprintf("Field cannot be longer than %s characters.", fe.Param())
	case "min":
		return fmt.Sprintf("Field must be at least %s characters long.", fe.Param())
	case "email":
		return "Invalid email address."
	case "url":
		return "Invalid URL."
	case "password":
		return fmt.Sprintf("Password must be between %d and %d characters.", password.MinLength, password.MaxLength)
	default:
		return fmt.Sprintf("Invalid value (%s).", fe.Tag())
	}
}
