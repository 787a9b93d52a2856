// Package validation содержит проверку входных данных HTTP-запросов.
package validation

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

// ErrValidationFailed возвращается, если структура не прошла проверку.
var ErrValidationFailed = errors.New("validation failed")

var (
	tokenPattern   = regexp.MustCompile(`^[a-z][a-z0-9_-]{0,31}$`)
	productPattern = regexp.MustCompile(`^[a-z][a-z0-9_-]{0,63}$`)
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
	errValidate  error
)

func initValidator() (*validator.Validate, error) {
	v := validator.New(validator.WithRequiredStructEnabled())

	// coin_token: имя жетона. Нераспознанные, но корректно записанные жетоны допустимы:
	// автомат сам отправит их в лоток возврата.
	if err := v.RegisterValidation("coin_token", func(fl validator.FieldLevel) bool {
		return tokenPattern.MatchString(fl.Field().String())
	}); err != nil {
		return nil, fmt.Errorf("register coin_token: %w", err)
	}

	if err := v.RegisterValidation("product_id", func(fl validator.FieldLevel) bool {
		return productPattern.MatchString(fl.Field().String())
	}); err != nil {
		return nil, fmt.Errorf("register product_id: %w", err)
	}

	return v, nil
}

func get() (*validator.Validate, error) {
	validateOnce.Do(func() {
		validate, errValidate = initValidator()
	})
	return validate, errValidate
}

// Struct проверяет структуру по тегам validate.
func Struct(s any) error {
	v, err := get()
	if err != nil {
		return err
	}

	if err := v.Struct(s); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				fields = append(fields, fmt.Sprintf("%s:%s", fe.Field(), fe.Tag()))
			}
			return fmt.Errorf("%w: %s", ErrValidationFailed, strings.Join(fields, ", "))
		}
		return fmt.Errorf("%w: %w", ErrValidationFailed, err)
	}
	return nil
}

// ProductID проверяет идентификатор товара по правилу product_id.
func ProductID(id string) error {
	v, err := get()
	if err != nil {
		return err
	}

	if err := v.Var(id, "required,product_id"); err != nil {
		return fmt.Errorf("%w: product id %q", ErrValidationFailed, id)
	}
	return nil
}

// NormalizeToken приводит имя жетона к каноническому виду.
func NormalizeToken(token string) string {
	return strings.ToLower(strings.TrimSpace(token))
}
