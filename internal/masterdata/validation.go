package masterdata

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/payables/internal/shared"
)

var (
	validateOnce sync.Once
	validate     *validator.Validate
	hundred      = decimal.NewFromInt(100)
)

func validatorInstance() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		_ = validate.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
			return strings.TrimSpace(fl.Field().String()) != ""
		})
		validate.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
	})
	return validate
}

// Validate checks a master-data record against its schema.
func Validate(v any) error {
	if err := validatorInstance().Struct(v); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) {
			msgs := make([]string, 0, len(fieldErrs))
			for _, fe := range fieldErrs {
				msgs = append(msgs, describe(fe))
			}
			return shared.Validation(strings.Join(msgs, "; "))
		}
		return shared.WrapError(err, shared.KindValidation, "", "invalid payload")
	}
	if p, ok := v.(InvoiceProfile); ok {
		return validateTDS(p.TDSPercentage)
	}
	if p, ok := v.(*InvoiceProfile); ok && p != nil {
		return validateTDS(p.TDSPercentage)
	}
	return nil
}

func validateTDS(pct *decimal.Decimal) error {
	if pct == nil {
		return nil
	}
	if pct.IsNegative() || pct.GreaterThan(hundred) {
		return shared.Validation("tds_percentage must be between 0 and 100")
	}
	return nil
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required", "notblank":
		return fmt.Sprintf("%s is required", fe.Field())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", fe.Field(), fe.Param())
	case "len":
		return fmt.Sprintf("%s must be exactly %s characters", fe.Field(), fe.Param())
	case "email":
		return fmt.Sprintf("%s must be a valid email", fe.Field())
	case "alphanum":
		return fmt.Sprintf("%s must be alphanumeric", fe.Field())
	case "gte", "lte":
		return fmt.Sprintf("%s is out of range", fe.Field())
	default:
		return fmt.Sprintf("%s is invalid", fe.Field())
	}
}
