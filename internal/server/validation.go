package server

import (
	"reflect"
	"strings"
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/smallbiznis/invoicedesk/pkg/money"
)

const currencyTag = "currency"

var registerValidatorsOnce sync.Once

// registerValidators reports json field names and adds the currency rule to
// gin's shared validator.
func registerValidators() {
	registerValidatorsOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		v.RegisterTagNameFunc(func(field reflect.StructField) string {
			name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
			if name == "-" {
				return ""
			}
			return name
		})
		_ = v.RegisterValidation(currencyTag, func(fl validator.FieldLevel) bool {
			_, err := money.ParseCurrency(fl.Field().String())
			return err == nil
		})
	})
}
