// Package validator provides custom validation tags shared by Gin request
// binding and configuration validation.
package validator

import (
	"regexp"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/robfig/cron/v3"

	"wealthsync/internal/fundcode"
)

var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

var customTags = map[string]validator.Func{
	"regexp":   validateRegexp,
	"cron":     validateCron,
	"fundcode": validateFundCode,
}

// Register registers all custom validators with the Gin binding engine.
func Register() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		registerAll(v)
	}
}

// New returns a standalone validator with the custom tags registered.
func New() *validator.Validate {
	v := validator.New()
	registerAll(v)
	return v
}

func registerAll(v *validator.Validate) {
	for tag, fn := range customTags {
		_ = v.RegisterValidation(tag, fn)
	}
}

func validateRegexp(fl validator.FieldLevel) bool {
	_, err := regexp.Compile(fl.Field().String())
	return err == nil
}

func validateCron(fl validator.FieldLevel) bool {
	_, err := cronParser.Parse(fl.Field().String())
	return err == nil
}

func validateFundCode(fl validator.FieldLevel) bool {
	_, ok := fundcode.Normalize(fl.Field().String())
	return ok
}
