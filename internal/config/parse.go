package config

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"

	"github.com/psantana5/slowdown/internal/throttle"
)

var validate *validator.Validate
var translator ut.Translator

func init() {
	validate = validator.New()
	translator, _ = ut.New(en.New(), en.New()).GetTranslator("en")
	if err := en_translations.RegisterDefaultTranslations(validate, translator); err != nil {
		panic(err)
	}
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("mapstructure"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
}

// Validate checks c against its declared tags. Every failure is an
// InvalidArgument listing the offending keys.
func Validate(c *Config) error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}

	verrors, ok := err.(validator.ValidationErrors)
	if !ok {
		return throttle.NewError(throttle.InvalidArgument, "validate", 0, "invalid configuration", err)
	}

	msgs := make([]string, 0, len(verrors))
	for _, verror := range verrors {
		msgs = append(msgs, verror.Translate(translator))
	}
	return throttle.NewError(throttle.InvalidArgument, "validate", 0,
		"invalid configuration: "+strings.Join(msgs, "; "), nil)
}

// ParsePID parses a process id. The whole string must be a base-10
// integer that fits a pid_t and is positive.
func ParsePID(s string) (int, error) {
	n, err := strconv.ParseInt(s, 10, 32)
	if err != nil {
		return 0, throttle.NewError(throttle.InvalidArgument, "parse", 0,
			fmt.Sprintf("unable to parse PID argument %q as int", s), nil)
	}
	if n <= 0 {
		return 0, throttle.NewError(throttle.InvalidArgument, "parse", 0,
			fmt.Sprintf("PID must be positive, got %d", n), nil)
	}
	return int(n), nil
}

// ParsePausePercent parses a pause percentage: a whole base-10 integer in [0, 100].
func ParsePausePercent(s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, throttle.NewError(throttle.InvalidArgument, "parse", 0,
			fmt.Sprintf("unable to parse pause percent argument %q as int", s), nil)
	}
	if n < 0 || n > 100 {
		return 0, throttle.NewError(throttle.InvalidArgument, "parse", 0,
			fmt.Sprintf("pause percent should be between 0 and 100, got %d", n), nil)
	}
	return n, nil
}
