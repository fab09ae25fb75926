// Package validation wires go-playground/validator with English messages and
// the custom tags used by request payloads.
package validation

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	enTranslations "github.com/go-playground/validator/v10/translations/en"

	"github.com/noah-isme/class-scheduling-api/internal/models"
	appErrors "github.com/noah-isme/class-scheduling-api/pkg/errors"
)

const (
	weekdayTag  = "weekday"
	weekdayText = "{0} must be one of M, T, W, Th, F, S, Su"
	hhmmTag     = "hhmm"
	hhmmText    = "{0} must be a time formatted as HH:MM"
)

// Validator validates structs and renders failures as field messages.
type Validator struct {
	validate   *validator.Validate
	translator ut.Translator
}

// New builds a validator using JSON field names and English translations.
func New() *Validator {
	v := validator.New()

	english := en.New()
	uni := ut.New(english, english)
	translator, _ := uni.GetTranslator("en")
	_ = enTranslations.RegisterDefaultTranslations(v, translator)

	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	out := &Validator{validate: v, translator: translator}
	out.register(weekdayTag, weekdayText, isWeekday)
	out.register(hhmmTag, hhmmText, isTimeOfDay)
	return out
}

// Engine exposes the underlying validator.
func (v *Validator) Engine() *validator.Validate {
	return v.validate
}

// Struct validates s and returns an *appErrors.Error carrying field messages on failure.
func (v *Validator) Struct(s interface{}) error {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payload")
	}
	return appErrors.WithDetails(
		appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, appErrors.ErrValidation.Message),
		v.Translate(fieldErrs),
	)
}

// Translate maps each failing field to its English message.
func (v *Validator) Translate(errs validator.ValidationErrors) map[string]string {
	out := make(map[string]string, len(errs))
	for _, fe := range errs {
		field := fe.Field()
		if ns := fe.Namespace(); strings.Contains(ns, ".") {
			field = ns[strings.Index(ns, ".")+1:]
		}
		out[field] = fe.Translate(v.translator)
	}
	return out
}

func (v *Validator) register(tag, text string, fn validator.Func) {
	_ = v.validate.RegisterValidation(tag, fn)
	_ = v.validate.RegisterTranslation(
		tag, v.translator,
		func(t ut.Translator) error { return t.Add(tag, text, true) },
		func(t ut.Translator, fe validator.FieldError) string {
			msg, _ := t.T(tag, fe.Field())
			return msg
		},
	)
}

func isWeekday(fl validator.FieldLevel) bool {
	_, err := models.ParseWeekday(fl.Field().String())
	return err == nil
}

func isTimeOfDay(fl validator.FieldLevel) bool {
	_, err := models.ParseTimeOfDay(fl.Field().String())
	return err == nil
}
