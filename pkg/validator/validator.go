package validator

import (
	"errors"
	"reflect"
	"regexp"
	"strings"
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	entranslations "github.com/go-playground/validator/v10/translations/en"

	"crisp-academy/backend/internal/model"
)

// custom validation tags
const (
	notBlankTag      = "notblank"
	crispCategoryTag = "crisp_category"
	yearMonthTag     = "yearmonth"
)

var (
	translator ut.Translator
	setupOnce  sync.Once
	setupErr   error

	yearMonthRe = regexp.MustCompile(`^\d{4}-(0[1-9]|1[0-2])$`)
)

// Setup installs the custom tags on gin's binding engine. Safe to call more than once.
func Setup() error {
	setupOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			setupErr = errors.New("validator: gin binding engine is not go-playground/validator")
			return
		}
		setupErr = Register(v)
	})
	return setupErr
}

// Register adds the custom tags, json field names and english messages to v.
func Register(v *validator.Validate) error {
	_en := en.New()
	uni := ut.New(_en, _en)
	trans, _ := uni.GetTranslator("en")
	if err := entranslations.RegisterDefaultTranslations(v, trans); err != nil {
		return err
	}
	translator = trans

	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		for _, tag := range []string{"json", "form"} {
			name := strings.SplitN(fld.Tag.Get(tag), ",", 2)[0]
			if name == "-" {
				return ""
			}
			if name != "" {
				return name
			}
		}
		return fld.Name
	})

	if err := v.RegisterValidation(notBlankTag, notBlank); err != nil {
		return err
	}
	if err := v.RegisterValidation(crispCategoryTag, crispCategory); err != nil {
		return err
	}
	if err := v.RegisterValidation(yearMonthTag, yearMonth); err != nil {
		return err
	}

	registerFn := func(ut.Translator) error { return nil }
	for _, tag := range []string{notBlankTag, crispCategoryTag, yearMonthTag} {
		if err := v.RegisterTranslation(tag, trans, registerFn, translateCustom); err != nil {
			return err
		}
	}
	return nil
}

// Translate turns validator errors into one readable error. Other errors pass through.
func Translate(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || translator == nil {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fe.Translate(translator))
	}
	return errors.New(strings.Join(msgs, "; "))
}

func translateCustom(_ ut.Translator, fe validator.FieldError) string {
	switch fe.Tag() {
	case notBlankTag:
		return fe.Field() + " cannot be blank"
	case crispCategoryTag:
		return fe.Field() + " must be one of " + strings.Join(model.Categories, ", ")
	case yearMonthTag:
		return fe.Field() + " must be formatted as YYYY-MM"
	default:
		return fe.Error()
	}
}

func notBlank(fl validator.FieldLevel) bool {
	if str, ok := fl.Field().Interface().(string); ok {
		return strings.TrimSpace(str) != ""
	}
	return false
}

func crispCategory(fl validator.FieldLevel) bool {
	if str, ok := fl.Field().Interface().(string); ok {
		return model.IsCategory(str)
	}
	return false
}

func yearMonth(fl validator.FieldLevel) bool {
	if str, ok := fl.Field().Interface().(string); ok {
		return yearMonthRe.MatchString(str)
	}
	return false
}
