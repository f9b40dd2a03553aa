package service

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"backoffice/internal/domain"
)

const dateLayout = "2006-01-02"

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	_ = v.RegisterValidation("store", func(fl validator.FieldLevel) bool {
		return domain.Store(fl.Field().String()).Valid()
	})
	_ = v.RegisterValidation("salesperson", func(fl validator.FieldLevel) bool {
		return domain.Salesperson(fl.Field().String()).Valid()
	})
	_ = v.RegisterValidation("category", func(fl validator.FieldLevel) bool {
		return domain.FinancialCategory(fl.Field().String()).Valid()
	})
	return v
}

// structMessages runs the tag rules on req and renders every failure.
func (s *Service) structMessages(req any) []string {
	err := s.validate.Struct(req)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return []string{err.Error()}
	}

	messages := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		messages = append(messages, fieldMessage(fe))
	}
	return messages
}

func fieldMessage(fe validator.FieldError) string {
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "min":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("%s must have at least %s characters", field, fe.Param())
		}
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "gte":
		return fmt.Sprintf("%s must be %s or greater", field, fe.Param())
	case "store":
		return fmt.Sprintf("store must be one of %s", joinMembers(domain.Stores()))
	case "salesperson":
		return fmt.Sprintf("salesperson must be one of %s", joinMembers(domain.Salespeople()))
	case "category":
		return fmt.Sprintf("category must be one of %s", joinMembers(domain.Categories()))
	default:
		return fmt.Sprintf("%s is invalid", field)
	}
}

func joinMembers[T ~string](members []T) string {
	parts := make([]string, len(members))
	for i, m := range members {
		parts[i] = string(m)
	}
	return strings.Join(parts, ", ")
}

// ParseDate accepts a calendar day or a full RFC 3339 timestamp and returns
// it in UTC.
func ParseDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if t, err := time.Parse(dateLayout, raw); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("date must be YYYY-MM-DD")
	}
	return t.UTC(), nil
}

// dateMessages adds the parse failure only when the tag rules did not
// already flag the date as missing.
func dateMessages(raw string, messages []string) (time.Time, []string) {
	if strings.TrimSpace(raw) == "" {
		return time.Time{}, messages
	}
	t, err := ParseDate(raw)
	if err != nil {
		return time.Time{}, append(messages, err.Error())
	}
	return t, messages
}
