package signalapi

import (
	"errors"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// ValidationError lists the request fields that were missing or malformed.
type ValidationError struct {
	Missing []string
	Invalid []string
}

func (e *ValidationError) Error() string {
	var parts []string
	if len(e.Missing) > 0 {
		parts = append(parts, "missing "+strings.Join(e.Missing, ", "))
	}
	if len(e.Invalid) > 0 {
		parts = append(parts, "invalid "+strings.Join(e.Invalid, ", "))
	}
	return strings.Join(parts, "; ")
}

// Prepare normalizes the form, fills defaults and validates it. End may not
// fall before Start.
func (r *BacktestRequest) Prepare() error {
	r.Ticker = NormalizeTicker(r.Ticker)
	r.Interval = Interval(strings.ToLower(strings.TrimSpace(string(r.Interval))))
	r.Start = strings.TrimSpace(r.Start)
	r.End = strings.TrimSpace(r.End)

	if err := defaults.Set(r); err != nil {
		return newError(CodeValidation, "apply defaults", err)
	}
	if err := validate.Struct(r); err != nil {
		return newError(CodeValidation, "invalid backtest request", toValidationError(err))
	}
	start, _ := time.Parse(time.DateOnly, r.Start)
	end, _ := time.Parse(time.DateOnly, r.End)
	if end.Before(start) {
		return newError(CodeValidation, "invalid backtest request", &ValidationError{Invalid: []string{"end"}})
	}
	return nil
}

func toValidationError(err error) error {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}
	out := &ValidationError{}
	for _, fe := range fieldErrs {
		name := strings.ToLower(fe.Field())
		if fe.Tag() == "required" {
			out.Missing = append(out.Missing, name)
			continue
		}
		out.Invalid = append(out.Invalid, name)
	}
	return out
}
