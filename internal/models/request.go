package models

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// FetchRequest describes one acquisition: a point, an inclusive date range,
// a use case and a provider choice. Requests are immutable once submitted.
type FetchRequest struct {
	Latitude  float64        `json:"latitude" validate:"gte=-90,lte=90"`
	Longitude float64        `json:"longitude" validate:"gte=-180,lte=180"`
	Start     Date           `json:"start_date"`
	End       Date           `json:"end_date"`
	UseCase   UseCase        `json:"use_case" validate:"required,oneof=single-location multi-location historical-deep real-time"`
	Provider  ProviderChoice `json:"provider"`
	Label     string         `json:"label,omitempty" validate:"max=200"`
}

// Window returns the request's inclusive date range.
func (r FetchRequest) Window() Window {
	return Window{Start: r.Start, End: r.End}
}

// Days returns the number of calendar days requested.
func (r FetchRequest) Days() int {
	return r.Window().Days()
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterStructValidation(fetchRequestRules, FetchRequest{})
	return v
}

func fetchRequestRules(sl validator.StructLevel) {
	req := sl.Current().Interface().(FetchRequest)
	if req.Start.IsZero() {
		sl.ReportError(req.Start, "Start", "Start", "required", "")
	}
	if req.End.IsZero() {
		sl.ReportError(req.End, "End", "End", "required", "")
	}
	if !req.Start.IsZero() && !req.End.IsZero() && req.End.Before(req.Start) {
		sl.ReportError(req.End, "End", "End", "gtefield", "Start")
	}
}

// Validate checks coordinate ranges, the date range and the use case.
func (r FetchRequest) Validate() error {
	err := validate.Struct(r)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, describeFieldError(fe))
	}
	return fmt.Errorf("invalid request: %s", strings.Join(msgs, "; "))
}

func describeFieldError(fe validator.FieldError) string {
	switch fe.Field() {
	case "Latitude":
		return "latitude must be between -90 and 90"
	case "Longitude":
		return "longitude must be between -180 and 180"
	case "End":
		if fe.Tag() == "gtefield" {
			return "end date must not be before start date"
		}
		return "end date is required"
	case "Start":
		return "start date is required"
	case "UseCase":
		return "unknown use case"
	default:
		return fmt.Sprintf("%s failed %s", strings.ToLower(fe.Field()), fe.Tag())
	}
}
