package aggregate

import (
	"errors"
	"fmt"
	"time"

	"github.com/joshuadavidthomas/meteofetch/internal/models"
)

// Field is a canonical daily measurement name.
type Field string

const (
	FieldTempMax       Field = "temp_max"
	FieldTempMin       Field = "temp_min"
	FieldTempMean      Field = "temp_mean"
	FieldPrecipSum     Field = "precip_sum"
	FieldWindSpeedMax  Field = "wind_speed_max"
	FieldWindGustDaily Field = "wind_gust_daily"
	FieldWindDirection Field = "wind_direction"
)

// ErrMalformedBody marks a response body that could not be parsed at all.
// Unlike a NormalizationError it says nothing about the data itself.
var ErrMalformedBody = errors.New("malformed response body")

// NormalizationError reports provider data that cannot be turned into a
// valid series. It is never repaired silently.
type NormalizationError struct {
	Provider models.ProviderID
	Date     *models.Date
	Field    string
	Reason   string
}

func (e *NormalizationError) Error() string {
	msg := "normalization failed"
	if e.Provider != "" {
		msg += " for " + string(e.Provider)
	}
	msg += ": " + e.Reason
	if e.Field != "" {
		msg += " (field " + e.Field + ")"
	}
	if e.Date != nil {
		msg += " on " + e.Date.String()
	}
	return msg
}

func normErr(reason string, args ...any) *NormalizationError {
	return &NormalizationError{Reason: fmt.Sprintf(reason, args...)}
}

// Sample is one hourly wind gust observation.
type Sample struct {
	At    time.Time
	Value *float64
}

// Table is a provider-neutral, date-keyed view of one decoded response.
type Table struct {
	Days map[models.Date]map[Field]*float64
	// Hourly holds gust samples. HasHourly distinguishes "no hourly series"
	// from "an hourly series with no samples".
	Hourly    []Sample
	HasHourly bool
	// Location is the response's timezone; hourly samples are bucketed into
	// calendar days in this zone.
	Location *time.Location
}

func NewTable(loc *time.Location) *Table {
	if loc == nil {
		loc = time.UTC
	}
	return &Table{Days: make(map[models.Date]map[Field]*float64), Location: loc}
}

// AddDay stores one day's values. A date may appear only once.
func (t *Table) AddDay(d models.Date, values map[Field]*float64) error {
	if _, dup := t.Days[d]; dup {
		return &NormalizationError{Date: &d, Reason: "duplicate date in response"}
	}
	row := make(map[Field]*float64, len(values))
	for f, v := range values {
		row[f] = v
	}
	t.Days[d] = row
	return nil
}

// AddSample appends an hourly gust sample and marks the hourly series present.
func (t *Table) AddSample(at time.Time, v *float64) {
	t.HasHourly = true
	t.Hourly = append(t.Hourly, Sample{At: at, Value: v})
}

// Merge combines batch tables by date. Overlapping dates are an error.
func Merge(tables ...*Table) (*Table, error) {
	var loc *time.Location
	for _, t := range tables {
		if t != nil && t.Location != nil {
			loc = t.Location
			break
		}
	}
	out := NewTable(loc)
	for _, t := range tables {
		if t == nil {
			continue
		}
		for d, row := range t.Days {
			if err := out.AddDay(d, row); err != nil {
				return nil, err
			}
		}
		if t.HasHourly {
			out.HasHourly = true
			out.Hourly = append(out.Hourly, t.Hourly...)
		}
	}
	return out, nil
}

// ParseLocalTimestamp parses a provider timestamp. Offset-less timestamps
// are wall-clock times in loc; timestamps with an offset are converted to loc.
func ParseLocalTimestamp(s string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04Z07:00"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.In(loc), nil
		}
	}
	for _, layout := range []string{"2006-01-02T15:04", "2006-01-02T15:04:05", "2006-01-02 15:04:05", "2006-01-02 15:04"} {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}
