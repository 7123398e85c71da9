package aggregate

import (
	"strings"
)

// ToCelsius converts a temperature reported in unit.
func ToCelsius(v *float64, unit string) (*float64, error) {
	if v == nil {
		return nil, nil
	}
	switch normalizeUnit(unit) {
	case "", "°c", "c", "celsius":
		return v, nil
	case "°f", "f", "fahrenheit":
		c := (*v - 32) * 5 / 9
		return &c, nil
	case "k", "kelvin":
		c := *v - 273.15
		return &c, nil
	default:
		return nil, normErr("unsupported temperature unit %q", unit)
	}
}

// ToKmh converts a speed reported in unit.
func ToKmh(v *float64, unit string) (*float64, error) {
	if v == nil {
		return nil, nil
	}
	var factor float64
	switch normalizeUnit(unit) {
	case "", "km/h", "kmh", "kph":
		return v, nil
	case "m/s", "ms":
		factor = 3.6
	case "mph", "mp/h":
		factor = 1.609344
	case "kn", "kt", "knots":
		factor = 1.852
	default:
		return nil, normErr("unsupported speed unit %q", unit)
	}
	out := *v * factor
	return &out, nil
}

// ToMillimetres converts a precipitation amount reported in unit.
func ToMillimetres(v *float64, unit string) (*float64, error) {
	if v == nil {
		return nil, nil
	}
	switch normalizeUnit(unit) {
	case "", "mm":
		return v, nil
	case "inch", "in":
		out := *v * 25.4
		return &out, nil
	default:
		return nil, normErr("unsupported precipitation unit %q", unit)
	}
}

// Convert applies the conversion appropriate for a canonical field.
// Direction is passed through.
func Convert(f Field, v *float64, unit string) (*float64, error) {
	switch f {
	case FieldTempMax, FieldTempMin, FieldTempMean:
		return ToCelsius(v, unit)
	case FieldWindSpeedMax, FieldWindGustDaily:
		return ToKmh(v, unit)
	case FieldPrecipSum:
		return ToMillimetres(v, unit)
	default:
		return v, nil
	}
}

func normalizeUnit(u string) string {
	return strings.ToLower(strings.TrimSpace(u))
}
