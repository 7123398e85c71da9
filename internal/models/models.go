package models

import (
	"fmt"
	"strings"
)

// ProviderID identifies an upstream weather data provider.
type ProviderID string

const (
	ProviderOpenMeteo ProviderID = "open-meteo"
	ProviderMeteostat ProviderID = "meteostat"
)

// KnownProviders lists every provider the engine has an integration for.
func KnownProviders() []ProviderID {
	return []ProviderID{ProviderMeteostat, ProviderOpenMeteo}
}

func (p ProviderID) Known() bool {
	for _, id := range KnownProviders() {
		if id == p {
			return true
		}
	}
	return false
}

func (p ProviderID) String() string { return string(p) }

// ProviderChoice is either Auto or an explicit provider. The zero value is Auto.
type ProviderChoice struct {
	id ProviderID
}

// Auto lets the router pick a provider chain.
var Auto = ProviderChoice{}

// Use selects one provider explicitly.
func Use(id ProviderID) ProviderChoice {
	return ProviderChoice{id: id}
}

func (c ProviderChoice) IsAuto() bool { return c.id == "" }

// Provider returns the explicitly chosen provider, if any.
func (c ProviderChoice) Provider() (ProviderID, bool) {
	return c.id, c.id != ""
}

func (c ProviderChoice) String() string {
	if c.IsAuto() {
		return "auto"
	}
	return string(c.id)
}

// ParseProviderChoice parses "auto" or a known provider id.
func ParseProviderChoice(s string) (ProviderChoice, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" || s == "auto" {
		return Auto, nil
	}
	id := ProviderID(s)
	if !id.Known() {
		return Auto, fmt.Errorf("unknown provider %q", s)
	}
	return Use(id), nil
}

func (c ProviderChoice) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

func (c *ProviderChoice) UnmarshalText(b []byte) error {
	parsed, err := ParseProviderChoice(string(b))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// UseCase drives provider preference when routing is automatic.
type UseCase string

const (
	UseCaseSingleLocation UseCase = "single-location"
	UseCaseMultiLocation  UseCase = "multi-location"
	UseCaseHistoricalDeep UseCase = "historical-deep"
	UseCaseRealTime       UseCase = "real-time"
)

func UseCases() []UseCase {
	return []UseCase{UseCaseSingleLocation, UseCaseMultiLocation, UseCaseHistoricalDeep, UseCaseRealTime}
}

func ParseUseCase(s string) (UseCase, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return UseCaseSingleLocation, nil
	}
	for _, u := range UseCases() {
		if string(u) == s {
			return u, nil
		}
	}
	return "", fmt.Errorf("unknown use case %q", s)
}

// WarningLevel classifies quota consumption. Levels are ordered.
type WarningLevel int

const (
	LevelNormal WarningLevel = iota
	LevelInfo
	LevelWarning
	LevelCritical
)

func (l WarningLevel) String() string {
	switch l {
	case LevelInfo:
		return "info"
	case LevelWarning:
		return "warning"
	case LevelCritical:
		return "critical"
	default:
		return "normal"
	}
}

func (l WarningLevel) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

// Provenance records how a day's wind gust value was derived.
type Provenance string

const (
	GustHourlyMax         Provenance = "hourly-max"
	GustDailyReported     Provenance = "daily-gust"
	GustWindspeedFallback Provenance = "windspeed-fallback"
	GustNoData            Provenance = "no-data"
	GustNullSamples       Provenance = "null-samples"
)

// DailyRecord is one calendar day of normalized weather data.
// Nil measurements are missing, never zero.
type DailyRecord struct {
	Date           Date       `json:"date"`
	TempMax        *float64   `json:"temperature_max"`
	TempMin        *float64   `json:"temperature_min"`
	TempMean       *float64   `json:"temperature_mean"`
	PrecipSum      *float64   `json:"precipitation_sum"`
	WindSpeedMax   *float64   `json:"windspeed_max"`
	WindGustMax    *float64   `json:"windgust_max"`
	WindDirection  *float64   `json:"wind_direction"`
	GustProvenance Provenance `json:"gust_provenance"`
}

// HasData reports whether any measurement is present.
func (r DailyRecord) HasData() bool {
	for _, v := range []*float64{r.TempMax, r.TempMin, r.TempMean, r.PrecipSum, r.WindSpeedMax, r.WindGustMax, r.WindDirection} {
		if v != nil {
			return true
		}
	}
	return false
}

// Float returns a pointer to v.
func Float(v float64) *float64 {
	return &v
}
