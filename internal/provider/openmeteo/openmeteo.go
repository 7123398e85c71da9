package openmeteo

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/joshuadavidthomas/meteofetch/internal/aggregate"
	"github.com/joshuadavidthomas/meteofetch/internal/models"
	"github.com/joshuadavidthomas/meteofetch/internal/provider"
)

const defaultBaseURL = "https://archive-api.open-meteo.com/v1/archive"

// dailyVariables are requested in this order.
var dailyVariables = []string{
	"temperature_2m_max",
	"temperature_2m_min",
	"temperature_2m_mean",
	"precipitation_sum",
	"wind_speed_10m_max",
	"wind_direction_10m_dominant",
}

const hourlyGustVariable = "wind_gusts_10m"

// dailyFields maps Open-Meteo daily variable names, including the legacy
// spellings without underscores, to canonical fields.
var dailyFields = map[string]aggregate.Field{
	"temperature_2m_max":          aggregate.FieldTempMax,
	"temperature_2m_min":          aggregate.FieldTempMin,
	"temperature_2m_mean":         aggregate.FieldTempMean,
	"precipitation_sum":           aggregate.FieldPrecipSum,
	"wind_speed_10m_max":          aggregate.FieldWindSpeedMax,
	"windspeed_10m_max":           aggregate.FieldWindSpeedMax,
	"wind_gusts_10m_max":          aggregate.FieldWindGustDaily,
	"windgusts_10m_max":           aggregate.FieldWindGustDaily,
	"wind_direction_10m_dominant": aggregate.FieldWindDirection,
	"winddirection_10m_dominant":  aggregate.FieldWindDirection,
}

var hourlyGustNames = []string{hourlyGustVariable, "windgusts_10m"}

type Option func(*OpenMeteo)

// WithBaseURL points the client at another archive endpoint.
func WithBaseURL(u string) Option {
	return func(o *OpenMeteo) { o.baseURL = u }
}

// OpenMeteo integrates the Open-Meteo historical archive API.
type OpenMeteo struct {
	baseURL string
}

func New(opts ...Option) *OpenMeteo {
	o := &OpenMeteo{baseURL: defaultBaseURL}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

func (o *OpenMeteo) ID() models.ProviderID { return models.ProviderOpenMeteo }

func (o *OpenMeteo) BuildRequest(req models.FetchRequest, window models.Window, _ string) (provider.Request, error) {
	u, err := url.Parse(o.baseURL)
	if err != nil {
		return provider.Request{}, fmt.Errorf("open-meteo base url: %w", err)
	}
	q := u.Query()
	q.Set("latitude", strconv.FormatFloat(req.Latitude, 'f', -1, 64))
	q.Set("longitude", strconv.FormatFloat(req.Longitude, 'f', -1, 64))
	q.Set("start_date", window.Start.String())
	q.Set("end_date", window.End.String())
	q.Set("daily", strings.Join(dailyVariables, ","))
	q.Set("hourly", hourlyGustVariable)
	q.Set("timezone", "auto")
	u.RawQuery = q.Encode()
	return provider.Request{URL: u.String()}, nil
}

// Decode aligns every daily column with the "time" column and collects the
// hourly gust series. Columns whose length differs from their time column
// cannot be keyed by date and are rejected.
func (o *OpenMeteo) Decode(body []byte) (*aggregate.Table, error) {
	var resp ArchiveResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%w: %v", aggregate.ErrMalformedBody, err)
	}
	if resp.Error {
		return nil, fmt.Errorf("%w: provider reported error: %s", aggregate.ErrMalformedBody, resp.Reason)
	}
	if resp.Daily == nil {
		return nil, &aggregate.NormalizationError{Provider: o.ID(), Field: "daily", Reason: "missing daily block"}
	}

	t := aggregate.NewTable(location(resp))
	if err := o.decodeDaily(t, resp); err != nil {
		return nil, err
	}
	if err := o.decodeHourly(t, resp); err != nil {
		return nil, err
	}
	return t, nil
}

func (o *OpenMeteo) decodeDaily(t *aggregate.Table, resp ArchiveResponse) error {
	var times []string
	if err := decodeColumn(resp.Daily, "time", &times); err != nil {
		return o.fieldErr("daily.time", err.Error())
	}

	dates := make([]models.Date, len(times))
	for i, s := range times {
		d, err := models.ParseDate(s)
		if err != nil {
			return o.fieldErr("daily.time", err.Error())
		}
		dates[i] = d
	}

	rows := make([]map[aggregate.Field]*float64, len(dates))
	for i := range rows {
		rows[i] = make(map[aggregate.Field]*float64)
	}

	for name, raw := range resp.Daily {
		field, ok := dailyFields[name]
		if !ok {
			continue
		}
		var values []*float64
		if err := json.Unmarshal(raw, &values); err != nil {
			return o.fieldErr("daily."+name, "not a numeric array")
		}
		if len(values) != len(dates) {
			return o.fieldErr("daily."+name, fmt.Sprintf("%d values for %d dates", len(values), len(dates)))
		}
		unit := resp.DailyUnits[name]
		for i, v := range values {
			converted, err := aggregate.Convert(field, v, unit)
			if err != nil {
				return err
			}
			rows[i][field] = converted
		}
	}

	for i, d := range dates {
		if err := t.AddDay(d, rows[i]); err != nil {
			return err
		}
	}
	return nil
}

func (o *OpenMeteo) decodeHourly(t *aggregate.Table, resp ArchiveResponse) error {
	if resp.Hourly == nil {
		return nil
	}
	var gustName string
	for _, n := range hourlyGustNames {
		if _, ok := resp.Hourly[n]; ok {
			gustName = n
			break
		}
	}
	if gustName == "" {
		return nil
	}

	var times []string
	if err := decodeColumn(resp.Hourly, "time", &times); err != nil {
		return o.fieldErr("hourly.time", err.Error())
	}
	var values []*float64
	if err := json.Unmarshal(resp.Hourly[gustName], &values); err != nil {
		return o.fieldErr("hourly."+gustName, "not a numeric array")
	}
	if len(values) != len(times) {
		return o.fieldErr("hourly."+gustName, fmt.Sprintf("%d values for %d timestamps", len(values), len(times)))
	}

	unit := resp.HourlyUnits[gustName]
	t.HasHourly = true
	for i, s := range times {
		at, err := aggregate.ParseLocalTimestamp(s, t.Location)
		if err != nil {
			return o.fieldErr("hourly.time", err.Error())
		}
		v, err := aggregate.ToKmh(values[i], unit)
		if err != nil {
			return err
		}
		t.AddSample(at, v)
	}
	return nil
}

func (o *OpenMeteo) fieldErr(field, reason string) error {
	return &aggregate.NormalizationError{Provider: o.ID(), Field: field, Reason: reason}
}

func decodeColumn(block map[string]json.RawMessage, name string, out any) error {
	raw, ok := block[name]
	if !ok {
		return fmt.Errorf("missing %q column", name)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("malformed %q column", name)
	}
	return nil
}

// location resolves the response timezone, preferring the IANA name and
// falling back to the reported fixed offset.
func location(resp ArchiveResponse) *time.Location {
	if resp.Timezone != "" {
		if loc, err := time.LoadLocation(resp.Timezone); err == nil {
			return loc
		}
	}
	name := resp.TimezoneAbbr
	if name == "" {
		name = "UTC"
	}
	return time.FixedZone(name, resp.UTCOffsetSeconds)
}
