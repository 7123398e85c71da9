package meteostat

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/joshuadavidthomas/meteofetch/internal/aggregate"
	"github.com/joshuadavidthomas/meteofetch/internal/httpclient"
	"github.com/joshuadavidthomas/meteofetch/internal/models"
	"github.com/joshuadavidthomas/meteofetch/internal/provider"
)

const (
	defaultBaseURL = "https://meteostat.p.rapidapi.com/point/daily"
	rapidAPIHost   = "meteostat.p.rapidapi.com"

	KeyHeader  = "X-RapidAPI-Key"
	HostHeader = "X-RapidAPI-Host"
)

type Option func(*Meteostat)

func WithBaseURL(u string) Option {
	return func(m *Meteostat) { m.baseURL = u }
}

// Meteostat integrates the Meteostat point API served through RapidAPI.
type Meteostat struct {
	baseURL string
}

func New(opts ...Option) *Meteostat {
	m := &Meteostat{baseURL: defaultBaseURL}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Meteostat) ID() models.ProviderID { return models.ProviderMeteostat }

func (m *Meteostat) BuildRequest(req models.FetchRequest, window models.Window, apiKey string) (provider.Request, error) {
	u, err := url.Parse(m.baseURL)
	if err != nil {
		return provider.Request{}, fmt.Errorf("meteostat base url: %w", err)
	}
	q := u.Query()
	q.Set("lat", strconv.FormatFloat(req.Latitude, 'f', -1, 64))
	q.Set("lon", strconv.FormatFloat(req.Longitude, 'f', -1, 64))
	q.Set("start", window.Start.String())
	q.Set("end", window.End.String())
	q.Set("units", "metric")
	u.RawQuery = q.Encode()

	return provider.Request{
		URL: u.String(),
		Options: []httpclient.RequestOption{
			httpclient.WithAPIKey(KeyHeader, apiKey),
			httpclient.WithHeader(HostHeader, rapidAPIHost),
		},
	}, nil
}

func (m *Meteostat) Decode(body []byte) (*aggregate.Table, error) {
	var resp PointDailyResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%w: %v", aggregate.ErrMalformedBody, err)
	}
	if resp.Data == nil {
		if resp.Message != "" {
			return nil, fmt.Errorf("%w: provider reported: %s", aggregate.ErrMalformedBody, resp.Message)
		}
		return nil, &aggregate.NormalizationError{Provider: m.ID(), Field: "data", Reason: "missing data array"}
	}

	// Meteostat reports daily values in UTC days.
	t := aggregate.NewTable(nil)
	for _, row := range resp.Data {
		d, err := parseRowDate(row.Date)
		if err != nil {
			return nil, &aggregate.NormalizationError{Provider: m.ID(), Field: "date", Reason: err.Error()}
		}
		values := map[aggregate.Field]*float64{
			aggregate.FieldTempMax:       row.Tmax,
			aggregate.FieldTempMin:       row.Tmin,
			aggregate.FieldTempMean:      row.Tavg,
			aggregate.FieldPrecipSum:     row.Prcp,
			aggregate.FieldWindSpeedMax:  row.Wspd,
			aggregate.FieldWindGustDaily: row.Wpgt,
			aggregate.FieldWindDirection: row.Wdir,
		}
		if err := t.AddDay(d, values); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// parseRowDate accepts "2024-01-02" and "2024-01-02 00:00:00".
func parseRowDate(s string) (models.Date, error) {
	day, _, _ := strings.Cut(strings.TrimSpace(s), " ")
	return models.ParseDate(day)
}
