package geocode

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/joshuadavidthomas/meteofetch/internal/httpclient"
)

const defaultSearchURL = "https://geocoding-api.open-meteo.com/v1/search"

type searchResponse struct {
	Results []searchResult `json:"results"`
}

type searchResult struct {
	Name      string  `json:"name"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Country   string  `json:"country"`
	Admin1    string  `json:"admin1"`
	Timezone  string  `json:"timezone"`
}

// OpenMeteoResolver searches the Open-Meteo geocoding API.
type OpenMeteoResolver struct {
	Client   *httpclient.Client
	BaseURL  string
	Language string
	Count    int
}

func NewOpenMeteoResolver(client *httpclient.Client) *OpenMeteoResolver {
	if client == nil {
		client = httpclient.New()
	}
	return &OpenMeteoResolver{Client: client, BaseURL: defaultSearchURL, Language: "en", Count: 10}
}

// Search returns every match for name, best first.
func (r *OpenMeteoResolver) Search(ctx context.Context, name string) ([]Coordinates, error) {
	name = strings.TrimSpace(name)
	if len([]rune(name)) < MinQueryLength {
		return nil, fmt.Errorf("%w: need at least %d characters", ErrQueryTooShort, MinQueryLength)
	}

	u, err := url.Parse(r.BaseURL)
	if err != nil {
		return nil, err
	}
	q := u.Query()
	q.Set("name", name)
	q.Set("count", strconv.Itoa(r.Count))
	q.Set("language", r.Language)
	q.Set("format", "json")
	u.RawQuery = q.Encode()

	var body searchResponse
	resp, err := r.Client.GetJSONCtx(ctx, u.String(), &body)
	if err != nil {
		return nil, fmt.Errorf("geocoding request failed: %w", err)
	}
	if !resp.OK() {
		return nil, fmt.Errorf("geocoding API error: HTTP %d (%s)", resp.StatusCode, httpclient.SummarizeBody(resp.Body))
	}
	if resp.JSONErr != nil {
		return nil, fmt.Errorf("invalid geocoding response: %w", resp.JSONErr)
	}

	out := make([]Coordinates, 0, len(body.Results))
	for _, res := range body.Results {
		out = append(out, Coordinates{
			Name:      res.Name,
			Latitude:  res.Latitude,
			Longitude: res.Longitude,
			Country:   res.Country,
			Region:    res.Admin1,
			Timezone:  res.Timezone,
			Source:    "open-meteo",
		})
	}
	return out, nil
}

// Resolve returns the best match.
func (r *OpenMeteoResolver) Resolve(ctx context.Context, name string) (Coordinates, error) {
	results, err := r.Search(ctx, name)
	if err != nil {
		return Coordinates{}, err
	}
	if len(results) == 0 {
		return Coordinates{}, ErrNotFound
	}
	return results[0], nil
}
