package openmeteo

import "encoding/json"

// ArchiveResponse is the body of GET /v1/archive. Daily and hourly blocks
// are column-oriented: a "time" array plus one array per requested variable.
type ArchiveResponse struct {
	Latitude         float64                    `json:"latitude"`
	Longitude        float64                    `json:"longitude"`
	Timezone         string                     `json:"timezone"`
	TimezoneAbbr     string                     `json:"timezone_abbreviation"`
	UTCOffsetSeconds int                        `json:"utc_offset_seconds"`
	DailyUnits       map[string]string          `json:"daily_units"`
	Daily            map[string]json.RawMessage `json:"daily"`
	HourlyUnits      map[string]string          `json:"hourly_units"`
	Hourly           map[string]json.RawMessage `json:"hourly"`

	Error  bool   `json:"error"`
	Reason string `json:"reason"`
}
