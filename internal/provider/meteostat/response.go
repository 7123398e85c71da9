package meteostat

// PointDailyResponse is the body of GET /point/daily.
type PointDailyResponse struct {
	Meta    *Meta      `json:"meta"`
	Data    []DailyRow `json:"data"`
	Message string     `json:"message,omitempty"`
}

type Meta struct {
	Generated string   `json:"generated"`
	Stations  []string `json:"stations,omitempty"`
}

// DailyRow is one day of station-interpolated observations. Units are
// metric: °C, mm, km/h and degrees.
type DailyRow struct {
	Date string   `json:"date"`
	Tavg *float64 `json:"tavg"`
	Tmin *float64 `json:"tmin"`
	Tmax *float64 `json:"tmax"`
	Prcp *float64 `json:"prcp"`
	Snow *float64 `json:"snow"`
	Wdir *float64 `json:"wdir"`
	Wspd *float64 `json:"wspd"`
	Wpgt *float64 `json:"wpgt"`
	Pres *float64 `json:"pres"`
	Tsun *float64 `json:"tsun"`
}
