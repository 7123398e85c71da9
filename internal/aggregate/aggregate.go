package aggregate

import (
	"errors"
	"fmt"

	"github.com/joshuadavidthomas/meteofetch/internal/models"
)

// Decoder turns one provider response body into a Table. Bodies that are
// not parseable at all wrap ErrMalformedBody; parseable bodies with
// inconsistent content return a *NormalizationError.
type Decoder interface {
	Decode(body []byte) (*Table, error)
}

// Aggregator normalizes provider responses into daily series.
type Aggregator struct {
	decoders map[models.ProviderID]Decoder
}

func New(decoders map[models.ProviderID]Decoder) *Aggregator {
	a := &Aggregator{decoders: make(map[models.ProviderID]Decoder, len(decoders))}
	for id, d := range decoders {
		a.decoders[id] = d
	}
	return a
}

// Decode parses a raw body with the provider's decoder.
func (a *Aggregator) Decode(id models.ProviderID, body []byte) (*Table, error) {
	dec, ok := a.decoders[id]
	if !ok {
		return nil, fmt.Errorf("no decoder for provider %q", id)
	}
	t, err := dec.Decode(body)
	if err != nil {
		return nil, tagProvider(err, id)
	}
	return t, nil
}

// Normalize decodes body and builds the series for window.
func (a *Aggregator) Normalize(id models.ProviderID, body []byte, window models.Window) ([]models.DailyRecord, error) {
	t, err := a.Decode(id, body)
	if err != nil {
		return nil, err
	}
	return a.Assemble(id, window, t)
}

// Assemble merges the decoded batches of one provider by date and builds
// the series for window.
func (a *Aggregator) Assemble(id models.ProviderID, window models.Window, tables ...*Table) ([]models.DailyRecord, error) {
	merged, err := Merge(tables...)
	if err != nil {
		return nil, tagProvider(err, id)
	}
	recs, err := Build(merged, window)
	if err != nil {
		return nil, tagProvider(err, id)
	}
	return recs, nil
}

func tagProvider(err error, id models.ProviderID) error {
	var ne *NormalizationError
	if errors.As(err, &ne) && ne.Provider == "" {
		ne.Provider = id
	}
	return err
}

type gustDay struct {
	samples int
	max     *float64
}

// Build produces exactly one record per day of window, in order. Values are
// looked up by date, never by position. Days the provider omitted become
// records with every measurement nil.
func Build(t *Table, window models.Window) ([]models.DailyRecord, error) {
	if t == nil {
		return nil, normErr("empty response")
	}
	for d := range t.Days {
		if !window.Contains(d) {
			return nil, &NormalizationError{Date: &d, Reason: fmt.Sprintf("date outside requested range %s..%s", window.Start, window.End)}
		}
	}

	var gusts map[models.Date]*gustDay
	if t.HasHourly {
		var err error
		gusts, err = bucketGusts(t, window)
		if err != nil {
			return nil, err
		}
	}

	out := make([]models.DailyRecord, 0, window.Days())
	for d := window.Start; !d.After(window.End); d = d.AddDays(1) {
		row := t.Days[d]
		rec := models.DailyRecord{
			Date:          d,
			TempMax:       row[FieldTempMax],
			TempMin:       row[FieldTempMin],
			TempMean:      row[FieldTempMean],
			PrecipSum:     row[FieldPrecipSum],
			WindSpeedMax:  row[FieldWindSpeedMax],
			WindDirection: row[FieldWindDirection],
		}

		if t.HasHourly {
			rec.WindGustMax, rec.GustProvenance = hourlyGust(gusts[d])
		} else {
			rec.WindGustMax, rec.GustProvenance = dailyGust(row)
		}

		if rec.TempMax != nil && rec.TempMin != nil && *rec.TempMax < *rec.TempMin {
			return nil, &NormalizationError{
				Date:   &d,
				Field:  string(FieldTempMax),
				Reason: fmt.Sprintf("maximum temperature %.1f below minimum %.1f", *rec.TempMax, *rec.TempMin),
			}
		}
		out = append(out, rec)
	}
	return out, nil
}

// bucketGusts groups hourly samples into calendar days of the table's
// location. Sample order does not matter.
func bucketGusts(t *Table, window models.Window) (map[models.Date]*gustDay, error) {
	days := make(map[models.Date]*gustDay)
	for _, s := range t.Hourly {
		d := models.DateOf(s.At.In(t.Location))
		if !window.Contains(d) {
			return nil, &NormalizationError{Date: &d, Field: "hourly gusts", Reason: "sample outside requested range"}
		}
		g, ok := days[d]
		if !ok {
			g = &gustDay{}
			days[d] = g
		}
		g.samples++
		if s.Value != nil && (g.max == nil || *s.Value > *g.max) {
			v := *s.Value
			g.max = &v
		}
	}
	return days, nil
}

func hourlyGust(g *gustDay) (*float64, models.Provenance) {
	switch {
	case g == nil || g.samples == 0:
		return nil, models.GustNoData
	case g.max == nil:
		return nil, models.GustNullSamples
	default:
		return g.max, models.GustHourlyMax
	}
}

func dailyGust(row map[Field]*float64) (*float64, models.Provenance) {
	if v := row[FieldWindGustDaily]; v != nil {
		return v, models.GustDailyReported
	}
	if v := row[FieldWindSpeedMax]; v != nil {
		return v, models.GustWindspeedFallback
	}
	return nil, models.GustNoData
}

// Coverage counts records that carry at least one measurement.
func Coverage(recs []models.DailyRecord) int {
	n := 0
	for _, r := range recs {
		if r.HasData() {
			n++
		}
	}
	return n
}
