package oracle

import (
	"fmt"
	"math"

	"oracletom/internal/features"
	"oracletom/internal/services"
	"oracletom/internal/taxonomy"
)

// DefaultMaxSequenceLength is the padded light-curve length ORACLE was trained with.
const DefaultMaxSequenceLength = 256

// MissingValue replaces absent or non-finite static features.
const MissingValue = -9.0

// Scale factors applied to time-series columns.
const (
	timeScale = 100.0
	fluxScale = 1000.0
)

// TimeSeriesColumns names the per-observation columns in order.
var TimeSeriesColumns = []string{
	"scaled_time_since_first_obs",
	"scaled_FLUXCAL",
	"scaled_FLUXCALERR",
	"detection_flag",
	"band_wavelength",
}

// BandWavelengths maps LSST passbands to effective wavelengths in microns.
var BandWavelengths = map[string]float64{
	"u": 0.3671,
	"g": 0.4827,
	"r": 0.6223,
	"i": 0.7546,
	"z": 0.8691,
	"Y": 0.9712,
}

// Batch is the model input for a set of objects. TimeSeries is
// [object][step][column] and every object has exactly MaxLength steps.
type Batch struct {
	SNIDs             []int64       `json:"snids"`
	TimeSeries        [][][]float64 `json:"time_series"`
	Lengths           []int         `json:"lengths"`
	Static            [][]float64   `json:"static"`
	MaxLength         int           `json:"max_length"`
	TimeSeriesColumns []string      `json:"time_series_columns"`
	StaticColumns     []string      `json:"static_columns"`
	// Classes is the expected output column order.
	Classes []string `json:"classes"`
}

// Len returns the number of objects in the batch.
func (b *Batch) Len() int {
	if b == nil {
		return 0
	}
	return len(b.SNIDs)
}

// BuildBatch pads or truncates every table to maxLength, keeping the earliest
// observations, and orders static features by tax.StaticFeatures.
func BuildBatch(tables []features.EventTable, tax *taxonomy.Taxonomy, maxLength int) (*Batch, error) {
	if tax == nil {
		return nil, services.Wrap(services.ErrConfiguration, "oracle", "build batch", "taxonomy required", nil)
	}
	if maxLength <= 0 {
		maxLength = DefaultMaxSequenceLength
	}
	batch := &Batch{
		SNIDs:             make([]int64, 0, len(tables)),
		TimeSeries:        make([][][]float64, 0, len(tables)),
		Lengths:           make([]int, 0, len(tables)),
		Static:            make([][]float64, 0, len(tables)),
		MaxLength:         maxLength,
		TimeSeriesColumns: append([]string(nil), TimeSeriesColumns...),
		StaticColumns:     append([]string(nil), tax.StaticFeatures...),
		Classes:           tax.Nodes(),
	}
	for _, table := range tables {
		series, length, err := timeSeries(table, maxLength)
		if err != nil {
			return nil, services.Wrap(services.ErrValidation, "oracle", "build batch", fmt.Sprintf("SNID %d", table.SNID), err)
		}
		batch.SNIDs = append(batch.SNIDs, table.SNID)
		batch.TimeSeries = append(batch.TimeSeries, series)
		batch.Lengths = append(batch.Lengths, length)
		batch.Static = append(batch.Static, staticVector(table.Meta, tax.StaticFeatures))
	}
	return batch, nil
}

func timeSeries(table features.EventTable, maxLength int) ([][]float64, int, error) {
	length := table.Len()
	if length > maxLength {
		length = maxLength
	}
	series := make([][]float64, maxLength)
	for i := range series {
		series[i] = make([]float64, len(TimeSeriesColumns))
	}
	for i := 0; i < length; i++ {
		wavelength, ok := BandWavelengths[table.Band[i]]
		if !ok {
			return nil, 0, fmt.Errorf("unknown band %q", table.Band[i])
		}
		detected := 0.0
		if table.PhotFlag[i]&features.FlagDetection != 0 {
			detected = 1
		}
		row := series[i]
		row[0] = (table.MJD[i] - table.MJD[0]) / timeScale
		row[1] = table.FluxCal[i] / fluxScale
		row[2] = table.FluxCalErr[i] / fluxScale
		row[3] = detected
		row[4] = wavelength
	}
	return series, length, nil
}

func staticVector(meta map[string]float64, order []string) []float64 {
	out := make([]float64, len(order))
	for i, name := range order {
		value, ok := meta[name]
		if !ok || math.IsNaN(value) || math.IsInf(value, 0) {
			value = MissingValue
		}
		out[i] = value
	}
	return out
}
