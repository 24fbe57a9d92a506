package features

import (
	"fmt"
	"math"
	"slices"
	"sort"
	"strings"

	"oracletom/internal/services"
	"oracletom/internal/tom"
)

// Photometry flag bits.
const (
	FlagSaturated int64 = 1024
	FlagDetection int64 = 4096
)

// DefaultDetectionSNR is the flux/error ratio at which a point counts as a detection.
const DefaultDetectionSNR = 5.0

// Bands are the LSST passbands ORACLE has wavelengths for.
var Bands = []string{"u", "g", "r", "i", "z", "Y"}

// UnknownClass labels objects without a usable truth row.
const UnknownClass = "unknown"

// Options tunes light-curve conditioning.
type Options struct {
	DetectionSNR float64
}

func (o Options) withDefaults() Options {
	if o.DetectionSNR <= 0 || math.IsNaN(o.DetectionSNR) {
		o.DetectionSNR = DefaultDetectionSNR
	}
	return o
}

// Observation is one photometric measurement after remapping.
type Observation struct {
	MJD        float64
	Band       string
	FluxCal    float64
	FluxCalErr float64
	PhotFlag   int64
}

// Detected reports whether the detection bit is set.
func (o Observation) Detected() bool {
	return o.PhotFlag&FlagDetection != 0
}

// Source is one transient ready for batching: static features under model
// names and a time-ordered, saturation-free light curve.
type Source struct {
	SNID int64
	// Static holds numeric static features keyed by model name. Null or
	// non-numeric provider values are absent.
	Static       map[string]float64
	Observations []Observation

	// Gentype is the simulation truth code; HasTruth is false when the TOM
	// had no truth row.
	Gentype  int64
	HasTruth bool
	// Class is the truth class name, or UnknownClass.
	Class string

	// Invalid counts rows dropped for non-finite or non-positive values.
	Invalid int
	// Saturated counts rows removed by the saturation mask.
	Saturated int
}

// NewSource assembles a Source from a raw TOM object.
func NewSource(obj tom.RawObject, opts Options) (*Source, error) {
	opts = opts.withDefaults()

	static, err := RemapStatic(obj.Static)
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, "features", "remap static", fmt.Sprintf("object %d", obj.ID), err)
	}
	src := &Source{
		SNID:   obj.ID,
		Static: make(map[string]float64, len(static)),
		Class:  UnknownClass,
	}
	for name, value := range static {
		if name == "SNID" {
			id, err := tom.Row{name: value}.Int64(name)
			if err != nil {
				return nil, services.Wrap(services.ErrValidation, "features", "parse snid", fmt.Sprintf("object %d", obj.ID), err)
			}
			if id != obj.ID {
				return nil, services.Wrap(services.ErrValidation, "features", "parse snid",
					fmt.Sprintf("static row belongs to %d, not %d", id, obj.ID), nil)
			}
			continue
		}
		if f, ok := tom.ToFloat(value); ok {
			src.Static[name] = f
		}
	}

	observations := make([]Observation, 0, len(obj.Sources))
	for i, row := range obj.Sources {
		obs, ok, err := parseObservation(row)
		if err != nil {
			return nil, services.Wrap(services.ErrValidation, "features", "parse observation",
				fmt.Sprintf("object %d row %d", obj.ID, i), err)
		}
		if !ok {
			src.Invalid++
			continue
		}
		if obs.FluxCal/obs.FluxCalErr >= opts.DetectionSNR {
			obs.PhotFlag |= FlagDetection
		}
		observations = append(observations, obs)
	}
	sort.SliceStable(observations, func(i, j int) bool {
		return observations[i].MJD < observations[j].MJD
	})

	kept := observations[:0]
	for _, obs := range observations {
		if obs.PhotFlag&FlagSaturated != 0 {
			src.Saturated++
			continue
		}
		kept = append(kept, obs)
	}
	src.Observations = kept

	if obj.Truth != nil {
		code, err := obj.Truth.Int64("gentype")
		if err == nil {
			src.Gentype = code
			src.HasTruth = true
			if class, ok := ClassForGentype(code); ok {
				src.Class = class
			}
		}
	}
	return src, nil
}

// parseObservation returns ok=false for rows that cannot be used as
// photometry: non-finite values or a non-positive flux error.
func parseObservation(row tom.Row) (Observation, bool, error) {
	fields, err := RemapTimeSeries(row)
	if err != nil {
		return Observation{}, false, err
	}
	var obs Observation
	band, _ := fields["BAND"].(string)
	obs.Band = strings.TrimSpace(band)
	if obs.Band == "" {
		return Observation{}, false, fmt.Errorf("missing BAND")
	}
	if !slices.Contains(Bands, obs.Band) {
		return Observation{}, false, fmt.Errorf("unknown band %q", obs.Band)
	}
	var okMJD, okFlux, okErr bool
	obs.MJD, okMJD = tom.ToFloat(fields["MJD"])
	obs.FluxCal, okFlux = tom.ToFloat(fields["FLUXCAL"])
	obs.FluxCalErr, okErr = tom.ToFloat(fields["FLUXCALERR"])
	if !okMJD || !okFlux || !okErr || !finite(obs.MJD, obs.FluxCal, obs.FluxCalErr) || obs.FluxCalErr <= 0 {
		return Observation{}, false, nil
	}
	if flag, present := fields["PHOTFLAG"]; present && flag != nil {
		value, err := tom.Row{"PHOTFLAG": flag}.Int64("PHOTFLAG")
		if err != nil {
			return Observation{}, false, err
		}
		obs.PhotFlag = value
	}
	return obs, true, nil
}

func finite(values ...float64) bool {
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// Len returns the number of usable observations.
func (s *Source) Len() int {
	return len(s.Observations)
}
