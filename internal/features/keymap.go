package features

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"golang.org/x/text/cases"

	"oracletom/internal/tom"
)

// ErrUnmappedFeature reports a provider column with no model counterpart.
var ErrUnmappedFeature = errors.New("unmapped feature")

// TimeSeriesKeyMap renames diasource columns to model time-series features.
var TimeSeriesKeyMap = map[string]string{
	"filtername":  "BAND",
	"psflux":      "FLUXCAL",
	"psfluxerr":   "FLUXCALERR",
	"midpointtai": "MJD",
	"photflag":    "PHOTFLAG",
}

// StaticKeyMap renames diaobject columns to model static features.
var StaticKeyMap = map[string]string{
	"diaobject_id":        "SNID",
	"ra":                  "RA",
	"decl":                "DEC",
	"mwebv":               "MWEBV",
	"mwebv_err":           "MWEBV_ERR",
	"z_final":             "REDSHIFT_HELIO",
	"z_final_err":         "REDSHIFT_HELIO_ERR",
	"hostgal_zphot":       "HOSTGAL_PHOTOZ",
	"hostgal_zphot_err":   "HOSTGAL_PHOTOZ_ERR",
	"hostgal_zspec":       "HOSTGAL_SPECZ",
	"hostgal_zspec_err":   "HOSTGAL_SPECZ_ERR",
	"hostgal_ra":          "HOSTGAL_RA",
	"hostgal_dec":         "HOSTGAL_DEC",
	"hostgal_snsep":       "HOSTGAL_SNSEP",
	"hostgal_ellipticity": "HOSTGAL_ELLIPTICITY",
	"hostgal_mag_u":       "HOSTGAL_MAG_u",
	"hostgal_mag_g":       "HOSTGAL_MAG_g",
	"hostgal_mag_r":       "HOSTGAL_MAG_r",
	"hostgal_mag_i":       "HOSTGAL_MAG_i",
	"hostgal_mag_z":       "HOSTGAL_MAG_z",
	"hostgal_mag_y":       "HOSTGAL_MAG_Y",
}

// objectKeyColumn groups diasource rows by object and carries no feature.
const objectKeyColumn = "diaobject_id"

// RemapStatic renames a diaobject row. Column names are case folded before
// lookup.
func RemapStatic(row tom.Row) (map[string]any, error) {
	return remap(row, StaticKeyMap, nil)
}

// RemapTimeSeries renames a diasource row. The diaobject_id grouping column
// is discarded.
func RemapTimeSeries(row tom.Row) (map[string]any, error) {
	return remap(row, TimeSeriesKeyMap, map[string]bool{objectKeyColumn: true})
}

func remap(row tom.Row, keyMap map[string]string, ignore map[string]bool) (map[string]any, error) {
	folder := cases.Fold()
	out := make(map[string]any, len(row))
	var unmapped []string
	for column, value := range row {
		key := folder.String(strings.TrimSpace(column))
		if ignore[key] {
			continue
		}
		name, ok := keyMap[key]
		if !ok {
			unmapped = append(unmapped, column)
			continue
		}
		out[name] = value
	}
	if len(unmapped) > 0 {
		sort.Strings(unmapped)
		return nil, fmt.Errorf("%w: %s", ErrUnmappedFeature, strings.Join(unmapped, ", "))
	}
	return out, nil
}
