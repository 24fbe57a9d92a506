package features_test

import (
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"oracletom/internal/features"
	"oracletom/internal/services"
	"oracletom/internal/tom"
)

func staticRow(id int64) tom.Row {
	return tom.Row{
		"diaobject_id":  id,
		"ra":            150.1,
		"decl":          2.2,
		"mwebv":         0.02,
		"z_final":       "0.12",
		"hostgal_mag_r": nil,
		"HOSTGAL_MAG_Y": 20.5,
	}
}

func obs(mjd float64, band string, flux, fluxErr float64) tom.Row {
	return tom.Row{"diaobject_id": int64(7), "midpointtai": mjd, "filtername": band, "psflux": flux, "psfluxerr": fluxErr}
}

func TestRemapStaticFoldsCase(t *testing.T) {
	got, err := features.RemapStatic(tom.Row{"Hostgal_Mag_Y": 1.0, "DECL": 2.0})
	if err != nil {
		t.Fatalf("RemapStatic returned error: %v", err)
	}
	want := map[string]any{"HOSTGAL_MAG_Y": 1.0, "DEC": 2.0}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("unexpected remap (-want +got):\n%s", diff)
	}
}

func TestRemapRejectsUnknownColumns(t *testing.T) {
	_, err := features.RemapStatic(tom.Row{"ra": 1.0, "hostgal_logmass": 9.0})
	if !errors.Is(err, features.ErrUnmappedFeature) {
		t.Fatalf("expected ErrUnmappedFeature, got %v", err)
	}
	_, err = features.RemapTimeSeries(tom.Row{"diaobject_id": 1, "psflux": 1.0, "airmass": 1.2})
	if !errors.Is(err, features.ErrUnmappedFeature) {
		t.Fatalf("expected ErrUnmappedFeature for source row, got %v", err)
	}
}

func TestRemapTimeSeriesDropsObjectKey(t *testing.T) {
	got, err := features.RemapTimeSeries(obs(60000, "g", 1, 1))
	if err != nil {
		t.Fatalf("RemapTimeSeries returned error: %v", err)
	}
	if _, ok := got["SNID"]; ok {
		t.Fatalf("object key should not be remapped: %v", got)
	}
	if len(got) != 4 {
		t.Fatalf("expected 4 fields, got %v", got)
	}
}

func TestNewSourceConditionsLightCurve(t *testing.T) {
	raw := tom.RawObject{
		ID:     7,
		Static: staticRow(7),
		Sources: []tom.Row{
			obs(60002.0, "r", 60, 10),
			obs(60001.0, "g", 40, 10),
			{"diaobject_id": int64(7), "midpointtai": 60003.0, "filtername": "z", "psflux": 9000.0, "psfluxerr": 5.0, "photflag": int64(1024)},
			obs(60004.0, "i", 10, 0),
			obs(60005.0, "Y", 50, 10),
			{"diaobject_id": int64(7), "midpointtai": 60000.5, "filtername": "u", "psflux": nil, "psfluxerr": 3.0},
		},
		Truth: tom.Row{"diaobject_id": int64(7), "gentype": int64(25)},
	}
	src, err := features.NewSource(raw, features.Options{DetectionSNR: 5})
	if err != nil {
		t.Fatalf("NewSource returned error: %v", err)
	}

	want := []features.Observation{
		{MJD: 60001.0, Band: "g", FluxCal: 40, FluxCalErr: 10},
		{MJD: 60002.0, Band: "r", FluxCal: 60, FluxCalErr: 10, PhotFlag: features.FlagDetection},
		{MJD: 60005.0, Band: "Y", FluxCal: 50, FluxCalErr: 10, PhotFlag: features.FlagDetection},
	}
	if diff := cmp.Diff(want, src.Observations); diff != "" {
		t.Fatalf("unexpected observations (-want +got):\n%s", diff)
	}
	if src.Saturated != 1 || src.Invalid != 2 {
		t.Fatalf("unexpected counters: saturated=%d invalid=%d", src.Saturated, src.Invalid)
	}
	if src.Class != "SNIb/c" || !src.HasTruth || src.Gentype != 25 {
		t.Fatalf("unexpected truth: %+v", src)
	}

	wantStatic := map[string]float64{"RA": 150.1, "DEC": 2.2, "MWEBV": 0.02, "REDSHIFT_HELIO": 0.12, "HOSTGAL_MAG_Y": 20.5}
	if diff := cmp.Diff(wantStatic, src.Static); diff != "" {
		t.Fatalf("unexpected statics (-want +got):\n%s", diff)
	}
}

func TestNewSourceStableOrderForEqualTimes(t *testing.T) {
	raw := tom.RawObject{
		ID:     7,
		Static: tom.Row{"diaobject_id": int64(7)},
		Sources: []tom.Row{
			obs(60001, "r", 1, 1),
			obs(60000, "g", 1, 1),
			obs(60001, "i", 1, 1),
		},
	}
	src, err := features.NewSource(raw, features.Options{})
	if err != nil {
		t.Fatalf("NewSource returned error: %v", err)
	}
	bands := []string{src.Observations[0].Band, src.Observations[1].Band, src.Observations[2].Band}
	if diff := cmp.Diff([]string{"g", "r", "i"}, bands); diff != "" {
		t.Fatalf("unexpected order (-want +got):\n%s", diff)
	}
}

func TestNewSourceUnknownTruth(t *testing.T) {
	raw := tom.RawObject{ID: 7, Static: tom.Row{"diaobject_id": int64(7)}, Truth: tom.Row{"gentype": int64(999)}}
	src, err := features.NewSource(raw, features.Options{})
	if err != nil {
		t.Fatalf("NewSource returned error: %v", err)
	}
	if src.Class != features.UnknownClass || !src.HasTruth || src.Gentype != 999 {
		t.Fatalf("unexpected truth: %+v", src)
	}

	raw.Truth = nil
	src, err = features.NewSource(raw, features.Options{})
	if err != nil {
		t.Fatalf("NewSource returned error: %v", err)
	}
	if src.HasTruth || src.Class != features.UnknownClass {
		t.Fatalf("expected no truth: %+v", src)
	}
}

func TestNewSourceRejectsMismatchedSNID(t *testing.T) {
	raw := tom.RawObject{ID: 7, Static: tom.Row{"diaobject_id": int64(8)}}
	if _, err := features.NewSource(raw, features.Options{}); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestNewSourceRejectsUnmappedStatic(t *testing.T) {
	raw := tom.RawObject{ID: 7, Static: tom.Row{"diaobject_id": int64(7), "mystery": 1.0}}
	_, err := features.NewSource(raw, features.Options{})
	if !errors.Is(err, features.ErrUnmappedFeature) || !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected unmapped validation error, got %v", err)
	}
}

func TestNewSourceRejectsUnknownBand(t *testing.T) {
	raw := tom.RawObject{
		ID:      7,
		Static:  staticRow(7),
		Sources: []tom.Row{obs(60000, "g", 100, 10), obs(60001, "y", 100, 10)},
	}
	_, err := features.NewSource(raw, features.Options{})
	if !errors.Is(err, services.ErrValidation) || !strings.Contains(err.Error(), `unknown band "y"`) {
		t.Fatalf("expected unknown band validation error, got %v", err)
	}
}

func TestEventTableColumns(t *testing.T) {
	src := &features.Source{
		SNID:   9,
		Static: map[string]float64{"MWEBV": 0.1, "RA": 1},
		Observations: []features.Observation{
			{MJD: 1, Band: "g", FluxCal: 2, FluxCalErr: 3, PhotFlag: features.FlagDetection},
			{MJD: 4, Band: "r", FluxCal: 5, FluxCalErr: 6},
		},
	}
	table := src.EventTable()
	if table.Len() != 2 || table.SNID != 9 {
		t.Fatalf("unexpected table: %+v", table)
	}
	want := features.EventTable{
		SNID:       9,
		MJD:        []float64{1, 4},
		Band:       []string{"g", "r"},
		PhotFlag:   []int64{features.FlagDetection, 0},
		FluxCal:    []float64{2, 5},
		FluxCalErr: []float64{3, 6},
		Meta:       map[string]float64{"MWEBV": 0.1, "RA": 1},
	}
	if diff := cmp.Diff(want, table); diff != "" {
		t.Fatalf("unexpected table (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"MWEBV", "RA"}, table.MetaKeys()); diff != "" {
		t.Fatalf("unexpected meta keys (-want +got):\n%s", diff)
	}
}

func TestGentypeTable(t *testing.T) {
	cases := map[int64]string{10: "SNIa", 27: "SNIb/c", 36: "SNII", 72: "SLSN", 60: "AGN", 91: "Delta Scuti"}
	for code, want := range cases {
		if got, ok := features.ClassForGentype(code); !ok || got != want {
			t.Fatalf("gentype %d: got %q want %q", code, got, want)
		}
	}
	if _, ok := features.ClassForGentype(13); ok {
		t.Fatal("expected unknown gentype 13")
	}
}

func TestMJDConversions(t *testing.T) {
	j2000 := time.Date(2000, 1, 1, 12, 0, 0, 0, time.UTC)
	if got := features.TimeToMJD(j2000); math.Abs(got-51544.5) > 1e-6 {
		t.Fatalf("unexpected MJD for J2000: %v", got)
	}
	back := features.MJDToTime(60800)
	want := time.Date(2025, 5, 5, 0, 0, 0, 0, time.UTC)
	if d := back.Sub(want); d > time.Millisecond || d < -time.Millisecond {
		t.Fatalf("unexpected time for MJD 60800: %v", back)
	}
	if got := features.CurrentMJD(time.Date(2025, 5, 5, 18, 0, 0, 0, time.UTC)); got != 60800 {
		t.Fatalf("unexpected current MJD: %v", got)
	}
}
