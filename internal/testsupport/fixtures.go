package testsupport

// SeedTransients fills the fake TOM with three hot transients:
//
//	1001  SNIa (gentype 10), six observations, one saturated (photflag 1024)
//	1002  TDE (gentype 42), four observations, null host photometry
//	1003  no truth row, two observations
//
// The listing also contains 1004, which has no static row.
func SeedTransients(f *FakeTOM) {
	f.Hot = []map[string]any{
		{"objectid": int64(1001), "ra": 150.1, "dec": 2.2},
		{"objectid": int64(1002), "ra": 10.5, "dec": -45.0},
		{"objectid": int64(1003), "ra": 200.0, "dec": -10.0},
		{"objectid": int64(1004), "ra": 1.0, "dec": 1.0},
	}
	f.Static = []map[string]any{
		staticRow(1001, 150.1, 2.2, 0.12, 21.5),
		staticRow(1002, 10.5, -45.0, 0.43, nil),
		staticRow(1003, 200.0, -10.0, 0.05, 19.0),
	}
	f.Sources = []map[string]any{
		sourceRow(1001, 60790.10, "g", 120.0, 10.0, nil),
		sourceRow(1001, 60790.20, "r", 150.0, 10.0, nil),
		sourceRow(1001, 60791.10, "i", 30.0, 10.0, nil),
		sourceRow(1001, 60792.00, "z", 9000.0, 5.0, int64(1024)),
		sourceRow(1001, 60793.30, "Y", 200.0, 20.0, nil),
		sourceRow(1001, 60795.00, "u", 40.0, 20.0, nil),
		sourceRow(1002, 60795.50, "g", 500.0, 25.0, nil),
		sourceRow(1002, 60796.50, "g", 450.0, 25.0, nil),
		sourceRow(1002, 60797.50, "r", 80.0, 40.0, nil),
		sourceRow(1002, 60799.00, "r", 700.0, 30.0, nil),
		sourceRow(1003, 60799.10, "i", 60.0, 10.0, nil),
		sourceRow(1003, 60799.90, "i", 90.0, 10.0, nil),
	}
	f.Truth = []map[string]any{
		{"diaobject_id": int64(1001), "gentype": int64(10)},
		{"diaobject_id": int64(1002), "gentype": int64(42)},
	}
}

func staticRow(id int64, ra, dec, z float64, magR any) map[string]any {
	return map[string]any{
		"diaobject_id":        id,
		"ra":                  ra,
		"decl":                dec,
		"mwebv":               0.02,
		"mwebv_err":           0.001,
		"z_final":             z,
		"z_final_err":         0.01,
		"hostgal_zphot":       z,
		"hostgal_zphot_err":   0.05,
		"hostgal_zspec":       -9.0,
		"hostgal_zspec_err":   -9.0,
		"hostgal_ra":          ra + 0.0001,
		"hostgal_dec":         dec - 0.0001,
		"hostgal_snsep":       0.8,
		"hostgal_ellipticity": 0.3,
		"hostgal_mag_u":       23.1,
		"hostgal_mag_g":       22.4,
		"hostgal_mag_r":       magR,
		"hostgal_mag_i":       21.2,
		"hostgal_mag_z":       21.0,
		"hostgal_mag_y":       20.9,
	}
}

func sourceRow(id int64, mjd float64, band string, flux, fluxErr float64, photflag any) map[string]any {
	row := map[string]any{
		"diaobject_id": id,
		"midpointtai":  mjd,
		"filtername":   band,
		"psflux":       flux,
		"psfluxerr":    fluxErr,
	}
	if photflag != nil {
		row["photflag"] = photflag
	}
	return row
}
