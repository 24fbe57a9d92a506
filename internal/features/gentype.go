package features

// GentypeClasses maps ELAsTiCC simulation model codes to ORACLE leaf classes.
var GentypeClasses = map[int64]string{
	10: "SNIa",
	25: "SNIb/c", 20: "SNIb/c", 21: "SNIb/c", 26: "SNIb/c", 27: "SNIb/c",
	37: "SNII", 31: "SNII", 32: "SNII", 35: "SNII", 36: "SNII",
	12: "SNIax",
	11: "SN91bg",
	50: "KN",
	82: "M-dwarf Flare",
	84: "Dwarf Novae",
	88: "uLens",
	40: "SLSN", 72: "SLSN",
	42: "TDE",
	45: "ILOT",
	46: "CART",
	59: "PISN",
	90: "Cepheid",
	80: "RR Lyrae",
	91: "Delta Scuti",
	83: "EB",
	60: "AGN",
}

// ClassForGentype returns the class name for a gentype code.
func ClassForGentype(code int64) (string, bool) {
	class, ok := GentypeClasses[code]
	return class, ok
}
