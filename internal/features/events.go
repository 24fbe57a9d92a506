package features

import "sort"

// EventColumns is the column order of an EventTable.
var EventColumns = []string{"MJD", "BAND", "PHOTFLAG", "FLUXCAL", "FLUXCALERR"}

// EventTable is the columnar light curve of one Source with its static
// features attached as metadata. All columns have the same length.
type EventTable struct {
	SNID       int64
	MJD        []float64
	Band       []string
	PhotFlag   []int64
	FluxCal    []float64
	FluxCalErr []float64
	Meta       map[string]float64
}

// EventTable returns the source's observations in column form.
func (s *Source) EventTable() EventTable {
	n := len(s.Observations)
	table := EventTable{
		SNID:       s.SNID,
		MJD:        make([]float64, n),
		Band:       make([]string, n),
		PhotFlag:   make([]int64, n),
		FluxCal:    make([]float64, n),
		FluxCalErr: make([]float64, n),
		Meta:       make(map[string]float64, len(s.Static)),
	}
	for i, obs := range s.Observations {
		table.MJD[i] = obs.MJD
		table.Band[i] = obs.Band
		table.PhotFlag[i] = obs.PhotFlag
		table.FluxCal[i] = obs.FluxCal
		table.FluxCalErr[i] = obs.FluxCalErr
	}
	for name, value := range s.Static {
		table.Meta[name] = value
	}
	return table
}

// Len returns the number of rows.
func (t EventTable) Len() int {
	return len(t.MJD)
}

// MetaKeys returns the metadata names in sorted order.
func (t EventTable) MetaKeys() []string {
	keys := make([]string, 0, len(t.Meta))
	for key := range t.Meta {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
