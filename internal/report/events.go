package report

import (
	"fmt"
	"strconv"
	"strings"

	"oracletom/internal/features"
)

// RenderEventTable formats one light curve with its static metadata.
func RenderEventTable(table features.EventTable) string {
	var b strings.Builder
	fmt.Fprintf(&b, "-------------------- SNID: %d --------------------\n", table.SNID)

	headers := []string{"MJD", "UTC", "BAND", "PHOTFLAG", "FLUXCAL", "FLUXCALERR"}
	rows := make([][]string, 0, table.Len())
	for i := 0; i < table.Len(); i++ {
		rows = append(rows, []string{
			strconv.FormatFloat(table.MJD[i], 'f', 5, 64),
			features.MJDToTime(table.MJD[i]).Format("2006-01-02 15:04:05"),
			table.Band[i],
			strconv.FormatInt(table.PhotFlag[i], 10),
			strconv.FormatFloat(table.FluxCal[i], 'g', 6, 64),
			strconv.FormatFloat(table.FluxCalErr[i], 'g', 6, 64),
		})
	}
	if len(rows) == 0 {
		b.WriteString("(no usable observations)\n")
	} else {
		b.WriteString(RenderTable(headers, rows, []Alignment{AlignRight, AlignLeft, AlignLeft, AlignRight, AlignRight, AlignRight}))
		b.WriteString("\n")
	}

	if keys := table.MetaKeys(); len(keys) > 0 {
		metaRows := make([][]string, 0, len(keys))
		for _, key := range keys {
			metaRows = append(metaRows, []string{key, strconv.FormatFloat(table.Meta[key], 'g', 8, 64)})
		}
		b.WriteString(RenderTable([]string{"Feature", "Value"}, metaRows, []Alignment{AlignLeft, AlignRight}))
		b.WriteString("\n")
	}
	return b.String()
}
