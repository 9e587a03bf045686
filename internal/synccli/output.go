package synccli

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/goccy/go-json"
	"github.com/okian/rollcall/internal/domain/model"
)

func write(out io.Writer, format string, rows []model.CharacterAttendanceStats) error {
	switch format {
	case FormatJSON:
		return writeJSON(out, rows)
	case FormatExport:
		exports := make([]model.AttendanceExport, len(rows))
		for i, r := range rows {
			exports[i] = r.Export()
		}
		return writeJSON(out, exports)
	default:
		return writeTable(out, rows)
	}
}

func writeJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeTable(out io.Writer, rows []model.CharacterAttendanceStats) error {
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tFIRST\tATTENDED\tTOTAL\tPERCENT")
	for _, r := range rows {
		first := "-"
		if !r.FirstAttendance.IsZero() {
			first = r.FirstAttendance.Format(time.DateOnly)
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%.2f\n", r.Name, first, r.ReportsAttended, r.TotalReports, r.Percentage)
	}
	return tw.Flush()
}
