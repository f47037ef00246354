package reports

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/olekukonko/tablewriter"
)

// Output formats
const (
	FormatTable = "table"
	FormatJSON  = "json"
	FormatCSV   = "csv"
)

var usageColumns = []string{"Project", "Service", "Meter", "Description", "Day", "Value (Avg)", "Unit"}

// Output writes the report to w in the given format
func (r *UsageReport) Output(w io.Writer, format string) error {
	switch format {
	case FormatJSON:
		return r.OutputJSON(w)
	case FormatCSV:
		return r.OutputCSV(w)
	case FormatTable, "":
		return r.OutputTable(w)
	default:
		return fmt.Errorf("unsupported output format: %s", format)
	}
}

// OutputJSON writes the report as indented JSON
func (r *UsageReport) OutputJSON(w io.Writer) error {
	type jsonReport struct {
		Provider string      `json:"provider"`
		From     *time.Time  `json:"from,omitempty"`
		To       *time.Time  `json:"to,omitempty"`
		Bucket   int64       `json:"bucketSeconds,omitempty"`
		Rows     []ReportRow `json:"rows"`
		Warnings []string    `json:"warnings,omitempty"`
	}

	out := jsonReport{
		Provider: r.ProviderName,
		Bucket:   r.Range.BucketSeconds,
		Rows:     r.Rows,
		Warnings: WarningMessages(r.Warnings),
	}
	if out.Rows == nil {
		out.Rows = []ReportRow{}
	}
	if !r.Range.From.IsZero() {
		out.From = &r.Range.From
	}
	if !r.Range.To.IsZero() {
		out.To = &r.Range.To
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(out); err != nil {
		return fmt.Errorf("error encoding report to JSON: %w", err)
	}
	return nil
}

// OutputCSV writes one line per row with a header
func (r *UsageReport) OutputCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(usageColumns); err != nil {
		return fmt.Errorf("error writing CSV header: %w", err)
	}
	for _, row := range r.Rows {
		if err := cw.Write(usageRecord(row)); err != nil {
			return fmt.Errorf("error writing CSV row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// OutputTable renders the report as an ASCII table followed by any warnings
func (r *UsageReport) OutputTable(w io.Writer) error {
	fmt.Fprintf(w, "Usage report for %s\n", r.ProviderName)
	if !r.Range.To.IsZero() {
		from := "beginning"
		if !r.Range.From.IsZero() {
			from = r.Range.From.Format("2006-01-02 15:04:05")
		}
		fmt.Fprintf(w, "Period: %s to %s\n\n", from, r.Range.To.Format("2006-01-02 15:04:05"))
	}

	table := newTable(w, usageColumns)
	for _, row := range r.Rows {
		table.Append(usageRecord(row))
	}
	table.SetCaption(true, fmt.Sprintf("%d rows", len(r.Rows)))
	table.Render()

	writeWarnings(w, r.Warnings)
	return nil
}

func usageRecord(row ReportRow) []string {
	return []string{
		row.Project,
		string(row.Service),
		row.Meter,
		row.Description,
		row.Time.Format("2006-01-02"),
		strconv.FormatFloat(row.Value, 'f', 4, 64),
		row.Unit,
	}
}

var processColumns = []string{"Offset", "Name", "Pid", "Uid", "Gid", "DTB", "Start Time"}

// Output writes the process report to w in the given format
func (r *ProcessReport) Output(w io.Writer, format string) error {
	switch format {
	case FormatJSON:
		return r.OutputJSON(w)
	case FormatCSV:
		return r.OutputCSV(w)
	case FormatTable, "":
		return r.OutputTable(w)
	default:
		return fmt.Errorf("unsupported output format: %s", format)
	}
}

// OutputJSON writes the process report as indented JSON
func (r *ProcessReport) OutputJSON(w io.Writer) error {
	type jsonReport struct {
		Instance   InstanceRef  `json:"instance"`
		SampleInfo *SampleInfo  `json:"sampleInfo,omitempty"`
		Processes  []ProcessRow `json:"processes"`
		Warnings   []string     `json:"warnings,omitempty"`
	}

	out := jsonReport{
		Instance:   r.Instance,
		SampleInfo: r.SampleInfo,
		Processes:  r.Rows,
		Warnings:   WarningMessages(r.Warnings),
	}
	if out.Processes == nil {
		out.Processes = []ProcessRow{}
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(out); err != nil {
		return fmt.Errorf("error encoding process list to JSON: %w", err)
	}
	return nil
}

// OutputCSV writes one line per process with a header
func (r *ProcessReport) OutputCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(processColumns); err != nil {
		return fmt.Errorf("error writing CSV header: %w", err)
	}
	for _, row := range r.Rows {
		if err := cw.Write(processRecord(row)); err != nil {
			return fmt.Errorf("error writing CSV row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// OutputTable renders the sample info and the process table
func (r *ProcessReport) OutputTable(w io.Writer) error {
	if r.SampleInfo != nil {
		info := newTable(w, []string{"Instance", "Meter", "Description", "Timestamp"})
		info.Append([]string{
			r.SampleInfo.Instance,
			r.SampleInfo.Meter,
			r.SampleInfo.Description,
			r.SampleInfo.Timestamp.Format(time.RFC3339),
		})
		info.Render()
		fmt.Fprintln(w)
	}

	table := newTable(w, processColumns)
	for _, row := range r.Rows {
		table.Append(processRecord(row))
	}
	table.Render()

	writeWarnings(w, r.Warnings)
	return nil
}

func processRecord(row ProcessRow) []string {
	return []string{row.Offset, row.Name, row.PID, row.UID, row.GID, row.DTB, row.StartTime}
}

func newTable(w io.Writer, header []string) *tablewriter.Table {
	table := tablewriter.NewWriter(w)
	table.SetHeader(header)
	table.SetBorder(false)
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetTablePadding("\t")
	table.SetNoWhiteSpace(true)
	return table
}

func writeWarnings(w io.Writer, warnings []error) {
	if len(warnings) == 0 {
		return
	}
	fmt.Fprintln(w, "\nWarnings:")
	for _, msg := range WarningMessages(warnings) {
		fmt.Fprintf(w, "  - %s\n", msg)
	}
}
