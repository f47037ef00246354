package cli

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/ilhicas/openstack-usage-center/internal/openstack"
	"github.com/ilhicas/openstack-usage-center/internal/reports"
	"github.com/olekukonko/tablewriter"
)

// InstanceList renders the admin instance table
type InstanceList []openstack.Instance

var instanceColumns = []string{"Project", "Host", "Name", "ID", "Status", "Task", "Power State", "Created"}

func (l InstanceList) Output(w io.Writer, format string) error {
	records := make([][]string, 0, len(l))
	for _, inst := range l {
		project := inst.TenantName
		if project == "" {
			project = inst.TenantID
		}
		task := inst.TaskState
		if task == "" {
			task = "None"
		}
		records = append(records, []string{
			project, inst.Host, inst.Name, inst.ID, inst.Status, task, inst.PowerState,
			inst.Created.Format(time.RFC3339),
		})
	}
	return render(w, format, []openstack.Instance(l), instanceColumns, records)
}

// ActionList renders an instance action log
type ActionList []openstack.Action

var actionColumns = []string{"Request ID", "Action", "Start Time", "User ID", "Message"}

func (l ActionList) Output(w io.Writer, format string) error {
	records := make([][]string, 0, len(l))
	for _, a := range l {
		message := a.Message
		if message == "" {
			message = "-"
		}
		records = append(records, []string{a.RequestID, a.Action, a.StartTime.Format(time.RFC3339), a.UserID, message})
	}
	return render(w, format, []openstack.Action(l), actionColumns, records)
}

func render(w io.Writer, format string, v interface{}, header []string, records [][]string) error {
	switch format {
	case reports.FormatJSON:
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(v); err != nil {
			return fmt.Errorf("error encoding to JSON: %w", err)
		}
		return nil
	case reports.FormatCSV:
		cw := csv.NewWriter(w)
		if err := cw.Write(header); err != nil {
			return fmt.Errorf("error writing CSV header: %w", err)
		}
		if err := cw.WriteAll(records); err != nil {
			return fmt.Errorf("error writing CSV rows: %w", err)
		}
		return nil
	case reports.FormatTable, "":
		table := tablewriter.NewWriter(w)
		table.SetHeader(header)
		table.SetAutoWrapText(false)
		table.AppendBulk(records)
		table.Render()
		return nil
	default:
		return fmt.Errorf("unsupported output format: %s", format)
	}
}
