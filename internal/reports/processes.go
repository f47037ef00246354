package reports

import (
	"context"
	"time"

	"github.com/ilhicas/openstack-usage-center/internal/literal"
	"github.com/ilhicas/openstack-usage-center/internal/meters"
	"github.com/ilhicas/openstack-usage-center/internal/providers"
	"github.com/rs/zerolog"
)

// InstanceRef identifies the instance a drill-down is for
type InstanceRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// ProcessRow is one process reported by the in-guest collector. Fields hold
// the collector's values verbatim.
type ProcessRow struct {
	Offset    string `json:"offset"`
	Name      string `json:"name"`
	PID       string `json:"pid"`
	UID       string `json:"uid"`
	GID       string `json:"gid"`
	DTB       string `json:"dtb"`
	StartTime string `json:"startTime"`
}

// SampleInfo describes the sample a process list was decoded from
type SampleInfo struct {
	Instance    string    `json:"instance"`
	Meter       string    `json:"meter"`
	Description string    `json:"description"`
	Timestamp   time.Time `json:"timestamp"`
}

// ProcessReport is the result of one BuildProcessList call
type ProcessReport struct {
	Instance   InstanceRef
	Rows       []ProcessRow
	SampleInfo *SampleInfo
	Warnings   []error
}

var processFields = []string{"offset", "process_name", "pid", "uid", "gid", "dtb", "start_time"}

// BuildProcessList decodes the most recent process-list sample of an instance.
// A malformed sample yields zero rows and an ErrDecode warning.
func (rg *ReportGenerator) BuildProcessList(ctx context.Context, instance InstanceRef) *ProcessReport {
	started := time.Now()
	logger := zerolog.Ctx(ctx).With().Str("instance", instance.ID).Logger()
	report := &ProcessReport{Instance: instance}
	defer func() {
		rg.metrics.observe("processes", started, len(report.Rows), report.Warnings)
	}()

	warn := func(err error) {
		logger.Warn().Err(err).Str("kind", WarningKind(err)).Msg("process list warning")
		report.Warnings = append(report.Warnings, err)
	}

	meter, err := rg.provider.GetMeter(ctx, meters.ProcessListMeter)
	if err != nil {
		warn(upstreamError("unable to retrieve meter "+meters.ProcessListMeter, err))
		return report
	}

	samples, err := rg.provider.ListSamples(ctx, meter.Name, providers.SampleFilter{ResourceID: instance.ID}, 1)
	if err != nil {
		warn(upstreamError("unable to retrieve samples", err))
		return report
	}
	if len(samples) == 0 {
		warn(upstreamError("no "+meter.Name+" sample for instance "+instance.ID, nil))
		return report
	}
	sample := samples[0]

	report.SampleInfo = &SampleInfo{
		Instance:    instance.Name,
		Meter:       meter.Name,
		Description: meter.Description,
		Timestamp:   sample.Timestamp,
	}

	rows, err := decodeProcessRows(sample.EncodedValue)
	if err != nil {
		warn(decodeError("unable to decode process list", err))
		return report
	}
	report.Rows = rows

	logger.Debug().Int("processes", len(rows)).Time("sampled_at", sample.Timestamp).Msg("process list decoded")
	return report
}

// decodeProcessRows is all-or-nothing: one bad record discards the list
func decodeProcessRows(encoded string) ([]ProcessRow, error) {
	records, err := literal.DecodeRecords(encoded)
	if err != nil {
		return nil, err
	}

	rows := make([]ProcessRow, 0, len(records))
	for _, rec := range records {
		values := make([]string, len(processFields))
		for i, field := range processFields {
			v, err := rec.Scalar(field)
			if err != nil {
				return nil, err
			}
			values[i] = v
		}
		rows = append(rows, ProcessRow{
			Offset:    values[0],
			Name:      values[1],
			PID:       values[2],
			UID:       values[3],
			GID:       values[4],
			DTB:       values[5],
			StartTime: values[6],
		})
	}
	return rows, nil
}
