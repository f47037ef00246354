package reports

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ilhicas/openstack-usage-center/internal/providers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const encodedProcesses = `[{'offset': '0xffff880037d28000', 'process_name': 'init', 'pid': 1, 'uid': 0, 'gid': 0, 'dtb': '0x36b1a000', 'start_time': '2017-05-02 08:13:01 UTC+0000'}, {'offset': '0xffff880037d29700', 'process_name': 'sshd', 'pid': 912, 'uid': 0, 'gid': 0, 'dtb': '0x35d0e000', 'start_time': '2017-05-02 08:13:09 UTC+0000'}]`

var sampledAt = time.Date(2017, 5, 2, 9, 0, 0, 0, time.UTC)

func processProvider(encoded string) *stubProvider {
	return &stubProvider{
		getMeter: providers.Meter{Description: "List of processes running inside the instance", Service: providers.ServiceCompute},
		samples:  []providers.Sample{{Timestamp: sampledAt, EncodedValue: encoded}},
	}
}

func TestBuildProcessList_WellFormed(t *testing.T) {
	p := processProvider(encodedProcesses)
	rg := newTestGenerator(p, &stubResolver{})

	report := rg.BuildProcessList(context.Background(), InstanceRef{ID: "uuid-1", Name: "web-1"})

	assert.Empty(t, report.Warnings)
	require.Len(t, report.Rows, 2)
	assert.Equal(t, ProcessRow{
		Offset:    "0xffff880037d28000",
		Name:      "init",
		PID:       "1",
		UID:       "0",
		GID:       "0",
		DTB:       "0x36b1a000",
		StartTime: "2017-05-02 08:13:01 UTC+0000",
	}, report.Rows[0])
	assert.Equal(t, "sshd", report.Rows[1].Name)
	assert.Equal(t, "912", report.Rows[1].PID)

	require.NotNil(t, report.SampleInfo)
	assert.Equal(t, SampleInfo{
		Instance:    "web-1",
		Meter:       "instance.process.list",
		Description: "List of processes running inside the instance",
		Timestamp:   sampledAt,
	}, *report.SampleInfo)

	assert.Equal(t, providers.SampleFilter{ResourceID: "uuid-1"}, p.sampleFilter)
	assert.Equal(t, 1, p.sampleLimit)
}

func TestBuildProcessList_Malformed(t *testing.T) {
	inputs := map[string]string{
		"code":            `__import__('os').system('touch /tmp/pwned')`,
		"truncated":       `[{'offset': '0x1', 'process_name': 'init'`,
		"missing key":     `[{'offset': '0x1', 'process_name': 'init', 'pid': 1}]`,
		"unquoted values": `[{'offset': __import__('os').system('id'), 'process_name': init, 'pid': 1, 'uid': 0, 'gid': 0, 'dtb': 0, 'start_time': (1, 2)}]`,
		"tagged":          `[{'offset': !!python/name:os.system '', 'process_name': 'x', 'pid': 1, 'uid': 0, 'gid': 0, 'dtb': 0, 'start_time': 0}]`,
	}

	for name, input := range inputs {
		t.Run(name, func(t *testing.T) {
			rg := newTestGenerator(processProvider(input), &stubResolver{})

			report := rg.BuildProcessList(context.Background(), InstanceRef{ID: "uuid-1"})

			assert.Empty(t, report.Rows)
			require.Len(t, report.Warnings, 1)
			assert.ErrorIs(t, report.Warnings[0], ErrDecode)
			assert.NotNil(t, report.SampleInfo)
		})
	}
}

func TestBuildProcessList_NoSample(t *testing.T) {
	p := processProvider("")
	p.samples = nil
	report := newTestGenerator(p, &stubResolver{}).BuildProcessList(context.Background(), InstanceRef{ID: "uuid-1"})

	assert.Empty(t, report.Rows)
	assert.Nil(t, report.SampleInfo)
	require.Len(t, report.Warnings, 1)
	assert.ErrorIs(t, report.Warnings[0], ErrUpstream)
}

func TestBuildProcessList_UpstreamErrors(t *testing.T) {
	t.Run("meter lookup", func(t *testing.T) {
		p := processProvider(encodedProcesses)
		p.getErr = errors.New("meter not found")
		report := newTestGenerator(p, &stubResolver{}).BuildProcessList(context.Background(), InstanceRef{ID: "uuid-1"})

		assert.Empty(t, report.Rows)
		require.Len(t, report.Warnings, 1)
		assert.ErrorIs(t, report.Warnings[0], ErrUpstream)
	})

	t.Run("sample listing", func(t *testing.T) {
		p := processProvider(encodedProcesses)
		p.samplesErr = errors.New("503 service unavailable")
		report := newTestGenerator(p, &stubResolver{}).BuildProcessList(context.Background(), InstanceRef{ID: "uuid-1"})

		assert.Empty(t, report.Rows)
		require.Len(t, report.Warnings, 1)
		assert.ErrorIs(t, report.Warnings[0], ErrUpstream)
	})
}
