// Package meters holds the table of telemetry meters the usage report knows
// how to describe and attribute to a service.
package meters

import (
	"context"
	"errors"
	"fmt"

	"github.com/ilhicas/openstack-usage-center/internal/providers"
)

// ProcessListMeter carries the encoded process list of an instance
const ProcessListMeter = "instance.process.list"

// sampled meters hold encoded values rather than numbers and are left out of
// service listings
var sampleOnly = map[string]bool{
	ProcessListMeter: true,
}

// ErrUnknownMeter is returned when a meter name is not in the table
var ErrUnknownMeter = errors.New("unknown meter")

var known = []providers.Meter{
	// compute
	{Name: "instance", Description: "Existence of instance", Unit: "instance", Service: providers.ServiceCompute},
	{Name: "memory", Description: "Volume of RAM allocated to the instance", Unit: "MB", Service: providers.ServiceCompute},
	{Name: "memory.usage", Description: "Volume of RAM used by the instance", Unit: "MB", Service: providers.ServiceCompute},
	{Name: "cpu", Description: "CPU time used", Unit: "ns", Service: providers.ServiceCompute},
	{Name: "cpu_util", Description: "Average CPU utilization", Unit: "%", Service: providers.ServiceCompute},
	{Name: "vcpus", Description: "Number of virtual CPUs allocated to the instance", Unit: "vcpu", Service: providers.ServiceCompute},
	{Name: "disk.read.requests", Description: "Number of read requests", Unit: "request", Service: providers.ServiceCompute},
	{Name: "disk.write.requests", Description: "Number of write requests", Unit: "request", Service: providers.ServiceCompute},
	{Name: "disk.read.bytes", Description: "Volume of reads", Unit: "B", Service: providers.ServiceCompute},
	{Name: "disk.write.bytes", Description: "Volume of writes", Unit: "B", Service: providers.ServiceCompute},
	{Name: "disk.root.size", Description: "Size of root disk", Unit: "GB", Service: providers.ServiceCompute},
	{Name: "disk.ephemeral.size", Description: "Size of ephemeral disk", Unit: "GB", Service: providers.ServiceCompute},
	{Name: "network.incoming.bytes", Description: "Number of incoming bytes on the network for a VM interface", Unit: "B", Service: providers.ServiceCompute},
	{Name: "network.outgoing.bytes", Description: "Number of outgoing bytes on the network for a VM interface", Unit: "B", Service: providers.ServiceCompute},
	{Name: "network.incoming.packets", Description: "Number of incoming packets for a VM interface", Unit: "packet", Service: providers.ServiceCompute},
	{Name: "network.outgoing.packets", Description: "Number of outgoing packets for a VM interface", Unit: "packet", Service: providers.ServiceCompute},
	{Name: ProcessListMeter, Description: "List of processes running inside the instance", Unit: "process", Service: providers.ServiceCompute},

	// network
	{Name: "network", Description: "Existence of network", Unit: "network", Service: providers.ServiceNetwork},
	{Name: "network.create", Description: "Creation requests for this network", Unit: "network", Service: providers.ServiceNetwork},
	{Name: "subnet", Description: "Existence of subnet", Unit: "subnet", Service: providers.ServiceNetwork},
	{Name: "port", Description: "Existence of port", Unit: "port", Service: providers.ServiceNetwork},
	{Name: "router", Description: "Existence of router", Unit: "router", Service: providers.ServiceNetwork},
	{Name: "ip.floating", Description: "Existence of floating ip", Unit: "ip", Service: providers.ServiceNetwork},

	// image
	{Name: "image", Description: "Image existence check", Unit: "image", Service: providers.ServiceImage},
	{Name: "image.size", Description: "Uploaded image size", Unit: "B", Service: providers.ServiceImage},
	{Name: "image.upload", Description: "Image is uploaded", Unit: "image", Service: providers.ServiceImage},
	{Name: "image.download", Description: "Image is downloaded", Unit: "B", Service: providers.ServiceImage},
	{Name: "image.serve", Description: "Image is served out", Unit: "B", Service: providers.ServiceImage},

	// block storage
	{Name: "volume", Description: "Existence of volume", Unit: "volume", Service: providers.ServiceBlockStorage},
	{Name: "volume.size", Description: "Size of volume", Unit: "GB", Service: providers.ServiceBlockStorage},

	// object storage
	{Name: "storage.objects", Description: "Number of objects", Unit: "object", Service: providers.ServiceObjectStorage},
	{Name: "storage.objects.size", Description: "Total size of stored objects", Unit: "B", Service: providers.ServiceObjectStorage},
	{Name: "storage.objects.containers", Description: "Number of containers", Unit: "container", Service: providers.ServiceObjectStorage},
	{Name: "storage.objects.incoming.bytes", Description: "Number of incoming bytes", Unit: "B", Service: providers.ServiceObjectStorage},
	{Name: "storage.objects.outgoing.bytes", Description: "Number of outgoing bytes", Unit: "B", Service: providers.ServiceObjectStorage},
	{Name: "storage.api.request", Description: "Number of API requests against swift", Unit: "request", Service: providers.ServiceObjectStorage},

	// power
	{Name: "energy", Description: "Amount of energy", Unit: "kWh", Service: providers.ServicePower},
	{Name: "power", Description: "Power consumption", Unit: "W", Service: providers.ServicePower},

	// ipmi
	{Name: "hardware.ipmi.node.power", Description: "System Current Power", Unit: "W", Service: providers.ServiceIPMI},
	{Name: "hardware.ipmi.node.temperature", Description: "System Current Temperature", Unit: "C", Service: providers.ServiceIPMI},
	{Name: "hardware.ipmi.fan", Description: "Fan RPM", Unit: "RPM", Service: providers.ServiceIPMI},
	{Name: "hardware.ipmi.temperature", Description: "Sensor Temperature Reading", Unit: "C", Service: providers.ServiceIPMI},
	{Name: "hardware.ipmi.current", Description: "Sensor Current Reading", Unit: "W", Service: providers.ServiceIPMI},
	{Name: "hardware.ipmi.voltage", Description: "Sensor Voltage Reading", Unit: "V", Service: providers.ServiceIPMI},
}

// Known returns a copy of the full meter table
func Known() []providers.Meter {
	out := make([]providers.Meter, len(known))
	copy(out, known)
	return out
}

// Lookup finds a meter by name
func Lookup(name string) (providers.Meter, bool) {
	for _, m := range known {
		if m.Name == name {
			return m, true
		}
	}
	return providers.Meter{}, false
}

// StaticCatalog serves the meter table, optionally restricted to the meter
// names a backend reports as present.
type StaticCatalog struct {
	meters []providers.Meter
}

// NewStaticCatalog builds a catalog over the whole table
func NewStaticCatalog() *StaticCatalog {
	return &StaticCatalog{meters: Known()}
}

// NewFilteredCatalog keeps only the meters whose name is in available,
// preserving table order.
func NewFilteredCatalog(available []string) *StaticCatalog {
	present := make(map[string]struct{}, len(available))
	for _, name := range available {
		present[name] = struct{}{}
	}

	var kept []providers.Meter
	for _, m := range known {
		if _, ok := present[m.Name]; ok {
			kept = append(kept, m)
		}
	}
	return &StaticCatalog{meters: kept}
}

// ListMeters returns the numeric catalog meters owned by service. Meters such
// as the process list are only reachable through GetMeter.
func (c *StaticCatalog) ListMeters(_ context.Context, service providers.Service) ([]providers.Meter, error) {
	var out []providers.Meter
	for _, m := range c.meters {
		if m.Service == service && !sampleOnly[m.Name] {
			out = append(out, m)
		}
	}
	return out, nil
}

// GetMeter returns the catalog meter with the given name
func (c *StaticCatalog) GetMeter(_ context.Context, name string) (providers.Meter, error) {
	for _, m := range c.meters {
		if m.Name == name {
			return m, nil
		}
	}
	return providers.Meter{}, fmt.Errorf("%w: %s", ErrUnknownMeter, name)
}
