package providers

import (
	"context"
	"time"
)

// Service groups meters for display
type Service string

const (
	ServiceCompute       Service = "compute"
	ServiceNetwork       Service = "network"
	ServiceImage         Service = "image"
	ServiceBlockStorage  Service = "block-storage"
	ServiceObjectStorage Service = "object-storage"
	ServicePower         Service = "power"
	ServiceIPMI          Service = "ipmi"
)

// Services lists every known service in report order
var Services = []Service{
	ServiceCompute,
	ServiceNetwork,
	ServiceImage,
	ServiceBlockStorage,
	ServiceObjectStorage,
	ServicePower,
	ServiceIPMI,
}

// BucketSeconds is the aggregation period used by every usage query
const BucketSeconds int64 = 86400

// Meter describes a named telemetry meter
type Meter struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Unit        string  `json:"unit"`
	Service     Service `json:"service"`
}

// DateRange is a resolved query window. A zero From means no lower bound.
type DateRange struct {
	From          time.Time `json:"from"`
	To            time.Time `json:"to"`
	BucketSeconds int64     `json:"bucketSeconds"`
}

// Bucket is one aggregated period of a series
type Bucket struct {
	PeriodEnd time.Time
	Avg       float64
}

// ProjectAggregate is the per-project series returned for one meter
type ProjectAggregate struct {
	ProjectID string
	Unit      string
	Series    []Bucket
}

// Sample is a single raw sample with its encoded value
type Sample struct {
	Timestamp    time.Time
	EncodedValue string
}

// SampleFilter narrows a sample listing
type SampleFilter struct {
	ResourceID string
}

// MeterCatalog resolves meters known to the telemetry service
type MeterCatalog interface {
	// ListMeters returns the meters owned by the given service
	ListMeters(ctx context.Context, service Service) ([]Meter, error)

	// GetMeter returns a single meter by name
	GetMeter(ctx context.Context, name string) (Meter, error)
}

// SampleStore returns aggregated and raw samples
type SampleStore interface {
	// QueryAggregates returns one aggregate per project that has data for the meter
	QueryAggregates(ctx context.Context, meter string, projects []string, r DateRange) ([]ProjectAggregate, error)

	// ListSamples returns at most limit of the most recent samples matching filter
	ListSamples(ctx context.Context, meter string, filter SampleFilter, limit int) ([]Sample, error)
}

// ProjectResolver lists the projects a report should cover
type ProjectResolver interface {
	ListActiveProjects(ctx context.Context, r DateRange) ([]string, error)
}

// Provider interface that must be implemented by each telemetry backend
type Provider interface {
	MeterCatalog
	SampleStore

	// GetName returns the provider name
	GetName() string
}
