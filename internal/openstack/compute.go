package openstack

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/gophercloud/gophercloud"
	"github.com/gophercloud/gophercloud/openstack/compute/v2/extensions/extendedserverattributes"
	"github.com/gophercloud/gophercloud/openstack/compute/v2/extensions/extendedstatus"
	"github.com/gophercloud/gophercloud/openstack/compute/v2/extensions/instanceactions"
	"github.com/gophercloud/gophercloud/openstack/compute/v2/extensions/migrate"
	"github.com/gophercloud/gophercloud/openstack/compute/v2/servers"
	"github.com/rs/zerolog"
)

// ErrActionNotAllowed is returned when an instance's state forbids an action
var ErrActionNotAllowed = errors.New("action not allowed")

const taskDeleting = "deleting"

// Instance is the admin view of a server
type Instance struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	TenantID   string    `json:"tenantId"`
	TenantName string    `json:"tenantName,omitempty"`
	Host       string    `json:"host,omitempty"`
	Status     string    `json:"status"`
	TaskState  string    `json:"taskState,omitempty"`
	PowerState string    `json:"powerState"`
	ImageID    string    `json:"imageId,omitempty"`
	FlavorID   string    `json:"flavorId,omitempty"`
	Created    time.Time `json:"created"`
}

// InstanceFilter narrows the all-tenants instance listing
type InstanceFilter struct {
	Project string
	Host    string
	Name    string
	IP      string
	IP6     string
	Status  string
	Image   string
	Flavor  string
}

// Action is one entry of an instance's action log
type Action struct {
	Action    string    `json:"action"`
	RequestID string    `json:"requestId"`
	UserID    string    `json:"userId"`
	ProjectID string    `json:"projectId"`
	Message   string    `json:"message,omitempty"`
	StartTime time.Time `json:"startTime"`
}

// LiveMigrateOptions controls a live migration
type LiveMigrateOptions struct {
	// Host is the target; empty lets the scheduler choose
	Host           string
	BlockMigration bool
}

// ProjectNamer resolves project display names
type ProjectNamer interface {
	ProjectName(ctx context.Context, id string) (string, error)
}

type serverWithExt struct {
	servers.Server
	extendedstatus.ServerExtendedStatusExt
	extendedserverattributes.ServerAttributesExt
}

// Compute performs admin operations on instances
type Compute struct {
	client *gophercloud.ServiceClient
	namer  ProjectNamer
}

// NewCompute creates the admin compute service. namer may be nil, in which
// case tenant names are left empty.
func NewCompute(client *gophercloud.ServiceClient, namer ProjectNamer) *Compute {
	return &Compute{client: client, namer: namer}
}

// ListInstances lists servers of all tenants
func (c *Compute) ListInstances(ctx context.Context, f InstanceFilter) ([]Instance, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	opts := servers.ListOpts{
		AllTenants: true,
		TenantID:   f.Project,
		Host:       f.Host,
		Name:       f.Name,
		IP:         f.IP,
		IP6:        f.IP6,
		Status:     strings.ToUpper(f.Status),
		Image:      f.Image,
		Flavor:     f.Flavor,
	}
	page, err := servers.List(c.client, opts).AllPages()
	if err != nil {
		return nil, fmt.Errorf("error listing instances: %w", err)
	}
	var list []serverWithExt
	if err := servers.ExtractServersInto(page, &list); err != nil {
		return nil, fmt.Errorf("error decoding instances: %w", err)
	}

	names := make(map[string]string)
	instances := make([]Instance, 0, len(list))
	for _, s := range list {
		inst := toInstance(s)
		inst.TenantName = c.tenantName(ctx, inst.TenantID, names)
		instances = append(instances, inst)
	}
	return instances, nil
}

// GetInstance returns a single server
func (c *Compute) GetInstance(ctx context.Context, id string) (Instance, error) {
	if err := ctx.Err(); err != nil {
		return Instance{}, err
	}

	var s serverWithExt
	if err := servers.Get(c.client, id).ExtractInto(&s); err != nil {
		return Instance{}, fmt.Errorf("error getting instance %s: %w", id, err)
	}
	inst := toInstance(s)
	inst.TenantName = c.tenantName(ctx, inst.TenantID, nil)
	return inst, nil
}

// tenantName is best effort: a failed lookup leaves the name empty
func (c *Compute) tenantName(ctx context.Context, id string, cache map[string]string) string {
	if c.namer == nil || id == "" {
		return ""
	}
	if name, ok := cache[id]; ok {
		return name
	}
	name, err := c.namer.ProjectName(ctx, id)
	if err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("tenant_id", id).Msg("unable to resolve tenant name")
	}
	if cache != nil {
		cache[id] = name
	}
	return name
}

func toInstance(s serverWithExt) Instance {
	inst := Instance{
		ID:         s.ID,
		Name:       s.Name,
		TenantID:   s.TenantID,
		Host:       s.Host,
		Status:     s.Status,
		TaskState:  s.TaskState,
		PowerState: powerStateName(int(s.PowerState)),
		Created:    s.Created,
	}
	if id, ok := s.Image["id"].(string); ok {
		inst.ImageID = id
	}
	if id, ok := s.Flavor["id"].(string); ok {
		inst.FlavorID = id
	}
	return inst
}

var powerStates = map[int]string{
	0: "NO STATE",
	1: "RUNNING",
	3: "PAUSED",
	4: "SHUTDOWN",
	6: "CRASHED",
	7: "SUSPENDED",
}

func powerStateName(state int) string {
	if name, ok := powerStates[state]; ok {
		return name
	}
	return "NO STATE"
}

func isDeleting(inst Instance) bool {
	return strings.EqualFold(inst.TaskState, taskDeleting)
}

// CanMigrate reports whether a cold migration may be scheduled
func CanMigrate(inst Instance) bool {
	return (inst.Status == "ACTIVE" || inst.Status == "SHUTOFF") && !isDeleting(inst)
}

// CanLiveMigrate reports whether a live migration may be started
func CanLiveMigrate(inst Instance) bool {
	return inst.Status == "ACTIVE" && !isDeleting(inst)
}

// CanDelete reports whether the instance may be deleted
func CanDelete(inst Instance) bool {
	return inst.Status == "ERROR" || !isDeleting(inst)
}

func (c *Compute) checkAllowed(ctx context.Context, id, action string, allowed func(Instance) bool) error {
	inst, err := c.GetInstance(ctx, id)
	if err != nil {
		return err
	}
	if !allowed(inst) {
		return fmt.Errorf("%w: cannot %s instance %s in status %s (task %q)", ErrActionNotAllowed, action, id, inst.Status, inst.TaskState)
	}
	return nil
}

// Migrate schedules a cold migration, pending confirmation
func (c *Compute) Migrate(ctx context.Context, id string) error {
	if err := c.checkAllowed(ctx, id, "migrate", CanMigrate); err != nil {
		return err
	}
	if err := migrate.Migrate(c.client, id).ExtractErr(); err != nil {
		return fmt.Errorf("error migrating instance %s: %w", id, err)
	}
	zerolog.Ctx(ctx).Info().Str("instance", id).Msg("scheduled migration")
	return nil
}

// LiveMigrate moves a running instance to another host
func (c *Compute) LiveMigrate(ctx context.Context, id string, opts LiveMigrateOptions) error {
	if err := c.checkAllowed(ctx, id, "live migrate", CanLiveMigrate); err != nil {
		return err
	}

	block := opts.BlockMigration
	lm := migrate.LiveMigrateOpts{BlockMigration: &block}
	if opts.Host != "" {
		host := opts.Host
		lm.Host = &host
	}
	if err := migrate.LiveMigrate(c.client, id, lm).ExtractErr(); err != nil {
		return fmt.Errorf("error live migrating instance %s: %w", id, err)
	}
	zerolog.Ctx(ctx).Info().Str("instance", id).Str("host", opts.Host).Msg("started live migration")
	return nil
}

// Delete deletes an instance
func (c *Compute) Delete(ctx context.Context, id string) error {
	if err := c.checkAllowed(ctx, id, "delete", CanDelete); err != nil {
		return err
	}
	if err := servers.Delete(c.client, id).ExtractErr(); err != nil {
		return fmt.Errorf("error deleting instance %s: %w", id, err)
	}
	zerolog.Ctx(ctx).Info().Str("instance", id).Msg("scheduled deletion")
	return nil
}

// ConsoleLog returns the last length lines of the console output
func (c *Compute) ConsoleLog(ctx context.Context, id string, length int) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	out, err := servers.ShowConsoleOutput(c.client, id, servers.ShowConsoleOutputOpts{Length: length}).Extract()
	if err != nil {
		return "", fmt.Errorf("error getting console output of %s: %w", id, err)
	}
	return out, nil
}

// IsNotFound reports whether err is a 404 from an OpenStack API
func IsNotFound(err error) bool {
	var notFound gophercloud.ErrDefault404
	return errors.As(err, &notFound)
}

// UnavailableLogMessage is displayed in place of a console log that could not be fetched
func UnavailableLogMessage(id string) string {
	return fmt.Sprintf("Unable to get log for instance %q.", id)
}

// ActionLog returns the instance's actions, newest first
func (c *Compute) ActionLog(ctx context.Context, id string) ([]Action, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	page, err := instanceactions.List(c.client, id, nil).AllPages()
	if err != nil {
		return nil, fmt.Errorf("error listing actions of %s: %w", id, err)
	}
	raw, err := instanceactions.ExtractInstanceActions(page)
	if err != nil {
		return nil, fmt.Errorf("error decoding actions of %s: %w", id, err)
	}

	actions := make([]Action, 0, len(raw))
	for _, a := range raw {
		actions = append(actions, Action{
			Action:    a.Action,
			RequestID: a.RequestID,
			UserID:    a.UserID,
			ProjectID: a.ProjectID,
			Message:   a.Message,
			StartTime: a.StartTime,
		})
	}
	sort.SliceStable(actions, func(i, j int) bool {
		return actions[i].StartTime.After(actions[j].StartTime)
	})
	return actions, nil
}
