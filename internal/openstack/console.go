package openstack

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/gophercloud/gophercloud/openstack/compute/v2/extensions/remoteconsoles"
	"github.com/rs/zerolog"
)

// remote consoles need compute API microversion 2.6
const remoteConsoleMicroversion = "2.6"

var (
	// ErrConsoleDisabled is returned when console_type is empty or false
	ErrConsoleDisabled = errors.New("console access is disabled")
	// ErrConsoleUnavailable is returned when no console type could be opened
	ErrConsoleUnavailable = errors.New("no console available")
)

// Console is an opened remote console
type Console struct {
	Type string `json:"type"`
	URL  string `json:"url"`
}

type consoleKind struct {
	name     string
	protocol remoteconsoles.ConsoleProtocol
	kind     remoteconsoles.ConsoleType
}

// autoConsoleOrder is tried in order for console type AUTO
var autoConsoleOrder = []consoleKind{
	{name: "VNC", protocol: remoteconsoles.ConsoleProtocolVNC, kind: remoteconsoles.ConsoleTypeNoVNC},
	{name: "SPICE", protocol: remoteconsoles.ConsoleProtocolSPICE, kind: remoteconsoles.ConsoleTypeSPICEHTML5},
	{name: "RDP", protocol: remoteconsoles.ConsoleProtocolRDP, kind: remoteconsoles.ConsoleTypeRDPHTML5},
	{name: "SERIAL", protocol: remoteconsoles.ConsoleProtocolSerial, kind: remoteconsoles.ConsoleTypeSerial},
	{name: "MKS", protocol: remoteconsoles.ConsoleProtocolMKS, kind: remoteconsoles.ConsoleTypeWebMKS},
}

// ConsoleEnabled reports whether consoleType permits console access
func ConsoleEnabled(consoleType string) bool {
	switch strings.ToLower(strings.TrimSpace(consoleType)) {
	case "", "false", "none":
		return false
	}
	return true
}

// Console opens a remote console of the given type, or the first available
// one when consoleType is AUTO.
func (c *Compute) Console(ctx context.Context, id, consoleType string) (*Console, error) {
	if !ConsoleEnabled(consoleType) {
		return nil, ErrConsoleDisabled
	}

	var candidates []consoleKind
	if strings.EqualFold(consoleType, "AUTO") {
		candidates = autoConsoleOrder
	} else {
		for _, k := range autoConsoleOrder {
			if strings.EqualFold(k.name, consoleType) {
				candidates = []consoleKind{k}
			}
		}
		if candidates == nil {
			return nil, fmt.Errorf("unsupported console type: %s", consoleType)
		}
	}

	client := *c.client
	client.Microversion = remoteConsoleMicroversion

	logger := zerolog.Ctx(ctx)
	var lastErr error
	for _, k := range candidates {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rc, err := remoteconsoles.Create(&client, id, remoteconsoles.CreateOpts{
			Protocol: k.protocol,
			Type:     k.kind,
		}).Extract()
		if err != nil {
			logger.Debug().Err(err).Str("instance", id).Str("console", k.name).Msg("console type unavailable")
			lastErr = err
			continue
		}
		return &Console{Type: k.name, URL: rc.URL}, nil
	}

	return nil, fmt.Errorf("%w for instance %s: %v", ErrConsoleUnavailable, id, lastErr)
}
