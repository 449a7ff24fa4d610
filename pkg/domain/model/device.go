package model

import (
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/strategos/pkg/domain/types"
)

// DeviceConstraints is the capability/connectivity envelope of the
// requesting client. Supplied by the caller or inferred from the user agent;
// immutable per request.
type DeviceConstraints struct {
	Type            types.DeviceType      `json:"type"`
	ProcessingPower types.ProcessingPower `json:"processingPower"`
	MemoryMB        int                   `json:"memoryMb"`
	Connectivity    types.Connectivity    `json:"connectivity"`
}

// DefaultDeviceConstraints assumes an unconstrained desktop client
func DefaultDeviceConstraints() *DeviceConstraints {
	return &DeviceConstraints{
		Type:            types.DeviceDesktop,
		ProcessingPower: types.PowerHigh,
		MemoryMB:        8192,
		Connectivity:    types.ConnectivityEthernet,
	}
}

// Validate checks if the device constraints are valid
func (d *DeviceConstraints) Validate() error {
	if !d.Type.IsValid() {
		return goerr.New("invalid device type", goerr.V("type", d.Type))
	}
	if !d.ProcessingPower.IsValid() {
		return goerr.New("invalid processing power", goerr.V("power", d.ProcessingPower))
	}
	if !d.Connectivity.IsValid() {
		return goerr.New("invalid connectivity", goerr.V("connectivity", d.Connectivity))
	}
	if d.MemoryMB < 0 {
		return goerr.New("memory budget must not be negative", goerr.V("memoryMb", d.MemoryMB))
	}
	return nil
}

// IsHandheld reports whether the device qualifies for the device-optimized
// strategy bonus
func (d *DeviceConstraints) IsHandheld() bool {
	return d.Type == types.DeviceMobile || d.Type == types.DeviceTablet
}

// IsConstrained reports whether low cost should be favored for this device
func (d *DeviceConstraints) IsConstrained() bool {
	return d.ProcessingPower == types.PowerLow ||
		d.Connectivity == types.ConnectivityCellular ||
		d.Connectivity == types.ConnectivityOffline
}
