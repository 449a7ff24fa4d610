package types

import "fmt"

// DeviceType represents the form factor of the requesting client
type DeviceType string

const (
	DeviceMobile  DeviceType = "mobile"
	DeviceTablet  DeviceType = "tablet"
	DeviceDesktop DeviceType = "desktop"
)

// IsValid checks if the device type is valid
func (d DeviceType) IsValid() bool {
	switch d {
	case DeviceMobile, DeviceTablet, DeviceDesktop:
		return true
	default:
		return false
	}
}

// String returns the string representation of the device type
func (d DeviceType) String() string {
	return string(d)
}

// ParseDeviceType parses a string into a DeviceType
func ParseDeviceType(s string) (DeviceType, error) {
	d := DeviceType(s)
	if !d.IsValid() {
		return "", fmt.Errorf("invalid device type: %s", s)
	}
	return d, nil
}

// ProcessingPower represents the processing capability tier of a device
type ProcessingPower string

const (
	PowerLow    ProcessingPower = "low"
	PowerMedium ProcessingPower = "medium"
	PowerHigh   ProcessingPower = "high"
)

// IsValid checks if the processing power tier is valid
func (p ProcessingPower) IsValid() bool {
	switch p {
	case PowerLow, PowerMedium, PowerHigh:
		return true
	default:
		return false
	}
}

// String returns the string representation of the processing power tier
func (p ProcessingPower) String() string {
	return string(p)
}

// Connectivity represents the network class of the requesting client
type Connectivity string

const (
	ConnectivityCellular Connectivity = "cellular"
	ConnectivityWifi     Connectivity = "wifi"
	ConnectivityEthernet Connectivity = "ethernet"
	ConnectivityOffline  Connectivity = "offline"
)

// IsValid checks if the connectivity class is valid
func (c Connectivity) IsValid() bool {
	switch c {
	case ConnectivityCellular, ConnectivityWifi, ConnectivityEthernet, ConnectivityOffline:
		return true
	default:
		return false
	}
}

// String returns the string representation of the connectivity class
func (c Connectivity) String() string {
	return string(c)
}
