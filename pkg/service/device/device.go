package device

import (
	"strings"

	"github.com/secmon-lab/strategos/pkg/domain/model"
	"github.com/secmon-lab/strategos/pkg/domain/types"
)

// Hints carries client-supplied constraint overrides taken from request
// headers. Explicit hints win over User-Agent inference.
type Hints struct {
	SaveData     bool
	Connectivity types.Connectivity
	MemoryMB     int
}

// Classify derives device constraints from a User-Agent string and optional
// client hints. Unknown or empty input falls back to the desktop defaults so
// selection never blocks on missing device context.
func Classify(userAgent string, hints Hints) *model.DeviceConstraints {
	c := model.DefaultDeviceConstraints()

	ua := strings.ToLower(userAgent)
	switch {
	case strings.Contains(ua, "ipad") || strings.Contains(ua, "tablet"):
		c.Type = types.DeviceTablet
		c.ProcessingPower = types.PowerMedium
		c.MemoryMB = 4096
		c.Connectivity = types.ConnectivityWifi
	case strings.Contains(ua, "mobile") || strings.Contains(ua, "iphone") || strings.Contains(ua, "android"):
		c.Type = types.DeviceMobile
		c.ProcessingPower = types.PowerMedium
		c.MemoryMB = 2048
		c.Connectivity = types.ConnectivityCellular
	}

	if hints.SaveData {
		c.ProcessingPower = types.PowerLow
	}
	if hints.Connectivity != "" && hints.Connectivity.IsValid() {
		c.Connectivity = hints.Connectivity
	}
	if hints.MemoryMB > 0 {
		c.MemoryMB = hints.MemoryMB
	}

	return c
}
