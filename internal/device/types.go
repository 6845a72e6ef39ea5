package device

import "time"

// IDPrefix is prepended to generated device IDs.
const IDPrefix = "dev-"

// Device types reported by gateways. The vocabulary is open: any other
// string is accepted and falls into CategoryOther.
const (
	TypeCamera         = "CAMERA"
	TypePresenceSensor = "SENSOR_PRESENCA"
	TypeSwitchRelay    = "SONOFF_MINI"
	TypeSmartPlug      = "TUYA"
)

// Category groups device types for presentation.
type Category string

// Device categories.
const (
	CategoryCamera         Category = "camera"
	CategoryPresenceSensor Category = "presence-sensor"
	CategorySwitchRelay    Category = "switch-relay"
	CategorySmartPlug      Category = "generic-smart-plug"
	CategoryOther          Category = "other"
)

// CategoryOf maps a reported type to its category.
func CategoryOf(deviceType string) Category {
	switch deviceType {
	case TypeCamera:
		return CategoryCamera
	case TypePresenceSensor:
		return CategoryPresenceSensor
	case TypeSwitchRelay:
		return CategorySwitchRelay
	case TypeSmartPlug:
		return CategorySmartPlug
	default:
		return CategoryOther
	}
}

// Device is a sensor, actuator or camera owned by exactly one gateway.
type Device struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Type        string    `json:"type"`
	Description string    `json:"description"`
	GatewayID   string    `json:"gateway_id"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// View is a device joined with the gateway that owns it.
type View struct {
	Device
	Category           Category `json:"category"`
	GatewayName        string   `json:"gateway_name"`
	GatewayLocalAPIURL string   `json:"gateway_local_api_url,omitempty"`
}

// Reported is one entry of a gateway's registration payload.
type Reported struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// Status is the per-device result of a registration.
type Status string

// Registration statuses.
const (
	StatusCreated  Status = "created"
	StatusExisting Status = "existing"
)

// Outcome reports what happened to one reported device.
type Outcome struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Type   string `json:"type"`
	Status Status `json:"status"`
}

// Registration is the result of Reconciler.Register.
type Registration struct {
	// Gateway is the display name of the authenticated gateway.
	Gateway    string    `json:"gateway"`
	GatewayID  string    `json:"-"`
	Registered []Outcome `json:"registered"`
}

// Count returns how many outcomes have the given status.
func (r *Registration) Count(s Status) int {
	n := 0
	for _, o := range r.Registered {
		if o.Status == s {
			n++
		}
	}
	return n
}
