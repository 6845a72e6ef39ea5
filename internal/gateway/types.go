package gateway

import "time"

// IDPrefix is prepended to generated gateway IDs.
const IDPrefix = "gw-"

// MaxNameLength bounds the display name.
const MaxNameLength = 100

// Gateway is an edge collector allowed to register devices and publish
// streams while Active.
type Gateway struct {
	ID             string     `json:"id"`
	Name           string     `json:"name"`
	OrganizationID string     `json:"organization_id,omitempty"`
	APIKeyHash     string     `json:"-"`
	APIKeyPrefix   string     `json:"api_key_prefix"`
	Active         bool       `json:"active"`
	LastSeenAt     *time.Time `json:"last_seen_at,omitempty"`
	LocalAPIURL    string     `json:"local_api_url,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// CreateResult is returned once from Registry.Create. APIKey is the only
// place the plaintext secret ever appears.
type CreateResult struct {
	Gateway *Gateway `json:"gateway"`
	APIKey  string   `json:"api_key"`
}
