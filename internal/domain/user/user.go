// Package user holds the end-user and company entities tracked per
// environment, plus the built-in attribute code names.
package user

import "time"

// Built-in attribute code names maintained by the tracking pipeline.
// FIRST_SEEN_AT is written once and never overwritten; LAST_SEEN_AT is
// refreshed on every tracked event.
const (
	AttrFirstSeenAt = "first_seen_at"
	AttrLastSeenAt  = "last_seen_at"
)

// BizUser is an end user of a customer's product, identified by the
// external id the customer's SDK supplies. Data is a free-form attribute
// blob keyed by attribute code name.
type BizUser struct {
	ID           string         `json:"id"`
	ExternalID   string         `json:"externalId"`
	BizCompanyID string         `json:"bizCompanyId,omitempty"`
	Data         map[string]any `json:"data,omitempty"`
	CreatedAt    time.Time      `json:"createdAt"`
}

// BizCompany groups users of one customer account.
type BizCompany struct {
	ID         string         `json:"id"`
	ExternalID string         `json:"externalId"`
	Data       map[string]any `json:"data,omitempty"`
	CreatedAt  time.Time      `json:"createdAt"`
}

// Attribute is a project-level attribute definition.
type Attribute struct {
	ID        string `json:"id"`
	CodeName  string `json:"codeName"`
	DataType  string `json:"dataType"`
	ProjectID string `json:"projectId"`
}

// Segment is a saved audience definition users can be members of.
type Segment struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	ProjectID string `json:"projectId"`
}

// ApplySeenAttributes stamps the seen attributes on an attribute blob,
// returning true when anything changed. The first-seen value is set only
// when absent.
func ApplySeenAttributes(data map[string]any, now time.Time) (map[string]any, bool) {
	if data == nil {
		data = make(map[string]any)
	}
	changed := false
	stamp := now.UTC().Format(time.RFC3339)
	if _, exists := data[AttrFirstSeenAt]; !exists {
		data[AttrFirstSeenAt] = stamp
		changed = true
	}
	if data[AttrLastSeenAt] != stamp {
		data[AttrLastSeenAt] = stamp
		changed = true
	}
	return data, changed
}
