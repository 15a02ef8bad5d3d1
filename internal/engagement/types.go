package engagement

import (
	"encoding/json"
	"time"

	"github.com/five82/scout/internal/observe"
)

// CreateRequest mirrors the payload accepted by POST /engagement/.
type CreateRequest struct {
	Name        string   `json:"name"`
	BaseURL     string   `json:"base_url"`
	ScopesData  []string `json:"scopes_data,omitempty"`
	Description *string  `json:"description,omitempty"`
}

// Engagement mirrors the backend's engagement record.
type Engagement struct {
	ID                      string            `json:"id"`
	Name                    string            `json:"name"`
	BaseURL                 string            `json:"base_url"`
	ScopesData              []string          `json:"scopes_data"`
	Description             *string           `json:"description"`
	CreatedAt               time.Time         `json:"created_at"`
	Findings                []json.RawMessage `json:"findings"`
	DomainOwnershipVerified bool              `json:"domain_ownership_verified"`
	PageData                []json.RawMessage `json:"page_data"`
}

// MergeRequest is the body of POST /engagement/{id}/page-data. Delta holds
// only new material: pages not seen before, or the tail of exchanges past
// what the backend already stores for a page.
type MergeRequest struct {
	AgentID string         `json:"agent_id"`
	Delta   []observe.Page `json:"delta"`
}

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	Status string `json:"status"`
}

// DeltaPages converts a delta into the page list carried by MergeRequest.
func DeltaPages(delta observe.Delta) []observe.Page {
	pages := make([]observe.Page, 0, len(delta))
	for _, entry := range delta {
		pages = append(pages, observe.Page{URL: entry.Page, Exchanges: entry.Exchanges})
	}
	return pages
}

// statusHealthy is the only status the backend reports when ready.
const statusHealthy = "healthy"
