package observe

import (
	"bytes"
	"encoding/json"
	"strings"
)

// Snapshot is the observation log as known at one fetch. It is immutable:
// constructors copy their input and accessors return copies.
type Snapshot struct {
	pages []Page
}

// Page is one visited URL and the exchanges captured on it, in capture order.
type Page struct {
	URL       string     `json:"url"`
	Exchanges []Exchange `json:"http_msgs"`
}

// Exchange is a captured request/response pair. The raw payload is kept
// verbatim; only the request method and URL are decoded.
type Exchange struct {
	raw    json.RawMessage
	method string
	url    string
}

// PageDataResponse mirrors the backend's page-data payload.
type PageDataResponse struct {
	PageData []Page `json:"page_data"`
}

// Empty returns a snapshot with no pages.
func Empty() Snapshot {
	return Snapshot{}
}

// New builds a snapshot from pages, copying the page and exchange slices.
func New(pages []Page) Snapshot {
	return Snapshot{pages: clonePages(pages)}
}

// FromJSON decodes either a {"page_data": [...]} object or a bare page
// array. Anything it cannot make sense of yields an empty snapshot; single
// malformed page entries are skipped.
func FromJSON(data []byte) Snapshot {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return Empty()
	}

	var items []json.RawMessage
	switch trimmed[0] {
	case '[':
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return Empty()
		}
	case '{':
		var envelope struct {
			PageData []json.RawMessage `json:"page_data"`
		}
		if err := json.Unmarshal(trimmed, &envelope); err != nil {
			return Empty()
		}
		items = envelope.PageData
	default:
		return Empty()
	}

	pages := make([]Page, 0, len(items))
	for _, item := range items {
		var page Page
		if err := json.Unmarshal(item, &page); err != nil {
			continue
		}
		pages = append(pages, page)
	}
	return Snapshot{pages: pages}
}

// NewExchange builds an exchange from a method and request URL.
func NewExchange(method, url string) Exchange {
	raw, _ := json.Marshal(map[string]any{
		"request": map[string]any{
			"data": map[string]any{"method": method, "url": url},
		},
	})
	return Exchange{raw: raw, method: method, url: url}
}

// Pages returns a copy of the snapshot's pages.
func (s Snapshot) Pages() []Page {
	return clonePages(s.pages)
}

// Len reports the number of pages.
func (s Snapshot) Len() int {
	return len(s.pages)
}

// IsEmpty reports whether the snapshot has no pages.
func (s Snapshot) IsEmpty() bool {
	return len(s.pages) == 0
}

// MarshalJSON encodes the snapshot as a page-data response.
func (s Snapshot) MarshalJSON() ([]byte, error) {
	pages := s.pages
	if pages == nil {
		pages = []Page{}
	}
	return json.Marshal(PageDataResponse{PageData: pages})
}

// UnmarshalJSON accepts the same shapes as FromJSON and never fails.
func (s *Snapshot) UnmarshalJSON(data []byte) error {
	*s = FromJSON(data)
	return nil
}

// Method returns the upper-cased request method, GET when absent.
func (e Exchange) Method() string {
	method := strings.ToUpper(strings.TrimSpace(e.method))
	if method == "" {
		return "GET"
	}
	return method
}

// URL returns the request URL, possibly empty.
func (e Exchange) URL() string {
	return e.url
}

// Raw returns a copy of the exchange's original JSON.
func (e Exchange) Raw() json.RawMessage {
	if len(e.raw) == 0 {
		return nil
	}
	dup := make(json.RawMessage, len(e.raw))
	copy(dup, e.raw)
	return dup
}

// MarshalJSON returns the exchange's original JSON.
func (e Exchange) MarshalJSON() ([]byte, error) {
	if len(e.raw) == 0 {
		return []byte("{}"), nil
	}
	return e.raw, nil
}

// UnmarshalJSON keeps the raw payload and picks out request.data.method and
// request.data.url when they are present and well-typed.
func (e *Exchange) UnmarshalJSON(data []byte) error {
	var probe struct {
		Request struct {
			Data struct {
				Method any `json:"method"`
				URL    any `json:"url"`
			} `json:"data"`
		} `json:"request"`
	}
	raw := make(json.RawMessage, len(data))
	copy(raw, data)
	*e = Exchange{raw: raw}
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil
	}
	if method, ok := probe.Request.Data.Method.(string); ok {
		e.method = method
	}
	if url, ok := probe.Request.Data.URL.(string); ok {
		e.url = url
	}
	return nil
}

func clonePages(pages []Page) []Page {
	if len(pages) == 0 {
		return nil
	}
	dup := make([]Page, len(pages))
	for i, p := range pages {
		dup[i] = Page{URL: p.URL, Exchanges: cloneExchanges(p.Exchanges)}
	}
	return dup
}

func cloneExchanges(exchanges []Exchange) []Exchange {
	if len(exchanges) == 0 {
		return nil
	}
	dup := make([]Exchange, len(exchanges))
	copy(dup, exchanges)
	return dup
}
