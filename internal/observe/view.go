package observe

import (
	"net/url"
	"strings"
)

const (
	branch    = "├─ "
	lastLeaf  = "└─ "
	pipeGap   = "│  "
	blankGap  = "   "
	rootLabel = "/"
)

// Stats are the aggregate counters shown on the dashboard.
type Stats struct {
	PageCount     int `json:"pages"`
	ExchangeCount int `json:"requests"`
}

// View is the derived model handed to consumers on every poll or replay
// tick. Its JSON form matches the dashboard's site tree and spider stats.
type View struct {
	TreeLines []string `json:"siteTreeLines"`
	Stats     Stats    `json:"spiderStats"`
}

// Stats counts pages and exchanges.
func (s Snapshot) Stats() Stats {
	stats := Stats{PageCount: len(s.pages)}
	for _, page := range s.pages {
		stats.ExchangeCount += len(page.Exchanges)
	}
	return stats
}

// TreeLines renders the snapshot as an ASCII tree: one line per page and
// one nested line per exchange. An empty snapshot renders as "/".
func (s Snapshot) TreeLines() []string {
	if len(s.pages) == 0 {
		return []string{rootLabel}
	}

	lines := make([]string, 0, len(s.pages))
	for i, page := range s.pages {
		lastPage := i == len(s.pages)-1
		connector, childPrefix := branch, pipeGap
		if lastPage {
			connector, childPrefix = lastLeaf, blankGap
		}
		lines = append(lines, connector+displayPath(page.URL))

		for j, exchange := range page.Exchanges {
			msgConnector := branch
			if j == len(page.Exchanges)-1 {
				msgConnector = lastLeaf
			}
			target := exchange.URL()
			if target == "" {
				target = page.URL
			}
			lines = append(lines, childPrefix+msgConnector+exchange.Method()+" "+displayPath(target))
		}
	}
	return lines
}

// View derives the consumer view model.
func (s Snapshot) View() View {
	return View{TreeLines: s.TreeLines(), Stats: s.Stats()}
}

// Clone returns a deep copy of the view.
func (v View) Clone() View {
	dup := v
	if v.TreeLines != nil {
		dup.TreeLines = append([]string(nil), v.TreeLines...)
	}
	return dup
}

// displayPath reduces an absolute URL to its path. Strings that do not
// parse as absolute URLs are shown verbatim.
func displayPath(raw string) string {
	if strings.TrimSpace(raw) == "" {
		return rootLabel
	}
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return raw
	}
	if u.Path == "" {
		return rootLabel
	}
	return u.Path
}
