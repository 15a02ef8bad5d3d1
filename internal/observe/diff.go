package observe

// DeltaEntry is the new material for one page.
type DeltaEntry struct {
	Page      string     `json:"page"`
	Exchanges []Exchange `json:"http_msgs"`
}

// Delta lists new material since a prior snapshot, in the newer snapshot's
// page order.
type Delta []DeltaEntry

// IsEmpty reports whether the delta carries nothing new.
func (d Delta) IsEmpty() bool {
	return len(d) == 0
}

// ExchangeCount sums the exchanges across all entries.
func (d Delta) ExchangeCount() int {
	total := 0
	for _, entry := range d {
		total += len(entry.Exchanges)
	}
	return total
}

// Diff computes what next adds over prior. Both logs are assumed to only
// grow: a new page is reported with all of its exchanges, an existing page
// with its trailing exchanges past the prior count. Pages that disappeared
// or shrank are not reported (see Regressions).
//
// When a URL occurs more than once in a snapshot only its first occurrence
// takes part in the diff.
func Diff(prior, next Snapshot) Delta {
	priorByURL := indexByURL(prior.pages)
	seen := make(map[string]struct{}, len(next.pages))

	var delta Delta
	for _, page := range next.pages {
		if _, dup := seen[page.URL]; dup {
			continue
		}
		seen[page.URL] = struct{}{}

		before, ok := priorByURL[page.URL]
		if !ok {
			if len(page.Exchanges) > 0 {
				delta = append(delta, DeltaEntry{Page: page.URL, Exchanges: cloneExchanges(page.Exchanges)})
			}
			continue
		}
		priorCount := len(before.Exchanges)
		if len(page.Exchanges) > priorCount {
			delta = append(delta, DeltaEntry{Page: page.URL, Exchanges: cloneExchanges(page.Exchanges[priorCount:])})
		}
	}
	return delta
}

// RegressionKind classifies a violation of the append-only rule.
type RegressionKind string

const (
	// RegressionMissing marks a page present before and absent now.
	RegressionMissing RegressionKind = "missing"
	// RegressionShrunk marks a page whose exchange count went down.
	RegressionShrunk RegressionKind = "shrunk"
)

// Regression describes a page that broke the append-only rule between two
// snapshots.
type Regression struct {
	Page   string
	Kind   RegressionKind
	Before int
	After  int
}

// Regressions lists pages of prior that are missing from next or have
// fewer exchanges in next. Diff deliberately ignores these; callers decide
// whether to surface them.
func Regressions(prior, next Snapshot) []Regression {
	nextByURL := indexByURL(next.pages)
	seen := make(map[string]struct{}, len(prior.pages))

	var out []Regression
	for _, page := range prior.pages {
		if _, dup := seen[page.URL]; dup {
			continue
		}
		seen[page.URL] = struct{}{}

		after, ok := nextByURL[page.URL]
		switch {
		case !ok:
			out = append(out, Regression{Page: page.URL, Kind: RegressionMissing, Before: len(page.Exchanges)})
		case len(after.Exchanges) < len(page.Exchanges):
			out = append(out, Regression{
				Page:   page.URL,
				Kind:   RegressionShrunk,
				Before: len(page.Exchanges),
				After:  len(after.Exchanges),
			})
		}
	}
	return out
}

// indexByURL maps each URL to its first occurrence.
func indexByURL(pages []Page) map[string]Page {
	index := make(map[string]Page, len(pages))
	for _, page := range pages {
		if _, ok := index[page.URL]; ok {
			continue
		}
		index[page.URL] = page
	}
	return index
}
