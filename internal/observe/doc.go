// Package observe models the crawler's observation log and computes what is
// new between two fetches of it.
//
// # Snapshot Model
//
// A Snapshot is the whole log as of one fetch: an ordered list of pages,
// each with the ordered list of HTTP exchanges captured while the page was
// open. The backend only ever appends, both pages to the log and exchanges
// to a page, so two snapshots of the same engagement are related by prefix:
//
//	t0: /login   [GET /login]
//	t1: /login   [GET /login, POST /api/auth]   ← one new exchange
//	    /admin   [GET /admin]                   ← one new page
//
// Snapshots are immutable. New and FromJSON copy their input; Pages returns
// a copy. Exchanges keep their raw JSON so unknown fields survive a round
// trip through MarshalJSON.
//
// # Diff
//
// Diff(prior, next) returns the Delta: new pages with all of their
// exchanges, and known pages with only the exchanges past the prior count.
// Entry order follows next. Nothing is ever reported as removed; pages that
// vanished or shrank are available from Regressions for callers that want
// to flag them.
//
// # Derived views
//
// TreeLines and Stats are pure functions of a single snapshot, combined in
// View, which is what the dashboard consumes:
//
//	├─ /login
//	│  ├─ GET /login
//	│  └─ POST /api/auth
//	└─ /admin
//	   └─ GET /admin
//
// # Normalization
//
// FromJSON never fails. Payloads that are not an object with page_data or a
// bare page array become an empty snapshot, and single page entries that do
// not decode are skipped.
package observe
