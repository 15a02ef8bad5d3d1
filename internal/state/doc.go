// Package state holds the shared, mutex-guarded state of the Scout dashboard.
//
// # Overview
//
// Two independent pieces live here. Sessions remembers the observation log
// of each engagement across polls so the poller can report only what is new.
// Store carries the latest rendered frame between the producer (live poller
// or replay session) and the UI.
//
//	Producer (poller / replay):        Consumer (UI):
//	┌───────────────────────┐         ┌────────────────┐
//	│ FetchPageData()       │         │                │
//	│ sessions.Reconcile()  │         │                │
//	│      ↓                │         │                │
//	│ store.Update()        │────────→│ store.Frame()  │
//	│      ↓                │ (mutex) │      ↓         │
//	│  repeat...            │         │  render UI     │
//	└───────────────────────┘         └────────────────┘
//
// # Sessions
//
// Reconcile diffs an incoming snapshot against the subject's previous
// baseline. The baseline moves only when the delta is non-empty, so repeated
// identical polls leave the timeline untouched. Subjects are keyed by
// engagement id; an empty id is stored under UnknownSubject. Pages that shrank
// or disappeared are not part of a delta and are logged as warnings instead.
//
// # Store
//
// Store is ready to use as a zero value. Update follows the poller contract:
//
//	store.Update(&view, delta, nil)  // success: replace view, reset failures
//	store.Update(nil, nil, err)      // failure: keep last view, count failure
//
// Frame returns a value copy with cloned tree lines and activity, so callers
// may hold on to it while the producer keeps writing. IsOffline reports true
// after two consecutive failures.
//
// Each non-empty delta is summarized into the activity feed, a bounded ring
// of recent lines shown beside the site tree.
package state
