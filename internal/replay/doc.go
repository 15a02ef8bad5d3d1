// Package replay plays scripted state timelines for demos and offline
// development.
//
// A Session starts from an initial document and applies the patches of a
// fixed timeline one step at a time. Each step waits for its own delay,
// measured from when it is scheduled, deep-merges its patch into the current
// document and hands every subscriber a freshly decoded copy:
//
//	idle ──Start──▶ running ──last step──▶ completed
//	  ▲               │
//	  │             Stop
//	  │               ▼
//	  └──Reset──── stopped ──Start──▶ running (resumes at cursor)
//
// Completed is terminal until Reset. Sessions never loop by themselves; the
// owner calls Registry.RestartCompleted to restart sessions configured with
// Loop.
//
// # Concurrency
//
// Timers fire on their own goroutines, so each session guards its state with
// a mutex and a generation counter. A timer whose generation no longer
// matches, because Stop, Reset or Start ran in between, does nothing.
// Subscribers run outside the state lock in registration order, and the next
// step is scheduled only after they have returned, so notifications arrive in
// timeline order even with zero delays. At most one step is pending per
// session. Deliveries are serialized per session and a delivery that has been
// overtaken by a newer state change is dropped, so the last value a
// subscriber sees always matches CurrentData. Subscribers may call Stop, Start
// and the read accessors; Reset and Subscribe must come from outside a
// notification.
//
// # Documents and codecs
//
// State is held as a Doc (map[string]any) and decoded into T by a Codec.
// Config.Initial and each Step.Patch are partial documents of T: any subset
// of T's fields, nested objects merged key by key.
// JSONCodec is the default; DocCodec passes copies of the raw document.
// NewSession decodes every intermediate state once, so a timeline that
// would produce an invalid T is rejected up front.
//
// Tests drive sessions with FakeClock.
package replay
