// Package app is the composition root for Scout's three modes.
//
// # Modes
//
//   - Watch: a Poller fetches one engagement's page data on the configured
//     interval, reconciles it with state.Sessions and publishes views and
//     deltas to state.Store. Failed polls back off exponentially up to 30s.
//   - Replay: a scenario is registered as a replay.Session[observe.View]
//     whose notifications are mirrored into the store. Looping scenarios are
//     restarted on the poll interval; --watch reloads the scenario file.
//   - MockServer: an in-memory engagement backend whose page data grows
//     from a replayed scenario, so Watch can be run end to end.
//
// # Data Flow
//
//	Poller.Run ──> FetchPageData ──> Sessions.Reconcile ──> Store.Update
//	Session[View] ──> subscriber ──> Store.Update / Store.Note
//	                                        │
//	                     ui.Model tick ──> Store.Frame()
//
// Watch and Replay run their background tasks, the optional metrics server
// and the TUI in one errgroup. Quitting the TUI cancels the tasks; a task
// error tears down the TUI. Headless runs replace the TUI with a wait on
// the context and rely on the Info log lines for progress.
package app
