// Package ui provides Scout's terminal dashboard.
//
// The dashboard is a Bubble Tea program that polls state.Store on a short
// tick and renders the latest frame. It never talks to the backend or the
// replay engine directly; key bindings that affect the data source go
// through the Controller passed in Options.
//
// # Layout
//
//   - Header: source badge (LIVE or REPLAY), subject, page and request
//     counters, the last change, and connection state (OFFLINE after two
//     failed polls)
//   - Command bar: key hints for the current source
//   - Site tree pane: the view's tree lines in a scrollable viewport
//   - Activity pane: recent delta summaries and replay step labels
//
// Wide terminals place the panes side by side; narrow ones stack them.
//
// # Key Bindings
//
//   - j/k, g/G, ctrl+d/ctrl+u, pgup/pgdown: scroll the focused pane
//   - Tab: switch pane
//   - Space: toggle follow (stick to the bottom on updates)
//   - r: poll now (live)
//   - s: start or stop the replay
//   - R: reset and restart the replay
//   - T: cycle theme (saved to prefs)
//   - h/?: help
//   - q or Ctrl+C: quit
package ui
