// Package config handles loading and parsing Scout configuration files.
//
// # Configuration Discovery
//
// The Load function follows this resolution order:
//
//  1. If a path is explicitly provided, use it
//  2. Otherwise, use ~/.config/scout/config.toml (default)
//  3. If the config file doesn't exist, fall back to hardcoded defaults
//  4. If the file exists but fields are missing/empty, use defaults
//  5. Apply SCOUT_API_PROTOCOL, SCOUT_API_HOST and SCOUT_API_PORT
//
// # Default Values
//
//   - Config file: ~/.config/scout/config.toml
//   - API base URL: http://127.0.0.1:8000
//   - Poll interval: 5s
//   - Log file (TUI mode): ~/.local/state/scout/scout.log
//
// # TOML Format
//
//	api_base_url = "http://127.0.0.1:8000"
//	engagement_id = "3f8b1c0e-..."
//	poll_seconds = 5
//	scenario = "dashboard"          # built-in name or path to a YAML file
//	metrics_addr = "127.0.0.1:9102" # empty disables /metrics
//	log_file = "~/.local/state/scout/scout.log"
//
// Every field is optional. Tilde expansion is performed for log_file.
//
// # Environment Overrides
//
// The three SCOUT_API_* variables rebuild the base URL piecewise. Unset parts
// keep the value from the file (or the default). SCOUT_API_PORT set to an
// empty string drops the port:
//
//	SCOUT_API_HOST=api.example           → http://api.example:8000
//	SCOUT_API_PROTOCOL=https             → https://127.0.0.1:8000
//	SCOUT_API_HOST=api.example SCOUT_API_PORT= → http://api.example
//
// # Error Handling
//
// Load returns errors for:
//   - Path expansion failures (e.g., cannot determine home directory)
//   - File read errors (except os.ErrNotExist, which triggers defaults)
//   - TOML parsing errors ("parse config: ...")
//
// Missing config files are NOT an error, so Scout works out of the box
// against a local backend.
package config
