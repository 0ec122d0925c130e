// Package config loads easel's TOML configuration.
//
// # Overview
//
// Both halves of easel read the same file: the generate command needs the
// generation server's address and polling cadence, the launch command needs
// the entry file, interpreter, module list, ports and log directory.
//
// # Configuration Discovery
//
// The Load function follows this resolution order:
//
//  1. If a path is explicitly provided, use it
//  2. Otherwise, use ~/.config/easel/config.toml (default)
//  3. If the config file doesn't exist, fall back to built-in defaults
//  4. If the file exists but fields are missing/empty, use defaults
//  5. EASEL_API_BIND, EASEL_ASSET_BIND and EASEL_LOG_DIR override the file
//
// LoadDotEnv can be called first so those variables may also come from a
// .env file in the working directory.
//
// # Default Values
//
//   - Generation server: 127.0.0.1:5001, polled every 2s, 10m job deadline
//   - Asset server: 127.0.0.1:8080, browser opened at http://localhost:8080/frontend.html
//   - Entry file: api.py, started with python3
//   - Required modules: torch, flask, flask_cors, diffusers
//   - Log directory: ~/.local/share/easel/logs
//   - Example driver: 1 image, 100 steps, files named example_<n>.png
//
// # TOML Format
//
//	[api]
//	bind = "127.0.0.1:5001"
//	poll_interval = "2s"
//	timeout = "10m"        # "0s" waits forever
//
//	[launcher]
//	entry_file = "api.py"
//	interpreter = "python3"
//	modules = ["torch", "flask", "flask_cors", "diffusers"]
//	asset_bind = "127.0.0.1:8080"
//	asset_dir = "."
//	frontend_page = "frontend.html"
//	ready_timeout = "60s"
//	log_dir = "~/.local/share/easel/logs"
//
//	[generate]
//	images = 1
//	steps = 100
//	output_dir = "."
//	prefix = "example"
//
// Durations use Go syntax. Tilde expansion is performed for log_dir and
// output_dir.
//
// # Error Handling
//
// Load returns errors for path expansion failures, read errors other than
// os.ErrNotExist, TOML syntax errors and malformed or negative durations.
// A missing file is not an error.
package config
