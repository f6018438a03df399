// Package config loads quiver's own settings.
//
// Settings are resolved in layers, higher layers overriding lower:
//
//	┌─────────────────────────────┐
//	│  5. Command line flags      │  ← Highest priority
//	├─────────────────────────────┤
//	│  4. QUIVER_* environment    │
//	├─────────────────────────────┤
//	│  3. .env file               │  ← working directory
//	├─────────────────────────────┤
//	│  2. Settings file           │  ← ~/.config/quiver/quiver.toml
//	├─────────────────────────────┤
//	│  1. Built-in defaults       │  ← Lowest priority
//	└─────────────────────────────┘
//
// # Sub-packages
//
//   - loader: document loading (TOML, YAML, JSON, environment, .env)
//   - module: the configuration module that declares extensions
//   - watcher: change notification for watch mode
package config
