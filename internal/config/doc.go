// Package config loads triggerpoints settings.
//
// Settings come from three places, later ones overriding earlier ones:
//
//	┌─────────────────────────────┐
//	│  3. Environment Variables   │  ← TRIGGERPOINTS_*
//	├─────────────────────────────┤
//	│  2. TOML File               │  ← triggerpoints.toml
//	├─────────────────────────────┤
//	│  1. Built-in Defaults       │
//	└─────────────────────────────┘
//
// A file looks like:
//
//	[breakpoints]
//	default_mode = "trigger-and-break"
//	default_color = "red"
//
//	[[palette]]
//	name = "red"
//	hex = "#e51400"
//
//	[logging]
//	level = "info"
//	format = "text"
//
//	[metrics]
//	enabled = true
//	listen = ":9464"
//
//	[delve]
//	address = "127.0.0.1:2345"
//	dial_timeout = "5s"
//	binary = "dlv"
//
// A palette given in the file replaces the built-in one entirely.
//
// Watch reloads the file when it changes so a running session can pick up
// palette and default edits without restarting.
package config
