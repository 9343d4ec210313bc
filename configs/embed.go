package configs

import "embed"

// ProfileDefaults contains shipped default triage profile YAML files.
//
//go:embed profiles/*.yaml
var ProfileDefaults embed.FS
