package config

import _ "embed"

//go:embed player.toml
var PlayerToml []byte
