package web

import "embed"

// Content holds the offline web shell served through the asset cache
//
//go:embed index.html style.css script.js manifest.json
var Content embed.FS
