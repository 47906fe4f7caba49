package web

import (
	"embed"
)

// staticFiles holds the control panel (HTML, CSS and JS), served at / and
// /static/.
//
//go:embed static/*
var staticFiles embed.FS
