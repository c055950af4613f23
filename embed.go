package wishpage

import "embed"

// StaticAssets contains the files served under /static when no STATIC_DIR is
// configured: the default gift image and music, app.css and app.js.
//
//go:embed static/*
var StaticAssets embed.FS
