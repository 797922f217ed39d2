// Package web embeds the browser UI.
package web

import _ "embed"

//go:embed index.html
var IndexHTML []byte

//go:embed app.js
var AppJS []byte
