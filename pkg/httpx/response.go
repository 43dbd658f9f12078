// Package httpx holds response helpers for the local OAuth callback listener.
package httpx

import (
	"encoding/json"
	"html/template"
	"net/http"
)

// WriteJSON writes a JSON response with the given status code.
// It automatically sets the Content-Type header and Cache-Control headers.
func WriteJSON(w http.ResponseWriter, code int, v any) {
	NoCache(w)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// NoCache sets the Cache-Control and Pragma headers to prevent caching.
// Callback URLs carry bearer tokens, so nothing served for them may be cached.
func NoCache(w http.ResponseWriter) {
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Pragma", "no-cache")
	w.Header().Set("Referrer-Policy", "no-referrer")
}

// StatusPage is the data rendered into the browser tab that receives the
// identity provider redirect.
type StatusPage struct {
	Title   string
	Message string
	// RedirectAfterMS adds a meta refresh to RedirectTo when both are set
	RedirectTo      string
	RedirectAfterMS int64
}

var statusPageTmpl = template.Must(template.New("status").Parse(`<!doctype html>
<html>
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
{{- if and .RedirectTo .RedirectAfterMS}}
<script>setTimeout(function(){window.location.replace({{.RedirectTo}})}, {{.RedirectAfterMS}});</script>
{{- end}}
</head>
<body>
<h1>{{.Title}}</h1>
<p>{{.Message}}</p>
</body>
</html>
`))

// WriteStatusPage renders page as an uncached HTML response.
func WriteStatusPage(w http.ResponseWriter, code int, page StatusPage) {
	NoCache(w)
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(code)
	_ = statusPageTmpl.Execute(w, page)
}
