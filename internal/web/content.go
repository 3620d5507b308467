package web

import (
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// RouteKind is the three-way routing split for an inbound path.
// Reserved prefixes are checked before any filesystem lookup, so an
// on-disk file can never shadow API semantics and reserved paths never
// receive the SPA fallback.
type RouteKind int

const (
	// RouteAPI covers /api and everything below it.
	RouteAPI RouteKind = iota
	// RouteMedia covers /media and everything below it.
	RouteMedia
	// RouteStaticOrFallback is everything else: an existing static
	// file served verbatim, or the entry document.
	RouteStaticOrFallback
)

const (
	apiPrefix   = "/api"
	mediaPrefix = "/media"
)

// ClassifyPath decides which routing branch a request path belongs to.
func ClassifyPath(p string) RouteKind {
	switch {
	case p == apiPrefix || strings.HasPrefix(p, apiPrefix+"/"):
		return RouteAPI
	case p == mediaPrefix || strings.HasPrefix(p, mediaPrefix+"/"):
		return RouteMedia
	default:
		return RouteStaticOrFallback
	}
}

// placeholderDocument is served in place of the entry document when no
// client bundle has been built.
const placeholderDocument = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <title>deckserve</title>
</head>
<body>
    <h1>Client bundle not found</h1>
    <p>Build the client application and point client.dir at its output to replace this page.</p>
</body>
</html>`

// ContentRoot is the client bundle directory, probed once at startup.
// When the bundle (its index.html) is missing the server degrades to
// an embedded placeholder document instead of failing.
type ContentRoot struct {
	dir   string
	ready bool
}

// ResolveContentRoot probes dir for an entry document.
func ResolveContentRoot(dir string) ContentRoot {
	info, err := os.Stat(filepath.Join(dir, "index.html"))
	return ContentRoot{
		dir:   dir,
		ready: err == nil && info.Mode().IsRegular(),
	}
}

// Ready reports whether a client bundle is present.
func (c ContentRoot) Ready() bool {
	return c.ready
}

// IndexPath returns the entry document path. Only meaningful when
// Ready.
func (c ContentRoot) IndexPath() string {
	return filepath.Join(c.dir, "index.html")
}

// Resolve maps a request path onto a file inside the root. The
// cleaned path cannot escape the root. ok is false when no regular
// file exists there.
func (c ContentRoot) Resolve(requestPath string) (string, bool) {
	rel := path.Clean("/" + requestPath)
	full := filepath.Join(c.dir, filepath.FromSlash(rel))
	info, err := os.Stat(full)
	if err != nil || !info.Mode().IsRegular() {
		return "", false
	}
	return full, true
}

// ServeEntry writes the entry document, or the placeholder when the
// bundle is missing.
func (c ContentRoot) ServeEntry(w http.ResponseWriter, r *http.Request) {
	if c.ready {
		http.ServeFile(w, r, c.IndexPath())
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(placeholderDocument))
}
