package web

import (
	"net/http"
	"net/url"
	"strings"
)

// RequestContext captures the HTMX headers that decide whether a handler
// answers with a fragment or a full-page redirect.
type RequestContext struct {
	IsHTMX     bool   // HX-Request header present
	CurrentURL string // HX-Current-URL, the page the user is on
	Boosted    bool   // HX-Boosted
}

func parseRequestContext(r *http.Request) RequestContext {
	return RequestContext{
		IsHTMX:     r.Header.Get("HX-Request") == "true",
		CurrentURL: r.Header.Get("HX-Current-URL"),
		Boosted:    r.Header.Get("HX-Boosted") == "true",
	}
}

// WantsFragment is true for HTMX requests that are not boosted navigation.
func (c RequestContext) WantsFragment() bool {
	return c.IsHTMX && !c.Boosted
}

// redirectBack sends a plain or boosted form post back to the page it came
// from. Only same-host referrers are followed, and only their path and query
// are kept.
func redirectBack(w http.ResponseWriter, r *http.Request, fallback string) {
	target := fallback
	for _, ref := range []string{parseRequestContext(r).CurrentURL, r.Referer()} {
		if path, ok := localPath(r, ref); ok {
			target = path
			break
		}
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}

// localPath returns the path and query of ref when it points back at this
// host and cannot be read as a protocol-relative URL.
func localPath(r *http.Request, ref string) (string, bool) {
	u, err := url.Parse(ref)
	if err != nil || u.Path == "" {
		return "", false
	}
	if u.Host != "" && !strings.EqualFold(u.Host, r.Host) {
		return "", false
	}
	target := u.RequestURI()
	if !strings.HasPrefix(target, "/") || strings.HasPrefix(target, "//") || strings.HasPrefix(target, "/\\") {
		return "", false
	}
	return target, true
}
