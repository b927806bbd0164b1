package crawler

import (
	"net/url"
	"path"
	"strings"
)

// Scope is the set of origins a run may fetch from
type Scope struct {
	origins []string
	set     map[string]bool
	hosts   map[string]bool
}

// NewScope creates a scope over the given origins, keeping their order
func NewScope(origins []string) *Scope {
	s := &Scope{
		set:   make(map[string]bool),
		hosts: make(map[string]bool),
	}
	for _, o := range origins {
		o = strings.ToLower(strings.TrimSuffix(o, "/"))
		if s.set[o] {
			continue
		}
		s.set[o] = true
		s.origins = append(s.origins, o)
		if u, err := url.Parse(o); err == nil {
			s.hosts[strings.ToLower(u.Hostname())] = true
		}
	}
	return s
}

// Origins returns the configured origins in order
func (s *Scope) Origins() []string {
	return s.origins
}

// Contains reports whether u belongs to one of the origins
func (s *Scope) Contains(u *url.URL) bool {
	return s.set[OriginOf(u)]
}

// AllowsHost reports whether u points at a host of one of the origins, whatever the scheme or port
func (s *Scope) AllowsHost(u *url.URL) bool {
	return s.hosts[strings.ToLower(u.Hostname())]
}

// OriginOf returns the scheme://host[:port] part of u, lower-cased
func OriginOf(u *url.URL) string {
	return strings.ToLower(u.Scheme + "://" + u.Host)
}

// extensionSet builds a lookup of tracked extensions
func extensionSet(exts []string) map[string]bool {
	set := make(map[string]bool, len(exts))
	for _, e := range exts {
		set[strings.ToLower(strings.TrimPrefix(e, "."))] = true
	}
	return set
}

// assetExt returns the tracked extension of u's path, if any
func assetExt(u *url.URL, exts map[string]bool) (string, bool) {
	ext := strings.ToLower(strings.TrimPrefix(path.Ext(u.Path), "."))
	if ext == "" || !exts[ext] {
		return "", false
	}
	return ext, true
}
