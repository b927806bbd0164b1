package mirror

import (
	"errors"
	"net/url"
	"path/filepath"
	"regexp"
	"strings"
)

// ErrNotMappable is returned for URLs that have no place in the mirror tree
var ErrNotMappable = errors.New("url has no mirror path")

const pageSelectorPrefix = "/index.php?page="

var (
	selectorUnsafe = regexp.MustCompile(`[^a-zA-Z0-9_]`)
	pathUnsafe     = regexp.MustCompile(`(?i)[^a-z0-9/]`)
)

// MapURL maps a page URL to its file path relative to the mirror root.
// The result is always <host-dir>/<stem>.html and depends only on the inputs.
func MapURL(rawURL, origin string) (string, error) {
	origin = strings.TrimSuffix(origin, "/")
	hostDir, err := HostDir(origin)
	if err != nil {
		return "", err
	}

	if !strings.HasPrefix(rawURL, origin) {
		return "", ErrNotMappable
	}
	rest := rawURL[len(origin):]
	if rest != "" && rest[0] != '/' && rest[0] != '?' {
		// https://site.pl vs https://site.pl.other.net
		return "", ErrNotMappable
	}

	if rest == "" || rest == "/" {
		return filepath.Join(hostDir, "index.html"), nil
	}

	var stem string
	if strings.HasPrefix(rest, pageSelectorPrefix) {
		stem = selectorUnsafe.ReplaceAllString(rest[len(pageSelectorPrefix):], "-")
	} else {
		stem = strings.TrimSuffix(rest, "/")
		stem = pathUnsafe.ReplaceAllString(stem, "-")
		stem = strings.ReplaceAll(stem, "/", "_")
	}

	stem = strings.Trim(strings.ToLower(stem), "-_")
	if stem == "" {
		stem = "index"
	}

	return filepath.Join(hostDir, stem+".html"), nil
}

// HostDir returns the directory name an origin's pages are stored under
func HostDir(origin string) (string, error) {
	u, err := url.Parse(origin)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", ErrNotMappable
	}
	return strings.ReplaceAll(strings.ToLower(u.Host), ":", "_"), nil
}
