package main

import (
	"fmt"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/tg123/go-htpasswd"
)

// BasicAuth guards non-public paths with htpasswd credentials
type BasicAuth struct {
	File    *htpasswd.File
	Realm   string
	Exclude []string
}

// LoadAuthFile loads the htpasswd file for basic authentication
func LoadAuthFile(filename, realm string, exclude []string) (*BasicAuth, error) {
	htFile, err := htpasswd.New(filename, htpasswd.DefaultSystems, nil)
	if err != nil {
		return nil, err
	}

	if realm == "" {
		realm = "Restricted"
	}

	return &BasicAuth{
		File:    htFile,
		Realm:   realm,
		Exclude: exclude,
	}, nil
}

// excluded reports whether a path is public. Patterns may be exact
// paths, prefixes ending in "/", or globs like "*.css".
func (a *BasicAuth) excluded(path string) bool {
	for _, pattern := range a.Exclude {
		switch {
		case strings.HasPrefix(pattern, "*"):
			if strings.HasSuffix(path, pattern[1:]) {
				return true
			}
		case strings.Contains(pattern, "*"):
			if matched, _ := filepath.Match(pattern, path); matched {
				return true
			}
		case strings.HasSuffix(pattern, "/"):
			if strings.HasPrefix(path, pattern) {
				return true
			}
		default:
			if path == pattern {
				return true
			}
		}
	}
	return false
}

// Middleware challenges requests to protected paths
func (a *BasicAuth) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if a.excluded(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		username, password, ok := r.BasicAuth()
		if !ok || !a.File.Match(username, password) {
			w.Header().Set("WWW-Authenticate", fmt.Sprintf(`Basic realm="%s"`, a.Realm))
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		next.ServeHTTP(w, r)
	})
}
