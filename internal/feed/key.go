package feed

import "strings"

// BuildKey computes the destination object key for a document.
// The layout is "{directory}{shopDomain}/{slug}/{suffix}" where directory
// is an already-normalized optional prefix. Identical (domain, slug, format)
// triples collide on purpose: a run blindly overwrites its computed keys.
func BuildKey(directory, shopDomain, slug string, f Format) string {
	return directory + shopDomain + "/" + slug + "/" + f.Suffix()
}

// NormalizeDirectory strips a leading slash from the configured key prefix
// and appends a trailing slash when the prefix is non-empty.
func NormalizeDirectory(dir string) string {
	dir = strings.TrimPrefix(dir, "/")
	if dir != "" && !strings.HasSuffix(dir, "/") {
		dir += "/"
	}
	return dir
}
