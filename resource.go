package deliver

import (
	"net/url"
)

// Resource defines the unit of delivery a request resolves to.
//
// A Resource is created by the [Parser] per request, mutated by the
// pipeline stages of that request only and discarded after the response.
type Resource struct {
	// Filename is the base name of the file.
	Filename string
	// FilePath is the absolute path of the file.
	FilePath string
	// Ext is the file extension without dot.
	Ext  string
	Type string
	// Static resources are public and carry Etag/Last-Modified.
	Static  bool
	Allowed bool
	// Expires is the max-age in seconds, nil is unset.
	Expires *int
	// StatusCode overrides the response status, zero is unset.
	StatusCode int
	// Encoding is the content encoding applied to the body: gzip/deflate.
	Encoding string
	URL      *ResourceURL
	Env      *Environment
}

// ResourceURL defines the decomposed request url.
type ResourceURL struct {
	Path     string
	Dirs     []string
	RawQuery string
	Query    url.Values
}

func newResourceNotFound() *Resource {
	return &Resource{Type: MimeTextPlain}
}
