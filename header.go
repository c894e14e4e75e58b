package deliver

import (
	"net/http"
	"strconv"
)

// BuildHeaders function creates the response headers of res.
//
// Fields whose data is unavailable, such as Etag for a missing file,
// are omitted; BuildHeaders never fails.
func BuildHeaders(res *Resource, tag CacheTag, dev bool) http.Header {
	h := make(http.Header, 6)
	if res.Encoding != "" {
		h.Set(HeaderContentEncoding, res.Encoding)
	}
	contentType := res.Type
	cacheControl := "private"
	if res.Static {
		cacheControl = "public"
	}
	if res.Expires != nil {
		cacheControl += ", max-age=" + strconv.Itoa(*res.Expires)
	}
	h.Set(HeaderCacheControl, cacheControl)

	if res.Static {
		if tag.Available {
			h.Set(HeaderLastModified, tag.ModTime.UTC().Format(http.TimeFormat))
			h.Set(HeaderETag, tag.Value)
		}
	} else {
		contentType += "; charset=utf-8"
	}
	h.Set(HeaderContentType, contentType)

	if dev && res.Ext == "js" {
		h[HeaderXSourceMap] = []string{DefaultResponseSourceMapPrefix + res.Filename + ".map"}
	}
	return h
}
