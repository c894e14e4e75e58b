package deliver_test

import (
	"net/http"
	"testing"
	"time"

	"github.com/eudore/deliver"
	"github.com/kr/pretty"
)

func TestBuildHeaders(t *testing.T) {
	expires := 3600
	modtime := time.Date(2024, 3, 1, 8, 30, 0, 0, time.UTC)
	tag := deliver.CacheTag{Value: `"abc"`, ModTime: modtime, Available: true}

	tests := []struct {
		name string
		res  *deliver.Resource
		tag  deliver.CacheTag
		dev  bool
		want http.Header
	}{
		{
			"static",
			&deliver.Resource{Filename: "a.css", Ext: "css", Type: "text/css", Static: true, Expires: &expires},
			tag, false,
			http.Header{
				"Cache-Control": {"public, max-age=3600"},
				"Content-Type":  {"text/css"},
				"Etag":          {`"abc"`},
				"Last-Modified": {"Fri, 01 Mar 2024 08:30:00 GMT"},
			},
		},
		{
			"static unavailable tag",
			&deliver.Resource{Filename: "a.css", Ext: "css", Type: "text/css", Static: true},
			deliver.CacheTag{}, false,
			http.Header{
				"Cache-Control": {"public"},
				"Content-Type":  {"text/css"},
			},
		},
		{
			"dynamic gzip",
			&deliver.Resource{Filename: "index.html", Ext: "html", Type: "text/html", Encoding: "gzip"},
			tag, false,
			http.Header{
				"Cache-Control":    {"private"},
				"Content-Encoding": {"gzip"},
				"Content-Type":     {"text/html; charset=utf-8"},
			},
		},
		{
			"dev sourcemap",
			&deliver.Resource{Filename: "app.js", Ext: "js", Type: "application/javascript", Static: true},
			tag, true,
			http.Header{
				"Cache-Control": {"public"},
				"Content-Type":  {"application/javascript"},
				"Etag":          {`"abc"`},
				"Last-Modified": {"Fri, 01 Mar 2024 08:30:00 GMT"},
				"x-sourcemap":   {"/scripts-maps/app.js.map"},
			},
		},
		{
			"sourcemap needs dev",
			&deliver.Resource{Filename: "app.js", Ext: "js", Type: "application/javascript"},
			tag, false,
			http.Header{
				"Cache-Control": {"private"},
				"Content-Type":  {"application/javascript; charset=utf-8"},
			},
		},
	}
	for _, tt := range tests {
		got := deliver.BuildHeaders(tt.res, tt.tag, tt.dev)
		if diff := pretty.Diff(tt.want, got); len(diff) > 0 {
			t.Errorf("%s: %v", tt.name, diff)
		}
	}
}
