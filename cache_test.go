package deliver_test

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/eudore/deliver"
)

func newStaticResource(t *testing.T, name, body string) *deliver.Resource {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return &deliver.Resource{
		Filename: name,
		FilePath: path,
		Ext:      filepath.Ext(name)[1:],
		Type:     "text/css",
		Static:   true,
		Allowed:  true,
	}
}

func TestValidatorTag(t *testing.T) {
	res := newStaticResource(t, "style.css", "body{}")
	v := deliver.NewValidator()

	tag := v.Tag(res)
	if !tag.Available || len(tag.Value) != 34 || tag.Value[0] != '"' {
		t.Fatalf("tag %#v", tag)
	}
	if again := v.Tag(res); again != tag {
		t.Errorf("unstable tag %v %v", tag, again)
	}

	mtime := tag.ModTime.Add(-time.Hour)
	if err := os.Chtimes(res.FilePath, mtime, mtime); err != nil {
		t.Fatal(err)
	}
	if changed := v.Tag(res); changed.Value == tag.Value {
		t.Errorf("tag not changed with mtime: %s", changed.Value)
	}

	other := *res
	other.Filename = "other.css"
	if v.Tag(&other).Value == v.Tag(res).Value {
		t.Error("tag does not depend on filename")
	}
}

func TestValidatorTagMissing(t *testing.T) {
	v := deliver.NewValidator()
	res := &deliver.Resource{Filename: "none.css", FilePath: filepath.Join(t.TempDir(), "none.css")}
	if tag := v.Tag(res); tag.Available || tag.Value != "" {
		t.Errorf("missing file tag %#v", tag)
	}
	if tag := v.Tag(nil); tag.Available {
		t.Errorf("nil resource tag %#v", tag)
	}
}

func TestValidatorIsUnchanged(t *testing.T) {
	res := newStaticResource(t, "app.css", "a{}")
	v := deliver.NewValidator()
	tag := v.Tag(res)

	tests := []struct {
		header string
		want   bool
	}{
		{"", false},
		{tag.Value, true},
		{`"0000"`, false},
		{tag.Value[1 : len(tag.Value)-1], false},
	}
	for _, tt := range tests {
		r := httptest.NewRequest(http.MethodGet, "/app.css", nil)
		if tt.header != "" {
			r.Header.Set(deliver.HeaderIfNoneMatch, tt.header)
		}
		if got := v.IsUnchanged(r, res); got != tt.want {
			t.Errorf("If-None-Match %q: %v, want %v", tt.header, got, tt.want)
		}
	}

	r := httptest.NewRequest(http.MethodGet, "/app.css", nil)
	r.Header.Set(deliver.HeaderIfNoneMatch, tag.Value)
	os.Remove(res.FilePath)
	if v.IsUnchanged(r, res) {
		t.Error("removed file is unchanged")
	}
}
