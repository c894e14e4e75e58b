package deliver_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/eudore/deliver"
)

func loadResource(t *testing.T, router deliver.Router, res *deliver.Resource) ([]byte, error) {
	t.Helper()
	reply := deliver.NewReply()
	router.Load(res, reply)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return reply.Wait(ctx)
}

func TestRouterMux(t *testing.T) {
	root := newTestRoot(t, map[string]string{"file.txt": "from disk"})
	static := deliver.NewRouterStatic(root, nil)
	mux := deliver.NewRouterMux(static)
	mux.HandleFunc("/page.html", func(res *deliver.Resource) ([]byte, error) {
		return []byte("page " + res.URL.Query.Get("id")), nil
	})

	res := &deliver.Resource{URL: &deliver.ResourceURL{Path: "/page.html", Query: map[string][]string{"id": {"3"}}}}
	body, err := loadResource(t, mux, res)
	if err != nil || string(body) != "page 3" {
		t.Errorf("page %q %v", body, err)
	}
	if mux.Last() != "/page.html" {
		t.Errorf("last %q", mux.Last())
	}

	res = &deliver.Resource{
		FilePath: filepath.Join(root, "file.txt"),
		URL:      &deliver.ResourceURL{Path: "/file.txt"},
	}
	body, err = loadResource(t, mux, res)
	if err != nil || string(body) != "from disk" {
		t.Errorf("fallback %q %v", body, err)
	}
	if mux.Last() != "static" {
		t.Errorf("last %q", mux.Last())
	}

	_, err = loadResource(t, deliver.NewRouterMux(nil), res)
	if !errors.Is(err, deliver.ErrResourceNotFound) {
		t.Errorf("no fallback %v", err)
	}
}

func TestRouterMuxPanic(t *testing.T) {
	mux := deliver.NewRouterMux(nil)
	mux.HandleFunc("/", func(*deliver.Resource) ([]byte, error) {
		panic("page panic")
	})
	_, err := loadResource(t, mux, &deliver.Resource{URL: &deliver.ResourceURL{Path: "/"}})
	if !errors.Is(err, deliver.ErrRouterPanic) {
		t.Errorf("panic error %v", err)
	}
}

func TestRouterStatic(t *testing.T) {
	root := newTestRoot(t, map[string]string{"a.txt": "one", "dir/b.txt": "two"})
	rs := deliver.NewRouterStatic(root, nil)

	body, err := loadResource(t, rs, &deliver.Resource{FilePath: filepath.Join(root, "a.txt")})
	if err != nil || string(body) != "one" {
		t.Errorf("a.txt %q %v", body, err)
	}

	for _, name := range []string{
		filepath.Join(root, "dir"),
		filepath.Join(root, "none.txt"),
		filepath.Join(filepath.Dir(root), "outside.txt"),
	} {
		_, err = loadResource(t, rs, &deliver.Resource{FilePath: name})
		if !errors.Is(err, deliver.ErrResourceNotFound) {
			t.Errorf("%s: %v", name, err)
		}
	}

	// unwatched cache is validated by size and modtime
	path := filepath.Join(root, "a.txt")
	if err := os.WriteFile(path, []byte("one more"), 0o644); err != nil {
		t.Fatal(err)
	}
	body, _ = loadResource(t, rs, &deliver.Resource{FilePath: path})
	if string(body) != "one more" {
		t.Errorf("stale body %q", body)
	}
}

func TestRouterStaticWatch(t *testing.T) {
	root := newTestRoot(t, map[string]string{"a.txt": "one"})
	rs := deliver.NewRouterStatic(root, nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- rs.Watch(ctx) }()
	defer func() {
		cancel()
		if err := <-done; err != nil {
			t.Error(err)
		}
	}()

	waitFor(t, rs.Watching)
	path := filepath.Join(root, "a.txt")
	body, _ := loadResource(t, rs, &deliver.Resource{FilePath: path})
	if string(body) != "one" {
		t.Fatalf("body %q", body)
	}

	if err := os.WriteFile(path, []byte("two"), 0o644); err != nil {
		t.Fatal(err)
	}
	waitFor(t, func() bool {
		body, _ := loadResource(t, rs, &deliver.Resource{FilePath: path})
		return string(body) == "two"
	})

	if err := os.Mkdir(filepath.Join(root, "sub"), 0o755); err != nil {
		t.Fatal(err)
	}
	sub := filepath.Join(root, "sub", "c.txt")
	waitFor(t, func() bool {
		return os.WriteFile(sub, []byte("c"), 0o644) == nil
	})
	waitFor(t, func() bool {
		body, _ := loadResource(t, rs, &deliver.Resource{FilePath: sub})
		return string(body) == "c"
	})
}

func waitFor(t *testing.T, fn func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !fn() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met in time")
		}
		time.Sleep(20 * time.Millisecond)
	}
}

func TestRouterMuxServedWith(t *testing.T) {
	root := newTestRoot(t, map[string]string{"file.txt": "from disk"})
	mux := deliver.NewRouterMux(deliver.NewRouterStatic(root, nil))
	mux.HandleFunc("/page.html", func(*deliver.Resource) ([]byte, error) {
		return []byte("page"), nil
	})

	page := deliver.NewReply()
	mux.Load(&deliver.Resource{URL: &deliver.ResourceURL{Path: "/page.html"}}, page)
	file := deliver.NewReply()
	mux.Load(&deliver.Resource{
		FilePath: filepath.Join(root, "file.txt"),
		URL:      &deliver.ResourceURL{Path: "/file.txt"},
	}, file)

	if page.ServedWith() != "/page.html" {
		t.Errorf("page served with %q", page.ServedWith())
	}
	if file.ServedWith() != "static" {
		t.Errorf("file served with %q", file.ServedWith())
	}
}
