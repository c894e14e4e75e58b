package deliver

import (
	"net/http"
	"path"
	"path/filepath"
	"strings"
)

// Parser defines how a request is resolved to a [Resource].
//
// A nil Resource is answered with 404, a Resource with Allowed false is
// answered without calling the [Router].
type Parser interface {
	Parse(w http.ResponseWriter, r *http.Request) *Resource
}

// ParserStd resolves requests to files under Root using the extension
// rules of Mimes.
type ParserStd struct {
	Root  string
	Index string
	Mimes map[string]*MimeConfig
	// Expires is the default max-age of resources, nil is unset.
	Expires *int
	// Gzip enables Accept-Encoding negotiation.
	Gzip bool
}

// NewParserStd function creates a ParserStd from config.
func NewParserStd(config *Config) *ParserStd {
	root, err := filepath.Abs(config.Root)
	if err != nil {
		root = config.Root
	}
	return &ParserStd{
		Root:    root,
		Index:   config.Index,
		Mimes:   config.Mimes,
		Expires: config.Expires,
		Gzip:    config.Gzip,
	}
}

// Parse method resolves r, unknown extensions and directories outside the
// mime dirs are not allowed.
func (p *ParserStd) Parse(_ http.ResponseWriter, r *http.Request) *Resource {
	upath := r.URL.Path
	if !strings.HasPrefix(upath, "/") {
		upath = "/" + upath
	}
	clean := path.Clean(upath)
	if strings.HasSuffix(upath, "/") {
		index := p.Index
		if index == "" {
			index = DefaultParserIndex
		}
		clean = path.Join(clean, index)
	}

	dir, filename := path.Split(clean)
	res := &Resource{
		Filename: filename,
		FilePath: filepath.Join(p.Root, filepath.FromSlash(clean)),
		Ext:      strings.TrimPrefix(path.Ext(filename), "."),
		Type:     MimeTextPlain,
		Expires:  p.Expires,
		URL: &ResourceURL{
			Path:     r.URL.Path,
			Dirs:     splitDirs(dir),
			RawQuery: r.URL.RawQuery,
			Query:    r.URL.Query(),
		},
	}

	mime, ok := p.Mimes[strings.ToLower(res.Ext)]
	if !ok || mime == nil {
		return res
	}
	res.Type = mime.Type
	res.Static = !mime.Dynamic
	if mime.Expires != nil {
		res.Expires = mime.Expires
	}
	res.Allowed = allowDir(mime.Dirs, strings.TrimSuffix(dir, "/"))
	if p.Gzip {
		res.Encoding = negotiateEncoding(r.Header.Get(HeaderAcceptEncoding))
	}
	return res
}

func splitDirs(dir string) []string {
	dir = strings.Trim(dir, "/")
	if dir == "" {
		return []string{}
	}
	return strings.Split(dir, "/")
}

func allowDir(dirs []string, dir string) bool {
	if len(dirs) == 0 {
		return true
	}
	if dir == "" {
		dir = "/"
	}
	for _, d := range dirs {
		if d != "/" {
			d = strings.TrimSuffix(d, "/")
		}
		if d == dir {
			return true
		}
	}
	return false
}

// negotiateEncoding returns gzip or deflate accepted by header,
// gzip is preferred and q=0 refuses an encoding.
func negotiateEncoding(header string) string {
	var gzip, deflate bool
	for _, encoding := range strings.Split(header, ",") {
		name, params, _ := strings.Cut(strings.TrimSpace(encoding), ";")
		if isQualityZero(params) {
			continue
		}
		switch strings.ToLower(strings.TrimSpace(name)) {
		case EncodingGzip:
			gzip = true
		case EncodingDeflate:
			deflate = true
		case "*":
			gzip = true
		}
	}
	switch {
	case gzip:
		return EncodingGzip
	case deflate:
		return EncodingDeflate
	}
	return ""
}

func isQualityZero(params string) bool {
	q := strings.ReplaceAll(strings.TrimSpace(params), " ", "")
	if !strings.HasPrefix(q, "q=") {
		return false
	}
	return strings.Trim(q[2:], "0.") == ""
}
