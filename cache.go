package deliver

import (
	"crypto/md5"
	"encoding/hex"
	"io/fs"
	"net/http"
	"os"
	"strconv"
	"time"
)

// Validator defines the conditional request check of static resources.
type Validator struct {
	// Stat returns the file metadata, default os.Stat.
	Stat func(string) (fs.FileInfo, error)
}

// CacheTag defines the outcome of an entity tag computation.
//
// Available is false when the file metadata could not be read,
// Value and ModTime are then empty.
type CacheTag struct {
	Value     string
	ModTime   time.Time
	Available bool
}

// NewValidator function creates a Validator reading metadata with os.Stat.
func NewValidator() *Validator {
	return &Validator{Stat: os.Stat}
}

// Tag method computes the entity tag of res as md5(mtime + filename).
//
// Two calls with an unchanged file modification time return the same Value.
func (v *Validator) Tag(res *Resource) CacheTag {
	if res == nil || res.FilePath == "" {
		return CacheTag{}
	}
	stat := v.Stat
	if stat == nil {
		stat = os.Stat
	}
	info, err := stat(res.FilePath)
	if err != nil {
		return CacheTag{}
	}
	modtime := info.ModTime()
	sum := md5.Sum([]byte(strconv.FormatInt(modtime.UnixNano(), 10) + res.Filename))
	return CacheTag{
		Value:     `"` + hex.EncodeToString(sum[:]) + `"`,
		ModTime:   modtime,
		Available: true,
	}
}

// IsUnchanged method reports whether the If-None-Match header of r equals
// the current tag of res. A missing header or tag is a cache miss.
func (v *Validator) IsUnchanged(r *http.Request, res *Resource) bool {
	reqTag := r.Header.Get(HeaderIfNoneMatch)
	if reqTag == "" {
		return false
	}
	tag := v.Tag(res)
	return tag.Available && reqTag == tag.Value
}
