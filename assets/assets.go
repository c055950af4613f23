// Package assets stores uploaded page media (images and audio) and returns
// durable, browser-resolvable URLs for them.
package assets

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// Kind is the media family a slot accepts.
type Kind int

const (
	KindImage Kind = iota
	KindAudio
)

func (k Kind) String() string {
	switch k {
	case KindImage:
		return "image"
	case KindAudio:
		return "audio"
	default:
		return "unknown"
	}
}

var allowedExt = map[Kind]map[string]struct{}{
	KindImage: {"png": {}, "jpg": {}, "jpeg": {}, "gif": {}, "webp": {}},
	KindAudio: {"mp3": {}, "wav": {}, "ogg": {}},
}

// ErrInvalidPath is returned when a requested asset path escapes its page directory.
var ErrInvalidPath = errors.New("assets: invalid path")

// Allowed reports whether filename carries an extension permitted for kind.
func Allowed(filename string, kind Kind) bool {
	ext := extension(filename)
	if ext == "" {
		return false
	}
	_, ok := allowedExt[kind][ext]
	return ok
}

func extension(name string) string {
	i := strings.LastIndexByte(name, '.')
	if i < 0 || i == len(name)-1 {
		return ""
	}
	return strings.ToLower(name[i+1:])
}

// Blob is one asset to persist.
type Blob struct {
	PageID   string
	Slot     string // main, gift, music, g0..g7
	Filename string // client-supplied filename
	Kind     Kind
	Body     io.Reader
	Size     int64 // -1 when unknown
}

// StoredName is the filename an asset is saved under: {id}_{slot}_{secure name}.
func (b Blob) StoredName() string {
	return b.PageID + "_" + b.Slot + "_" + SecureFilename(b.Filename)
}

// Store persists blobs and returns their public URL.
type Store interface {
	Put(ctx context.Context, b Blob) (string, error)
}

// Pinger is implemented by stores that can report backend readiness.
type Pinger interface {
	Ping(ctx context.Context) error
}

// SecureFilename reduces a client filename to a lowercase slug plus its
// lowercased extension, dropping any directory components.
func SecureFilename(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, `\`, "/"))
	ext := extension(name)
	base := name
	if ext != "" {
		base = name[:len(name)-len(ext)-1]
	}
	slug := slugify(base)
	if slug == "" {
		slug = "file"
	}
	if ext == "" {
		return slug
	}
	return slug + "." + slugify(ext)
}

// slugify folds s to lowercase ASCII letters and digits joined by single
// hyphens. Accented letters lose their marks after NFKD decomposition.
func slugify(s string) string {
	s = strings.ToLower(norm.NFKD.String(strings.TrimSpace(s)))
	var b strings.Builder
	prev := false
	for _, r := range s {
		switch {
		case unicode.Is(unicode.Mn, r):
			continue
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			prev = false
		default:
			if !prev && b.Len() > 0 {
				b.WriteByte('-')
				prev = true
			}
		}
	}
	return strings.TrimRight(b.String(), "-")
}
