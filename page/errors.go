package page

import (
	"errors"
	"fmt"
)

// Kind classifies page pipeline failures for the transport layer.
type Kind string

const (
	KindUpload   Kind = "UPLOAD_FAILED"   // an asset could not be stored
	KindManifest Kind = "MANIFEST_FAILED" // the manifest could not be written
	KindNotFound Kind = "NOT_FOUND"       // no manifest for the identifier
	KindRender   Kind = "RENDER_FAILED"   // the template engine failed
)

// Error is returned by the Assembler and Resolver.
type Error struct {
	Kind Kind
	ID   string // page identifier, when known
	Slot string // asset slot, for upload failures
	Err  error
}

func (e *Error) Error() string {
	msg := string(e.Kind)
	if e.ID != "" {
		msg += " " + e.ID
	}
	if e.Slot != "" {
		msg += " slot=" + e.Slot
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the Kind of err, or "" when err is not a page error.
func KindOf(err error) Kind {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return ""
}

// IsNotFound reports whether err means the page does not exist.
func IsNotFound(err error) bool {
	return KindOf(err) == KindNotFound
}

func uploadError(id, slot string, err error) *Error {
	return &Error{Kind: KindUpload, ID: id, Slot: slot, Err: fmt.Errorf("store asset: %w", err)}
}
