// Package ingest turns a caller-supplied image into a reference the vision
// model can consume: a remote URL, a URL to a rehosted copy or an inline
// data URI.
package ingest

import (
	"encoding/base64"
	"fmt"
)

// Kind tells which form of image reference is active
type Kind int

const (
	KindRemote Kind = iota // caller supplied URL, passed through
	KindHosted             // uploaded bytes re-exposed at a public URL
	KindInline             // uploaded bytes embedded as a data URI
)

func (k Kind) String() string {
	switch k {
	case KindRemote:
		return "remote"
	case KindHosted:
		return "hosted"
	case KindInline:
		return "inline"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Reference is exactly one image reference for a request
type Reference struct {
	Kind Kind
	URL  string
}

// String returns the value for the model's image_url field
func (r Reference) String() string { return r.URL }

// Direct passes a caller supplied URL through unchanged
func Direct(url string) Reference {
	return Reference{Kind: KindRemote, URL: url}
}

// Inline embeds image bytes as a base64 data URI
func Inline(data []byte) Reference {
	return Reference{
		Kind: KindInline,
		URL:  "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(data),
	}
}

// IngestError wraps failures to store or expose an uploaded image
type IngestError struct {
	Op  string
	Err error
}

func (e *IngestError) Error() string { return e.Op + ": " + e.Err.Error() }

func (e *IngestError) Unwrap() error { return e.Err }
