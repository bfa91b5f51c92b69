// Package project serializes a full editing session to a versioned JSON
// document and back. Typed numeric buffers are wrapped with a _type
// discriminator so they survive the trip through plain JSON, and binary
// assets are embedded as base64 data URIs.
package project

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
)

// Float32Array is a typed numeric buffer tagged on the wire as
// {"_type":"Float32Array","data":[...]}.
type Float32Array []float32

// Uint8Array is a typed numeric buffer tagged as Uint8Array.
type Uint8Array []uint8

// Int32Array is a typed numeric buffer tagged as Int32Array.
type Int32Array []int32

type taggedFloat32 struct {
	Type string    `json:"_type"`
	Data []float32 `json:"data"`
}

// taggedUint8 carries bytes as a plain integer array: encoding/json would
// otherwise base64 a []uint8, which breaks the {"data":[...]} contract.
type taggedUint8 struct {
	Type string `json:"_type"`
	Data []int  `json:"data"`
}

type taggedInt32 struct {
	Type string  `json:"_type"`
	Data []int32 `json:"data"`
}

// MarshalJSON wraps the buffer in its discriminator envelope.
func (a Float32Array) MarshalJSON() ([]byte, error) {
	return json.Marshal(taggedFloat32{Type: "Float32Array", Data: []float32(a)})
}

// UnmarshalJSON accepts either the tagged envelope or a bare array.
func (a *Float32Array) UnmarshalJSON(data []byte) error {
	var tagged taggedFloat32
	if err := json.Unmarshal(data, &tagged); err == nil && tagged.Type != "" {
		if tagged.Type != "Float32Array" {
			return fmt.Errorf("expected Float32Array, got %q", tagged.Type)
		}
		*a = tagged.Data
		return nil
	}
	var plain []float32
	if err := json.Unmarshal(data, &plain); err != nil {
		return fmt.Errorf("decode Float32Array: %w", err)
	}
	*a = plain
	return nil
}

// MarshalJSON wraps the buffer in its discriminator envelope.
func (a Uint8Array) MarshalJSON() ([]byte, error) {
	ints := make([]int, len(a))
	for i, v := range a {
		ints[i] = int(v)
	}
	return json.Marshal(taggedUint8{Type: "Uint8Array", Data: ints})
}

// UnmarshalJSON accepts either the tagged envelope or a bare integer array.
func (a *Uint8Array) UnmarshalJSON(data []byte) error {
	var tagged taggedUint8
	if err := json.Unmarshal(data, &tagged); err == nil && tagged.Type != "" {
		if tagged.Type != "Uint8Array" {
			return fmt.Errorf("expected Uint8Array, got %q", tagged.Type)
		}
		*a = intsToUint8(tagged.Data)
		return nil
	}
	var plain []int
	if err := json.Unmarshal(data, &plain); err != nil {
		return fmt.Errorf("decode Uint8Array: %w", err)
	}
	*a = intsToUint8(plain)
	return nil
}

func intsToUint8(ints []int) []uint8 {
	out := make([]uint8, len(ints))
	for i, v := range ints {
		out[i] = uint8(v)
	}
	return out
}

// MarshalJSON wraps the buffer in its discriminator envelope.
func (a Int32Array) MarshalJSON() ([]byte, error) {
	return json.Marshal(taggedInt32{Type: "Int32Array", Data: []int32(a)})
}

// UnmarshalJSON accepts either the tagged envelope or a bare array.
func (a *Int32Array) UnmarshalJSON(data []byte) error {
	var tagged taggedInt32
	if err := json.Unmarshal(data, &tagged); err == nil && tagged.Type != "" {
		if tagged.Type != "Int32Array" {
			return fmt.Errorf("expected Int32Array, got %q", tagged.Type)
		}
		*a = tagged.Data
		return nil
	}
	var plain []int32
	if err := json.Unmarshal(data, &plain); err != nil {
		return fmt.Errorf("decode Int32Array: %w", err)
	}
	*a = plain
	return nil
}

// BlobRef is the metadata-only decode of a {_type:"File"|"Blob"} tag. Raw
// bytes are not restorable from the tag alone; only data-URI-embedded assets
// round-trip.
type BlobRef struct {
	Type string `json:"_type"`
	Name string `json:"name,omitempty"`
	Mime string `json:"mime,omitempty"`
	Size int64  `json:"size,omitempty"`
}

// EncodeDataURI embeds raw bytes as a base64 data URI.
func EncodeDataURI(mime string, data []byte) string {
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// DecodeDataURI splits a data URI back into its MIME type and raw bytes.
func DecodeDataURI(uri string) (mime string, data []byte, err error) {
	if !strings.HasPrefix(uri, "data:") {
		return "", nil, fmt.Errorf("not a data URI")
	}
	rest := uri[len("data:"):]
	sep := strings.Index(rest, ";base64,")
	if sep < 0 {
		return "", nil, fmt.Errorf("data URI missing base64 payload")
	}
	mime = rest[:sep]
	data, err = base64.StdEncoding.DecodeString(rest[sep+len(";base64,"):])
	if err != nil {
		return "", nil, fmt.Errorf("decode data URI: %w", err)
	}
	return mime, data, nil
}
