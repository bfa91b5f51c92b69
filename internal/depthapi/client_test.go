package depthapi

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/banshee-data/crystal.engrave/internal/httputil"
	"github.com/banshee-data/crystal.engrave/internal/monitoring"
)

const fetchBody = `{
	"depth_map": [[1.0, 2.0], [3.0, 4.0]],
	"depth_map_shape": [2, 2],
	"confidence_map": [0.5, 0.6, 0.7, 0.8],
	"confidence_map_shape": [2, 2],
	"dither_mask": [[1, 0], [0, 1]],
	"dither_mask_shape": [2, 2],
	"intrinsic": [[500, 0, 320], [0, 510, 240], [0, 0, 1]],
	"intrinsic_shape": [3, 3]
}`

func TestUpload(t *testing.T) {
	m := httputil.NewMockHTTPClient()
	m.AddResponse(200, `{"file_id":"abc-123"}`)
	c := NewClient("http://depth.svc/", m)

	id, err := c.Upload(context.Background(), []byte{1, 2, 3})
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if id != "abc-123" {
		t.Fatalf("unexpected file id %q", id)
	}
	req := m.Request(0)
	if req.Method != http.MethodPost || req.URL.String() != "http://depth.svc/files" {
		t.Fatalf("unexpected upload request: %s %s", req.Method, req.URL)
	}
}

func TestUploadNonSuccess(t *testing.T) {
	m := httputil.NewMockHTTPClient()
	m.AddResponse(500, "boom")
	c := NewClient("http://depth.svc", m)
	_, err := c.Upload(context.Background(), nil)
	if !errors.Is(err, ErrNetwork) {
		t.Fatalf("expected ErrNetwork, got %v", err)
	}
}

func TestUploadMissingFileID(t *testing.T) {
	m := httputil.NewMockHTTPClient()
	m.AddResponse(200, `{}`)
	c := NewClient("http://depth.svc", m)
	if _, err := c.Upload(context.Background(), nil); !errors.Is(err, ErrNetwork) {
		t.Fatalf("expected ErrNetwork for missing file_id, got %v", err)
	}
}

func TestFetchDecodesNestedArrays(t *testing.T) {
	m := httputil.NewMockHTTPClient()
	m.AddResponse(200, fetchBody)
	c := NewClient("http://depth.svc", m)

	b, err := c.Fetch(context.Background(), "abc-123")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if b.Depth.W != 2 || b.Depth.H != 2 {
		t.Fatalf("depth shape: %dx%d", b.Depth.W, b.Depth.H)
	}
	if b.Depth.At(1, 0) != 3.0 {
		t.Fatalf("nested depth not flattened row-major: %v", b.Depth.Data)
	}
	if b.Confidence.At(0, 1) != 0.6 {
		t.Fatalf("flat confidence mis-decoded: %v", b.Confidence.Data)
	}
	if !b.Mask.On(0, 0) || b.Mask.On(0, 1) {
		t.Fatalf("mask mis-decoded: %v", b.Mask.Bits)
	}
	if len(b.Intrinsics) != 9 || b.Intrinsics[0] != 500 || b.Intrinsics[4] != 510 {
		t.Fatalf("intrinsics mis-decoded: %v", b.Intrinsics)
	}

	req := m.Request(0)
	if req.URL.Path != "/files/abc-123" {
		t.Fatalf("unexpected fetch path %s", req.URL.Path)
	}
}

func TestFetchShapeMismatch(t *testing.T) {
	m := httputil.NewMockHTTPClient()
	m.AddResponse(200, `{
		"depth_map": [1, 2, 3],
		"depth_map_shape": [2, 2],
		"confidence_map": [1],
		"confidence_map_shape": [1, 1],
		"dither_mask": [1],
		"dither_mask_shape": [1, 1]
	}`)
	c := NewClient("http://depth.svc", m)
	if _, err := c.Fetch(context.Background(), "x"); !errors.Is(err, ErrNetwork) {
		t.Fatalf("expected ErrNetwork for shape mismatch, got %v", err)
	}
}

func TestFetchTransportError(t *testing.T) {
	m := httputil.NewMockHTTPClient()
	m.AddErrorResponse(errors.New("dial tcp: refused"))
	c := NewClient("http://depth.svc", m)
	if _, err := c.Fetch(context.Background(), "x"); !errors.Is(err, ErrNetwork) {
		t.Fatalf("expected ErrNetwork, got %v", err)
	}
}

func TestCleanupBestEffort(t *testing.T) {
	monitoring.SetLogger(nil)
	defer monitoring.SetLogger(nil)

	m := httputil.NewMockHTTPClient()
	m.AddResponse(204, "")
	c := NewClient("http://depth.svc", m)

	c.Cleanup("abc-123")

	// Cleanup runs on its own goroutine; wait for the request to land.
	deadline := time.Now().Add(2 * time.Second)
	for m.RequestCount() == 0 {
		if time.Now().After(deadline) {
			t.Fatalf("cleanup request never sent")
		}
		time.Sleep(5 * time.Millisecond)
	}
	req := m.Request(0)
	if req.Method != http.MethodDelete || req.URL.Path != "/files/abc-123" {
		t.Fatalf("unexpected cleanup request: %s %s", req.Method, req.URL.Path)
	}
}

func TestCleanupFailureDoesNotPanic(t *testing.T) {
	logged := make(chan struct{}, 1)
	monitoring.SetLogger(func(string, ...interface{}) {
		select {
		case logged <- struct{}{}:
		default:
		}
	})
	defer monitoring.SetLogger(nil)

	m := httputil.NewMockHTTPClient()
	m.AddErrorResponse(errors.New("gone"))
	c := NewClient("http://depth.svc", m)
	c.Cleanup("dead-id")

	select {
	case <-logged:
	case <-time.After(2 * time.Second):
		t.Fatalf("cleanup failure never logged")
	}
}
