// Package depthapi consumes the remote depth-estimation service: an image is
// POSTed for a file_id, the numeric payload is fetched by that id, and a
// best-effort DELETE cleans up afterwards. The service may deliver grids as
// nested arrays; everything is flattened to typed buffers before use.
package depthapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/banshee-data/crystal.engrave/internal/grid"
	"github.com/banshee-data/crystal.engrave/internal/httputil"
	"github.com/banshee-data/crystal.engrave/internal/monitoring"
)

// ErrNetwork means a service call failed at the transport level or returned a
// non-success status.
var ErrNetwork = errors.New("depth service request failed")

// Client talks to one depth-estimation endpoint.
type Client struct {
	base string
	http httputil.HTTPClient
}

// NewClient builds a client for the service at base. A nil HTTP client
// selects the default transport.
func NewClient(base string, hc httputil.HTTPClient) *Client {
	if hc == nil {
		hc = httputil.NewStandardClient(nil)
	}
	return &Client{base: strings.TrimRight(base, "/"), http: hc}
}

// uploadResponse is the identifier-issuing reply.
type uploadResponse struct {
	FileID string `json:"file_id"`
}

// payload is the raw numeric reply. Array fields may be flat or nested, so
// they decode through RawMessage and the iterative flattener.
type payload struct {
	DepthMap        json.RawMessage `json:"depth_map"`
	DepthShape      []int           `json:"depth_map_shape"`
	ConfidenceMap   json.RawMessage `json:"confidence_map"`
	ConfidenceShape []int           `json:"confidence_map_shape"`
	DitherMask      json.RawMessage `json:"dither_mask"`
	DitherShape     []int           `json:"dither_mask_shape"`
	Intrinsic       json.RawMessage `json:"intrinsic"`
	IntrinsicShape  []int           `json:"intrinsic_shape"`
}

// Bundle is the decoded service payload: the three grids plus the flattened
// 3x3 intrinsic matrix.
type Bundle struct {
	Depth      *grid.Grid
	Confidence *grid.Grid
	Mask       *grid.Mask
	Intrinsics []float64
}

// Upload POSTs image bytes and returns the issued file id.
func (c *Client) Upload(ctx context.Context, image []byte) (string, error) {
	resp, err := httputil.Post(ctx, c.http, c.base+"/files", "application/octet-stream", bytes.NewReader(image))
	if err != nil {
		return "", fmt.Errorf("%w: upload: %v", ErrNetwork, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("%w: upload returned %d", ErrNetwork, resp.StatusCode)
	}
	var out uploadResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("%w: decode upload response: %v", ErrNetwork, err)
	}
	if out.FileID == "" {
		return "", fmt.Errorf("%w: upload response missing file_id", ErrNetwork)
	}
	return out.FileID, nil
}

// Fetch GETs the numeric payload for a file id and decodes it into grids.
func (c *Client) Fetch(ctx context.Context, fileID string) (*Bundle, error) {
	resp, err := httputil.Get(ctx, c.http, c.base+"/files/"+fileID)
	if err != nil {
		return nil, fmt.Errorf("%w: fetch: %v", ErrNetwork, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: fetch returned %d", ErrNetwork, resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read payload: %v", ErrNetwork, err)
	}

	var p payload
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, fmt.Errorf("%w: decode payload: %v", ErrNetwork, err)
	}
	return decodeBundle(&p)
}

// Cleanup fires the best-effort DELETE for a file id. Failures are logged and
// swallowed: cleanup must never block or fail the user-visible result.
func (c *Client) Cleanup(fileID string) {
	go func() {
		resp, err := httputil.Delete(context.Background(), c.http, c.base+"/files/"+fileID)
		if err != nil {
			monitoring.Logf("depthapi: cleanup of %s failed: %v", fileID, err)
			return
		}
		resp.Body.Close()
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			monitoring.Logf("depthapi: cleanup of %s returned %d", fileID, resp.StatusCode)
		}
	}()
}

func decodeBundle(p *payload) (*Bundle, error) {
	depth, err := decodeGrid(p.DepthMap, p.DepthShape, "depth_map")
	if err != nil {
		return nil, err
	}
	confidence, err := decodeGrid(p.ConfidenceMap, p.ConfidenceShape, "confidence_map")
	if err != nil {
		return nil, err
	}

	maskVals, err := flattenRaw(p.DitherMask, "dither_mask")
	if err != nil {
		return nil, err
	}
	h, w, err := shapeOf(p.DitherShape, len(maskVals), "dither_mask")
	if err != nil {
		return nil, err
	}
	bits := make([]uint8, len(maskVals))
	for i, v := range maskVals {
		if v != 0 {
			bits[i] = 1
		}
	}
	mask, err := grid.MaskFromData(w, h, bits)
	if err != nil {
		return nil, fmt.Errorf("%w: dither_mask: %v", ErrNetwork, err)
	}

	var intrinsics []float64
	if len(p.Intrinsic) > 0 {
		intrinsics, err = flattenRaw(p.Intrinsic, "intrinsic")
		if err != nil {
			return nil, err
		}
		if len(intrinsics) != 9 {
			return nil, fmt.Errorf("%w: intrinsic matrix has %d values, want 9", ErrNetwork, len(intrinsics))
		}
	}

	return &Bundle{Depth: depth, Confidence: confidence, Mask: mask, Intrinsics: intrinsics}, nil
}

func decodeGrid(raw json.RawMessage, shape []int, field string) (*grid.Grid, error) {
	vals, err := flattenRaw(raw, field)
	if err != nil {
		return nil, err
	}
	h, w, err := shapeOf(shape, len(vals), field)
	if err != nil {
		return nil, err
	}
	g, err := grid.FromData(w, h, vals)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrNetwork, field, err)
	}
	return g, nil
}

func flattenRaw(raw json.RawMessage, field string) ([]float64, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: payload missing %s", ErrNetwork, field)
	}
	var decoded interface{}
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, fmt.Errorf("%w: decode %s: %v", ErrNetwork, field, err)
	}
	vals, err := grid.Flatten(decoded)
	if err != nil {
		return nil, fmt.Errorf("%w: flatten %s: %v", ErrNetwork, field, err)
	}
	return vals, nil
}

// shapeOf validates an explicit [height, width] shape against the value
// count. A missing shape is tolerated only for square grids.
func shapeOf(shape []int, n int, field string) (h, w int, err error) {
	if len(shape) == 2 {
		h, w = shape[0], shape[1]
		if h*w != n {
			return 0, 0, fmt.Errorf("%w: %s shape %dx%d does not match %d values", ErrNetwork, field, h, w, n)
		}
		return h, w, nil
	}
	side := intSqrt(n)
	if side*side != n {
		return 0, 0, fmt.Errorf("%w: %s has no shape and %d values is not square", ErrNetwork, field, n)
	}
	return side, side, nil
}

func intSqrt(n int) int {
	if n <= 0 {
		return 0
	}
	x := n
	y := (x + 1) / 2
	for y < x {
		x = y
		y = (x + n/x) / 2
	}
	return x
}
