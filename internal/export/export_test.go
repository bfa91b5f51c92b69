package export

import (
	"bytes"
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/banshee-data/crystal.engrave/internal/cloud"
	"github.com/banshee-data/crystal.engrave/internal/text"
)

func sampleObject() *cloud.Object {
	pts := []cloud.Point{
		{X: 0, Y: 0, Z: 1, Confidence: 0.9},
		{X: 1, Y: 0, Z: 2, Confidence: 0.8},
		{X: 0, Y: 1, Z: 3, Confidence: 0.7},
	}
	return cloud.NewObject(pts, 0.07)
}

func TestCollectPointsIdentityTransform(t *testing.T) {
	obj := sampleObject()
	pts, err := CollectPoints(obj, nil, 1, 0.01)
	if err != nil {
		t.Fatalf("collect: %v", err)
	}
	if len(pts) != 3 {
		t.Fatalf("expected 3 points, got %d", len(pts))
	}
	// 180-about-X rotation negates y and z.
	if pts[0].Z != -1 || pts[2].Y != -1 {
		t.Fatalf("world transform not applied: %+v", pts)
	}
}

func TestCollectPointsBrightnessLayers(t *testing.T) {
	obj := sampleObject()
	pts, err := CollectPoints(obj, nil, 3, 0.001)
	if err != nil {
		t.Fatalf("collect: %v", err)
	}
	if len(pts) != 9 {
		t.Fatalf("brightness 3 should triple the set, got %d", len(pts))
	}
	// Layer copies shift by -0.12 per level.
	var found bool
	for _, p := range pts {
		if math.Abs(p.Z-(-1-2*BrightnessZStep)) < 1e-9 {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected a second-layer duplicate at z=-1-0.24")
	}
}

func TestCollectPointsRequiresBakedScale(t *testing.T) {
	obj := sampleObject()
	obj.SetUniformScale(2.0)
	_, err := CollectPoints(obj, nil, 1, 0.01)
	if !errors.Is(err, cloud.ErrNotResampled) {
		t.Fatalf("expected ErrNotResampled, got %v", err)
	}
}

func TestCollectPointsMergesOverlays(t *testing.T) {
	obj := sampleObject()
	overlays := []text.Overlay{{Value: "hi", Size: 1.0}}
	withText, err := CollectPoints(obj, overlays, 1, 0.0001)
	if err != nil {
		t.Fatalf("collect: %v", err)
	}
	plain, err := CollectPoints(obj, nil, 1, 0.0001)
	if err != nil {
		t.Fatalf("collect: %v", err)
	}
	if len(withText) <= len(plain) {
		t.Fatalf("overlay points missing: %d vs %d", len(withText), len(plain))
	}
}

func TestDedupFirstWins(t *testing.T) {
	pts := []cloud.Point{
		{X: 0.001, Y: 0, Z: 0, Confidence: 0.2},
		{X: 0.002, Y: 0, Z: 0, Confidence: 0.9},
		{X: 5, Y: 0, Z: 0, Confidence: 0.5},
	}
	out := DedupOnGrid(pts, 0.1)
	if len(out) != 2 {
		t.Fatalf("expected 2 points after dedup, got %d", len(out))
	}
	// First point per cell wins; no confidence-weighted tie-break.
	if out[0].Confidence != 0.2 {
		t.Fatalf("dedup should keep the first point seen, got confidence %v", out[0].Confidence)
	}
}

func TestWriteDXFStructure(t *testing.T) {
	pts := []cloud.Point{
		{X: 1, Y: 2, Z: 3},
		{X: -1, Y: 0, Z: -3},
		{X: 0, Y: 1, Z: 0},
	}
	var buf bytes.Buffer
	if err := WriteDXF(&buf, pts); err != nil {
		t.Fatalf("write: %v", err)
	}
	out := buf.String()

	for _, want := range []string{"$EXTMIN", "$EXTMAX", "ENTITIES", "POINT", "EOF"} {
		if !strings.Contains(out, want) {
			t.Fatalf("output missing %q", want)
		}
	}
	if strings.Count(out, "POINT") != 3 {
		t.Fatalf("expected 3 POINT entities, got %d", strings.Count(out, "POINT"))
	}
	header := out[:strings.Index(out, "ENTITIES")]
	body := out[strings.Index(out, "ENTITIES"):]
	// Extents cover all points.
	if !strings.Contains(header, "-3.000000") || !strings.Contains(header, "3.000000") {
		t.Fatalf("z extents missing from header:\n%s", header)
	}
	// Z-ascending body: the z=-3 entity appears before the z=3 entity.
	idxNeg := strings.Index(body, "\n-3.000000\n")
	idxPos := strings.Index(body, "\n3.000000\n")
	if idxNeg < 0 || idxPos < 0 || idxNeg > idxPos {
		t.Fatalf("points not sorted Z-ascending (neg=%d pos=%d)", idxNeg, idxPos)
	}
}

func TestWriteDXFEmpty(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteDXF(&buf, nil); err == nil {
		t.Fatalf("expected error for empty point set")
	}
}
