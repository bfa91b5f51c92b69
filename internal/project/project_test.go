package project

import (
	"bytes"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/banshee-data/crystal.engrave/internal/cloud"
	"github.com/banshee-data/crystal.engrave/internal/grid"
	"github.com/banshee-data/crystal.engrave/internal/monitoring"
	"github.com/banshee-data/crystal.engrave/internal/text"
)

func sampleDocument(t *testing.T) *Document {
	t.Helper()
	depth := grid.New(2, 2)
	copy(depth.Data, []float64{1, 2, 3, 4})
	conf := grid.New(2, 2)
	copy(conf.Data, []float64{0.5, 0.6, 0.7, 0.8})
	mask := grid.NewMask(2, 2)
	copy(mask.Bits, []uint8{1, 0, 1, 1})

	obj := cloud.NewObject([]cloud.Point{
		{X: 0.07, Y: -0.07, Z: 2, Confidence: 0.9},
		{X: 0, Y: 0, Z: 1, Confidence: 0.5},
	}, 0.07)
	ts, geo := ObjectToPayloads(obj)

	return &Document{
		Settings: Settings{
			ConfidenceThreshold: 0.5,
			DitherDensity:       0.4,
			BrightnessLevel:     2,
			DedupGridSize:       0.05,
		},
		Transform:          ts,
		OriginalDepth:      GridToPayload(depth),
		OriginalConfidence: GridToPayload(conf),
		OriginalMask:       MaskToPayload(mask),
		Geometry:           geo,
		Overlays:           []text.Overlay{{Value: "crystal", Size: 1.5, Color: "#fff"}},
		SourceImage:        EncodeDataURI("image/png", []byte{0x89, 0x50, 0x4e, 0x47}),
	}
}

func TestRoundTrip(t *testing.T) {
	doc := sampleDocument(t)
	data, err := Encode(doc)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	back, err := Decode(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if back.Version != Version {
		t.Fatalf("version not preserved: %d", back.Version)
	}
	if diff := cmp.Diff(doc, back); diff != "" {
		t.Fatalf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestTypedArrayTagsOnWire(t *testing.T) {
	doc := sampleDocument(t)
	data, err := Encode(doc)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	out := string(data)
	if !strings.Contains(out, `"_type": "Float32Array"`) {
		t.Fatalf("float buffers must carry the Float32Array tag")
	}
	if !strings.Contains(out, `"_type": "Uint8Array"`) {
		t.Fatalf("mask bits must carry the Uint8Array tag")
	}
}

func TestTypedArraysByteForByte(t *testing.T) {
	doc := sampleDocument(t)
	data, err := Encode(doc)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	back, err := Decode(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !bytes.Equal([]uint8(doc.OriginalMask.Bits), []uint8(back.OriginalMask.Bits)) {
		t.Fatalf("mask bits changed in round trip")
	}
	for i := range doc.OriginalDepth.Data {
		if doc.OriginalDepth.Data[i] != back.OriginalDepth.Data[i] {
			t.Fatalf("depth value %d changed: %v vs %v", i, doc.OriginalDepth.Data[i], back.OriginalDepth.Data[i])
		}
	}
}

func TestUnknownVersionIsSoft(t *testing.T) {
	var logged []string
	monitoring.SetLogger(func(format string, v ...interface{}) {
		logged = append(logged, format)
	})
	defer monitoring.SetLogger(nil)

	doc := sampleDocument(t)
	data, err := Encode(doc)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	data = bytes.Replace(data, []byte(`"version": 1`), []byte(`"version": 99`), 1)

	back, err := Decode(data)
	if err != nil {
		t.Fatalf("unknown version must decode best-effort, got %v", err)
	}
	if back.Version != 99 {
		t.Fatalf("decoded version should be preserved, got %d", back.Version)
	}
	if len(logged) == 0 {
		t.Fatalf("version mismatch should be logged")
	}
}

func TestDecodeMalformed(t *testing.T) {
	if _, err := Decode([]byte(`{not json`)); err == nil {
		t.Fatalf("malformed JSON must be a hard failure")
	}
}

func TestMissingSourceImageDegrades(t *testing.T) {
	doc := sampleDocument(t)
	doc.SourceImage = ""
	data, err := Encode(doc)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	back, err := Decode(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if back.SourceImage != "" {
		t.Fatalf("absent source image should stay absent")
	}
}

func TestDataURIRoundTrip(t *testing.T) {
	raw := []byte{0, 1, 2, 250, 255}
	uri := EncodeDataURI("image/jpeg", raw)
	mime, data, err := DecodeDataURI(uri)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if mime != "image/jpeg" || !bytes.Equal(data, raw) {
		t.Fatalf("data URI round trip failed: %q %v", mime, data)
	}
	if _, _, err := DecodeDataURI("http://example.com/x.png"); err == nil {
		t.Fatalf("non-data URI must be rejected")
	}
}

func TestObjectPayloadRoundTrip(t *testing.T) {
	obj := cloud.NewObject([]cloud.Point{{X: 1, Y: 2, Z: 3, Confidence: 0.5}}, 0.07)
	obj.SetUniformScale(1.5)
	ts, geo := ObjectToPayloads(obj)
	back, err := PayloadsToObject(ts, geo)
	if err != nil {
		t.Fatalf("rebuild: %v", err)
	}
	if len(back.Points) != 1 {
		t.Fatalf("expected 1 point, got %d", len(back.Points))
	}
	if back.UniformScale != 1.5 || back.Resampled {
		t.Fatalf("transform state lost: scale=%v resampled=%v", back.UniformScale, back.Resampled)
	}
}

func TestBlobRefDecodesMetadataOnly(t *testing.T) {
	data := []byte(`{"version":1,"edited_image":{"_type":"File","name":"edit.png","mime":"image/png","size":1234}}`)
	doc, err := Decode(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if doc.EditedImage == nil || doc.EditedImage.Type != "File" || doc.EditedImage.Name != "edit.png" {
		t.Fatalf("blob tag should decode to metadata: %+v", doc.EditedImage)
	}
}
