package export

import (
	"bufio"
	"fmt"
	"io"
	"sort"

	"gonum.org/v1/gonum/floats"

	"github.com/banshee-data/crystal.engrave/internal/cloud"
)

// WriteDXF emits points as a minimal ASCII DXF document: a HEADER section
// declaring the bounding extents and an ENTITIES section with one POINT per
// record, Z-ascending. Engraving controllers consume the points bottom-up so
// lower layers are burned before the beam has to pass through them.
func WriteDXF(w io.Writer, points []cloud.Point) error {
	if len(points) == 0 {
		return fmt.Errorf("no points to export")
	}

	sorted := make([]cloud.Point, len(points))
	copy(sorted, points)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Z < sorted[j].Z })

	xs := make([]float64, len(sorted))
	ys := make([]float64, len(sorted))
	zs := make([]float64, len(sorted))
	for i, p := range sorted {
		xs[i], ys[i], zs[i] = p.X, p.Y, p.Z
	}

	bw := bufio.NewWriter(w)
	writeGroup := func(code int, value string) {
		fmt.Fprintf(bw, "%d\n%s\n", code, value)
	}
	writeFloat := func(code int, v float64) {
		fmt.Fprintf(bw, "%d\n%.6f\n", code, v)
	}

	writeGroup(0, "SECTION")
	writeGroup(2, "HEADER")
	writeGroup(9, "$EXTMIN")
	writeFloat(10, floats.Min(xs))
	writeFloat(20, floats.Min(ys))
	writeFloat(30, floats.Min(zs))
	writeGroup(9, "$EXTMAX")
	writeFloat(10, floats.Max(xs))
	writeFloat(20, floats.Max(ys))
	writeFloat(30, floats.Max(zs))
	writeGroup(0, "ENDSEC")

	writeGroup(0, "SECTION")
	writeGroup(2, "ENTITIES")
	for _, p := range sorted {
		writeGroup(0, "POINT")
		writeGroup(8, "0")
		writeFloat(10, p.X)
		writeFloat(20, p.Y)
		writeFloat(30, p.Z)
	}
	writeGroup(0, "ENDSEC")
	writeGroup(0, "EOF")

	return bw.Flush()
}
