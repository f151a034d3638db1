package render

import (
	"io"
	"math"

	"github.com/fogleman/gg"
	"github.com/paulmach/orb"
	"github.com/rotisserie/eris"

	"github.com/sells-group/valuegrid/internal/campus"
	"github.com/sells-group/valuegrid/internal/engine"
)

const pngMargin = 10

// PNG draws a static preview of the zones, north up, with stations as dots
// and campuses as enrollment-sized circles. size is the length of the longer
// image side in pixels.
func PNG(w io.Writer, res *engine.Result, ov Overlay, size int) error {
	if res == nil {
		return eris.New("render: nil result")
	}
	if size < 2*pngMargin+1 {
		return eris.Errorf("render: image size %d too small", size)
	}

	extent := res.Grid.Bound()
	width := extent.Max[0] - extent.Min[0]
	height := extent.Max[1] - extent.Min[1]
	if width <= 0 || height <= 0 {
		return eris.New("render: empty grid extent")
	}

	scale := float64(size-2*pngMargin) / math.Max(width, height)
	imgW := int(math.Round(width*scale)) + 2*pngMargin
	imgH := int(math.Round(height*scale)) + 2*pngMargin

	// Planar y grows north, image y grows down.
	trans := func(p orb.Point) (float64, float64) {
		return pngMargin + (p[0]-extent.Min[0])*scale, float64(imgH) - pngMargin - (p[1]-extent.Min[1])*scale
	}

	dc := gg.NewContext(imgW, imgH)
	dc.SetHexColor("#ffffff")
	dc.Clear()

	for _, z := range res.Zones {
		x0, y0 := trans(orb.Point{z.Bounds.MinX, z.Bounds.MaxY})
		x1, y1 := trans(orb.Point{z.Bounds.MaxX, z.Bounds.MinY})
		dc.DrawRectangle(x0, y0, x1-x0, y1-y0)
		dc.SetHexColor(z.Color)
		dc.Fill()
	}

	largest := campus.Summarize(ov.Campuses).LargestEnrollment
	for _, c := range ov.Campuses {
		x, y := trans(orb.Point{c.X, c.Y})
		dc.DrawCircle(x, y, campus.Radius(c.Enrollment, largest))
		dc.SetHexColor(c.Type.Color() + "b3")
		dc.FillPreserve()
		dc.SetHexColor("#333333")
		dc.SetLineWidth(1)
		dc.Stroke()
	}

	for _, s := range ov.Stations {
		x, y := trans(orb.Point{s.X, s.Y})
		dc.DrawCircle(x, y, 3)
		dc.SetHexColor(s.Category.Color())
		dc.FillPreserve()
		dc.SetHexColor("#ffffff")
		dc.SetLineWidth(1)
		dc.Stroke()
	}

	if err := dc.EncodePNG(w); err != nil {
		return eris.Wrap(err, "render: encode png")
	}
	return nil
}
