package carracing

import (
	"fmt"
	"image/color"
	"os"
	"path/filepath"

	"github.com/ByteArena/box2d"
	"github.com/fogleman/gg"
)

const (
	ViewportW float64 = 600
	ViewportH float64 = 600
)

var (
	grassColour   = color.RGBA{R: 102, G: 204, B: 102, A: 255}
	roadColour    = color.RGBA{R: 102, G: 102, B: 102, A: 255}
	visitedColour = color.RGBA{R: 112, G: 112, B: 128, A: 255}
	carColour     = color.RGBA{R: 204, G: 0, B: 0, A: 255}
)

// worldToPixel converts Box2D world coordinates to pixel coordinates
func worldToPixel(x, y float64) (float64, float64) {
	return (x + PlayField) * ViewportW / (2 * PlayField),
		(PlayField - y) * ViewportH / (2 * PlayField)
}

// SetRenderDir sets the directory that rendered frames are saved to
func (c *CarRacing) SetRenderDir(dir string) {
	c.renderDir = dir
}

// Render draws the track and car and saves the frame as a PNG in the
// render directory. Frames are numbered by episode step.
func (c *CarRacing) Render() error {
	dc := gg.NewContext(int(ViewportW), int(ViewportH))
	dc.SetColor(grassColour)
	dc.Clear()

	// Track
	scale := ViewportW / (2 * PlayField)
	dc.SetLineWidth(2 * TrackHalfWidth * scale)
	for i := 0; i < c.track.Len(); i++ {
		next := (i + 1) % c.track.Len()
		x1, y1 := worldToPixel(c.track.x[i], c.track.y[i])
		x2, y2 := worldToPixel(c.track.x[next], c.track.y[next])
		dc.DrawLine(x1, y1, x2, y2)
		if c.track.visited[i] {
			dc.SetColor(visitedColour)
		} else {
			dc.SetColor(roadColour)
		}
		dc.Stroke()
	}

	// Car
	carFix := c.car.GetFixtureList()
	for carFix != nil {
		dc.ClearPath()
		shape := carFix.M_shape.(*box2d.B2PolygonShape)
		trans := carFix.M_body.M_xf
		for i, vertex := range shape.M_vertices {
			if i >= shape.M_count {
				break
			}
			vertex = box2d.B2TransformVec2Mul(trans, vertex)
			dc.LineTo(worldToPixel(vertex.X, vertex.Y))
		}
		dc.ClosePath()
		dc.SetColor(carColour)
		dc.Fill()
		carFix = carFix.M_next
	}

	if err := os.MkdirAll(c.renderDir, 0755); err != nil {
		return fmt.Errorf("render: could not create render directory: %v",
			err)
	}
	filename := filepath.Join(c.renderDir,
		fmt.Sprintf("carracing-%06d.png", c.frame))
	c.frame++

	if err := dc.SavePNG(filename); err != nil {
		return fmt.Errorf("render: could not save frame: %v", err)
	}
	return nil
}
