package export

import (
	"fmt"
	"strings"

	"github.com/san-kum/diffusim/internal/storage"
)

// frame maps data coordinates onto an SVG viewport with 10% padding.
type frame struct {
	minX, minY, rangeX, rangeY float64
	width, height             int
}

func newFrame(xs []float64, ys [][]float64, width, height int) frame {
	minX, maxX := xs[0], xs[0]
	for _, x := range xs {
		minX, maxX = min(minX, x), max(maxX, x)
	}
	minY, maxY := ys[0][0], ys[0][0]
	for _, s := range ys {
		for _, y := range s {
			minY, maxY = min(minY, y), max(maxY, y)
		}
	}

	rangeX := maxX - minX
	rangeY := maxY - minY
	if rangeX == 0 {
		rangeX = 1
	}
	if rangeY == 0 {
		rangeY = 1
	}
	minX -= rangeX * 0.1
	minY -= rangeY * 0.1
	return frame{
		minX:   minX,
		minY:   minY,
		rangeX: rangeX * 1.2,
		rangeY: rangeY * 1.2,
		width:  width,
		height: height,
	}
}

func (f frame) point(x, y float64) (float64, float64) {
	return (x - f.minX) / f.rangeX * float64(f.width),
		float64(f.height) - (y-f.minY)/f.rangeY*float64(f.height)
}

func (f frame) path(xs, ys []float64) string {
	var sb strings.Builder
	for i := range xs {
		x, y := f.point(xs[i], ys[i])
		if i == 0 {
			fmt.Fprintf(&sb, "M%.1f,%.1f", x, y)
		} else {
			fmt.Fprintf(&sb, " L%.1f,%.1f", x, y)
		}
	}
	return sb.String()
}

// MSDToSVG draws the observed MSD with ±1σ error bars, the fitted model
// and the shaded posterior band of a stored curve.
func MSDToSVG(c *storage.Curve, width, height int) string {
	if c == nil || len(c.Times) == 0 {
		return ""
	}

	lo := make([]float64, len(c.Mean))
	hi := make([]float64, len(c.Mean))
	for i, m := range c.Mean {
		lo[i], hi[i] = m-c.StdErr[i], m+c.StdErr[i]
	}
	series := [][]float64{lo, hi}
	hasFit := len(c.Fit) == len(c.Times)
	hasBand := len(c.Lower) == len(c.Times) && len(c.Upper) == len(c.Times)
	if hasFit {
		series = append(series, c.Fit)
	}
	if hasBand {
		series = append(series, c.Lower, c.Upper)
	}
	f := newFrame(c.Times, series, width, height)

	var sb strings.Builder
	fmt.Fprintf(&sb, `<?xml version="1.0" encoding="UTF-8"?>
<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d">
<rect width="100%%" height="100%%" fill="#0a0a0a"/>
`, width, height, width, height)

	if hasBand {
		rev := make([]float64, len(c.Times))
		revT := make([]float64, len(c.Times))
		for i := range c.Times {
			j := len(c.Times) - 1 - i
			rev[i], revT[i] = c.Upper[j], c.Times[j]
		}
		upper := strings.Replace(f.path(revT, rev), "M", "L", 1)
		fmt.Fprintf(&sb, `<path fill="#00ffff" fill-opacity="0.2" stroke="none" d="%s %s Z"/>
`, f.path(c.Times, c.Lower), upper)
	}
	if hasFit {
		fmt.Fprintf(&sb, `<path fill="none" stroke="#ff00ff" stroke-width="1.5" d="%s"/>
`, f.path(c.Times, c.Fit))
	}

	sb.WriteString(`<g stroke="#00ff00" fill="#00ff00">` + "\n")
	for i, t := range c.Times {
		x, y := f.point(t, c.Mean[i])
		_, y0 := f.point(t, lo[i])
		_, y1 := f.point(t, hi[i])
		fmt.Fprintf(&sb, `<line x1="%.1f" y1="%.1f" x2="%.1f" y2="%.1f"/>
<circle cx="%.1f" cy="%.1f" r="2.5"/>
`, x, y0, x, y1, x, y)
	}
	sb.WriteString("</g>\n</svg>")
	return sb.String()
}
