// Package render encodes a heatmap scene as SVG, PNG or WebP.
package render

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"image/color"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/woozymasta/zipheat/internal/geo"
	"github.com/woozymasta/zipheat/internal/heatmap"

	"github.com/tdewolff/minify/v2"
	"github.com/tdewolff/minify/v2/svg"
)

// SVGMime is the media type of SVG output.
const SVGMime = "image/svg+xml"

var svgMinifier = func() *minify.M {
	m := minify.New()
	m.AddFunc(SVGMime, svg.Minify)
	return m
}()

// SVG renders the scene and minifies it.
func SVG(sc *heatmap.Scene) ([]byte, error) {
	var raw bytes.Buffer
	if err := WriteSVG(&raw, sc); err != nil {
		return nil, err
	}

	out, err := svgMinifier.Bytes(SVGMime, raw.Bytes())
	if err != nil {
		return nil, fmt.Errorf("minify svg: %w", err)
	}
	return out, nil
}

// WriteSVG writes the unminified SVG document of the scene.
func WriteSVG(w io.Writer, sc *heatmap.Scene) error {
	var b bytes.Buffer

	fmt.Fprintf(&b, `<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d">`,
		sc.Width, sc.Height, sc.Width, sc.Height)
	b.WriteByte('\n')

	if sc.Err != "" {
		b.WriteString(`<text x="20" y="30" fill="red" font-family="sans-serif" font-size="14">`)
		escape(&b, sc.Err)
		b.WriteString("</text>\n</svg>\n")
		_, err := w.Write(b.Bytes())
		return err
	}

	t := sc.Transform
	fmt.Fprintf(&b, `<g id="map-group" transform="translate(%s,%s) scale(%s)">`, num(t.X), num(t.Y), num(t.K))
	b.WriteByte('\n')

	for _, sh := range sc.Shapes {
		fmt.Fprintf(&b, `<path data-zip="%s" d="%s" fill="%s" fill-rule="evenodd" stroke="%s" stroke-width="%s">`,
			attr(sh.Zip), pathData(sh.Polygons), css(sh.Fill), css(sh.Stroke.Color), num(sh.Stroke.Width))
		b.WriteString("<title>Zipcode: ")
		escape(&b, sh.Zip)
		if sh.HasData {
			b.WriteString("\n" + sc.Mode.Label() + ": " + heatmap.FormatValue(sh.Value))
		}
		b.WriteString("</title></path>\n")
	}
	b.WriteString("</g>\n")

	if tip := sc.Tooltip; tip != nil {
		lines := tip.Lines()
		width := 16 + 7*longest(lines)
		height := 8 + 15*len(lines)
		fmt.Fprintf(&b, `<g id="tooltip" transform="translate(%s,%s)">`, num(tip.X), num(tip.Y))
		fmt.Fprintf(&b, `<rect width="%d" height="%d" rx="4" fill="black" fill-opacity="0.7"/>`, width, height)
		for i, line := range lines {
			fmt.Fprintf(&b, `<text x="8" y="%d" fill="white" font-family="sans-serif" font-size="12">`, 16+15*i)
			escape(&b, line)
			b.WriteString("</text>")
		}
		b.WriteString("</g>\n")
	}

	b.WriteString("</svg>\n")
	_, err := w.Write(b.Bytes())
	return err
}

func pathData(polys []geo.Polygon) string {
	var sb strings.Builder
	for _, p := range polys {
		for _, ring := range p {
			for i, pt := range ring {
				if i == 0 {
					sb.WriteByte('M')
				} else {
					sb.WriteByte('L')
				}
				sb.WriteString(num(pt.X))
				sb.WriteByte(',')
				sb.WriteString(num(pt.Y))
			}
			if len(ring) > 0 {
				sb.WriteByte('Z')
			}
		}
	}
	return sb.String()
}

func num(v float64) string {
	return strconv.FormatFloat(math.Round(v*1000)/1000, 'f', -1, 64)
}

func css(c color.RGBA) string {
	return fmt.Sprintf("rgb(%d, %d, %d)", c.R, c.G, c.B)
}

func escape(b *bytes.Buffer, s string) {
	_ = xml.EscapeText(b, []byte(s))
}

func attr(s string) string {
	var b bytes.Buffer
	escape(&b, s)
	return b.String()
}

func longest(lines []string) int {
	n := 0
	for _, l := range lines {
		if len(l) > n {
			n = len(l)
		}
	}
	return n
}
