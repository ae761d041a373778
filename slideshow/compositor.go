package slideshow

import (
	"fmt"
	"image"
	"image/color"
	"strings"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"

	"photoreel/config"
	"photoreel/types"
)

// Frame layout, as fractions of the surface. The content box is the
// region photos are fitted into; the bands above and below it hold the
// label/progress and footer overlays. At 1080x1920 these work out to a
// 48px side margin, a 220px header band and a 300px footer band.
type layout struct {
	marginX      int
	headerHeight int
	footerHeight int
	barHeight    int
	padding      int
	labelSize    int
	footerSize   int
}

func layoutFor(w, h int) layout {
	return layout{
		marginX:      w * 48 / 1080,
		headerHeight: h * 220 / 1920,
		footerHeight: h * 300 / 1920,
		barHeight:    max(2, h*12/1920),
		padding:      h * 40 / 1920,
		labelSize:    max(4, h*config.LabelFontSize/1920),
		footerSize:   max(4, h*config.FooterFontSize/1920),
	}
}

var (
	backgroundColor  = color.RGBA{R: 0x11, G: 0x11, B: 0x14, A: 0xFF}
	labelColor       = color.RGBA{R: 0xFF, G: 0xFF, B: 0xFF, A: 0xFF}
	footerColor      = color.RGBA{R: 0xD0, G: 0xD0, B: 0xD4, A: 0xFF}
	brandColor       = color.RGBA{R: 0x87, G: 0x4B, B: 0xFD, A: 0xFF}
	progressTrackCol = color.RGBA{R: 0x2A, G: 0x2A, B: 0x30, A: 0xFF}
	progressFillCol  = color.RGBA{R: 0x87, G: 0x4B, B: 0xFD, A: 0xFF}
)

// Compositor draws one frame at a time onto a fresh RGBA surface. It
// keeps no state between invocations; everything a frame needs arrives
// through Render's arguments. The font faces are parsed once at
// construction and are immutable.
type Compositor struct {
	width  int
	height int
	lay    layout

	labelFace  font.Face
	footerFace font.Face
}

func NewCompositor(cfg Config) (*Compositor, error) {
	parsed, err := opentype.Parse(goregular.TTF)
	if err != nil {
		return nil, fmt.Errorf("parse overlay font: %w", err)
	}

	lay := layoutFor(cfg.Width, cfg.Height)
	labelFace, err := opentype.NewFace(parsed, &opentype.FaceOptions{
		Size: float64(lay.labelSize), DPI: 72, Hinting: font.HintingFull,
	})
	if err != nil {
		return nil, fmt.Errorf("label face: %w", err)
	}
	footerFace, err := opentype.NewFace(parsed, &opentype.FaceOptions{
		Size: float64(lay.footerSize), DPI: 72, Hinting: font.HintingFull,
	})
	if err != nil {
		return nil, fmt.Errorf("footer face: %w", err)
	}

	return &Compositor{
		width:      cfg.Width,
		height:     cfg.Height,
		lay:        lay,
		labelFace:  labelFace,
		footerFace: footerFace,
	}, nil
}

// Render composites a single frame: background fill, the current photo
// fitted and centered in the content box and blended at spec.Alpha, the
// top category label with a linear progress bar, and the bottom job
// overlay.
func (c *Compositor) Render(spec frameSpec, drawables []Drawable, info types.JobInfo) (*image.RGBA, error) {
	if spec.PhotoIndex < 0 || spec.PhotoIndex >= len(drawables) {
		return nil, fmt.Errorf("photo index %d out of range (%d drawables)", spec.PhotoIndex, len(drawables))
	}
	current := drawables[spec.PhotoIndex]

	frame := c.blankFrame()

	c.drawPhoto(frame, current.Image, spec.Alpha)
	c.drawHeader(frame, current.Category, spec.PhotoIndex, len(drawables))
	c.drawFooter(frame, info)

	return frame, nil
}

// blankFrame returns a fresh background-filled surface.
func (c *Compositor) blankFrame() *image.RGBA {
	frame := image.NewRGBA(image.Rect(0, 0, c.width, c.height))
	draw.Draw(frame, frame.Bounds(), image.NewUniform(backgroundColor), image.Point{}, draw.Src)
	return frame
}

// drawPhoto fits the photo into the content box preserving aspect ratio
// (scale = min of the two axis ratios), centers it, and blends it at the
// given alpha.
func (c *Compositor) drawPhoto(dst *image.RGBA, img image.Image, alpha float64) {
	if alpha <= 0 {
		return
	}

	box := image.Rect(c.lay.marginX, c.lay.headerHeight, c.width-c.lay.marginX, c.height-c.lay.footerHeight)
	src := img.Bounds()

	scale := float64(box.Dx()) / float64(src.Dx())
	if sy := float64(box.Dy()) / float64(src.Dy()); sy < scale {
		scale = sy
	}
	w := int(float64(src.Dx()) * scale)
	h := int(float64(src.Dy()) * scale)

	x0 := box.Min.X + (box.Dx()-w)/2
	y0 := box.Min.Y + (box.Dy()-h)/2
	target := image.Rect(x0, y0, x0+w, y0+h)

	var opts *draw.Options
	if alpha < 1 {
		mask := image.NewUniform(color.Alpha{A: uint8(alpha*255 + 0.5)})
		opts = &draw.Options{SrcMask: mask}
	}
	draw.ApproxBiLinear.Scale(dst, target, img, src, draw.Over, opts)
}

// drawHeader renders the category label and the progress bar showing how
// far through the photo set this frame is.
func (c *Compositor) drawHeader(dst *image.RGBA, cat types.Category, photoIndex, photoCount int) {
	label := strings.ToUpper(string(cat))

	drawer := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(labelColor),
		Face: c.labelFace,
	}
	bounds, _ := drawer.BoundString(label)
	textWidth := (bounds.Max.X - bounds.Min.X).Ceil()
	drawer.Dot = fixed.P((c.width-textWidth)/2, c.lay.padding+c.lay.labelSize)
	drawer.DrawString(label)

	trackY := c.lay.headerHeight - c.lay.padding - c.lay.barHeight
	track := image.Rect(c.lay.marginX, trackY, c.width-c.lay.marginX, trackY+c.lay.barHeight)
	draw.Draw(dst, track, image.NewUniform(progressTrackCol), image.Point{}, draw.Src)

	fillWidth := track.Dx() * (photoIndex + 1) / photoCount
	fill := image.Rect(track.Min.X, track.Min.Y, track.Min.X+fillWidth, track.Max.Y)
	draw.Draw(dst, fill, image.NewUniform(progressFillCol), image.Point{}, draw.Src)
}

// drawFooter renders the job metadata line and the fixed branding string
// at the bottom of the frame.
func (c *Compositor) drawFooter(dst *image.RGBA, info types.JobInfo) {
	meta := strings.TrimSpace(fmt.Sprintf("%s  ·  Job %s", info.CarModel, info.JobNumber))

	drawer := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(footerColor),
		Face: c.footerFace,
	}
	bounds, _ := drawer.BoundString(meta)
	textWidth := (bounds.Max.X - bounds.Min.X).Ceil()
	drawer.Dot = fixed.P((c.width-textWidth)/2, c.height-c.lay.footerHeight+c.lay.padding+c.lay.footerSize)
	drawer.DrawString(meta)

	brand := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(brandColor),
		Face: c.footerFace,
	}
	bounds, _ = brand.BoundString(config.BrandingText)
	textWidth = (bounds.Max.X - bounds.Min.X).Ceil()
	brand.Dot = fixed.P((c.width-textWidth)/2, c.height-c.lay.padding)
	brand.DrawString(config.BrandingText)
}
