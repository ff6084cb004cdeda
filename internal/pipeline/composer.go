package pipeline

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"path/filepath"
	"time"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

const (
	displayWidth = 800
	bannerHeight = 150

	brightnessPercent = 5
	saturationPercent = 10
	blurSigma         = 0.3
)

// Params records the settings a generation was produced with. It is stored
// alongside the generation record.
type Params struct {
	Width      int     `json:"width"`
	Brightness int     `json:"brightness"`
	Saturation int     `json:"saturation"`
	BlurSigma  float64 `json:"blurSigma"`
}

// Composer produces the "generated" image: the upload normalized to a fixed
// display width, a translucent banner with the prompt text, and a mild
// brightness/saturation boost with a slight blur.
type Composer struct {
	OutputDir string
}

func (c *Composer) Compose(inputPath, prompt string) (string, Params, error) {
	src, err := imaging.Open(inputPath)
	if err != nil {
		return "", Params{}, fmt.Errorf("decode image: %w", err)
	}

	img := imaging.Resize(src, displayWidth, 0, imaging.Lanczos)
	img = overlayPromptBanner(img, prompt)
	img = imaging.AdjustBrightness(img, brightnessPercent)
	img = imaging.AdjustSaturation(img, saturationPercent)
	img = imaging.Blur(img, blurSigma)

	outPath := filepath.Join(c.OutputDir, GeneratedFilename())

	if err := imaging.Save(img, outPath); err != nil {
		return "", Params{}, fmt.Errorf("save generated image: %w", err)
	}

	params := Params{
		Width:      displayWidth,
		Brightness: brightnessPercent,
		Saturation: saturationPercent,
		BlurSigma:  blurSigma,
	}

	return outPath, params, nil
}

// GeneratedFilename combines a millisecond timestamp with a UUID so that
// concurrent generations cannot collide.
func GeneratedFilename() string {
	return fmt.Sprintf("generated-%d-%s.png", time.Now().UnixMilli(), uuid.NewString())
}

// overlayPromptBanner draws a semi-transparent black bar across the top of
// the image with the prompt text centered in white.
func overlayPromptBanner(img *image.NRGBA, prompt string) *image.NRGBA {
	bounds := img.Bounds()

	height := bannerHeight
	if height > bounds.Dy() {
		height = bounds.Dy()
	}

	banner := image.NewNRGBA(image.Rect(0, 0, bounds.Dx(), height))
	draw.Draw(banner, banner.Bounds(), image.NewUniform(color.NRGBA{A: 128}), image.Point{}, draw.Src)

	drawer := &font.Drawer{
		Dst:  banner,
		Src:  image.NewUniform(color.White),
		Face: basicfont.Face7x13,
	}

	textWidth := drawer.MeasureString(prompt)
	x := (fixed.I(bounds.Dx()) - textWidth) / 2
	if x < 0 {
		x = 0
	}
	drawer.Dot = fixed.Point26_6{X: x, Y: fixed.I(height/2 + basicfont.Face7x13.Ascent/2)}
	drawer.DrawString(prompt)

	return imaging.Overlay(img, banner, image.Pt(0, 0), 1.0)
}
