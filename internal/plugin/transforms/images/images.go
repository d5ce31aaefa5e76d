// Package images renders web and thumbnail JPEG variants of PNG and JPEG sources.
package images

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	_ "image/png" // register decoder
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/image/draw"

	"git.home.luguber.info/inful/sitebuilder/internal/logfields"
	"git.home.luguber.info/inful/sitebuilder/internal/manifest"
)

// Size is a bounding box in pixels.
type Size struct {
	Width  int
	Height int
}

// Settings are the rendering tunables shared by both image parsers.
type Settings struct {
	Web     Size
	Thumb   Size
	Quality int
}

// DefaultSettings returns the 1280x720 web and 384x216 thumbnail boxes at quality 80.
func DefaultSettings() Settings {
	return Settings{
		Web:     Size{Width: 1280, Height: 720},
		Thumb:   Size{Width: 384, Height: 216},
		Quality: 80,
	}
}

// Parser handles one image extension. Matching is case sensitive, so
// `photo.PNG` falls through to the default copy.
type Parser struct {
	name     string
	ext      string
	mimetype string
	settings Settings
	logger   *slog.Logger
}

// NewPNG creates the `.png` parser.
func NewPNG(s Settings) *Parser {
	return &Parser{name: "image_png", ext: ".png", mimetype: "image/png", settings: s, logger: slog.Default()}
}

// NewJPG creates the `.jpg` parser.
func NewJPG(s Settings) *Parser {
	return &Parser{name: "image_jpg", ext: ".jpg", mimetype: "image/jpeg", settings: s, logger: slog.Default()}
}

// WithLogger sets the logger used for unsupported image warnings.
func (p *Parser) WithLogger(l *slog.Logger) *Parser {
	if l != nil {
		p.logger = l
	}
	return p
}

func (p *Parser) Name() string           { return p.name }
func (p *Parser) Match(name string) bool { return strings.HasSuffix(name, p.ext) }
func (p *Parser) CopyFile() bool         { return true }

// Transform writes `<stem>_web.jpg` and `<stem>_thumb.jpg` next to the copied original.
func (p *Parser) Transform(_ context.Context, srcPath, name, destDir string) (manifest.Tree, error) {
	f, err := os.Open(srcPath)
	if err != nil {
		return nil, err
	}
	img, _, err := image.Decode(f)
	_ = f.Close()
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", name, err)
	}

	if !colorImage(img) {
		p.logger.Warn("Image is not a valid color image",
			logfields.Path(srcPath), slog.String("model", fmt.Sprintf("%T", img)))
		return manifest.Tree{"error": "Not a valid color image"}, nil
	}

	stem := strings.TrimSuffix(name, filepath.Ext(name))
	web := stem + "_web.jpg"
	thumb := stem + "_thumb.jpg"
	if err := p.write(img, p.settings.Web, filepath.Join(destDir, web)); err != nil {
		return nil, err
	}
	if err := p.write(img, p.settings.Thumb, filepath.Join(destDir, thumb)); err != nil {
		return nil, err
	}

	b := img.Bounds()
	return manifest.Tree{
		"mimetype": p.mimetype,
		"size":     []any{b.Dx(), b.Dy()},
		"web":      web,
		"thumb":    thumb,
	}, nil
}

func (p *Parser) write(src image.Image, box Size, path string) error {
	w, h := Fit(src.Bounds().Dx(), src.Bounds().Dy(), box)
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	// JPEG has no alpha channel; flatten transparent areas onto white.
	draw.Draw(dst, dst.Bounds(), &image.Uniform{C: color.White}, image.Point{}, draw.Src)
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Over, nil)

	out, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := jpeg.Encode(out, dst, &jpeg.Options{Quality: p.settings.Quality}); err != nil {
		_ = out.Close()
		return fmt.Errorf("encode %s: %w", filepath.Base(path), err)
	}
	return out.Close()
}

// Fit scales w x h down to fit inside box keeping the aspect ratio.
// Images already inside the box keep their size.
func Fit(w, h int, box Size) (int, int) {
	if w <= box.Width && h <= box.Height {
		return w, h
	}
	rw := float64(box.Width) / float64(w)
	rh := float64(box.Height) / float64(h)
	r := min(rw, rh)
	nw := max(1, int(float64(w)*r+0.5))
	nh := max(1, int(float64(h)*r+0.5))
	return nw, nh
}

// colorImage rejects palette, grayscale and alpha-only images.
func colorImage(img image.Image) bool {
	switch img.(type) {
	case *image.Paletted, *image.Gray, *image.Alpha, *image.Alpha16:
		return false
	default:
		return true
	}
}
