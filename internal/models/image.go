package models

import "image"

// PixelFormat describes the layout of a PageImage buffer.
type PixelFormat string

const (
	PixelGray PixelFormat = "gray"
	PixelRGBA PixelFormat = "rgba"
)

// PageImage is a decoded raster of one page. It is produced per render call
// and never cached or persisted.
type PageImage struct {
	Page   int // 1-based source page index
	Image  image.Image
	Format PixelFormat
	Scale  float64
}

func (p *PageImage) Width() int {
	if p == nil || p.Image == nil {
		return 0
	}
	return p.Image.Bounds().Dx()
}

func (p *PageImage) Height() int {
	if p == nil || p.Image == nil {
		return 0
	}
	return p.Image.Bounds().Dy()
}
