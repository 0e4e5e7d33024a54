package extraction

import (
	"context"
	"fmt"
	"image"
	"sync"
	"sync/atomic"

	"github.com/Lllllllleong/documentocr/internal/document"
	"github.com/Lllllllleong/documentocr/internal/models"
	"github.com/Lllllllleong/documentocr/internal/recognition"
)

type fakeDoc struct {
	pages  int
	closed atomic.Int32
}

func (d *fakeDoc) PageCount() int { return d.pages }

func (d *fakeDoc) Close() error {
	d.closed.Add(1)
	return nil
}

// counter records calls per page.
type counter struct {
	mu    sync.Mutex
	calls map[int]int
}

func (c *counter) hit(page int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.calls == nil {
		c.calls = map[int]int{}
	}
	c.calls[page]++
}

func (c *counter) count(page int) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls[page]
}

func (c *counter) total() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, v := range c.calls {
		n += v
	}
	return n
}

type fakeText struct {
	counter
	text map[int]string
	errs map[int]error
}

func (f *fakeText) ExtractNative(ctx context.Context, doc document.Document, page int) (string, error) {
	f.hit(page)
	if err := document.CheckPage(doc, page); err != nil {
		return "", err
	}
	if err := f.errs[page]; err != nil {
		return "", err
	}
	return f.text[page], nil
}

type fakeRaster struct {
	counter
	errs map[int]error
}

func (f *fakeRaster) Render(ctx context.Context, doc document.Document, page int, scale float64) (*models.PageImage, error) {
	f.hit(page)
	if err := document.CheckScale(scale); err != nil {
		return nil, err
	}
	if err := f.errs[page]; err != nil {
		return nil, err
	}
	return &models.PageImage{
		Page:   page,
		Image:  image.NewGray(image.Rect(0, 0, int(10*scale), int(10*scale))),
		Format: models.PixelGray,
		Scale:  scale,
	}, nil
}

type fakeEngine struct {
	counter
	results map[int]recognition.Result
	errs    map[int]error

	// hook runs inside Recognize before the result is returned.
	hook func(page int)

	active    atomic.Int32
	maxActive atomic.Int32
}

func (f *fakeEngine) Name() string { return "fake" }

func (f *fakeEngine) Recognize(ctx context.Context, img *models.PageImage, language string) (recognition.Result, error) {
	n := f.active.Add(1)
	defer f.active.Add(-1)
	for {
		m := f.maxActive.Load()
		if n <= m || f.maxActive.CompareAndSwap(m, n) {
			break
		}
	}

	f.hit(img.Page)
	if f.hook != nil {
		f.hook(img.Page)
	}
	if err := f.errs[img.Page]; err != nil {
		return recognition.Result{}, err
	}
	if r, ok := f.results[img.Page]; ok {
		return r, nil
	}
	return recognition.Result{Text: fmt.Sprintf("page %d", img.Page), Confidence: 0.5}, nil
}
