package pdf

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"io"
	"io/ioutil"
	"time"

	"github.com/rwcarlsen/goexif/exif"
	log "github.com/sirupsen/logrus"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
	"golang.org/x/sync/errgroup"
	"golang.org/x/text/encoding/charmap"

	"github.com/stl-inc/as-report-api/schema"
	"github.com/stl-inc/as-report-api/store"
)

const (
	logPrefix = "pdf"

	maxPhotoBytes     = 20 << 20
	maxPhotoDimension = 1200
	jpegQuality       = 85
	fetchConcurrency  = 4
)

var (
	ErrNoReport     = fmt.Errorf("no report data provided")
	ErrFontRequired = fmt.Errorf("text needs a unicode font")
)

// FileName is the download name of a report document
func FileName(r *schema.Report) string {
	return "report_" + r.ID + ".pdf"
}

// Exporter renders reports with their photos
type Exporter struct {
	blob     store.Blob
	font     Font
	logo     []byte
	labels   Labels
	location *time.Location
}

type Option func(*Exporter)

func WithFont(f Font) Option {
	return func(e *Exporter) { e.font = f }
}

// WithLogo sets the png drawn in the header
func WithLogo(png []byte) Option {
	return func(e *Exporter) { e.logo = png }
}

func WithLabels(l Labels) Option {
	return func(e *Exporter) { e.labels = l }
}

func WithLocation(loc *time.Location) Option {
	return func(e *Exporter) { e.location = loc }
}

func NewExporter(blob store.Blob, opts ...Option) *Exporter {
	e := &Exporter{
		blob:     blob,
		labels:   DefaultLabels(),
		location: time.UTC,
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

type photo struct {
	tile Tile
	jpeg []byte
}

// Export writes the document of a report. Photos that cannot be fetched or
// decoded are left out.
func (e *Exporter) Export(ctx context.Context, r *schema.Report, w io.Writer) error {
	if r == nil {
		return ErrNoReport
	}
	if len(e.font.TTF) == 0 && !e.coreFontCovers(r) {
		return ErrFontRequired
	}

	fetched := e.fetchAll(ctx, r)

	doc := newDocument(e.font)
	tiles := map[schema.Bucket][]Tile{}
	for _, b := range schema.Buckets {
		for _, p := range fetched[b] {
			if p == nil {
				continue
			}
			doc.register(p.tile.Name, p.jpeg, "JPEG")
			tiles[b] = append(tiles[b], p.tile)
		}
	}
	if len(e.logo) > 0 {
		doc.register(logoName, e.logo, "PNG")
	}

	layout := Layout{Labels: e.labels, Location: e.location, Measure: doc}
	doc.draw(layout.Pages(*r, tiles), len(e.logo) > 0)

	return doc.output(w)
}

// coreFontCovers reports whether every label and field can be drawn with the
// cp1252 core font
func (e *Exporter) coreFontCovers(r *schema.Report) bool {
	l := e.labels
	texts := []string{
		l.Title, l.Address, l.ReportDate, l.Writer, l.PhoneNumber, l.Company,
		l.RecycleCategory, l.MalfunctionDetails, l.ActionDetails, l.MalfunctionReason,
		l.Manufacturer, l.FieldPhotos, l.ReasonPhotos, l.MaterialPhotos, l.NoPhotos, l.Footer,
	}
	for _, v := range r.TextFields() {
		texts = append(texts, v)
	}
	for _, s := range texts {
		for _, c := range s {
			if _, ok := charmap.Windows1252.EncodeRune(c); !ok {
				return false
			}
		}
	}
	return true
}

func (e *Exporter) fetchAll(ctx context.Context, r *schema.Report) map[schema.Bucket][]*photo {
	result := map[schema.Bucket][]*photo{}
	var g errgroup.Group
	g.SetLimit(fetchConcurrency)

	for _, b := range schema.Buckets {
		urls := r.Photos.Get(b)
		list := make([]*photo, len(urls))
		result[b] = list

		for i, u := range urls {
			b, i, u := b, i, u
			g.Go(func() error {
				p, err := e.fetch(ctx, u)
				if err != nil {
					log.WithField("prefix", logPrefix).Warnf("skip photo %s of report %s: %s", u, r.ID, err)
					return nil
				}
				p.tile.Name = fmt.Sprintf("%s-%d", b, i)
				list[i] = p
				return nil
			})
		}
	}
	g.Wait()
	return result
}

func (e *Exporter) fetch(ctx context.Context, ref string) (*photo, error) {
	rc, err := e.blob.Open(ctx, ref)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	data, err := ioutil.ReadAll(io.LimitReader(rc, maxPhotoBytes))
	if err != nil {
		return nil, err
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	img = Orient(img, orientation(data))
	img = shrink(img, maxPhotoDimension)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, err
	}

	b := img.Bounds()
	return &photo{
		tile: Tile{Width: b.Dx(), Height: b.Dy()},
		jpeg: buf.Bytes(),
	}, nil
}

// orientation reads the exif orientation tag, 1 when absent
func orientation(data []byte) int {
	x, err := exif.Decode(bytes.NewReader(data))
	if err != nil {
		return 1
	}
	tag, err := x.Get(exif.Orientation)
	if err != nil {
		return 1
	}
	o, err := tag.Int(0)
	if err != nil {
		return 1
	}
	return o
}

// Orient redraws an image so that it displays upright for the given exif
// orientation
func Orient(img image.Image, o int) image.Image {
	if o < 2 || o > 8 {
		return img
	}

	b := img.Bounds()
	w, h := b.Dx(), b.Dy()

	var dst *image.RGBA
	if o >= 5 {
		dst = image.NewRGBA(image.Rect(0, 0, h, w))
	} else {
		dst = image.NewRGBA(image.Rect(0, 0, w, h))
	}

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			var dx, dy int
			switch o {
			case 2:
				dx, dy = w-1-x, y
			case 3:
				dx, dy = w-1-x, h-1-y
			case 4:
				dx, dy = x, h-1-y
			case 5:
				dx, dy = y, x
			case 6:
				dx, dy = h-1-y, x
			case 7:
				dx, dy = h-1-y, w-1-x
			case 8:
				dx, dy = y, w-1-x
			}
			dst.Set(dx, dy, img.At(b.Min.X+x, b.Min.Y+y))
		}
	}
	return dst
}

// shrink scales an image down so its longer side is at most max pixels
func shrink(img image.Image, max int) image.Image {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= max && h <= max {
		return img
	}

	if w >= h {
		h = h * max / w
		w = max
	} else {
		w = w * max / h
		h = max
	}
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Over, nil)
	return dst
}
