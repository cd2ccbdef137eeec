package pdf

import (
	"bytes"
	"fmt"
	"io"

	"github.com/go-pdf/fpdf"
)

const (
	fontFamily = "body"
	coreFont   = "Helvetica"
	logoName   = "logo"
)

// Font is a TrueType font able to draw Hangul, e.g. NanumGothic
type Font struct {
	TTF []byte
}

type document struct {
	pdf       *fpdf.Fpdf
	family    string
	translate func(string) string
}

func newDocument(font Font) *document {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetAutoPageBreak(false, 0)

	d := &document{pdf: pdf}
	if len(font.TTF) > 0 {
		pdf.AddUTF8FontFromBytes(fontFamily, "", font.TTF)
		d.family = fontFamily
		d.translate = func(s string) string { return s }
	} else {
		d.family = coreFont
		d.translate = pdf.UnicodeTranslatorFromDescriptor("")
	}
	pdf.SetFont(d.family, "", BodySize)
	return d
}

// Width implements Measurer with the metrics of the document font
func (d *document) Width(text string, size float64) float64 {
	d.pdf.SetFontSize(size)
	return d.pdf.GetStringWidth(d.translate(text))
}

func (d *document) register(name string, data []byte, imageType string) {
	d.pdf.RegisterImageOptionsReader(name, fpdf.ImageOptions{ImageType: imageType}, bytes.NewReader(data))
}

func (d *document) draw(pages []Page, hasLogo bool) {
	for _, p := range pages {
		d.pdf.AddPage()
		for _, op := range p.Ops {
			switch op.Kind {
			case OpText:
				d.pdf.SetFontSize(op.Size)
				d.pdf.Text(op.X, op.Y, d.translate(op.Text))
			case OpRule:
				d.pdf.SetLineWidth(0.2)
				d.pdf.Line(op.X, op.Y, op.X+op.W, op.Y)
			case OpImage:
				d.pdf.ImageOptions(op.Image, op.X, op.Y, op.W, op.H, false, fpdf.ImageOptions{ImageType: "JPEG"}, 0, "")
			case OpLogo:
				if hasLogo {
					d.pdf.ImageOptions(logoName, op.X, op.Y, op.W, op.H, false, fpdf.ImageOptions{ImageType: "PNG"}, 0, "")
				}
			}
		}
	}
}

func (d *document) output(w io.Writer) error {
	if err := d.pdf.Error(); err != nil {
		return fmt.Errorf("render pdf: %w", err)
	}
	return d.pdf.Output(w)
}
