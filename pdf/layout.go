package pdf

import (
	"strings"
	"time"

	"github.com/stl-inc/as-report-api/schema"
)

// A4 portrait, millimetres
const (
	PageWidth  = 210.0
	PageHeight = 297.0
	Margin     = 10.0
	TextWidth  = PageWidth - 2*Margin
	LineHeight = 10.0

	TileSize = 50.0
	TileGap  = 10.0

	TitleSize = 18.0
	BodySize  = 12.0

	labelColumn   = 45.0
	footerHeight  = 25.0
	contentBottom = PageHeight - footerHeight
	infoTop       = 40.0
	sectionGap    = 20.0
	sectionLabel  = 15.0
)

// OpKind is the kind of a drawing operation
type OpKind int

const (
	OpText OpKind = iota
	OpImage
	OpRule
	OpLogo
)

// Op is one drawing operation. Text is drawn with its baseline at Y.
type Op struct {
	Kind  OpKind
	X, Y  float64
	W, H  float64
	Size  float64
	Text  string
	Image string
}

type Page struct {
	Ops []Op
}

// Tile is a fetched photo ready to be placed
type Tile struct {
	Name   string
	Width  int
	Height int
}

// Measurer returns the width of a text in millimetres
type Measurer interface {
	Width(text string, size float64) float64
}

// Labels are the captions printed in the document
type Labels struct {
	Title              string
	Address            string
	ReportDate         string
	Writer             string
	PhoneNumber        string
	Company            string
	RecycleCategory    string
	MalfunctionDetails string
	ActionDetails      string
	MalfunctionReason  string
	Manufacturer       string
	FieldPhotos        string
	ReasonPhotos       string
	MaterialPhotos     string
	NoPhotos           string
	Footer             string
}

func DefaultLabels() Labels {
	return Labels{
		Title:              "장애리포트",
		Address:            "주소",
		ReportDate:         "작성일",
		Writer:             "작성자",
		PhoneNumber:        "전화번호",
		Company:            "의뢰업체",
		RecycleCategory:    "제품 공류",
		MalfunctionDetails: "장애 내용",
		ActionDetails:      "장애 조치",
		MalfunctionReason:  "장애 판명",
		Manufacturer:       "제조업체명",
		FieldPhotos:        "현장 사진",
		ReasonPhotos:       "이유 사진",
		MaterialPhotos:     "원료 사진",
		NoPhotos:           "첨부된 사진이 없습니다.",
		Footer:             "AS 보고서",
	}
}

// Translate replaces every label with its "pdf.*" message, keeping the
// current text when a message is missing
func (l Labels) Translate(t func(id, fallback string) string) Labels {
	return Labels{
		Title:              t("pdf.title", l.Title),
		Address:            t("pdf.address", l.Address),
		ReportDate:         t("pdf.report_date", l.ReportDate),
		Writer:             t("pdf.writer", l.Writer),
		PhoneNumber:        t("pdf.phone_number", l.PhoneNumber),
		Company:            t("pdf.company", l.Company),
		RecycleCategory:    t("pdf.recycle_category", l.RecycleCategory),
		MalfunctionDetails: t("pdf.malfunction_details", l.MalfunctionDetails),
		ActionDetails:      t("pdf.action_details", l.ActionDetails),
		MalfunctionReason:  t("pdf.malfunction_reason", l.MalfunctionReason),
		Manufacturer:       t("pdf.manufacturer", l.Manufacturer),
		FieldPhotos:        t("pdf.field_photos", l.FieldPhotos),
		ReasonPhotos:       t("pdf.reason_photos", l.ReasonPhotos),
		MaterialPhotos:     t("pdf.material_photos", l.MaterialPhotos),
		NoPhotos:           t("pdf.no_photos", l.NoPhotos),
		Footer:             t("pdf.footer", l.Footer),
	}
}

// sectionOrder is the order photo sections appear in
var sectionOrder = []schema.Bucket{schema.BucketField, schema.BucketReason, schema.BucketMaterial}

func (l Labels) section(b schema.Bucket) string {
	switch b {
	case schema.BucketField:
		return l.FieldPhotos
	case schema.BucketReason:
		return l.ReasonPhotos
	}
	return l.MaterialPhotos
}

// Layout places a report on pages
type Layout struct {
	Labels   Labels
	Location *time.Location
	Measure  Measurer
}

type cursor struct {
	pages []Page
	y     float64
}

func (c *cursor) add(op Op) {
	p := &c.pages[len(c.pages)-1]
	p.Ops = append(p.Ops, op)
}

func (c *cursor) newPage() {
	c.pages = append(c.pages, Page{})
	c.y = Margin
}

// ensure starts a new page when h does not fit below the cursor
func (c *cursor) ensure(h float64) {
	if c.y+h > contentBottom {
		c.newPage()
		c.y += LineHeight
	}
}

// Pages lays out a report. tiles holds the photos that could be fetched,
// per bucket and in bucket order.
func (l Layout) Pages(r schema.Report, tiles map[schema.Bucket][]Tile) []Page {
	c := &cursor{}
	c.newPage()

	// header
	c.add(Op{Kind: OpLogo, X: Margin, Y: Margin, W: 30, H: 15})
	c.add(Op{Kind: OpText, X: 90, Y: 20, Size: TitleSize, Text: l.Labels.Title})

	// info block
	c.y = infoTop
	for _, line := range [][2]string{
		{l.Labels.Address, r.FullAddress()},
		{l.Labels.ReportDate, l.formatDate(r.ReportDate)},
		{l.Labels.Writer, r.Writer},
		{l.Labels.PhoneNumber, r.PhoneNumber},
		{l.Labels.Company, r.Company},
	} {
		for _, s := range l.wrap(line[0]+": "+line[1], TextWidth) {
			c.ensure(LineHeight)
			c.add(Op{Kind: OpText, X: Margin, Y: c.y, Size: BodySize, Text: s})
			c.y += LineHeight
		}
	}

	// key/value table
	c.add(Op{Kind: OpRule, X: Margin, Y: c.y - LineHeight/2, W: TextWidth})
	for _, row := range [][2]string{
		{l.Labels.RecycleCategory, r.RecycleCategory},
		{l.Labels.MalfunctionDetails, r.MalfunctionDetails},
		{l.Labels.ActionDetails, r.ActionDetails},
		{l.Labels.MalfunctionReason, r.MalfunctionReason},
		{l.Labels.Manufacturer, r.Manufacturer},
	} {
		lines := l.wrap(row[1], TextWidth-labelColumn)
		c.ensure(LineHeight)
		c.add(Op{Kind: OpText, X: Margin, Y: c.y, Size: BodySize, Text: row[0]})
		for _, s := range lines {
			c.ensure(LineHeight)
			c.add(Op{Kind: OpText, X: Margin + labelColumn, Y: c.y, Size: BodySize, Text: s})
			c.y += LineHeight
		}
		c.add(Op{Kind: OpRule, X: Margin, Y: c.y - LineHeight/2, W: TextWidth})
	}

	// photo sections
	c.y += sectionGap
	for _, b := range sectionOrder {
		c.ensure(sectionLabel + LineHeight)
		c.add(Op{Kind: OpText, X: Margin, Y: c.y, Size: BodySize, Text: l.Labels.section(b)})
		c.y += sectionLabel

		list := tiles[b]
		if len(list) == 0 {
			c.add(Op{Kind: OpText, X: Margin, Y: c.y, Size: BodySize, Text: l.Labels.NoPhotos})
			c.y += LineHeight + TileGap
			continue
		}

		x := Margin
		top := c.y - LineHeight/2
		for _, t := range list {
			if x+TileSize > PageWidth-Margin {
				x = Margin
				top += TileSize + TileGap
			}
			if top+TileSize > contentBottom {
				c.newPage()
				top = c.y
			}
			w, h := fit(t.Width, t.Height)
			c.add(Op{
				Kind:  OpImage,
				X:     x + (TileSize-w)/2,
				Y:     top + (TileSize-h)/2,
				W:     w,
				H:     h,
				Image: t.Name,
			})
			x += TileSize + TileGap
		}
		c.y = top + TileSize + TileGap + LineHeight/2
	}

	// footer on the last page
	c.add(Op{Kind: OpRule, X: Margin, Y: PageHeight - 20, W: TextWidth})
	c.add(Op{Kind: OpText, X: Margin, Y: PageHeight - 12, Size: BodySize - 2, Text: l.Labels.Footer})

	return c.pages
}

// fit scales an image into a square tile keeping its aspect ratio
func fit(width, height int) (float64, float64) {
	if width <= 0 || height <= 0 {
		return TileSize, TileSize
	}
	if width >= height {
		return TileSize, TileSize * float64(height) / float64(width)
	}
	return TileSize * float64(width) / float64(height), TileSize
}

func (l Layout) formatDate(s string) string {
	t, err := schema.ParseReportDate(s)
	if err != nil {
		return s
	}
	loc := l.Location
	if loc == nil {
		loc = time.UTC
	}
	return t.In(loc).Format("2006-01-02 15:04")
}

// wrap breaks a text into lines no wider than width. Explicit line breaks are
// kept, words longer than a line are split.
func (l Layout) wrap(text string, width float64) []string {
	var lines []string
	for _, paragraph := range strings.Split(text, "\n") {
		current := ""
		for _, word := range strings.Fields(paragraph) {
			candidate := word
			if current != "" {
				candidate = current + " " + word
			}
			if l.Measure.Width(candidate, BodySize) <= width {
				current = candidate
				continue
			}
			if current != "" {
				lines = append(lines, current)
			}
			current = ""
			for _, part := range l.breakWord(word, width) {
				if current != "" {
					lines = append(lines, current)
				}
				current = part
			}
		}
		lines = append(lines, current)
	}
	return lines
}

func (l Layout) breakWord(word string, width float64) []string {
	var parts []string
	current := ""
	for _, r := range word {
		candidate := current + string(r)
		if current != "" && l.Measure.Width(candidate, BodySize) > width {
			parts = append(parts, current)
			candidate = string(r)
		}
		current = candidate
	}
	return append(parts, current)
}
