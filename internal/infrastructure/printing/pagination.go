package printing

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"

	"github.com/medimaging/backend/internal/domain/report"
)

// PageBreak separates two consecutive pages of images. It is never emitted
// before the first page or after the last.
const PageBreak = `<div class="page-break"></div>`

const (
	// base image box at 100% scale, in CSS pixels
	baseImageWidth  = 500
	baseImageHeight = 400
	maxGridClass    = 4

	// full-bleed image height at 100% scale and its ceiling, in percent of
	// the page viewport; the ceiling keeps the image inside the printable box
	// left below the header
	singleImageBaseVH = 60
	singleImageMaxVH  = 85
)

// Page is one printed page worth of images.
type Page struct {
	// Number is 1-based
	Number int
	// Images on this page, in upload order
	Images []report.ImageAsset
	// FirstIndex is the 0-based index of Images[0] in the whole report
	FirstIndex int
	// Single is true for the full-bleed one-image-per-page layout
	Single bool
	// GridClass is the CSS class of the grid, empty when Single
	GridClass string
}

// Paginate splits images into consecutive runs of imagesPerPage. Only the
// last page may be short. imagesPerPage below 1 is treated as 1.
func Paginate(images []report.ImageAsset, imagesPerPage int) []Page {
	k := max(imagesPerPage, 1)
	pages := make([]Page, 0, (len(images)+k-1)/k)
	for start := 0; start < len(images); start += k {
		end := min(start+k, len(images))
		p := Page{
			Number:     len(pages) + 1,
			Images:     images[start:end],
			FirstIndex: start,
			Single:     k == 1,
		}
		if !p.Single {
			p.GridClass = GridClass(k)
		}
		pages = append(pages, p)
	}
	return pages
}

// GridClass returns images-grid-1 .. images-grid-4. Layouts with more than
// four images per page reuse the two-column grid-4 and wrap.
func GridClass(imagesPerPage int) string {
	return fmt.Sprintf("images-grid-%d", min(max(imagesPerPage, 1), maxGridClass))
}

// GridColumns is the number of columns the grid class lays out.
func GridColumns(imagesPerPage int) int {
	switch k := min(max(imagesPerPage, 1), maxGridClass); k {
	case 4:
		return 2
	default:
		return k
	}
}

type pageImage struct {
	Src     template.URL
	Alt     string
	Caption string
	Width   int
	Height  int
}

type pageView struct {
	Single    bool
	GridClass string
	// FillHeight is the full-bleed image height in vh
	FillHeight int
	Images     []pageImage
}

var pageTemplate = template.Must(template.New("page").Parse(
	`{{if .Single}}{{range .Images}}<div class="report-page single-image">` +
		`<img src="{{.Src}}" alt="{{.Alt}}" style="max-height: {{$.FillHeight}}vh">` +
		`<p class="image-caption">{{.Caption}}</p></div>{{end}}` +
		`{{else}}<div class="report-page images-grid {{.GridClass}}">{{range .Images}}` +
		`<div class="image-item"><img src="{{.Src}}" alt="{{.Alt}}" style="width: {{.Width}}px; height: {{.Height}}px">` +
		`<p class="image-caption">{{.Caption}}</p></div>{{end}}</div>{{end}}`))

// RenderImagesSection renders every page and joins them with PageBreak.
// scalePercent sizes grid images relative to the 500x400 base box and
// full-bleed images relative to 60vh, capped at 85vh.
func RenderImagesSection(pages []Page, scalePercent int) (template.HTML, error) {
	parts := make([]string, 0, len(pages))
	for _, p := range pages {
		var buf bytes.Buffer
		if err := pageTemplate.Execute(&buf, newPageView(p, scalePercent)); err != nil {
			return "", fmt.Errorf("render page %d: %w", p.Number, err)
		}
		parts = append(parts, buf.String())
	}
	// Fragments come out of html/template and are already escaped.
	return template.HTML(strings.Join(parts, PageBreak)), nil
}

func newPageView(p Page, scalePercent int) pageView {
	v := pageView{
		Single:     p.Single,
		GridClass:  p.GridClass,
		FillHeight: SingleImageHeight(scalePercent),
		Images:     make([]pageImage, len(p.Images)),
	}
	for i, img := range p.Images {
		n := p.FirstIndex + i + 1
		v.Images[i] = pageImage{
			Src:     imageSrc(img.DataURI()),
			Alt:     fmt.Sprintf("Medical Image %d", n),
			Caption: fmt.Sprintf("Image %d", n),
			Width:   baseImageWidth * scalePercent / 100,
			Height:  baseImageHeight * scalePercent / 100,
		}
	}
	return v
}

// SingleImageHeight returns the max-height, in vh, of a full-bleed image at
// the given scale.
func SingleImageHeight(scalePercent int) int {
	return min(singleImageBaseVH*max(scalePercent, 1)/100, singleImageMaxVH)
}

// imageSrc marks image data URIs as safe for src attributes. html/template
// would otherwise replace every data: URL. Anything else renders empty;
// report.NewImageAsset admits only image data URIs.
func imageSrc(uri string) template.URL {
	if !strings.HasPrefix(uri, "data:image/") {
		return ""
	}
	return template.URL(uri)
}
