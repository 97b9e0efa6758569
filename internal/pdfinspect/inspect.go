// Package pdfinspect extracts the first-page feature profile the
// classification pipeline runs on: page count, page geometry, text block
// origins, first-page text, and table/form signals. It is the only package
// that touches PDF internals; everything downstream consumes the profile.
package pdfinspect

import (
	"bytes"
	"fmt"

	"github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/lexohub/docclassify/internal/models"
)

// Inspector profiles the first page of PDF documents.
type Inspector struct {
	conf *model.Configuration
}

// NewInspector returns an inspector with relaxed validation, matching how
// the rest of the pipeline tolerates slightly malformed scans.
func NewInspector() *Inspector {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return &Inspector{conf: conf}
}

// Profile reads only the first page and returns the document's feature
// profile. Any failure returns an error; callers degrade to their
// conservative defaults rather than aborting classification.
func (i *Inspector) Profile(data []byte) (*models.PageProfile, error) {
	pageCount, err := api.PageCount(bytes.NewReader(data), i.conf)
	if err != nil {
		return nil, fmt.Errorf("failed to read page count: %w", err)
	}
	if pageCount == 0 {
		return nil, fmt.Errorf("document has zero pages")
	}

	dims, err := api.PageDims(bytes.NewReader(data), i.conf)
	if err != nil {
		return nil, fmt.Errorf("failed to read page dimensions: %w", err)
	}
	if len(dims) == 0 {
		return nil, fmt.Errorf("document reports no page dimensions")
	}

	hasForms, err := i.hasAcroForm(data)
	if err != nil {
		return nil, err
	}

	text, rows, err := firstPageRows(data)
	if err != nil {
		return nil, err
	}

	return &models.PageProfile{
		PageCount:    pageCount,
		PageWidth:    int(dims[0].Width),
		PageHeight:   int(dims[0].Height),
		BlockOrigins: blockOrigins(rows),
		Text:         text,
		HasTables:    detectTableLayout(rows),
		HasForms:     hasForms,
	}, nil
}

// hasAcroForm reports whether the document catalog declares an interactive
// form dictionary.
func (i *Inspector) hasAcroForm(data []byte) (bool, error) {
	ctx, err := api.ReadContext(bytes.NewReader(data), i.conf)
	if err != nil {
		return false, fmt.Errorf("failed to read document catalog: %w", err)
	}
	catalog, err := ctx.Catalog()
	if err != nil {
		return false, fmt.Errorf("failed to resolve document catalog: %w", err)
	}
	_, found := catalog.Find("AcroForm")
	return found, nil
}

// textRow is one horizontal band of text runs on the first page, in
// emission order.
type textRow struct {
	y    int
	xs   []int
	text []string
}

// firstPageRows extracts the positioned text runs of page 1 and groups
// consecutive runs sharing a baseline into rows.
func firstPageRows(data []byte) (text string, rows []textRow, err error) {
	// The content-stream parser panics on some malformed inputs; surface
	// those as ordinary extraction failures.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("text extraction panicked: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", nil, fmt.Errorf("failed to open document for text extraction: %w", err)
	}
	if reader.NumPage() == 0 {
		return "", nil, fmt.Errorf("document has zero pages")
	}
	page := reader.Page(1)
	if page.V.IsNull() {
		return "", nil, fmt.Errorf("first page is missing")
	}

	rows = groupRows(page.Content().Text)

	var b bytes.Buffer
	for _, row := range rows {
		for i, s := range row.text {
			if i > 0 {
				b.WriteByte(' ')
			}
			b.WriteString(s)
		}
		b.WriteByte('\n')
	}
	return b.String(), rows, nil
}

// groupRows buckets text runs by integer baseline, preserving emission
// order of both rows and runs within a row.
func groupRows(runs []pdf.Text) []textRow {
	var rows []textRow
	for _, r := range runs {
		if r.S == "" {
			continue
		}
		y := int(r.Y)
		if n := len(rows); n > 0 && rows[n-1].y == y {
			rows[n-1].xs = append(rows[n-1].xs, int(r.X))
			rows[n-1].text = append(rows[n-1].text, r.S)
			continue
		}
		rows = append(rows, textRow{y: y, xs: []int{int(r.X)}, text: []string{r.S}})
	}
	return rows
}

// blockOrigins returns the top-left integer coordinate of each row, in
// page order. The fingerprint consumes only the leading few.
func blockOrigins(rows []textRow) []models.BlockOrigin {
	origins := make([]models.BlockOrigin, 0, len(rows))
	for _, row := range rows {
		x := row.xs[0]
		for _, rx := range row.xs[1:] {
			if rx < x {
				x = rx
			}
		}
		origins = append(origins, models.BlockOrigin{X: x, Y: row.y})
	}
	return origins
}

// Table detection thresholds: a region reads as tabular when at least
// tableMinColumns x-positions repeat across tableMinRows multi-column rows.
const (
	tableMinRows    = 3
	tableMinColumns = 2
	columnQuantum   = 4
)

// detectTableLayout reports whether the rows exhibit column alignment:
// repeated x-positions across several rows that each hold multiple runs.
func detectTableLayout(rows []textRow) bool {
	columnHits := make(map[int]int)
	for _, row := range rows {
		if len(row.xs) < 2 {
			continue
		}
		seen := make(map[int]bool)
		for _, x := range row.xs {
			col := x / columnQuantum
			if !seen[col] {
				seen[col] = true
				columnHits[col]++
			}
		}
	}

	aligned := 0
	for _, hits := range columnHits {
		if hits >= tableMinRows {
			aligned++
		}
	}
	return aligned >= tableMinColumns
}
