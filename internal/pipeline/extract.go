package pipeline

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/jhillyerd/enmime"
	pdf "github.com/ledongthuc/pdf"
	"github.com/xuri/excelize/v2"

	"repricer/internal"
)

// LinesFromDocument extracts candidate text lines from a document of a
// known kind.
func LinesFromDocument(kind internal.DocumentKind, content []byte) ([]string, error) {
	switch kind {
	case internal.KindPDF:
		return LinesFromPDF(content)
	case internal.KindXLSX:
		return LinesFromXLSX(content)
	case internal.KindHTML:
		return LinesFromHTML(content)
	case internal.KindText:
		return LinesFromText(content), nil
	default:
		return nil, fmt.Errorf("unsupported document kind: %s", kind)
	}
}

func LinesFromText(content []byte) []string {
	return splitLines(string(content))
}

func LinesFromPDF(content []byte) ([]string, error) {
	r, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}

	out := []string{}
	for i := 1; i <= r.NumPage(); i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}
		text, err := p.GetPlainText(nil)
		if err != nil {
			continue
		}
		out = append(out, splitLines(text)...)
	}
	return out, nil
}

// LinesFromXLSX turns every row of every sheet into one line, cells
// joined with single spaces.
func LinesFromXLSX(content []byte) ([]string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	out := []string{}
	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil {
			continue
		}
		for _, row := range rows {
			line := normalizeSpaces(strings.Join(row, " "))
			if line != "" {
				out = append(out, line)
			}
		}
	}
	return out, nil
}

// LinesFromHTML flattens table rows into lines, one row per line.
// Documents without tables fall back to the rendered text.
func LinesFromHTML(content []byte) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	out := []string{}
	doc.Find("table").Each(func(_ int, table *goquery.Selection) {
		table.Find("tr").Each(func(_ int, row *goquery.Selection) {
			cells := []string{}
			row.Find("th,td").Each(func(_ int, cell *goquery.Selection) {
				cells = append(cells, normalizeSpaces(cell.Text()))
			})
			line := strings.TrimSpace(strings.Join(cells, " "))
			if line != "" {
				out = append(out, line)
			}
		})
	})
	if len(out) == 0 {
		out = splitLines(doc.Text())
	}
	return out, nil
}

// EmailContent is everything a price-list run needs from one message.
type EmailContent struct {
	Subject     string
	Lines       []string
	BodyText    string
	Attachments []string
}

// LinesFromEmailRaw pulls candidate lines from an RFC 822 message: the
// text body, tables in the HTML body, and every supported attachment.
// An attachment that fails to parse is skipped rather than failing the
// whole message, and duplicate lines from multipart/alternative bodies
// are collapsed.
func LinesFromEmailRaw(raw []byte) (EmailContent, error) {
	env, err := enmime.ReadEnvelope(bytes.NewReader(raw))
	if err != nil {
		return EmailContent{}, fmt.Errorf("read envelope: %w", err)
	}

	content := EmailContent{
		Subject:  env.GetHeader("Subject"),
		BodyText: env.Text,
	}

	if env.Text != "" {
		content.Lines = append(content.Lines, splitLines(env.Text)...)
	}
	if env.HTML != "" {
		htmlLines, err := LinesFromHTML([]byte(env.HTML))
		if err == nil {
			content.Lines = append(content.Lines, htmlLines...)
		}
	}

	for _, att := range env.Attachments {
		filename := strings.TrimSpace(att.FileName)
		if filename == "" {
			filename = "attachment"
		}
		content.Attachments = append(content.Attachments, filename)

		kind, ok := internal.KindForFilename(filename)
		if !ok || kind == internal.KindEmail {
			continue
		}
		extra, err := LinesFromDocument(kind, att.Content)
		if err != nil {
			continue
		}
		content.Lines = append(content.Lines, extra...)
	}

	content.Lines = dedupeLines(content.Lines)
	return content, nil
}

func splitLines(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	parts := strings.Split(text, "\n")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func normalizeSpaces(input string) string {
	return strings.TrimSpace(regexp.MustCompile(`\s+`).ReplaceAllString(input, " "))
}

func dedupeLines(lines []string) []string {
	seen := map[string]struct{}{}
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		if _, exists := seen[line]; exists {
			continue
		}
		seen[line] = struct{}{}
		out = append(out, line)
	}
	return out
}
