// Package extract pulls label/value pairs out of semi-structured HTML.
package extract

import (
	"html"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/bighogz/finscan/internal/models"
)

var (
	rowRe   = regexp.MustCompile(`(?is)<tr[^>]*>(.*?)</tr>`)
	cellRe  = regexp.MustCompile(`(?is)<t[dh][^>]*>(.*?)</t[dh]>`)
	tagRe   = regexp.MustCompile(`(?s)<[^>]*>`)
	spaceRe = regexp.MustCompile(`\s+`)
)

// Text collapses runs of whitespace, non-breaking spaces included, and trims
// the result.
func Text(s string) string {
	s = strings.ReplaceAll(s, "\u00a0", " ")
	return strings.TrimSpace(spaceRe.ReplaceAllString(s, " "))
}

// StripTags removes markup and entities from an HTML fragment.
func StripTags(fragment string) string {
	return Text(html.UnescapeString(tagRe.ReplaceAllString(fragment, " ")))
}

// TablePairs reads every row of sel with at least two cells as
// (label, value). A repeated label keeps the last value seen.
func TablePairs(sel *goquery.Selection) *models.Metrics {
	out := models.NewMetrics()
	sel.Find("tr").Each(func(_ int, row *goquery.Selection) {
		cells := row.ChildrenFiltered("td, th")
		if cells.Length() < 2 {
			return
		}
		label := Text(cells.Eq(0).Text())
		if label == "" {
			return
		}
		out.Set(label, Text(cells.Eq(1).Text()))
	})
	return out
}

// CellPairs walks each row's cells two at a time, label then value, for
// tables that pack several pairs into one row.
func CellPairs(sel *goquery.Selection) *models.Metrics {
	out := models.NewMetrics()
	sel.Find("tr").Each(func(_ int, row *goquery.Selection) {
		cells := row.ChildrenFiltered("td")
		for i := 0; i+1 < cells.Length(); i += 2 {
			label := Text(cells.Eq(i).Text())
			if label == "" {
				continue
			}
			out.Set(label, Text(cells.Eq(i+1).Text()))
		}
	})
	return out
}

// DocumentPairs merges TablePairs over every table in doc.
func DocumentPairs(doc *goquery.Document) *models.Metrics {
	out := models.NewMetrics()
	doc.Find("table").Each(func(_ int, table *goquery.Selection) {
		TablePairs(table).Each(func(k, v string) bool {
			out.Set(k, v)
			return true
		})
	})
	return out
}

// RegexPairs is the parser-free fallback: any <tr> with two or more cells
// contributes its first two cells.
func RegexPairs(page string) *models.Metrics {
	out := models.NewMetrics()
	for _, row := range rowRe.FindAllStringSubmatch(page, -1) {
		cells := cellRe.FindAllStringSubmatch(row[1], -1)
		if len(cells) < 2 {
			continue
		}
		label := StripTags(cells[0][1])
		if label == "" {
			continue
		}
		out.Set(label, StripTags(cells[1][1]))
	}
	return out
}

// Pairs parses page with goquery and falls back to RegexPairs when the
// document cannot be parsed or yields nothing.
func Pairs(page string) *models.Metrics {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page))
	if err == nil {
		if m := DocumentPairs(doc); m.Len() > 0 {
			return m
		}
	}
	return RegexPairs(page)
}

// ByLabelPattern tries each label in order against a
// <td>label</td><td>value</td> shape and returns the first value that also
// matches valuePattern. A pattern with a capture group yields group 1.
// A nil pattern accepts the cell text as is.
func ByLabelPattern(page string, labels []string, valuePattern *regexp.Regexp) (string, bool) {
	for _, label := range labels {
		re, err := regexp.Compile(`(?is)<td[^>]*>(?:\s|<[^>]+>)*` + regexp.QuoteMeta(label) +
			`(?:\s|<[^>]+>)*</td>\s*<td[^>]*>(.*?)</td>`)
		if err != nil {
			continue
		}
		m := re.FindStringSubmatch(page)
		if m == nil {
			continue
		}
		cell := StripTags(m[1])
		if valuePattern == nil {
			if cell != "" {
				return cell, true
			}
			continue
		}
		vm := valuePattern.FindStringSubmatch(cell)
		if vm == nil {
			continue
		}
		if len(vm) > 1 {
			return vm[1], true
		}
		return vm[0], true
	}
	return "", false
}
