// Package htmlextract provides structural parsing primitives over already
// fetched HTML: table finders keyed by header text rather than column
// offsets, anchored section lookup, and the devsite panel/selector
// conventions the documentation-site provider extractors rely on. These
// primitives consume a parsed tree; they never perform network I/O.
package htmlextract

import (
	"io"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Parse builds a goquery document from raw HTML bytes.
func Parse(r io.Reader) (*goquery.Document, error) {
	return goquery.NewDocumentFromReader(r)
}

// Table is a table located by header predicate, with column indices
// resolved by header name rather than fixed offset.
type Table struct {
	Selection *goquery.Selection
	Headers   []string
	colIndex  map[string]int
}

// Column returns the cell text at row for the named header (case
// insensitive), or "" with ok=false if the header was not found.
func (t *Table) Column(row *goquery.Selection, header string) (string, bool) {
	idx, ok := t.colIndex[strings.ToLower(strings.TrimSpace(header))]
	if !ok {
		return "", false
	}
	cells := row.Find("td")
	if idx >= cells.Length() {
		return "", false
	}
	return strings.TrimSpace(cells.Eq(idx).Text()), true
}

// Rows returns each <tr> in the table body, excluding the header row.
func (t *Table) Rows() *goquery.Selection {
	return t.Selection.Find("tbody tr").FilterFunction(func(_ int, s *goquery.Selection) bool {
		return s.Find("td").Length() > 0
	})
}

// FindTables yields every <table> in scope whose header row satisfies
// headerMatch. Header text is matched case-insensitively; column order is
// never assumed, only discovered.
func FindTables(scope *goquery.Selection, headerMatch func(headers []string) bool) []*Table {
	var found []*Table
	scope.Find("table").Each(func(_ int, table *goquery.Selection) {
		headers := headerCells(table)
		if len(headers) == 0 || !headerMatch(headers) {
			return
		}
		found = append(found, &Table{
			Selection: table,
			Headers:   headers,
			colIndex:  indexHeaders(headers),
		})
	})
	return found
}

func headerCells(table *goquery.Selection) []string {
	headRow := table.Find("thead tr").First()
	if headRow.Length() == 0 {
		headRow = table.Find("tr").First()
	}
	var headers []string
	headRow.Find("th").Each(func(_ int, cell *goquery.Selection) {
		headers = append(headers, strings.TrimSpace(cell.Text()))
	})
	return headers
}

func indexHeaders(headers []string) map[string]int {
	idx := make(map[string]int, len(headers))
	for i, h := range headers {
		idx[strings.ToLower(strings.TrimSpace(h))] = i
	}
	return idx
}

// HeaderContainsAll builds a header predicate matching when every one of
// want is a substring of the space-joined header cells, case-insensitively.
func HeaderContainsAll(want ...string) func([]string) bool {
	return func(headers []string) bool {
		joined := strings.ToLower(strings.Join(headers, " "))
		for _, w := range want {
			if !strings.Contains(joined, strings.ToLower(w)) {
				return false
			}
		}
		return true
	}
}

// FindSection locates a subtree by id attribute first, falling back to the
// first heading (h1-h4) whose text satisfies headingMatch. Subsequent
// searches should be scoped to the returned selection. ok is false when
// neither strategy finds anything; that is not an error, only a miss.
func FindSection(doc *goquery.Selection, id string, headingMatch func(text string) bool) (section *goquery.Selection, ok bool) {
	if id != "" {
		if byID := doc.Find("#" + id); byID.Length() > 0 {
			return byID, true
		}
	}
	if headingMatch == nil {
		return nil, false
	}
	var match *goquery.Selection
	doc.Find("h1, h2, h3, h4").EachWithBreak(func(_ int, h *goquery.Selection) bool {
		if headingMatch(strings.TrimSpace(h.Text())) {
			match = sectionAfterHeading(h)
			return false
		}
		return true
	})
	if match == nil {
		return nil, false
	}
	return match, true
}

// sectionAfterHeading returns the heading's parent element (or the heading
// itself when it has no parent) for further Find() scoping. The scope is the
// whole parent, so it also covers content before the heading and any later
// headings that share that parent.
func sectionAfterHeading(h *goquery.Selection) *goquery.Selection {
	parent := h.Parent()
	if parent.Length() == 0 {
		return h
	}
	return parent
}

var inputOutputLabel = regexp.MustCompile(`(?is)input[s]?\s*[:\n]?\s*(.*?)\s*output[s]?\s*[:\n]?\s*(.*)`)

// ParseSupportedDataTypes finds the first cell or paragraph under scope
// whose text contains both "input" and "output" tokens and splits it into
// two ordered token lists on the documented label forms ("Inputs\n…",
// "Output: …", etc). ok is false when no such block exists.
func ParseSupportedDataTypes(scope *goquery.Selection) (inputs, outputs []string, ok bool) {
	var raw string
	scope.Find("td, p, div").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		text := s.Text()
		lower := strings.ToLower(text)
		if strings.Contains(lower, "input") && strings.Contains(lower, "output") {
			raw = text
			return false
		}
		return true
	})
	if raw == "" {
		return nil, nil, false
	}
	m := inputOutputLabel.FindStringSubmatch(raw)
	if m == nil {
		return nil, nil, false
	}
	return splitTokens(m[1]), splitTokens(m[2]), true
}

func splitTokens(s string) []string {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == '\n' || r == '|'
	})
	var out []string
	for _, f := range fields {
		f = strings.TrimSpace(f)
		if f != "" {
			out = append(out, f)
		}
	}
	return out
}

// Panel is a single devsite-expandable or devsite-selector entry, keyed by
// its normalized id.
type Panel struct {
	RawID string
	ID    string
	Node  *goquery.Selection
}

var versionSuffix = regexp.MustCompile(`(?i)(-latest|-preview|-[0-9]{1,3})$`)

// NormalizeID strips trailing versioning qualifiers — "-latest", "-preview",
// or a 1-3 digit numeric suffix — repeatedly until no further match, so
// "gemini-1-5-pro-002" and "gemini-1-5-pro-latest" both normalize to
// "gemini-1-5-pro".
func NormalizeID(id string) string {
	for {
		stripped := versionSuffix.ReplaceAllString(id, "")
		if stripped == id {
			return id
		}
		id = stripped
	}
}

// FindPanels discovers devsite-expandable[id^=prefix] and
// devsite-selector[active^=prefix] elements and returns one Panel per
// match with its id normalized via NormalizeID.
func FindPanels(doc *goquery.Selection, idPrefix string) []Panel {
	var panels []Panel
	doc.Find("devsite-expandable").Each(func(_ int, s *goquery.Selection) {
		id, exists := s.Attr("id")
		if !exists || !strings.HasPrefix(id, idPrefix) {
			return
		}
		panels = append(panels, Panel{RawID: id, ID: NormalizeID(id), Node: s})
	})
	doc.Find("devsite-selector").Each(func(_ int, s *goquery.Selection) {
		active, exists := s.Attr("active")
		if !exists || !strings.HasPrefix(active, idPrefix) {
			return
		}
		panels = append(panels, Panel{RawID: active, ID: NormalizeID(active), Node: s})
	})
	return panels
}
