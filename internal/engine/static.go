package engine

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/grantcarthew/benchreport/internal/report"
)

// ErrTextNotFound is returned by a static page whose markup lacks the
// marker. Nothing can change the document, so there is nothing to wait for.
var ErrTextNotFound = errors.New("text not present in document")

// Static reads report files as parsed HTML with no browser.
type Static struct {
	cfg Config
}

// NewStatic returns a Static backend.
func NewStatic(cfg Config) *Static {
	return &Static{cfg: cfg}
}

func (s *Static) NewPage(ctx context.Context, url string) (report.Page, error) {
	return &staticPage{cfg: s.cfg}, nil
}

func (s *Static) Close() error {
	return nil
}

type staticPage struct {
	cfg Config
	doc *goquery.Document
}

// filePath accepts a file:// URL or a bare path.
func filePath(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("parse %s: %w", raw, err)
	}
	switch u.Scheme {
	case "file":
		return u.Path, nil
	case "":
		return raw, nil
	default:
		return "", fmt.Errorf("static engine reads local files only, got %s", u.Scheme)
	}
}

func (p *staticPage) Navigate(ctx context.Context, rawURL string) error {
	path, err := filePath(rawURL)
	if err != nil {
		return err
	}

	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	doc, err := goquery.NewDocumentFromReader(f)
	if err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	p.doc = doc
	p.cfg.logf("static: parsed %s", path)
	return nil
}

func (p *staticPage) WaitForText(ctx context.Context, text string, timeout time.Duration) error {
	if p.doc == nil {
		return errors.New("page not loaded")
	}
	if !strings.Contains(innerText(p.doc.Find("body").Nodes), text) {
		return ErrTextNotFound
	}
	return nil
}

func (p *staticPage) QuerySelector(ctx context.Context, selector string) (report.Element, error) {
	if p.doc == nil {
		return nil, errors.New("page not loaded")
	}
	m, err := cascadia.Compile(selector)
	if err != nil {
		return nil, fmt.Errorf("invalid selector %q: %w", selector, err)
	}

	sel := p.doc.FindMatcher(m).First()
	if sel.Length() == 0 {
		return nil, report.ErrNoElement
	}
	return &staticElement{sel: sel}, nil
}

func (p *staticPage) Close() error {
	p.doc = nil
	return nil
}

type staticElement struct {
	sel *goquery.Selection
}

func (e *staticElement) Text(ctx context.Context) (string, error) {
	if e.sel == nil {
		return "", errors.New("element released")
	}
	return innerText(e.sel.Nodes), nil
}

func (e *staticElement) Release(ctx context.Context) error {
	e.sel = nil
	return nil
}

// hidden elements never render text.
var hidden = map[atom.Atom]bool{
	atom.Head:     true,
	atom.Script:   true,
	atom.Style:    true,
	atom.Noscript: true,
	atom.Template: true,
}

var block = map[atom.Atom]bool{
	atom.Address: true, atom.Article: true, atom.Aside: true, atom.Blockquote: true,
	atom.Dd: true, atom.Div: true, atom.Dl: true, atom.Dt: true,
	atom.Figcaption: true, atom.Figure: true, atom.Footer: true, atom.Form: true,
	atom.H1: true, atom.H2: true, atom.H3: true, atom.H4: true, atom.H5: true, atom.H6: true,
	atom.Header: true, atom.Hr: true, atom.Li: true, atom.Main: true, atom.Nav: true,
	atom.Ol: true, atom.P: true, atom.Pre: true, atom.Section: true, atom.Table: true,
	atom.Tr: true, atom.Ul: true,
}

// innerText approximates the browser's innerText for nodes. Hidden
// content is skipped and whitespace runs collapse to one space. Block
// elements and <br> break lines, table cells are separated by tabs and
// <pre> keeps its text as written. Lines are trimmed and blank lines dropped.
func innerText(nodes []*html.Node) string {
	w := &textWriter{}
	for _, n := range nodes {
		w.walk(n, false)
	}
	return normalizeText(w.b.String())
}

// Pending separators, strongest last.
const (
	sepNone = iota
	sepSpace
	sepTab
	sepLine
)

// textWriter defers separators until the next visible character, so
// trailing whitespace and stacked block boundaries emit nothing.
type textWriter struct {
	b   strings.Builder
	sep int
}

func (w *textWriter) separate(sep int) {
	if sep > w.sep {
		w.sep = sep
	}
}

func (w *textWriter) flush() {
	if w.b.Len() > 0 {
		switch w.sep {
		case sepSpace:
			w.b.WriteByte(' ')
		case sepTab:
			w.b.WriteByte('\t')
		case sepLine:
			w.b.WriteByte('\n')
		}
	}
	w.sep = sepNone
}

func (w *textWriter) text(s string, pre bool) {
	if pre {
		for i, line := range strings.Split(s, "\n") {
			if i > 0 {
				w.separate(sepLine)
			}
			if line != "" {
				w.flush()
				w.b.WriteString(line)
			}
		}
		return
	}
	for _, r := range s {
		if isHTMLSpace(r) {
			w.separate(sepSpace)
			continue
		}
		w.flush()
		w.b.WriteRune(r)
	}
}

func (w *textWriter) walk(n *html.Node, pre bool) {
	switch n.Type {
	case html.TextNode:
		w.text(n.Data, pre)
		return
	case html.ElementNode:
		if hidden[n.DataAtom] {
			return
		}
		switch n.DataAtom {
		case atom.Br:
			w.flush()
			w.b.WriteByte('\n')
			return
		case atom.Pre:
			pre = true
		case atom.Td, atom.Th:
			if previousCell(n) {
				w.separate(sepTab)
			}
		}
	case html.CommentNode:
		return
	}

	if block[n.DataAtom] {
		w.separate(sepLine)
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		w.walk(c, pre)
	}
	if block[n.DataAtom] {
		w.separate(sepLine)
	}
}

// isHTMLSpace matches the whitespace HTML collapses. Non-breaking spaces
// are kept.
func isHTMLSpace(r rune) bool {
	switch r {
	case ' ', '\t', '\n', '\r', '\f':
		return true
	}
	return false
}

// previousCell reports whether a td or th precedes n in its row.
func previousCell(n *html.Node) bool {
	for s := n.PrevSibling; s != nil; s = s.PrevSibling {
		if s.Type == html.ElementNode && (s.DataAtom == atom.Td || s.DataAtom == atom.Th) {
			return true
		}
	}
	return false
}

func normalizeText(s string) string {
	var lines []string
	for _, line := range strings.Split(s, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n")
}
