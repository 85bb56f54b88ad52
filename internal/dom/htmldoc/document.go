// Package htmldoc implements dom.Document over a parsed HTML snapshot of the
// host page. Writes go straight into the goquery tree and are reported to the
// observer as attribute mutations, the way a browser would report them.
package htmldoc

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/fortuna/headshot/internal/dom"
)

// Document is a mutable HTML snapshot.
type Document struct {
	mu  sync.Mutex
	doc *goquery.Document

	writes   int
	handlers map[*html.Node]func()
	reverts  map[*html.Node]string

	observing bool
	pending   [][]dom.Mutation
	notify    chan struct{}
}

// Parse reads an HTML page.
func Parse(r io.Reader) (*Document, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}
	return &Document{
		doc:      doc,
		handlers: make(map[*html.Node]func()),
		reverts:  make(map[*html.Node]string),
		notify:   make(chan struct{}, 1),
	}, nil
}

// ParseString is Parse for an in-memory page.
func ParseString(page string) (*Document, error) {
	return Parse(strings.NewReader(page))
}

// Slots returns one slot per pitch element in document order.
func (d *Document) Slots(ctx context.Context) ([]dom.Slot, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	var slots []dom.Slot
	d.doc.Find(dom.PitchElementSelector).Each(func(i int, s *goquery.Selection) {
		slots = append(slots, &slot{doc: d, node: s.Get(0)})
	})
	return slots, nil
}

// Writes counts attribute writes performed through dom.Image.Apply.
func (d *Document) Writes() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.writes
}

// Render writes the current tree as HTML.
func (d *Document) Render(w io.Writer) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, n := range d.doc.Nodes {
		if err := html.Render(w, n); err != nil {
			return fmt.Errorf("render: %w", err)
		}
	}
	return nil
}

// Find runs fn against the selection matching selector while holding the
// document lock. Meant for assertions; use the mutation helpers to change the tree.
func (d *Document) Find(selector string, fn func(*goquery.Selection)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	fn(d.doc.Find(selector))
}

// FailLoad simulates a paint-time load error for every image whose src is src:
// the srcset recorded before the patch is restored and the OnError handler of
// the latest write runs.
// It returns the number of images affected.
func (d *Document) FailLoad(src string) int {
	d.mu.Lock()
	var fire []func()
	affected := 0
	d.doc.Find("img").Each(func(i int, s *goquery.Selection) {
		n := s.Get(0)
		if attr(n, "src") != src {
			return
		}
		prev, patched := d.reverts[n]
		if !patched {
			return
		}
		affected++
		setAttr(n, "srcset", prev)
		d.queue(dom.Mutation{Kind: dom.Attributes, Target: node{n}, Attribute: "srcset"})
		if fn := d.handlers[n]; fn != nil {
			fire = append(fire, fn)
		}
		delete(d.reverts, n)
		delete(d.handlers, n)
	})
	d.mu.Unlock()

	for _, fn := range fire {
		fn()
	}
	return affected
}

// slot is a pitch element node.
type slot struct {
	doc  *Document
	node *html.Node
}

func (s *slot) sel() *goquery.Selection {
	return goquery.NewDocumentFromNode(s.node).Selection
}

func (s *slot) Name() (string, bool) {
	s.doc.mu.Lock()
	defer s.doc.mu.Unlock()
	name := s.sel().Find(dom.ElementNameSelector).First()
	if name.Length() == 0 {
		return "", false
	}
	return strings.TrimSpace(name.Text()), true
}

func (s *slot) Team() (string, bool) {
	s.doc.mu.Lock()
	defer s.doc.mu.Unlock()
	shirt := s.sel().Find(dom.ShirtSelector).First()
	if shirt.Length() == 0 {
		return "", false
	}
	alt, ok := shirt.Attr("alt")
	return strings.TrimSpace(alt), ok
}

func (s *slot) Image() (dom.Image, bool) {
	s.doc.mu.Lock()
	defer s.doc.mu.Unlock()
	shirt := s.sel().Find(dom.ShirtSelector).First()
	if shirt.Length() == 0 {
		return nil, false
	}
	return &image{doc: s.doc, node: shirt.Get(0)}, true
}

func (s *slot) Connected(ctx context.Context) bool {
	s.doc.mu.Lock()
	defer s.doc.mu.Unlock()
	return s.doc.attached(s.node)
}

// attached reports whether n still hangs off one of the document roots.
// Caller holds d.mu.
func (d *Document) attached(n *html.Node) bool {
	for ; n != nil; n = n.Parent {
		if n.Type == html.DocumentNode {
			for _, root := range d.doc.Nodes {
				if root == n {
					return true
				}
			}
			return false
		}
	}
	return false
}

// image is the shirt img node.
type image struct {
	doc  *Document
	node *html.Node
}

func (im *image) Src() string {
	im.doc.mu.Lock()
	defer im.doc.mu.Unlock()
	return attr(im.node, "src")
}

func (im *image) Srcset() string {
	im.doc.mu.Lock()
	defer im.doc.mu.Unlock()
	return attr(im.node, "srcset")
}

func (im *image) Apply(ctx context.Context, p dom.Patch) (bool, error) {
	im.doc.mu.Lock()
	defer im.doc.mu.Unlock()

	if !im.doc.attached(im.node) {
		return false, dom.ErrDetached
	}
	if p.Matches(attr(im.node, "src"), attr(im.node, "srcset")) {
		return false, nil
	}

	setAttr(im.node, "src", p.Src)
	setAttr(im.node, "srcset", p.Srcset)
	setAttr(im.node, "sizes", p.Sizes)
	setAttr(im.node, "style", p.Style)
	im.doc.reverts[im.node] = p.RevertSrcset
	delete(im.doc.handlers, im.node)
	im.doc.writes++

	// Only style is in the observed attribute filter.
	im.doc.queue(dom.Mutation{Kind: dom.Attributes, Target: node{im.node}, Attribute: "style"})
	return true, nil
}

// OnError replaces the handler of the image; a new write drops the old one.
func (im *image) OnError(fn func()) {
	im.doc.mu.Lock()
	defer im.doc.mu.Unlock()
	im.doc.handlers[im.node] = fn
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func setAttr(n *html.Node, key, val string) {
	for i := range n.Attr {
		if n.Attr[i].Key == key {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
}
