package htmldoc

import (
	"context"
	"errors"
	"slices"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/fortuna/headshot/internal/dom"
)

// ErrAlreadyObserving is returned when a second observer is installed.
var ErrAlreadyObserving = errors.New("htmldoc: observer already installed")

// Observe delivers the mutation batches produced by Apply, FailLoad and the
// mutation helpers below. Each call that changes the tree is one batch.
func (d *Document) Observe(ctx context.Context) (<-chan []dom.Mutation, error) {
	d.mu.Lock()
	if d.observing {
		d.mu.Unlock()
		return nil, ErrAlreadyObserving
	}
	d.observing = true
	d.mu.Unlock()

	out := make(chan []dom.Mutation)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case <-d.notify:
			}

			d.mu.Lock()
			batches := d.pending
			d.pending = nil
			d.mu.Unlock()

			for _, b := range batches {
				select {
				case out <- b:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

// queue records one batch. Caller holds d.mu.
func (d *Document) queue(ms ...dom.Mutation) {
	if !d.observing || len(ms) == 0 {
		return
	}
	d.pending = append(d.pending, ms)
	select {
	case d.notify <- struct{}{}:
	default:
	}
}

// AppendHTML parses fragment and appends it to every element matching
// selector, as a single childList batch.
func (d *Document) AppendHTML(selector, fragment string) int {
	d.mu.Lock()
	defer d.mu.Unlock()

	var batch []dom.Mutation
	d.doc.Find(selector).Each(func(i int, s *goquery.Selection) {
		parent := s.Get(0)
		before := childNodes(parent)
		s.AppendHtml(fragment)
		var added []dom.Node
		for _, c := range childNodes(parent) {
			if !slices.Contains(before, c) {
				added = append(added, node{c})
			}
		}
		batch = append(batch, dom.Mutation{Kind: dom.ChildList, Target: node{parent}, Added: added})
	})
	d.queue(batch...)
	return len(batch)
}

// Remove detaches every element matching selector, as a single childList batch.
func (d *Document) Remove(selector string) int {
	d.mu.Lock()
	defer d.mu.Unlock()

	var batch []dom.Mutation
	d.doc.Find(selector).Each(func(i int, s *goquery.Selection) {
		n := s.Get(0)
		parent := n.Parent
		if parent == nil {
			return
		}
		parent.RemoveChild(n)
		batch = append(batch, dom.Mutation{Kind: dom.ChildList, Target: node{parent}, Removed: []dom.Node{detached{node{n}}}})
	})
	d.queue(batch...)
	return len(batch)
}

// SetAttr writes an attribute on every element matching selector. Only class
// and style produce mutation records, matching the observer's filter.
func (d *Document) SetAttr(selector, key, val string) int {
	d.mu.Lock()
	defer d.mu.Unlock()

	var batch []dom.Mutation
	n := 0
	d.doc.Find(selector).Each(func(i int, s *goquery.Selection) {
		n++
		setAttr(s.Get(0), key, val)
		if slices.Contains(dom.ObservedAttributes, key) {
			batch = append(batch, dom.Mutation{Kind: dom.Attributes, Target: node{s.Get(0)}, Attribute: key})
		}
	})
	d.queue(batch...)
	return n
}

// SetText replaces the children of every element matching selector with one
// text node. Like textContent in a browser, this is a childList change on the
// element.
func (d *Document) SetText(selector, text string) int {
	d.mu.Lock()
	defer d.mu.Unlock()

	var batch []dom.Mutation
	d.doc.Find(selector).Each(func(i int, s *goquery.Selection) {
		el := s.Get(0)
		var removed []dom.Node
		for _, c := range childNodes(el) {
			removed = append(removed, detached{node{c}})
		}
		s.SetText(text)
		var added []dom.Node
		for _, c := range childNodes(el) {
			added = append(added, node{c})
		}
		batch = append(batch, dom.Mutation{Kind: dom.ChildList, Target: node{el}, Added: added, Removed: removed})
	})
	d.queue(batch...)
	return len(batch)
}

func childNodes(n *html.Node) []*html.Node {
	var out []*html.Node
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		out = append(out, c)
	}
	return out
}

// node adapts *html.Node to dom.Node.
type node struct{ n *html.Node }

func (nd node) IsOrContains(substr string) bool {
	if hasClass(nd.n, substr) {
		return true
	}
	for c := nd.n.FirstChild; c != nil; c = c.NextSibling {
		if (node{c}).IsOrContains(substr) {
			return true
		}
	}
	return false
}

func (nd node) Within(substr string) bool {
	for p := nd.n.Parent; p != nil; p = p.Parent {
		if hasClass(p, substr) {
			return true
		}
	}
	return false
}

// detached is a removed subtree root; it has no ancestors any more.
type detached struct{ node }

func (detached) Within(string) bool { return false }

func hasClass(n *html.Node, substr string) bool {
	return n.Type == html.ElementNode && strings.Contains(attr(n, "class"), substr)
}
