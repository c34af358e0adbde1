package modal

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

const titleClass = "modal-title"

// promoteTitle parses a backend fragment, removes the first element with the
// modal-title class or id and returns its text alongside the remaining body.
func promoteTitle(fragment string) (string, template.HTML, error) {
	container := &html.Node{Type: html.ElementNode, Data: "div", DataAtom: atom.Div}
	nodes, err := html.ParseFragment(strings.NewReader(fragment), container)
	if err != nil {
		return "", "", fmt.Errorf("modal: parse fragment: %w", err)
	}
	for _, n := range nodes {
		container.AppendChild(n)
	}

	title := ""
	if n := findTitle(container); n != nil {
		title = strings.Join(strings.Fields(textContent(n)), " ")
		n.Parent.RemoveChild(n)
	}

	var buf bytes.Buffer
	for c := container.FirstChild; c != nil; c = c.NextSibling {
		if err := html.Render(&buf, c); err != nil {
			return "", "", fmt.Errorf("modal: render fragment: %w", err)
		}
	}
	return title, template.HTML(buf.String()), nil
}

func findTitle(n *html.Node) *html.Node {
	if n.Type == html.ElementNode && isTitle(n) {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findTitle(c); found != nil {
			return found
		}
	}
	return nil
}

func isTitle(n *html.Node) bool {
	for _, attr := range n.Attr {
		switch attr.Key {
		case "id":
			if attr.Val == titleClass {
				return true
			}
		case "class":
			for _, class := range strings.Fields(attr.Val) {
				if class == titleClass {
					return true
				}
			}
		}
	}
	return false
}

func textContent(n *html.Node) string {
	if n.Type == html.TextNode {
		return n.Data
	}
	var b strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		b.WriteString(textContent(c))
	}
	return b.String()
}
