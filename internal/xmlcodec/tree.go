// Package xmlcodec reads and writes the XML documents the books are kept
// in: a root element holding flat key/value settings and transaction
// records.
package xmlcodec

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
)

// Header is written in front of every document.
const Header = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` + "\n"

// Element is one node of a parsed document. Value holds the text of leaf
// elements; text between the children of a container is dropped.
type Element struct {
	Name     string
	Value    string
	Children []*Element
}

// Child returns the first child named name, or nil.
func (e *Element) Child(name string) *Element {
	for _, c := range e.Children {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// HasChild reports whether e has a child named name.
func (e *Element) HasChild(name string) bool {
	return e.Child(name) != nil
}

// Add appends a child and returns it.
func (e *Element) Add(name, value string) *Element {
	c := &Element{Name: name, Value: value}
	e.Children = append(e.Children, c)
	return c
}

type node struct {
	XMLName xml.Name
	Text    string `xml:",chardata"`
	Nodes   []node `xml:",any"`
}

func (n node) element() *Element {
	e := &Element{Name: n.XMLName.Local}
	if len(n.Nodes) == 0 {
		e.Value = n.Text
		return e
	}
	e.Children = make([]*Element, 0, len(n.Nodes))
	for _, c := range n.Nodes {
		e.Children = append(e.Children, c.element())
	}
	return e
}

func (e *Element) node() node {
	n := node{XMLName: xml.Name{Local: e.Name}}
	if len(e.Children) == 0 {
		n.Text = e.Value
		return n
	}
	n.Nodes = make([]node, 0, len(e.Children))
	for _, c := range e.Children {
		n.Nodes = append(n.Nodes, c.node())
	}
	return n
}

// ParseTree reads a document and returns its root element. Whitespace
// between elements is ignored.
func ParseTree(r io.Reader) (*Element, error) {
	var root node
	if err := xml.NewDecoder(r).Decode(&root); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("ParseTree: no root element")
		}
		return nil, fmt.Errorf("ParseTree: %w", err)
	}
	return root.element(), nil
}

// WriteTo writes the header followed by the tree indented by two spaces.
// Text is fully escaped.
func (e *Element) WriteTo(w io.Writer) (int64, error) {
	var buf bytes.Buffer
	buf.WriteString(Header)

	enc := xml.NewEncoder(&buf)
	enc.Indent("", "  ")
	if err := enc.Encode(e.node()); err != nil {
		return 0, fmt.Errorf("WriteTo: encode %s: %w", e.Name, err)
	}
	if err := enc.Close(); err != nil {
		return 0, fmt.Errorf("WriteTo: %w", err)
	}
	buf.WriteByte('\n')

	return buf.WriteTo(w)
}
