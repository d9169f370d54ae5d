package parser

import (
	"bufio"
	"bytes"
	"errors"
	"io"
	"mime"
	"strings"

	"github.com/emersion/go-message"
	"github.com/emersion/go-message/textproto"
)

// Node is one entity of a parsed message. Body holds the raw,
// still transfer-encoded bytes.
type Node struct {
	Parent   int
	Header   message.Header
	Body     []byte
	Children []int
}

// ContentType returns the lowercased media type. A missing or unusable
// Content-Type counts as text/plain.
func (n *Node) ContentType() string {
	t, _ := mediaType(n.Header.Get("Content-Type"))
	return t
}

// TransferEncoding returns the lowercased Content-Transfer-Encoding.
func (n *Node) TransferEncoding() string {
	return strings.ToLower(strings.TrimSpace(n.Header.Get("Content-Transfer-Encoding")))
}

// ContentID returns the Content-ID without angle brackets.
func (n *Node) ContentID() string {
	return trimContentID(n.Header.Get("Content-ID"))
}

// Payload returns the body with its transfer encoding removed. Bytes that
// cannot be decoded are returned as they are.
func (n *Node) Payload() []byte {
	enc := n.TransferEncoding()
	switch enc {
	case "", "7bit", "8bit", "binary":
		return n.Body
	}

	var h textproto.Header
	h.Set("Content-Transfer-Encoding", enc)
	e, err := message.New(message.Header{Header: h}, bytes.NewReader(n.Body))
	if err != nil {
		return n.Body
	}
	out, err := io.ReadAll(e.Body)
	if err != nil {
		return n.Body
	}
	return out
}

// IsEncapsulatedBase64 reports a message/rfc822 entity carrying a base64
// transfer encoding, which cannot be walked as an embedded message.
func (n *Node) IsEncapsulatedBase64() bool {
	return n.ContentType() == "message/rfc822" && n.TransferEncoding() == "base64"
}

// Tree is the arena of a parsed message in document order. Nodes[0] is the
// top-level message.
type Tree struct {
	Nodes []Node
}

// Root returns the top-level message.
func (t *Tree) Root() *Node {
	return &t.Nodes[0]
}

// ContentID finds the node whose Content-ID equals cid.
func (t *Tree) ContentID(cid string) (int, bool) {
	cid = trimContentID(cid)
	if cid == "" {
		return 0, false
	}
	for i := range t.Nodes {
		if t.Nodes[i].ContentID() == cid {
			return i, true
		}
	}
	return 0, false
}

type pending struct {
	parent int
	header message.Header
	body   []byte
}

// buildTree reads the top-level header and walks the whole structure.
// Only an unreadable top-level header is an error; damaged nested entities
// are kept as leaves.
func buildTree(raw []byte) (*Tree, error) {
	root, body, err := readEntity(raw)
	if err != nil {
		return nil, err
	}

	tree := &Tree{}
	stack := []pending{{parent: -1, header: root, body: body}}
	for len(stack) > 0 {
		p := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		idx := len(tree.Nodes)
		tree.Nodes = append(tree.Nodes, Node{Parent: p.parent, Header: p.header, Body: p.body})
		if p.parent >= 0 {
			tree.Nodes[p.parent].Children = append(tree.Nodes[p.parent].Children, idx)
		}

		children := expand(&tree.Nodes[idx])
		for i := len(children) - 1; i >= 0; i-- {
			children[i].parent = idx
			stack = append(stack, children[i])
		}
	}
	return tree, nil
}

// expand returns the direct children of a container entity.
func expand(n *Node) []pending {
	ct, params := mediaType(n.Header.Get("Content-Type"))
	switch {
	case strings.HasPrefix(ct, "multipart/"):
		boundary := params["boundary"]
		if boundary == "" {
			return nil
		}
		return splitMultipart(n.Body, boundary)
	case ct == "message/rfc822":
		if n.TransferEncoding() == "base64" {
			return nil
		}
		h, body, err := readEntity(n.Payload())
		if err != nil {
			return nil
		}
		return []pending{{header: h, body: body}}
	}
	return nil
}

func splitMultipart(body []byte, boundary string) []pending {
	mr := textproto.NewMultipartReader(bytes.NewReader(body), boundary)
	var parts []pending
	for {
		p, err := mr.NextPart()
		if err != nil {
			break
		}
		b, err := io.ReadAll(p)
		parts = append(parts, pending{header: message.Header{Header: p.Header}, body: b})
		if err != nil {
			break
		}
	}
	return parts
}

func readEntity(raw []byte) (message.Header, []byte, error) {
	br := bufio.NewReader(bytes.NewReader(raw))
	h, err := textproto.ReadHeader(br)
	if err != nil && !errors.Is(err, io.EOF) {
		return message.Header{}, nil, err
	}
	body, err := io.ReadAll(br)
	if err != nil {
		return message.Header{}, nil, err
	}
	return message.Header{Header: h}, body, nil
}

// mediaType parses a Content-Type value, keeping the media type when only
// the parameters are damaged.
func mediaType(v string) (string, map[string]string) {
	t, params, err := mime.ParseMediaType(v)
	if err != nil && !errors.Is(err, mime.ErrInvalidMediaParameter) {
		return "text/plain", nil
	}
	if !strings.Contains(t, "/") {
		return "text/plain", nil
	}
	return strings.ToLower(t), params
}

func trimContentID(v string) string {
	v = strings.TrimSpace(v)
	v = strings.TrimPrefix(v, "<")
	v = strings.TrimSuffix(v, ">")
	return strings.TrimSpace(v)
}
