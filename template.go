package formula

import "strings"

// Segment is one piece of a Template: either literal source text or a
// placeholder for the node's next child.
type Segment struct {
	// Text is the literal text of the segment. It is empty for placeholders.
	Text string
	// Child marks the segment as a placeholder.
	Child bool
}

// Template describes how to reconstruct a node's source text from the texts
// of its children. Placeholders appear in child order.
type Template []Segment

// Children returns the number of placeholders in the template.
func (t Template) Children() int {
	n := 0
	for _, s := range t {
		if s.Child {
			n++
		}
	}
	return n
}

// Fill substitutes texts for the template's placeholders in order. Panics if
// there are fewer texts than placeholders.
func (t Template) Fill(texts []string) string {
	var b strings.Builder
	t.fill(&b, texts)
	return b.String()
}

func (t Template) fill(b *strings.Builder, texts []string) {
	k := 0
	for _, s := range t {
		if s.Child {
			b.WriteString(texts[k])
			k++
			continue
		}
		b.WriteString(s.Text)
	}
}

// String formats the template with # for each placeholder. Literal text
// containing # is ambiguous in this form; use the segments directly when
// that matters.
func (t Template) String() string {
	var b strings.Builder
	for _, s := range t {
		if s.Child {
			b.WriteByte('#')
			continue
		}
		b.WriteString(s.Text)
	}
	return b.String()
}

// text appends literal text, merging with a preceding text segment.
func (t Template) text(s string) Template {
	if s == "" {
		return t
	}
	if k := len(t) - 1; k >= 0 && !t[k].Child {
		t[k].Text += s
		return t
	}
	return append(t, Segment{Text: s})
}

// child appends a placeholder.
func (t Template) child() Template {
	return append(t, Segment{Child: true})
}

// concat appends the segments of u, merging text at the seam.
func (t Template) concat(u Template) Template {
	for _, s := range u {
		if s.Child {
			t = t.child()
		} else {
			t = t.text(s.Text)
		}
	}
	return t
}

// prepend returns a template with text s before t.
func (t Template) prepend(s string) Template {
	return Template(nil).text(s).concat(t)
}
