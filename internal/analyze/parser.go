// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package analyze

import (
	"fmt"
	"strings"
)

// Section labels the model must emit, in block order. Per prd004-analysis
// R3.2 the parser keys on these exact headers.
const (
	labelTitle            = "Title"
	labelAuthors          = "Authors"
	labelKeyContributions = "Key Contributions"
	labelImportance       = "Importance"
	labelCitation         = "Citation"
	labelReasonChosen     = "Reason Chosen"
)

var sectionLabels = []string{
	labelTitle,
	labelAuthors,
	labelKeyContributions,
	labelImportance,
	labelCitation,
	labelReasonChosen,
}

// ParseError is a model reply that yielded no usable analysis blocks. Raw
// preserves the reply verbatim so a failed result never loses the text.
type ParseError struct {
	Raw    string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parsing analysis reply: %s", e.Reason)
}

// block is one per-paper analysis section of a model reply. Problem is
// non-empty when the block failed validation.
type block struct {
	Title            string
	Authors          string
	KeyContributions string
	Importance       string
	Citation         string
	ReasonChosen     string

	Problem string
}

func (b *block) valid() bool { return b.Problem == "" }

// parseReply splits a model reply into per-paper blocks. Blocks open on
// lines beginning with "Title:" (case-insensitive, markdown decoration
// tolerated); later labeled lines start sections and unlabeled lines extend
// the current section. A reply with no valid block at all is a *ParseError.
func parseReply(raw string) ([]block, error) {
	var blocks []block
	var sections map[string][]string
	current := ""

	flush := func() {
		if sections != nil {
			blocks = append(blocks, finalizeBlock(sections))
		}
		sections = nil
		current = ""
	}

	for _, line := range strings.Split(raw, "\n") {
		label, rest, ok := matchLabel(line)
		switch {
		case ok && label == labelTitle:
			flush()
			sections = map[string][]string{}
			current = label
			if rest != "" {
				sections[current] = append(sections[current], rest)
			}
		case ok:
			if sections == nil {
				continue // preamble before the first block
			}
			current = label
			if rest != "" {
				sections[current] = append(sections[current], rest)
			}
		default:
			if sections == nil || current == "" {
				continue
			}
			trimmed := strings.TrimSpace(line)
			if trimmed == "" || ruleLine(trimmed) {
				continue
			}
			sections[current] = append(sections[current], trimmed)
		}
	}
	flush()

	valid := 0
	for i := range blocks {
		if blocks[i].valid() {
			valid++
		}
	}
	if valid == 0 {
		reason := "no Title: blocks found"
		if len(blocks) > 0 {
			reason = fmt.Sprintf("all %d blocks invalid: %s", len(blocks), blocks[0].Problem)
		}
		return nil, &ParseError{Raw: raw, Reason: reason}
	}
	return blocks, nil
}

// matchLabel reports the section label opening the line, if any, and the
// text after the colon. Markdown heading and bold decoration around the
// label is tolerated.
func matchLabel(line string) (label, rest string, ok bool) {
	s := strings.TrimSpace(line)
	s = strings.TrimLeft(s, "#* \t")
	for _, l := range sectionLabels {
		if len(s) <= len(l) || !strings.EqualFold(s[:len(l)], l) {
			continue
		}
		after := strings.TrimLeft(s[len(l):], " \t")
		after, found := strings.CutPrefix(after, ":")
		if !found {
			continue
		}
		return l, cleanValue(after), true
	}
	return "", "", false
}

// cleanValue strips surrounding whitespace and stray bold markers from a
// label line's remainder.
func cleanValue(v string) string {
	v = strings.TrimSpace(v)
	v = strings.TrimPrefix(v, "**")
	v = strings.TrimSuffix(v, "**")
	return strings.TrimSpace(v)
}

// ruleLine reports whether a line is a horizontal rule or separator rather
// than content.
func ruleLine(s string) bool {
	if len(s) < 3 {
		return false
	}
	for _, r := range s {
		switch r {
		case '-', '=', '_':
		default:
			return false
		}
	}
	return true
}

// finalizeBlock joins accumulated section lines and validates the block.
func finalizeBlock(sections map[string][]string) block {
	get := func(label string) string {
		v := strings.TrimSpace(strings.Join(sections[label], "\n"))
		// A section that only echoes the template's angle-bracket hint
		// carries no content.
		if strings.HasPrefix(v, "<") && strings.HasSuffix(v, ">") {
			return ""
		}
		return v
	}

	b := block{
		Title:            get(labelTitle),
		Authors:          get(labelAuthors),
		KeyContributions: get(labelKeyContributions),
		Importance:       get(labelImportance),
		Citation:         get(labelCitation),
		ReasonChosen:     get(labelReasonChosen),
	}

	if placeholderTitle(b.Title) {
		b.Problem = "placeholder or missing title"
		return b
	}
	for _, req := range []struct {
		label string
		value string
	}{
		{labelAuthors, b.Authors},
		{labelKeyContributions, b.KeyContributions},
		{labelImportance, b.Importance},
		{labelCitation, b.Citation},
		{labelReasonChosen, b.ReasonChosen},
	} {
		if req.value == "" {
			b.Problem = fmt.Sprintf("missing %s section", req.label)
			return b
		}
	}
	return b
}

// placeholderTitle reports whether a title is a stand-in the model emits
// when it has nothing real to say.
func placeholderTitle(t string) bool {
	switch strings.ToLower(strings.Trim(t, "[]<> .")) {
	case "", "unknown title", "paper title", "untitled", "n/a", "none":
		return true
	}
	return false
}
