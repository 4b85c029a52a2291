// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines shared data structures for the arxiv-digest pipeline.
package types

import "time"

// Paper holds the metadata record for a single preprint.
// Per prd001-fetch R2.1: identifier, title, authors, abstract, category
// set, timestamps, and resource links.
type Paper struct {
	// ID is the canonical identifier with any version suffix stripped
	// (e.g. "2412.19001", not "2412.19001v2").
	ID string `json:"id" yaml:"id"`

	// Title is the paper title with feed whitespace collapsed.
	Title string `json:"title" yaml:"title"`

	// Authors lists the paper authors in source order.
	Authors []string `json:"authors" yaml:"authors"`

	// Abstract is the paper abstract.
	Abstract string `json:"abstract" yaml:"abstract"`

	// Categories lists every category the paper appears under, in the
	// order the source reports them. The first entry is the primary
	// category; any further entries are cross-listings.
	Categories []string `json:"categories" yaml:"categories"`

	// Published is the original submission timestamp.
	Published time.Time `json:"published" yaml:"published"`

	// Updated is the timestamp of the latest revision.
	Updated time.Time `json:"updated,omitempty" yaml:"updated,omitempty"`

	// PDFURL points at the PDF rendition. The pipeline stores the link
	// only; it never downloads the document.
	PDFURL string `json:"pdf_url,omitempty" yaml:"pdf_url,omitempty"`

	// Link points at the abstract page.
	Link string `json:"link,omitempty" yaml:"link,omitempty"`
}

// PrimaryCategory returns the first listed category, or "" when the
// record carries none.
func (p Paper) PrimaryCategory() string {
	if len(p.Categories) == 0 {
		return ""
	}
	return p.Categories[0]
}

// CrossListed reports whether the paper appears under more than one
// category.
func (p Paper) CrossListed() bool {
	return len(p.Categories) > 1
}

// SecondaryCategories returns the cross-listed categories, excluding the
// primary. The returned slice is a copy.
func (p Paper) SecondaryCategories() []string {
	if len(p.Categories) < 2 {
		return nil
	}
	out := make([]string, len(p.Categories)-1)
	copy(out, p.Categories[1:])
	return out
}
