package study

import (
	"fmt"
	"strings"
)

// ParseError reports malformed document content, either at load time or when
// coercing an attribute value (e.g. a tuple attribute with non-numeric parts).
type ParseError struct {
	File   string
	Detail string
	Err    error
}

func (e *ParseError) Error() string {
	if e.File != "" {
		return fmt.Sprintf("%s: %s", e.File, e.Detail)
	}
	return e.Detail
}

func (e *ParseError) Unwrap() error { return e.Err }

// FormatError reports a well-formed document whose root element is not the
// expected studymanager sentinel.
type FormatError struct {
	File    string
	RootTag string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("%s: not a studymanager file (root element %q)", e.File, e.RootTag)
}

// MissingAttributeError reports a required attribute absent from an element.
type MissingAttributeError struct {
	Tag  string
	Attr string
}

func (e *MissingAttributeError) Error() string {
	return fmt.Sprintf("element <%s>: attribute %q is mandatory", e.Tag, e.Attr)
}

// MissingNodeError reports a required singleton child element that is absent.
type MissingNodeError struct {
	Parent string
	Tag    string
	Label  string
}

func (e *MissingNodeError) Error() string {
	if e.Label != "" {
		return fmt.Sprintf("element <%s>: no child <%s> with label %q found", e.Parent, e.Tag, e.Label)
	}
	return fmt.Sprintf("element <%s>: no child <%s> found", e.Parent, e.Tag)
}

// DuplicateError reports a required-unique child or label appearing more
// than once.
type DuplicateError struct {
	Parent string
	Tag    string
	Label  string
}

func (e *DuplicateError) Error() string {
	if e.Label != "" {
		return fmt.Sprintf("element <%s>: several <%s> entries with label %q", e.Parent, e.Tag, e.Label)
	}
	return fmt.Sprintf("element <%s>: several <%s> children found", e.Parent, e.Tag)
}

// Deprecation is a non-fatal diagnostic for retired case-level attributes
// (compute, post, compare). Collected by the parser, never returned as an
// error.
type Deprecation struct {
	Study string
	Case  string
	Attrs []string
}

func (d Deprecation) String() string {
	return fmt.Sprintf("study %q case %q: deprecated attributes %s",
		d.Study, d.Case, strings.Join(d.Attrs, ", "))
}
