package study

import "github.com/beevik/etree"

// ExpectedTimeUnset marks a case record with no expected_time attribute.
const ExpectedTimeUnset = -1

// CaseRecord is the merged view of one enabled <case> element: own
// attributes, inherited study tags, and scalar child values.
type CaseRecord struct {
	Node  *etree.Element
	Label string
	RunID string

	// NProcs is empty when the attribute is absent.
	NProcs string

	// ExpectedTime is the parsed HH:MM value in total minutes, or
	// ExpectedTimeUnset when absent or malformed.
	ExpectedTime int

	// Depends is the args value of the <depends> child, empty when absent.
	Depends string

	// Tags is the union of case-level and study-level tags, case tags first.
	Tags []string

	// Notebook, Parametric and KwArgs accumulate the args attributes of the
	// matching flag-style children, space-joined in document order.
	Notebook   string
	Parametric string
	KwArgs     string

	// Fields holds the text of the remaining non-structural children, keyed
	// by tag name.
	Fields map[string]string
}

// CompareDirective is one <compare> child of a case.
type CompareDirective struct {
	Node      *etree.Element
	Enabled   bool
	Repo      string
	Dest      string
	Threshold string
	Args      string
}

// PreproDirective is one <prepro> child of a case.
type PreproDirective struct {
	Node    *etree.Element
	Enabled bool
	Label   string
	Args    string
}

// ScriptDirective is one <script> child of a case.
type ScriptDirective struct {
	Node    *etree.Element
	Enabled bool
	Label   string
	Args    string
	Repo    string
	Dest    string
}

// PostproDirective is one <postpro> child of a study.
type PostproDirective struct {
	Node    *etree.Element
	Enabled bool
	Label   string
	Args    string
}

// ResultDescriptor describes a result file node (<data> or similar); only
// data-tagged nodes carry plot children.
type ResultDescriptor struct {
	File  string
	Dest  string
	Repo  string
	Plots []*etree.Element
}

// InputDescriptor describes an <input> node.
type InputDescriptor struct {
	File string
	Dest string
	Repo string
	Tex  string
}

// ProbeDescriptor describes a <probes> node.
type ProbeDescriptor struct {
	File string
	Dest string
	Fig  string
}

// Measurement is one <measurement> child of a study with its resolved file
// path and plot children.
type Measurement struct {
	Node  *etree.Element
	Plots []*etree.Element
	Path  string
}

// CaseMetadata aggregates description and tags for one case label.
type CaseMetadata struct {
	Name     string
	Tags     []string
	VnVItems []string
}

// Metadata is the study-level aggregation of keywords, tags and per-case
// metadata.
type Metadata struct {
	Name      string
	Keywords  []string
	StudyTags []string
	CaseTags  []string
	Cases     []CaseMetadata
}
