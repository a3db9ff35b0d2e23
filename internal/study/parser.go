// Package study reads studymanager XML configuration files and exposes
// typed queries over studies, cases and their post-processing directives.
package study

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/beevik/etree"

	"github.com/mbertin/studyrun/internal/xmlio"
)

// RootTag is the mandatory tag of the document root element.
const RootTag = "studymanager"

const statusOn = "on"

// Case children that carry their own structure rather than a scalar value.
var structuralCaseChildren = map[string]bool{
	"compare": true,
	"prepro":  true,
	"script":  true,
	"data":    true,
	"depends": true,
}

// Flag-style case children whose values come from an args attribute.
var setupFilterKeys = map[string]bool{
	"notebook":   true,
	"parametric": true,
	"kw_args":    true,
}

// Retired case-level attributes, reported as deprecation diagnostics.
var deprecatedCaseAttrs = []string{"compute", "post", "compare"}

// Parser holds a loaded studymanager document and answers queries over it.
// It is not safe for concurrent use; callers serialize access.
type Parser struct {
	filename string
	doc      *etree.Document
	root     *etree.Element

	repo    string
	repoSet bool
	dest    string
	destSet bool

	deprecations []Deprecation
	deprSeen     map[string]bool
}

// Load parses the studymanager file at path.
func Load(path string) (*Parser, error) {
	doc, err := xmlio.Load(path)
	if err != nil {
		return nil, &ParseError{File: path, Detail: err.Error(), Err: err}
	}
	return FromDocument(doc, path)
}

// Parse parses raw studymanager XML. filename is used in diagnostics only.
func Parse(content []byte, filename string) (*Parser, error) {
	doc, err := xmlio.Parse(content)
	if err != nil {
		return nil, &ParseError{File: filename, Detail: err.Error(), Err: err}
	}
	return FromDocument(doc, filename)
}

// FromDocument wraps an already-parsed document, validating its root tag.
func FromDocument(doc *etree.Document, filename string) (*Parser, error) {
	root := doc.Root()
	if root == nil || root.Tag != RootTag {
		tag := ""
		if root != nil {
			tag = root.Tag
		}
		return nil, &FormatError{File: filename, RootTag: tag}
	}
	return &Parser{filename: filename, doc: doc, root: root}, nil
}

// Filename returns the path the document was loaded from.
func (p *Parser) Filename() string { return p.filename }

// Document exposes the backing element tree.
func (p *Parser) Document() *etree.Document { return p.doc }

// Write serializes the in-memory tree back to its textual form.
func (p *Parser) Write() ([]byte, error) {
	return xmlio.Serialize(p.doc)
}

// Save writes the document to path atomically, keeping a .bak of any
// previous version.
func (p *Parser) Save(path string) error {
	return xmlio.AtomicWrite(path, p.doc)
}

// recordDeprecation collects a diagnostic once per (study, case) pair, so
// repeated queries over the same study do not multiply warnings.
func (p *Parser) recordDeprecation(d Deprecation) {
	key := d.Study + "\x00" + d.Case
	if p.deprSeen[key] {
		return
	}
	if p.deprSeen == nil {
		p.deprSeen = make(map[string]bool)
	}
	p.deprSeen[key] = true
	p.deprecations = append(p.deprecations, d)
}

// Deprecations returns the diagnostics collected so far.
func (p *Parser) Deprecations() []Deprecation {
	out := make([]Deprecation, len(p.deprecations))
	copy(out, p.deprecations)
	return out
}

// descendants returns all descendant elements with the given tag, in
// document order.
func descendants(el *etree.Element, tag string) []*etree.Element {
	var out []*etree.Element
	for _, c := range el.ChildElements() {
		if c.Tag == tag {
			out = append(out, c)
		}
		out = append(out, descendants(c, tag)...)
	}
	return out
}

// Attr returns the value of a mandatory attribute.
func Attr(node *etree.Element, key string) (string, error) {
	if a := node.SelectAttr(key); a != nil {
		return a.Value, nil
	}
	return "", &MissingAttributeError{Tag: node.Tag, Attr: key}
}

// AttrDefault returns the attribute value, or def when absent.
func AttrDefault(node *etree.Element, key, def string) string {
	return node.SelectAttrValue(key, def)
}

// AttrFloats parses a mandatory attribute of the form "(a,b,c)" into floats.
func AttrFloats(node *etree.Element, key string) ([]float64, error) {
	a := node.SelectAttr(key)
	if a == nil {
		return nil, &MissingAttributeError{Tag: node.Tag, Attr: key}
	}
	return parseFloatTuple(node.Tag, key, a.Value)
}

// AttrFloatsDefault is AttrFloats with a default for an absent attribute.
// Malformed numeric content is still an error.
func AttrFloatsDefault(node *etree.Element, key string, def []float64) ([]float64, error) {
	a := node.SelectAttr(key)
	if a == nil {
		return def, nil
	}
	return parseFloatTuple(node.Tag, key, a.Value)
}

func parseFloatTuple(tag, key, value string) ([]float64, error) {
	s := strings.TrimSpace(value)
	s = strings.TrimPrefix(s, "(")
	s = strings.TrimSuffix(s, ")")

	parts := strings.Split(s, ",")
	out := make([]float64, 0, len(parts))
	for _, part := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return nil, &ParseError{
				Detail: fmt.Sprintf("element <%s>: attribute %q: malformed tuple %q", tag, key, value),
				Err:    err,
			}
		}
		out = append(out, f)
	}
	return out, nil
}

// Attributes returns all attributes of a node as a map.
func Attributes(node *etree.Element) map[string]string {
	out := make(map[string]string, len(node.Attr))
	for _, a := range node.Attr {
		out[a.Key] = a.Value
	}
	return out
}

// splitList splits a comma-separated value into trimmed, non-empty tokens.
func splitList(s string) []string {
	var out []string
	for _, tok := range strings.Split(s, ",") {
		if tok = strings.TrimSpace(tok); tok != "" {
			out = append(out, tok)
		}
	}
	return out
}

// DataFromNode returns the text of a required singleton child element.
func (p *Parser) DataFromNode(father *etree.Element, tag string) (string, error) {
	l := descendants(father, tag)
	switch len(l) {
	case 1:
		return l[0].Text(), nil
	case 0:
		return "", &MissingNodeError{Parent: father.Tag, Tag: tag}
	default:
		return "", &DuplicateError{Parent: father.Tag, Tag: tag}
	}
}

// AddChild appends a new child element to father.
func (p *Parser) AddChild(father *etree.Element, tag string) *etree.Element {
	return father.CreateElement(tag)
}

// Child returns the unique child element with the given tag, nil when
// absent.
func (p *Parser) Child(father *etree.Element, tag string) (*etree.Element, error) {
	l := descendants(father, tag)
	switch len(l) {
	case 0:
		return nil, nil
	case 1:
		return l[0], nil
	default:
		return nil, &DuplicateError{Parent: father.Tag, Tag: tag}
	}
}

// Children returns all descendant elements with the given tag.
func (p *Parser) Children(father *etree.Element, tag string) []*etree.Element {
	return descendants(father, tag)
}

// Repository returns the studies repository directory, read from the
// <repository> element on first use unless overridden by SetRepository.
func (p *Parser) Repository() (string, error) {
	if !p.repoSet {
		v, err := p.DataFromNode(p.root, "repository")
		if err != nil {
			return "", err
		}
		p.repo = v
		p.repoSet = true
	}
	return p.repo, nil
}

// SetRepository overrides the repository directory, normalizing the path.
func (p *Parser) SetRepository(path string) {
	p.repo = normalizePath(path)
	p.repoSet = true
}

// Destination returns the studies destination directory, read from the
// <destination> element on first use unless overridden by SetDestination.
func (p *Parser) Destination() (string, error) {
	if !p.destSet {
		v, err := p.DataFromNode(p.root, "destination")
		if err != nil {
			return "", err
		}
		p.dest = v
		p.destSet = true
	}
	return p.dest, nil
}

// SetDestination overrides the destination directory, normalizing the path.
func (p *Parser) SetDestination(path string) {
	p.dest = normalizePath(path)
	p.destSet = true
}

func normalizePath(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			path = filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
	}
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return path
}

// StudyLabels returns the ordered labels of all enabled studies.
func (p *Parser) StudyLabels() ([]string, error) {
	var labels []string
	seen := make(map[string]bool)
	for _, node := range descendants(p.root, "study") {
		label, err := Attr(node, "label")
		if err != nil {
			return nil, err
		}
		status, err := Attr(node, "status")
		if err != nil {
			return nil, err
		}
		if status != statusOn {
			continue
		}
		if seen[label] {
			return nil, &DuplicateError{Parent: RootTag, Tag: "study", Label: label}
		}
		seen[label] = true
		labels = append(labels, label)
	}
	return labels, nil
}

// StudyNode returns the unique enabled study with the given label.
// Disabled same-label studies are ignored as long as an enabled one exists.
func (p *Parser) StudyNode(label string) (*etree.Element, error) {
	var found *etree.Element
	disabled := false
	for _, node := range descendants(p.root, "study") {
		l, err := Attr(node, "label")
		if err != nil {
			return nil, err
		}
		if l != label {
			continue
		}
		if node.SelectAttrValue("status", "") != statusOn {
			disabled = true
			continue
		}
		if found != nil {
			return nil, &DuplicateError{Parent: RootTag, Tag: "study", Label: label}
		}
		found = node
	}
	if found == nil {
		if disabled {
			return nil, fmt.Errorf("study %q is turned off", label)
		}
		return nil, &MissingNodeError{Parent: RootTag, Tag: "study", Label: label}
	}
	return found, nil
}

// StudyTags returns the trimmed tags of an enabled study. A missing tags
// attribute yields an empty list.
func (p *Parser) StudyTags(studyNode *etree.Element) ([]string, error) {
	if studyNode.SelectAttrValue("status", "") != statusOn {
		return nil, fmt.Errorf("study %q is turned off", studyNode.SelectAttrValue("label", ""))
	}
	return splitList(studyNode.SelectAttrValue("tags", "")), nil
}

// StudyKeywords collects the comma-separated keywords of all
// <study_keywords> children. Absence yields an empty list.
func (p *Parser) StudyKeywords(studyNode *etree.Element) []string {
	var keywords []string
	for _, node := range descendants(studyNode, "study_keywords") {
		keywords = append(keywords, splitList(node.Text())...)
	}
	return keywords
}

// CaseLabels returns the ordered labels of enabled cases under a study. When
// requiredAttr is non-empty, a case is included only when that attribute is
// also "on".
func (p *Parser) CaseLabels(label, requiredAttr string) ([]string, error) {
	studyNode, err := p.StudyNode(label)
	if err != nil {
		return nil, err
	}

	var labels []string
	for _, node := range descendants(studyNode, "case") {
		status, err := Attr(node, "status")
		if err != nil {
			return nil, err
		}
		if status != statusOn {
			continue
		}
		caseLabel, err := Attr(node, "label")
		if err != nil {
			return nil, err
		}
		if requiredAttr != "" && node.SelectAttrValue(requiredAttr, "") != statusOn {
			continue
		}
		labels = append(labels, caseLabel)
	}
	return labels, nil
}

// CaseRecords builds the merged record for every enabled case under the
// study. Retired case attributes are collected as deprecation diagnostics,
// retrievable via Deprecations.
func (p *Parser) CaseRecords(label string) ([]CaseRecord, error) {
	studyNode, err := p.StudyNode(label)
	if err != nil {
		return nil, err
	}
	studyTags, err := p.StudyTags(studyNode)
	if err != nil {
		return nil, err
	}

	var records []CaseRecord
	occurrences := make(map[string]int)
	for _, node := range descendants(studyNode, "case") {
		status, err := Attr(node, "status")
		if err != nil {
			return nil, err
		}
		if status != statusOn {
			continue
		}
		caseLabel, err := Attr(node, "label")
		if err != nil {
			return nil, err
		}

		var retired []string
		for _, attr := range deprecatedCaseAttrs {
			if node.SelectAttr(attr) != nil {
				retired = append(retired, attr)
			}
		}
		if len(retired) > 0 {
			p.recordDeprecation(Deprecation{Study: label, Case: caseLabel, Attrs: retired})
		}

		// Occurrence count disambiguates same-label cases without run_id.
		occurrences[caseLabel]++

		rec := CaseRecord{
			Node:         node,
			Label:        caseLabel,
			ExpectedTime: ExpectedTimeUnset,
			Fields:       make(map[string]string),
		}

		rec.RunID = node.SelectAttrValue("run_id", "")
		if rec.RunID == "" {
			rec.RunID = "run" + strconv.Itoa(occurrences[caseLabel])
		}

		rec.NProcs = node.SelectAttrValue("n_procs", "")
		rec.Tags = append(splitList(node.SelectAttrValue("tags", "")), studyTags...)

		if depends, err := p.Depends(node); err == nil {
			rec.Depends = depends
		}

		if v := node.SelectAttrValue("expected_time", ""); v != "" {
			if minutes, err := parseExpectedTime(v); err == nil {
				rec.ExpectedTime = minutes
			}
		}

		for _, child := range node.ChildElements() {
			if strings.TrimSpace(child.Text()) != "" {
				if !structuralCaseChildren[child.Tag] {
					rec.Fields[child.Tag] = child.Text()
				}
				continue
			}
			if !setupFilterKeys[child.Tag] {
				continue
			}
			args := child.SelectAttrValue("args", "")
			switch child.Tag {
			case "notebook":
				rec.Notebook = appendArgs(rec.Notebook, args)
			case "parametric":
				rec.Parametric = appendArgs(rec.Parametric, args)
			case "kw_args":
				rec.KwArgs = appendArgs(rec.KwArgs, args)
			}
		}

		records = append(records, rec)
	}
	return records, nil
}

func appendArgs(current, args string) string {
	if current == "" {
		return args
	}
	return current + " " + args
}

// parseExpectedTime converts an HH:MM value into total minutes.
func parseExpectedTime(v string) (int, error) {
	hh, mm, ok := strings.Cut(v, ":")
	if !ok {
		return 0, fmt.Errorf("expected_time %q: want HH:MM", v)
	}
	h, err := strconv.Atoi(strings.TrimSpace(hh))
	if err != nil {
		return 0, fmt.Errorf("expected_time %q: %w", v, err)
	}
	m, err := strconv.Atoi(strings.TrimSpace(mm))
	if err != nil {
		return 0, fmt.Errorf("expected_time %q: %w", v, err)
	}
	return h*60 + m, nil
}

// Depends returns the args value of the case's <depends> child. When several
// are present the last one wins.
func (p *Parser) Depends(caseNode *etree.Element) (string, error) {
	nodes := descendants(caseNode, "depends")
	if len(nodes) == 0 {
		return "", &MissingNodeError{Parent: caseNode.Tag, Tag: "depends"}
	}
	return Attr(nodes[len(nodes)-1], "args")
}

// CompareDirectives returns one entry per <compare> child of the case, in
// document order. repo and dest are mandatory; a missing status means
// enabled.
func (p *Parser) CompareDirectives(caseNode *etree.Element) ([]CompareDirective, error) {
	var dirs []CompareDirective
	for _, node := range descendants(caseNode, "compare") {
		repo, err := Attr(node, "repo")
		if err != nil {
			return nil, err
		}
		dest, err := Attr(node, "dest")
		if err != nil {
			return nil, err
		}
		dirs = append(dirs, CompareDirective{
			Node:      node,
			Enabled:   node.SelectAttrValue("status", statusOn) == statusOn,
			Repo:      repo,
			Dest:      dest,
			Threshold: node.SelectAttrValue("threshold", ""),
			Args:      node.SelectAttrValue("args", ""),
		})
	}
	return dirs, nil
}

// PreproDirectives returns one entry per <prepro> child of the case.
func (p *Parser) PreproDirectives(caseNode *etree.Element) ([]PreproDirective, error) {
	var dirs []PreproDirective
	for _, node := range descendants(caseNode, "prepro") {
		status, err := Attr(node, "status")
		if err != nil {
			return nil, err
		}
		label, err := Attr(node, "label")
		if err != nil {
			return nil, err
		}
		dirs = append(dirs, PreproDirective{
			Node:    node,
			Enabled: status == statusOn,
			Label:   label,
			Args:    node.SelectAttrValue("args", ""),
		})
	}
	return dirs, nil
}

// ScriptDirectives returns one entry per <script> child of the case.
func (p *Parser) ScriptDirectives(caseNode *etree.Element) ([]ScriptDirective, error) {
	var dirs []ScriptDirective
	for _, node := range descendants(caseNode, "script") {
		status, err := Attr(node, "status")
		if err != nil {
			return nil, err
		}
		label, err := Attr(node, "label")
		if err != nil {
			return nil, err
		}
		dirs = append(dirs, ScriptDirective{
			Node:    node,
			Enabled: status == statusOn,
			Label:   label,
			Args:    node.SelectAttrValue("args", ""),
			Repo:    node.SelectAttrValue("repo", ""),
			Dest:    node.SelectAttrValue("dest", ""),
		})
	}
	return dirs, nil
}

// PostproDirectives returns one entry per <postpro> child of the study.
func (p *Parser) PostproDirectives(label string) ([]PostproDirective, error) {
	studyNode, err := p.StudyNode(label)
	if err != nil {
		return nil, err
	}

	var dirs []PostproDirective
	for _, node := range descendants(studyNode, "postpro") {
		status, err := Attr(node, "status")
		if err != nil {
			return nil, err
		}
		lbl, err := Attr(node, "label")
		if err != nil {
			return nil, err
		}
		dirs = append(dirs, PostproDirective{
			Node:    node,
			Enabled: status == statusOn,
			Label:   lbl,
			Args:    node.SelectAttrValue("args", ""),
		})
	}
	return dirs, nil
}

// Result extracts the file descriptor of a result node. Only data-tagged
// nodes expose plot children.
func (p *Parser) Result(node *etree.Element) (ResultDescriptor, error) {
	file, err := Attr(node, "file")
	if err != nil {
		return ResultDescriptor{}, err
	}
	d := ResultDescriptor{
		File: file,
		Dest: node.SelectAttrValue("dest", ""),
		Repo: node.SelectAttrValue("repo", ""),
	}
	if node.Tag == "data" {
		d.Plots = descendants(node, "plot")
	}
	return d, nil
}

// Input extracts the file descriptor of an input node.
func (p *Parser) Input(node *etree.Element) (InputDescriptor, error) {
	file, err := Attr(node, "file")
	if err != nil {
		return InputDescriptor{}, err
	}
	return InputDescriptor{
		File: file,
		Dest: node.SelectAttrValue("dest", ""),
		Repo: node.SelectAttrValue("repo", ""),
		Tex:  node.SelectAttrValue("tex", ""),
	}, nil
}

// Probes extracts the file descriptor of a probes node.
func (p *Parser) Probes(node *etree.Element) (ProbeDescriptor, error) {
	file, err := Attr(node, "file")
	if err != nil {
		return ProbeDescriptor{}, err
	}
	return ProbeDescriptor{
		File: file,
		Dest: node.SelectAttrValue("dest", ""),
		Fig:  node.SelectAttrValue("fig", ""),
	}, nil
}

// Subplots returns the <subplot> children of the study.
func (p *Parser) Subplots(label string) ([]*etree.Element, error) {
	studyNode, err := p.StudyNode(label)
	if err != nil {
		return nil, err
	}
	return descendants(studyNode, "subplot"), nil
}

// Figures returns the <figure> children of the study.
func (p *Parser) Figures(label string) ([]*etree.Element, error) {
	studyNode, err := p.StudyNode(label)
	if err != nil {
		return nil, err
	}
	return descendants(studyNode, "figure"), nil
}

// PlotCommands returns the text of all <plt_command> children with content.
func (p *Parser) PlotCommands(node *etree.Element) []string {
	var cmds []string
	for _, n := range descendants(node, "plt_command") {
		if n.Text() != "" {
			cmds = append(cmds, n.Text())
		}
	}
	return cmds
}
