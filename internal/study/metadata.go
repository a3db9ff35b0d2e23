package study

// StudyMetadata aggregates keywords, tags and per-case metadata for a study.
// Case entries are seeded from <case_description> elements and completed
// with the tags of the matching <case> elements.
func (p *Parser) StudyMetadata(label string) (*Metadata, error) {
	studyNode, err := p.StudyNode(label)
	if err != nil {
		return nil, err
	}
	studyTags, err := p.StudyTags(studyNode)
	if err != nil {
		return nil, err
	}

	md := &Metadata{
		Name:      label,
		Keywords:  p.StudyKeywords(studyNode),
		StudyTags: studyTags,
	}

	index := make(map[string]int)

	for _, descr := range descendants(studyNode, "case_description") {
		name, err := Attr(descr, "label")
		if err != nil {
			return nil, err
		}
		if _, dup := index[name]; dup {
			return nil, &DuplicateError{Parent: "study", Tag: "case_description", Label: name}
		}
		cm := CaseMetadata{Name: name}
		for _, item := range descendants(descr, "item") {
			cm.VnVItems = append(cm.VnVItems, item.Text())
		}
		index[name] = len(md.Cases)
		md.Cases = append(md.Cases, cm)
	}

	for _, node := range descendants(studyNode, "case") {
		name, err := Attr(node, "label")
		if err != nil {
			return nil, err
		}
		i, ok := index[name]
		if !ok {
			i = len(md.Cases)
			index[name] = i
			md.Cases = append(md.Cases, CaseMetadata{Name: name})
		}
		md.Cases[i].Tags = append(md.Cases[i].Tags, splitList(node.SelectAttrValue("tags", ""))...)
	}

	// Deduplicated union of case tags, first occurrence order.
	seen := make(map[string]bool)
	for _, cm := range md.Cases {
		for _, tag := range cm.Tags {
			if !seen[tag] {
				seen[tag] = true
				md.CaseTags = append(md.CaseTags, tag)
			}
		}
	}

	return md, nil
}
