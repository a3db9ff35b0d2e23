package study

import (
	"context"
	"io/fs"
	"path/filepath"
)

// MeasurementFiles resolves the measurement files of a study. A measurement
// with an empty path attribute is searched for under the study directory;
// otherwise the search is rooted at its POST/<path> subdirectory. The first
// directory containing the file wins. The walk stops early when ctx is
// cancelled.
func (p *Parser) MeasurementFiles(ctx context.Context, label string) ([]Measurement, error) {
	studyNode, err := p.StudyNode(label)
	if err != nil {
		return nil, err
	}
	repo, err := p.Repository()
	if err != nil {
		return nil, err
	}

	var out []Measurement
	for _, node := range descendants(studyNode, "measurement") {
		file, err := Attr(node, "file")
		if err != nil {
			return nil, err
		}
		rel, err := Attr(node, "path")
		if err != nil {
			return nil, err
		}

		var searchRoot string
		if rel == "" {
			searchRoot = filepath.Join(repo, label)
		} else {
			searchRoot = filepath.Join(repo, label, "POST", rel)
		}

		dir, err := findFileDir(ctx, searchRoot, file)
		if err != nil {
			return nil, err
		}
		if dir == "" {
			// Unresolved: keep the raw path attribute, as the original
			// accessor did.
			dir = rel
		}

		out = append(out, Measurement{
			Node:  node,
			Plots: descendants(node, "plot"),
			Path:  filepath.Join(dir, file),
		})
	}
	return out, nil
}

// findFileDir walks root and returns the first directory containing a file
// named name, or empty when none is found. Unreadable directories are
// skipped.
func findFileDir(ctx context.Context, root, name string) (string, error) {
	var found string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if cerr := ctx.Err(); cerr != nil {
			return cerr
		}
		if err != nil {
			return nil
		}
		if !d.IsDir() && d.Name() == name {
			found = filepath.Dir(path)
			return fs.SkipAll
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return found, nil
}
