// Package transformation defines the transformation units applied to catalog
// records and the Transformer capability that runs them.
package transformation

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/beevik/etree"
)

// AlwaysApplySuffix marks a stylesheet whose result is written back even when
// it produces no diff, so its outcomes can only be success or failure.
const AlwaysApplySuffix = "~always"

// ErrNotFound is returned when a named transformation has no stylesheet.
var ErrNotFound = errors.New("transformation not found")

// Param is a parameter declared by a transformation stylesheet.
type Param struct {
	Name         string `json:"name"`
	DefaultValue string `json:"default_value"`
	Required     bool   `json:"required"`
}

// Transformation is a named, parameterized stylesheet. Immutable once loaded.
type Transformation struct {
	Path string
}

// Name is the stylesheet file stem, including any always-apply suffix.
func (t Transformation) Name() string {
	return strings.TrimSuffix(filepath.Base(t.Path), filepath.Ext(t.Path))
}

// DisplayName is the name without the always-apply suffix.
func (t Transformation) DisplayName() string {
	return strings.TrimSuffix(t.Name(), AlwaysApplySuffix)
}

// AlwaysApply reports whether the stylesheet follows the always-apply naming
// convention.
func (t Transformation) AlwaysApply() bool {
	return strings.HasSuffix(t.Name(), AlwaysApplySuffix)
}

// Params parses the stylesheet's top-level xsl:param declarations.
func (t Transformation) Params() ([]Param, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromFile(t.Path); err != nil {
		return nil, fmt.Errorf("failed to parse stylesheet %s: %w", t.Path, err)
	}

	root := doc.Root()
	if root == nil || root.Tag != "stylesheet" {
		return nil, fmt.Errorf("stylesheet %s has no xsl:stylesheet root", t.Path)
	}

	var params []Param

	for _, el := range root.ChildElements() {
		if el.Tag != "param" {
			continue
		}

		name := el.SelectAttrValue("name", "")
		if name == "" {
			continue
		}

		params = append(params, Param{
			Name: name,
			// string literal quotes are stripped; the transformer re-quotes
			// values when passing them in
			DefaultValue: strings.Trim(el.SelectAttrValue("select", ""), "'"),
			Required:     el.SelectAttrValue("required", "") == "yes",
		})
	}

	return params, nil
}

// List returns the transformations available under dir, sorted by name.
func List(dir string) ([]Transformation, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "*.xsl"))
	if err != nil {
		return nil, err
	}

	sort.Strings(matches)

	transformations := make([]Transformation, 0, len(matches))
	for _, path := range matches {
		transformations = append(transformations, Transformation{Path: path})
	}

	return transformations, nil
}

// Get returns the named transformation from dir.
func Get(name, dir string) (Transformation, error) {
	path := filepath.Join(dir, name+".xsl")
	if _, err := os.Stat(path); err != nil {
		return Transformation{}, fmt.Errorf("%w: %s", ErrNotFound, name)
	}

	return Transformation{Path: path}, nil
}
