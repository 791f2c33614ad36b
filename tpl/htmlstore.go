// Package tpl loads html templates keyed by their path.
package tpl

import (
	"fmt"
	"html/template"
	"io/fs"
	"path"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"
)

const FileSuffix = ".gohtml"

type HTMLTemplateStore struct {
	Base  map[string]*template.Template // each file → one template
	funcs template.FuncMap
}

func NewHTMLTemplateStore(funcs template.FuncMap) *HTMLTemplateStore {
	return &HTMLTemplateStore{
		Base:  make(map[string]*template.Template),
		funcs: funcs,
	}
}

// LoadBaseTemplates parses every *.gohtml under root in fsys.
// Keys are slash paths relative to root without the suffix.
func (s *HTMLTemplateStore) LoadBaseTemplates(fsys fs.FS, root string, logger *zap.Logger) error {
	root = path.Clean(root)
	err := fs.WalkDir( // Pre-order Depth-first Traversal
		fsys,
		root,
		func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			name := d.Name()
			// Skip Hidden Files & Hidden Directories
			if strings.HasPrefix(name, ".") && p != root {
				if d.IsDir() {
					return fs.SkipDir
				}
				return nil
			}
			if d.IsDir() || !strings.HasSuffix(p, FileSuffix) {
				return nil
			}
			data, err := fs.ReadFile(fsys, p)
			if err != nil {
				return err
			}
			if !utf8.Valid(data) {
				return fmt.Errorf("file %s is not valid UTF-8", p)
			}
			key := strings.TrimSuffix(strings.TrimPrefix(p, root+"/"), FileSuffix)
			if _, exists := s.Base[key]; exists {
				return fmt.Errorf("duplicate template key detected: %s (file=%s)", key, p)
			}
			t, err := template.New(key).Funcs(s.funcs).Parse(string(data))
			if err != nil {
				return fmt.Errorf("parse error in %s: %w", p, err)
			}
			s.Base[key] = t
			return nil
		},
	)
	if err != nil {
		return err
	}
	if logger != nil {
		logger.Info("templates loaded", zap.Int("count", len(s.Base)), zap.String("root", root))
	}
	return nil
}

func (s *HTMLTemplateStore) Get(key string) (*template.Template, error) {
	t, ok := s.Base[key]
	if !ok {
		return nil, fmt.Errorf("template %q not loaded", key)
	}
	return t, nil
}
