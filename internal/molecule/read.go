package molecule

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// ReadPath loads path as a file, or every molecule file below it when it is
// a directory.
func ReadPath(path string) ([]Molecule, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("read molecule file %q: %w", path, err)
	}
	if info.IsDir() {
		return ReadDir(path)
	}
	return ReadFile(path)
}

// ReadDir walks dir in lexical order and loads every .json, .yaml and .yml
// file. Files that do not decode are skipped; a directory with nothing
// loadable is an error.
func ReadDir(dir string) ([]Molecule, error) {
	var mols []Molecule
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !IsMoleculeFile(path) {
			return nil
		}
		found, err := ReadFile(path)
		if err != nil {
			return nil
		}
		mols = append(mols, found...)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan molecule dir %q: %w", dir, err)
	}
	if len(mols) == 0 {
		return nil, fmt.Errorf("no molecule files in %q", dir)
	}
	return mols, nil
}

// IsMoleculeFile reports whether path has an extension ReadFile understands.
func IsMoleculeFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".yaml", ".yml":
		return true
	default:
		return false
	}
}

// TitleFromPath names a molecule after its file and parent directory.
func TitleFromPath(path string) string {
	clean := filepath.Clean(path)
	base := filepath.Base(clean)
	parent := filepath.Base(filepath.Dir(clean))
	if parent == "." || parent == string(filepath.Separator) {
		return base
	}
	return parent + "/" + base
}

// ReadFile loads one molecule or a trajectory from a .json, .yaml or .yml
// file. Untitled molecules are titled from the path.
func ReadFile(path string) ([]Molecule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read molecule file %q: %w", path, err)
	}

	var mols []Molecule
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		mols, err = DecodeYAML(data)
	default:
		mols, err = DecodeJSON(data)
	}
	if err != nil {
		return nil, fmt.Errorf("decode molecule file %q: %w", path, err)
	}
	for i := range mols {
		if strings.TrimSpace(mols[i].Title) == "" {
			mols[i].Title = TitleFromPath(path)
		}
	}
	return mols, nil
}

// DecodeJSON accepts either a single molecule object or an array of molecules.
func DecodeJSON(data []byte) ([]Molecule, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("empty document")
	}
	if trimmed[0] == '[' {
		var mols []Molecule
		if err := json.Unmarshal(trimmed, &mols); err != nil {
			return nil, err
		}
		return mols, nil
	}
	var mol Molecule
	if err := json.Unmarshal(trimmed, &mol); err != nil {
		return nil, err
	}
	return []Molecule{mol}, nil
}

// DecodeYAML accepts either a single molecule mapping or a sequence of molecules.
func DecodeYAML(data []byte) ([]Molecule, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 {
		return nil, fmt.Errorf("empty document")
	}

	root := doc.Content[0]
	switch root.Kind {
	case yaml.SequenceNode:
		var mols []Molecule
		if err := root.Decode(&mols); err != nil {
			return nil, err
		}
		return mols, nil
	case yaml.MappingNode:
		var mol Molecule
		if err := root.Decode(&mol); err != nil {
			return nil, err
		}
		return []Molecule{mol}, nil
	default:
		return nil, fmt.Errorf("line %d: expected a molecule mapping or a list of molecules", root.Line)
	}
}
