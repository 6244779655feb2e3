package molecule

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// EncodeJSON renders mols as an indented JSON array.
func EncodeJSON(mols []Molecule) ([]byte, error) {
	if mols == nil {
		mols = []Molecule{}
	}
	data, err := json.MarshalIndent(mols, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

// EncodeYAML renders mols as a YAML sequence.
func EncodeYAML(mols []Molecule) ([]byte, error) {
	if mols == nil {
		mols = []Molecule{}
	}
	return yaml.Marshal(mols)
}

// WriteFile saves mols as a trajectory, choosing YAML for .yaml/.yml and JSON
// otherwise. Parent directories are created.
func WriteFile(path string, mols []Molecule) error {
	var (
		data []byte
		err  error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		data, err = EncodeYAML(mols)
	default:
		data, err = EncodeJSON(mols)
	}
	if err != nil {
		return fmt.Errorf("encode molecule file %q: %w", path, err)
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create molecule dir %q: %w", dir, err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write molecule file %q: %w", path, err)
	}
	return nil
}
