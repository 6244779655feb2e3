package command

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rbright/molview/internal/molecule"
)

// ErrDecode marks a malformed command payload.
var ErrDecode = errors.New("decode remote command")

// Decode parses the externally tagged form:
//
//	{"Load": [<molecule>, ...]}
//	"Delete"  or  {"Delete": null}
//	{"Label": {"delete": true}}
func Decode(data []byte) (RemoteCommand, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("%w: empty body", ErrDecode)
	}

	if trimmed[0] == '"' {
		var tag string
		if err := json.Unmarshal(trimmed, &tag); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrDecode, err)
		}
		if Kind(tag) == KindDelete {
			return Delete{}, nil
		}
		return nil, fmt.Errorf("%w: variant %q requires a payload", ErrDecode, tag)
	}

	var tagged map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &tagged); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if len(tagged) != 1 {
		return nil, fmt.Errorf("%w: expected exactly one variant tag, got %d", ErrDecode, len(tagged))
	}

	for tag, payload := range tagged {
		switch Kind(tag) {
		case KindLoad:
			var mols []molecule.Molecule
			if err := json.Unmarshal(payload, &mols); err != nil {
				return nil, fmt.Errorf("%w: Load: %v", ErrDecode, err)
			}
			return Load{Molecules: mols}, nil
		case KindDelete:
			if p := bytes.TrimSpace(payload); len(p) != 0 && !bytes.Equal(p, []byte("null")) && !bytes.Equal(p, []byte("{}")) {
				return nil, fmt.Errorf("%w: Delete takes no payload", ErrDecode)
			}
			return Delete{}, nil
		case KindLabel:
			label, err := DecodeLabel(payload)
			if err != nil {
				return nil, fmt.Errorf("%w: Label: %v", ErrDecode, err)
			}
			return label, nil
		default:
			return nil, fmt.Errorf("%w: unknown variant %q", ErrDecode, tag)
		}
	}
	return nil, fmt.Errorf("%w: unreachable", ErrDecode)
}

// DecodeLabel parses a Label payload. The delete field is required.
func DecodeLabel(payload []byte) (Label, error) {
	var raw struct {
		Delete *bool `json:"delete"`
	}
	if err := json.Unmarshal(payload, &raw); err != nil {
		return Label{}, err
	}
	if raw.Delete == nil {
		return Label{}, errors.New(`missing field "delete"`)
	}
	return Label{Delete: *raw.Delete}, nil
}

// Encode renders cmd in the form Decode accepts.
func Encode(cmd RemoteCommand) ([]byte, error) {
	switch c := cmd.(type) {
	case Load:
		mols := c.Molecules
		if mols == nil {
			mols = []molecule.Molecule{}
		}
		return json.Marshal(map[Kind][]molecule.Molecule{KindLoad: mols})
	case Delete:
		return json.Marshal(KindDelete)
	case Label:
		return json.Marshal(map[Kind]Label{KindLabel: c})
	default:
		return nil, fmt.Errorf("encode remote command: unsupported type %T", cmd)
	}
}
