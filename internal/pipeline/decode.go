package pipeline

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ppiankov/claimstore/internal/model"
)

// Extensions recognised as candidate files
var candidateExts = map[string]bool{
	".json": true,
	".yaml": true,
	".yml":  true,
}

// Extensions recognised as manifests listing candidate files
var manifestExts = map[string]bool{
	".txt":      true,
	".list":     true,
	".manifest": true,
}

// IsCandidateFile reports whether path has a candidate file extension
func IsCandidateFile(path string) bool {
	return candidateExts[strings.ToLower(filepath.Ext(path))]
}

// IsManifest reports whether path has a manifest extension
func IsManifest(path string) bool {
	return manifestExts[strings.ToLower(filepath.Ext(path))]
}

// DecodeFile reads the candidates held by one file. A file holds a single
// candidate or a list of them; YAML files may hold several documents.
// Unknown fields are rejected.
func DecodeFile(path string) ([]*model.Candidate, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	var candidates []*model.Candidate
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		candidates, err = DecodeJSON(data)
	case ".yaml", ".yml":
		candidates, err = DecodeYAML(data)
	default:
		return nil, fmt.Errorf("%s: unsupported candidate file type", path)
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return candidates, nil
}

// DecodeJSON decodes one candidate object or an array of them
func DecodeJSON(data []byte) ([]*model.Candidate, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, errors.New("empty document")
	}

	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.DisallowUnknownFields()

	var candidates []*model.Candidate
	if trimmed[0] == '[' {
		if err := dec.Decode(&candidates); err != nil {
			return nil, err
		}
		if err := checkNulls(candidates); err != nil {
			return nil, err
		}
	} else {
		var c model.Candidate
		if err := dec.Decode(&c); err != nil {
			return nil, err
		}
		candidates = append(candidates, &c)
	}
	if dec.More() {
		return nil, errors.New("unexpected data after the first value")
	}
	return candidates, nil
}

// DecodeYAML decodes every document of data. Each document is a candidate
// mapping or a sequence of them.
func DecodeYAML(data []byte) ([]*model.Candidate, error) {
	// First pass learns each document's shape
	var shapes []yaml.Kind
	probe := yaml.NewDecoder(bytes.NewReader(data))
	for {
		var doc yaml.Node
		err := probe.Decode(&doc)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		if len(doc.Content) == 0 {
			shapes = append(shapes, 0)
			continue
		}
		shapes = append(shapes, doc.Content[0].Kind)
	}
	if len(shapes) == 0 {
		return nil, errors.New("empty document")
	}

	var candidates []*model.Candidate
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	for i, shape := range shapes {
		switch shape {
		case yaml.SequenceNode:
			var list []*model.Candidate
			if err := dec.Decode(&list); err != nil {
				return nil, fmt.Errorf("document %d: %w", i+1, err)
			}
			if err := checkNulls(list); err != nil {
				return nil, fmt.Errorf("document %d: %w", i+1, err)
			}
			candidates = append(candidates, list...)
		case yaml.MappingNode:
			var c model.Candidate
			if err := dec.Decode(&c); err != nil {
				return nil, fmt.Errorf("document %d: %w", i+1, err)
			}
			candidates = append(candidates, &c)
		case 0:
			var skip yaml.Node
			if err := dec.Decode(&skip); err != nil {
				return nil, fmt.Errorf("document %d: %w", i+1, err)
			}
		default:
			return nil, fmt.Errorf("document %d: expected a candidate or a list of candidates", i+1)
		}
	}
	return candidates, nil
}

// checkNulls rejects null list elements, which decode to nil candidates
func checkNulls(list []*model.Candidate) error {
	for i, c := range list {
		if c == nil {
			return fmt.Errorf("candidate %d is null", i+1)
		}
	}
	return nil
}
