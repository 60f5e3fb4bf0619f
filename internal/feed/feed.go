// Package feed reads the per-cycle result set handed over by a collector.
//
// A feed file is a YAML or JSON list of results:
//
//	- type_name: "name=PS Eden Space,type=MemoryPool"
//	  attribute: Usage
//	  values:
//	    used: 1048576
//	    committed: 2097152
//
// A file holding a single mapping with a "results" key is accepted too.
package feed

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/xtxerr/rrdsink/internal/sample"
)

// document is the wrapped form of a feed file.
type document struct {
	Results []sample.Result `yaml:"results"`
}

// Load reads results from path.
func Load(path string) ([]sample.Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open feed: %w", err)
	}
	defer f.Close()

	results, err := Read(f)
	if err != nil {
		return nil, fmt.Errorf("feed %s: %w", path, err)
	}
	return results, nil
}

// Read decodes results from r. An empty input yields no results.
func Read(r io.Reader) ([]sample.Result, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read: %w", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}

	var node yaml.Node
	if err := yaml.Unmarshal(data, &node); err != nil {
		return nil, fmt.Errorf("parse: %w", err)
	}
	if len(node.Content) == 0 {
		return nil, nil
	}

	root := node.Content[0]
	switch root.Kind {
	case yaml.SequenceNode:
		var results []sample.Result
		if err := root.Decode(&results); err != nil {
			return nil, fmt.Errorf("decode: %w", err)
		}
		return results, nil
	case yaml.MappingNode:
		var doc document
		if err := root.Decode(&doc); err != nil {
			return nil, fmt.Errorf("decode: %w", err)
		}
		return doc.Results, nil
	default:
		return nil, fmt.Errorf("decode: expected a list of results, got %s", kindName(root.Kind))
	}
}

func kindName(k yaml.Kind) string {
	switch k {
	case yaml.ScalarNode:
		return "scalar"
	case yaml.AliasNode:
		return "alias"
	case yaml.DocumentNode:
		return "document"
	default:
		return "unknown"
	}
}
