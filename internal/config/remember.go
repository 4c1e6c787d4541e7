package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// RememberDirectory stores dir as output.directory in the config file
// at path, leaving every other key and comment as it was. The file is
// created if missing.
func RememberDirectory(path, dir string) error {
	var doc yaml.Node

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return fmt.Errorf("parsing config file: %w", err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return fmt.Errorf("reading config file: %w", err)
	}

	if doc.Kind == 0 || len(doc.Content) == 0 {
		doc = yaml.Node{Kind: yaml.DocumentNode, Content: []*yaml.Node{{Kind: yaml.MappingNode, Tag: "!!map"}}}
	}
	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return errors.New("config root is not a mapping")
	}

	output := mappingValue(root, "output")
	if output == nil || (output.Kind == yaml.ScalarNode && output.Tag == "!!null") {
		if output == nil {
			output = &yaml.Node{}
			root.Content = append(root.Content, strNode("output"), output)
		}
		*output = yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	}
	if output.Kind != yaml.MappingNode {
		return errors.New("config key output is not a mapping")
	}

	if value := mappingValue(output, "directory"); value != nil {
		*value = *strNode(dir)
	} else {
		output.Content = append(output.Content, strNode("directory"), strNode(dir))
	}

	out, err := yaml.Marshal(&doc)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	if err := os.WriteFile(path, out, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}

func mappingValue(m *yaml.Node, key string) *yaml.Node {
	for i := 0; i+1 < len(m.Content); i += 2 {
		if m.Content[i].Value == key {
			return m.Content[i+1]
		}
	}
	return nil
}

func strNode(v string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: v}
}
