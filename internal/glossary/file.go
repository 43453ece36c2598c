package glossary

import (
	"encoding/json"
	"fmt"
	"os"
)

// Parse decodes a glossary snapshot document.
func Parse(data []byte) (*Glossary, error) {
	var g Glossary
	if err := json.Unmarshal(data, &g); err != nil {
		return nil, fmt.Errorf("parse glossary: %w", err)
	}
	return &g, nil
}

// Encode serializes the glossary back to the published document shape,
// indented for committing alongside the site.
func (g *Glossary) Encode() ([]byte, error) {
	return json.MarshalIndent(g, "", "  ")
}

// Load reads a glossary snapshot from a JSON file.
func Load(path string) (*Glossary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Save writes the glossary to a JSON file.
func Save(path string, g *Glossary) error {
	data, err := g.Encode()
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
