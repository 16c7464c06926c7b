package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/pders01/roster/internal/storage"
)

type membersFile struct {
	Members []storage.Member `json:"members" yaml:"members" toml:"members"`
}

// LoadMembers reads the member directory file. The format is chosen by
// extension: .yaml/.yml, .toml or .json.
func LoadMembers(path string) ([]storage.Member, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading members file: %w", err)
	}

	members, err := ParseMembers(data, filepath.Ext(path))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return members, nil
}

// ParseMembers decodes and validates a member directory document.
func ParseMembers(data []byte, ext string) ([]storage.Member, error) {
	var doc membersFile

	switch strings.ToLower(ext) {
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&doc); err != nil {
			return nil, fmt.Errorf("decoding yaml: %w", err)
		}
	case ".toml":
		if err := toml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("decoding toml: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("decoding json: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported members file extension %q", ext)
	}

	if err := normalizeMembers(doc.Members); err != nil {
		return nil, err
	}
	return doc.Members, nil
}

func normalizeMembers(members []storage.Member) error {
	seen := make(map[string]bool, len(members))

	for i := range members {
		m := &members[i]
		m.Name = strings.TrimSpace(m.Name)
		if m.Name == "" {
			return fmt.Errorf("member #%d: name is required", i+1)
		}
		if seen[m.Name] {
			return fmt.Errorf("member %q: duplicate name", m.Name)
		}
		seen[m.Name] = true

		if err := validateTenure(m.Tenure); err != nil {
			return fmt.Errorf("member %q: %w", m.Name, err)
		}

		m.Tags = uniqueNonEmpty(m.Tags)
		m.Sources = uniqueNonEmpty(m.Sources)
	}
	return nil
}

func validateTenure(t storage.Tenure) error {
	for _, ym := range []*storage.YearMonth{t.Start, t.End} {
		if ym == nil {
			continue
		}
		if ym.Month < 1 || ym.Month > 12 {
			return fmt.Errorf("tenure month %d out of range", ym.Month)
		}
		if ym.Year < 1 {
			return fmt.Errorf("tenure year %d out of range", ym.Year)
		}
	}
	if t.Start != nil && t.End != nil && t.End.Before(*t.Start) {
		return fmt.Errorf("tenure ends (%d-%02d) before it starts (%d-%02d)",
			t.End.Year, t.End.Month, t.Start.Year, t.Start.Month)
	}
	return nil
}

func uniqueNonEmpty(values []string) []string {
	seen := make(map[string]bool, len(values))
	result := []string{}
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		result = append(result, v)
	}
	return result
}
