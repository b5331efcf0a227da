package problemfile

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/kilianp07/flownet/core/problem"
)

// Format is a document encoding.
type Format string

const (
	YAML Format = "yaml"
	JSON Format = "json"
	TOML Format = "toml"
)

// FormatFromPath picks the format from the file extension.
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return YAML, nil
	case ".json":
		return JSON, nil
	case ".toml":
		return TOML, nil
	}
	return "", fmt.Errorf("unsupported problem file %q", path)
}

// Decode parses a document in the given format.
func Decode(data []byte, format Format) (File, error) {
	var f File
	var err error
	switch format {
	case YAML:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		err = dec.Decode(&f)
	case JSON:
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		err = dec.Decode(&f)
	case TOML:
		var md toml.MetaData
		md, err = toml.Decode(string(data), &f)
		if err == nil {
			if undec := md.Undecoded(); len(undec) > 0 {
				err = fmt.Errorf("unknown keys %v", undec)
			}
		}
	default:
		return File{}, fmt.Errorf("unsupported format %q", format)
	}
	if err != nil {
		return File{}, fmt.Errorf("decode %s: %w", format, err)
	}
	return f, nil
}

// Encode writes f in the given format.
func Encode(w io.Writer, f File, format Format) error {
	switch format {
	case YAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(f); err != nil {
			return err
		}
		return enc.Close()
	case JSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(f)
	case TOML:
		return toml.NewEncoder(w).Encode(f)
	}
	return fmt.Errorf("unsupported format %q", format)
}

// Load reads the problem file at path, resolves its arc table and converts
// it to a description.
func Load(path string) (problem.Description, error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return problem.Description{}, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return problem.Description{}, err
	}
	f, err := Decode(data, format)
	if err != nil {
		return problem.Description{}, fmt.Errorf("%s: %w", path, err)
	}
	if f.ArcTable != "" {
		table := f.ArcTable
		if !filepath.IsAbs(table) {
			table = filepath.Join(filepath.Dir(path), table)
		}
		arcs, err := LoadArcs(table)
		if err != nil {
			return problem.Description{}, err
		}
		f.Arcs = append(f.Arcs, arcs...)
	}
	if f.Name == "" {
		f.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	d, err := f.Description()
	if err != nil {
		return problem.Description{}, fmt.Errorf("%s: %w", path, err)
	}
	return d, nil
}

// Save writes d to path in the format implied by its extension.
func Save(path string, d problem.Description) error {
	format, err := FormatFromPath(path)
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := Encode(&buf, FromDescription(d), format); err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	return os.WriteFile(path, buf.Bytes(), 0o644)
}
