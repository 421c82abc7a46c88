// Package transfer exports and imports the collection as files.
//
// Supported formats:
//   - json:  a single array, the same shape as the stored blob and the remote GET body
//   - jsonl: one record per line
//   - yaml:  a document with a top-level "jobs" list
//   - toml:  a document with a [[jobs]] array of tables
package transfer

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/jobops/jobops/internal/types"
)

// Format is a file format name.
type Format string

const (
	JSON  Format = "json"
	JSONL Format = "jsonl"
	YAML  Format = "yaml"
	TOML  Format = "toml"
)

// ErrUnknownFormat is returned for an unsupported format name or extension.
var ErrUnknownFormat = errors.New("unknown format")

// ParseFormat resolves a format name. "yml" and "ndjson" are accepted aliases.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimPrefix(s, ".")) {
	case "json":
		return JSON, nil
	case "jsonl", "ndjson":
		return JSONL, nil
	case "yaml", "yml":
		return YAML, nil
	case "toml":
		return TOML, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownFormat, s)
}

// FormatFromPath infers the format from a file extension.
func FormatFromPath(path string) (Format, error) {
	return ParseFormat(filepath.Ext(path))
}

// document wraps the list for formats that need a top-level table.
type document struct {
	Jobs []types.JobApplication `yaml:"jobs" toml:"jobs"`
}

// Encode writes jobs to w in format f.
func Encode(w io.Writer, f Format, jobs []types.JobApplication) error {
	if jobs == nil {
		jobs = []types.JobApplication{}
	}
	switch f {
	case JSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(jobs)
	case JSONL:
		enc := json.NewEncoder(w)
		for i := range jobs {
			if err := enc.Encode(jobs[i]); err != nil {
				return fmt.Errorf("failed to encode record %s: %w", jobs[i].ID, err)
			}
		}
		return nil
	case YAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(document{Jobs: jobs}); err != nil {
			return fmt.Errorf("failed to encode yaml: %w", err)
		}
		return enc.Close()
	case TOML:
		if err := toml.NewEncoder(w).Encode(document{Jobs: jobs}); err != nil {
			return fmt.Errorf("failed to encode toml: %w", err)
		}
		return nil
	}
	return fmt.Errorf("%w: %q", ErrUnknownFormat, f)
}

// Decode reads records in format f from r.
func Decode(r io.Reader, f Format) ([]types.JobApplication, error) {
	switch f {
	case JSON:
		var jobs []types.JobApplication
		if err := json.NewDecoder(r).Decode(&jobs); err != nil {
			return nil, fmt.Errorf("invalid JSON: %w", err)
		}
		return jobs, nil
	case JSONL:
		return decodeJSONL(r)
	case YAML:
		var doc document
		if err := yaml.NewDecoder(r).Decode(&doc); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("invalid YAML: %w", err)
		}
		return doc.Jobs, nil
	case TOML:
		var doc document
		if _, err := toml.NewDecoder(r).Decode(&doc); err != nil {
			return nil, fmt.Errorf("invalid TOML: %w", err)
		}
		return doc.Jobs, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, f)
}

func decodeJSONL(r io.Reader) ([]types.JobApplication, error) {
	var jobs []types.JobApplication
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 4<<20)
	lineNum := 0
	for sc.Scan() {
		lineNum++
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		var j types.JobApplication
		if err := json.Unmarshal([]byte(line), &j); err != nil {
			return nil, fmt.Errorf("invalid JSON at line %d: %w", lineNum, err)
		}
		jobs = append(jobs, j)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("failed to read JSONL: %w", err)
	}
	return jobs, nil
}
