package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"
	"gopkg.in/yaml.v3"
)

// Load reads a run file. The format is chosen by extension: .yaml and .yml
// are YAML, .hcl is HCL. HCL files can refer to their own directory as
// file_dir. A relative run.base_path is resolved against the file's
// directory.
func Load(path string) (*File, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve config path: %w", err)
	}
	dir := filepath.Dir(abs)

	var f *File
	switch strings.ToLower(filepath.Ext(abs)) {
	case ".yaml", ".yml":
		f, err = loadYAML(abs)
	case ".hcl":
		f, err = loadHCL(abs, dir)
	default:
		return nil, &ValidationError{Field: "path", Reason: fmt.Sprintf("unsupported config extension %q", filepath.Ext(abs))}
	}
	if err != nil {
		return nil, err
	}

	f.dir = dir
	if f.Run != nil && f.Run.BasePath != "" && !filepath.IsAbs(f.Run.BasePath) {
		f.Run.BasePath = filepath.Join(dir, f.Run.BasePath)
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return f, nil
}

func loadYAML(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var f File
	if err := dec.Decode(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, ErrConfigEmpty
		}
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return &f, nil
}

func loadHCL(path, dir string) (*File, error) {
	parser := hclparse.NewParser()
	hclFile, diags := parser.ParseHCLFile(path)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse HCL file %s: %w", path, diags)
	}

	ctx := &hcl.EvalContext{
		Variables: map[string]cty.Value{
			"file_dir": cty.StringVal(dir),
		},
	}

	var f File
	diags = gohcl.DecodeBody(hclFile.Body, ctx, &f)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode HCL file %s: %w", path, diags)
	}
	return &f, nil
}
