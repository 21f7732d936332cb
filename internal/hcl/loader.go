// Package hcl loads prediction graph topology documents written in HCL and
// translates them into the format-agnostic config model.
package hcl

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"

	"github.com/vk/predictgrid/internal/config"
	"github.com/vk/predictgrid/internal/ctxlog"
	"github.com/vk/predictgrid/internal/errs"
	"github.com/vk/predictgrid/internal/schema"
)

// Loader is the HCL implementation of config.Loader.
type Loader struct{}

// NewLoader creates a new HCL topology loader.
func NewLoader() *Loader {
	return &Loader{}
}

// Load parses the topology document at path (a single .hcl file or a
// directory searched recursively), merges all discovered blocks, and
// translates them into the config model. Every malformation is surfaced as a
// configuration error.
func (l *Loader) Load(ctx context.Context, path string) (*config.Model, error) {
	logger := ctxlog.FromContext(ctx)

	files, err := findHCLFiles(path)
	if err != nil {
		return nil, errs.Configuration("cannot read topology path %q: %s", path, err)
	}
	if len(files) == 0 {
		return nil, errs.Configuration("no .hcl files found at %q", path)
	}
	logger.Debug("Discovered topology files.", "count", len(files))

	parser := hclparse.NewParser()
	model := &config.Model{}

	for _, file := range files {
		hclFile, diags := parser.ParseHCLFile(file)
		if diags.HasErrors() {
			return nil, errs.Configuration("failed to parse %s: %s", file, diags.Error())
		}

		var doc schema.Topology
		diags = gohcl.DecodeBody(hclFile.Body, nil, &doc)
		if diags.HasErrors() {
			return nil, errs.Configuration("failed to decode %s: %s", file, diags.Error())
		}

		if doc.Graph != nil {
			if model.Root != "" && model.Root != doc.Graph.Root {
				return nil, errs.Configuration(
					"conflicting graph roots %q and %q", model.Root, doc.Graph.Root)
			}
			model.Root = doc.Graph.Root
		}
		for _, n := range doc.Nodes {
			spec, err := l.translateNode(n)
			if err != nil {
				return nil, err
			}
			model.Nodes = append(model.Nodes, spec)
		}
	}

	if model.Root == "" {
		return nil, errs.Configuration("topology declares no graph root")
	}
	logger.Debug("Topology loaded.", "root", model.Root, "node_count", len(model.Nodes))
	return model, nil
}

// findHCLFiles returns path itself if it is a file, or every .hcl file under
// it if it is a directory.
func findHCLFiles(path string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return []string{path}, nil
	}

	var files []string
	err = filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.HasSuffix(d.Name(), ".hcl") {
			files = append(files, p)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}
