// Package config loads and validates tracey's project configuration from
// `.config/tracey/config.styx`, a KDL document describing the tracked specs
// and their implementations. The on-disk shape is:
//
//	specs {
//	    spec "auth" {
//	        source_url "https://github.com/example/auth-spec"
//	        include "docs/auth/**/*.md"
//	        impls {
//	            impl "main" {
//	                include "src/auth/**/*.go"
//	                exclude "src/auth/**/*_test.go"
//	                test_include "src/auth/**/*_test.go"
//	            }
//	        }
//	    }
//	}
//
// A spec's prefix is never configured: it is inferred later (internal/specloader)
// from the Define markers actually present in its files. A `prefix` node
// inside a `spec` block is deprecated and rejected with a config error.
package config

import (
	"os"
	"path/filepath"
	"strings"

	kdl "github.com/sblinch/kdl-go"
	"github.com/sblinch/kdl-go/document"

	traceerrors "github.com/tracey-dev/tracey/internal/errors"
)

// Impl is one configured implementation of a spec: the source files that
// implement and test it.
type Impl struct {
	Name        string
	Include     []string
	Exclude     []string
	TestInclude []string
}

// SpecConfig is one tracked specification: its Markdown sources and the
// implementations scanned against it.
type SpecConfig struct {
	Name      string
	SourceURL string
	Include   []string
	Impls     []Impl
}

// Config is the full parsed, unvalidated configuration.
type Config struct {
	Specs []SpecConfig
}

// RelPath is the location of the config file relative to a project root.
const RelPath = ".config/tracey/config.styx"

// Path returns the absolute config path for a given project root.
func Path(projectRoot string) string {
	return filepath.Join(projectRoot, filepath.FromSlash(RelPath))
}

// Load reads and parses the config file at path. A missing file is not an
// error: it returns an empty Config so the engine can still construct with
// zero specs (spec.md requires the engine to build successfully even when
// config is absent).
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Config{}, nil
		}
		return nil, traceerrors.NewConfigError(
			"Cannot read configuration file",
			err.Error(),
			"Check file permissions and ensure the path is correct",
			err,
		)
	}

	doc, err := kdl.Parse(strings.NewReader(string(data)))
	if err != nil {
		return nil, traceerrors.NewConfigError(
			"Invalid configuration format",
			"KDL parsing failed: "+err.Error(),
			"Fix the syntax error in "+path,
			err,
		)
	}

	cfg := &Config{}
	for _, n := range doc.Nodes {
		if nodeName(n) != "specs" {
			continue
		}
		for _, specNode := range n.Children {
			if nodeName(specNode) != "spec" {
				continue
			}
			sc, err := parseSpec(specNode, path)
			if err != nil {
				return nil, err
			}
			cfg.Specs = append(cfg.Specs, sc)
		}
	}

	return cfg, nil
}

func parseSpec(n *document.Node, path string) (SpecConfig, error) {
	sc := SpecConfig{Name: firstArgString(n)}

	for _, cn := range n.Children {
		switch nodeName(cn) {
		case "prefix":
			return SpecConfig{}, traceerrors.NewConfigError(
				"Unsupported configuration field",
				"Spec '"+sc.Name+"' sets 'prefix', which is deprecated: the prefix is inferred from Define markers in the spec's own files",
				"Remove the 'prefix' field from "+path,
				nil,
			)
		case "source_url":
			sc.SourceURL = firstArgString(cn)
		case "include":
			sc.Include = append(sc.Include, collectStrings(cn)...)
		case "impls":
			for _, implNode := range cn.Children {
				if nodeName(implNode) != "impl" {
					continue
				}
				sc.Impls = append(sc.Impls, parseImpl(implNode))
			}
		}
	}

	return sc, nil
}

func parseImpl(n *document.Node) Impl {
	impl := Impl{Name: firstArgString(n)}
	for _, cn := range n.Children {
		switch nodeName(cn) {
		case "include":
			impl.Include = append(impl.Include, collectStrings(cn)...)
		case "exclude":
			impl.Exclude = append(impl.Exclude, collectStrings(cn)...)
		case "test_include":
			impl.TestInclude = append(impl.TestInclude, collectStrings(cn)...)
		}
	}
	return impl
}

func nodeName(n *document.Node) string {
	if n == nil || n.Name == nil {
		return ""
	}
	return n.Name.NodeNameString()
}

func firstArgString(n *document.Node) string {
	if n == nil || len(n.Arguments) == 0 {
		return ""
	}
	if s, ok := n.Arguments[0].Value.(string); ok {
		return s
	}
	return ""
}

// collectStrings reads every string argument from n, falling back to
// reading a single argument if n itself is a repeated "include <glob>" style
// node rather than a block of children.
func collectStrings(n *document.Node) []string {
	if n == nil {
		return nil
	}
	var out []string
	for _, a := range n.Arguments {
		if s, ok := a.Value.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
