package engine

import (
	"os"
	"path/filepath"
	"sort"

	"github.com/bmatcuk/doublestar/v4"

	cfgpkg "github.com/tracey-dev/tracey/internal/config"
	"github.com/tracey-dev/tracey/internal/diagnostics"
	"github.com/tracey-dev/tracey/internal/index"
	"github.com/tracey-dev/tracey/internal/ruleid"
	"github.com/tracey-dev/tracey/internal/snapshot"
	"github.com/tracey-dev/tracey/internal/specloader"
	"github.com/tracey-dev/tracey/internal/walker"
)

// Rebuild performs one synchronous full rebuild: load config, rescan every
// spec and impl, compute the new snapshot, and publish it only if its
// content hash differs from the currently published one.
func (e *Engine) Rebuild() error {
	next := snapshot.Empty()

	w, err := walker.New(e.projectRoot)
	if err != nil {
		return err
	}

	cfg, cfgErr := cfgpkg.Load(e.configPath)
	if cfgErr != nil {
		next.ConfigError = cfgErr.Error()
		cfg = &cfgpkg.Config{}
	}

	var allDiagnostics []snapshot.Diagnostic
	knownPrefixes := map[string]bool{}
	var allSourceFiles []index.SourceFile
	seenFiles := map[string]bool{}

	for _, specCfg := range cfg.Specs {
		manifest, specErr := e.loadSpecManifest(w, specCfg)
		if specErr != nil {
			next.ConfigError = appendErr(next.ConfigError, specErr.Error())
			continue
		}

		knownPrefixes[manifest.Prefix] = true

		next.SpecsContent[specCfg.Name] = e.buildSpecContent(w, specCfg)
		next.Config = append(next.Config, snapshot.NormalizedSpec{
			Name:      specCfg.Name,
			SourceURL: specCfg.SourceURL,
			Prefix:    manifest.Prefix,
			Include:   specCfg.Include,
			Impls:     implNames(specCfg),
		})

		ruleIndex := map[ruleid.RuleID]*snapshot.RuleWithRefs{}
		var order []ruleid.RuleID
		for _, def := range manifest.Definitions {
			ruleIndex[def.ID] = &snapshot.RuleWithRefs{Definition: def}
			order = append(order, def.ID)
		}

		for _, dup := range manifest.Duplicates {
			allDiagnostics = append(allDiagnostics, snapshot.Diagnostic{
				Kind:     snapshot.DiagDuplicateDefinition,
				Severity: snapshot.SeverityError,
				Spec:     specCfg.Name,
				Path:     dup.Path,
				Line:     dup.Line,
				Message:  "duplicate definition of " + dup.ID.String(),
				RuleID:   dup.ID.String(),
			})
		}

		for _, implCfg := range specCfg.Impls {
			files, err := w.Collect(walker.Options{Kind: walker.KindSource, Include: implCfg.Include, Exclude: implCfg.Exclude})
			if err != nil {
				continue
			}

			var implRefs []snapshot.Reference
			for i, relPath := range files {
				e.reportProgress(specCfg.Name+"/"+implCfg.Name, i+1, len(files))
				content, err := e.readFile(relPath)
				if err != nil {
					continue
				}
				isTest := matchesAnyGlob(implCfg.TestInclude, relPath)
				srcFile := index.SourceFile{
					Path:    relPath,
					Content: content,
					Ext:     filepath.Ext(relPath),
					IsTest:  isTest,
				}

				result, err := index.Scan(srcFile, manifest.Prefix)
				if err != nil {
					continue
				}

				if !seenFiles[relPath] {
					seenFiles[relPath] = true
					allSourceFiles = append(allSourceFiles, srcFile)
				}

				implRefs = append(implRefs, result.References...)
				next.SourceReqsByFile[relPath] = append(next.SourceReqsByFile[relPath], result.References...)
				next.ReverseByFile[relPath] = buildFileEntry(relPath, result)

				for _, violation := range result.TestOnlyViolations {
					allDiagnostics = append(allDiagnostics, snapshot.Diagnostic{
						Kind:     snapshot.DiagTestOnlyVerb,
						Severity: snapshot.SeverityError,
						Spec:     specCfg.Name,
						Path:     violation.Path,
						Line:     violation.Line,
						Message:  "test file carries a non-Verify reference to " + violation.ID.String(),
						RuleID:   violation.ID.String(),
					})
				}
			}

			for _, ref := range implRefs {
				rr, ok := ruleIndex[ref.ID]
				if !ok {
					continue // orphaned or stale: diagnostics.ComputeImplDiagnostics below reports it
				}
				switch ref.Verb {
				case ruleid.VerbImpl:
					rr.Impl = append(rr.Impl, ref)
				case ruleid.VerbVerify:
					rr.Verify = append(rr.Verify, ref)
				case ruleid.VerbDepends:
					rr.Depends = append(rr.Depends, ref)
				case ruleid.VerbRelated:
					rr.Related = append(rr.Related, ref)
				}
			}

			var ordered []snapshot.RuleWithRefs
			for _, id := range order {
				ordered = append(ordered, *ruleIndex[id])
			}
			next.ForwardByImpl[snapshot.ImplKey{Spec: specCfg.Name, Impl: implCfg.Name}] = ordered

			allDiagnostics = append(allDiagnostics, diagnostics.ComputeImplDiagnostics(specCfg.Name, manifest, implRefs)...)
		}
	}

	if unknownPrefixDiags, err := diagnostics.ComputeUnknownPrefixes(allSourceFiles, knownPrefixes); err == nil {
		allDiagnostics = append(allDiagnostics, unknownPrefixDiags...)
	}

	sort.Slice(allDiagnostics, func(i, j int) bool {
		if allDiagnostics[i].Path != allDiagnostics[j].Path {
			return allDiagnostics[i].Path < allDiagnostics[j].Path
		}
		return allDiagnostics[i].Line < allDiagnostics[j].Line
	})
	for _, d := range allDiagnostics {
		next.WorkspaceDiagnostics[d.Path] = append(next.WorkspaceDiagnostics[d.Path], d)
	}
	if next.ConfigError != "" {
		next.WorkspaceDiagnostics[e.configPath] = append(next.WorkspaceDiagnostics[e.configPath], snapshot.Diagnostic{
			Kind:     snapshot.DiagConfigError,
			Severity: snapshot.SeverityError,
			Path:     e.configPath,
			Line:     0,
			Message:  next.ConfigError,
		})
	}

	hash := contentHash(next)
	next.ContentHash = hash

	e.snapMu.RLock()
	prevHash := e.current.ContentHash
	prevVersion := e.current.Version
	e.snapMu.RUnlock()

	if hash == prevHash {
		return nil
	}

	next.Version = prevVersion + 1
	e.snapMu.Lock()
	e.current = next
	e.snapMu.Unlock()

	e.publish(next.Version)
	return nil
}

func (e *Engine) loadSpecManifest(w *walker.Walker, specCfg cfgpkg.SpecConfig) (specloader.Manifest, error) {
	files, err := w.Collect(walker.Options{Kind: walker.KindSpec, Include: specCfg.Include})
	if err != nil {
		return specloader.Manifest{}, err
	}

	var specFiles []specloader.File
	for _, relPath := range files {
		content, err := e.readFile(relPath)
		if err != nil {
			continue
		}
		specFiles = append(specFiles, specloader.File{Path: relPath, Content: content})
	}

	manifest, err := specloader.Load(specCfg.Name, specFiles)
	if err != nil {
		if good, ok := e.lastGoodManifest[specCfg.Name]; ok {
			return good, nil
		}
		return specloader.Manifest{}, err
	}

	e.lastGoodManifest[specCfg.Name] = manifest
	return manifest, nil
}

func (e *Engine) buildSpecContent(w *walker.Walker, specCfg cfgpkg.SpecConfig) snapshot.SpecContent {
	files, err := w.Collect(walker.Options{Kind: walker.KindSpec, Include: specCfg.Include})
	if err != nil || len(files) == 0 {
		return snapshot.SpecContent{}
	}

	var combined []byte
	for _, relPath := range files {
		content, err := e.readFile(relPath)
		if err != nil {
			continue
		}
		combined = append(combined, content...)
	}
	return snapshot.SpecContent{Content: string(combined), SourceFile: files[0]}
}

func (e *Engine) readFile(relPath string) ([]byte, error) {
	abs := filepath.Join(e.projectRoot, relPath)
	if content, ok := e.overlay(abs); ok {
		return content, nil
	}
	if content, ok := e.overlay(relPath); ok {
		return content, nil
	}
	return os.ReadFile(abs)
}

func buildFileEntry(path string, result index.Result) snapshot.FileEntry {
	refCountByOffset := map[int]int{}
	for _, ref := range result.References {
		refCountByOffset[int(ref.Span.Start)]++
	}

	units := make([]snapshot.CodeUnit, 0, len(result.Outline.Units))
	covered := 0
	for _, u := range result.Outline.Units {
		var ids []string
		for _, ref := range result.References {
			if ref.Span.Start >= u.Span.Start && ref.Span.Start < u.Span.End {
				ids = append(ids, ref.ID.String())
			}
		}
		if len(ids) > 0 {
			covered++
		}
		units = append(units, snapshot.CodeUnit{
			Kind:    string(u.Kind),
			Name:    u.Name,
			RuleIDs: ids,
		})
	}

	return snapshot.FileEntry{Path: path, CodeUnits: units, Total: len(units), Covered: covered}
}

func implNames(specCfg cfgpkg.SpecConfig) []string {
	names := make([]string, 0, len(specCfg.Impls))
	for _, impl := range specCfg.Impls {
		names = append(names, impl.Name)
	}
	return names
}

func matchesAnyGlob(globs []string, path string) bool {
	for _, g := range globs {
		if ok, err := doublestar.Match(g, path); err == nil && ok {
			return true
		}
	}
	return false
}

func appendErr(existing, next string) string {
	if existing == "" {
		return next
	}
	return existing + "; " + next
}
