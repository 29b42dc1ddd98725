package engine

import (
	"sort"
	"strconv"

	"lukechampine.com/blake3"

	"github.com/tracey-dev/tracey/internal/snapshot"
)

// contentHash computes a deterministic hash of everything in s that
// determines whether published data actually changed: Go map iteration
// order is randomized, so every map-valued field is serialized in sorted
// key order before being fed to the hasher. Version and ContentHash
// themselves are excluded since they are outputs of this comparison, not
// inputs to it.
func contentHash(s snapshot.Snapshot) uint64 {
	h := blake3.New(32, nil)
	write := func(parts ...string) {
		for _, p := range parts {
			h.Write([]byte(p))
			h.Write([]byte{0})
		}
	}

	write("config-error", s.ConfigError)

	specs := append([]snapshot.NormalizedSpec(nil), s.Config...)
	sort.Slice(specs, func(i, j int) bool { return specs[i].Name < specs[j].Name })
	for _, sp := range specs {
		write("spec", sp.Name, sp.SourceURL, sp.Prefix)
		write(sp.Include...)
		write(sp.Impls...)
	}

	implKeys := make([]snapshot.ImplKey, 0, len(s.ForwardByImpl))
	for k := range s.ForwardByImpl {
		implKeys = append(implKeys, k)
	}
	sort.Slice(implKeys, func(i, j int) bool {
		if implKeys[i].Spec != implKeys[j].Spec {
			return implKeys[i].Spec < implKeys[j].Spec
		}
		return implKeys[i].Impl < implKeys[j].Impl
	})
	for _, k := range implKeys {
		write("impl", k.Spec, k.Impl)
		for _, rr := range s.ForwardByImpl[k] {
			write("rule", rr.Definition.ID.String(), rr.Definition.Body)
			writeRefs(write, rr.Impl)
			writeRefs(write, rr.Verify)
			writeRefs(write, rr.Depends)
			writeRefs(write, rr.Related)
		}
	}

	filePaths := make([]string, 0, len(s.ReverseByFile))
	for p := range s.ReverseByFile {
		filePaths = append(filePaths, p)
	}
	sort.Strings(filePaths)
	for _, p := range filePaths {
		fe := s.ReverseByFile[p]
		write("file", fe.Path, strconv.Itoa(fe.Total), strconv.Itoa(fe.Covered))
		for _, u := range fe.CodeUnits {
			write("unit", u.Kind, u.Name)
			write(u.RuleIDs...)
		}
	}

	srPaths := make([]string, 0, len(s.SourceReqsByFile))
	for p := range s.SourceReqsByFile {
		srPaths = append(srPaths, p)
	}
	sort.Strings(srPaths)
	for _, p := range srPaths {
		write("sourcereqs", p)
		writeRefs(write, s.SourceReqsByFile[p])
	}

	specNames := make([]string, 0, len(s.SpecsContent))
	for n := range s.SpecsContent {
		specNames = append(specNames, n)
	}
	sort.Strings(specNames)
	for _, n := range specNames {
		sc := s.SpecsContent[n]
		write("speccontent", n, sc.SourceFile, sc.Content)
	}

	diagPaths := make([]string, 0, len(s.WorkspaceDiagnostics))
	for p := range s.WorkspaceDiagnostics {
		diagPaths = append(diagPaths, p)
	}
	sort.Strings(diagPaths)
	for _, p := range diagPaths {
		write("diagpath", p)
		for _, d := range s.WorkspaceDiagnostics[p] {
			write("diag", string(d.Kind), string(d.Severity), d.Spec, d.Path, strconv.Itoa(d.Line), d.Message, d.RuleID)
		}
	}

	sum := h.Sum(nil)
	var v uint64
	for i := 0; i < 8 && i < len(sum); i++ {
		v = v<<8 | uint64(sum[i])
	}
	return v
}

func writeRefs(write func(...string), refs []snapshot.Reference) {
	for _, r := range refs {
		write("ref", r.Prefix, string(r.Verb), r.ID.String(), r.Path, strconv.Itoa(r.Line), r.Unit)
	}
}
