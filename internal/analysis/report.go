package analysis

import (
	"regexp"
	"strings"

	"codedepth/internal/callgraph"
)

// Report is the final two-section shape printed as pretty JSON: "ok"
// holds depth-consistent functions, "problems" holds depth-inconsistent
// ones. Each maps a short function name to its root-to-node paths,
// themselves rendered as short-name sequences.
type Report struct {
	OK       map[string][][]string `json:"ok"`
	Problems map[string][][]string `json:"problems"`
}

// shortName renders an item as "<uri-with-project-prefix-stripped>:<name>",
// truncating name at its first '(' if present.
func shortName(it callgraph.Item, projectRootURI string) string {
	path := strings.TrimPrefix(it.File, projectRootURI)
	name := it.Name
	if i := strings.IndexByte(name, '('); i >= 0 {
		name = name[:i]
	}
	return path + ":" + name
}

// BuildReport partitions depths into ok/problems via
// callgraph.Inconsistent, renders paths to short-name sequences, and
// elides any item or path whose short name matches ignoreRe.
func BuildReport(depths map[callgraph.Key][]callgraph.Path, projectRootURI string, ignoreRe *regexp.Regexp) Report {
	ok, problems := callgraph.Partition(depths)
	return Report{
		OK:       RenderSection(ok, projectRootURI, ignoreRe),
		Problems: RenderSection(problems, projectRootURI, ignoreRe),
	}
}

// RenderSection renders one ok/problems half of a Report: short names,
// with any item or hop matching ignoreRe elided.
func RenderSection(depths map[callgraph.Key][]callgraph.Path, projectRootURI string, ignoreRe *regexp.Regexp) map[string][][]string {
	out := make(map[string][][]string)
	for _, paths := range depths {
		if len(paths) == 0 {
			continue
		}
		node := paths[0][len(paths[0])-1]
		name := shortName(node, projectRootURI)
		if ignoreRe != nil && ignoreRe.MatchString(name) {
			continue
		}

		var kept [][]string
		for _, p := range paths {
			hops := make([]string, 0, len(p))
			elided := false
			for _, hop := range p {
				hn := shortName(hop, projectRootURI)
				if ignoreRe != nil && ignoreRe.MatchString(hn) {
					elided = true
					break
				}
				hops = append(hops, hn)
			}
			if elided {
				continue
			}
			kept = append(kept, hops)
		}
		if len(kept) == 0 {
			continue
		}
		out[name] = kept
	}
	return out
}
