package analysis

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	dmp "github.com/sergi/go-diff/diffmatchpatch"

	"codedepth/internal/callgraph"
)

var (
	diffDelStyle = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "160", Dark: "203"})
	diffAddStyle = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "28", Dark: "114"})
)

// renderPathDiff highlights where two root-to-node hop sequences
// diverge, for use in the depth-inconsistency warning logged per
// problem node. It is a diagnostic aid only; it never touches the JSON
// report.
func renderPathDiff(short, long []string) string {
	a := strings.Join(short, " > ")
	b := strings.Join(long, " > ")

	d := dmp.New()
	diffs := d.DiffMain(a, b, false)
	diffs = d.DiffCleanupSemantic(diffs)

	var sb strings.Builder
	for _, df := range diffs {
		switch df.Type {
		case dmp.DiffDelete:
			sb.WriteString(diffDelStyle.Render(df.Text))
		case dmp.DiffInsert:
			sb.WriteString(diffAddStyle.Render(df.Text))
		default:
			sb.WriteString(df.Text)
		}
	}
	return sb.String()
}

// shortestAndLongest returns the shortest and a longest path out of
// paths, by hop count.
func shortestAndLongest(paths []callgraph.Path) (shortest, longest callgraph.Path) {
	shortest, longest = paths[0], paths[0]
	for _, p := range paths[1:] {
		if len(p) < len(shortest) {
			shortest = p
		}
		if len(p) > len(longest) {
			longest = p
		}
	}
	return shortest, longest
}

func shortNames(p callgraph.Path, projectRootURI string) []string {
	out := make([]string, len(p))
	for i, it := range p {
		out[i] = shortName(it, projectRootURI)
	}
	return out
}

// LogInconsistencies emits one warning per depth-inconsistent node,
// diffing its shortest against its longest recorded path.
func LogInconsistencies(log func(msg string, kv ...any), problems map[callgraph.Key][]callgraph.Path, projectRootURI string) {
	for _, paths := range problems {
		if len(paths) < 2 {
			continue
		}
		short, long := shortestAndLongest(paths)
		log("depth-inconsistent function",
			"name", shortName(long[len(long)-1], projectRootURI),
			"shortest_depth", len(short)-1,
			"longest_depth", len(long)-1,
			"diff", renderPathDiff(shortNames(short, projectRootURI), shortNames(long, projectRootURI)),
		)
	}
}
