package persist

import (
	"fmt"
	"sort"
	"strings"

	"esvc/internal/ehash"
	"esvc/internal/graph"
	"esvc/internal/replayengine"
)

// DOT renders g as a Graphviz "digraph" for inspection: one node per
// event (labeled with its full textual hash and a human-readable rendering of
// its command), one edge per dependency (dashed for soft edges), and one
// cluster per named frontier. Adapted from
// original_source/crates/esvc-core/src/dot.rs, which itself borrows its
// structure from petgraph's dot writer; ported to plain string building
// in the teacher's strings.Builder idiom rather than a custom
// fmt.Formatter shim, since Go has no direct equivalent of Rust's
// Display/Debug generic dispatch.
func DOT(g *graph.Graph) string {
	var b strings.Builder
	b.WriteString("digraph {\n")

	hashes := make([]ehash.Hash, 0, len(g.Events))
	for h := range g.Events {
		hashes = append(hashes, h)
	}
	sort.Slice(hashes, func(i, j int) bool { return hashes[i].Less(hashes[j]) })

	for _, h := range hashes {
		ev := g.Events[h]
		label := describeEvent(ev.CmdID, ev.Arg)
		fmt.Fprintf(&b, "  %q [label=%q];\n", h.String(), h.String()+"\n"+label)
	}

	for _, h := range hashes {
		ev := g.Events[h]
		for _, d := range ev.Deps {
			style := ""
			if !d.Hard {
				style = " [style=dashed]"
			}
			fmt.Fprintf(&b, "  %q -> %q%s;\n", h.String(), d.Hash.String(), style)
		}
	}

	names := make([]string, 0, len(g.NStates))
	for n := range g.NStates {
		names = append(names, n)
	}
	sort.Strings(names)
	for _, n := range names {
		fmt.Fprintf(&b, "  subgraph %q {\n", "cluster_"+n)
		top := append([]ehash.Hash(nil), g.NStates[n]...)
		sort.Slice(top, func(i, j int) bool { return top[i].Less(top[j]) })
		for _, h := range top {
			fmt.Fprintf(&b, "    %q;\n", h.String())
		}
		b.WriteString("  }\n")
	}

	b.WriteString("}\n")
	return b.String()
}

// describeEvent renders a command for the DOT label. It recognizes the
// replayengine's replace command and falls back to a generic rendering
// for any other CmdID, since the core treats Arg as opaque.
func describeEvent(cmdID uint32, arg []byte) string {
	if cmdID == replayengine.CmdReplace {
		return replayengine.Describe(arg)
	}
	return fmt.Sprintf("cmd(%d)[%d bytes]", cmdID, len(arg))
}
