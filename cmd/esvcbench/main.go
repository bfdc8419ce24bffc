// Command esvcbench wires the core packages together over a fixed,
// non-interactive scenario and prints the resulting trace and final
// payload. It is a demonstration/benchmark harness, not a CLI front end
// (spec.md's Non-goals exclude an interactive surface) — its only flags
// are an optional config path and an optional directory to persist the
// graph into (which also prints its DOT rendering).
package main

import (
	"bytes"
	"flag"
	"fmt"
	"io"
	"os"

	"esvc/internal/econfig"
	"esvc/internal/ehash"
	"esvc/internal/graph"
	"esvc/internal/obs"
	"esvc/internal/persist"
	"esvc/internal/replayengine"
	"esvc/internal/workcache"
)

// scenarioStep is one (needle, replacement) event to shelve in order,
// mirroring spec.md §8 scenario 2 ("Indirect dep").
type scenarioStep struct {
	needle, replacement string
}

var indirectDepScenario = []scenarioStep{
	{"Hi", "Hello UwU"},
	{"UwU", "World"},
	{"what", "wow"},
	{"s up", "sup"},
	{"??", "!"},
	{"sup!", "soap?"},
	{"p", "np"},
}

const indirectDepInitial = "Hi, what's up??"

func main() {
	configPath := flag.String("config", "", "optional YAML config path (see internal/econfig)")
	baseDir := flag.String("base-dir", "", "optional directory to persist the graph/cache snapshot into")
	flag.Parse()

	if err := run(*configPath, *baseDir, os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(configPath, baseDir string, out io.Writer) error {
	cfg := econfig.DefaultConfig()
	if configPath != "" {
		loaded, err := econfig.Load(configPath)
		if err != nil {
			return fmt.Errorf("esvcbench: %w", err)
		}
		cfg = loaded
	}

	level, err := obs.ParseLevel(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("esvcbench: %w", err)
	}
	logger := obs.NewLogger(level, nil)
	metrics := obs.NewMetrics()
	recorder := obs.NewRecorder(logger, metrics, "indirect-dep")

	g := graph.New()
	eng := replayengine.Engine{}
	wc := workcache.New(g, eng, []byte(indirectDepInitial)).
		WithRecorder(recorder).
		WithRecentCache(cfg.CacheCapacity)

	var seed []ehash.Hash
	for _, step := range indirectDepScenario {
		h, err := wc.ShelveEvent(seed, replayengine.CmdReplace, replayengine.EncodeArg(step.needle, step.replacement))
		if err != nil {
			return fmt.Errorf("esvcbench: shelve %q->%q: %w", step.needle, step.replacement, err)
		}
		if h == nil {
			logger.WithField("needle", step.needle).Warn("esvcbench: step was a no-op, skipping")
			continue
		}
		seed = append(seed, *h)
	}

	targets := make(map[ehash.Hash]graph.IncludeSpec, len(seed))
	for _, h := range seed {
		targets[h] = graph.IncludeAll
	}
	payload, _, err := wc.RunForeachRecursively(targets)
	if err != nil {
		return fmt.Errorf("esvcbench: replay: %w", err)
	}

	fmt.Fprintf(out, "final payload: %q\n", string(payload))

	var traceBuf bytes.Buffer
	if err := recorder.Trace().Dump(&traceBuf); err != nil {
		return fmt.Errorf("esvcbench: trace: %w", err)
	}
	fmt.Fprintf(out, "trace: %s\n", traceBuf.String())

	if baseDir != "" {
		store, err := persist.NewStore(baseDir)
		if err != nil {
			return fmt.Errorf("esvcbench: %w", err)
		}
		if err := store.SaveGraph(g); err != nil {
			return fmt.Errorf("esvcbench: save graph: %w", err)
		}
		fmt.Fprintf(out, "dot:\n%s", persist.DOT(g))
	}

	return nil
}
