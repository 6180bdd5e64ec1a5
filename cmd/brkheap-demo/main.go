// Command brkheap-demo is the verification harness from spec §6/§8: it
// runs the fixed allocate/fill/release sequence and prints the initial and
// final break positions, plus the break after each step when the config's
// trace flag is set. It is not part of the library's public surface.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"unsafe"

	"github.com/Masterminds/semver/v3"
	"github.com/fsnotify/fsnotify"

	"github.com/Jess-Ferguson/malloc"
)

// Exit codes reuse the taxonomy from original_source/malloc.c's header
// comment, which documents EXIT_SUCCESS/MEM_ERROR/INPUT_ERROR for the
// would-be CLI wrapper that spec.md leaves unspecified.
const (
	exitSuccess  = 0
	exitMemError = 1
	exitInput    = 2
)

// demoVersion is the build-embedded version string, parsed and validated
// with github.com/Masterminds/semver/v3 rather than printed raw, in the
// style of _examples/SeleniaProject-Orizon's own toolchain version gates.
var demoVersion = "0.1.0"

// DemoConfig is the runtime-tunable subset of the allocator's knobs,
// loaded from an optional JSON file in the stdlib flag+encoding/json
// idiom of _examples/SeleniaProject-Orizon/cmd/orizon-config/main.go.
type DemoConfig struct {
	Alignment int  `json:"alignment"`
	PageSize  int  `json:"page_size"`
	Trace     bool `json:"trace"`
}

func loadConfig(path string) (DemoConfig, error) {
	cfg := DemoConfig{Alignment: 16, PageSize: os.Getpagesize()}

	if path == "" {
		return cfg, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return cfg, err
	}
	defer f.Close()

	if err := json.NewDecoder(f).Decode(&cfg); err != nil {
		return cfg, fmt.Errorf("decode %s: %w", path, err)
	}

	return cfg, nil
}

func main() {
	var (
		showVersion bool
		configFile  string
		watch       bool
	)

	flag.BoolVar(&showVersion, "version", false, "print the demo version and exit")
	flag.StringVar(&configFile, "config", "", "optional JSON file with alignment/page_size/trace overrides")
	flag.BoolVar(&watch, "watch", false, "watch -config for changes and re-print the effective configuration")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [OPTIONS]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Runs the fixed allocate/release sequence against brkheap and prints break positions.\n\n")
		fmt.Fprintf(os.Stderr, "OPTIONS:\n")
		flag.PrintDefaults()
	}

	flag.Parse()

	if showVersion {
		v, err := semver.NewVersion(demoVersion)
		if err != nil {
			fmt.Fprintf(os.Stderr, "brkheap-demo: invalid embedded version %q: %v\n", demoVersion, err)
			os.Exit(exitInput)
		}

		fmt.Printf("brkheap-demo v%s\n", v.String())

		return
	}

	cfg, err := loadConfig(configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "brkheap-demo: %v\n", err)
		os.Exit(exitInput)
	}

	if watch && configFile != "" {
		if err := watchConfig(configFile, cfg); err != nil {
			fmt.Fprintf(os.Stderr, "brkheap-demo: watch: %v\n", err)
			os.Exit(exitInput)
		}
	}

	if err := runScenario(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "brkheap-demo: %v\n", err)
		os.Exit(exitMemError)
	}
}

// watchConfig uses fsnotify to watch configFile and blocks until it sees a
// real change (or an error), then reports it and returns so the scenario
// can run with whatever configuration was already loaded. It affects only
// the *next* process invocation's parameters (the allocator itself has no
// hot-reload, per spec §5's no-interleaving-mutation contract).
func watchConfig(path string, cfg DemoConfig) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := w.Add(path); err != nil {
		return err
	}

	fmt.Printf("watching %s for changes; effective config: %+v\n", path, cfg)

	for {
		select {
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}

			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) == 0 {
				continue
			}

			fmt.Printf("config changed (%s); effective config for this run: %+v\n", ev.Op, cfg)

			return nil
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}

			return err
		}
	}
}

// runScenario reproduces spec §8 scenario 1: allocate 312, 4234, 40,
// 33333 bytes, fill each with 'A', release in order 1, 0, 3, 2, and
// report whether the break returned to its initial value.
func runScenario(cfg DemoConfig) error {
	a := malloc.New(malloc.WithAlignment(cfg.Alignment), malloc.WithPageSize(cfg.PageSize))

	start, err := a.Break()
	if err != nil {
		return fmt.Errorf("initial break query: %w", err)
	}

	fmt.Printf("initial break: %#x\n", start)

	sizes := []int{312, 4234, 40, 33333}
	ptrs := make([]unsafe.Pointer, len(sizes))

	for i, sz := range sizes {
		p, err := a.Malloc(sz)
		if err != nil {
			return fmt.Errorf("Malloc(%d): %w", sz, err)
		}

		b := unsafe.Slice((*byte)(p), sz)
		for j := range b {
			b[j] = 'A'
		}

		ptrs[i] = p

		brk, err := a.Break()
		if err != nil {
			return fmt.Errorf("break query after Malloc(%d): %w", sz, err)
		}

		if cfg.Trace {
			fmt.Printf("Malloc(%d) -> %p, break now %#x\n", sz, p, brk)
		}
	}

	for _, idx := range []int{1, 0, 3, 2} {
		a.Free(ptrs[idx])

		brk, err := a.Break()
		if err != nil {
			return fmt.Errorf("break query after Free index %d: %w", idx, err)
		}

		if cfg.Trace {
			fmt.Printf("Free(index %d) -> break now %#x\n", idx, brk)
		}
	}

	end, err := a.Break()
	if err != nil {
		return fmt.Errorf("final break query: %w", err)
	}

	fmt.Printf("final break: %#x\n", end)

	if end != start {
		return fmt.Errorf("break did not return to its initial value (start=%#x end=%#x)", start, end)
	}

	fmt.Println("OK: break returned to its initial value")

	return nil
}
