package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/droy-go/SEEKEP/internal/cache"
	"github.com/droy-go/SEEKEP/internal/config"
	"github.com/droy-go/SEEKEP/internal/pipeline"
	"github.com/droy-go/SEEKEP/internal/stdlib"
	"github.com/droy-go/SEEKEP/internal/vm"
)

const usage = `seekep %s — the SEEKEP language

Usage:
  seekep run [--stats] [--no-cache] <file>   compile and execute a script
  seekep build [-o <out.skpb>] <file>        compile to a bundle file
  seekep exec <bundle.skpb>                  execute a pre-compiled bundle
  seekep disasm <file>                       print a script's bytecode
  seekep repl                                interactive session
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintf(os.Stderr, usage, config.Version)
		os.Exit(2)
	}

	var err error
	switch os.Args[1] {
	case "run":
		err = cmdRun(os.Args[2:])
	case "build":
		err = cmdBuild(os.Args[2:])
	case "exec":
		err = cmdExec(os.Args[2:])
	case "disasm":
		err = cmdDisasm(os.Args[2:])
	case "repl":
		err = cmdRepl()
	case "version", "--version":
		fmt.Printf("seekep %s\n", config.Version)
	default:
		// Bare "seekep script.سكب" runs the script.
		if config.HasSourceExt(os.Args[1]) {
			err = cmdRun(os.Args[1:])
		} else {
			fmt.Fprintf(os.Stderr, usage, config.Version)
			os.Exit(2)
		}
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadBundle produces an executable bundle for a source file, consulting
// the on-disk cache unless disabled. It reports whether the bundle came
// from cache.
func loadBundle(path string, noCache bool) (*vm.Bundle, bool, error) {
	source, err := os.ReadFile(path)
	if err != nil {
		return nil, false, err
	}

	var store *cache.Store
	if !noCache {
		if s, err := cache.Open(config.CachePath()); err == nil {
			store = s
			defer store.Close()
		}
		// A cache that fails to open is not fatal; the run still works,
		// just uncached.
	}

	hash := cache.HashSource(string(source))
	if store != nil {
		if data, _, ok, err := store.Get(hash); err == nil && ok {
			if bundle, err := vm.DecodeBundle(data); err == nil {
				return bundle, true, nil
			}
			// A corrupt entry falls through to a fresh compile, which
			// overwrites it below.
		}
	}

	chunk, err := pipeline.CompileSource(path, string(source))
	if err != nil {
		return nil, false, err
	}
	bundle := vm.NewBundle(chunk)

	if store != nil {
		if data, err := bundle.Encode(); err == nil {
			_ = store.Put(hash, bundle.BuildID.String(), data)
		}
	}
	return bundle, false, nil
}

func cmdRun(args []string) error {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	stats := fs.Bool("stats", false, "print compile/run statistics")
	noCache := fs.Bool("no-cache", false, "skip the compiled-bundle cache")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("run: expected exactly one script file")
	}
	path := fs.Arg(0)

	userCfg, err := config.LoadUserConfig()
	if err != nil {
		return fmt.Errorf("config.yaml: %w", err)
	}

	start := time.Now()
	bundle, cached, err := loadBundle(path, *noCache || userCfg.CacheDisabled)
	if err != nil {
		return err
	}
	compileDone := time.Now()

	machine := vm.New()
	stdlib.Install(machine)
	runErr := machine.Run(bundle.Main)

	if *stats {
		printRunStats(path, bundle, cached, compileDone.Sub(start), time.Since(compileDone))
	}
	return runErr
}

func printRunStats(path string, bundle *vm.Bundle, cached bool, compileTime, runTime time.Duration) {
	encoded, err := bundle.Encode()
	size := "?"
	if err == nil {
		size = humanize.Bytes(uint64(len(encoded)))
	}
	origin := "compiled"
	if cached {
		origin = "cache hit"
	}
	fmt.Fprintf(os.Stderr, "---\n")
	fmt.Fprintf(os.Stderr, "script:    %s\n", path)
	fmt.Fprintf(os.Stderr, "build id:  %s\n", bundle.BuildID)
	fmt.Fprintf(os.Stderr, "bundle:    %s (%s)\n", size, origin)
	fmt.Fprintf(os.Stderr, "frontend:  %s\n", compileTime.Round(time.Microsecond))
	fmt.Fprintf(os.Stderr, "execution: %s\n", runTime.Round(time.Microsecond))

	if store, err := cache.Open(config.CachePath()); err == nil {
		if entries, bytes, err := store.Stats(); err == nil {
			fmt.Fprintf(os.Stderr, "cache:     %d bundle(s), %s\n", entries, humanize.Bytes(uint64(bytes)))
		}
		store.Close()
	}
}

func cmdBuild(args []string) error {
	fs := flag.NewFlagSet("build", flag.ExitOnError)
	out := fs.String("o", "", "output bundle path")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("build: expected exactly one script file")
	}
	path := fs.Arg(0)
	if *out == "" {
		*out = config.TrimSourceExt(path) + ".skpb"
	}

	source, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	chunk, err := pipeline.CompileSource(path, string(source))
	if err != nil {
		return err
	}
	bundle := vm.NewBundle(chunk)
	if err := bundle.WriteFile(*out); err != nil {
		return err
	}
	fmt.Printf("%s (%s)\n", *out, bundle.BuildID)
	return nil
}

func cmdExec(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("exec: expected exactly one bundle file")
	}
	bundle, err := vm.ReadBundleFile(args[0])
	if err != nil {
		return err
	}
	machine := vm.New()
	stdlib.Install(machine)
	return machine.Run(bundle.Main)
}

func cmdDisasm(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("disasm: expected exactly one file")
	}
	path := args[0]

	var chunk *vm.Chunk
	if config.HasSourceExt(path) {
		source, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		chunk, err = pipeline.CompileSource(path, string(source))
		if err != nil {
			return err
		}
	} else {
		bundle, err := vm.ReadBundleFile(path)
		if err != nil {
			return err
		}
		chunk = bundle.Main
	}

	fmt.Print(vm.Disassemble(chunk, path))
	return nil
}
