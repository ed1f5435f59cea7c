// cpfind resolves resource names against a classpath of directories and
// zip archives.
//
// Usage:
//
//	cpfind [flags] NAME...
//
// For each name, cpfind prints the location of the first matching resource,
// or of every match with --all. With --cat it prints resource content
// instead. The classpath comes from --classpath, the roots listed in a
// --config YAML file, and $CLASSPATH, in that order of precedence.
//
// cpfind exits with status 1 if any name is not found.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/pflag"

	"github.com/meigma/classpath"
	"github.com/meigma/classpath/index"
	"github.com/meigma/classpath/location"
	"github.com/meigma/classpath/resource"
)

var errNotFound = errors.New("not found")

type options struct {
	classPath   string
	configFile  string
	all         bool
	cat         bool
	verbose     bool
	compression string
	maxSize     uint64
}

func main() {
	if err := run(context.Background(), os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if !errors.Is(err, errNotFound) {
			fmt.Fprintf(os.Stderr, "cpfind: %v\n", err)
		}
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	var opts options
	flagSet := pflag.NewFlagSet("cpfind", pflag.ContinueOnError)
	flagSet.SetOutput(stderr)
	flagSet.StringVarP(&opts.classPath, "classpath", "c", "", "roots separated by the OS path list separator (default $CLASSPATH)")
	flagSet.StringVarP(&opts.configFile, "config", "f", "", "YAML file listing roots and settings")
	flagSet.BoolVarP(&opts.all, "all", "a", false, "report every match, not just the first")
	flagSet.BoolVar(&opts.cat, "cat", false, "print resource content instead of locations")
	flagSet.BoolVarP(&opts.verbose, "verbose", "v", false, "log lookups and index builds to stderr")
	flagSet.StringVar(&opts.compression, "compression", "", "in-memory codec for fetched resources: none, zstd or lz4")
	flagSet.Uint64Var(&opts.maxSize, "max-size", 0, "maximum resource size in bytes (0 keeps the default)")
	flagSet.Usage = func() {
		fmt.Fprintf(stderr, "Usage: cpfind [flags] NAME...\n\nFlags:\n%s", flagSet.FlagUsages())
	}

	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}
	names := flagSet.Args()
	if len(names) == 0 {
		flagSet.Usage()
		return errors.New("no resource names given")
	}

	level := slog.LevelWarn
	if opts.verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))

	cp, roots, err := build(opts, logger)
	if err != nil {
		return err
	}
	defer cp.Close() //nolint:errcheck // Close never fails

	if err := cp.AddRoots(ctx, roots...); err != nil {
		return err
	}
	logger.Debug("classpath ready", "roots", cp.Len())

	missing := 0
	for _, name := range names {
		found, err := find(cp, name, opts, stdout)
		if err != nil {
			return err
		}
		if !found {
			logger.Warn("resource not found", "name", name)
			missing++
		}
	}
	if missing > 0 {
		return fmt.Errorf("%d of %d names: %w", missing, len(names), errNotFound)
	}
	return nil
}

// build creates the resolver from flags, the config file and the
// environment, and returns the roots to add to it.
func build(opts options, logger *slog.Logger) (*classpath.ClassPath, []location.Location, error) {
	cfg := &fileConfig{}
	if opts.configFile != "" {
		var err error
		if cfg, err = loadConfig(opts.configFile); err != nil {
			return nil, nil, err
		}
	}

	var roots []location.Location
	var err error
	switch {
	case opts.classPath != "":
		roots, err = location.SplitList(opts.classPath)
	case len(cfg.Roots) > 0:
		roots, err = cfg.locations()
	default:
		roots, err = location.SplitList(os.Getenv("CLASSPATH"))
	}
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", classpath.ErrConfiguration, err)
	}
	if len(roots) == 0 {
		return nil, nil, errors.New("empty classpath: use --classpath, --config or $CLASSPATH")
	}

	cpOpts := []classpath.Option{classpath.WithLogger(logger)}

	codecName := cfg.Compression
	if opts.compression != "" {
		codecName = opts.compression
	}
	c, err := resource.ParseCompression(codecName)
	if err != nil {
		return nil, nil, err
	}
	cpOpts = append(cpOpts, classpath.WithCompression(c))

	switch {
	case opts.maxSize > 0:
		cpOpts = append(cpOpts, classpath.WithMaxResourceSize(opts.maxSize))
	case cfg.MaxResourceSize != nil:
		cpOpts = append(cpOpts, classpath.WithMaxResourceSize(*cfg.MaxResourceSize))
	}

	if cfg.IndexCacheCapacity != 0 {
		cache, err := index.NewCache(index.WithCapacity(cfg.IndexCacheCapacity), index.WithLogger(logger))
		if err != nil {
			return nil, nil, err
		}
		cpOpts = append(cpOpts, classpath.WithIndexCache(cache))
	}

	cp, err := classpath.New(cpOpts...)
	if err != nil {
		return nil, nil, err
	}
	return cp, roots, nil
}

func find(cp *classpath.ClassPath, name string, opts options, w io.Writer) (bool, error) {
	if !opts.cat {
		var locs []location.Location
		if opts.all {
			var err error
			if locs, err = cp.LocateAll(name); err != nil {
				return false, err
			}
		} else {
			loc, ok, err := cp.LocateFirst(name)
			if err != nil || !ok {
				return false, err
			}
			locs = []location.Location{loc}
		}
		for _, loc := range locs {
			fmt.Fprintln(w, loc)
		}
		return len(locs) > 0, nil
	}

	var found []*resource.Resource
	if opts.all {
		var err error
		if found, err = cp.FetchAll(name); err != nil {
			return false, err
		}
	} else {
		res, ok, err := cp.FetchFirst(name)
		if err != nil || !ok {
			return false, err
		}
		found = []*resource.Resource{res}
	}
	for _, res := range found {
		r, err := res.Open()
		if err != nil {
			return false, err
		}
		if _, err := io.Copy(w, r); err != nil {
			return false, err
		}
	}
	return len(found) > 0, nil
}
