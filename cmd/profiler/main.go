// profiler generates a synthetic classpath and drives lookups against it
// for CPU, heap, wall-clock and trace profiling.
package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"math/rand" //nolint:gosec // intentional use for reproducible benchmarks
	"net/http"
	_ "net/http/pprof" //nolint:gosec // intentional profiling endpoint
	"os"
	"path/filepath"
	"runtime"
	"runtime/pprof"
	"runtime/trace"
	"time"

	"github.com/felixge/fgprof"
	"github.com/klauspost/compress/zip"
	"github.com/spf13/pflag"

	"github.com/meigma/classpath"
	"github.com/meigma/classpath/index"
	"github.com/meigma/classpath/location"
	"github.com/meigma/classpath/resource"
)

const (
	layoutDirs  = "dirs"
	layoutJars  = "jars"
	layoutMixed = "mixed"
)

type config struct {
	mode        string
	layout      string
	roots       int
	files       int
	fileSize    int
	dirCount    int
	compression string
	pattern     string
	fgProfile   string
	duration    time.Duration
	iterations  int
	pprofAddr   string
	cpuProfile  string
	memProfile  string
	traceFile   string
	cacheSize   int
	readRandom  bool
	missRatio   float64
	tempDir     string
	keepTemp    bool
	randomSeed  int64
	verbose     bool
}

//nolint:unused // sink variables prevent compiler optimizations in profiling
var (
	sinkBytes []byte
	sinkLoc   location.Location
	sinkCount int
)

//nolint:gocognit,gocyclo // main function complexity is acceptable for CLI tool
func main() {
	cfg := parseFlags()

	if cfg.pprofAddr != "" {
		go func() {
			log.Printf("pprof listening on %s", cfg.pprofAddr)
			//nolint:gosec // intentional pprof server without timeouts for profiling
			if err := http.ListenAndServe(cfg.pprofAddr, nil); err != nil {
				log.Printf("pprof server error: %v", err)
			}
		}()
	}

	dir, cleanup, err := setupTempDir(cfg)
	if err != nil {
		log.Fatal(err)
	}
	if cleanup != nil {
		defer cleanup() //nolint:errcheck // cleanup errors are non-fatal in profiler
	}

	roots, names, err := makeClassPath(dir, cfg)
	if err != nil {
		log.Fatal(err) //nolint:gocritic // exitAfterDefer is intentional - cleanup is best-effort
	}

	var stopFG func() error
	if cfg.fgProfile != "" {
		fgFile, fgErr := os.Create(cfg.fgProfile)
		if fgErr != nil {
			log.Fatal(fgErr)
		}
		stopFG = fgprof.Start(fgFile, fgprof.FormatPprof)
		defer func() {
			if err := stopFG(); err != nil {
				log.Printf("fgprof stop error: %v", err)
			}
			_ = fgFile.Close()
		}()
	}

	if cfg.cpuProfile != "" {
		cpuFile, cpuErr := os.Create(cfg.cpuProfile)
		if cpuErr != nil {
			log.Fatal(cpuErr)
		}
		if cpuErr = pprof.StartCPUProfile(cpuFile); cpuErr != nil {
			log.Fatal(cpuErr)
		}
		defer func() {
			pprof.StopCPUProfile()
			_ = cpuFile.Close()
		}()
	}

	if cfg.traceFile != "" {
		traceFile, traceErr := os.Create(cfg.traceFile)
		if traceErr != nil {
			log.Fatal(traceErr)
		}
		if traceErr = trace.Start(traceFile); traceErr != nil {
			log.Fatal(traceErr)
		}
		defer func() {
			trace.Stop()
			_ = traceFile.Close()
		}()
	}

	stats, err := runProfile(cfg, roots, names)
	if err != nil {
		log.Fatal(err)
	}

	if cfg.memProfile != "" {
		runtime.GC()
		f, err := os.Create(cfg.memProfile)
		if err != nil {
			log.Fatal(err)
		}
		if err := pprof.WriteHeapProfile(f); err != nil {
			log.Fatal(err)
		}
		_ = f.Close()
	}

	fmt.Printf("mode=%s layout=%s roots=%d ops=%d hits=%d bytes=%d elapsed=%s throughput=%.0f ops/s\n",
		cfg.mode,
		cfg.layout,
		len(roots),
		stats.ops,
		stats.hits,
		stats.bytes,
		stats.elapsed,
		float64(stats.ops)/stats.elapsed.Seconds(),
	)
}

type profileStats struct {
	ops     int
	hits    int
	bytes   int64
	elapsed time.Duration
}

//nolint:gocognit,gocyclo,gocritic // complexity is inherent to multi-mode profiler dispatch; hugeParam acceptable for profiler
func runProfile(cfg config, roots []location.Location, names []string) (profileStats, error) {
	ctx := context.Background()
	logger := slog.New(slog.DiscardHandler)
	if cfg.verbose {
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}
	codec, err := resource.ParseCompression(cfg.compression)
	if err != nil {
		return profileStats{}, err
	}
	cache, err := index.NewCache(index.WithCapacity(cfg.cacheSize), index.WithLogger(logger))
	if err != nil {
		return profileStats{}, err
	}
	newClassPath := func(c *index.Cache) (*classpath.ClassPath, error) {
		cp, err := classpath.New(
			classpath.WithIndexCache(c),
			classpath.WithCompression(codec),
			classpath.WithLogger(logger),
		)
		if err != nil {
			return nil, err
		}
		return cp, cp.AddRoots(ctx, roots...)
	}

	cp, err := newClassPath(cache)
	if err != nil {
		return profileStats{}, err
	}
	defer cp.Close() //nolint:errcheck // Close never fails

	start := time.Now()
	var stats profileStats
	shouldContinue := func() bool {
		if cfg.iterations > 0 {
			return stats.ops < cfg.iterations
		}
		return time.Since(start) < cfg.duration
	}
	rng := rand.New(rand.NewSource(cfg.randomSeed)) //nolint:gosec // intentional for reproducible benchmarks
	next := func() string {
		return pickName(names, stats.ops, rng, cfg.readRandom, cfg.missRatio)
	}

	switch cfg.mode {
	case "fetch-first":
		for shouldContinue() {
			res, ok, err := cp.FetchFirst(next())
			if err != nil {
				return profileStats{}, err
			}
			if ok {
				content, err := res.Bytes()
				if err != nil {
					return profileStats{}, err
				}
				sinkBytes = content
				stats.bytes += int64(len(content))
				stats.hits++
			}
			stats.ops++
		}

	case "locate-first":
		for shouldContinue() {
			loc, ok, err := cp.LocateFirst(next())
			if err != nil {
				return profileStats{}, err
			}
			if ok {
				sinkLoc = loc
				stats.hits++
			}
			stats.ops++
		}

	case "fetch-all":
		for shouldContinue() {
			all, err := cp.FetchAll(next())
			if err != nil {
				return profileStats{}, err
			}
			for _, res := range all {
				stats.bytes += int64(res.Len())
			}
			sinkCount = len(all)
			stats.hits += len(all)
			stats.ops++
		}

	case "read-location":
		for shouldContinue() {
			loc, ok, err := cp.LocateFirst(next())
			if err != nil {
				return profileStats{}, err
			}
			if ok {
				content, err := classpath.Read(loc)
				if err != nil {
					return profileStats{}, err
				}
				sinkBytes = content
				stats.bytes += int64(len(content))
				stats.hits++
			}
			stats.ops++
		}

	case "add-roots-warm":
		for shouldContinue() {
			warm, err := newClassPath(cache)
			if err != nil {
				return profileStats{}, err
			}
			sinkCount = warm.Len()
			stats.ops++
		}

	case "add-roots-cold":
		for shouldContinue() {
			cold, err := index.NewCache(index.WithCapacity(cfg.cacheSize))
			if err != nil {
				return profileStats{}, err
			}
			fresh, err := newClassPath(cold)
			if err != nil {
				return profileStats{}, err
			}
			sinkCount = fresh.Len()
			stats.ops++
		}

	default:
		return profileStats{}, fmt.Errorf("unknown mode: %s", cfg.mode)
	}

	stats.elapsed = time.Since(start)
	return stats, nil
}

func parseFlags() config {
	var cfg config
	pflag.StringVar(&cfg.mode, "mode", "fetch-first", "mode: fetch-first, locate-first, fetch-all, read-location, add-roots-warm, add-roots-cold")
	pflag.StringVar(&cfg.layout, "layout", layoutMixed, "root layout: dirs, jars or mixed")
	pflag.IntVar(&cfg.roots, "roots", 8, "number of classpath roots")
	pflag.IntVar(&cfg.files, "files", 4096, "number of resources")
	pflag.IntVar(&cfg.fileSize, "file-size", 4<<10, "resource size in bytes")
	pflag.IntVar(&cfg.dirCount, "dir-count", 16, "number of packages per root")
	pflag.StringVar(&cfg.compression, "compression", "zstd", "in-memory resource codec: none, zstd or lz4")
	pflag.StringVar(&cfg.pattern, "pattern", "compressible", "pattern: compressible or random")
	pflag.StringVar(&cfg.fgProfile, "fgprofile", "", "write fgprof (wall clock) profile to file")
	pflag.DurationVar(&cfg.duration, "duration", 10*time.Second, "duration to run (ignored if iterations > 0)")
	pflag.IntVar(&cfg.iterations, "iterations", 0, "number of iterations to run")
	pflag.StringVar(&cfg.pprofAddr, "pprof-addr", "", "pprof listen address (e.g. :6060)")
	pflag.StringVar(&cfg.cpuProfile, "cpuprofile", "", "write CPU profile to file")
	pflag.StringVar(&cfg.memProfile, "memprofile", "", "write heap profile to file")
	pflag.StringVar(&cfg.traceFile, "trace", "", "write trace to file")
	pflag.IntVar(&cfg.cacheSize, "cache-size", index.DefaultCapacity, "index cache capacity")
	pflag.BoolVar(&cfg.readRandom, "read-random", true, "randomize lookup name selection")
	pflag.Float64Var(&cfg.missRatio, "miss-ratio", 0, "fraction of lookups for names that do not exist")
	pflag.StringVar(&cfg.tempDir, "temp-dir", "", "directory to use for dataset")
	pflag.BoolVar(&cfg.keepTemp, "keep-temp", false, "keep temp dir after run")
	pflag.Int64Var(&cfg.randomSeed, "seed", 1, "random seed")
	pflag.BoolVarP(&cfg.verbose, "verbose", "v", false, "log resolver events to stderr")
	pflag.Parse()
	if cfg.roots < 1 {
		log.Fatal("roots must be positive")
	}
	return cfg
}

func pickName(names []string, idx int, rng *rand.Rand, random bool, missRatio float64) string {
	if missRatio > 0 && rng.Float64() < missRatio {
		return fmt.Sprintf("missing/res%05d.dat", idx)
	}
	if random {
		return names[rng.Intn(len(names))]
	}
	return names[idx%len(names)]
}

//nolint:gocritic // hugeParam acceptable for config struct in CLI tool
func setupTempDir(cfg config) (string, func() error, error) {
	if cfg.tempDir != "" {
		return cfg.tempDir, nil, os.MkdirAll(cfg.tempDir, 0o755) //nolint:gosec // 0o755 is intentional for profiler temp dirs
	}
	dir, err := os.MkdirTemp("", "classpath-profiler-*")
	if err != nil {
		return "", nil, err
	}
	cleanup := func() error {
		if cfg.keepTemp {
			return nil
		}
		return os.RemoveAll(dir)
	}
	return dir, cleanup, nil
}

// makeClassPath spreads cfg.files resources across cfg.roots roots and
// returns the roots in search order with the resource names.
//
//nolint:gocritic // hugeParam acceptable for config struct in CLI tool
func makeClassPath(dir string, cfg config) ([]location.Location, []string, error) {
	dirCount := max(cfg.dirCount, 1)
	rng := rand.New(rand.NewSource(cfg.randomSeed)) //nolint:gosec // intentional use for reproducible benchmarks

	perRoot := make([]map[string][]byte, cfg.roots)
	for i := range perRoot {
		perRoot[i] = make(map[string][]byte)
	}
	names := make([]string, 0, cfg.files)
	for i := range cfg.files {
		name := fmt.Sprintf("pkg%02d/res%05d.dat", i%dirCount, i)
		content, err := makeContent(i, cfg.fileSize, cfg.pattern, rng)
		if err != nil {
			return nil, nil, err
		}
		perRoot[i%cfg.roots][name] = content
		names = append(names, name)
	}

	roots := make([]location.Location, 0, cfg.roots)
	for i, files := range perRoot {
		archive := cfg.layout == layoutJars || (cfg.layout == layoutMixed && i%2 == 1)
		var root string
		var err error
		if archive {
			root = filepath.Join(dir, fmt.Sprintf("root%02d.jar", i))
			err = writeJar(root, files)
		} else {
			root = filepath.Join(dir, fmt.Sprintf("root%02d", i))
			err = writeDir(root, files)
		}
		if err != nil {
			return nil, nil, err
		}
		roots = append(roots, location.File(root))
	}
	return roots, names, nil
}

func makeContent(i, size int, pattern string, rng *rand.Rand) ([]byte, error) {
	content := make([]byte, size)
	switch pattern {
	case "random":
		if _, err := rng.Read(content); err != nil {
			return nil, err
		}
	default:
		fillByte := byte('a' + (i % 26))
		for j := range content {
			content[j] = fillByte
		}
		if len(content) > 0 {
			content[0] = byte(i)
		}
	}
	return content, nil
}

func writeDir(root string, files map[string][]byte) error {
	for name, content := range files {
		path := filepath.Join(root, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil { //nolint:gosec // 0o755 is intentional for profiler
			return err
		}
		if err := os.WriteFile(path, content, 0o644); err != nil { //nolint:gosec // 0o644 is intentional for profiler test files
			return err
		}
	}
	return nil
}

func writeJar(path string, files map[string][]byte) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	zw := zip.NewWriter(f)
	for name, content := range files {
		w, err := zw.CreateHeader(&zip.FileHeader{Name: name, Method: zip.Deflate})
		if err != nil {
			return err
		}
		if _, err := w.Write(content); err != nil {
			return err
		}
	}
	return zw.Close()
}
