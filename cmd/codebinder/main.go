// Command codebinder generates native bindings for a Source Model library.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"

	"github.com/ceztko/CodeBinder-sub002/internal"
	"github.com/ceztko/CodeBinder-sub002/internal/config"
	"github.com/ceztko/CodeBinder-sub002/internal/generation"
	"github.com/ceztko/CodeBinder-sub002/internal/metadata"
)

var log = commonlog.GetLogger("codebinder")

// verbosityUsage spells out the level each -v value enables.
func verbosityUsage() string {
	var levels []string
	for v := -1; v <= 2; v++ {
		levels = append(levels, fmt.Sprintf("%d %s", v, strings.ToLower(commonlog.VerbosityToMaxLevel(v).String())))
	}
	return "Log verbosity: " + strings.Join(levels, ", ") + "."
}

func main() {
	var configPath = flag.String("config", "", "The directory containing codebinder.toml. Default: searched upwards from the working directory.")
	var sourcePath = flag.String("source", "", "The path to the source model, overriding source.path.")
	var sourceKind = flag.String("kind", "", "The source kind: model, winmd or go. Overrides source.kind.")
	var inputFilePath = flag.String("input", "", "The path to a file listing the methods and types to read from a winmd source, one per line.")
	var outputPath = flag.String("out", "", "The path where all generated files will be placed. Overrides output.dir.")
	var backends = flag.String("backends", "", "Comma separated backends to run. Default: all of "+strings.Join(generation.Backends(), ", ")+".")
	var parallel = flag.Int("parallel", 0, "The number of contexts rendered at once. Default: GOMAXPROCS.")
	var strict = flag.Bool("strict", false, "Fail instead of omitting references to internal types from a public header variant.")
	var forceClean = flag.Bool("force", false, "If given cleans a non-empty output directory without asking.")
	var dumpModel = flag.String("dump-model", "", "Write the loaded source model to this .toml or .cbor file and exit.")
	var verbose = flag.Int("v", 0, verbosityUsage())
	flag.Usage = func() {
		fmt.Fprintln(flag.CommandLine.Output(), "Generates C, JNI, N-API, Objective-C and cgo bindings for a library.")
		flag.PrintDefaults()
	}
	flag.Parse()

	commonlog.Configure(*verbose, nil)

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fatal(err)
	}
	if *sourcePath != "" {
		cfg.Source.Path = internal.Must(filepath.Abs(*sourcePath))
	}
	if *sourceKind != "" {
		cfg.Source.Kind = *sourceKind
	}
	if *outputPath != "" {
		cfg.Output.Dir = internal.Must(filepath.Abs(*outputPath))
	}
	if *backends != "" {
		cfg.Generation.Backends = strings.Split(*backends, ",")
	}
	if *parallel > 0 {
		cfg.Generation.Parallel = *parallel
	}
	if *strict {
		cfg.Generation.StrictVisibility = true
	}
	if *forceClean {
		cfg.Output.Clean = true
	}
	if *inputFilePath != "" {
		names, err := readInputFile(*inputFilePath)
		if err != nil {
			fatal(err)
		}
		cfg.Source.Include = append(cfg.Source.Include, names...)
	}
	if err := cfg.Validate(); err != nil {
		fatal(err)
	}

	ctx := context.Background()
	compilation, err := loadSource(ctx, cfg)
	if err != nil {
		fatal(err)
	}
	if *dumpModel != "" {
		if err := metadata.SaveModelFile(*dumpModel, compilation); err != nil {
			fatal(err)
		}
		log.Infof("wrote source model to %s", *dumpModel)
		return
	}
	if err := cfg.CheckRequires(compilation.Version); err != nil {
		fatal(err)
	}

	output := cfg.OutputPath()
	if err := os.MkdirAll(output, os.ModePerm); err != nil {
		fatal(err)
	}
	if err := ClearDirectoryIfNotEmpty(output, cfg.Output.Clean, os.Stdin, os.Stdout); err != nil {
		fatal(err)
	}

	generator := generation.NewGenerator(compilation, output)
	generator.Backends = cfg.Generation.Backends
	generator.Parallel = cfg.Generation.Parallel
	selected := generator.Backends
	if len(selected) == 0 {
		selected = generation.Backends()
	}
	for _, name := range selected {
		generator.Options[name] = cfg.BackendOptions(name)
	}

	results, err := generator.Generate(ctx)
	for _, r := range results {
		if r.Err == nil {
			fmt.Printf("%s: %d files\n", r.Backend, len(r.Files))
		}
	}
	if err != nil {
		fatal(err)
	}
}

func fatal(err error) {
	log.Critical(err.Error())
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}

func loadConfig(dir string) (*config.Config, error) {
	if dir != "" {
		return config.Load(dir)
	}
	cwd := internal.Must(os.Getwd())
	cfg, err := config.FindAndLoad(cwd)
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		log.Info("no " + config.FileName + " found, using defaults")
		cfg = config.Default(cwd)
	}
	return cfg, nil
}

// readInputFile reads one name per line, skipping blanks and # comments.
func readInputFile(path string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var names []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		names = append(names, line)
	}
	return names, scanner.Err()
}

func loadSource(ctx context.Context, cfg *config.Config) (*metadata.Compilation, error) {
	path := cfg.SourcePath()
	if path == "" {
		return nil, errors.New("no source model given: set source.path or -source")
	}

	switch cfg.Source.Kind {
	case config.SourceWinMd:
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			downloader := &metadata.Downloader{Package: cfg.Source.Nuget, Constraint: cfg.Source.NugetVersion}
			chosen, err := downloader.DownloadMetadata(ctx, path)
			if err != nil {
				return nil, err
			}
			log.Infof("fetched metadata version %s into %s", chosen, path)
		}
		reader, err := metadata.NewReader(path)
		if err != nil {
			return nil, err
		}
		var include map[string]bool
		if len(cfg.Source.Include) > 0 {
			include = make(map[string]bool, len(cfg.Source.Include))
			for _, name := range cfg.Source.Include {
				include[name] = true
			}
		}
		name := cfg.Project.Name
		if name == "" {
			name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		}
		return reader.Compilation(name, include)
	case config.SourceGo:
		return metadata.LoadGoPackage(path, cfg.Project.Namespace)
	}
	return metadata.LoadModelFile(path)
}

// ClearDirectoryIfNotEmpty empties path, asking on out for confirmation read
// from in unless silent.
func ClearDirectoryIfNotEmpty(path string, silent bool, in io.Reader, out io.Writer) error {
	directory, err := os.Open(path)
	if err != nil {
		return err
	}
	_, err = directory.Readdirnames(1)
	directory.Close()
	if err == io.EOF {
		return nil
	}
	if err != nil {
		return err
	}

	if !silent {
		fmt.Fprint(out, "Output directory is not empty. Continuation will result in removing all output files. Proceed? [Y/n] ")
		var response string
		fmt.Fscan(in, &response)
		if strings.ToUpper(strings.TrimSpace(response)) != "Y" {
			return errors.New("explicit agreement was not given")
		}
	}

	log.Infof("cleaning output directory %s", path)
	entries, err := os.ReadDir(path)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		if err := os.RemoveAll(filepath.Join(path, entry.Name())); err != nil {
			return err
		}
	}
	return nil
}
