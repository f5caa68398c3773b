// Package generation drives the backends: it builds one conversion tree per
// backend, renders every context and writes the artifacts under the output
// directory.
package generation

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"

	"github.com/tliron/commonlog"
	"golang.org/x/sync/errgroup"

	"github.com/ceztko/CodeBinder-sub002/internal/backend"
	"github.com/ceztko/CodeBinder-sub002/internal/backend/cgo"
	"github.com/ceztko/CodeBinder-sub002/internal/backend/clang"
	"github.com/ceztko/CodeBinder-sub002/internal/backend/jni"
	"github.com/ceztko/CodeBinder-sub002/internal/backend/napi"
	"github.com/ceztko/CodeBinder-sub002/internal/backend/objc"
	"github.com/ceztko/CodeBinder-sub002/internal/conversion"
	"github.com/ceztko/CodeBinder-sub002/internal/metadata"
)

var log = commonlog.GetLogger("codebinder.generation")

// Factory creates a configured backend.
type Factory func(opts backend.Options) backend.Backend

var registry = map[string]Factory{
	"clang": func(backend.Options) backend.Backend { return clang.New() },
	"jni":   func(opts backend.Options) backend.Backend { return jni.New(opts) },
	"napi":  func(backend.Options) backend.Backend { return napi.New() },
	"objc":  func(opts backend.Options) backend.Backend { return objc.New(opts) },
	"cgo":   func(opts backend.Options) backend.Backend { return cgo.New(opts) },
}

// Backends lists the registered backend names, sorted.
func Backends() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

type Generator struct {
	Compilation *metadata.Compilation
	// Backends to run; every registered backend when empty.
	Backends []string
	// Options per backend name.
	Options    map[string]backend.Options
	OutputPath string
	// Parallel bounds the contexts rendered at once; GOMAXPROCS when zero.
	Parallel int
}

func NewGenerator(compilation *metadata.Compilation, outputPath string) *Generator {
	return &Generator{
		Compilation: compilation,
		Options:     make(map[string]backend.Options),
		OutputPath:  outputPath,
	}
}

// Result reports one backend run.
type Result struct {
	Backend string
	// Files are the written paths relative to the backend directory.
	Files []string
	Err   error
}

type job struct {
	name    string
	backend backend.Backend
	env     *backend.Env
}

// Generate runs every selected backend. Trees are built first, one backend
// after the other; rendering then runs in parallel per backend. A failing
// backend writes nothing and does not stop the others: the returned error
// joins every backend failure.
func (generator *Generator) Generate(ctx context.Context) ([]Result, error) {
	names := generator.Backends
	if len(names) == 0 {
		names = Backends()
	}

	results := make([]Result, len(names))
	jobs := make([]*job, len(names))
	for i, name := range names {
		results[i].Backend = name
		j, err := generator.prepare(name)
		if err != nil {
			results[i].Err = err
			continue
		}
		jobs[i] = j
	}

	for i, j := range jobs {
		if j == nil {
			continue
		}
		log.Infof("%s: generating", j.name)
		artifacts, err := generator.render(ctx, j)
		if err == nil {
			results[i].Files, err = generator.write(j.name, artifacts)
		}
		if err != nil {
			results[i].Err = err
			continue
		}
		log.Infof("%s: wrote %d files", j.name, len(results[i].Files))
	}

	var errs []error
	for _, r := range results {
		if r.Err != nil {
			log.Errorf("%s: %s", r.Backend, r.Err)
			errs = append(errs, fmt.Errorf("backend %s: %w", r.Backend, r.Err))
		}
	}
	return results, errors.Join(errs...)
}

func (generator *Generator) prepare(name string) (*job, error) {
	factory, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("unknown backend %q", name)
	}
	opts := generator.Options[name]
	if opts.Namespace == "" {
		opts.Namespace = generator.Compilation.Name
	}
	b := factory(opts)
	tree, err := conversion.Build(generator.Compilation, name)
	if err != nil {
		return nil, err
	}
	return &job{name: name, backend: b, env: backend.NewEnv(tree, b, opts)}, nil
}

// render renders every context of the job's tree. Artifacts keep the
// pre-order of their contexts whatever the scheduling.
func (generator *Generator) render(ctx context.Context, j *job) ([]conversion.Artifact, error) {
	contexts := j.env.Tree.Contexts()
	rendered := make([][]conversion.Artifact, len(contexts))

	limit := generator.Parallel
	if limit <= 0 {
		limit = runtime.GOMAXPROCS(0)
	}
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(limit)
	for i, c := range contexts {
		i, c := i, c
		group.Go(func() error {
			if err := groupCtx.Err(); err != nil {
				return err
			}
			artifacts, err := j.backend.Render(j.env, c)
			if err != nil {
				return err
			}
			rendered[i] = artifacts
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}

	var out []conversion.Artifact
	seen := make(map[string]string)
	for i, artifacts := range rendered {
		for _, a := range artifacts {
			if owner, dup := seen[a.RelPath()]; dup {
				return nil, fmt.Errorf("%s is produced by both %s and %s", a.RelPath(), owner, contexts[i].Name)
			}
			seen[a.RelPath()] = contexts[i].Name
			out = append(out, a)
		}
	}
	return out, nil
}

func (generator *Generator) write(name string, artifacts []conversion.Artifact) ([]string, error) {
	root := filepath.Join(generator.OutputPath, name)
	files := make([]string, 0, len(artifacts))
	for _, a := range artifacts {
		if err := WriteFile(root, a); err != nil {
			return files, err
		}
		log.Debugf("%s: wrote %s", name, a.RelPath())
		files = append(files, a.RelPath())
	}
	return files, nil
}

// WriteFile writes an artifact below root through a temporary file renamed
// into place, so readers never see a partial file.
func WriteFile(root string, a conversion.Artifact) error {
	path := filepath.Join(root, filepath.FromSlash(a.RelPath()))
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, os.ModePerm); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	content := a.Content()
	if len(content) > 0 && content[len(content)-1] != '\n' {
		content += "\n"
	}
	if _, err := tmp.WriteString(content); err != nil {
		tmp.Close()
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
