package hclconfig

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/vk/gridmapper/internal/arch"
	"github.com/vk/gridmapper/internal/ctxlog"
	"github.com/vk/gridmapper/internal/fsutil"
	"github.com/vk/gridmapper/internal/taskgraph"
	"github.com/zclconf/go-cty/cty"
)

// ErrInvalidInput wraps every error caused by the content of the input
// files, as opposed to I/O failures.
var ErrInvalidInput = errors.New("invalid input")

// Problem is everything loaded from a set of HCL files.
type Problem struct {
	Files     []string
	Arch      *arch.Graph
	Tasks     *taskgraph.Graph
	Placement PlacementSettings
	Routing   RoutingSettings
}

// Load parses every .hcl file below paths and builds the problem. Paths that
// do not exist are skipped.
func Load(ctx context.Context, paths ...string) (*Problem, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("HCL loader started.", "path_count", len(paths))

	files, err := findHCLFiles(paths)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%w: no .hcl files found in %v", ErrInvalidInput, paths)
	}
	logger.Debug("Discovered HCL files.", "count", len(files))

	var (
		parser  = hclparse.NewParser()
		evalCtx = evalContext()
		archs   []*architectureBlock
		graphs  []*taskGraphBlock
		p       = &Problem{Files: files}
		placed  bool
		routed  bool
	)
	for _, file := range files {
		hclFile, diags := parser.ParseHCLFile(file)
		if diags.HasErrors() {
			return nil, fmt.Errorf("%w: failed to parse HCL file %s: %w", ErrInvalidInput, file, diags)
		}
		var root fileRoot
		if diags := gohcl.DecodeBody(hclFile.Body, evalCtx, &root); diags.HasErrors() {
			return nil, fmt.Errorf("%w: failed to decode HCL file %s: %w", ErrInvalidInput, file, diags)
		}
		archs = append(archs, root.Architectures...)
		graphs = append(graphs, root.TaskGraphs...)
		for _, s := range root.Placement {
			if placed {
				return nil, fmt.Errorf("%w: %s: duplicate placement block", ErrInvalidInput, file)
			}
			p.Placement, placed = *s, true
		}
		for _, s := range root.Routing {
			if routed {
				return nil, fmt.Errorf("%w: %s: duplicate routing block", ErrInvalidInput, file)
			}
			p.Routing, routed = *s, true
		}
	}

	if len(archs) != 1 {
		return nil, fmt.Errorf("%w: expected exactly one architecture block, found %d", ErrInvalidInput, len(archs))
	}
	if len(graphs) != 1 {
		return nil, fmt.Errorf("%w: expected exactly one taskgraph block, found %d", ErrInvalidInput, len(graphs))
	}
	if p.Arch, err = buildArch(archs[0]); err != nil {
		return nil, fmt.Errorf("%w: architecture %q: %w", ErrInvalidInput, archs[0].Name, err)
	}
	if p.Tasks, err = buildTaskGraph(graphs[0]); err != nil {
		return nil, fmt.Errorf("%w: taskgraph %q: %w", ErrInvalidInput, graphs[0].Name, err)
	}

	logger.Debug("HCL loading complete.",
		"resources", p.Arch.NumResources(),
		"links", p.Arch.NumLinks(),
		"tasks", p.Tasks.NumTasks(),
		"channels", p.Tasks.NumChannels(),
	)
	return p, nil
}

// evalContext exposes the process environment to expressions as `env`, so
// a file can say `seed = env.MAPPER_SEED`.
func evalContext() *hcl.EvalContext {
	vars := make(map[string]cty.Value)
	for _, e := range os.Environ() {
		k, v, ok := strings.Cut(e, "=")
		if ok && hclsyntax.ValidIdentifier(k) {
			vars[k] = cty.StringVal(v)
		}
	}
	return &hcl.EvalContext{
		Variables: map[string]cty.Value{"env": cty.ObjectVal(vars)},
	}
}

// findHCLFiles walks all paths and returns a sorted, de-duplicated list of
// .hcl files.
func findHCLFiles(paths []string) ([]string, error) {
	seen := make(map[string]struct{})
	var all []string
	add := func(path string) {
		if _, ok := seen[path]; !ok {
			seen[path] = struct{}{}
			all = append(all, path)
		}
	}
	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, fmt.Errorf("error accessing path %s: %w", path, err)
		}
		if !info.IsDir() {
			if filepath.Ext(path) == ".hcl" {
				add(filepath.Clean(path))
			}
			continue
		}
		found, err := fsutil.FindFilesByExtension(path, ".hcl")
		if err != nil {
			return nil, err
		}
		for _, f := range found {
			add(filepath.Clean(f))
		}
	}
	slices.Sort(all)
	return all, nil
}

func buildArch(a *architectureBlock) (*arch.Graph, error) {
	b := arch.NewBuilder(a.Name).SetMetric(arch.Metric(a.Distance))
	for _, m := range a.Meshes {
		err := b.AddMesh(arch.MeshSpec{
			Rows:         m.Rows,
			Cols:         m.Cols,
			Class:        m.Class,
			Prefix:       m.Prefix,
			Capacity:     m.Capacity,
			LinkCapacity: m.LinkCapacity,
			LinkLength:   m.LinkLength,
			LinkClass:    m.LinkClass,
			OriginX:      m.OriginX,
			OriginY:      m.OriginY,
		})
		if err != nil {
			return nil, err
		}
	}
	for _, r := range a.Resources {
		attrs, err := attributeMap(r.Attributes)
		if err != nil {
			return nil, fmt.Errorf("resource %q: %w", r.Name, err)
		}
		res := arch.Resource{
			Name:       r.Name,
			Class:      r.Class,
			Capacity:   r.Capacity,
			Routable:   r.Routable,
			Cost:       r.Cost,
			Attributes: attrs,
		}
		switch {
		case r.X != nil && r.Y != nil:
			res.Coord = &arch.Coord{X: *r.X, Y: *r.Y}
		case r.X != nil || r.Y != nil:
			return nil, fmt.Errorf("resource %q: x and y must be set together", r.Name)
		}
		if _, err := b.AddResource(res); err != nil {
			return nil, err
		}
	}
	for _, l := range a.Links {
		_, err := b.AddLink(arch.LinkSpec{
			From:          l.From,
			To:            l.To,
			Capacity:      l.Capacity,
			Length:        l.Length,
			Cost:          l.Cost,
			Class:         l.Class,
			Bidirectional: l.Bidirectional,
		})
		if err != nil {
			return nil, err
		}
	}
	return b.Build()
}

// attributeMap flattens an object or map value into per-key values. A null
// or absent value yields nil.
func attributeMap(v cty.Value) (map[string]cty.Value, error) {
	if v.IsNull() {
		return nil, nil
	}
	if !v.IsWhollyKnown() {
		return nil, errors.New("attributes must be known values")
	}
	ty := v.Type()
	if !ty.IsObjectType() && !ty.IsMapType() {
		return nil, fmt.Errorf("attributes must be an object, got %s", ty.FriendlyName())
	}
	return v.AsValueMap(), nil
}

func buildTaskGraph(g *taskGraphBlock) (*taskgraph.Graph, error) {
	b := taskgraph.NewBuilder(g.Name)
	for _, t := range g.Tasks {
		if _, err := b.AddTask(t.Name, t.Class, t.Fixed); err != nil {
			return nil, err
		}
	}
	for _, c := range g.Channels {
		_, err := b.AddChannel(taskgraph.ChannelSpec{
			Name:        c.Name,
			Source:      c.Source,
			Sinks:       c.Sinks,
			Weight:      c.Weight,
			LinkClasses: c.LinkClasses,
		})
		if err != nil {
			return nil, err
		}
	}
	return b.Build()
}
