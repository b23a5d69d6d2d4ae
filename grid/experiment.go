// Copyright 2022 RelationalAI, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package grid

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"rankgrid/profile"
)

// Default table and field the experiment statistics are computed over.
const (
	DefaultTable = "fold"
	DefaultField = "accuracy"
)

// No profile directory for the named experiment was found.
type NoProfilesError struct {
	Path string
	Name string
}

func (e *NoProfilesError) Error() string {
	return fmt.Sprintf("no profiles for experiment '%s' in '%s'", e.Name, e.Path)
}

// Status of a grid point.
type Status int

const (
	Missing Status = iota
	Completed
	Failed
)

func (s Status) String() string {
	switch s {
	case Completed:
		return "completed"
	case Failed:
		return "failed"
	}
	return "missing"
}

// Outcome of probing one grid point. Stats and ModTime are set for
// Completed points, Err for Failed ones.
type Outcome struct {
	Status  Status
	Stats   profile.Statistics
	ModTime time.Time
	Err     error
}

// Point is a grid point together with its outcome.
type Point struct {
	Config *Configuration
	Outcome
}

// Remover deletes profile directories.
type Remover interface {
	RemoveAll(path string) error
}

type osRemover struct{}

func (osRemover) RemoveAll(path string) error {
	return os.RemoveAll(path)
}

type Option func(*Experiment)

func WithLogger(logger *slog.Logger) Option {
	return func(e *Experiment) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// Compute statistics over the given table and field.
func WithStatistics(table, field string) Option {
	return func(e *Experiment) {
		if table != "" {
			e.table = table
		}
		if field != "" {
			e.field = field
		}
	}
}

// Probe at most n grid points concurrently.
func WithWorkers(n int) Option {
	return func(e *Experiment) {
		if n > 0 {
			e.workers = n
		}
	}
}

func WithRemover(r Remover) Option {
	return func(e *Experiment) {
		if r != nil {
			e.remover = r
		}
	}
}

// Experiment ties a parameter grid to the profile directories under a root
// directory. Outcomes are computed when the experiment is built and only
// change on Refresh or DeleteFailed.
type Experiment struct {
	root    string
	name    string
	ranges  *Ranges
	results map[string]*Point
	table   string
	field   string
	workers int
	logger  *slog.Logger
	remover Remover
}

func newExperiment(root, name string, ranges *Ranges, opts []Option) *Experiment {
	e := &Experiment{
		root:    root,
		name:    name,
		ranges:  ranges.Clone(),
		results: map[string]*Point{},
		table:   DefaultTable,
		field:   DefaultField,
		workers: runtime.NumCPU(),
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		remover: osRemover{},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// New builds the experiment for an explicit grid and probes every point.
func New(ctx context.Context, root, name string, ranges *Ranges, opts ...Option) (*Experiment, error) {
	e := newExperiment(root, name, ranges, opts)
	if err := e.Refresh(ctx); err != nil {
		return nil, err
	}
	return e, nil
}

// Scan builds the experiment from the profile directories named
// "[name] ..." under root. The grid is the union of the parameters of every
// directory found.
func Scan(ctx context.Context, root, name string, opts ...Option) (*Experiment, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read '%s'", root)
	}
	prefix := "[" + name + "]"
	ranges := NewRanges()
	found := 0
	for _, entry := range entries {
		dname := entry.Name()
		if !entry.IsDir() || !strings.HasPrefix(dname, prefix) {
			continue
		}
		if rest := dname[len(prefix):]; rest != "" && rest[0] != ' ' {
			continue
		}
		config, err := ParseConfiguration(dname)
		if err != nil {
			return nil, errors.Wrapf(err, "profile '%s'", dname)
		}
		ranges = Union(ranges, config.Ranges())
		found++
	}
	if found == 0 {
		return nil, &NoProfilesError{Path: root, Name: name}
	}
	e := newExperiment(root, name, ranges, opts)
	e.logger.Debug("scanned profiles", "root", root, "name", name, "profiles", found)
	if err := e.Refresh(ctx); err != nil {
		return nil, err
	}
	return e, nil
}

func (e *Experiment) Root() string {
	return e.root
}

func (e *Experiment) Name() string {
	return e.name
}

// Returns a copy of the experiment's grid.
func (e *Experiment) Ranges() *Ranges {
	return e.ranges.Clone()
}

// Returns the configurations of every grid point, in enumeration order.
func (e *Experiment) Points() ([]*Configuration, error) {
	var result []*Configuration
	err := e.ranges.EachCombination(nil, func(c *Ranges) error {
		config, err := ConfigurationFromRanges(e.name, c)
		if err != nil {
			return err
		}
		result = append(result, config)
		return nil
	})
	return result, err
}

// Refresh probes the profile directory of every grid point again.
func (e *Experiment) Refresh(ctx context.Context) error {
	configs, err := e.Points()
	if err != nil {
		return err
	}
	results := map[string]*Point{}
	var mu sync.Mutex
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)
	for _, config := range configs {
		config := config
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			outcome, err := e.probe(config)
			if err != nil || outcome.Status == Missing {
				return err
			}
			mu.Lock()
			results[config.String()] = &Point{Config: config, Outcome: outcome}
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	e.results = results
	e.logger.Info("probed experiment",
		"name", e.name, "points", len(configs), "found", len(results))
	return nil
}

// Classify one grid point. Profile validity errors make the point Failed,
// any other error is returned.
func (e *Experiment) probe(config *Configuration) (Outcome, error) {
	dir := filepath.Join(e.root, config.String())
	info, err := os.Stat(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return Outcome{Status: Missing}, nil
		}
		return Outcome{}, errors.Wrapf(err, "failed to probe '%s'", dir)
	}
	if !info.IsDir() {
		return Outcome{Status: Missing}, nil
	}
	stats, err := e.statistics(dir)
	if err != nil {
		if profile.IsInvalid(err) {
			e.logger.Debug("failed profile", "dir", dir, "error", err)
			return Outcome{Status: Failed, ModTime: info.ModTime(), Err: err}, nil
		}
		return Outcome{}, err
	}
	return Outcome{Status: Completed, Stats: stats, ModTime: info.ModTime()}, nil
}

func (e *Experiment) statistics(dir string) (profile.Statistics, error) {
	p, err := profile.Open(dir, profile.WithLogger(e.logger))
	if err != nil {
		return profile.Statistics{}, err
	}
	return p.Statistics(e.table, e.field)
}

// Returns the point with the given configuration string.
func (e *Experiment) Lookup(name string) (*Point, bool) {
	p, ok := e.results[name]
	return p, ok
}

func (e *Experiment) collect(status Status) []*Point {
	var result []*Point
	for _, p := range e.results {
		if p.Status == status {
			result = append(result, p)
		}
	}
	return result
}

// Returns the completed points, best mean first.
func (e *Experiment) Completed() []*Point {
	result := e.collect(Completed)
	sort.Slice(result, func(i, j int) bool {
		a, b := result[i], result[j]
		if a.Stats.Mean != b.Stats.Mean {
			return a.Stats.Mean > b.Stats.Mean
		}
		return a.Config.String() < b.Config.String()
	})
	return result
}

// Returns the failed points, sorted by name.
func (e *Experiment) Failed() []*Point {
	result := e.collect(Failed)
	sortByName(result)
	return result
}

// Returns the grid points that have no profile directory, sorted by name.
func (e *Experiment) Missing() ([]*Point, error) {
	configs, err := e.Points()
	if err != nil {
		return nil, err
	}
	var result []*Point
	seen := map[string]bool{}
	for _, config := range configs {
		key := config.String()
		if _, ok := e.results[key]; ok || seen[key] {
			continue
		}
		seen[key] = true
		result = append(result, &Point{Config: config})
	}
	sortByName(result)
	return result, nil
}

func sortByName(points []*Point) {
	sort.Slice(points, func(i, j int) bool {
		return points[i].Config.String() < points[j].Config.String()
	})
}

// Filtered returns a new experiment restricted to the filtered grid. The
// receiver is not modified.
func (e *Experiment) Filtered(filter *Ranges) *Experiment {
	result := *e
	result.ranges = Filtered(e.ranges, filter)
	result.results = map[string]*Point{}
	for key, p := range e.results {
		if result.ranges.Contains(p.Config.params) {
			result.results[key] = p
		}
	}
	return &result
}

// IncompletePoints merges the parameters of every missing and failed point
// and enumerates the merged grid, keeping the keepTogether parameters
// bundled in each combination.
func (e *Experiment) IncompletePoints(keepTogether []string) ([]*Ranges, error) {
	missing, err := e.Missing()
	if err != nil {
		return nil, err
	}
	incomplete := append(missing, e.Failed()...)
	if len(incomplete) == 0 {
		return nil, nil
	}
	merged := NewRanges()
	for _, p := range incomplete {
		merged = Union(merged, p.Config.Ranges())
	}
	return merged.Combinations(keepTogether)
}

// DeleteFailed removes the profile directory of every failed point and
// forgets its outcome. Returns the removed points.
func (e *Experiment) DeleteFailed() ([]*Point, error) {
	var removed []*Point
	for _, p := range e.Failed() {
		dir := filepath.Join(e.root, p.Config.String())
		if err := e.remover.RemoveAll(dir); err != nil {
			return removed, errors.Wrapf(err, "failed to remove '%s'", dir)
		}
		e.logger.Info("removed failed profile", "dir", dir)
		delete(e.results, p.Config.String())
		removed = append(removed, p)
	}
	return removed, nil
}
