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

package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"rankgrid/config"
	"rankgrid/grid"
	"rankgrid/profile"
)

// Terminates the process, replaced in tests.
var exit = os.Exit

// Represents the state used when processing a command.
type Action struct {
	cmd    *cobra.Command
	quiet  bool
	cfg    *config.Config
	logger *slog.Logger
	start  time.Time
}

func newAction(cmd *cobra.Command) *Action {
	result := &Action{cmd: cmd, start: time.Now()}
	result.quiet = result.getBool("quiet")
	result.cfg = result.loadConfig()
	result.logger = newLogger(
		result.setting("log-level", result.cfg.LogLevel),
		result.getString("log-format"),
		cmd.ErrOrStderr())
	return result
}

func (a *Action) fatal(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintf(a.cmd.ErrOrStderr(), "Error: %s\n", msg)
	exit(1)
}

func (a *Action) Context() context.Context {
	return a.cmd.Context()
}

func (a *Action) getBool(name string) bool {
	result, _ := a.cmd.Flags().GetBool(name)
	return result
}

func (a *Action) getInt(name string) int {
	result, _ := a.cmd.Flags().GetInt(name)
	return result
}

func (a *Action) getString(name string) string {
	result, _ := a.cmd.Flags().GetString(name)
	return result
}

func (a *Action) getStringArray(name string) []string {
	result, _ := a.cmd.Flags().GetStringArray(name)
	return result
}

// Returns the flag value if it was given on the command line, otherwise the
// config file value, otherwise the flag default.
func (a *Action) setting(name, value string) string {
	if a.cmd.Flags().Changed(name) || value == "" {
		return a.getString(name)
	}
	return value
}

func (a *Action) loadConfig() *config.Config {
	var cfg config.Config
	fname := a.getString("config")
	profile := a.getString("profile")
	if err := config.LoadConfigFile(fname, profile, &cfg); err != nil {
		a.fatal("%s", rtrimEol(err.Error()))
	}
	return &cfg
}

// Returns the profile root directory.
func (a *Action) root() string {
	if root := a.setting("root", a.cfg.Root); root != "" {
		return root
	}
	return "."
}

func (a *Action) workers() int {
	if a.cmd.Flags().Changed("workers") {
		return a.getInt("workers")
	}
	return a.cfg.Workers
}

func (a *Action) format() string {
	return a.setting("format", a.cfg.Format)
}

func (a *Action) gridOptions() []grid.Option {
	return []grid.Option{
		grid.WithLogger(a.logger),
		grid.WithWorkers(a.workers()),
		grid.WithStatistics(a.setting("table", a.cfg.Table), a.setting("field", a.cfg.Field)),
	}
}

// Returns the named experiment, from its descriptor file when one is given
// and by scanning the profile root otherwise.
func (a *Action) experiment(name string) (*grid.Experiment, error) {
	fname := a.getString("experiment")
	if fname == "" {
		return grid.Scan(a.Context(), a.root(), name, a.gridOptions()...)
	}
	d, err := grid.LoadDescriptor(fname)
	if err != nil {
		return nil, err
	}
	if d.Name != name {
		return nil, errors.Errorf("descriptor '%s' describes experiment '%s', not '%s'", fname, d.Name, name)
	}
	root := d.Root
	if root == "" || a.cmd.Flags().Changed("root") {
		root = a.root()
	}
	opts := append(d.Options(), a.gridOptions()...)
	return grid.New(a.Context(), root, d.Name, d.Ranges, opts...)
}

// Returns the parameters kept whole in every generated descriptor: the
// command line list, else the config file list, else the maxent parameters
// of the grid.
func (a *Action) keepTogether(ranges *grid.Ranges) []string {
	if names := a.getStringArray("keep-together"); len(names) > 0 {
		return names
	}
	if len(a.cfg.KeepTogether) > 0 {
		return a.cfg.KeepTogether
	}
	var result []string
	for _, name := range grid.MaxentParameters {
		if ranges.Has(name) {
			result = append(result, name)
		}
	}
	return result
}

func newLogger(level, format string, w io.Writer) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "info":
		lvl = slog.LevelInfo
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelWarn
	}
	opts := &slog.HandlerOptions{Level: lvl}
	if format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func isNil(v interface{}) bool {
	switch v.(type) {
	case string:
		return false
	}
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface:
		return rv.IsNil()
	}
	return false
}

func rtrimEol(value string) string {
	return strings.TrimRight(value, "\r\n")
}

func showJSON(w io.Writer, v interface{}) error {
	e := json.NewEncoder(w)
	e.SetIndent("", "  ")
	return e.Encode(v)
}

func showYAML(w io.Writer, v interface{}) error {
	e := yaml.NewEncoder(w)
	e.SetIndent(2)
	if err := e.Encode(v); err != nil {
		return err
	}
	return e.Close()
}

func (a *Action) showValue(v interface{}) error {
	w := a.cmd.OutOrStdout()
	switch vv := v.(type) {
	case string:
		fmt.Fprintln(w, rtrimEol(vv))
		return nil
	default:
		if isNil(v) {
			return nil
		}
		switch a.format() {
		case "pretty":
			if s, ok := v.(Showable); ok {
				s.Show(w)
				return nil
			}
		case "yaml":
			return showYAML(w, v)
		case "json":
			break // default
		}
		return showJSON(w, v)
	}
}

func (a *Action) Append(format string, args ...interface{}) *Action {
	if a.quiet {
		return a
	}
	fmt.Fprintf(a.cmd.ErrOrStderr(), format, args...)
	return a
}

// Show the action banner message.
func (a *Action) Start(format string, args ...interface{}) *Action {
	if a.quiet {
		return a
	}
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintf(a.cmd.ErrOrStderr(), "%s .. ", msg)
	return a
}

// Update the action banner, show the result and exit.
func (a *Action) Exit(result interface{}, err error) {
	delta := time.Since(a.start).Seconds()
	if err == nil {
		a.Append("Ok (%.1fs)\n", delta)
		err = a.showValue(result)
		if err == nil {
			exit(0)
			return
		}
	} else {
		a.Append("(%.1fs)\n", delta)
	}
	a.logger.Debug("command failed", "command", a.cmd.Name(), "error", err)
	fmt.Fprintf(a.cmd.ErrOrStderr(), "Error: %s\n", rtrimEol(err.Error()))
	exit(1)
}

//
// Experiments
//

func createExperiment(cmd *cobra.Command, args []string) {
	// assert len(args) == 1
	action := newAction(cmd)
	name := args[0]
	action.Start("Create experiment '%s'", name)
	result, err := action.create(name)
	action.Exit(result, err)
}

func (a *Action) create(name string) (interface{}, error) {
	ranges, err := grid.LoadRanges(a.getString("ranges"))
	if err != nil {
		return nil, err
	}
	root, err := filepath.Abs(a.root())
	if err != nil {
		return nil, errors.Wrapf(err, "invalid root '%s'", a.root())
	}
	e, err := grid.New(a.Context(), root, name, ranges, a.gridOptions()...)
	if err != nil {
		return nil, err
	}
	d := e.Descriptor()
	a.logger.Info("created experiment",
		"name", name, "points", ranges.GridSize(), "completed", len(e.Completed()))
	if fname := a.getString("output"); fname != "" {
		return nil, d.Save(fname)
	}
	return &descriptorReport{d}, nil
}

func listResults(cmd *cobra.Command, args []string) {
	// assert len(args) == 1
	action := newAction(cmd)
	name := args[0]
	action.Start("Results of experiment '%s'", name)
	result, err := action.results(name)
	action.Exit(result, err)
}

func (a *Action) results(name string) (interface{}, error) {
	e, err := a.experiment(name)
	if err != nil {
		return nil, err
	}
	if fname := a.getString("ranges"); fname != "" {
		filter, err := grid.LoadRanges(fname)
		if err != nil {
			return nil, err
		}
		e = e.Filtered(filter)
	}
	return newResultsReport(e)
}

func cleanFailed(cmd *cobra.Command, args []string) {
	// assert len(args) == 1
	action := newAction(cmd)
	name := args[0]
	action.Start("Delete failed profiles of experiment '%s'", name)
	result, err := action.clean(name)
	action.Exit(result, err)
}

func (a *Action) clean(name string) (interface{}, error) {
	e, err := a.experiment(name)
	if err != nil {
		return nil, err
	}
	removed, err := e.DeleteFailed()
	result := &cleanReport{Experiment: name, Removed: []string{}}
	for _, p := range removed {
		result.Removed = append(result.Removed, p.Config.String())
	}
	return result, err
}

func generateDescriptors(cmd *cobra.Command, args []string) {
	// assert len(args) == 1
	action := newAction(cmd)
	name := args[0]
	action.Start("Generate descriptors for experiment '%s'", name)
	result, err := action.generate(name)
	action.Exit(result, err)
}

func (a *Action) generate(name string) (interface{}, error) {
	e, err := a.experiment(name)
	if err != nil {
		return nil, err
	}
	keep := a.keepTogether(e.Ranges())
	combos, err := e.IncompletePoints(keep)
	if err != nil {
		return nil, err
	}
	dir := a.setting("lisp-dir", a.cfg.LispDir)
	if dir == "" {
		dir = "."
	}
	gen := &generator{
		dir:          dir,
		prefix:       a.setting("prefix", a.cfg.Prefix),
		name:         name,
		keepTogether: keep,
	}
	files, err := gen.writeAll(combos)
	a.logger.Info("generated descriptors", "name", name, "files", len(files))
	return &generateReport{Experiment: name, Files: files}, err
}

//
// Profiles
//

func showSchema(cmd *cobra.Command, args []string) {
	// assert len(args) == 1
	action := newAction(cmd)
	dir := args[0]
	action.Start("Show schema of '%s'", dir)
	p, err := profile.Open(dir, profile.WithLogger(action.logger))
	if err != nil {
		action.Exit(nil, err)
		return
	}
	action.Exit(newSchemaReport(p), nil)
}
