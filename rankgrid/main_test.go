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
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	json "github.com/goccy/go-json"
	"github.com/google/go-cmp/cmp"

	"rankgrid/grid"
	"rankgrid/profile"
)

type exitCode int

// Run the command line and return its stdout, stderr and exit code. The
// exit code is -1 when cobra rejects the command line before an action runs.
func runCommand(t *testing.T, args ...string) (string, string, int) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	saved := exit
	exit = func(code int) { panic(exitCode(code)) }
	defer func() { exit = saved }()

	hasConfig := false
	for _, arg := range args {
		if arg == "--config" {
			hasConfig = true
		}
	}
	if !hasConfig {
		args = append(args, "--config", filepath.Join(t.TempDir(), "absent"))
	}
	root := newRootCommand()
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetArgs(args)

	code := -1
	func() {
		defer func() {
			if r := recover(); r != nil {
				c, ok := r.(exitCode)
				if !ok {
					panic(r)
				}
				code = int(c)
			}
		}()
		root.Execute()
	}()
	return stdout.String(), stderr.String(), code
}

const testRanges = `grandparenting: [1, 2]
ngram-size: [0, 4]
MM: tao_lmvm
variance: [1.0e-2, 1.0e-4]
`

const testRelations = `# fold level results
fold:
  f-id :integer :key
  accuracy :string
`

func configName(gp, ns int, va float64) string {
	return grid.NewConfiguration("demo", map[string]grid.Value{
		"grandparenting": gp,
		"ngram-size":     ns,
		"MM":             "tao_lmvm",
		"variance":       va,
	}).String()
}

func writeFile(t *testing.T, fname, data string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(fname), 0o755); err != nil {
		t.Fatalf("Failed to create %s: %v", filepath.Dir(fname), err)
	}
	if err := os.WriteFile(fname, []byte(data), 0o644); err != nil {
		t.Fatalf("Failed to write %s: %v", fname, err)
	}
}

// Profile root with two completed points and one failed point.
func newProfileRoot(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	done := filepath.Join(root, configName(1, 0, 1.0e-2))
	writeFile(t, filepath.Join(done, profile.RelationsFile), testRelations)
	writeFile(t, filepath.Join(done, "fold"), "1@0.5\n2@0.7\n")
	done = filepath.Join(root, configName(2, 4, 1.0e-4))
	writeFile(t, filepath.Join(done, profile.RelationsFile), testRelations)
	writeFile(t, filepath.Join(done, "fold"), "1@0.8\n")
	failed := filepath.Join(root, configName(1, 4, 1.0e-2))
	writeFile(t, filepath.Join(failed, "fold"), "1@0.9\n")
	return root
}

func createDescriptor(t *testing.T, root string) string {
	t.Helper()
	dir := t.TempDir()
	rangesFile := filepath.Join(dir, "ranges.yaml")
	writeFile(t, rangesFile, testRanges)
	fname := filepath.Join(dir, "demo.yaml")
	_, stderr, code := runCommand(t, "create", "demo", "--root", root, "--ranges", rangesFile, "-o", fname, "-q")
	if code != 0 {
		t.Fatalf("create failed with %d: %s", code, stderr)
	}
	return fname
}

func decodeResults(t *testing.T, data string) *resultsReport {
	t.Helper()
	var result resultsReport
	if err := json.Unmarshal([]byte(data), &result); err != nil {
		t.Fatalf("Failed to decode results: %v\n%s", err, data)
	}
	return &result
}

func names(points []pointReport) []string {
	var result []string
	for _, p := range points {
		result = append(result, p.Name)
	}
	return result
}

func TestCreate(t *testing.T) {
	root := newProfileRoot(t)
	fname := createDescriptor(t, root)
	d, err := grid.LoadDescriptor(fname)
	if err != nil {
		t.Fatalf("Failed to load descriptor: %v", err)
	}
	if d.Name != "demo" || d.Root != root {
		t.Errorf("Unexpected descriptor %+v", d)
	}
	if got := d.Ranges.GridSize(); got != 8 {
		t.Errorf("Expected grid size 8, got %d", got)
	}
}

func TestCreateToStdout(t *testing.T) {
	root := newProfileRoot(t)
	rangesFile := filepath.Join(t.TempDir(), "ranges.yaml")
	writeFile(t, rangesFile, testRanges)
	stdout, stderr, code := runCommand(t, "create", "demo", "--root", root, "--ranges", rangesFile)
	if code != 0 {
		t.Fatalf("create failed with %d: %s", code, stderr)
	}
	if !strings.HasPrefix(stderr, "Create experiment 'demo' .. Ok") {
		t.Errorf("Unexpected banner %q", stderr)
	}
	for _, want := range []string{"name: demo\n", "root: " + root + "\n", "  grandparenting: [1, 2]\n"} {
		if !strings.Contains(stdout, want) {
			t.Errorf("Expected %q in descriptor:\n%s", want, stdout)
		}
	}
}

func TestCreateRequiresRanges(t *testing.T) {
	_, _, code := runCommand(t, "create", "demo", "-q")
	if code != -1 {
		t.Errorf("Expected cobra to reject the command line, got exit %d", code)
	}
}

func TestResultsFromDescriptor(t *testing.T) {
	root := newProfileRoot(t)
	fname := createDescriptor(t, root)
	stdout, stderr, code := runCommand(t, "results", "demo", "--experiment", fname, "--format", "json", "-q")
	if code != 0 {
		t.Fatalf("results failed with %d: %s", code, stderr)
	}
	r := decodeResults(t, stdout)
	if r.GridSize != 8 {
		t.Errorf("Expected grid size 8, got %d", r.GridSize)
	}
	want := []string{configName(2, 4, 1.0e-4), configName(1, 0, 1.0e-2)}
	if diff := cmp.Diff(want, names(r.Completed)); diff != "" {
		t.Errorf("Completed mismatch (-want +got):\n%s", diff)
	}
	if *r.Completed[0].Mean != 0.8 || r.Completed[1].N != 2 {
		t.Errorf("Unexpected statistics %+v", r.Completed)
	}
	if len(r.Failed) != 1 || !strings.Contains(r.Failed[0].Error, "missing relations file") {
		t.Errorf("Unexpected failed points %+v", r.Failed)
	}
	if len(r.Missing) != 5 {
		t.Errorf("Expected 5 missing points, got %d", len(r.Missing))
	}
}

func TestResultsScanFiltered(t *testing.T) {
	root := newProfileRoot(t)
	filter := filepath.Join(t.TempDir(), "filter.yaml")
	writeFile(t, filter, "grandparenting: 1\n")
	stdout, stderr, code := runCommand(t, "results", "demo", "--root", root, "--ranges", filter, "--format", "json", "-q")
	if code != 0 {
		t.Fatalf("results failed with %d: %s", code, stderr)
	}
	r := decodeResults(t, stdout)
	if r.GridSize != 4 {
		t.Errorf("Expected grid size 4, got %d", r.GridSize)
	}
	if diff := cmp.Diff([]string{configName(1, 0, 1.0e-2)}, names(r.Completed)); diff != "" {
		t.Errorf("Completed mismatch (-want +got):\n%s", diff)
	}
	if len(r.Failed) != 1 || len(r.Missing) != 2 {
		t.Errorf("Expected 1 failed and 2 missing, got %d and %d", len(r.Failed), len(r.Missing))
	}
}

func TestResultsPretty(t *testing.T) {
	root := newProfileRoot(t)
	stdout, stderr, code := runCommand(t, "results", "demo", "--root", root, "-q")
	if code != 0 {
		t.Fatalf("results failed with %d: %s", code, stderr)
	}
	for _, want := range []string{"# demo (8 points in " + root + ")", "Completed (2)", "Failed (1)", "Missing (5)", "0.8000"} {
		if !strings.Contains(stdout, want) {
			t.Errorf("Expected %q in output:\n%s", want, stdout)
		}
	}
}

func TestResultsYAML(t *testing.T) {
	root := newProfileRoot(t)
	stdout, stderr, code := runCommand(t, "results", "demo", "--root", root, "--format", "yaml", "-q")
	if code != 0 {
		t.Fatalf("results failed with %d: %s", code, stderr)
	}
	if !strings.HasPrefix(stdout, "experiment: demo\n") || !strings.Contains(stdout, "grid_size: 8\n") {
		t.Errorf("Unexpected YAML output:\n%s", stdout)
	}
}

func TestResultsNoProfiles(t *testing.T) {
	_, stderr, code := runCommand(t, "results", "demo", "--root", t.TempDir(), "-q")
	if code != 1 {
		t.Errorf("Expected exit 1, got %d", code)
	}
	if !strings.Contains(stderr, "Error: no profiles for experiment 'demo'") {
		t.Errorf("Unexpected error output %q", stderr)
	}
}

func TestResultsDescriptorNameMismatch(t *testing.T) {
	root := newProfileRoot(t)
	fname := createDescriptor(t, root)
	_, stderr, code := runCommand(t, "results", "other", "--experiment", fname, "-q")
	if code != 1 || !strings.Contains(stderr, "describes experiment 'demo'") {
		t.Errorf("Expected a name mismatch error, got %d: %s", code, stderr)
	}
}

func TestConfigFile(t *testing.T) {
	root := newProfileRoot(t)
	cfg := filepath.Join(t.TempDir(), "config")
	writeFile(t, cfg, "[default]\nformat = json\n\n[lab]\nroot = "+root+"\nformat = json\nworkers = 2\n")
	stdout, stderr, code := runCommand(t, "results", "demo", "--config", cfg, "--profile", "lab", "-q")
	if code != 0 {
		t.Fatalf("results failed with %d: %s", code, stderr)
	}
	if r := decodeResults(t, stdout); len(r.Completed) != 2 {
		t.Errorf("Expected 2 completed points, got %d", len(r.Completed))
	}

	_, stderr, code = runCommand(t, "results", "demo", "--config", cfg, "--profile", "nope", "-q")
	if code != 1 || !strings.Contains(stderr, "config profile 'nope' not found") {
		t.Errorf("Expected a missing profile error, got %d: %s", code, stderr)
	}
}

func TestClean(t *testing.T) {
	root := newProfileRoot(t)
	stdout, stderr, code := runCommand(t, "clean", "demo", "--root", root, "--format", "json", "-q")
	if code != 0 {
		t.Fatalf("clean failed with %d: %s", code, stderr)
	}
	var r cleanReport
	if err := json.Unmarshal([]byte(stdout), &r); err != nil {
		t.Fatalf("Failed to decode clean report: %v", err)
	}
	failed := configName(1, 4, 1.0e-2)
	if diff := cmp.Diff([]string{failed}, r.Removed); diff != "" {
		t.Errorf("Removed mismatch (-want +got):\n%s", diff)
	}
	if _, err := os.Stat(filepath.Join(root, failed)); !os.IsNotExist(err) {
		t.Errorf("Expected failed profile to be removed, got %v", err)
	}
	if _, err := os.Stat(filepath.Join(root, configName(1, 0, 1.0e-2))); err != nil {
		t.Errorf("Expected completed profile to remain: %v", err)
	}
}

func TestGenerate(t *testing.T) {
	root := newProfileRoot(t)
	fname := createDescriptor(t, root)
	dir := filepath.Join(t.TempDir(), "lisp")
	stdout, stderr, code := runCommand(t, "generate", "demo", "--experiment", fname,
		"--lisp-dir", dir, "--prefix", "jh-", "--format", "json", "-q")
	if code != 0 {
		t.Fatalf("generate failed with %d: %s", code, stderr)
	}
	var r generateReport
	if err := json.Unmarshal([]byte(stdout), &r); err != nil {
		t.Fatalf("Failed to decode generate report: %v", err)
	}
	want := []string{
		filepath.Join(dir, "jh-grandparenting_1.ngram-size_0.lisp"),
		filepath.Join(dir, "jh-grandparenting_1.ngram-size_4.lisp"),
		filepath.Join(dir, "jh-grandparenting_2.ngram-size_0.lisp"),
		filepath.Join(dir, "jh-grandparenting_2.ngram-size_4.lisp"),
	}
	if diff := cmp.Diff(want, r.Files); diff != "" {
		t.Errorf("Files mismatch (-want +got):\n%s", diff)
	}
	for _, fname := range want {
		data, err := os.ReadFile(fname)
		if err != nil {
			t.Fatalf("Failed to read %s: %v", fname, err)
		}
		if !strings.Contains(string(data), `:MM "tao_lmvm"`) {
			t.Errorf("Expected maxent options in %s:\n%s", fname, data)
		}
	}
}

func TestGenerateKeepTogether(t *testing.T) {
	root := newProfileRoot(t)
	fname := createDescriptor(t, root)
	dir := t.TempDir()
	stdout, stderr, code := runCommand(t, "generate", "demo", "--experiment", fname, "--lisp-dir", dir,
		"--keep-together", "ngram-size", "--keep-together", "variance", "--keep-together", "MM", "--format", "json", "-q")
	if code != 0 {
		t.Fatalf("generate failed with %d: %s", code, stderr)
	}
	var r generateReport
	if err := json.Unmarshal([]byte(stdout), &r); err != nil {
		t.Fatalf("Failed to decode generate report: %v", err)
	}
	want := []string{
		filepath.Join(dir, "grandparenting_1.lisp"),
		filepath.Join(dir, "grandparenting_2.lisp"),
	}
	if diff := cmp.Diff(want, r.Files); diff != "" {
		t.Errorf("Files mismatch (-want +got):\n%s", diff)
	}
}

func TestShowSchema(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, profile.RelationsFile), testRelations+"\nitem:\n  i-id :integer :key\n  i-input :string :partial\n")
	writeFile(t, filepath.Join(dir, "fold"), "1@0.5\n2@0.7\n")
	stdout, stderr, code := runCommand(t, "show-schema", dir, "-q")
	if code != 0 {
		t.Fatalf("show-schema failed with %d: %s", code, stderr)
	}
	want := "fold: # 2 rows\n" +
		"  f-id :integer :key\n" +
		"  accuracy :string\n" +
		"\n" +
		"item: # missing data file for table 'item'\n" +
		"  i-id :integer :key\n" +
		"  i-input :string :partial\n"
	if diff := cmp.Diff(want, stdout); diff != "" {
		t.Errorf("Output mismatch (-want +got):\n%s", diff)
	}
}

func TestShowSchemaMissingRelations(t *testing.T) {
	_, stderr, code := runCommand(t, "show-schema", t.TempDir(), "-q")
	if code != 1 || !strings.Contains(stderr, "missing relations file") {
		t.Errorf("Expected a missing relations error, got %d: %s", code, stderr)
	}
}
