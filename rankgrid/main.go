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
	"github.com/spf13/cobra"

	"rankgrid/config"
)

func addCommands(root *cobra.Command) {
	// Experiments
	cmd := &cobra.Command{
		Use:   "create name",
		Short: "Create an experiment descriptor from a ranges file",
		Args:  cobra.ExactArgs(1),
		Run:   createExperiment}
	cmd.Flags().String("ranges", "", "YAML file of parameter ranges (required)")
	cmd.MarkFlagRequired("ranges")
	cmd.Flags().StringP("output", "o", "", "descriptor file (default: stdout)")
	root.AddCommand(cmd)

	cmd = &cobra.Command{
		Use:   "results name",
		Short: "List the completed, failed and missing points of an experiment",
		Args:  cobra.ExactArgs(1),
		Run:   listResults}
	cmd.Flags().StringP("experiment", "e", "", "experiment descriptor (default: scan the profile root)")
	cmd.Flags().String("ranges", "", "YAML file of ranges restricting the grid")
	root.AddCommand(cmd)

	cmd = &cobra.Command{
		Use:   "clean name",
		Short: "Delete the profiles of failed points",
		Args:  cobra.ExactArgs(1),
		Run:   cleanFailed}
	cmd.Flags().StringP("experiment", "e", "", "experiment descriptor (default: scan the profile root)")
	root.AddCommand(cmd)

	cmd = &cobra.Command{
		Use:   "generate name",
		Short: "Write Lisp descriptors for the incomplete points of an experiment",
		Args:  cobra.ExactArgs(1),
		Run:   generateDescriptors}
	cmd.Flags().StringP("experiment", "e", "", "experiment descriptor (default: scan the profile root)")
	cmd.Flags().String("lisp-dir", "", "output directory (default: current directory)")
	cmd.Flags().StringP("prefix", "p", "", "file name prefix")
	cmd.Flags().StringArray("keep-together", nil, "parameters kept whole in every descriptor (default: maxent parameters)")
	root.AddCommand(cmd)

	// Profiles
	cmd = &cobra.Command{
		Use:   "show-schema directory",
		Short: "Show the tables of the given profile",
		Args:  cobra.ExactArgs(1),
		Run:   showSchema}
	root.AddCommand(cmd)
}

func newRootCommand() *cobra.Command {
	var root = &cobra.Command{Use: "rankgrid"}
	root.PersistentFlags().String("root", "", "profile root directory (default: current directory)")
	root.PersistentFlags().String("config", config.DefaultConfigFile, "config file")
	root.PersistentFlags().String("profile", config.DefaultConfigProfile, "config profile")
	root.PersistentFlags().BoolP("quiet", "q", false, "silence status output")
	root.PersistentFlags().String("format", "pretty", "format results, 'pretty', 'json' or 'yaml'")
	root.PersistentFlags().String("log-level", "warn", "log level, 'debug', 'info', 'warn' or 'error'")
	root.PersistentFlags().String("log-format", "text", "log format, 'text' or 'json'")
	root.PersistentFlags().Int("workers", 0, "concurrent profile probes (default: number of CPUs)")
	root.PersistentFlags().String("table", "", "statistics table (default: fold)")
	root.PersistentFlags().String("field", "", "statistics field (default: accuracy)")
	addCommands(root)
	return root
}

func main() {
	newRootCommand().Execute()
}
