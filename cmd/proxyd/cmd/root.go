/**
* Copyright 2018 Comcast Cable Communications Management, LLC
* Licensed under the Apache License, Version 2.0 (the "License");
* you may not use this file except in compliance with the License.
* You may obtain a copy of the License at
* http://www.apache.org/licenses/LICENSE-2.0
* Unless required by applicable law or agreed to in writing, software
* distributed under the License is distributed on an "AS IS" BASIS,
* WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
* See the License for the specific language governing permissions and
* limitations under the License.
 */

// Package cmd defines proxyd's command tree: serve, validate, and
// version.
package cmd

import (
	"github.com/spf13/cobra"
)

var buildVersion = "dev"

var rootCmd = &cobra.Command{
	Use:   "proxyd",
	Short: "A programmable reverse HTTP proxy core",
	Long: `proxyd binds the servers described by a TOML configuration file,
matches inbound requests against per-server location tables, runs a
plugin pipeline, and forwards surviving requests to an upstream pool.`,
	SilenceUsage: true,
}

// Execute runs the root command, dispatching to whichever subcommand
// the arguments selected.
func Execute() error {
	return rootCmd.Execute()
}

// SetVersion records the version string main embeds at build time.
func SetVersion(v string) {
	if v != "" {
		buildVersion = v
	}
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(versionCmd)
}
