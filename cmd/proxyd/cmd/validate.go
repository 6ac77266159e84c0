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

package cmd

import (
	"fmt"

	"github.com/Comcast/proxygate/internal/config"
	"github.com/spf13/cobra"
)

var (
	validateConfigPath string
	validateStrict     bool
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a configuration file without starting the proxy",
	RunE: func(cmd *cobra.Command, args []string) error {
		snap, err := config.Load(validateConfigPath, validateStrict)
		if err != nil {
			return err
		}
		fmt.Printf("config valid: %d upstream(s), %d location(s), %d server(s), %d plugin(s)\n",
			len(snap.Upstreams), len(snap.Locations), len(snap.Servers), len(snap.Plugins))
		return nil
	},
}

func init() {
	validateCmd.Flags().StringVarP(&validateConfigPath, "config", "c", "", "path to the TOML configuration file")
	validateCmd.Flags().BoolVar(&validateStrict, "strict", false, "reject unrecognized configuration keys")
	_ = validateCmd.MarkFlagRequired("config")
}
