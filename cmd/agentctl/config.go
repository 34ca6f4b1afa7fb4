// SAGE - Secure Agent Guarantee Engine
// Copyright (C) 2025 SAGE-X-project
//
// This file is part of SAGE.
//
// SAGE is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// SAGE is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with SAGE. If not, see <https://www.gnu.org/licenses/>.

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sage-x-project/agentcrypt/config"
)

var configInitEnvironment string

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Scaffold an agentcrypt configuration file",
}

var configInitCmd = &cobra.Command{
	Use:   "init <path>",
	Short: "Resolve defaults for an environment and write them to path as YAML or JSON",
	Args:  cobra.ExactArgs(1),
	RunE:  runConfigInit,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd)
	configInitCmd.Flags().StringVar(&configInitEnvironment, "environment", "", "Environment to resolve defaults for (defaults to AGENTCRYPT_ENV/ENVIRONMENT, currently "+config.GetEnvironment()+")")
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	path := args[0]

	var cfg *config.Config
	var err error
	if configInitEnvironment != "" {
		cfg, err = config.LoadForEnvironment(configInitEnvironment)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return fmt.Errorf("resolve config defaults: %w", err)
	}

	if err := config.SaveToFile(cfg, path); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "wrote %s for environment %q\n", path, cfg.Environment)
	if config.IsProduction() {
		fmt.Fprintln(out, "warning: process environment is production; review audit/metrics settings before deploying")
	}
	return nil
}
