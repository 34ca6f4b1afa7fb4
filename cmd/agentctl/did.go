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
	"encoding/hex"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sage-x-project/agentcrypt/did"
)

var didCmd = &cobra.Command{
	Use:   "did",
	Short: "Resolve did:key identifiers",
}

var didResolveCmd = &cobra.Command{
	Use:   "resolve <did>",
	Short: "Resolve a did:key identifier to its raw Ed25519 verify key",
	Args:  cobra.ExactArgs(1),
	Example: `  agentctl did resolve did:key:z6MkhaXgBZDvotDkL5257faiztiGiC2QtKLGpbnnEGta2doK`,
	RunE: runDIDResolve,
}

func init() {
	rootCmd.AddCommand(didCmd)
	didCmd.AddCommand(didResolveCmd)
}

func runDIDResolve(cmd *cobra.Command, args []string) error {
	verifyKey, err := did.Resolve(args[0])
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "verify_key: %s\n", hex.EncodeToString(verifyKey[:]))
	return nil
}
