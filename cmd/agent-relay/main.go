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

// Command agent-relay is a minimal WebSocket transport demo: it exchanges
// already-encrypted, already-signed envelope.SignedEnvelope values between
// two processes. It does not implement store-and-forward routing, delivery
// retries, or multi-hop relaying — those are transport-layer concerns the
// core deliberately leaves to the boundary.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sage-x-project/agentcrypt/pkg/version"
)

var rootCmd = &cobra.Command{
	Use:     "agent-relay",
	Short:   "Exchange signed agentcrypt envelopes over a WebSocket connection",
	Version: version.Short(),
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
