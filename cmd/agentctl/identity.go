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
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sage-x-project/agentcrypt/did"
	"github.com/sage-x-project/agentcrypt/identity"
)

var identityOutFile string

var identityCmd = &cobra.Command{
	Use:   "identity",
	Short: "Generate and inspect agentcrypt identities",
}

var identityGenerateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate a new Ed25519 identity keypair and its did:key identifier",
	Long: `Generate a fresh Ed25519 identity keypair.

The keypair's seed is the secret this agent uses to derive session shared
secrets and sign envelopes — treat it like a private key, because it is
one. Without --output the result is written to stdout; redirect or use
--output for anything beyond a quick demo.`,
	Example: `  # Generate an identity and print it to stdout
  agentctl identity generate

  # Generate an identity and save it to a file
  agentctl identity generate --output alice.json`,
	RunE: runIdentityGenerate,
}

var identityShowCmd = &cobra.Command{
	Use:   "show <identity-file>",
	Short: "Print the did:key identifier for a saved identity file",
	Args:  cobra.ExactArgs(1),
	RunE:  runIdentityShow,
}

func init() {
	rootCmd.AddCommand(identityCmd)
	identityCmd.AddCommand(identityGenerateCmd)
	identityCmd.AddCommand(identityShowCmd)

	identityGenerateCmd.Flags().StringVarP(&identityOutFile, "output", "o", "", "Output file (default: stdout)")
}

// identityFile is the on-disk shape of a saved identity. Seed is the raw
// 32-byte Ed25519 seed, base64-encoded; it must never be logged or printed
// outside of this file format.
type identityFile struct {
	DID  string `json:"did"`
	Seed string `json:"seed"`
}

func runIdentityGenerate(cmd *cobra.Command, args []string) error {
	kp, err := identity.GenerateIdentityKeyPair()
	if err != nil {
		return fmt.Errorf("generate identity: %w", err)
	}

	out := identityFile{
		DID:  did.EncodeKey(kp.VerifyKey),
		Seed: base64.StdEncoding.EncodeToString(kp.Seed()),
	}
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal identity: %w", err)
	}
	data = append(data, '\n')

	if identityOutFile == "" {
		_, err = os.Stdout.Write(data)
		return err
	}
	if err := os.WriteFile(identityOutFile, data, 0o600); err != nil {
		return fmt.Errorf("write %s: %w", identityOutFile, err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "wrote identity %s to %s\n", out.DID, identityOutFile)
	return nil
}

func runIdentityShow(cmd *cobra.Command, args []string) error {
	_, kp, err := loadIdentityFile(args[0])
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), did.EncodeKey(kp.VerifyKey))
	return nil
}

// loadIdentityFile reads and reconstructs an identity saved by
// "identity generate --output".
func loadIdentityFile(path string) (identityFile, *identity.IdentityKeyPair, error) {
	var f identityFile
	data, err := os.ReadFile(path)
	if err != nil {
		return f, nil, fmt.Errorf("read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, &f); err != nil {
		return f, nil, fmt.Errorf("parse %s: %w", path, err)
	}
	seed, err := base64.StdEncoding.DecodeString(f.Seed)
	if err != nil {
		return f, nil, fmt.Errorf("decode seed in %s: %w", path, err)
	}
	kp, err := identity.FromSeed(seed)
	if err != nil {
		return f, nil, err
	}
	return f, kp, nil
}
