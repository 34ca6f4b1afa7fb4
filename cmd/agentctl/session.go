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
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sage-x-project/agentcrypt/e2ee"
	"github.com/sage-x-project/agentcrypt/eventbus"
)

var sessionDemoMessage string

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Exercise session establishment and envelope exchange",
}

var sessionDemoCmd = &cobra.Command{
	Use:   "demo",
	Short: "Run an in-process two-agent encrypt/sign/verify/decrypt roundtrip",
	Long: `Spins up two agentcrypt Managers in this process ("alice" and "bob"),
has alice encrypt a message to bob, transmits the resulting signed envelope
in-memory, and has bob verify and decrypt it. This is the roundtrip scenario
an integration test would drive, exposed here for manual inspection.`,
	RunE: runSessionDemo,
}

func init() {
	rootCmd.AddCommand(sessionCmd)
	sessionCmd.AddCommand(sessionDemoCmd)

	sessionDemoCmd.Flags().StringVarP(&sessionDemoMessage, "message", "m", "hello", "Plaintext message for alice to send bob")
}

func runSessionDemo(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	ctx := context.Background()

	alice, err := e2ee.Default()
	if err != nil {
		return fmt.Errorf("create alice: %w", err)
	}
	defer alice.Stop()

	bob, err := e2ee.Default()
	if err != nil {
		return fmt.Errorf("create bob: %w", err)
	}
	defer bob.Stop()

	alice.Subscribe(eventbus.All, func(evt eventbus.Event) {
		fmt.Fprintf(out, "[alice] %s session=%s\n", evt.Topic, evt.SessionID)
	})
	bob.Subscribe(eventbus.All, func(evt eventbus.Event) {
		fmt.Fprintf(out, "[bob]   %s session=%s\n", evt.Topic, evt.SessionID)
	})

	fmt.Fprintf(out, "alice: %s\n", alice.LocalDID())
	fmt.Fprintf(out, "bob:   %s\n", bob.LocalDID())

	signed, err := alice.EncryptTo(ctx, bob.LocalDID(), []byte(sessionDemoMessage))
	if err != nil {
		return fmt.Errorf("alice encrypt: %w", err)
	}
	fmt.Fprintf(out, "alice -> bob: envelope id=%s type=%s\n", signed.Envelope.ID, signed.Envelope.Type)

	plaintext, err := bob.DecryptFrom(ctx, signed)
	if err != nil {
		return fmt.Errorf("bob decrypt: %w", err)
	}
	fmt.Fprintf(out, "bob received: %q\n", string(plaintext))
	fmt.Fprintf(out, "envelope sequence: %v\n", signed.Envelope.Payload["sequence"])
	fmt.Fprintf(out, "bob's resident session count: %d\n", bob.SessionCount())

	sess, err := bob.Session(alice.LocalDID())
	if err != nil {
		return fmt.Errorf("bob lookup session with alice: %w", err)
	}
	fmt.Fprintf(out, "bob's session with alice: %s\n", sess)

	if err := bob.CloseSession(alice.LocalDID()); err != nil {
		return fmt.Errorf("bob close session with alice: %w", err)
	}
	fmt.Fprintf(out, "bob's resident session count after close: %d\n", bob.SessionCount())
	return nil
}
