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
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"

	"github.com/sage-x-project/agentcrypt/e2ee"
	"github.com/sage-x-project/agentcrypt/pkg/version"
	"github.com/sage-x-project/agentcrypt/session"
)

var (
	dialAddr     string
	dialIdentity string
	dialTo       string
	dialMessage  string
)

var dialCmd = &cobra.Command{
	Use:   "dial",
	Short: "Connect to an agent-relay serve endpoint and send one encrypted envelope",
	RunE:  runDial,
}

func init() {
	rootCmd.AddCommand(dialCmd)
	dialCmd.Flags().StringVar(&dialAddr, "addr", "ws://127.0.0.1:8787/ws", "WebSocket URL of a running 'agent-relay serve'")
	dialCmd.Flags().StringVar(&dialIdentity, "identity", "", "Path to an identity file from 'agentctl identity generate' (required)")
	dialCmd.Flags().StringVar(&dialTo, "to", "", "Recipient did:key identifier (required)")
	dialCmd.Flags().StringVar(&dialMessage, "message", "hello", "Plaintext message to send")
	dialCmd.MarkFlagRequired("identity")
	dialCmd.MarkFlagRequired("to")
}

func runDial(cmd *cobra.Command, args []string) error {
	local, err := loadIdentity(dialIdentity)
	if err != nil {
		return err
	}

	manager := e2ee.NewManager(local, session.Config{})
	defer manager.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	signed, err := manager.EncryptTo(ctx, dialTo, []byte(dialMessage))
	if err != nil {
		return fmt.Errorf("encrypt to %s: %w", dialTo, err)
	}

	headers := http.Header{"User-Agent": []string{version.UserAgent()}}
	dialer := &websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, dialAddr, headers)
	if err != nil {
		return fmt.Errorf("dial %s: %w", dialAddr, err)
	}
	defer conn.Close()

	if err := conn.SetWriteDeadline(time.Now().Add(10 * time.Second)); err != nil {
		return err
	}
	if err := conn.WriteJSON(signed); err != nil {
		return fmt.Errorf("send envelope: %w", err)
	}

	var ack ackMessage
	if err := conn.SetReadDeadline(time.Now().Add(10 * time.Second)); err != nil {
		return err
	}
	if err := conn.ReadJSON(&ack); err != nil {
		return fmt.Errorf("read ack: %w", err)
	}
	if !ack.OK {
		return fmt.Errorf("relay rejected envelope: %s", ack.Error)
	}

	fmt.Printf("agent-relay: %s delivered to %s\n", manager.LocalDID(), dialTo)
	return nil
}
