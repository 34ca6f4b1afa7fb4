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
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"

	"github.com/sage-x-project/agentcrypt/config"
	"github.com/sage-x-project/agentcrypt/e2ee"
	"github.com/sage-x-project/agentcrypt/envelope"
	"github.com/sage-x-project/agentcrypt/internal/logger"
	"github.com/sage-x-project/agentcrypt/internal/metrics"
	"github.com/sage-x-project/agentcrypt/session"
	"github.com/sage-x-project/agentcrypt/storage/audit"
)

var (
	serveAddr        string
	serveIdentity    string
	serveMetricsAddr string
	serveConfigDir   string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Accept WebSocket connections and decrypt incoming signed envelopes",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveAddr, "addr", ":8787", "Listen address")
	serveCmd.Flags().StringVar(&serveIdentity, "identity", "", "Path to an identity file from 'agentctl identity generate' (required)")
	serveCmd.Flags().StringVar(&serveMetricsAddr, "metrics-addr", "", "Override config's metrics address (e.g. :9090)")
	serveCmd.Flags().StringVar(&serveConfigDir, "config-dir", "", "Directory holding <environment>.yaml/default.yaml (falls back to built-in defaults)")
	serveCmd.MarkFlagRequired("identity")
}

// envServer receives signed envelopes over WebSocket and decrypts them
// under its own e2ee.Manager. Each connection is served independently;
// this mirrors the connection-tracking shape of a persistent WS server
// without any store-and-forward semantics.
type envServer struct {
	manager  *e2ee.Manager
	upgrader websocket.Upgrader

	connMu sync.RWMutex
	conns  map[*websocket.Conn]bool
}

func newEnvServer(manager *e2ee.Manager) *envServer {
	return &envServer{
		manager: manager,
		upgrader: websocket.Upgrader{
			CheckOrigin:     func(r *http.Request) bool { return true },
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
		},
		conns: make(map[*websocket.Conn]bool),
	}
}

func (s *envServer) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(w, r, nil)
		if err != nil {
			http.Error(w, fmt.Sprintf("websocket upgrade failed: %v", err), http.StatusBadRequest)
			return
		}
		s.addConn(conn)
		defer s.removeConn(conn)
		defer conn.Close()

		s.handleConnection(r.Context(), conn)
	})
}

func (s *envServer) addConn(c *websocket.Conn) {
	s.connMu.Lock()
	defer s.connMu.Unlock()
	s.conns[c] = true
}

func (s *envServer) removeConn(c *websocket.Conn) {
	s.connMu.Lock()
	defer s.connMu.Unlock()
	delete(s.conns, c)
}

func (s *envServer) handleConnection(ctx context.Context, conn *websocket.Conn) {
	for {
		if err := conn.SetReadDeadline(time.Now().Add(60 * time.Second)); err != nil {
			return
		}

		var signed envelope.SignedEnvelope
		if err := conn.ReadJSON(&signed); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				fmt.Printf("agent-relay: read error: %v\n", err)
			}
			return
		}

		plaintext, err := s.manager.DecryptFrom(ctx, signed)
		if err != nil {
			fmt.Printf("agent-relay: decrypt from %s failed: %v\n", signed.Envelope.Sender.ID(), err)
			writeAck(conn, false, err.Error())
			continue
		}

		fmt.Printf("agent-relay: %s -> %s\n", signed.Envelope.Sender.ID(), string(plaintext))
		writeAck(conn, true, "")
	}
}

type ackMessage struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

func writeAck(conn *websocket.Conn, ok bool, errMsg string) {
	_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	_ = conn.WriteJSON(ackMessage{OK: ok, Error: errMsg})
}

func runServe(cmd *cobra.Command, args []string) error {
	loaderOpts := config.DefaultLoaderOptions()
	if serveConfigDir != "" {
		loaderOpts.ConfigDir = serveConfigDir
	}
	cfg, err := config.Load(loaderOpts)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	applyLoggingConfig(cfg.Logging)

	local, err := loadIdentity(serveIdentity)
	if err != nil {
		return err
	}

	opts := []e2ee.Option{}
	if cfg.Session.ReplayProtection {
		opts = append(opts, e2ee.WithReplayProtection())
	}
	manager := e2ee.NewManager(local, session.Config{
		SessionTimeout:       cfg.Session.SessionTimeout,
		MaxSessions:          cfg.Session.MaxSessions,
		EnableForwardSecrecy: cfg.Session.EnableForwardSecrecy,
		KeyRotationInterval:  cfg.Session.KeyRotationInterval,
	}, opts...)
	defer manager.Stop()

	if cfg.Audit.DSN != "" {
		sink, err := audit.Open(context.Background(), cfg.Audit.DSN, cfg.Audit.ConnectTimeout)
		if err != nil {
			return fmt.Errorf("open audit sink: %w", err)
		}
		defer sink.Close()
		defer sink.Subscribe(manager.Bus())()
		fmt.Println("agent-relay: audit sink active")
	}

	metricsAddr := cfg.Metrics.Addr
	if serveMetricsAddr != "" {
		metricsAddr = serveMetricsAddr
	}
	if cfg.Metrics.Enabled || serveMetricsAddr != "" {
		go func() {
			fmt.Printf("agent-relay: metrics on %s%s\n", metricsAddr, cfg.Metrics.Path)
			if err := metrics.StartServer(metricsAddr, cfg.Metrics.Path); err != nil {
				fmt.Printf("agent-relay: metrics server stopped: %v\n", err)
			}
		}()
	}

	fmt.Printf("agent-relay: listening on %s as %s\n", serveAddr, manager.LocalDID())

	server := newEnvServer(manager)
	mux := http.NewServeMux()
	mux.Handle("/ws", server.Handler())
	return http.ListenAndServe(serveAddr, mux)
}

// applyLoggingConfig reconfigures the default logger from cfg, overriding
// whatever AGENTCRYPT_LOG_LEVEL set at process start.
func applyLoggingConfig(cfg config.LoggingConfig) {
	var parsed logger.Level
	switch strings.ToUpper(cfg.Level) {
	case "DEBUG":
		parsed = logger.DebugLevel
	case "WARN":
		parsed = logger.WarnLevel
	case "ERROR":
		parsed = logger.ErrorLevel
	default:
		parsed = logger.InfoLevel
	}
	l := logger.GetDefaultLogger()
	l.SetLevel(parsed)
	l.SetPrettyPrint(cfg.Format == "pretty")
	if cfg.TimeFormat != "" {
		l.SetTimeFormat(cfg.TimeFormat)
	}
}
