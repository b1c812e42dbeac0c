package main

import (
	"context"
	"crypto/rsa"
	"fmt"
	"log/slog"
	"net"
	"os"
	"strings"

	"github.com/adbfake/adbfake-go/pkg/adbkey"
	"github.com/adbfake/adbfake-go/pkg/device"
	"github.com/adbfake/adbfake-go/pkg/transport"
	"gopkg.in/yaml.v3"
)

// DefaultPrompt ends every shell reply.
const DefaultPrompt = "generic:/ $ "

// Shell answers shell commands with canned output.
type Shell struct {
	// Responses maps a command line to its output.
	Responses map[string]string

	// Prompt is written after every reply (default: DefaultPrompt).
	Prompt string

	// HostConnected is called after a host completes the handshake (optional).
	HostConnected func()
}

// LoadResponses reads a YAML map of command line to output.
func LoadResponses(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	responses := make(map[string]string)
	if err := yaml.Unmarshal(data, &responses); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return responses, nil
}

// Respond returns the reply to one command line, prompt included.
func (s *Shell) Respond(line string) []byte {
	cmd := strings.TrimRight(line, "\r\n")
	prompt := s.Prompt
	if prompt == "" {
		prompt = DefaultPrompt
	}

	out, ok := s.Responses[cmd]
	if !ok {
		name, _, _ := strings.Cut(cmd, " ")
		out = fmt.Sprintf("/system/bin/sh: %s: inaccessible or not found\n", name)
	}
	return []byte(out + prompt)
}

// Serve accepts links on ln until it is closed.
func (s *Shell) Serve(ctx context.Context, ln net.Listener, cfg transport.LinkConfig, logger *slog.Logger) error {
	for {
		conn, err := ln.Accept()
		if err != nil {
			return err
		}
		go s.handleConn(ctx, conn, cfg, logger)
	}
}

func (s *Shell) handleConn(ctx context.Context, conn net.Conn, cfg transport.LinkConfig, logger *slog.Logger) {
	link, err := transport.Accept(ctx, conn, cfg)
	if err != nil {
		logger.Warn("handshake failed", "remote", conn.RemoteAddr().String(), "error", err)
		return
	}
	defer link.Close()
	logger.Info("host connected", "remote", link.RemoteAddr().String(), "conn_id", link.ConnID())
	if s.HostConnected != nil {
		s.HostConnected()
	}

	for {
		stream, err := link.AcceptStream(ctx)
		if err != nil {
			logger.Info("host disconnected", "conn_id", link.ConnID(), "reason", err)
			return
		}
		go s.handleStream(ctx, stream, logger)
	}
}

func (s *Shell) handleStream(ctx context.Context, stream *transport.Stream, logger *slog.Logger) {
	defer stream.Close()

	if stream.Service() != device.ShellService {
		logger.Debug("unsupported service", "service", stream.Service())
		return
	}

	line, err := stream.Read(ctx)
	if err != nil {
		return
	}
	logger.Debug("shell", "command", strings.TrimSpace(string(line)))
	if err := stream.Write(ctx, s.Respond(string(line))); err != nil {
		logger.Debug("shell reply failed", "error", err)
	}
}

// loadAuthorizedKeys parses ADB public key files.
func loadAuthorizedKeys(paths []string) ([]*rsa.PublicKey, error) {
	keys := make([]*rsa.PublicKey, 0, len(paths))
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, err
		}
		pub, _, err := adbkey.ParsePublicKey(data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", p, err)
		}
		keys = append(keys, pub)
	}
	return keys, nil
}
