// Command adbfake-device is a networked device that adbfake can bridge to.
//
// It accepts authenticated links, answers shell commands from a table of
// canned responses and can advertise itself over mDNS.
//
// Usage:
//
//	adbfake-device [flags]
//
// Flags:
//
//	-listen string           Link address (default ":5555")
//	-serial string           Serial advertised over mDNS (default: hostname)
//	-responses string        YAML map of command line to output
//	-authorized-keys string  Comma-separated adbkey.pub files to trust
//	-allow-all               Trust any key the host presents
//	-prompt string           Shell prompt (default "generic:/ $ ")
//	-mdns                    Advertise over mDNS
//	-log-level string        Log level: debug, info, warn, error (default "info")
package main

import (
	"context"
	"crypto/rsa"
	"errors"
	"flag"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"github.com/adbfake/adbfake-go/pkg/adbkey"
	"github.com/adbfake/adbfake-go/pkg/device"
	"github.com/adbfake/adbfake-go/pkg/discovery"
	"github.com/adbfake/adbfake-go/pkg/transport"
)

// Config holds the device configuration.
type Config struct {
	Listen         string
	Serial         string
	Responses      string
	AuthorizedKeys string
	AllowAll       bool
	Prompt         string
	MDNS           bool
	LogLevel       string
}

var config Config

func init() {
	flag.StringVar(&config.Listen, "listen", ":5555", "Link address")
	flag.StringVar(&config.Serial, "serial", "", "Serial advertised over mDNS (default: hostname)")
	flag.StringVar(&config.Responses, "responses", "", "YAML map of command line to output")
	flag.StringVar(&config.AuthorizedKeys, "authorized-keys", "", "Comma-separated adbkey.pub files to trust")
	flag.BoolVar(&config.AllowAll, "allow-all", false, "Trust any key the host presents")
	flag.StringVar(&config.Prompt, "prompt", DefaultPrompt, "Shell prompt")
	flag.BoolVar(&config.MDNS, "mdns", false, "Advertise over mDNS")
	flag.StringVar(&config.LogLevel, "log-level", "info", "Log level: debug, info, warn, error")
}

func main() {
	flag.Parse()

	var level slog.Level
	if err := level.UnmarshalText([]byte(config.LogLevel)); err != nil {
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	if err := run(logger); err != nil {
		logger.Error("exiting", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	shell := &Shell{Prompt: config.Prompt}
	if config.Responses != "" {
		responses, err := LoadResponses(config.Responses)
		if err != nil {
			return err
		}
		shell.Responses = responses
	}

	var trusted []*rsa.PublicKey
	if config.AuthorizedKeys != "" {
		var err error
		trusted, err = loadAuthorizedKeys(strings.Split(config.AuthorizedKeys, ","))
		if err != nil {
			return err
		}
	}
	linkConfig := transport.LinkConfig{
		AuthorizedKeys: trusted,
		AllowKey: func(pub *rsa.PublicKey, comment string) bool {
			fp, _ := adbkey.Fingerprint(pub)
			logger.Info("host presented key", "comment", comment, "fingerprint", fp, "allowed", config.AllowAll)
			return config.AllowAll
		},
	}

	ln, err := net.Listen("tcp", config.Listen)
	if err != nil {
		return err
	}
	logger.Info("listening", "address", ln.Addr().String(), "trusted_keys", len(trusted))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if config.MDNS {
		serial := config.Serial
		if serial == "" {
			serial, _ = os.Hostname()
		}
		advertiser := discovery.NewMDNSAdvertiser(discovery.DefaultAdvertiserConfig())
		defer advertiser.StopAll()
		info := &discovery.DeviceInfo{
			Serial: serial,
			State:  initialState(config.AllowAll),
			Port:   uint16(ln.Addr().(*net.TCPAddr).Port),
		}
		if err := advertiser.Advertise(info); err != nil {
			logger.Warn("mdns advertise failed", "error", err)
		} else {
			logger.Info("advertising", "instance", discovery.InstanceName(serial), "state", info.State)
			shell.HostConnected = authorizedUpdater(advertiser, info, logger)
		}
	}

	errCh := make(chan error, 1)
	go func() { errCh <- shell.Serve(ctx, ln, linkConfig, logger) }()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigCh:
		logger.Info("received signal", "signal", sig.String())
		ln.Close()
		<-errCh
		return nil
	case err := <-errCh:
		if errors.Is(err, net.ErrClosed) {
			return nil
		}
		return err
	}
}

// initialState is the state advertised before any host has connected.
func initialState(allowAll bool) string {
	if allowAll {
		return device.StateDevice
	}
	return device.StateUnauthorized
}

// updater is the part of the advertiser that refreshes TXT records.
type updater interface {
	Update(info *discovery.DeviceInfo) error
}

// authorizedUpdater returns a callback that re-advertises info as
// "device" the first time a host gets through the handshake.
func authorizedUpdater(adv updater, info *discovery.DeviceInfo, logger *slog.Logger) func() {
	var once sync.Once
	return func() {
		once.Do(func() {
			if info.State == device.StateDevice {
				return
			}
			updated := *info
			updated.State = device.StateDevice
			if err := adv.Update(&updated); err != nil {
				logger.Warn("mdns update failed", "error", err)
				return
			}
			logger.Info("advertised state changed", "state", updated.State)
		})
	}
}
