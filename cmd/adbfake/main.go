// Command adbfake is a fake ADB server for testing code that drives Android
// devices.
//
// It registers simulated devices, answers the operations a client sends with
// the responses declared for them, and at exit reports every expectation
// that was not met.
//
// Usage:
//
//	adbfake [flags]
//
// Flags:
//
//	-listen string        Control address (default "127.0.0.1:15037")
//	-scenario string      YAML scenario declaring devices and expectations
//	-key-dir string       Directory holding adbkey and adbkey.pub (default "~/.android")
//	-read-timeout dur     Timeout of a bridged shell command (default 10s)
//	-log-level string     Log level: debug, info, warn, error (default "info")
//	-protocol-log string  File path for protocol event logging (CBOR format)
//	-mdns                 Advertise registered devices over mDNS
//	-discover             Bridge networked devices found over mDNS
//	-interactive          Run the command console
//	-json                 Print the verification report as JSON
//	-junit string         Also write the verification report as JUnit XML to this file
//
// Examples:
//
//	# Serve a scenario and verify it on Ctrl-C
//	adbfake -scenario install.yaml
//
//	# Declare expectations by hand
//	adbfake -interactive
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/adbfake/adbfake-go/cmd/adbfake/interactive"
	"github.com/adbfake/adbfake-go/internal/reporter"
	"github.com/adbfake/adbfake-go/internal/scenario"
	"github.com/adbfake/adbfake-go/pkg/adbkey"
	"github.com/adbfake/adbfake-go/pkg/device"
	"github.com/adbfake/adbfake-go/pkg/discovery"
	adblog "github.com/adbfake/adbfake-go/pkg/log"
	"github.com/adbfake/adbfake-go/pkg/registry"
	"github.com/adbfake/adbfake-go/pkg/transport"
)

// Config holds the command configuration.
type Config struct {
	Listen      string
	Scenario    string
	KeyDir      string
	ReadTimeout time.Duration
	LogLevel    string
	ProtocolLog string
	MDNS        bool
	Discover    bool
	Interactive bool
	JSON        bool
	JUnit       string
}

var config Config

func init() {
	flag.StringVar(&config.Listen, "listen", transport.DefaultAddress, "Control address")
	flag.StringVar(&config.Scenario, "scenario", "", "YAML scenario declaring devices and expectations")
	flag.StringVar(&config.KeyDir, "key-dir", defaultKeyDir(), "Directory holding adbkey and adbkey.pub")
	flag.DurationVar(&config.ReadTimeout, "read-timeout", 10*time.Second, "Timeout of a bridged shell command (0 = none)")
	flag.StringVar(&config.LogLevel, "log-level", "info", "Log level: debug, info, warn, error")
	flag.StringVar(&config.ProtocolLog, "protocol-log", "", "File path for protocol event logging (CBOR format)")
	flag.BoolVar(&config.MDNS, "mdns", false, "Advertise registered devices over mDNS")
	flag.BoolVar(&config.Discover, "discover", false, "Bridge networked devices found over mDNS")
	flag.BoolVar(&config.Interactive, "interactive", false, "Run the command console")
	flag.BoolVar(&config.JSON, "json", false, "Print the verification report as JSON")
	flag.StringVar(&config.JUnit, "junit", "", "Also write the verification report as JUnit XML to this file")
}

func main() {
	flag.Parse()
	os.Exit(run())
}

func run() int {
	level, err := parseLevel(config.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 2
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	protocolLogger, closeProtocolLog, err := setupProtocolLog(logger, level)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to create protocol logger: %v\n", err)
		return 1
	}
	defer closeProtocolLog()

	key, err := adbkey.LoadOrGenerate(
		filepath.Join(config.KeyDir, "adbkey"),
		filepath.Join(config.KeyDir, "adbkey.pub"),
		logger,
	)
	if err != nil {
		logger.Error("key setup failed", "error", err)
		return 1
	}
	if fp, err := key.Fingerprint(); err == nil {
		logger.Info("using key", "fingerprint", fp)
	}

	var advertiser *discovery.MDNSAdvertiser
	regConfig := registry.Config{
		KeyPair:     key,
		ReadTimeout: config.ReadTimeout,
		Logger:      protocolLogger,
		Slog:        logger,
	}
	if config.MDNS {
		advertiser = discovery.NewMDNSAdvertiser(discovery.DefaultAdvertiserConfig())
		defer advertiser.StopAll()
		port := listenPort(config.Listen)
		regConfig.OnAdd = func(info device.Info) {
			err := advertiser.Advertise(&discovery.DeviceInfo{Serial: info.Serial, State: info.State, Port: port})
			if err != nil {
				logger.Warn("mdns advertise failed", "serial", info.Serial, "error", err)
			}
		}
		regConfig.OnRemove = func(serial string) {
			_ = advertiser.Stop(serial)
		}
	}
	reg := registry.New(regConfig)
	defer reg.Close()

	name := ""
	if config.Scenario != "" {
		sc, err := scenario.Load(config.Scenario)
		if err != nil {
			logger.Error("scenario load failed", "error", err)
			return 1
		}
		if err := sc.Apply(reg); err != nil {
			logger.Error("scenario apply failed", "error", err)
			return 1
		}
		name = sc.Name
		logger.Info("scenario loaded", "name", sc.Name, "devices", len(sc.Devices), "expectations", sc.Expectations())
	}

	serverConfig := transport.ServerConfig{
		Address:   config.Listen,
		Directory: reg,
		OnError: func(conn *transport.ServerConn, err error) {
			logger.Debug("connection error", "conn_id", conn.ConnID(), "error", err)
		},
	}
	if protocolLogger != nil {
		serverConfig.Logger = protocolLogger
	}
	server, err := transport.NewServer(serverConfig)
	if err != nil {
		logger.Error("invalid server configuration", "error", err)
		return 1
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	started := time.Now()
	if err := server.Start(ctx); err != nil {
		logger.Error("failed to start server", "error", err)
		return 1
	}
	logger.Info("server started", "address", server.Addr().String())

	if config.Discover {
		go discover(ctx, discovery.NewMDNSBrowser(discovery.DefaultBrowserConfig()), reg, logger)
	}

	if config.Interactive {
		console, err := interactive.New(reg, discovery.NewMDNSBrowser(discovery.DefaultBrowserConfig()))
		if err != nil {
			logger.Error("console setup failed", "error", err)
			return 1
		}
		logger = slog.New(slog.NewTextHandler(console.Stderr(), &slog.HandlerOptions{Level: level}))
		slog.SetDefault(logger)
		go console.Run(ctx, cancel)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigCh:
		logger.Info("received signal", "signal", sig.String())
	case <-ctx.Done():
	}
	cancel()

	if err := server.Stop(); err != nil {
		logger.Warn("error stopping server", "error", err)
	}

	result := &reporter.Result{
		Scenario: name,
		Duration: time.Since(started),
		Devices:  reg.Devices(),
		Failures: reg.Unmet(),
	}
	if err := writeReports(result, os.Stdout, config.JSON, config.JUnit); err != nil {
		logger.Error("failed to write report", "error", err)
		return 1
	}

	if !result.Passed() {
		return 1
	}
	return 0
}

// discoverAttempts bounds the connect attempts per discovered device; the
// first ones usually fail until the key is accepted on the device.
const discoverAttempts = 6

// discover bridges every device browser finds until ctx ends or the
// browse stops, then waits for the pending connects.
func discover(ctx context.Context, browser discovery.Browser, reg *registry.Registry, logger *slog.Logger) {
	found, err := browser.Browse(ctx)
	if err != nil {
		logger.Warn("mdns browse failed", "error", err)
		return
	}

	var wg sync.WaitGroup
	defer wg.Wait()
	for svc := range found {
		addr := svc.Address()
		if reg.IsDeviceConnected(addr) {
			continue
		}
		logger.Info("device discovered", "serial", svc.Serial, "address", addr)
		wg.Add(1)
		go func() {
			defer wg.Done()
			b := registry.NewBackoff(registry.BackoffConfig{Jitter: registry.JitterFactor})
			if _, err := reg.ConnectRetry(ctx, addr, b, discoverAttempts); err != nil {
				logger.Warn("bridge failed", "address", addr, "error", err)
			}
		}()
	}
}

// writeReports prints the report to w as text or JSON and, when junitPath
// is set, also writes it there as JUnit XML.
func writeReports(result *reporter.Result, w io.Writer, asJSON bool, junitPath string) error {
	var rep reporter.Reporter = reporter.NewTextReporter(w, false)
	if asJSON {
		rep = reporter.NewJSONReporter(w, true)
	}
	rep.Report(result)

	if junitPath == "" {
		return nil
	}
	f, err := os.Create(junitPath)
	if err != nil {
		return err
	}
	reporter.NewJUnitReporter(f).Report(result)
	return f.Close()
}

func setupProtocolLog(logger *slog.Logger, level slog.Level) (adblog.Logger, func(), error) {
	var loggers []adblog.Logger
	closer := func() {}

	if config.ProtocolLog != "" {
		fl, err := adblog.NewFileLogger(config.ProtocolLog)
		if err != nil {
			return nil, closer, err
		}
		loggers = append(loggers, fl)
		closer = func() {
			if dropped := fl.Dropped(); dropped > 0 {
				logger.Warn("protocol events dropped", "count", dropped)
			}
			fl.Close()
		}
		logger.Info("protocol logging", "path", config.ProtocolLog)
	}
	if level <= slog.LevelDebug {
		loggers = append(loggers, adblog.NewSlogAdapter(logger))
	}

	switch len(loggers) {
	case 0:
		return nil, closer, nil
	case 1:
		return loggers[0], closer, nil
	default:
		return adblog.NewMultiLogger(loggers...), closer, nil
	}
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("invalid log level %q", s)
	}
	return level, nil
}

func listenPort(addr string) uint16 {
	_, p, err := net.SplitHostPort(addr)
	if err != nil {
		return discovery.DefaultPort
	}
	port, err := strconv.ParseUint(p, 10, 16)
	if err != nil || port == 0 {
		return discovery.DefaultPort
	}
	return uint16(port)
}

func defaultKeyDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".android"
	}
	return filepath.Join(home, ".android")
}
