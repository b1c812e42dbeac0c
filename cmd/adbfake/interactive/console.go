// Package interactive provides the command console of adbfake.
package interactive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/adbfake/adbfake-go/internal/reporter"
	"github.com/adbfake/adbfake-go/pkg/discovery"
	"github.com/adbfake/adbfake-go/pkg/registry"
	"github.com/chzyer/readline"
)

// connectTimeout bounds the connect command.
const connectTimeout = 15 * time.Second

// outputSep separates a shell command from its declared output.
const outputSep = " => "

// Console reads commands that register devices and declare expectations
// while the server is running.
type Console struct {
	reg     *registry.Registry
	browser discovery.Browser
	rl      *readline.Instance
	out     io.Writer
}

// New creates a console on the terminal. browser backs the find command.
func New(reg *registry.Registry, browser discovery.Browser) (*Console, error) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "adbfake> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
		AutoComplete: readline.NewPrefixCompleter(
			readline.PcItem("help"),
			readline.PcItem("devices"),
			readline.PcItem("add"),
			readline.PcItem("remove"),
			readline.PcItem("expect-push"),
			readline.PcItem("expect-pull"),
			readline.PcItem("expect-shell"),
			readline.PcItem("expect-tcpip"),
			readline.PcItem("connect"),
			readline.PcItem("find"),
			readline.PcItem("pending"),
			readline.PcItem("verify"),
			readline.PcItem("quit"),
		),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create readline: %w", err)
	}
	return &Console{reg: reg, browser: browser, rl: rl, out: rl.Stdout()}, nil
}

// Stdout returns a writer that properly coordinates with the readline input.
// Use this for log output to avoid interfering with the command prompt.
func (c *Console) Stdout() io.Writer {
	return c.rl.Stdout()
}

// Stderr returns a writer that properly coordinates with the readline input.
func (c *Console) Stderr() io.Writer {
	return c.rl.Stderr()
}

// Run starts the command loop. It calls cancel and returns on quit or EOF.
func (c *Console) Run(ctx context.Context, cancel context.CancelFunc) {
	defer c.rl.Close()

	c.printHelp()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		line, err := c.rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt {
				continue
			}
			fmt.Fprintln(c.out, "Exiting...")
			cancel()
			return
		}

		if !c.Execute(ctx, line) {
			cancel()
			return
		}
	}
}

// Execute runs one command line. It returns false when the console should exit.
func (c *Console) Execute(ctx context.Context, line string) bool {
	input := strings.TrimSpace(line)
	if input == "" {
		return true
	}

	parts := strings.Fields(input)
	cmd := strings.ToLower(parts[0])
	args := parts[1:]

	var err error
	switch cmd {
	case "help", "?":
		c.printHelp()
	case "devices", "d":
		c.cmdDevices()
	case "add":
		err = c.cmdAdd(args)
	case "remove", "rm":
		err = c.cmdRemove(args)
	case "expect-push", "expect-pull":
		err = c.cmdExpectFile(cmd, args)
	case "expect-shell":
		err = c.cmdExpectShell(strings.TrimSpace(input[len(parts[0]):]))
	case "expect-tcpip":
		err = c.cmdExpectTcpip(args)
	case "connect", "c":
		err = c.cmdConnect(ctx, args)
	case "find", "f":
		err = c.cmdFind(ctx, args)
	case "pending", "p":
		c.cmdPending()
	case "verify", "v":
		c.cmdVerify()
	case "quit", "exit", "q":
		fmt.Fprintln(c.out, "Exiting...")
		return false
	default:
		fmt.Fprintf(c.out, "Unknown command: %s (type 'help' for commands)\n", cmd)
	}

	if err != nil {
		fmt.Fprintf(c.out, "Error: %v\n", err)
	}
	return true
}

func (c *Console) printHelp() {
	fmt.Fprint(c.out, `
Commands:
  devices                              List registered devices
  add <serial> [state]                 Register a scripted device
  remove <serial>                      Remove a device
  expect-push <serial> <path> [data]   Expect a push carrying data (default empty)
  expect-pull <serial> <path> [data]   Expect a pull returning data
  expect-shell <serial> <cmd> [=> out] Expect a shell command
  expect-tcpip <serial> <port>         Expect a switch to network mode
  connect <host:port>                  Bridge a networked device
  find <serial>                        Bridge a device found over mDNS
  pending                              Show unmet expectations
  verify                               Print the verification report
  quit                                 Verify and exit
`)
}

func (c *Console) cmdDevices() {
	devices := c.reg.Devices()
	if len(devices) == 0 {
		fmt.Fprintln(c.out, "No devices.")
		return
	}
	for _, d := range devices {
		fmt.Fprintf(c.out, "%s\t%s\n", d.Serial, d.State)
	}
}

func (c *Console) cmdAdd(args []string) error {
	if len(args) < 1 || len(args) > 2 {
		return errors.New("usage: add <serial> [state]")
	}
	if err := c.reg.Add(args[0], args[1:]...); err != nil {
		return err
	}
	fmt.Fprintf(c.out, "Added %s\n", args[0])
	return nil
}

func (c *Console) cmdRemove(args []string) error {
	if len(args) != 1 {
		return errors.New("usage: remove <serial>")
	}
	if err := c.reg.Remove(args[0]); err != nil {
		return err
	}
	fmt.Fprintf(c.out, "Removed %s\n", args[0])
	return nil
}

func (c *Console) cmdExpectFile(cmd string, args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: %s <serial> <path> [data]", cmd)
	}
	declare := c.reg.ExpectPush
	if cmd == "expect-pull" {
		declare = c.reg.ExpectPull
	}
	e, err := declare(args[0], args[1])
	if err != nil {
		return err
	}
	if len(args) > 2 {
		e.WithContentString(strings.Join(args[2:], " "))
	}
	fmt.Fprintf(c.out, "Declared %s\n", e)
	return nil
}

// cmdExpectShell takes the raw arguments so the command keeps its spacing.
func (c *Console) cmdExpectShell(rest string) error {
	const usage = "usage: expect-shell <serial> <cmd> [=> output]"

	serial, command, ok := strings.Cut(rest, " ")
	if !ok {
		return errors.New(usage)
	}
	command, output, hasOutput := strings.Cut(strings.TrimSpace(command), outputSep)
	if command == "" {
		return errors.New(usage)
	}

	e, err := c.reg.ExpectShell(serial, command)
	if err != nil {
		return err
	}
	if hasOutput {
		e.Returns(unescape(output))
	}
	fmt.Fprintf(c.out, "Declared %s\n", e)
	return nil
}

func (c *Console) cmdExpectTcpip(args []string) error {
	if len(args) != 2 {
		return errors.New("usage: expect-tcpip <serial> <port>")
	}
	port, err := strconv.Atoi(args[1])
	if err != nil || port <= 0 || port > 65535 {
		return fmt.Errorf("invalid port %q", args[1])
	}
	if err := c.reg.ExpectTcpip(args[0], port); err != nil {
		return err
	}
	fmt.Fprintf(c.out, "Declared expected tcpip (port) %d\n", port)
	return nil
}

func (c *Console) cmdConnect(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: connect <host:port>")
	}
	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	ok, err := c.reg.OnDeviceConnect(ctx, args[0])
	if err != nil {
		return err
	}
	if !ok {
		fmt.Fprintf(c.out, "Not connected: %s is not host:port or already registered\n", args[0])
		return nil
	}
	fmt.Fprintf(c.out, "Connected %s\n", args[0])
	return nil
}

func (c *Console) cmdFind(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: find <serial>")
	}
	if c.browser == nil {
		return errors.New("discovery is not available")
	}
	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	svc, err := c.browser.Find(ctx, args[0])
	if err != nil {
		return fmt.Errorf("find %s: %w", args[0], err)
	}
	addr := svc.Address()
	ok, err := c.reg.OnDeviceConnect(ctx, addr)
	if err != nil {
		return err
	}
	if !ok {
		fmt.Fprintf(c.out, "Not connected: %s (%s) already registered\n", args[0], addr)
		return nil
	}
	fmt.Fprintf(c.out, "Connected %s as %s\n", args[0], addr)
	return nil
}

func (c *Console) cmdPending() {
	unmet := c.reg.Unmet()
	if len(unmet) == 0 {
		fmt.Fprintln(c.out, "Nothing pending.")
		return
	}
	for _, f := range unmet {
		fmt.Fprintf(c.out, "  [%s] %s\n", reporter.Reason(f), f)
	}
}

func (c *Console) cmdVerify() {
	reporter.NewTextReporter(c.out, true).Report(&reporter.Result{
		Devices:  c.reg.Devices(),
		Failures: c.reg.Unmet(),
	})
}

// unescape turns \n and \t in console input into the control characters.
func unescape(s string) string {
	return strings.NewReplacer(`\n`, "\n", `\t`, "\t").Replace(s)
}
