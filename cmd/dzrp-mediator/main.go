// Command dzrp-mediator bootstraps one mediator session against a DZRP
// remote and drives it from a line-oriented command stream on stdin. The
// source-level debugger front-end this mediator ultimately serves is an
// external collaborator; this binary exists to connect, configure, and
// exercise the core directly.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/zxnext/dzrp-mediator/internal/mediator"
	"github.com/zxnext/dzrp-mediator/internal/protocol"
	"github.com/zxnext/dzrp-mediator/internal/session"
)

func main() {
	var (
		configPath    string
		transportKind string
		host          string
		port          int
		serialDevice  string
		serialBaud    int
		autoLoadDir   string
		verbose       bool
		debug         bool
		showVersion   bool
	)
	flag.StringVar(&configPath, "config", "", "path to a JSON session config file")
	flag.StringVar(&transportKind, "transport", "", "override: tcp, serial, or quic")
	flag.StringVar(&host, "host", "", "override: remote host (tcp/quic)")
	flag.IntVar(&port, "port", 0, "override: remote port (tcp/quic)")
	flag.StringVar(&serialDevice, "serial-device", "", "override: serial device path")
	flag.IntVar(&serialBaud, "serial-baud", 0, "override: serial baud rate")
	flag.StringVar(&autoLoadDir, "auto-load-dir", "", "override: directory to watch for .sna/.nex files")
	flag.BoolVar(&verbose, "verbose", false, "enable informational logging")
	flag.BoolVar(&debug, "debug", false, "enable debug logging")
	flag.BoolVar(&showVersion, "version", false, "print version information and exit")
	flag.Parse()

	if showVersion {
		v := session.GetVersionInfo()
		fmt.Printf("dzrp-mediator %s (%s, %s/%s)\n", v.Version, v.BuildDate, v.Platform, v.Arch)
		return
	}

	cfg, err := session.LoadConfig(configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "load config:", err)
		os.Exit(1)
	}
	applyOverrides(cfg, transportKind, host, port, serialDevice, serialBaud, autoLoadDir)
	cfg.Verbose = cfg.Verbose || verbose
	cfg.Debug = cfg.Debug || debug

	logger := session.NewLogger(cfg.Verbose, cfg.Debug)

	m, err := mediator.Connect(cfg, logger)
	if err != nil {
		fmt.Fprintln(os.Stderr, "connect failed:", err)
		os.Exit(1)
	}
	defer m.Disconnect()

	var watcher *mediator.AutoLoadWatcher
	if cfg.AutoLoadDir != "" {
		watcher, err = m.WatchAutoLoadDir(cfg.AutoLoadDir)
		if err != nil {
			logger.Error("auto-load watch failed to start: %v", err)
		} else {
			defer watcher.Close()
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	fmt.Println("dzrp-mediator connected, reading commands from stdin")

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	repl := newREPL(m, logger)
	for {
		select {
		case <-ctx.Done():
			fmt.Println("dzrp-mediator shutting down")
			return
		case <-m.Done():
			fmt.Println("remote disconnected")
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			repl.run(line)
		}
	}
}

func applyOverrides(cfg *session.Config, transportKind, host string, port int, serialDevice string, serialBaud int, autoLoadDir string) {
	if transportKind != "" {
		cfg.TransportKind = transportKind
	}
	if host != "" {
		cfg.Host = host
	}
	if port != 0 {
		cfg.Port = port
	}
	if serialDevice != "" {
		cfg.SerialDevice = serialDevice
	}
	if serialBaud != 0 {
		cfg.SerialBaud = serialBaud
	}
	if autoLoadDir != "" {
		cfg.AutoLoadDir = autoLoadDir
	}
}

// repl is the minimal command interpreter for direct/manual use (scripts,
// smoke tests). Each command maps onto exactly one Mediator operation.
type repl struct {
	m      *mediator.Mediator
	logger *session.Logger
}

func newREPL(m *mediator.Mediator, logger *session.Logger) *repl {
	return &repl{m: m, logger: logger}
}

func (r *repl) run(line string) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return
	}
	cmd, args := fields[0], fields[1:]

	var (
		msg string
		err error
	)
	switch strings.ToLower(cmd) {
	case "continue", "c":
		msg, err = r.m.Continue()
	case "step", "into", "si":
		msg, err = r.m.StepInto()
	case "over", "so":
		msg, err = r.m.StepOver()
	case "out":
		msg, err = r.m.StepOut()
	case "pause":
		err = r.m.Pause()
	case "break", "b":
		err = r.cmdBreak(args)
	case "load":
		err = r.cmdLoad(args)
	case "save":
		err = r.cmdSave(args)
	case "restore":
		err = r.cmdRestore(args)
	case "regs":
		err = r.cmdRegs()
	default:
		fmt.Println("unrecognized command:", cmd)
		return
	}
	if err != nil {
		fmt.Println("error:", err)
		return
	}
	if msg != "" {
		fmt.Println(msg)
	}
}

func (r *repl) cmdBreak(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: break <addr> [condition]")
	}
	addr, err := strconv.ParseUint(strings.TrimPrefix(args[0], "0x"), 16, 16)
	if err != nil {
		return err
	}
	cond := ""
	if len(args) > 1 {
		cond = strings.Join(args[1:], " ")
	}
	id, err := r.m.SetBreakpoint(int(addr), cond, "")
	if err != nil {
		return err
	}
	fmt.Println("breakpoint id:", id)
	return nil
}

func (r *repl) cmdLoad(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: load <path>")
	}
	return r.m.LoadSnapshot(args[0])
}

func (r *repl) cmdSave(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: save <path>")
	}
	return r.m.SaveState(args[0])
}

func (r *repl) cmdRestore(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: restore <path>")
	}
	return r.m.RestoreState(args[0])
}

func (r *repl) cmdRegs() error {
	regs, err := r.m.GetRegisters()
	if err != nil {
		return err
	}
	fmt.Printf("PC=%04X SP=%04X AF=%04X BC=%04X DE=%04X HL=%04X\n",
		regs[protocol.RegPC], regs[protocol.RegSP], regs[protocol.RegAF],
		regs[protocol.RegBC], regs[protocol.RegDE], regs[protocol.RegHL])
	return nil
}
