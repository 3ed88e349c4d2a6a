// Command licensectl runs the licensing workflow from a terminal: list and
// authorize Android devices, generate this host's device code, issue and
// verify licenses, and authorize a Windows application in one step.
//
// Exit status is 0 on success, 1 when an action is refused or fails, and 2
// when a license does not verify.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"sync"

	"github.com/spf13/pflag"

	"licensebridge/internal/app"
	"licensebridge/internal/config"
	"licensebridge/internal/events"
	"licensebridge/internal/infrastructure"
	"licensebridge/internal/workflow"
	"licensebridge/pkg/contracts"
)

const (
	exitOK       = 0
	exitFailure  = 1
	exitNegative = 2
)

// opener builds the application for one invocation.
type opener func(ctx context.Context, configPath string, logger *slog.Logger) (*app.Application, error)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()
	os.Exit(run(ctx, os.Args[1:], os.Stdout, os.Stderr, openApplication))
}

func openApplication(ctx context.Context, configPath string, logger *slog.Logger) (*app.Application, error) {
	var (
		cfg *config.Config
		err error
	)
	if configPath != "" {
		cfg, err = config.LoadFile(configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}
	cfg.Telemetry.MetricExporter = "none"
	cfg.Telemetry.TraceExporter = "none"
	return app.New(ctx, cfg, app.WithLogger(logger))
}

type command struct {
	name  string
	usage string
	run   func(ctx context.Context, c *workflow.Controller, fs *pflag.FlagSet) (workflow.Outcome, error)
	flags func(fs *pflag.FlagSet)
}

var commandList = []command{
	{
		name:  "devices",
		usage: "list connected Android devices",
		run: func(ctx context.Context, c *workflow.Controller, _ *pflag.FlagSet) (workflow.Outcome, error) {
			return c.RefreshDevices(ctx, nil), nil
		},
	},
	{
		name:  "android",
		usage: "authorize the first connected Android device, or all with --batch",
		flags: func(fs *pflag.FlagSet) {
			fs.Bool("batch", false, "authorize every connected device")
		},
		run: func(ctx context.Context, c *workflow.Controller, fs *pflag.FlagSet) (workflow.Outcome, error) {
			batch, _ := fs.GetBool("batch")
			return c.AuthorizeAndroid(ctx, nil, batch), nil
		},
	},
	{
		name:  "device-code",
		usage: "generate this host's device code, optionally saving it with --save",
		flags: func(fs *pflag.FlagSet) {
			fs.String("save", "", "write the device code to this file")
		},
		run: func(ctx context.Context, c *workflow.Controller, fs *pflag.FlagSet) (workflow.Outcome, error) {
			save, _ := fs.GetString("save")
			return c.GenerateDeviceCode(ctx, workflow.Answer{Value: save}), nil
		},
	},
	{
		name:  "issue",
		usage: "issue a license for --code into --dir",
		flags: func(fs *pflag.FlagSet) {
			fs.String("code", "", "device code to license")
			fs.String("dir", "", "directory receiving license.lic")
		},
		run: func(ctx context.Context, c *workflow.Controller, fs *pflag.FlagSet) (workflow.Outcome, error) {
			code, _ := fs.GetString("code")
			dir, _ := fs.GetString("dir")
			if out, ok := selectAll(ctx, c,
				selection{workflow.FieldDeviceCodeForAuth, code},
				selection{workflow.FieldAuthFileDir, dir}); !ok {
				return out, nil
			}
			return c.IssueLicense(ctx, nil), nil
		},
	},
	{
		name:  "verify",
		usage: "verify --license against --code-file",
		flags: func(fs *pflag.FlagSet) {
			fs.String("license", "", "license file to verify")
			fs.String("code-file", "", "device code file to verify against")
		},
		run: func(ctx context.Context, c *workflow.Controller, fs *pflag.FlagSet) (workflow.Outcome, error) {
			license, _ := fs.GetString("license")
			codeFile, _ := fs.GetString("code-file")
			if out, ok := selectAll(ctx, c,
				selection{workflow.FieldLicenseFile, license},
				selection{workflow.FieldDeviceCodeFile, codeFile}); !ok {
				return out, nil
			}
			return c.VerifyLicense(ctx, nil), nil
		},
	},
	{
		name:  "authorize-app",
		usage: "license the application in --dir (default: this executable's directory)",
		flags: func(fs *pflag.FlagSet) {
			fs.String("dir", "", "application directory")
		},
		run: func(ctx context.Context, c *workflow.Controller, fs *pflag.FlagSet) (workflow.Outcome, error) {
			dir, _ := fs.GetString("dir")
			if dir != "" {
				if out := c.SelectAppDir(ctx, workflow.Answer{Value: dir}); out.Kind != workflow.KindSuccess {
					return out, nil
				}
			} else if out := c.Initialize(ctx); out.Kind != workflow.KindSuccess {
				return out, nil
			}
			return c.AuthorizeApplication(ctx, nil), nil
		},
	},
}

type selection struct {
	field workflow.Field
	value string
}

// selectAll applies selections in order. Flags left empty are skipped so
// the gate reports what is missing.
func selectAll(ctx context.Context, c *workflow.Controller, sels ...selection) (workflow.Outcome, bool) {
	for _, s := range sels {
		if s.value == "" {
			continue
		}
		if out := c.Select(ctx, s.field, workflow.Answer{Value: s.value}); out.Kind != workflow.KindSuccess {
			return out, false
		}
	}
	return workflow.Outcome{}, true
}

func lookup(name string) (command, bool) {
	for _, cmd := range commandList {
		if cmd.name == name {
			return cmd, true
		}
	}
	return command{}, false
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer, open opener) int {
	stderr = &syncWriter{w: stderr}

	var (
		configPath  string
		verbose     bool
		showVersion bool
	)

	global := pflag.NewFlagSet("licensectl", pflag.ContinueOnError)
	global.SetOutput(stderr)
	global.SetInterspersed(false)
	global.StringVarP(&configPath, "config", "c", "", "path to a YAML config file")
	global.BoolVarP(&verbose, "verbose", "v", false, "print backend log lines to stderr")
	global.BoolVar(&showVersion, "version", false, "print version information and exit")
	global.Usage = func() { printUsage(stderr, global) }

	if err := global.Parse(args); err != nil {
		if err == pflag.ErrHelp {
			return exitOK
		}
		fmt.Fprintln(stderr, "error:", err)
		return exitFailure
	}
	if showVersion {
		fmt.Fprintln(stdout, contracts.GetFullVersionString())
		return exitOK
	}

	rest := global.Args()
	if len(rest) == 0 {
		printUsage(stderr, global)
		return exitFailure
	}
	cmd, ok := lookup(rest[0])
	if !ok {
		fmt.Fprintf(stderr, "unknown command %q\n", rest[0])
		printUsage(stderr, global)
		return exitFailure
	}

	fs := pflag.NewFlagSet(cmd.name, pflag.ContinueOnError)
	fs.SetOutput(stderr)
	if cmd.flags != nil {
		cmd.flags(fs)
	}
	if err := fs.Parse(rest[1:]); err != nil {
		if err == pflag.ErrHelp {
			return exitOK
		}
		fmt.Fprintln(stderr, "error:", err)
		return exitFailure
	}

	level := "warn"
	if verbose {
		level = "debug"
	}
	logger := infrastructure.NewLogger(stderr, config.LoggingConfig{Level: level, Format: "text"})

	application, err := open(ctx, configPath, logger)
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return exitFailure
	}
	defer application.Close(context.Background())

	if verbose {
		stop := streamLog(application.Bus, stderr)
		defer stop()
	}

	out, err := cmd.run(ctx, application.Controller, fs)
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return exitFailure
	}
	return report(out, stdout, stderr)
}

// report prints the outcome and maps it to an exit status.
func report(out workflow.Outcome, stdout, stderr io.Writer) int {
	switch {
	case out.Kind.IsError():
		fmt.Fprintln(stderr, out.Message)
		return exitFailure
	case out.Kind == workflow.KindNegativeResult:
		fmt.Fprintln(stdout, out.Message)
		return exitNegative
	default:
		fmt.Fprintln(stdout, out.Message)
		return exitOK
	}
}

// streamLog copies backend log lines to w until the returned func is called.
func streamLog(bus *events.Bus, w io.Writer) func() {
	sub := bus.Subscribe("licensectl", 256)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for ev := range sub.C {
			if ev.Name == events.NameLogMessage {
				fmt.Fprintln(w, ev.Payload)
			}
		}
	}()
	return func() {
		sub.Close()
		<-done
	}
}

// syncWriter serializes writes from the logger and the log stream.
type syncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *syncWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}

func printUsage(w io.Writer, global *pflag.FlagSet) {
	var b strings.Builder
	b.WriteString("Usage:\n  licensectl [flags] <command> [command flags]\n\nCommands:\n")
	for _, cmd := range commandList {
		fmt.Fprintf(&b, "  %-14s %s\n", cmd.name, cmd.usage)
	}
	b.WriteString("\nFlags:\n")
	b.WriteString(global.FlagUsages())
	fmt.Fprint(w, b.String())
}
