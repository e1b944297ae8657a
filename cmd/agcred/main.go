package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/go-json-experiment/json"
	"github.com/go-json-experiment/json/jsontext"

	"agcred/internal/config"
	core "agcred/internal/core"
	"agcred/internal/fsx"
	"agcred/internal/logging"
	"agcred/internal/store"
	ui "agcred/internal/ui"
	"agcred/internal/util"
	verinfo "agcred/internal/version"
)

func usage(w io.Writer) {
	fmt.Fprintf(w, "agcred - per-agent credential mappings\n\n")
	fmt.Fprintf(w, "Usage:\n")
	fmt.Fprintf(w, "  agcred get    --agent <dir> --provider <p>\n")
	fmt.Fprintf(w, "  agcred set    --agent <dir> --provider <p> --id <integration-id> [--dry-run] [--backup]\n")
	fmt.Fprintf(w, "  agcred remove --agent <dir> --provider <p> [--dry-run] [--backup]\n")
	fmt.Fprintf(w, "  agcred list   --agent <dir> [--reveal] [--json]\n")
	fmt.Fprintf(w, "  agcred has    --agent <dir> --provider <p>\n")
	fmt.Fprintf(w, "  agcred path   --agent <dir>\n")
	fmt.Fprintf(w, "  agcred tui    --agent <dir>\n")
	fmt.Fprintf(w, "  agcred version\n\n")
	fmt.Fprintf(w, "Every command also accepts --log-level and --log-format.\n")
	fmt.Fprintf(w, "Environment: %s, %s, %s\n", config.EnvAgent, config.EnvLogLevel, config.EnvLogFormat)
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr, os.Getenv))
}

// run dispatches a subcommand and returns the process exit code:
// 0 success, 1 operation failed or mapping absent, 2 usage error.
func run(args []string, stdout, stderr io.Writer, getenv func(string) string) int {
	if len(args) == 0 {
		usage(stderr)
		return 2
	}
	cmd, rest := args[0], args[1:]
	switch cmd {
	case "get":
		return getCmd(rest, stdout, stderr, getenv)
	case "set":
		return setCmd(rest, stdout, stderr, getenv)
	case "remove", "rm":
		return removeCmd(rest, stdout, stderr, getenv)
	case "list", "ls":
		return listCmd(rest, stdout, stderr, getenv)
	case "has":
		return hasCmd(rest, stdout, stderr, getenv)
	case "path":
		return pathCmd(rest, stdout, stderr, getenv)
	case "tui":
		return tuiCmd(rest, stdout, stderr, getenv)
	case "version", "--version":
		fmt.Fprintf(stdout, "%s %s\n", verinfo.Name, verinfo.Version)
		return 0
	case "-h", "--help", "help":
		usage(stdout)
		return 0
	default:
		fmt.Fprintf(stderr, "unknown command: %s\n", cmd)
		usage(stderr)
		return 2
	}
}

// common holds the flags every subcommand accepts.
type common struct {
	agent     *string
	logLevel  *string
	logFormat *string
}

func newFlagSet(name string, stderr io.Writer) (*flag.FlagSet, common) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(stderr)
	c := common{
		agent:     fs.String("agent", "", "agent directory (default $"+config.EnvAgent+" or .)"),
		logLevel:  fs.String("log-level", "", "debug|info|warn|error (default $"+config.EnvLogLevel+" or warn)"),
		logFormat: fs.String("log-format", "", "text|json (default $"+config.EnvLogFormat+" or text)"),
	}
	return fs, c
}

// setup parses args and returns the resolved config plus a context carrying the logger.
func setup(fs *flag.FlagSet, c common, args []string, stderr io.Writer, getenv func(string) string) (*config.Config, context.Context, bool) {
	if err := fs.Parse(args); err != nil {
		return nil, nil, false
	}
	cfg, err := config.Resolve(*c.agent, *c.logLevel, *c.logFormat, getenv)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return nil, nil, false
	}
	logger, err := logging.New(stderr, cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return nil, nil, false
	}
	return cfg, logging.NewContext(context.Background(), logger), true
}

func flagPassed(fs *flag.FlagSet, name string) bool {
	passed := false
	fs.Visit(func(f *flag.Flag) {
		if f.Name == name {
			passed = true
		}
	})
	return passed
}

func requireProvider(provider string, stderr io.Writer) bool {
	if err := core.ValidateProvider(provider); err != nil {
		fmt.Fprintf(stderr, "--provider: %v\n", err)
		return false
	}
	return true
}

func getCmd(args []string, stdout, stderr io.Writer, getenv func(string) string) int {
	fs, c := newFlagSet("get", stderr)
	provider := fs.String("provider", "", "provider name, e.g. google")
	cfg, ctx, ok := setup(fs, c, args, stderr, getenv)
	if !ok || !requireProvider(*provider, stderr) {
		return 2
	}
	id, found := store.IntegrationIDForAgent(ctx, cfg.AgentPath, *provider)
	if !found {
		fmt.Fprintf(stderr, "no mapping for provider: %s\n", *provider)
		return 1
	}
	fmt.Fprintln(stdout, id)
	return 0
}

func hasCmd(args []string, _, stderr io.Writer, getenv func(string) string) int {
	fs, c := newFlagSet("has", stderr)
	provider := fs.String("provider", "", "provider name")
	cfg, ctx, ok := setup(fs, c, args, stderr, getenv)
	if !ok || !requireProvider(*provider, stderr) {
		return 2
	}
	if store.Load(ctx, cfg.AgentPath).HasMapping(*provider) {
		return 0
	}
	return 1
}

func pathCmd(args []string, stdout, stderr io.Writer, getenv func(string) string) int {
	fs, c := newFlagSet("path", stderr)
	cfg, _, ok := setup(fs, c, args, stderr, getenv)
	if !ok {
		return 2
	}
	fmt.Fprintln(stdout, store.New(cfg.AgentPath).Path())
	return 0
}

func setCmd(args []string, stdout, stderr io.Writer, getenv func(string) string) int {
	fs, c := newFlagSet("set", stderr)
	provider := fs.String("provider", "", "provider name")
	id := fs.String("id", "", "integration id")
	dry := fs.Bool("dry-run", false, "do not write, only show diff")
	backup := fs.Bool("backup", false, "copy the current file to a timestamped .bak first")
	reveal := fs.Bool("reveal", false, "show full integration ids in the diff")
	cfg, ctx, ok := setup(fs, c, args, stderr, getenv)
	if !ok || !requireProvider(*provider, stderr) {
		return 2
	}
	// Any string is a valid id, including "", so only an omitted --id is rejected.
	if !flagPassed(fs, "id") {
		fmt.Fprintln(stderr, "--id is required")
		return 2
	}

	ac := store.Load(ctx, cfg.AgentPath)
	before := ac.ListMappings()
	ac.SetIntegrationID(*provider, *id)
	fmt.Fprint(stdout, core.RenderDiff(core.Diff(before, ac.ListMappings()), *reveal))
	if *dry {
		return 0
	}
	if *backup && !doBackup(ac.Path(), stdout, stderr) {
		return 1
	}
	if err := ac.Save(ctx); err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	fmt.Fprintln(stdout, "saved")
	return 0
}

func removeCmd(args []string, stdout, stderr io.Writer, getenv func(string) string) int {
	fs, c := newFlagSet("remove", stderr)
	provider := fs.String("provider", "", "provider name")
	dry := fs.Bool("dry-run", false, "do not write, only show diff")
	backup := fs.Bool("backup", false, "copy the current file to a timestamped .bak first")
	reveal := fs.Bool("reveal", false, "show full integration ids in the diff")
	cfg, ctx, ok := setup(fs, c, args, stderr, getenv)
	if !ok || !requireProvider(*provider, stderr) {
		return 2
	}

	ac := store.Load(ctx, cfg.AgentPath)
	before := ac.ListMappings()
	if !ac.RemoveIntegration(*provider) {
		fmt.Fprintf(stderr, "no mapping for provider: %s\n", *provider)
		return 1
	}
	fmt.Fprint(stdout, core.RenderDiff(core.Diff(before, ac.ListMappings()), *reveal))
	if *dry {
		return 0
	}
	if *backup && !doBackup(ac.Path(), stdout, stderr) {
		return 1
	}
	if err := ac.Save(ctx); err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	fmt.Fprintln(stdout, "removed")
	return 0
}

func doBackup(path string, stdout, stderr io.Writer) bool {
	bak, err := fsx.BackupFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return true
		}
		fmt.Fprintf(stderr, "backup failed: %v\n", err)
		return false
	}
	fmt.Fprintf(stdout, "backup: %s\n", bak)
	return true
}

var styleHeader = lipgloss.NewStyle().Bold(true)

func listCmd(args []string, stdout, stderr io.Writer, getenv func(string) string) int {
	fs, c := newFlagSet("list", stderr)
	reveal := fs.Bool("reveal", false, "show full integration ids")
	asJSON := fs.Bool("json", false, "print the mappings as a JSON object (always unmasked)")
	cfg, ctx, ok := setup(fs, c, args, stderr, getenv)
	if !ok {
		return 2
	}
	ac := store.Load(ctx, cfg.AgentPath)

	if *asJSON {
		b, err := json.Marshal(ac.ListMappings(), jsontext.WithIndent("  "), jsontext.SpaceAfterColon(true), json.Deterministic(true))
		if err != nil {
			fmt.Fprintln(stderr, err)
			return 1
		}
		fmt.Fprintln(stdout, string(b))
		return 0
	}

	fmt.Fprintln(stdout, styleHeader.Render("Agent: "+cfg.AgentPath))
	if ac.Len() == 0 {
		fmt.Fprintln(stdout, "Mappings: (none)")
		return 0
	}
	fmt.Fprintln(stdout, "Mappings:")
	for _, p := range ac.Providers() {
		id, _ := ac.IntegrationID(p)
		if !*reveal {
			id = util.Mask(id)
		}
		fmt.Fprintf(stdout, "  - %s: %s\n", p, id)
	}
	return 0
}

func tuiCmd(args []string, _, stderr io.Writer, getenv func(string) string) int {
	fs, c := newFlagSet("tui", stderr)
	cfg, ctx, ok := setup(fs, c, args, stderr, getenv)
	if !ok {
		return 2
	}
	if err := ui.Run(ctx, cfg.AgentPath); err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	return 0
}
