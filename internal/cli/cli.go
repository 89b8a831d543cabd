// Package cli implements the content pipeline tools. Each tool takes its
// arguments and output streams explicitly and returns a process exit code,
// so the cmd/ wrappers stay one line long and the tools can be tested
// in-process.
package cli

import (
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/lipgloss"
	"go.uber.org/multierr"

	"github.com/NLarchive/circuit-sensei-sub001/internal/config"
)

const (
	exitOK    = 0
	exitError = 1
	exitUsage = 2
)

var (
	headingStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#F7B801")).Bold(true)
	okStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("#4CAF50"))
	failStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B")).Bold(true)
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#F7B801"))
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888"))
)

// console writes tool output. Errors go to stderr.
type console struct {
	out io.Writer
	err io.Writer
}

func (c console) println(args ...any) { fmt.Fprintln(c.out, args...) }

func (c console) printf(format string, args ...any) { fmt.Fprintf(c.out, format, args...) }

func (c console) errorf(format string, args ...any) {
	fmt.Fprintln(c.err, failStyle.Render(fmt.Sprintf(format, args...)))
}

func (c console) heading(title string) {
	c.println(headingStyle.Render("=== " + title + " ==="))
}

func mode(dryRun bool) string {
	if dryRun {
		return "DRY RUN"
	}
	return "APPLY"
}

// newFlagSet builds a flag set that reports usage errors to stderr.
func newFlagSet(name string, stderr io.Writer) (*flag.FlagSet, *string) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(stderr)
	project := fs.String("project", "", "project directory holding .sensei (defaults to cwd)")
	return fs, project
}

// loadConfig resolves the project directory and loads its config.
func loadConfig(project string) (*config.Config, error) {
	if project == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("cli: determine working directory: %w", err)
		}
		project = cwd
	}
	abs, err := filepath.Abs(project)
	if err != nil {
		return nil, fmt.Errorf("cli: resolve project dir: %w", err)
	}
	return config.Load(abs)
}

func pick(flagValue, fallback string) string {
	if flagValue != "" {
		return flagValue
	}
	return fallback
}

// pendingFile is a document waiting to be written.
type pendingFile struct {
	path string
	data []byte
}

// writeAll writes every file, creating parent directories, and returns the
// combined failures.
func writeAll(files []pendingFile) error {
	var errs error
	for _, f := range files {
		if err := os.MkdirAll(filepath.Dir(f.path), 0o755); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("create %s: %w", filepath.Dir(f.path), err))
			continue
		}
		if err := os.WriteFile(f.path, f.data, 0o644); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("write %s: %w", f.path, err))
		}
	}
	return errs
}

// reportErrors prints each error combined by multierr on its own line.
func reportErrors(c console, title string, err error) {
	c.errorf("%s:", title)
	for _, e := range multierr.Errors(err) {
		fmt.Fprintf(c.err, "  - %v\n", e)
	}
}
