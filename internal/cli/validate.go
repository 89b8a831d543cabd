package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/NLarchive/circuit-sensei-sub001/internal/doc"
	"github.com/NLarchive/circuit-sensei-sub001/internal/docdiff"
	"github.com/NLarchive/circuit-sensei-sub001/internal/levels"
	"github.com/NLarchive/circuit-sensei-sub001/internal/levelstore"
)

const shownDiffs = 3

// ValidateGenerated compares the generated variant directory with a snapshot
// and, with --manifest, with what the runtime resolver produces.
func ValidateGenerated(args []string, stdout, stderr io.Writer) int {
	fs, project := newFlagSet("validate-generated", stderr)
	generatedDir := fs.String("generated", "", "directory of generated variant files (defaults to the configured games dir)")
	snapshotDir := fs.String("snapshot", "", "directory of snapshot files to compare against")
	strict := fs.Bool("strict", false, "fail on any difference")
	manifestPath := fs.String("manifest", "", "also check runtime parity against this manifest")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}
	c := console{out: stdout, err: stderr}

	cfg, err := loadConfig(*project)
	if err != nil {
		c.errorf("load config: %v", err)
		return exitError
	}
	generated := pick(*generatedDir, cfg.GamesDir())
	snapshot := pick(*snapshotDir, cfg.SnapshotDir())

	c.heading("Validating Generated Files")
	c.printf("Generated: %s\n", generated)
	c.printf("Snapshot:  %s\n\n", snapshot)

	code := exitOK
	if info, err := os.Stat(snapshot); err != nil || !info.IsDir() {
		if *manifestPath == "" {
			c.errorf("Snapshot directory not found: %s", snapshot)
			return exitError
		}
		c.println(warnStyle.Render("Snapshot directory not found, skipping snapshot comparison."))
	} else {
		report, err := docdiff.CompareDirs(generated, snapshot)
		if err != nil {
			c.errorf("%v", err)
			return exitError
		}
		code = printReport(c, report, *strict)
	}

	if *manifestPath != "" {
		if parity := checkParity(c, *manifestPath, generated); parity != exitOK {
			code = parity
		}
	}
	return code
}

func printReport(c console, report docdiff.Report, strict bool) int {
	c.printf("Generated files: %d\n", report.Generated)
	c.printf("Snapshot files:  %d\n\n", report.Snapshot)
	for _, file := range report.Files {
		switch file.Status {
		case docdiff.FileNew:
			c.println(warnStyle.Render(fmt.Sprintf("  ⚠️  %s: no snapshot file (new)", file.Name)))
		case docdiff.FileRemoved:
			c.println(warnStyle.Render(fmt.Sprintf("  ⚠️  %s: only in snapshot (removed)", file.Name)))
		case docdiff.FilePassed:
			c.println(okStyle.Render(fmt.Sprintf("  ✅ %s: identical", file.Name)))
		case docdiff.FileFailed:
			c.println(failStyle.Render(fmt.Sprintf("  ❌ %s: %d differences", file.Name, len(file.Diffs))))
			printDiffs(c, file.Diffs)
		}
	}

	c.println()
	c.heading("Summary")
	c.printf("  Passed:  %d\n", report.Passed())
	c.printf("  Failed:  %d\n", report.Failed())
	c.printf("  Skipped: %d\n", report.Skipped())
	c.println()

	switch {
	case report.HasDrift() && strict:
		c.errorf("Validation FAILED in strict mode.")
		return exitError
	case report.HasDrift():
		c.println(warnStyle.Render("Some files differ but may still be functionally equivalent."))
		c.println("Run with --strict to fail on any difference.")
	default:
		c.println(okStyle.Render("✅ All generated files match the snapshot!"))
	}
	return exitOK
}

func printDiffs(c console, diffs []docdiff.Difference) {
	for i, d := range diffs {
		if i == shownDiffs {
			c.println(dimStyle.Render(fmt.Sprintf("      ... and %d more", len(diffs)-shownDiffs)))
			return
		}
		switch d.Kind {
		case docdiff.KindMissingInA:
			c.printf("      + %s: added in generated\n", d.Path)
		case docdiff.KindMissingInB:
			c.printf("      - %s: missing in generated\n", d.Path)
		case docdiff.KindValueMismatch:
			c.printf("      ~ %s: '%s' → '%s'\n", d.Path, display(d.A), display(d.B))
		default:
			c.printf("      ! %s: %s\n", d.Path, d.Kind)
		}
	}
}

// display renders a scalar the way it reads in a message: strings bare,
// everything else as compact JSON.
func display(v doc.Value) string {
	if s, ok := v.AsString(); ok {
		return s
	}
	raw, err := doc.EncodeIndent(v, "")
	if err != nil {
		return v.Kind().String()
	}
	return string(raw)
}

// checkParity resolves every variant through the manifest resolver and
// compares it with the generated file on disk. Any mismatch fails.
func checkParity(c console, manifestPath, generatedDir string) int {
	c.println()
	c.heading("Runtime Parity")
	resolver, err := levelstore.LoadManifestResolver(manifestPath)
	if err != nil {
		c.errorf("%v", err)
		return exitError
	}
	ctx := context.Background()
	checked, failed := 0, 0
	for _, level := range resolver.Manifest().Levels {
		id := level.Text(levels.FieldID)
		for _, named := range levels.Variants(level) {
			name := levels.FileName(id, named.Name)
			checked++
			runtime, err := resolver.LoadLevelVariant(ctx, id, named.Name)
			if err != nil {
				c.println(failStyle.Render(fmt.Sprintf("  ❌ %s: %v", name, err)))
				failed++
				continue
			}
			onDisk, err := doc.ReadFile(filepath.Join(generatedDir, name))
			if err != nil {
				if errors.Is(err, os.ErrNotExist) {
					c.println(failStyle.Render(fmt.Sprintf("  ❌ %s: not generated", name)))
				} else {
					c.println(failStyle.Render(fmt.Sprintf("  ❌ %s: %v", name, err)))
				}
				failed++
				continue
			}
			onDisk.Delete(levels.FieldSchema)
			result := docdiff.CompareValues(name, doc.FromMap(onDisk), doc.FromMap(runtime))
			if result.Status == docdiff.FilePassed {
				c.println(okStyle.Render(fmt.Sprintf("  ✅ %s: matches runtime", name)))
				continue
			}
			failed++
			c.println(failStyle.Render(fmt.Sprintf("  ❌ %s: %d differences", name, len(result.Diffs))))
			printDiffs(c, result.Diffs)
		}
	}
	c.printf("\n  Checked: %d\n  Failed:  %d\n", checked, failed)
	if failed > 0 {
		c.errorf("Runtime parity FAILED. Regenerate with generate-variants.")
		return exitError
	}
	return exitOK
}
