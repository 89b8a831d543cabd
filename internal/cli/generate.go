package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/NLarchive/circuit-sensei-sub001/internal/doc"
	"github.com/NLarchive/circuit-sensei-sub001/internal/levels"
)

// GenerateVariants expands the manifest into one file per level variant and
// writes the difficulty index next to the manifest.
func GenerateVariants(args []string, stdout, stderr io.Writer) int {
	fs, project := newFlagSet("generate-variants", stderr)
	manifestPath := fs.String("manifest", "", "path to levels-manifest.json (defaults to the configured manifest)")
	outputDir := fs.String("output", "", "output directory for variant files (defaults to the configured games dir)")
	indexPath := fs.String("index", "", "path of the difficulty index (defaults to next to the manifest)")
	dryRun := fs.Bool("dry-run", false, "show what would be done without writing files")
	clean := fs.Bool("clean", false, "remove existing generated files before generating")
	verbose := fs.Bool("verbose", false, "print the override fields of every variant")
	schemas := fs.Bool("schemas", false, "also write JSON Schemas for the index documents")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}
	c := console{out: stdout, err: stderr}

	cfg, err := loadConfig(*project)
	if err != nil {
		c.errorf("load config: %v", err)
		return exitError
	}
	manifestFile := pick(*manifestPath, cfg.ManifestPath())
	output := pick(*outputDir, cfg.GamesDir())
	index := *indexPath
	if index == "" {
		index = filepath.Join(filepath.Dir(manifestFile), "levels-difficulty-index.json")
	}

	c.heading("Variant Generator")
	c.printf("Mode: %s\n", mode(*dryRun))
	c.printf("Output: %s\n\n", output)

	manifest, err := levels.LoadManifest(manifestFile)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			c.errorf("Manifest not found: %s", manifestFile)
			fmt.Fprintln(stderr, "Run migrate-manifest first.")
			return exitError
		}
		c.errorf("%v", err)
		return exitError
	}
	c.printf("Loaded manifest v%s\n", manifest.Version)
	c.printf("  %d levels\n\n", len(manifest.Levels))

	if problems := levels.ValidateManifest(manifest); len(problems) > 0 {
		c.errorf("Manifest validation errors:")
		for _, problem := range problems {
			fmt.Fprintf(stderr, "  - %v\n", problem)
		}
		return exitError
	}

	if *clean {
		if err := cleanGenerated(c, output, *dryRun); err != nil {
			c.errorf("%v", err)
			return exitError
		}
		c.println()
	}

	c.println("Generating variants...")
	for _, level := range manifest.Levels {
		id := level.Text(levels.FieldID)
		if !levels.HasVariants(level) {
			c.println(dimStyle.Render(fmt.Sprintf("  Skipping %s (no variants)", id)))
			continue
		}
		for _, named := range levels.Variants(level) {
			c.printf("  Generated %s\n", levels.FileName(id, named.Name))
			if *verbose {
				printOverride(c, named.Override.Map())
			}
		}
	}
	generated, err := levels.GenerateAllVariants(manifest)
	if err != nil {
		c.errorf("%v", err)
		return exitError
	}
	c.println()

	files := make([]pendingFile, 0, len(generated)+1)
	for _, g := range generated {
		data, err := g.Encode()
		if err != nil {
			c.errorf("encode %s: %v", g.FileName, err)
			return exitError
		}
		files = append(files, pendingFile{path: filepath.Join(output, g.FileName), data: data})
	}

	difficulty, err := levels.BuildDifficultyIndex(generated)
	if err != nil {
		c.errorf("%v", err)
		return exitError
	}
	indexData, err := difficulty.Encode()
	if err != nil {
		c.errorf("encode difficulty index: %v", err)
		return exitError
	}
	files = append(files, pendingFile{path: index, data: indexData})

	if *schemas {
		extra, err := schemaFiles(filepath.Dir(index))
		if err != nil {
			c.errorf("%v", err)
			return exitError
		}
		files = append(files, extra...)
	}

	if !*dryRun {
		if err := writeAll(files); err != nil {
			reportErrors(c, "Write failed", err)
			return exitError
		}
	}
	c.printf("Wrote %d files to %s\n\n", len(generated), output)
	c.printf("Generated difficulty index: %s\n", index)
	for _, row := range []struct {
		label  string
		bucket *levels.DifficultyBucket
	}{
		{"Easy:  ", difficulty.Difficulties.Easy},
		{"Medium:", difficulty.Difficulties.Medium},
		{"Hard:  ", difficulty.Difficulties.Hard},
	} {
		c.printf("  %s %d levels, %s XP\n", row.label, row.bucket.Count, formatXP(row.bucket.TotalXP))
	}
	if *schemas {
		c.printf("Wrote %d schemas to %s\n", len(files)-len(generated)-1, filepath.Dir(index))
	}

	c.println()
	c.println(okStyle.Render(fmt.Sprintf("Done! Generated %d variant files + difficulty index.", len(generated))))
	if *dryRun {
		c.println(warnStyle.Render("[DRY RUN] No files were actually written."))
	}
	return exitOK
}

// cleanGenerated removes *.json files whose name contains "_" from dir.
func cleanGenerated(c console, dir string, dryRun bool) error {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("clean %s: %w", dir, err)
	}
	var stale []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".json") || !strings.Contains(name, "_") {
			continue
		}
		stale = append(stale, name)
	}
	c.printf("Cleaning %d existing files...\n", len(stale))
	for _, name := range stale {
		if !dryRun {
			if err := os.Remove(filepath.Join(dir, name)); err != nil {
				return fmt.Errorf("clean %s: %w", name, err)
			}
		}
		c.printf("  Removed %s\n", name)
	}
	return nil
}

const overrideWidth = 50

func printOverride(c console, override *doc.Map) {
	if override.Len() == 0 {
		c.println(dimStyle.Render("    (inherits base)"))
		return
	}
	override.Range(func(key string, v doc.Value) bool {
		if v.IsMap() {
			c.printf("    - %s: [object]\n", key)
			return true
		}
		raw, err := doc.EncodeIndent(v, "")
		if err != nil {
			raw = []byte(v.Kind().String())
		}
		c.printf("    - %s: %s\n", key, truncate(string(raw), overrideWidth))
		return true
	})
}

// truncate cuts text to at most width runes.
func truncate(text string, width int) string {
	runes := []rune(text)
	if len(runes) <= width {
		return text
	}
	return string(runes[:width])
}

func schemaFiles(dir string) ([]pendingFile, error) {
	schemas, err := levels.Schemas()
	if err != nil {
		return nil, err
	}
	var out []pendingFile
	for _, name := range levels.SchemaNames(schemas) {
		data, err := levels.EncodeSchema(schemas[name])
		if err != nil {
			return nil, err
		}
		out = append(out, pendingFile{path: filepath.Join(dir, name), data: data})
	}
	return out, nil
}

func formatXP(xp float64) string {
	raw, err := doc.Encode(doc.Number(xp))
	if err != nil {
		return fmt.Sprint(xp)
	}
	return string(raw)
}
