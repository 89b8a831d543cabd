package cli

import (
	"fmt"
	"io"

	"github.com/NLarchive/circuit-sensei-sub001/internal/doc"
	"github.com/NLarchive/circuit-sensei-sub001/internal/levels"
)

// MigrateManifest folds base levels and their legacy variant files into a
// manifest where each variant keeps only the fields that differ from base.
func MigrateManifest(args []string, stdout, stderr io.Writer) int {
	fs, project := newFlagSet("migrate-manifest", stderr)
	levelsDir := fs.String("levels", "", "directory of base level files (defaults to story/levels)")
	gamesDir := fs.String("games", "", "directory of legacy variant files (defaults to story/levels-games)")
	output := fs.String("output", "", "manifest path to write (defaults to the configured manifest)")
	dryRun := fs.Bool("dry-run", false, "show the result without writing the manifest")
	verbose := fs.Bool("verbose", false, "print every override field")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}
	c := console{out: stdout, err: stderr}

	cfg, err := loadConfig(*project)
	if err != nil {
		c.errorf("load config: %v", err)
		return exitError
	}
	manifestFile := pick(*output, cfg.ManifestPath())

	c.heading("Level Manifest Migration")
	c.printf("Mode: %s\n\n", mode(*dryRun))

	legacy, err := levels.LoadLegacyLevels(pick(*levelsDir, cfg.LevelsDir()), pick(*gamesDir, cfg.GamesDir()), func(format string, args ...any) {
		fmt.Fprintln(stderr, warnStyle.Render("  Warning: "+fmt.Sprintf(format, args...)))
	})
	if err != nil {
		c.errorf("%v", err)
		return exitError
	}
	c.printf("Found %d base levels\n", len(legacy))

	migration := levels.BuildManifest(legacy)
	overrides := make(map[string]*doc.Map, len(migration.Overrides))
	for _, o := range migration.Overrides {
		overrides[o.ID] = o.Override
	}
	for _, level := range legacy {
		for _, variant := range level.Variants {
			id := levels.VariantID(level.ID, variant.Name)
			override := overrides[id]
			if override.Len() == 0 {
				c.println(dimStyle.Render(fmt.Sprintf("  %s: identical to base (no overrides needed)", id)))
				continue
			}
			c.printf("  %s: %d overrides\n", id, override.Len())
			if *verbose {
				printOverride(c, override)
			}
		}
		c.printf("  Processed %s with %d variants\n", level.ID, len(level.Variants))
	}

	c.println()
	c.println("Summary:")
	c.printf("  - %d base levels\n", migration.Stats.BaseLevels)
	c.printf("  - %d total variants\n", migration.Stats.TotalVariants)
	c.printf("  - %d fields deduplicated via inheritance\n", migration.Stats.FieldsDeduped)

	data, err := doc.Encode(doc.FromMap(migration.Manifest))
	if err != nil {
		c.errorf("encode manifest: %v", err)
		return exitError
	}
	c.printf("\nOutput size: %.2f KB\n", float64(len(data))/1024)

	if *dryRun {
		c.printf("\n[DRY RUN] Would write manifest to: %s\n", manifestFile)
		c.println(warnStyle.Render("[DRY RUN] No files modified."))
		return exitOK
	}
	if err := writeAll([]pendingFile{{path: manifestFile, data: data}}); err != nil {
		reportErrors(c, "Write failed", err)
		return exitError
	}
	c.println(okStyle.Render("\nManifest written to: " + manifestFile))
	return exitOK
}
