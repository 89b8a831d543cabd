package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/NLarchive/circuit-sensei-sub001/internal/doc"
	"github.com/NLarchive/circuit-sensei-sub001/internal/levels"
)

// SplitLevels projects the manifest into the theory/puzzle/index layout read
// by the runtime level store. Without --live nothing is written.
func SplitLevels(args []string, stdout, stderr io.Writer) int {
	fs, project := newFlagSet("split-levels", stderr)
	manifestPath := fs.String("manifest", "", "path to levels-manifest.json (defaults to the configured manifest)")
	outputDir := fs.String("output", "", "story directory to write into (defaults to the configured story dir)")
	live := fs.Bool("live", false, "write files (default is a dry run)")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}
	c := console{out: stdout, err: stderr}

	cfg, err := loadConfig(*project)
	if err != nil {
		c.errorf("load config: %v", err)
		return exitError
	}
	output := pick(*outputDir, cfg.StoryDir())
	rule := strings.Repeat("=", 60)

	c.println(rule)
	c.println(headingStyle.Render("LEVEL SYSTEM SPLIT"))
	if *live {
		c.println("Mode: LIVE")
	} else {
		c.println("Mode: DRY RUN (no files written)")
	}
	c.println(rule)

	manifest, err := levels.LoadManifest(pick(*manifestPath, cfg.ManifestPath()))
	if err != nil {
		c.errorf("%v", err)
		return exitError
	}
	c.printf("\nLoaded manifest: %d levels\n", len(manifest.Levels))

	if problems := levels.ValidateManifest(manifest); len(problems) > 0 {
		c.errorf("Manifest validation errors:")
		for _, problem := range problems {
			fmt.Fprintf(stderr, "  - %v\n", problem)
		}
		return exitError
	}

	split, err := levels.SplitManifest(manifest)
	if err != nil {
		c.errorf("%v", err)
		return exitError
	}

	dirs := []string{
		filepath.Join(output, levels.TheoryFolder),
		filepath.Join(output, levels.PuzzlesFolder),
		filepath.Join(output, levels.MediaFolder),
	}
	if *live {
		for _, dir := range dirs {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				c.errorf("create %s: %v", dir, err)
				return exitError
			}
		}
		c.println("\nCreated directories:")
		for _, dir := range dirs {
			c.printf("  - %s\n", dir)
		}
	}

	var files []pendingFile
	add := func(rel string, data *doc.Map) error {
		raw, err := doc.Encode(doc.FromMap(data))
		if err != nil {
			return fmt.Errorf("encode %s: %w", rel, err)
		}
		files = append(files, pendingFile{path: filepath.Join(output, filepath.FromSlash(rel)), data: raw})
		return nil
	}

	puzzles := make(map[string]*doc.Map, len(split.Puzzles))
	for _, p := range split.Puzzles {
		puzzles[p.Path] = p.Data
	}
	for i, entry := range split.Index.Levels {
		theory := split.Theory[i]
		c.printf("\nProcessing: %s - %s\n", entry.ID, entry.Title)
		if err := add(theory.Path, theory.Data); err != nil {
			c.errorf("%v", err)
			return exitError
		}
		c.println(okStyle.Render(fmt.Sprintf("  ✓ Theory: %s.json (%d fields)", entry.ID, theory.Data.Len())))
		if entry.PuzzleFiles == nil {
			c.println(dimStyle.Render("  - No puzzle (index level)"))
			continue
		}
		for _, ref := range entry.PuzzleFiles.Refs() {
			puzzle := puzzles[ref.File]
			if err := add(ref.File, puzzle); err != nil {
				c.errorf("%v", err)
				return exitError
			}
			name := filepath.Base(ref.File)
			if ref.Variant == levels.BaseVariant {
				c.println(okStyle.Render(fmt.Sprintf("  ✓ Puzzle: %s (base)", name)))
				continue
			}
			c.println(okStyle.Render(fmt.Sprintf("  ✓ Puzzle: %s (%s inputs, %s XP)", name,
				formatXP(puzzle.Value("inputs").NumberOr(0)), formatXP(puzzle.Value("xpReward").NumberOr(0)))))
		}
	}

	indexData, err := split.Index.Encode()
	if err != nil {
		c.errorf("encode index: %v", err)
		return exitError
	}
	files = append(files, pendingFile{path: filepath.Join(output, "levels-index.json"), data: indexData})
	c.println(okStyle.Render(fmt.Sprintf("\n✓ Index: levels-index.json (%d entries)", len(split.Index.Levels))))

	if *live {
		if err := writeAll(files); err != nil {
			reportErrors(c, "Write failed", err)
			return exitError
		}
	}

	c.println("\n" + rule)
	c.println(headingStyle.Render("SPLIT SUMMARY"))
	c.println(rule)
	c.printf("Theory files:  %d\n", len(split.Theory))
	c.printf("Puzzle files:  %d\n", len(split.Puzzles))
	c.printf("Index entries: %d\n", len(split.Index.Levels))
	c.printf("Total files:   %d\n", len(split.Theory)+len(split.Puzzles)+1)
	if !*live {
		c.println(warnStyle.Render("\n⚠️  DRY RUN - No files were actually written."))
		c.println("Run with --live to perform the split.")
		return exitOK
	}
	c.println(okStyle.Render("\n✅ Split complete!"))
	return exitOK
}
