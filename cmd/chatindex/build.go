package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/chatindex/internal/config"
	"github.com/fyrsmithlabs/chatindex/internal/enrichment"
	"github.com/fyrsmithlabs/chatindex/internal/indexer"
	"github.com/fyrsmithlabs/chatindex/internal/language"
	"github.com/fyrsmithlabs/chatindex/internal/secrets"
)

var (
	buildExport  string
	buildRebuild bool
)

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Build or update the index from a ChatGPT export",
	Long: `Parse conversations.json from a ChatGPT data export and write it into the
index. Without --rebuild, conversations already indexed are updated in place
and messages already stored are skipped.`,
	Args: cobra.NoArgs,
	RunE: runBuild,
}

func init() {
	buildCmd.Flags().StringVar(&buildExport, "export", "", "path to conversations.json (default: index.export_path from config)")
	buildCmd.Flags().BoolVar(&buildRebuild, "rebuild", false, "drop the existing index before building")
	rootCmd.AddCommand(buildCmd)
}

func runBuild(cmd *cobra.Command, _ []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.close()

	export, err := a.exportPath(buildExport)
	if err != nil {
		return err
	}

	ix, err := a.newIndexer(buildRebuild)
	if err != nil {
		return err
	}

	stats, err := ix.Build(cmd.Context(), export, a.dbPath)
	if err != nil {
		return err
	}
	renderBuild(cmd.OutOrStdout(), stats)
	return nil
}

// exportPath resolves the export flag, falling back to index.export_path.
func (a *app) exportPath(flag string) (string, error) {
	p := flag
	if p == "" {
		p = a.cfg.Index.ExportPath
	}
	if p == "" {
		return "", errors.New("no export file given; pass --export /path/to/conversations.json or set index.export_path")
	}
	return config.ExpandHome(p)
}

// newIndexer wires the build pipeline from configuration.
func (a *app) newIndexer(rebuild bool) (*indexer.Indexer, error) {
	detector, err := language.New(&a.cfg.Language)
	if err != nil {
		return nil, fmt.Errorf("language detection: %w", err)
	}

	kwCfg := enrichment.NewDefaultConfig()
	if err := a.cfg.Section("keywords", kwCfg); err != nil {
		return nil, err
	}
	extractor, err := enrichment.NewExtractor(kwCfg, a.logger)
	if err != nil {
		return nil, fmt.Errorf("keyword extraction: %w", err)
	}

	scrubber, err := a.newScrubber()
	if err != nil {
		return nil, err
	}

	return indexer.New(indexer.Options{
		Rebuild:   rebuild,
		BatchSize: a.cfg.Index.BatchSize,
		Store:     a.cfg.Store,
	}, indexer.Deps{
		Detector:  detector,
		Extractor: extractor,
		Scrubber:  scrubber,
		Logger:    a.logger,
		Telemetry: a.tel,
	})
}

func (a *app) newScrubber() (secrets.Scrubber, error) {
	if !a.cfg.Secrets.Enabled {
		return secrets.NoopScrubber{}, nil
	}
	secCfg := secrets.DefaultConfig()
	if err := a.cfg.Section("secrets", secCfg); err != nil {
		return nil, err
	}
	if a.cfg.Secrets.AllowlistPath != "" {
		path, err := config.ExpandHome(a.cfg.Secrets.AllowlistPath)
		if err != nil {
			return nil, err
		}
		allow, err := secrets.LoadAllowlist(path)
		if err != nil {
			return nil, err
		}
		allow.Apply(secCfg)
	}
	return secrets.New(secCfg)
}
