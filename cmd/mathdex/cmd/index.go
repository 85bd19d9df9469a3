package cmd

import (
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/mathdex/internal/config"
	"github.com/Aman-CERP/mathdex/internal/errors"
	"github.com/Aman-CERP/mathdex/internal/lex"
	"github.com/Aman-CERP/mathdex/internal/logging"
	"github.com/Aman-CERP/mathdex/internal/pipeline"
	"github.com/Aman-CERP/mathdex/internal/store"
	"github.com/Aman-CERP/mathdex/internal/tex"
)

func newIndexCmd() *cobra.Command {
	var configPath string
	var debugMode bool

	cmd := &cobra.Command{
		Use:   "index <corpus-path>",
		Short: "Ingest a corpus of JSON records into the index",
		Long: `Ingest corpus records into the term, math, offset and blob stores.

The corpus path is either a single .json record file or a directory
that is walked for .json files, one record per file. Records are
ingested sequentially; malformed or oversize records are skipped and
logged. Ingestion stops only on an unrecoverable index fault.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			logCfg := logging.Config{
				Level:         cfg.Logging.Level,
				FilePath:      cfg.Logging.FilePath,
				WriteToStderr: true,
			}
			if debugMode {
				logCfg.Level = "debug"
			}
			cleanup, err := logging.SetupDefault(logCfg)
			if err != nil {
				return err
			}
			defer cleanup()

			return runIndex(cfg, args[0])
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "mathdex.yaml", "Path to the configuration file")
	cmd.Flags().BoolVar(&debugMode, "debug", false, "Enable debug logging")

	return cmd
}

// runIndex opens all backing stores, ingests the corpus, and reports
// run statistics.
func runIndex(cfg *config.Config, corpusPath string) error {
	if err := os.MkdirAll(cfg.Paths.DataDir, 0o755); err != nil {
		return errors.Wrap(errors.ErrCodeStoreOpen, err)
	}

	terms, err := store.NewBleveTermIndex(cfg.StorePath("terms.bleve"), store.TermIndexConfig{
		BatchSize: cfg.Index.BatchSize,
	})
	if err != nil {
		return err
	}
	defer terms.Close()

	mathIndex, err := store.OpenMathIndex(cfg.StorePath("math.db"))
	if err != nil {
		return err
	}
	defer mathIndex.Close()

	offsets, err := store.OpenOffsetStore(cfg.StorePath("offsets.db"))
	if err != nil {
		return err
	}
	defer offsets.Close()

	urlBlobs, err := store.OpenBlobStore(cfg.StorePath("urls.db"))
	if err != nil {
		return err
	}
	defer urlBlobs.Close()

	textBlobs, err := store.OpenBlobStore(cfg.StorePath("text.db"))
	if err != nil {
		return err
	}
	defer textBlobs.Close()

	session, err := pipeline.NewSession(pipeline.SessionConfig{
		Terms:          terms,
		Math:           mathIndex,
		Offsets:        offsets,
		Parser:         tex.NewParser(),
		Segment:        lex.SegmentWords,
		ParseCacheSize: cfg.Index.ParseCacheSize,
	})
	if err != nil {
		return err
	}

	ingestor, err := pipeline.NewIngestor(pipeline.IngestorConfig{
		Session:             session,
		Terms:               terms,
		URLBlobs:            urlBlobs,
		TextBlobs:           textBlobs,
		Codec:               store.GzipCodec{},
		Offsets:             offsets,
		Lex:                 lex.Scan,
		MaxRecordSize:       cfg.Corpus.MaxRecordSize,
		MaintenanceThrottle: cfg.Index.MaintenanceThrottle,
	})
	if err != nil {
		return err
	}

	records, err := collectRecordFiles(corpusPath)
	if err != nil {
		return err
	}
	slog.Info("starting ingestion",
		slog.Int("records", len(records)),
		slog.String("data_dir", cfg.Paths.DataDir))

	for _, path := range records {
		raw, err := os.ReadFile(path)
		if err != nil {
			slog.Warn("cannot read record file",
				slog.String("path", path),
				slog.String("error", err.Error()))
			continue
		}

		if err := ingestor.IngestRecord(raw); err != nil {
			if errors.IsFatal(err) {
				// flush what we can before stopping; offset records
				// already written are still valid
				_ = offsets.Flush()
				slog.Error("unrecoverable index fault, stopping",
					slog.String("path", path),
					slog.String("error", err.Error()))
				return err
			}
			slog.Warn("record skipped",
				slog.String("path", path),
				slog.String("error", err.Error()))
		}
	}

	if err := offsets.Flush(); err != nil {
		return err
	}

	stats := ingestor.Stats()
	slog.Info("ingestion complete",
		slog.Uint64("indexed", stats.RecordsIndexed),
		slog.Uint64("skipped", stats.RecordsSkipped),
		slog.Uint64("maintenance_pauses", stats.MaintenancePauses),
		slog.Uint64("tex_parse_failures", stats.TeXParseFailures),
		slog.Uint64("offset_write_failures", stats.OffsetWriteFailures))
	fmt.Printf("Indexed %d records (%d skipped)\n", stats.RecordsIndexed, stats.RecordsSkipped)
	return nil
}

// collectRecordFiles resolves the corpus path into an ordered list of
// record files. Directories are walked recursively; ordering is by path
// so re-runs assign the same DocIDs.
func collectRecordFiles(corpusPath string) ([]string, error) {
	info, err := os.Stat(corpusPath)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeConfigInvalid, err)
	}
	if !info.IsDir() {
		return []string{corpusPath}, nil
	}

	var files []string
	err = filepath.WalkDir(corpusPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.HasSuffix(d.Name(), ".json") {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeConfigInvalid, err)
	}
	sort.Strings(files)
	return files, nil
}
