package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/extract-annotator/internal/common"
	"github.com/joseph-ayodele/extract-annotator/internal/export"
	repo "github.com/joseph-ayodele/extract-annotator/internal/repository"
	"github.com/joseph-ayodele/extract-annotator/internal/services/annotation"
)

// printError prints an error message to stderr, falling back to stdout if stderr fails
func printError(format string, args ...interface{}) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		fmt.Printf(format, args...)
	}
}

func main() {
	var (
		fileStr    = flag.String("file", "", "file id whose annotations to export (required)")
		format     = flag.String("format", "xlsx", "export format: xlsx or json")
		out        = flag.String("out", "", "output path (defaults to annotations-<file>.<format>)")
		importPath = flag.String("import", "", "import a JSON document instead of exporting")
	)
	flag.Parse()

	if *fileStr == "" {
		printError("Error: --file is required\n")
		os.Exit(1)
	}
	fileID, err := uuid.Parse(*fileStr)
	if err != nil {
		printError("Error: --file must be a UUID: %v\n", err)
		os.Exit(1)
	}
	*format = strings.ToLower(*format)
	if *importPath == "" && *format != "xlsx" && *format != "json" {
		printError("Error: --format must be xlsx or json\n")
		os.Exit(1)
	}
	if *out == "" {
		*out = filepath.Join(".", fmt.Sprintf("annotations-%s.%s", fileID, *format))
	}

	cfg := common.LoadConfig()
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	db, err := repo.Open(ctx, repo.Config{
		DSN:         cfg.Database.DSN,
		MaxConns:    cfg.Database.MaxConns,
		DialTimeout: cfg.Database.DialTimeout,
	}, logger)
	if err != nil {
		printError("Error: opening database: %v\n", err)
		os.Exit(1)
	}
	defer repo.Close(db, logger)
	if cfg.Database.AutoMigrate {
		if err := repo.Migrate(ctx, db, logger); err != nil {
			printError("Error: migrating database: %v\n", err)
			os.Exit(1)
		}
	}

	spans := repo.NewSpanRepository(db, logger)
	svc := annotation.NewService(spans, repo.NewContentRepository(db, logger), nil, logger, annotation.WithLimits(cfg.Limits))
	exports := export.NewService(spans, svc, cfg.Limits.MaxImportBytes, logger)

	if *importPath != "" {
		data, err := os.ReadFile(*importPath)
		if err != nil {
			printError("Error: reading %s: %v\n", *importPath, err)
			os.Exit(1)
		}
		res, err := exports.Import(ctx, fileID, data)
		if err != nil {
			printError("Error: import failed: %s\n", common.PublicMessage(err))
			os.Exit(1)
		}
		fmt.Printf("created %d, skipped %d, rejected %d\n", res.Created, res.Skipped, len(res.Errors))
		for _, msg := range res.Errors {
			fmt.Printf("  %s\n", msg)
		}
		return
	}

	var data []byte
	if *format == "json" {
		data, err = exports.ExportJSON(ctx, fileID)
	} else {
		data, err = exports.ExportXLSX(ctx, fileID)
	}
	if err != nil {
		printError("Error: export failed: %v\n", err)
		os.Exit(1)
	}
	if err := os.WriteFile(*out, data, 0o644); err != nil {
		printError("Error: writing %s: %v\n", *out, err)
		os.Exit(1)
	}
	fmt.Printf("wrote %s (%d bytes)\n", *out, len(data))
}
