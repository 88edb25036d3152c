// stardb-inspect prints the shape and metadata of a stored artifact.
//
// The backend is selected by configuration (STORAGE_BACKEND, STORAGE_ROOT,
// DATABASE_URL, ...), never by code: the tool only speaks the storage
// contract and works unchanged against any backend.
//
// Usage:
//
//	stardb-inspect <table-name>
//	stardb-inspect -json <document-name>
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"stardb/internal/config"
	"stardb/internal/logging"
	"stardb/internal/storage"
	"stardb/internal/table"
)

func main() {
	asJSON := flag.Bool("json", false, "inspect a JSON document instead of a table")
	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: stardb-inspect [-json] <name>")
		os.Exit(2)
	}
	name := flag.Arg(0)

	// Load .env file if it exists (Overload overwrites existing env vars)
	if err := godotenv.Overload(); err == nil {
		slog.Info("loaded .env file (overwriting existing env vars)")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)
	log := logging.WithFields("backend", cfg.Storage.Backend)

	ctx := context.Background()
	store, cleanup, err := openStore(ctx, cfg)
	if err != nil {
		log.Error("failed to open storage backend", "error", err)
		os.Exit(1)
	}
	defer cleanup()

	if err := inspect(ctx, store, name, *asJSON); err != nil {
		log.Error("inspect failed", "name", name, "error", err)
		os.Exit(1)
	}
}

// openStore maps configuration onto backend options, connecting a pool only
// when the postgres backend is selected.
func openStore(ctx context.Context, cfg *config.Config) (storage.Store, func(), error) {
	opts := storage.Options{
		Backend:   cfg.Storage.Backend,
		Root:      cfg.Storage.Root,
		Namespace: cfg.Storage.Namespace,
	}
	cleanup := func() {}

	if cfg.Storage.Backend == storage.BackendPostgres {
		poolConfig, err := pgxpool.ParseConfig(cfg.Database.URL)
		if err != nil {
			return nil, nil, fmt.Errorf("parsing database URL: %w", err)
		}
		poolConfig.MaxConns = int32(cfg.Database.MaxConns)
		poolConfig.MinConns = int32(cfg.Database.MinConns)
		poolConfig.MaxConnLifetime = cfg.Database.MaxConnLifetime
		poolConfig.MaxConnIdleTime = cfg.Database.MaxConnIdleTime

		pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
		if err != nil {
			return nil, nil, fmt.Errorf("connecting to database: %w", err)
		}
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("pinging database: %w", err)
		}
		opts.Pool = pool
		cleanup = pool.Close
	}

	store, err := storage.Open(ctx, opts)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	return store, cleanup, nil
}

func inspect(ctx context.Context, store storage.Store, name string, asJSON bool) error {
	fmt.Printf("root: %s\n", store.RootPath())

	if asJSON {
		doc, err := store.ReadJSON(ctx, name)
		if err != nil {
			return err
		}
		out, err := json.MarshalIndent(doc, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(out))
		return nil
	}

	tbl, err := store.ReadTable(ctx, name)
	if err != nil {
		return err
	}
	fmt.Printf("table: %s (%d rows, %d columns)\n", name, tbl.NumRows(), tbl.NumCols())

	for _, colName := range tbl.Names() {
		col := tbl.Column(colName)
		line := fmt.Sprintf("  %-20s %-8s", colName, col.DType)
		if col.Unit != "" {
			line += " unit=" + col.Unit
		}
		if col.DType == table.Time {
			line += fmt.Sprintf(" format=%s scale=%s", col.TimeFormat, col.TimeScale)
		}
		if missing := countMasked(col.Mask); missing > 0 {
			line += fmt.Sprintf(" missing=%d", missing)
		}
		if col.Description != "" {
			line += "  # " + col.Description
		}
		fmt.Println(line)
	}

	hdr, err := store.ReadTableHeader(ctx, name)
	if err != nil {
		return err
	}
	if hdr == nil {
		fmt.Println("header: none stored")
	} else {
		fmt.Printf("header: %d entries\n", len(hdr))
	}
	return nil
}

func countMasked(mask []bool) int {
	n := 0
	for _, m := range mask {
		if m {
			n++
		}
	}
	return n
}
