package testutil

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"tap-arena/internal/config"
	"tap-arena/internal/store"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const initMigration = "000001_init.up.sql"

// OpenTestStore returns a store bound to a fresh schema that is dropped when the
// test ends. Tests are skipped when TEST_POSTGRES_DSN is unset.
func OpenTestStore(t *testing.T, opts ...store.Option) *store.Store {
	t.Helper()
	cfg, err := config.LoadTest()
	if err != nil {
		t.Skipf("skip test db: %v", err)
	}
	ctx := context.Background()
	schema := pgx.Identifier{fmt.Sprintf("test_%d", time.Now().UnixNano())}

	if err := execOnce(ctx, cfg.TestPostgresDSN, "CREATE SCHEMA "+schema.Sanitize()); err != nil {
		t.Fatalf("create schema: %v", err)
	}
	st, err := store.New(withSearchPath(cfg.TestPostgresDSN, schema[0]), opts...)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		st.Close()
		_ = execOnce(ctx, cfg.TestPostgresDSN, "DROP SCHEMA "+schema.Sanitize()+" CASCADE")
	})

	path, err := findMigration(initMigration)
	if err != nil {
		t.Fatalf("find migration: %v", err)
	}
	ddl, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read migration: %v", err)
	}
	if _, err := st.Pool.Exec(ctx, string(ddl)); err != nil {
		t.Fatalf("apply schema: %v", err)
	}
	return st
}

func execOnce(ctx context.Context, dsn, sql string) error {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return err
	}
	defer pool.Close()
	_, err = pool.Exec(ctx, sql)
	return err
}

// findMigration walks up from the working directory to the repo's migrations dir.
func findMigration(name string) (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}
	for {
		p := filepath.Join(dir, "migrations", name)
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("%s not found", name)
		}
		dir = parent
	}
}

func withSearchPath(dsn, schema string) string {
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + "search_path=" + url.QueryEscape(schema)
}
