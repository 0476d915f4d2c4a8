package export

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"strings"
)

// quoteIdent quotes a table name for use in generated SQL.
func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// quotePath turns a filesystem path into a DuckDB string literal.
func quotePath(p string) string {
	p = strings.ReplaceAll(p, `\`, `/`)
	return "'" + strings.ReplaceAll(p, "'", "''") + "'"
}

// CopyTableToParquet writes a whole table to path using DuckDB's own Parquet
// writer. It is used for the event log, whose rows need no decoding.
func CopyTableToParquet(ctx context.Context, logger *slog.Logger, conn *sql.DB, table, path string) error {
	l := logger.With(slog.String("table", table), slog.String("output_path", path))
	copySQL := fmt.Sprintf(`COPY %s TO %s (FORMAT PARQUET, COMPRESSION SNAPPY);`, quoteIdent(table), quotePath(path))
	l.Debug("Executing COPY TO command.")
	if _, err := conn.ExecContext(ctx, copySQL); err != nil {
		l.Error("Failed to save table to Parquet.", "error", err)
		return fmt.Errorf("save %s: %w", table, err)
	}
	l.Info("Saved table to Parquet.")
	return nil
}

// Column is one entry of a Parquet file's schema as DuckDB reports it.
type Column struct {
	Name string
	Type string
}

// FileSummary describes an exported Parquet file.
type FileSummary struct {
	Path    string
	Rows    int64
	Columns []Column
}

// InspectParquet reads back a Parquet file through DuckDB and reports its
// schema and row count.
func InspectParquet(ctx context.Context, logger *slog.Logger, conn *sql.DB, path string) (*FileSummary, error) {
	if _, err := conn.ExecContext(ctx, `LOAD parquet;`); err != nil {
		logger.Warn("Failed to load parquet extension.", "error", err)
	}

	summary := &FileSummary{Path: path}
	rows, err := conn.QueryContext(ctx, fmt.Sprintf(`DESCRIBE SELECT * FROM read_parquet(%s);`, quotePath(path)))
	if err != nil {
		return nil, fmt.Errorf("query schema for %s: %w", path, err)
	}
	defer rows.Close()
	for rows.Next() {
		var colName, colType, nullVal, keyVal, defaultVal, extraVal sql.NullString
		if err := rows.Scan(&colName, &colType, &nullVal, &keyVal, &defaultVal, &extraVal); err != nil {
			return nil, fmt.Errorf("scan schema row for %s: %w", path, err)
		}
		summary.Columns = append(summary.Columns, Column{Name: colName.String, Type: colType.String})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate schema rows for %s: %w", path, err)
	}

	var total sql.NullInt64
	if err := conn.QueryRowContext(ctx, fmt.Sprintf(`SELECT COUNT(*) FROM read_parquet(%s);`, quotePath(path))).Scan(&total); err != nil {
		return nil, fmt.Errorf("count rows in %s: %w", path, err)
	}
	summary.Rows = total.Int64
	logger.Debug("Parquet file inspected.", slog.String("path", path), slog.Int64("rows", summary.Rows), slog.Int("columns", len(summary.Columns)))
	return summary, nil
}

// Print writes the summary as a plain table.
func (s *FileSummary) Print(w io.Writer) {
	fmt.Fprintf(w, "\n=== %s ===\n", s.Path)
	fmt.Fprintf(w, "Rows: %d\n\n", s.Rows)
	fmt.Fprintf(w, "  %-30s | %s\n", "Column Name", "Column Type")
	fmt.Fprintln(w, "  "+strings.Repeat("-", 60))
	for _, c := range s.Columns {
		fmt.Fprintf(w, "  %-30s | %s\n", c.Name, c.Type)
	}
}
