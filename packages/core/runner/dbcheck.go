package runner

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/calvale/webwalk/packages/core/env"
	"github.com/calvale/webwalk/packages/core/walk"
	"github.com/calvale/webwalk/packages/db"
)

// DBCheckResult is the outcome of one step's database check.
type DBCheckResult struct {
	Query    string
	Passed   bool
	Failures []string
}

// runDBCheck connects, runs the check query, and compares the first row's
// columns and the row count against the step's expectations. Relative
// sqlite paths resolve against the walk's directory.
func (r *Runner) runDBCheck(check *walk.DBCheck, resolver *env.Resolver, baseDir string) *DBCheckResult {
	query := resolver.Resolve(check.Query)
	result := &DBCheckResult{Query: query}
	fail := func(format string, args ...any) {
		result.Failures = append(result.Failures, fmt.Sprintf(format, args...))
	}

	dsn := resolver.Resolve(check.DSN)
	if dsn == "" {
		fail("db check has no dsn")
		return result
	}

	client, err := db.NewClient(rebaseSQLitePath(dsn, baseDir))
	if err != nil {
		fail("%v", err)
		return result
	}
	defer client.Close()

	rows, err := client.Query(query)
	if err != nil {
		fail("%v", err)
		return result
	}

	if check.Rows != nil && len(rows.Rows) != *check.Rows {
		fail("want %d rows, got %d", *check.Rows, len(rows.Rows))
	}

	if len(check.Expect) > 0 {
		if len(rows.Rows) == 0 {
			fail("query returned no rows")
		} else {
			first := rows.Rows[0]
			for column, want := range check.Expect {
				actual, ok := columnValue(first, column)
				if !ok {
					fail("column %q not in result", column)
					continue
				}
				expected := want
				if s, isStr := want.(string); isStr {
					expected = resolver.Resolve(s)
				}
				if equal, msg := dbEquals(actual, expected); !equal {
					fail("column %q: %s", column, msg)
				}
			}
		}
	}

	result.Passed = len(result.Failures) == 0
	return result
}

func rebaseSQLitePath(dsn, baseDir string) string {
	for _, prefix := range []string{"sqlite://", "sqlite:"} {
		if strings.HasPrefix(dsn, prefix) {
			path := strings.TrimPrefix(dsn, prefix)
			if !filepath.IsAbs(path) {
				path = filepath.Join(baseDir, path)
			}
			return prefix + path
		}
	}
	if !filepath.IsAbs(dsn) {
		return filepath.Join(baseDir, dsn)
	}
	return dsn
}

func columnValue(row map[string]any, column string) (any, bool) {
	if v, ok := row[column]; ok {
		return v, true
	}
	for col, v := range row {
		if strings.EqualFold(col, column) {
			return v, true
		}
	}
	return nil, false
}

// dbEquals compares numerically when both sides parse as numbers, then
// falls back to string comparison, so sqlite's int64s match YAML ints and
// strings alike.
func dbEquals(actual, expected any) (bool, string) {
	if af, aok := dbFloat(actual); aok {
		if ef, eok := dbFloat(expected); eok {
			if af == ef {
				return true, ""
			}
			return false, fmt.Sprintf("want %v, got %v", expected, actual)
		}
	}
	if fmt.Sprintf("%v", actual) == fmt.Sprintf("%v", expected) {
		return true, ""
	}
	return false, fmt.Sprintf("want %v, got %v", expected, actual)
}

func dbFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case string:
		if f, err := strconv.ParseFloat(n, 64); err == nil {
			return f, true
		}
	}
	return 0, false
}
