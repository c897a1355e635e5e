package textsql

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/unergybot/tke/pkg/models"
)

var forbiddenTokenRe = regexp.MustCompile(`(?i)\b(DROP|DELETE|TRUNCATE|INSERT|UPDATE|ALTER|CREATE|GRANT|REVOKE)\b`)

var tableNameRe = regexp.MustCompile(`(?i)\b(?:FROM|JOIN)\s+([a-zA-Z_][a-zA-Z0-9_]*)`)

// validateSafety enforces the read-only, single-statement SELECT policy:
// reject on an empty statement, a non-SELECT start, any forbidden DDL/DML
// token, a line comment, or more than one statement.
func validateSafety(sql string) error {
	trimmed := strings.TrimSpace(sql)
	if trimmed == "" {
		return fmt.Errorf("%w: empty statement", models.ErrValidation)
	}
	if !strings.HasPrefix(strings.ToUpper(trimmed), "SELECT") {
		return fmt.Errorf("%w: statement must start with SELECT", models.ErrValidation)
	}

	if m := forbiddenTokenRe.FindString(trimmed); m != "" {
		return fmt.Errorf("%w: forbidden token %s", models.ErrValidation, strings.ToUpper(m))
	}
	if strings.Contains(trimmed, "--") {
		return fmt.Errorf("%w: line comments are not allowed", models.ErrValidation)
	}

	stripped := strings.TrimSuffix(trimmed, ";")
	if strings.Contains(stripped, ";") {
		return fmt.Errorf("%w: multiple statements are not allowed", models.ErrValidation)
	}
	return nil
}

// validateSyntax parses sql via EXPLAIN, without executing it, to catch
// syntax errors before they reach the caller.
func validateSyntax(ctx context.Context, pool *pgxpool.Pool, sql string) error {
	rows, err := pool.Query(ctx, "EXPLAIN "+sql)
	if err != nil {
		return fmt.Errorf("%w: invalid SQL syntax: %v", models.ErrValidation, err)
	}
	rows.Close()
	return nil
}

// extractTableNames pulls every identifier following FROM/JOIN, deduplicated
// in first-seen order.
func extractTableNames(sql string) []string {
	matches := tableNameRe.FindAllStringSubmatch(sql, -1)
	seen := make(map[string]bool)
	var out []string
	for _, m := range matches {
		name := strings.ToLower(m[1])
		if seen[name] {
			continue
		}
		seen[name] = true
		out = append(out, name)
	}
	return out
}
