// Package dbinit prepares the Aurora PostgreSQL database after it is
// created: it installs extensions and creates schemas. It runs as the
// handler of a CloudFormation custom resource.
package dbinit

import (
	"strings"

	"github.com/jackc/pgx/v5"
)

// Statements returns the idempotent DDL for the given extensions and schemas,
// extensions first. Blank and repeated names are skipped.
func Statements(extensions, schemas []string) []string {
	var stmts []string
	for _, ext := range unique(extensions) {
		stmts = append(stmts, "CREATE EXTENSION IF NOT EXISTS "+pgx.Identifier{ext}.Sanitize())
	}
	for _, schema := range unique(schemas) {
		stmts = append(stmts, "CREATE SCHEMA IF NOT EXISTS "+pgx.Identifier{schema}.Sanitize())
	}
	return stmts
}

func unique(names []string) []string {
	seen := make(map[string]bool, len(names))
	out := make([]string, 0, len(names))
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n == "" || seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, n)
	}
	return out
}
