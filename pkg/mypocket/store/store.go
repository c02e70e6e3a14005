// Package store is the row store behind the tag and link services. Every
// query is scoped by the owning user, and the conflict-ignoring upserts the
// import and edit paths rely on live here behind named methods.
package store

import (
	"errors"
	"strings"

	"github.com/mypocket/mypocket/pkg/mypocket/apperr"
	"gorm.io/gorm"
)

// batchSize bounds multi-row statements and IN lists, keeping them under
// SQLite's bound-variable limit.
const batchSize = 200

// translate maps driver-level errors to the error kinds the services expose
func translate(err error, notFound, conflict string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return apperr.NotFound(notFound)
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return apperr.Conflict(conflict)
	default:
		return err
	}
}

// likePattern builds a case-insensitive substring pattern for LIKE ... ESCAPE '\'
func likePattern(query string) string {
	q := strings.ToLower(strings.TrimSpace(query))
	q = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(q)
	return "%" + q + "%"
}

func chunk(ids []string, size int) [][]string {
	var out [][]string
	for len(ids) > size {
		out = append(out, ids[:size])
		ids = ids[size:]
	}
	if len(ids) > 0 {
		out = append(out, ids)
	}
	return out
}
