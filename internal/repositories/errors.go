package repositories

import (
	"errors"

	"github.com/lib/pq"
)

const uniqueViolation = "23505"

// isUniqueViolation reports whether err is a Postgres unique-constraint
// conflict. Idempotent paths (direct groups, reactions, memberships) recover
// from it instead of surfacing an error.
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}
