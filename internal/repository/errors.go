// Package repository is the MySQL implementation of the event store.  Each
// repo owns one table family; Store composes them so the ticketing,
// collaboration and maintenance services can share one handle.  Lookups
// that find nothing return the model package's not-found errors, never
// sql.ErrNoRows.
package repository

import (
	"errors"
	"strings"

	"github.com/go-sql-driver/mysql"

	"github.com/iliyamo/adas-events/internal/model"
)

// ErrConflict is returned when a write cannot proceed because of
// existing state, such as a duplicate payment reference on create.
var ErrConflict = errors.New("conflict")

const mysqlDuplicateEntry = 1062

// duplicateKey translates a unique-key violation on the attendees table
// into the model error for the key that was hit.  Other errors pass
// through unchanged.
func duplicateKey(err error) error {
	var me *mysql.MySQLError
	if !errors.As(err, &me) || me.Number != mysqlDuplicateEntry {
		return err
	}
	switch {
	case strings.Contains(me.Message, "uq_attendees_ticket"):
		return model.ErrDuplicateTicketID
	case strings.Contains(me.Message, "uq_attendees_reference"):
		return model.ErrDuplicateReference
	default:
		return ErrConflict
	}
}
