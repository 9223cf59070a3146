package db

import (
	"strings"

	"github.com/teranos/traitmint/errors"
)

// ErrDatabaseClosed is returned when the run ledger is used after Close.
var ErrDatabaseClosed = errors.New("database is closed")

// IsDatabaseClosed reports whether err is ErrDatabaseClosed or a raw driver
// error about a closed connection.
func IsDatabaseClosed(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrDatabaseClosed) {
		return true
	}
	return strings.Contains(err.Error(), "database is closed")
}
