package driver

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"io"
	"strings"

	"github.com/go-sql-driver/mysql"
	"go.mongodb.org/mongo-driver/mongo"
)

var staleSignatures = []string{
	"connection closed",
	"conn closed",
	"bad connection",
	"broken pipe",
	"connection reset",
	"server closed the connection",
	"connection is shut down",
	"invalid connection",
	"procedure not found",
	"use of closed network connection",
}

// IsStale reports whether err looks like a dead pooled connection that a
// fresh pool would not hit.
func IsStale(err error) bool {
	if err == nil || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, sql.ErrConnDone) ||
		errors.Is(err, mysql.ErrInvalidConn) || errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}
	if mongo.IsNetworkError(err) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, sig := range staleSignatures {
		if strings.Contains(msg, sig) {
			return true
		}
	}
	return false
}
