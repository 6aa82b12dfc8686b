// SPDX-License-Identifier: Apache-2.0

package connstr

import (
	"fmt"
	"net/url"
)

// WithDatabase takes a Postgres connection string in URL format and an admin
// connection string (pointed at no particular database, or at "postgres")
// and produces a connection string pointed at dbName.
func WithDatabase(adminConnStr, dbName string) (string, error) {
	u, err := url.Parse(adminConnStr)
	if err != nil {
		return "", fmt.Errorf("failed to parse connection string: %w", err)
	}

	u.Path = "/" + dbName

	return u.String(), nil
}

// WithCredentials takes a Postgres connection string in URL format and
// overrides its userinfo with user/password. An empty user leaves the
// connection string's existing credentials untouched, so callers can fall
// back to the gateway's default admin credentials by passing "".
func WithCredentials(connStr, user, password string) (string, error) {
	if user == "" {
		return connStr, nil
	}

	u, err := url.Parse(connStr)
	if err != nil {
		return "", fmt.Errorf("failed to parse connection string: %w", err)
	}

	u.User = url.UserPassword(user, password)

	return u.String(), nil
}
