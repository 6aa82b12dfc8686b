// SPDX-License-Identifier: Apache-2.0

// Package router maps a (platform, tenant?) pair to the one database name
// that pair is ever allowed to resolve to, and enforces that a platform
// can never touch a database outside its own prefix.
package router

import (
	"strings"

	"github.com/progalaxyelabs/stonescriptdb-gateway/pkg/gwerrors"
)

// Route returns "<platform>_main" when tenant is empty, else
// "<platform>_<tenant>". This is the only database-name form ever
// produced or accepted.
func Route(platform string, tenant string) string {
	if tenant == "" {
		return platform + "_main"
	}
	return platform + "_" + tenant
}

// Authorize checks that database belongs to platform's namespace, failing
// with Unauthorized otherwise. Gateway.Call runs this check before opening
// a pool; the pool manager itself does not call it.
func Authorize(platform, database string) error {
	prefix := platform + "_"
	if !strings.HasPrefix(database, prefix) {
		return gwerrors.Unauthorized{Platform: platform, Database: database}
	}
	return nil
}

// PlatformOf extracts the platform prefix from a database name: everything
// before the first underscore. Used by the pool manager to decide which
// registered platform's credentials apply to a newly opened pool.
func PlatformOf(database string) string {
	if i := strings.IndexByte(database, '_'); i != -1 {
		return database[:i]
	}
	return database
}
