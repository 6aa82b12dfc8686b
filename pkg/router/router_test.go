// SPDX-License-Identifier: Apache-2.0

package router_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/progalaxyelabs/stonescriptdb-gateway/pkg/router"
)

func TestRouteMainDatabase(t *testing.T) {
	assert.Equal(t, "acme_main", router.Route("acme", ""))
}

func TestRouteTenantDatabase(t *testing.T) {
	assert.Equal(t, "acme_t1", router.Route("acme", "t1"))
}

func TestRoutePurity(t *testing.T) {
	seen := map[string]bool{}
	for _, p := range []string{"acme", "beta"} {
		for _, tenant := range []string{"", "t1", "t2"} {
			name := router.Route(p, tenant)
			assert.False(t, seen[name], "collision on %q", name)
			seen[name] = true
		}
	}
}

func TestAuthorizeRejectsCrossPlatformAccess(t *testing.T) {
	assert.NoError(t, router.Authorize("acme", "acme_main"))
	assert.Error(t, router.Authorize("acme", "beta_main"))
}

func TestPlatformOf(t *testing.T) {
	assert.Equal(t, "acme", router.PlatformOf("acme_main"))
	assert.Equal(t, "acme", router.PlatformOf("acme_t1"))
}
