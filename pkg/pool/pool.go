// SPDX-License-Identifier: Apache-2.0

// Package pool maintains a bounded pool-of-pools keyed by database name:
// lazily created, LRU-evicted under a global pool-count cap and a global
// connection cap, with per-platform credential isolation. Concurrent
// first-callers for the same database join a single in-flight creation via
// golang.org/x/sync/singleflight, the way the rest of the example corpus
// guards against duplicate expensive work.
package pool

import (
	"container/list"
	"context"
	"database/sql"
	"sync"
	"time"

	_ "github.com/lib/pq"
	"golang.org/x/sync/singleflight"

	"github.com/progalaxyelabs/stonescriptdb-gateway/internal/connstr"
	"github.com/progalaxyelabs/stonescriptdb-gateway/pkg/config"
	"github.com/progalaxyelabs/stonescriptdb-gateway/pkg/db"
	"github.com/progalaxyelabs/stonescriptdb-gateway/pkg/glog"
	"github.com/progalaxyelabs/stonescriptdb-gateway/pkg/gwerrors"
	"github.com/progalaxyelabs/stonescriptdb-gateway/pkg/registry"
	"github.com/progalaxyelabs/stonescriptdb-gateway/pkg/router"
)

// entry is one managed pool plus its LRU bookkeeping.
type entry struct {
	database string
	conn     *db.RDB
	lastUsed time.Time
	elem     *list.Element
}

// Manager is the pool-of-pools. The zero value is not usable; construct
// with New.
type Manager struct {
	cfg      config.Config
	registry *registry.Registry
	log      glog.Logger
	sf       singleflight.Group

	mu      sync.Mutex
	pools   map[string]*entry
	lru     *list.List // front = most recently used
	maxPools int
}

// New returns a Manager bounded by cfg's pool-sizing fields, consulting reg
// for per-platform dedicated credentials.
func New(cfg config.Config, reg *registry.Registry, log glog.Logger) *Manager {
	return &Manager{
		cfg:      cfg,
		registry: reg,
		log:      log,
		pools:    map[string]*entry{},
		lru:      list.New(),
		maxPools: cfg.MaxPools,
	}
}

// Get returns the pool for database, creating it lazily on first use.
// Concurrent first-callers for the same database all receive the same
// pool; exactly one of them performs the actual dial.
func (m *Manager) Get(ctx context.Context, database string) (*db.RDB, error) {
	if conn, ok := m.lookup(database); ok {
		return conn, nil
	}

	v, err, _ := m.sf.Do(database, func() (interface{}, error) {
		if conn, ok := m.lookup(database); ok {
			return conn, nil
		}
		return m.create(ctx, database)
	})
	if err != nil {
		return nil, err
	}
	return v.(*db.RDB), nil
}

func (m *Manager) lookup(database string) (*db.RDB, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.pools[database]
	if !ok {
		return nil, false
	}
	e.lastUsed = time.Now()
	m.lru.MoveToFront(e.elem)
	return e.conn, true
}

func (m *Manager) create(ctx context.Context, database string) (*db.RDB, error) {
	if m.totalOpenConnections() >= m.cfg.MaxTotalConnections {
		return nil, gwerrors.PoolExhausted{Database: database, Reason: "global connection cap reached"}
	}

	m.mu.Lock()
	needsEviction := len(m.pools) >= m.maxPools
	m.mu.Unlock()

	if needsEviction {
		if err := m.evictLRU(); err != nil {
			return nil, gwerrors.PoolExhausted{Database: database, Reason: "global pool cap reached and eviction failed: " + err.Error()}
		}
	}

	connStr, err := m.connectionString(database)
	if err != nil {
		return nil, gwerrors.ConnectionFailed{Database: database, Cause: err}
	}

	sqlDB, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, gwerrors.ConnectionFailed{Database: database, Cause: err}
	}
	sqlDB.SetMaxOpenConns(m.cfg.MaxPerPool)
	sqlDB.SetMaxIdleConns(m.cfg.MinIdle)
	sqlDB.SetConnMaxIdleTime(m.cfg.IdleTimeout)
	sqlDB.SetConnMaxLifetime(m.cfg.MaxLifetime)

	pingCtx, cancel := context.WithTimeout(ctx, m.cfg.ConnectTimeout)
	defer cancel()
	if err := sqlDB.PingContext(pingCtx); err != nil {
		sqlDB.Close()
		return nil, gwerrors.ConnectionFailed{Database: database, Cause: err}
	}

	conn := &db.RDB{DB: sqlDB}

	m.mu.Lock()
	e := &entry{database: database, conn: conn, lastUsed: time.Now()}
	e.elem = m.lru.PushFront(database)
	m.pools[database] = e
	m.mu.Unlock()

	m.log.LogPoolCreated(database)
	return conn, nil
}

// connectionString resolves the DSN for database: dedicated platform
// credentials if the owning platform registered any, otherwise the
// gateway's default admin credentials.
func (m *Manager) connectionString(database string) (string, error) {
	base, err := connstr.WithDatabase(m.cfg.AdminDatabaseURL, database)
	if err != nil {
		return "", err
	}

	platformName := router.PlatformOf(database)
	p, err := m.registry.Get(platformName)
	if err != nil || !p.HasDedicatedCredentials() {
		return base, nil
	}

	return connstr.WithCredentials(base, p.DBUserString(), p.DBPasswordString())
}

// evictLRU closes and removes the least-recently-used pool.
func (m *Manager) evictLRU() error {
	m.mu.Lock()
	back := m.lru.Back()
	if back == nil {
		m.mu.Unlock()
		return nil
	}
	database := back.Value.(string)
	e := m.pools[database]
	delete(m.pools, database)
	m.lru.Remove(back)
	m.mu.Unlock()

	if e == nil {
		return nil
	}
	m.log.LogPoolEvicted(database)
	return e.conn.Close()
}

func (m *Manager) totalOpenConnections() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	total := 0
	for _, e := range m.pools {
		total += e.conn.DB.Stats().OpenConnections
	}
	return total
}

// ActivePools returns the current number of live pools.
func (m *Manager) ActivePools() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pools)
}

// TotalConnections returns the current number of open connections summed
// across every live pool.
func (m *Manager) TotalConnections() int {
	return m.totalOpenConnections()
}

// Close closes every pool the manager holds.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var firstErr error
	for _, e := range m.pools {
		if err := e.conn.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	m.pools = map[string]*entry{}
	m.lru.Init()
	return firstErr
}
