package metrics

import (
	"database/sql"
	"database/sql/driver"
	"errors"
	"testing"
	"time"
)

// stubDriver satisfies database/sql registration; pool statistics are
// readable without ever opening a connection.
type stubDriver struct{}

func (stubDriver) Open(string) (driver.Conn, error) {
	return nil, errors.New("stub driver does not connect")
}

func init() {
	sql.Register("poolstub", stubDriver{})
}

func newStubDB(t *testing.T, maxOpen int) *sql.DB {
	t.Helper()
	db, err := sql.Open("poolstub", "")
	if err != nil {
		t.Fatalf("open stub db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	db.SetMaxOpenConns(maxOpen)
	return db
}

func TestGetDBPoolStats(t *testing.T) {
	if stats := GetDBPoolStats(nil); stats != (DBPoolStats{}) {
		t.Errorf("GetDBPoolStats(nil) = %+v, want zero value", stats)
	}

	db := newStubDB(t, 4)
	stats := GetDBPoolStats(db)
	if stats.MaxOpenConnections != 4 {
		t.Errorf("MaxOpenConnections = %d, want 4", stats.MaxOpenConnections)
	}
	if stats.InUse != 0 {
		t.Errorf("InUse = %d, want 0 on an idle pool", stats.InUse)
	}
}

func TestAssessDBPoolHealth(t *testing.T) {
	tests := []struct {
		name  string
		stats DBPoolStats
		want  PoolHealthStatus
	}{
		{
			name:  "unlimited pool is healthy",
			stats: DBPoolStats{MaxOpenConnections: 0, InUse: 50},
			want:  PoolHealthy,
		},
		{
			name:  "low utilization is healthy",
			stats: DBPoolStats{MaxOpenConnections: 10, InUse: 3},
			want:  PoolHealthy,
		},
		{
			name:  "high utilization degrades",
			stats: DBPoolStats{MaxOpenConnections: 10, InUse: 8},
			want:  PoolDegraded,
		},
		{
			name:  "near exhaustion is unhealthy",
			stats: DBPoolStats{MaxOpenConnections: 10, InUse: 10},
			want:  PoolUnhealthy,
		},
		{
			name: "long connection waits degrade a healthy pool",
			stats: DBPoolStats{
				MaxOpenConnections: 10,
				InUse:              1,
				WaitCount:          3,
				WaitDuration:       6 * time.Second,
			},
			want: PoolDegraded,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			health := AssessDBPoolHealth(tt.stats)
			if health.Status != tt.want {
				t.Errorf("Status = %s, want %s (%+v)", health.Status, tt.want, health)
			}
		})
	}
}

func TestPoolMonitor(t *testing.T) {
	m := NewPoolMonitor()
	db := newStubDB(t, 4)
	m.Register("postgres", db)

	stats, ok := m.Stats("postgres")
	if !ok || stats.MaxOpenConnections != 4 {
		t.Errorf("Stats(postgres) = (%+v, %v), want registered pool stats", stats, ok)
	}
	if _, ok := m.Stats("missing"); ok {
		t.Error("Stats(missing) reported an unregistered pool")
	}

	health := m.AllHealth()
	if len(health) != 1 || health["postgres"].Status != PoolHealthy {
		t.Errorf("AllHealth() = %+v, want one healthy pool", health)
	}

	m.Unregister("postgres")
	if _, ok := m.Stats("postgres"); ok {
		t.Error("Stats() still reports an unregistered pool")
	}
}

func TestGlobalPoolMonitor(t *testing.T) {
	db := newStubDB(t, 2)
	RegisterPool("test-pool", db)
	defer GlobalPoolMonitor().Unregister("test-pool")

	if _, ok := GetPoolStats("test-pool"); !ok {
		t.Error("GetPoolStats() missing the registered pool")
	}
	if _, ok := GetAllPoolHealth()["test-pool"]; !ok {
		t.Error("GetAllPoolHealth() missing the registered pool")
	}
}
