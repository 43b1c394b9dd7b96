package migration

import (
	"github.com/corvusdb/corvus/internal/dberrors"
	"github.com/corvusdb/corvus/internal/store"
)

// Manager owns the from→to→Migration registry, finds a path between the
// stored schema version and a target version, and drives execution of
// that path against a Runtime. The schema version is persisted through
// Store.StoreVersion/LoadVersion.
type Manager struct {
	registry map[uint32]map[uint32]*Migration
	store    store.Store
	target   uint32
	rt       Runtime
}

// NewManager builds a Manager. target is the schema version the caller
// wants the database to end up at; st persists the current version.
func NewManager(st store.Store, rt Runtime, target uint32) *Manager {
	return &Manager{
		registry: make(map[uint32]map[uint32]*Migration),
		store:    st,
		target:   target,
		rt:       rt,
	}
}

// Register adds a migration to the path graph, keyed by its From
// version. Registering two migrations with the same (From, To) pair
// replaces the earlier one.
func (m *Manager) Register(mig *Migration) {
	byTo, ok := m.registry[mig.From]
	if !ok {
		byTo = make(map[uint32]*Migration)
		m.registry[mig.From] = byTo
	}
	byTo[mig.To] = mig
}

// IsMigrationNeeded reports whether the stored schema version differs
// from the target.
func (m *Manager) IsMigrationNeeded() (bool, error) {
	current, ok, err := m.store.LoadVersion()
	if err != nil {
		return false, err
	}
	if !ok {
		return uint32(0) != m.target, nil
	}
	return uint32(current) != m.target, nil
}

// FindPath greedily walks from start toward end, at each step taking the
// farthest registered hop that doesn't overshoot end (largest <= end
// while upgrading, smallest >= end while downgrading). It never
// backtracks; if no outgoing hop exists at any node before reaching end,
// it reports no path (an empty slice, no error) exactly as the
// reference's direction-aware loop does.
func (m *Manager) FindPath(start, end uint32) []*Migration {
	if start == end {
		return nil
	}
	upgrade := end > start
	var path []*Migration
	current := start

	for {
		if upgrade && current >= end {
			break
		}
		if !upgrade && current <= end {
			break
		}

		hops, ok := m.registry[current]
		if !ok {
			return nil
		}

		var best uint32
		found := false
		for to := range hops {
			if upgrade {
				if to > current && to <= end && (!found || to > best) {
					best, found = to, true
				}
			} else {
				if to < current && to >= end && (!found || to < best) {
					best, found = to, true
				}
			}
		}
		if !found {
			return nil
		}

		path = append(path, hops[best])
		current = best
	}

	return path
}

// Migrate runs the full sequence: check whether migration is
// needed, find a path from the stored version to the target, execute
// every step of every migration on that path in order, then persist the
// new schema version.
func (m *Manager) Migrate() error {
	needed, err := m.IsMigrationNeeded()
	if err != nil {
		return err
	}
	if !needed {
		return nil
	}

	current, _, err := m.store.LoadVersion()
	if err != nil {
		return err
	}

	path := m.FindPath(uint32(current), m.target)
	if path == nil {
		return dberrors.New(dberrors.MigrationError, "Manager.Migrate",
			"no migration path found to the target schema version")
	}

	for _, mig := range path {
		for _, step := range mig.Steps {
			if err := step.Execute(m.rt); err != nil {
				return dberrors.Wrap(dberrors.MigrationError, "Manager.Migrate", "migration step failed", err)
			}
		}
	}

	return m.store.StoreVersion(int(m.target))
}
