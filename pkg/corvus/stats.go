package corvus

import "github.com/dustin/go-humanize"

// CollectionStats summarizes one open collection.
type CollectionStats struct {
	Name          string
	DocumentCount int
	// Formatted is DocumentCount rendered with thousands separators
	// (humanize.Comma), for shell and log output.
	Formatted string
}

// Stats summarizes every collection currently open in the Database.
type Stats struct {
	Collections []CollectionStats
	TotalDocs   int
}

// Stats snapshots document counts across every open collection.
func (db *Database) Stats() Stats {
	db.mu.RLock()
	defer db.mu.RUnlock()

	out := Stats{Collections: make([]CollectionStats, 0, len(db.collections))}
	for name, c := range db.collections {
		n := c.Size()
		out.Collections = append(out.Collections, CollectionStats{
			Name:          name,
			DocumentCount: n,
			Formatted:     humanize.Comma(int64(n)),
		})
		out.TotalDocs += n
	}
	return out
}
