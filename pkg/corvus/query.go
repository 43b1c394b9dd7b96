package corvus

import "github.com/corvusdb/corvus/internal/planner"

// matchAll builds the zero-conjunct AND filter the planner treats as an
// unrestricted full scan (no OriginalFilter conjunct claims a field, so
// compile never installs a FullScanFilter or an index scan).
func matchAll() planner.Filter { return planner.And() }

func findAllOptions() planner.FindOptions { return planner.FindOptions{} }
