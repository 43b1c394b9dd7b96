package planner

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/corvusdb/corvus/internal/catalog"
	"github.com/corvusdb/corvus/internal/index"
	"github.com/corvusdb/corvus/internal/value"
)

func TestPlanIDFilterShortCircuits(t *testing.T) {
	o, err := NewOptimizer(10)
	require.NoError(t, err)

	f := Equals(IDField, value.ID(1_000_000_000_000_000_001))
	plan, err := o.Plan(f, FindOptions{}, nil, 0)
	require.NoError(t, err)
	require.NotNil(t, plan.ByIDFilter)
	assert.True(t, plan.ByIDFilter.Equal(value.ID(1_000_000_000_000_000_001)))
}

func TestPlanUsesLongestPrefixMatch(t *testing.T) {
	o, err := NewOptimizer(10)
	require.NoError(t, err)

	descriptors := []catalog.Descriptor{
		{Fields: []string{"status"}, Type: index.TypeNonUnique},
		{Fields: []string{"status", "age"}, Type: index.TypeCompound},
	}

	f := And(Equals("status", value.String("active")), Equals("age", value.Int64(30)))
	plan, err := o.Plan(f, FindOptions{}, descriptors, 1)
	require.NoError(t, err)
	assert.Equal(t, "status_age", plan.IndexDescriptorName)
	assert.Len(t, plan.IndexScanFilter, 2)
	assert.Nil(t, plan.FullScanFilter)
}

func TestPlanResidualWhenNoPrefixAvailable(t *testing.T) {
	o, err := NewOptimizer(10)
	require.NoError(t, err)

	f := Equals("nickname", value.String("bob"))
	plan, err := o.Plan(f, FindOptions{}, nil, 0)
	require.NoError(t, err)
	assert.Empty(t, plan.IndexDescriptorName)
	require.NotNil(t, plan.FullScanFilter)
}

func TestPlanTextFilterRequiresTextIndex(t *testing.T) {
	o, err := NewOptimizer(10)
	require.NoError(t, err)

	f := Text("body", "quick fox")
	_, err = o.Plan(f, FindOptions{}, nil, 0)
	assert.Error(t, err)

	descriptors := []catalog.Descriptor{{Fields: []string{"body"}, Type: index.TypeText}}
	plan, err := o.Plan(f, FindOptions{}, descriptors, 1)
	require.NoError(t, err)
	assert.Equal(t, "body", plan.IndexDescriptorName)
}

func TestPlanOrFallsBackToFullScanWhenAnyBranchUnindexed(t *testing.T) {
	o, err := NewOptimizer(10)
	require.NoError(t, err)

	descriptors := []catalog.Descriptor{{Fields: []string{"status"}, Type: index.TypeNonUnique}}
	f := Or(Equals("status", value.String("active")), Equals("nickname", value.String("bob")))
	plan, err := o.Plan(f, FindOptions{}, descriptors, 1)
	require.NoError(t, err)
	assert.Nil(t, plan.SubPlans)
	require.NotNil(t, plan.FullScanFilter)
}

func TestPlanOrWithAllBranchesIndexedProducesSubPlans(t *testing.T) {
	o, err := NewOptimizer(10)
	require.NoError(t, err)

	descriptors := []catalog.Descriptor{
		{Fields: []string{"status"}, Type: index.TypeNonUnique},
		{Fields: []string{"role"}, Type: index.TypeNonUnique},
	}
	f := Or(Equals("status", value.String("active")), Equals("role", value.String("admin")))
	plan, err := o.Plan(f, FindOptions{}, descriptors, 1)
	require.NoError(t, err)
	assert.Len(t, plan.SubPlans, 2)
}

func TestPlanCacheInvalidatedOnVersionChange(t *testing.T) {
	o, err := NewOptimizer(10)
	require.NoError(t, err)

	descriptors := []catalog.Descriptor{{Fields: []string{"status"}, Type: index.TypeNonUnique}}
	f := Equals("status", value.String("active"))

	p1, err := o.Plan(f, FindOptions{}, descriptors, 1)
	require.NoError(t, err)
	assert.Equal(t, "status", p1.IndexDescriptorName)

	p2, err := o.Plan(f, FindOptions{}, nil, 2)
	require.NoError(t, err)
	assert.Empty(t, p2.IndexDescriptorName)
}

func TestFilterMatchesEvaluatesStructurally(t *testing.T) {
	doc := value.NewDocument()
	doc.Put("status", value.String("active"))
	doc.Put("age", value.Int64(30))

	f := And(Equals("status", value.String("active")), GreaterThan("age", value.Int64(18)))
	assert.True(t, f.Matches(doc))

	f2 := Equals("status", value.String("inactive"))
	assert.False(t, f2.Matches(doc))
}
