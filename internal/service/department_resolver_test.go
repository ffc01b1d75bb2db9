package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opsdesk/helpdesk/internal/domain"
)

func depts(pairs ...string) []domain.Department {
	result := make([]domain.Department, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		result = append(result, domain.Department{ID: pairs[i], Name: pairs[i+1]})
	}
	return result
}

func TestResolveDepartmentName_ExactCaseInsensitive(t *testing.T) {
	ds := depts("d1", "IT", "d2", "Finance")
	got := ResolveDepartmentName(ds, "finance")
	require.NotNil(t, got)
	assert.Equal(t, "d2", got.ID)
}

func TestResolveDepartmentName_RoundTripStoredName(t *testing.T) {
	ds := depts("d1", "IT", "d2", "Finance", "d3", "Human Resources")
	for _, d := range ds {
		got := ResolveDepartmentName(ds, d.Name)
		require.NotNil(t, got, "name %q", d.Name)
		assert.Equal(t, d.ID, got.ID, "name %q", d.Name)
	}
}

func TestResolveDepartmentName_SubstringTier(t *testing.T) {
	ds := depts("d1", "Customer Support", "d2", "Finance")
	got := ResolveDepartmentName(ds, "support")
	require.NotNil(t, got)
	assert.Equal(t, "d1", got.ID)
}

func TestResolveDepartmentName_ReverseSubstringTier(t *testing.T) {
	// "it support" does not equal nor contain-in the department name "IT",
	// but "IT" is contained in the input.
	ds := depts("d1", "IT", "d2", "Finance")
	got := ResolveDepartmentName(ds, "it support")
	require.NotNil(t, got)
	assert.Equal(t, "d1", got.ID)
}

func TestResolveDepartmentName_NoMatchIsNilNotError(t *testing.T) {
	ds := depts("d1", "IT", "d2", "Finance")
	assert.Nil(t, ResolveDepartmentName(ds, "zzz"))
	assert.Nil(t, ResolveDepartmentName(ds, ""))
	assert.Nil(t, ResolveDepartmentName(ds, "   "))
	assert.Nil(t, ResolveDepartmentName(nil, "IT"))
}

func TestResolveDepartmentName_ExactBeatsSubstring(t *testing.T) {
	// "IT" matches "IT" exactly even though "IT Operations" also contains it.
	ds := depts("d9", "IT Operations", "d5", "IT")
	got := ResolveDepartmentName(ds, "it")
	require.NotNil(t, got)
	assert.Equal(t, "d5", got.ID)
}

func TestResolveDepartmentName_TieBreaksOnSmallestID(t *testing.T) {
	// Both contain "desk"; the smaller identifier wins within the tier.
	ds := depts("d7", "Front Desk", "d2", "Help Desk")
	got := ResolveDepartmentName(ds, "desk")
	require.NotNil(t, got)
	assert.Equal(t, "d2", got.ID)
}
