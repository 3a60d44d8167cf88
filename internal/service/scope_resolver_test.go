package service

import (
	"errors"
	"fmt"
	"math/rand"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/hms-scope/internal/models"
	appErrors "github.com/noah-isme/hms-scope/pkg/errors"
)

func strPtr(v string) *string { return &v }

func assignment(zones, wards []string) *models.ScopeAssignment {
	return &models.ScopeAssignment{
		UserID:  "user-1",
		CityID:  "city-1",
		Role:    models.ScopeRoleEmployee,
		ZoneIDs: pq.StringArray(zones),
		WardIDs: pq.StringArray(wards),
	}
}

func TestIsInScopeReviewerScenario(t *testing.T) {
	reviewer := assignment([]string{"Z1"}, []string{"Ww1"})

	assert.True(t, IsInScope(strPtr("Z1"), strPtr("Ww1"), reviewer))
	assert.False(t, IsInScope(strPtr("Z9"), strPtr("Ww1"), reviewer))
	assert.False(t, IsInScope(strPtr("Z1"), strPtr("Ww9"), reviewer))
}

func TestIsInScopeMissingLocationNeverInScope(t *testing.T) {
	scopes := []*models.ScopeAssignment{
		assignment([]string{"Z1"}, []string{"W1"}),
		assignment([]string{"", "Z1"}, []string{"", "W1"}),
		assignment(nil, nil),
		nil,
	}
	for i, a := range scopes {
		assert.False(t, IsInScope(nil, strPtr("W1"), a), "case %d: nil zone", i)
		assert.False(t, IsInScope(strPtr("Z1"), nil, a), "case %d: nil ward", i)
		assert.False(t, IsInScope(nil, nil, a), "case %d: nil both", i)
		assert.False(t, IsInScope(strPtr(""), strPtr(""), a), "case %d: empty ids", i)
	}
}

func TestIsInScopeAbsentAssignment(t *testing.T) {
	assert.False(t, IsInScope(strPtr("Z1"), strPtr("W1"), nil))
}

func TestIsInScopeMatchesSetMembership(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	universe := func(prefix string) []string {
		ids := make([]string, 8)
		for i := range ids {
			ids[i] = fmt.Sprintf("%s%d", prefix, i)
		}
		return ids
	}
	zones, wards := universe("Z"), universe("W")
	pick := func(ids []string) []string {
		var out []string
		for _, id := range ids {
			if rng.Intn(2) == 0 {
				out = append(out, id)
			}
		}
		return out
	}
	contains := func(ids []string, id string) bool {
		for _, v := range ids {
			if v == id {
				return true
			}
		}
		return false
	}

	for i := 0; i < 500; i++ {
		a := assignment(pick(zones), pick(wards))
		z := zones[rng.Intn(len(zones))]
		w := wards[rng.Intn(len(wards))]
		want := contains(a.ZoneIDs, z) && contains(a.WardIDs, w)
		require.Equal(t, want, IsInScope(&z, &w, a), "zones=%v wards=%v z=%s w=%s", a.ZoneIDs, a.WardIDs, z, w)
	}
}

func TestInferLocationFromScopePicksFirstPair(t *testing.T) {
	a := assignment([]string{"Z1", "Z2"}, []string{"W1w", "W2w"})

	loc, err := InferLocationFromScope(a)
	require.NoError(t, err)
	assert.Equal(t, models.Location{ZoneID: "Z1", WardID: "W1w"}, loc)

	for i := 0; i < 10; i++ {
		again, err := InferLocationFromScope(a)
		require.NoError(t, err)
		if diff := cmp.Diff(loc, again); diff != "" {
			t.Fatalf("inference not deterministic (-first +again):\n%s", diff)
		}
	}
}

func TestInferLocationFromScopeUnresolvable(t *testing.T) {
	cases := []struct {
		name string
		a    *models.ScopeAssignment
		want *appErrors.Error
	}{
		{name: "absent", a: nil, want: appErrors.ErrScopeNotFound},
		{name: "no zones", a: assignment([]string{}, []string{"W1"}), want: appErrors.ErrUnresolvableScope},
		{name: "no wards", a: assignment([]string{"Z1"}, nil), want: appErrors.ErrUnresolvableScope},
		{name: "neither", a: assignment(nil, nil), want: appErrors.ErrUnresolvableScope},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := InferLocationFromScope(tc.a)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tc.want), "got %v", err)
		})
	}
}

func TestInferLocationFromScopeResolvableWhenBothSetsPresent(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 200; i++ {
		zones := make([]string, rng.Intn(4))
		for j := range zones {
			zones[j] = fmt.Sprintf("Z%d", rng.Intn(10))
		}
		wards := make([]string, rng.Intn(4))
		for j := range wards {
			wards[j] = fmt.Sprintf("W%d", rng.Intn(10))
		}
		loc, err := InferLocationFromScope(assignment(zones, wards))
		if len(zones) == 0 || len(wards) == 0 {
			require.Error(t, err)
			continue
		}
		require.NoError(t, err)
		assert.Equal(t, zones[0], loc.ZoneID)
		assert.Equal(t, wards[0], loc.WardID)
	}
}

func TestDerivePendingCountForReviewer(t *testing.T) {
	items := []models.FeederPoint{
		{ID: "1", Status: models.StatusPendingQC, ZoneID: strPtr("Z1"), WardID: strPtr("W1")},
		{ID: "2", Status: models.StatusPendingQC, ZoneID: strPtr("Z1"), WardID: strPtr("W2")},
		{ID: "3", Status: "APPROVED", ZoneID: strPtr("Z1"), WardID: strPtr("W1")},
		{ID: "4", Status: models.StatusPendingQC, ZoneID: nil, WardID: strPtr("W1")},
		{ID: "5", Status: models.StatusPendingQC, ZoneID: strPtr("Z2"), WardID: strPtr("W1")},
	}

	assert.Equal(t, 1, DerivePendingCountForReviewer(items, assignment([]string{"Z1"}, []string{"W1"})))
	assert.Equal(t, 3, DerivePendingCountForReviewer(items, assignment([]string{"Z1", "Z2"}, []string{"W1", "W2"})))
	assert.Equal(t, 0, DerivePendingCountForReviewer(items, assignment(nil, []string{"W1"})))
	assert.Equal(t, 0, DerivePendingCountForReviewer(items, nil))
}

func TestMergeAssignmentsKeepsFirstSeenOrder(t *testing.T) {
	merged := MergeAssignments(
		nil,
		assignment([]string{"Z2", "Z1"}, []string{"W3"}),
		assignment([]string{"Z1", "Z3"}, []string{"W3", "W1"}),
	)
	require.NotNil(t, merged)
	assert.Equal(t, []string{"Z2", "Z1", "Z3"}, []string(merged.ZoneIDs))
	assert.Equal(t, []string{"W3", "W1"}, []string(merged.WardIDs))

	assert.Nil(t, MergeAssignments(nil, nil))
}
