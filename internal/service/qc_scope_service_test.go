package service

import (
	"context"
	"errors"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/noah-isme/hms-scope/internal/models"
	appErrors "github.com/noah-isme/hms-scope/pkg/errors"
)

type qcAssignmentStub struct {
	module    map[string][]models.ScopeAssignment
	city      map[string]*models.ScopeAssignment
	reviewers []models.ReviewerAssignment
	cityCalls int
}

func (s *qcAssignmentStub) FindCityAssignment(ctx context.Context, exec sqlx.QueryerContext, userID, cityID string, role models.ScopeRole) (*models.ScopeAssignment, error) {
	s.cityCalls++
	if role != models.ScopeRoleQC {
		return nil, nil
	}
	return s.city[userID], nil
}

func (s *qcAssignmentStub) ListModuleAssignments(ctx context.Context, userID, cityID, moduleID string, role models.ScopeRole) ([]models.ScopeAssignment, error) {
	return s.module[userID], nil
}

func (s *qcAssignmentStub) ListModuleReviewers(ctx context.Context, cityID, moduleID string) ([]models.ReviewerAssignment, error) {
	return s.reviewers, nil
}

type moduleStub struct {
	ids map[string]string
}

func (m moduleStub) FindIDByName(ctx context.Context, name string) (string, error) {
	id, ok := m.ids[name]
	if !ok {
		return "", appErrors.Clone(appErrors.ErrNotFound, "module not found")
	}
	return id, nil
}

// pendingItemStub answers Count the way the SQL filter would.
type pendingItemStub struct {
	items   []models.FeederPoint
	filters []models.WorkItemCountFilter
	// late items are seen by Count but not by ListPending
	late []models.FeederPoint
}

func (p *pendingItemStub) ListPending(ctx context.Context, kind models.WorkItemKind, cityID string) ([]models.FeederPoint, error) {
	var out []models.FeederPoint
	for _, item := range p.items {
		if item.CityID == cityID && item.Status == models.StatusPendingQC {
			out = append(out, item)
		}
	}
	return out, nil
}

func (p *pendingItemStub) Count(ctx context.Context, filter models.WorkItemCountFilter) (int, error) {
	p.filters = append(p.filters, filter)
	if filter.Scoped && (len(filter.ZoneIDs) == 0 || len(filter.WardIDs) == 0) {
		return 0, nil
	}
	in := func(ids []string, v *string) bool {
		if len(ids) == 0 {
			return true
		}
		if v == nil {
			return false
		}
		for _, id := range ids {
			if id == *v {
				return true
			}
		}
		return false
	}
	count := 0
	for _, item := range append(append([]models.FeederPoint{}, p.items...), p.late...) {
		if filter.CityID != "" && item.CityID != filter.CityID {
			continue
		}
		if filter.Status != "" && item.Status != filter.Status {
			continue
		}
		if in(filter.ZoneIDs, item.ZoneID) && in(filter.WardIDs, item.WardID) {
			count++
		}
	}
	return count, nil
}

func qcAssignment(userID string, zones, wards []string) models.ScopeAssignment {
	return models.ScopeAssignment{UserID: userID, CityID: "city-1", Role: models.ScopeRoleQC, ZoneIDs: pq.StringArray(zones), WardIDs: pq.StringArray(wards)}
}

func TestQCScopeServiceResolveUnionsModuleAssignments(t *testing.T) {
	stub := &qcAssignmentStub{module: map[string][]models.ScopeAssignment{
		"qc-1": {
			qcAssignment("qc-1", []string{"Z1"}, []string{"W1"}),
			qcAssignment("qc-1", []string{"Z2", "Z1"}, []string{"W2"}),
		},
	}}
	svc := NewQCScopeService(stub, nil, nil, nil)

	scope, err := svc.ResolveQCScope(context.Background(), "qc-1", "city-1", "mod-1")
	require.NoError(t, err)
	assert.Equal(t, pq.StringArray{"Z1", "Z2"}, scope.ZoneIDs)
	assert.Equal(t, pq.StringArray{"W1", "W2"}, scope.WardIDs)
	require.NotNil(t, scope.ModuleID)
	assert.Equal(t, "mod-1", *scope.ModuleID)
	assert.Equal(t, 0, stub.cityCalls, "city fallback only when module scope is incomplete")
}

func TestQCScopeServiceResolveFallsBackToCityAssignment(t *testing.T) {
	city := qcAssignment("qc-1", []string{"Z3"}, []string{"W3"})
	stub := &qcAssignmentStub{
		module: map[string][]models.ScopeAssignment{"qc-1": {qcAssignment("qc-1", []string{"Z1"}, nil)}},
		city:   map[string]*models.ScopeAssignment{"qc-1": &city},
	}
	svc := NewQCScopeService(stub, nil, nil, nil)

	scope, err := svc.ResolveQCScope(context.Background(), "qc-1", "city-1", "mod-1")
	require.NoError(t, err)
	assert.Equal(t, pq.StringArray{"Z1", "Z3"}, scope.ZoneIDs)
	assert.Equal(t, pq.StringArray{"W3"}, scope.WardIDs)
	assert.Equal(t, 1, stub.cityCalls)
}

func TestQCScopeServiceResolveUnassignedUserHasEmptyScope(t *testing.T) {
	svc := NewQCScopeService(&qcAssignmentStub{}, nil, nil, nil)

	scope, err := svc.ResolveQCScope(context.Background(), "nobody", "city-1", "mod-1")
	require.NoError(t, err)
	require.NotNil(t, scope)
	assert.False(t, scope.HasScope())
	assert.NotNil(t, scope.ZoneIDs)
	assert.NotNil(t, scope.WardIDs)
}

func TestQCScopeServicePendingReport(t *testing.T) {
	stub := &qcAssignmentStub{
		module: map[string][]models.ScopeAssignment{
			"qc-1": {qcAssignment("qc-1", []string{"Z1"}, []string{"Ww1"})},
			"qc-2": {qcAssignment("qc-2", nil, nil)},
		},
		reviewers: []models.ReviewerAssignment{
			{ScopeAssignment: qcAssignment("qc-1", []string{"Z1"}, []string{"Ww1"}), Email: "a@city.test"},
			{ScopeAssignment: qcAssignment("qc-2", nil, nil), Email: "b@city.test"},
		},
	}
	items := &pendingItemStub{items: []models.FeederPoint{
		{ID: "1", CityID: "city-1", Status: models.StatusPendingQC, ZoneID: strPtr("Z1"), WardID: strPtr("Ww1")},
		{ID: "2", CityID: "city-1", Status: models.StatusPendingQC, ZoneID: strPtr("Z9"), WardID: strPtr("Ww9")},
		{ID: "3", CityID: "city-1", Status: models.StatusPendingQC},
		{ID: "4", CityID: "city-1", Status: "APPROVED", ZoneID: strPtr("Z1"), WardID: strPtr("Ww1")},
		{ID: "5", CityID: "city-2", Status: models.StatusPendingQC, ZoneID: strPtr("Z1"), WardID: strPtr("Ww1")},
	}}
	svc := NewQCScopeService(stub, moduleStub{ids: map[string]string{"TASKFORCE": "mod-1"}}, items, nil)

	report, err := svc.PendingReport(context.Background(), models.WorkItemKindFeederPoint, "city-1", "TASKFORCE")
	require.NoError(t, err)

	assert.Equal(t, "mod-1", report.ModuleID)
	assert.Equal(t, 4, report.TotalItems)
	assert.Equal(t, 3, report.TotalPending)
	assert.Equal(t, 1, report.PendingMissingLocation)
	assert.Equal(t, 2, report.PendingUnreachable)
	require.Len(t, report.Reviewers, 2)
	assert.Equal(t, "a@city.test", report.Reviewers[0].Email)
	assert.Equal(t, 1, report.Reviewers[0].PendingInScope)
	assert.Equal(t, []string{"Z1"}, report.Reviewers[0].ZoneIDs)
	assert.Equal(t, 0, report.Reviewers[1].PendingInScope, "empty scope sees nothing")

	for _, f := range items.filters[1:] {
		assert.True(t, f.Scoped, "reviewer counts must use explicit scoping")
	}
}

func TestQCScopeServicePendingReportDeduplicatesReviewers(t *testing.T) {
	stub := &qcAssignmentStub{
		module: map[string][]models.ScopeAssignment{"qc-1": {qcAssignment("qc-1", []string{"Z1"}, []string{"W1"})}},
		reviewers: []models.ReviewerAssignment{
			{ScopeAssignment: qcAssignment("qc-1", []string{"Z1"}, []string{"W1"}), Email: "a@city.test"},
			{ScopeAssignment: qcAssignment("qc-1", []string{"Z2"}, []string{"W2"}), Email: "a@city.test"},
		},
	}
	svc := NewQCScopeService(stub, moduleStub{ids: map[string]string{"TASKFORCE": "mod-1"}}, &pendingItemStub{}, nil)

	report, err := svc.PendingReport(context.Background(), models.WorkItemKindFeederPoint, "city-1", "TASKFORCE")
	require.NoError(t, err)
	assert.Len(t, report.Reviewers, 1)
}

func TestQCScopeServicePendingReportValidation(t *testing.T) {
	svc := NewQCScopeService(&qcAssignmentStub{}, moduleStub{}, &pendingItemStub{}, nil)

	_, err := svc.PendingReport(context.Background(), "bus_stop", "city-1", "TASKFORCE")
	assert.True(t, errors.Is(err, appErrors.ErrValidation))

	_, err = svc.PendingReport(context.Background(), models.WorkItemKindFeederPoint, " ", "TASKFORCE")
	assert.True(t, errors.Is(err, appErrors.ErrValidation))

	_, err = svc.PendingReport(context.Background(), models.WorkItemKindFeederPoint, "city-1", "UNKNOWN")
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
}

func TestQCScopeServicePendingReportLogsCountDrift(t *testing.T) {
	stub := &qcAssignmentStub{
		module:    map[string][]models.ScopeAssignment{"qc-1": {qcAssignment("qc-1", []string{"Z1"}, []string{"W1"})}},
		reviewers: []models.ReviewerAssignment{{ScopeAssignment: qcAssignment("qc-1", []string{"Z1"}, []string{"W1"}), Email: "a@city.test"}},
	}
	items := &pendingItemStub{
		items: []models.FeederPoint{{ID: "1", CityID: "city-1", Status: models.StatusPendingQC, ZoneID: strPtr("Z1"), WardID: strPtr("W1")}},
		late:  []models.FeederPoint{{ID: "2", CityID: "city-1", Status: models.StatusPendingQC, ZoneID: strPtr("Z1"), WardID: strPtr("W1")}},
	}
	core, logs := observer.New(zapcore.WarnLevel)
	svc := NewQCScopeService(stub, moduleStub{ids: map[string]string{"TASKFORCE": "mod-1"}}, items, zap.New(core))

	report, err := svc.PendingReport(context.Background(), models.WorkItemKindFeederPoint, "city-1", "TASKFORCE")
	require.NoError(t, err)
	assert.Equal(t, 2, report.Reviewers[0].PendingInScope)

	entries := logs.FilterMessage("reviewer pending count disagrees with pending list").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, int64(2), fields["counted"])
	assert.Equal(t, int64(1), fields["listed"])
}

func TestQCScopeServicePendingReportAgreeingCountsLogNothing(t *testing.T) {
	stub := &qcAssignmentStub{
		module:    map[string][]models.ScopeAssignment{"qc-1": {qcAssignment("qc-1", []string{"Z1"}, []string{"W1"})}},
		reviewers: []models.ReviewerAssignment{{ScopeAssignment: qcAssignment("qc-1", []string{"Z1"}, []string{"W1"}), Email: "a@city.test"}},
	}
	items := &pendingItemStub{items: []models.FeederPoint{
		{ID: "1", CityID: "city-1", Status: models.StatusPendingQC, ZoneID: strPtr("Z1"), WardID: strPtr("W1")},
	}}
	core, logs := observer.New(zapcore.WarnLevel)
	svc := NewQCScopeService(stub, moduleStub{ids: map[string]string{"TASKFORCE": "mod-1"}}, items, zap.New(core))

	_, err := svc.PendingReport(context.Background(), models.WorkItemKindFeederPoint, "city-1", "TASKFORCE")
	require.NoError(t, err)
	assert.Zero(t, logs.Len())
}
