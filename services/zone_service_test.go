package services

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cleanzone-api/apperrors"
	"cleanzone-api/models"
)

func TestZoneService_Report(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	reporter := f.user(t, "reporter")

	zone := f.zone(t, reporter)
	assert.Equal(t, models.ZoneStatusReported, zone.Status)
	assert.Equal(t, models.SeverityUnknown, zone.Severity)
	assert.Equal(t, reporter.ID, zone.ReporterID)
	assert.Nil(t, zone.EventID)

	history, err := f.zones.History(ctx, zone.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, models.ZoneStatusReported, history[0].Status)
	require.NotNil(t, history[0].ChangedBy)
	assert.Equal(t, reporter.ID, *history[0].ChangedBy)
}

func TestZoneService_ReportValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	reporter := f.user(t, "reporter")

	cases := []models.CreateZoneRequest{
		{Latitude: 91, Longitude: 0, RadiusMeters: 10, Description: "d"},
		{Latitude: 0, Longitude: 181, RadiusMeters: 10, Description: "d"},
		{Latitude: 0, Longitude: 0, RadiusMeters: 0, Description: "d"},
		{Latitude: 0, Longitude: 0, RadiusMeters: 6000, Description: "d"},
		{Latitude: 0, Longitude: 0, RadiusMeters: 10, Description: "   "},
		{Latitude: 0, Longitude: 0, RadiusMeters: 10, Description: "d", Severity: "APOCALYPTIC"},
	}
	for _, req := range cases {
		_, err := f.zones.Report(ctx, reporter.ID, req)
		assert.True(t, apperrors.Is(err, apperrors.KindValidation), "%+v", req)
	}
}

func TestZoneService_ListNear(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	reporter := f.user(t, "reporter")

	report := func(lat, lon float64) *models.Zone {
		z, err := f.zones.Report(ctx, reporter.ID, models.CreateZoneRequest{
			Latitude: lat, Longitude: lon, RadiusMeters: 50, Description: "trash", Severity: "HIGH",
		})
		require.NoError(t, err)
		return z
	}
	report(51.5074, -0.1278)
	near := report(48.8606, 2.3376)
	nearest := report(48.8570, 2.3520)

	center := models.Location{Latitude: 48.8566, Longitude: 2.3522}
	zones, total, err := f.zones.List(ctx, models.ZoneFilter{Near: &center, RadiusKm: 5})
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	require.Len(t, zones, 2)
	assert.Equal(t, nearest.ID, zones[0].ID)
	assert.Equal(t, near.ID, zones[1].ID)

	all, total, err := f.zones.List(ctx, models.ZoneFilter{})
	require.NoError(t, err)
	assert.EqualValues(t, 3, total)
	assert.Len(t, all, 3)

	_, _, err = f.zones.List(ctx, models.ZoneFilter{Near: &center})
	assert.True(t, apperrors.Is(err, apperrors.KindValidation))

	for _, radius := range []float64{math.NaN(), math.Inf(1), -1} {
		_, _, err = f.zones.List(ctx, models.ZoneFilter{Near: &center, RadiusKm: radius})
		assert.True(t, apperrors.Is(err, apperrors.KindValidation), "radius %v", radius)
	}
}

func TestZoneService_Update(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	reporter := f.user(t, "reporter")
	other := f.user(t, "other")
	zone := f.zone(t, reporter)

	severity := "CRITICAL"
	_, err := f.zones.Update(ctx, other.ID, models.RoleUser, zone.ID, models.UpdateZoneRequest{Severity: &severity})
	assert.True(t, apperrors.Is(err, apperrors.KindAuthorization))

	updated, err := f.zones.Update(ctx, other.ID, models.RoleAdmin, zone.ID, models.UpdateZoneRequest{Severity: &severity})
	require.NoError(t, err)
	assert.Equal(t, models.SeverityCritical, updated.Severity)

	radius := 250.0
	updated, err = f.zones.Update(ctx, reporter.ID, models.RoleUser, zone.ID, models.UpdateZoneRequest{RadiusMeters: &radius})
	require.NoError(t, err)
	assert.Equal(t, 250.0, updated.RadiusMeters)
}

func TestZoneService_SetStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	reporter := f.user(t, "reporter")
	admin := f.user(t, "admin")
	zone := f.zone(t, reporter)

	_, err := f.zones.SetStatus(ctx, reporter.ID, models.RoleUser, zone.ID, models.ZoneStatusCleaned)
	assert.True(t, apperrors.Is(err, apperrors.KindAuthorization))

	updated, err := f.zones.SetStatus(ctx, admin.ID, models.RoleAdmin, zone.ID, models.ZoneStatusCleaned)
	require.NoError(t, err)
	assert.Equal(t, models.ZoneStatusCleaned, updated.Status)

	history, err := f.zones.History(ctx, zone.ID)
	require.NoError(t, err)
	assert.Len(t, history, 2)

	busy := f.zone(t, reporter)
	f.event(t, reporter, busy, nil)
	_, err = f.zones.SetStatus(ctx, admin.ID, models.RoleAdmin, busy.ID, models.ZoneStatusReported)
	assert.True(t, apperrors.Is(err, apperrors.KindConflict))
}
