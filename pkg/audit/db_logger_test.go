package audit

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinicore/clinicore/pkg/tenancy"
)

func clinicContext() tenancy.TenantContext {
	return tenancy.TenantContext{
		Type:        tenancy.TenantTypeClinic,
		TenantID:    7,
		PrincipalID: "principal-1",
		Role:        tenancy.RoleAdmin,
	}
}

func TestNewDBLogger(t *testing.T) {
	_, err := NewDBLogger(nil)
	require.Error(t, err)
}

func TestDBLoggerLog(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	logger, err := NewDBLogger(db)
	require.NoError(t, err)

	t.Run("access denied event", func(t *testing.T) {
		mock.ExpectQuery(`INSERT INTO audit_events`).
			WithArgs(
				EventTypeAccessDenied, SeverityWarning, "principal-1",
				"clinic", sqlmock.AnyArg(),
				nil, nil, "manage_finance",
				[]byte(`{"reason":"role member lacks permission"}`),
			).
			WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).
				AddRow(int64(1), time.Now()))

		event := AccessDenied(clinicContext(), "manage_finance", "role member lacks permission")
		require.NoError(t, logger.Log(context.Background(), event))
		assert.Equal(t, int64(1), event.ID)

		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("integrity violation carries alert severity", func(t *testing.T) {
		event := IntegrityViolation(clinicContext(), "patients", "patients_owner_exclusive")
		assert.Equal(t, SeverityAlert, event.Severity)
		assert.Equal(t, "patients", event.Resource)

		mock.ExpectQuery(`INSERT INTO audit_events`).
			WithArgs(
				EventTypeIntegrityViolation, SeverityAlert, "principal-1",
				"clinic", sqlmock.AnyArg(),
				"patients", nil, nil,
				[]byte(`{"constraint":"patients_owner_exclusive"}`),
			).
			WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).
				AddRow(int64(2), time.Now()))

		require.NoError(t, logger.Log(context.Background(), event))

		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("defaults severity to info", func(t *testing.T) {
		mock.ExpectQuery(`INSERT INTO audit_events`).
			WithArgs(
				EventTypeClinicCreated, SeverityInfo, nil,
				nil, nil,
				nil, nil, nil,
				[]byte(`{}`),
			).
			WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).
				AddRow(int64(3), time.Now()))

		event := &Event{EventType: EventTypeClinicCreated}
		require.NoError(t, logger.Log(context.Background(), event))
		assert.Equal(t, SeverityInfo, event.Severity)

		require.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestDBLoggerSearch(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	logger, err := NewDBLogger(db)
	require.NoError(t, err)

	columns := []string{
		"id", "event_type", "severity", "principal_id",
		"tenant_type", "tenant_id",
		"resource", "resource_id", "action", "details", "created_at",
	}

	t.Run("filter by tenant", func(t *testing.T) {
		mock.ExpectQuery(`SELECT id, event_type, severity, principal_id`).
			WithArgs("clinic", int64(7), 100, 0).
			WillReturnRows(sqlmock.NewRows(columns).
				AddRow(int64(2), string(EventTypeAccessDenied), string(SeverityWarning), "principal-1",
					"clinic", int64(7), nil, nil, "manage_finance",
					[]byte(`{"reason":"denied"}`), time.Now()).
				AddRow(int64(1), string(EventTypeMemberInvited), string(SeverityInfo), "principal-1",
					"clinic", int64(7), "membership", "principal-9", nil,
					[]byte(`{}`), time.Now()))

		tenantID := int64(7)
		events, err := logger.Search(context.Background(), SearchFilter{
			TenantType: tenancy.TenantTypeClinic,
			TenantID:   &tenantID,
		})
		require.NoError(t, err)
		require.Len(t, events, 2)
		assert.Equal(t, EventTypeAccessDenied, events[0].EventType)
		assert.Equal(t, "denied", events[0].Details["reason"])
		require.NotNil(t, events[1].TenantID)
		assert.Equal(t, int64(7), *events[1].TenantID)

		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("filter by event types and severity", func(t *testing.T) {
		mock.ExpectQuery(`event_type IN \(\$1, \$2\)`).
			WithArgs(string(EventTypeIntegrityViolation), string(EventTypeAccessDenied), string(SeverityAlert), 10, 0).
			WillReturnRows(sqlmock.NewRows(columns))

		events, err := logger.Search(context.Background(), SearchFilter{
			EventTypes: []EventType{EventTypeIntegrityViolation, EventTypeAccessDenied},
			Severity:   SeverityAlert,
			Limit:      10,
		})
		require.NoError(t, err)
		assert.Empty(t, events)

		require.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestDBLoggerPurge(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	logger, err := NewDBLogger(db)
	require.NoError(t, err)

	mock.ExpectExec(`DELETE FROM audit_events WHERE created_at < \$1`).
		WithArgs(sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 12))

	removed, err := logger.Purge(context.Background(), 90*24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(12), removed)

	require.NoError(t, mock.ExpectationsWereMet())
}
