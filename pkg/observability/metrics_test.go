package observability

import (
	"database/sql"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNewMetrics(t *testing.T) {
	t.Run("creates and registers all metrics", func(t *testing.T) {
		registry := prometheus.NewRegistry()
		metrics := NewMetrics(registry)

		if metrics == nil {
			t.Fatal("NewMetrics returned nil")
		}

		if metrics.HTTPRequestsTotal == nil {
			t.Error("HTTPRequestsTotal is nil")
		}
		if metrics.HTTPRequestDuration == nil {
			t.Error("HTTPRequestDuration is nil")
		}
		if metrics.HTTPResponseSize == nil {
			t.Error("HTTPResponseSize is nil")
		}

		if metrics.TenantResolutionsTotal == nil {
			t.Error("TenantResolutionsTotal is nil")
		}
		if metrics.TenantSelectionRejected == nil {
			t.Error("TenantSelectionRejected is nil")
		}

		if metrics.AccessDecisionsTotal == nil {
			t.Error("AccessDecisionsTotal is nil")
		}
		if metrics.RecordOperationsTotal == nil {
			t.Error("RecordOperationsTotal is nil")
		}
		if metrics.IntegrityViolationsTotal == nil {
			t.Error("IntegrityViolationsTotal is nil")
		}

		if metrics.MembershipTransitionsTotal == nil {
			t.Error("MembershipTransitionsTotal is nil")
		}
		if metrics.ExpiredInvitationsTotal == nil {
			t.Error("ExpiredInvitationsTotal is nil")
		}

		if metrics.DBConnectionsActive == nil {
			t.Error("DBConnectionsActive is nil")
		}
		if metrics.DBConnectionsIdle == nil {
			t.Error("DBConnectionsIdle is nil")
		}
	})

	t.Run("metrics are registered with registry", func(t *testing.T) {
		registry := prometheus.NewRegistry()
		metrics := NewMetrics(registry)

		metrics.HTTPRequestsTotal.WithLabelValues("GET", "/test", "200").Add(0)
		metrics.TenantResolutionsTotal.WithLabelValues("clinic", "success").Add(0)
		metrics.AccessDecisionsTotal.WithLabelValues("view_patients", "allow").Add(0)
		metrics.RecordOperationsTotal.WithLabelValues("patients", "create", "success").Add(0)
		metrics.IntegrityViolationsTotal.WithLabelValues("patients").Add(0)
		metrics.MembershipTransitionsTotal.WithLabelValues("invited_to_active").Add(0)
		metrics.DBConnectionsActive.Set(0)

		families, err := registry.Gather()
		if err != nil {
			t.Fatalf("Failed to gather metrics: %v", err)
		}

		metricNames := make(map[string]bool)
		for _, family := range families {
			metricNames[family.GetName()] = true
		}

		expectedMetrics := []string{
			"clinicore_http_requests_total",
			"clinicore_tenant_resolutions_total",
			"clinicore_access_decisions_total",
			"clinicore_record_operations_total",
			"clinicore_integrity_violations_total",
			"clinicore_membership_transitions_total",
			"clinicore_db_connections_active",
		}

		for _, name := range expectedMetrics {
			if !metricNames[name] {
				t.Errorf("Expected metric %s not found in registry", name)
			}
		}
	})

	t.Run("panics on duplicate registration", func(t *testing.T) {
		registry := prometheus.NewRegistry()
		NewMetrics(registry)

		defer func() {
			if r := recover(); r == nil {
				t.Error("Expected panic on duplicate registration, but didn't panic")
			}
		}()

		NewMetrics(registry)
	})
}

func TestMetrics_TenancyMetrics(t *testing.T) {
	t.Run("record tenant resolutions", func(t *testing.T) {
		registry := prometheus.NewRegistry()
		metrics := NewMetrics(registry)

		metrics.TenantResolutionsTotal.WithLabelValues("clinic", "success").Inc()
		metrics.TenantResolutionsTotal.WithLabelValues("workspace", "success").Inc()
		metrics.TenantResolutionsTotal.WithLabelValues("clinic", "rejected").Inc()

		expected := `
# HELP clinicore_tenant_resolutions_total Total number of tenant context resolutions
# TYPE clinicore_tenant_resolutions_total counter
clinicore_tenant_resolutions_total{outcome="rejected",tenant_type="clinic"} 1
clinicore_tenant_resolutions_total{outcome="success",tenant_type="clinic"} 1
clinicore_tenant_resolutions_total{outcome="success",tenant_type="workspace"} 1
`
		if err := testutil.CollectAndCompare(metrics.TenantResolutionsTotal, strings.NewReader(expected)); err != nil {
			t.Errorf("Unexpected metric value: %v", err)
		}
	})

	t.Run("record rejected selections", func(t *testing.T) {
		registry := prometheus.NewRegistry()
		metrics := NewMetrics(registry)

		metrics.TenantSelectionRejected.Inc()
		metrics.TenantSelectionRejected.Inc()

		expected := `
# HELP clinicore_tenant_selection_rejected_total Total number of rejected tenant selections
# TYPE clinicore_tenant_selection_rejected_total counter
clinicore_tenant_selection_rejected_total 2
`
		if err := testutil.CollectAndCompare(metrics.TenantSelectionRejected, strings.NewReader(expected)); err != nil {
			t.Errorf("Unexpected metric value: %v", err)
		}
	})
}

func TestMetrics_AccessDecisions(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := NewMetrics(registry)

	metrics.AccessDecisionsTotal.WithLabelValues("view_patients", "allow").Inc()
	metrics.AccessDecisionsTotal.WithLabelValues("manage_finance", "deny").Inc()

	expected := `
# HELP clinicore_access_decisions_total Total number of permission evaluations
# TYPE clinicore_access_decisions_total counter
clinicore_access_decisions_total{action="manage_finance",effect="deny"} 1
clinicore_access_decisions_total{action="view_patients",effect="allow"} 1
`
	if err := testutil.CollectAndCompare(metrics.AccessDecisionsTotal, strings.NewReader(expected)); err != nil {
		t.Errorf("Unexpected metric value: %v", err)
	}
}

func TestMetrics_RecordOperations(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := NewMetrics(registry)

	metrics.RecordOperationsTotal.WithLabelValues("patients", "create", "success").Add(3)
	metrics.RecordOperationsTotal.WithLabelValues("patients", "delete", "not_found").Inc()

	expected := `
# HELP clinicore_record_operations_total Total number of governed record operations
# TYPE clinicore_record_operations_total counter
clinicore_record_operations_total{collection="patients",operation="create",status="success"} 3
clinicore_record_operations_total{collection="patients",operation="delete",status="not_found"} 1
`
	if err := testutil.CollectAndCompare(metrics.RecordOperationsTotal, strings.NewReader(expected)); err != nil {
		t.Errorf("Unexpected metric value: %v", err)
	}
}

func TestMetrics_IntegrityViolations(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := NewMetrics(registry)

	metrics.IntegrityViolationsTotal.WithLabelValues("consultations").Inc()

	expected := `
# HELP clinicore_integrity_violations_total Total number of database integrity violations on governed tables
# TYPE clinicore_integrity_violations_total counter
clinicore_integrity_violations_total{table="consultations"} 1
`
	if err := testutil.CollectAndCompare(metrics.IntegrityViolationsTotal, strings.NewReader(expected)); err != nil {
		t.Errorf("Unexpected metric value: %v", err)
	}
}

func TestMetrics_MembershipMetrics(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := NewMetrics(registry)

	metrics.MembershipTransitionsTotal.WithLabelValues("invited_to_active").Inc()
	metrics.MembershipTransitionsTotal.WithLabelValues("active_to_deactivated").Inc()
	metrics.ExpiredInvitationsTotal.Inc()

	count := testutil.CollectAndCount(metrics.MembershipTransitionsTotal)
	if count != 2 {
		t.Errorf("Expected 2 transition metrics, got %d", count)
	}

	expected := `
# HELP clinicore_expired_invitations_total Total number of invitations expired by the cleanup job
# TYPE clinicore_expired_invitations_total counter
clinicore_expired_invitations_total 1
`
	if err := testutil.CollectAndCompare(metrics.ExpiredInvitationsTotal, strings.NewReader(expected)); err != nil {
		t.Errorf("Unexpected metric value: %v", err)
	}
}

func TestMetrics_ObserveDBStats(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := NewMetrics(registry)

	metrics.ObserveDBStats(sql.DBStats{InUse: 7, Idle: 3})

	expected := `
# HELP clinicore_db_connections_active Number of active database connections
# TYPE clinicore_db_connections_active gauge
clinicore_db_connections_active 7
`
	if err := testutil.CollectAndCompare(metrics.DBConnectionsActive, strings.NewReader(expected)); err != nil {
		t.Errorf("Unexpected metric value: %v", err)
	}

	expected = `
# HELP clinicore_db_connections_idle Number of idle database connections
# TYPE clinicore_db_connections_idle gauge
clinicore_db_connections_idle 3
`
	if err := testutil.CollectAndCompare(metrics.DBConnectionsIdle, strings.NewReader(expected)); err != nil {
		t.Errorf("Unexpected metric value: %v", err)
	}
}

func TestResponseWriter(t *testing.T) {
	t.Run("captures status code", func(t *testing.T) {
		recorder := httptest.NewRecorder()
		rw := &responseWriter{
			ResponseWriter: recorder,
			statusCode:     http.StatusOK,
		}

		rw.WriteHeader(http.StatusCreated)

		if rw.statusCode != http.StatusCreated {
			t.Errorf("Expected status code %d, got %d", http.StatusCreated, rw.statusCode)
		}

		if recorder.Code != http.StatusCreated {
			t.Errorf("Expected recorder status code %d, got %d", http.StatusCreated, recorder.Code)
		}
	})

	t.Run("captures bytes written", func(t *testing.T) {
		recorder := httptest.NewRecorder()
		rw := &responseWriter{
			ResponseWriter: recorder,
			statusCode:     http.StatusOK,
		}

		data := []byte("Hello, World!")
		n, err := rw.Write(data)

		if err != nil {
			t.Errorf("Unexpected error: %v", err)
		}

		if n != len(data) {
			t.Errorf("Expected %d bytes written, got %d", len(data), n)
		}

		if rw.bytesWritten != len(data) {
			t.Errorf("Expected %d bytes tracked, got %d", len(data), rw.bytesWritten)
		}
	})

	t.Run("accumulates bytes across multiple writes", func(t *testing.T) {
		recorder := httptest.NewRecorder()
		rw := &responseWriter{
			ResponseWriter: recorder,
			statusCode:     http.StatusOK,
		}

		rw.Write([]byte("Hello, "))
		rw.Write([]byte("World!"))

		expected := len("Hello, ") + len("World!")
		if rw.bytesWritten != expected {
			t.Errorf("Expected %d bytes written, got %d", expected, rw.bytesWritten)
		}
	})
}

func TestHTTPMetricsMiddleware(t *testing.T) {
	t.Run("records HTTP metrics", func(t *testing.T) {
		registry := prometheus.NewRegistry()
		metrics := NewMetrics(registry)

		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte("OK"))
		})

		middleware := HTTPMetricsMiddleware(metrics)
		wrappedHandler := middleware(handler)

		req := httptest.NewRequest("GET", "/test", nil)
		rec := httptest.NewRecorder()

		wrappedHandler.ServeHTTP(rec, req)

		expected := `
# HELP clinicore_http_requests_total Total number of HTTP requests
# TYPE clinicore_http_requests_total counter
clinicore_http_requests_total{method="GET",path="/test",status="200"} 1
`
		if err := testutil.CollectAndCompare(metrics.HTTPRequestsTotal, strings.NewReader(expected)); err != nil {
			t.Errorf("Unexpected counter value: %v", err)
		}

		count := testutil.CollectAndCount(metrics.HTTPRequestDuration)
		if count != 1 {
			t.Errorf("Expected 1 duration metric, got %d", count)
		}

		count = testutil.CollectAndCount(metrics.HTTPResponseSize)
		if count != 1 {
			t.Errorf("Expected 1 response size metric, got %d", count)
		}
	})

	t.Run("records different status codes", func(t *testing.T) {
		registry := prometheus.NewRegistry()
		metrics := NewMetrics(registry)

		testCases := []struct {
			statusCode int
			path       string
		}{
			{http.StatusOK, "/ok"},
			{http.StatusNotFound, "/notfound"},
			{http.StatusInternalServerError, "/error"},
		}

		middleware := HTTPMetricsMiddleware(metrics)

		for _, tc := range testCases {
			handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.statusCode)
			})

			wrappedHandler := middleware(handler)
			req := httptest.NewRequest("GET", tc.path, nil)
			rec := httptest.NewRecorder()

			wrappedHandler.ServeHTTP(rec, req)
		}

		count := testutil.CollectAndCount(metrics.HTTPRequestsTotal)
		if count != 3 {
			t.Errorf("Expected 3 metrics, got %d", count)
		}
	})
}

func TestRegisterMetricsEndpoint(t *testing.T) {
	t.Run("registers metrics endpoint", func(t *testing.T) {
		registry := prometheus.NewRegistry()
		metrics := NewMetrics(registry)

		metrics.DBConnectionsActive.Set(4)
		metrics.HTTPRequestsTotal.WithLabelValues("GET", "/api", "200").Inc()

		mux := http.NewServeMux()
		RegisterMetricsEndpoint(mux, registry)

		req := httptest.NewRequest("GET", "/metrics", nil)
		rec := httptest.NewRecorder()

		mux.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Errorf("Expected status code %d, got %d", http.StatusOK, rec.Code)
		}

		body := rec.Body.String()

		if !strings.Contains(body, "clinicore_db_connections_active 4") {
			t.Error("Expected clinicore_db_connections_active value to be 4")
		}

		if !strings.Contains(body, "clinicore_http_requests_total") {
			t.Error("Expected clinicore_http_requests_total in metrics output")
		}
	})

	t.Run("metrics endpoint returns prometheus format", func(t *testing.T) {
		registry := prometheus.NewRegistry()
		NewMetrics(registry)

		mux := http.NewServeMux()
		RegisterMetricsEndpoint(mux, registry)

		req := httptest.NewRequest("GET", "/metrics", nil)
		rec := httptest.NewRecorder()

		mux.ServeHTTP(rec, req)

		contentType := rec.Header().Get("Content-Type")
		if !strings.Contains(contentType, "text/plain") {
			t.Errorf("Expected Content-Type to contain text/plain, got %s", contentType)
		}
	})
}
