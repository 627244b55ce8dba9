package handlers

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"mailtriage/internal/database/dbtest"
	"mailtriage/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealthAndRootHandlers(t *testing.T) {
	e := echo.New()

	rec := httptest.NewRecorder()
	require.NoError(t, HealthHandler("2.1.0")(e.NewContext(httptest.NewRequest(http.MethodGet, "/healthz", nil), rec)))
	assert.Equal(t, http.StatusOK, rec.Code)

	var health models.HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &health))
	assert.Equal(t, "healthy", health.Status)
	assert.Equal(t, "2.1.0", health.Version)
	assert.False(t, health.Timestamp.IsZero())

	rec = httptest.NewRecorder()
	require.NoError(t, RootHandler("2.1.0")(e.NewContext(httptest.NewRequest(http.MethodGet, "/api/", nil), rec)))

	var root map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &root))
	assert.Equal(t, map[string]string{"service": "mailtriage API", "version": "2.1.0", "status": "running"}, root)
}

func TestDBHealthHandler(t *testing.T) {
	tests := []struct {
		name       string
		setupMock  func(mock sqlmock.Sqlmock)
		wantStatus int
		wantError  string
	}{
		{
			name: "healthy",
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectQuery("SELECT 1").WillReturnRows(sqlmock.NewRows([]string{"1"}).AddRow(1))
				mock.ExpectRollback()
			},
			wantStatus: http.StatusOK,
		},
		{
			name: "begin fails",
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin().WillReturnError(sql.ErrConnDone)
			},
			wantStatus: http.StatusServiceUnavailable,
			wantError:  "failed to begin read-only transaction",
		},
		{
			name: "query fails",
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectQuery("SELECT 1").WillReturnError(context.DeadlineExceeded)
				mock.ExpectRollback()
			},
			wantStatus: http.StatusServiceUnavailable,
			wantError:  "read-only query failed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockDB, mock, err := sqlmock.New()
			require.NoError(t, err)
			defer func() { _ = mockDB.Close() }()
			tt.setupMock(mock)

			resp, code := dbHealth(t, sqlx.NewDb(mockDB, "sqlmock"))
			assert.Equal(t, tt.wantStatus, code)
			if tt.wantError == "" {
				assert.Equal(t, "healthy", resp.Status)
				assert.True(t, resp.Connected)
				assert.Empty(t, resp.Error)
			} else {
				assert.Equal(t, "unhealthy", resp.Status)
				assert.False(t, resp.Connected)
				assert.Contains(t, resp.Error, tt.wantError)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestDBHealthHandler_NilDatabase(t *testing.T) {
	resp, code := dbHealth(t, nil)
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "Database connection not initialized", resp.Error)
}

func TestDBHealthHandler_SQLite(t *testing.T) {
	store := dbtest.NewStore(t)
	resp, code := dbHealth(t, store.Client().GetDB())
	assert.Equal(t, http.StatusOK, code)
	assert.True(t, resp.Connected)
}

func dbHealth(t *testing.T, db *sqlx.DB) (models.DBHealthResponse, int) {
	t.Helper()
	rec := httptest.NewRecorder()
	c := echo.New().NewContext(httptest.NewRequest(http.MethodGet, "/healthz/db", nil), rec)
	require.NoError(t, DBHealthHandler(db)(c))

	var resp models.DBHealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp, rec.Code
}
