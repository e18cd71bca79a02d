package dao

import (
	"context"
	"database/sql/driver"
	"testing"

	"gitee.com/flycash/broadcast-platform/internal/domain"
	"gitee.com/flycash/broadcast-platform/internal/errs"
	"github.com/DATA-DOG/go-sqlmock"
	mysqlerr "github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	db, err := gorm.Open(mysql.New(mysql.Config{
		Conn:                      sqlDB,
		SkipInitializeWithVersion: true,
	}), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = sqlDB.Close()
	})
	return db, mock
}

func TestBroadcastDAO_CreateDuplicateMySQL(t *testing.T) {
	t.Parallel()
	db, mock := newMockDB(t)
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO `broadcasts`").
		WillReturnError(&mysqlerr.MySQLError{Number: 1062, Message: "Duplicate entry"})
	mock.ExpectRollback()

	_, err := NewBroadcastDAO(db).Create(context.Background(), Broadcast{ID: 1, OrgID: 1, IdempotencyKey: "k"})
	assert.ErrorIs(t, err, errs.ErrBroadcastDuplicate)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecipientDAO_FindIDsByQueryMySQL(t *testing.T) {
	t.Parallel()
	testCases := []struct {
		name  string
		query domain.AudienceQuery
		sql   string
		args  []any
	}{
		{
			name: "字符串",
			query: domain.AudienceQuery{Include: []domain.Predicate{
				{Path: []string{"plan"}, Op: domain.ComparisonEQ, Value: "pro", ValueType: domain.ValueTypeString},
			}},
			sql:  `JSON_UNQUOTE\(JSON_EXTRACT\(metadata, \?\)\) = \?`,
			args: []any{int64(1), `$."plan"`, "pro"},
		},
		{
			name: "数字",
			query: domain.AudienceQuery{Include: []domain.Predicate{
				{Path: []string{"stats", "age"}, Op: domain.ComparisonGT, Value: float64(18), ValueType: domain.ValueTypeNumber},
			}},
			sql:  `CAST\(JSON_UNQUOTE\(JSON_EXTRACT\(metadata, \?\)\) AS DECIMAL\(38,10\)\) > \?`,
			args: []any{int64(1), `$."stats"."age"`, float64(18)},
		},
		{
			name: "包含",
			query: domain.AudienceQuery{Include: []domain.Predicate{
				{Column: "email_hash", Op: domain.ComparisonContains, Value: "abc"},
			}},
			sql:  `email_hash LIKE \? ESCAPE '!'`,
			args: []any{int64(1), "%abc%"},
		},
		{
			name: "包含通配符",
			query: domain.AudienceQuery{Include: []domain.Predicate{
				{Path: []string{"code"}, Op: domain.ComparisonContains, Value: "50%_off!", ValueType: domain.ValueTypeString},
			}},
			sql:  `JSON_UNQUOTE\(JSON_EXTRACT\(metadata, \?\)\) LIKE \? ESCAPE '!'`,
			args: []any{int64(1), `$."code"`, "%50!%!_off!!%"},
		},
		{
			name: "时间",
			query: domain.AudienceQuery{Include: []domain.Predicate{
				{Path: []string{"signup"}, Op: domain.ComparisonGTE, Value: "2024-06-01T00:00:00Z", ValueType: domain.ValueTypeDatetime},
			}},
			sql:  `JSON_UNQUOTE\(JSON_EXTRACT\(metadata_times, \?\)\) >= \?`,
			args: []any{int64(1), `$."signup"`, "2024-06-01T00:00:00Z"},
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			db, mock := newMockDB(t)
			args := make([]driver.Value, 0, len(tc.args))
			for _, a := range tc.args {
				args = append(args, a)
			}
			mock.ExpectQuery(tc.sql).WithArgs(args...).
				WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(7))
			ids, err := NewRecipientDAO(db).FindIDsByQuery(context.Background(), 1, tc.query)
			require.NoError(t, err)
			assert.Equal(t, []int64{7}, ids)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}
