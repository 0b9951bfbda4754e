/*
 * Copyright 2025 tomoncle.
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package repository

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/mysqldialect"

	"github.com/tomoncle/mole/database"
	"github.com/tomoncle/mole/types"
)

type ticket struct {
	ID       int64  `bun:"id"`
	Subject  string `bun:"subject"`
	Status   string `bun:"status"`
	Priority int    `bun:"priority"`
}

func newMockRepo(t *testing.T) (Repository[ticket], *database.Conn, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	db := bun.NewDB(sqlDB, mysqldialect.New())
	conn := database.NewConn(db, false)

	repo, err := NewRepository[ticket](ticketDescriptor(), Config{})
	require.NoError(t, err)
	return repo, conn, mock
}

func ticketRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "subject", "status", "priority"})
}

func TestRepositoryGet(t *testing.T) {
	repo, conn, mock := newMockRepo(t)
	mock.ExpectQuery("SELECT (.+) FROM `tickets` WHERE").
		WillReturnRows(ticketRows().AddRow(7, "printer on fire", "open", 3))

	got, err := repo.Get(context.Background(), conn, 7)
	require.NoError(t, err)
	assert.Equal(t, int64(7), got.ID)
	assert.Equal(t, "printer on fire", got.Subject)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepositoryGetNotFound(t *testing.T) {
	repo, conn, mock := newMockRepo(t)
	mock.ExpectQuery("SELECT (.+) FROM `tickets` WHERE").
		WillReturnRows(ticketRows())

	_, err := repo.Get(context.Background(), conn, 99)
	var nf *EntityNotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "tickets", nf.Table)
	assert.Equal(t, 99, nf.ID)
	assert.True(t, IsNotFound(err))
}

func TestRepositoryFirstReturnsNilOnNoMatch(t *testing.T) {
	repo, conn, mock := newMockRepo(t)
	mock.ExpectQuery("SELECT (.+) FROM `tickets`").
		WillReturnRows(ticketRows())

	got, err := repo.First(context.Background(), conn, types.Filters(types.Eq("status", "open")), nil)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestRepositoryCreateRefetchesByLastInsertId(t *testing.T) {
	repo, conn, mock := newMockRepo(t)
	mock.ExpectExec("INSERT INTO `tickets`").
		WillReturnResult(sqlmock.NewResult(42, 1))
	mock.ExpectQuery("SELECT (.+) FROM `tickets` WHERE").
		WillReturnRows(ticketRows().AddRow(42, "printer on fire", "open", 3))

	got, err := repo.Create(context.Background(), conn, uuid.New(),
		FieldsOf("subject", "printer on fire", "status", "open", "priority", 3))
	require.NoError(t, err)
	assert.Equal(t, int64(42), got.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepositoryCreateWithCallerAssignedID(t *testing.T) {
	repo, conn, mock := newMockRepo(t)
	mock.ExpectExec("INSERT INTO `tickets`").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("SELECT (.+) FROM `tickets` WHERE").
		WillReturnRows(ticketRows().AddRow(7, "x", "open", 1))

	got, err := repo.Create(context.Background(), conn, uuid.New(),
		FieldsOf("id", int64(7), "subject", "x", "status", "open", "priority", 1))
	require.NoError(t, err)
	assert.Equal(t, int64(7), got.ID)
}

func TestRepositoryCreateUniqueViolation(t *testing.T) {
	repo, conn, mock := newMockRepo(t)
	mock.ExpectExec("INSERT INTO `tickets`").
		WillReturnError(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry 'x' for key 'subject'"})

	_, err := repo.Create(context.Background(), conn, uuid.New(), FieldsOf("subject", "x"))
	var uv *UniqueViolationError
	require.ErrorAs(t, err, &uv)
	assert.Equal(t, "tickets", uv.Table)
}

func TestRepositoryCreateRejectsInjectedColumn(t *testing.T) {
	repo, conn, _ := newMockRepo(t)

	_, err := repo.Create(context.Background(), conn, uuid.New(), FieldsOf(types.ColumnCreatedAt, "now"))
	var inj *InjectedColumnError
	assert.ErrorAs(t, err, &inj)
}

func TestRepositoryCreateMany(t *testing.T) {
	repo, conn, mock := newMockRepo(t)
	mock.ExpectExec("INSERT INTO `tickets`").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO `tickets`").WillReturnResult(sqlmock.NewResult(2, 1))

	n, err := repo.CreateMany(context.Background(), conn, uuid.New(), []*FieldSet{
		FieldsOf("subject", "a"),
		FieldsOf("subject", "b"),
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepositoryListClampsLimitAndPaginates(t *testing.T) {
	repo, conn, mock := newMockRepo(t)
	// Requested limit 100 clamps to the 50 maximum.
	mock.ExpectQuery("SELECT (.+) FROM `tickets`(.+)ORDER BY `id` ASC LIMIT 50").
		WillReturnRows(ticketRows().
			AddRow(1, "a", "open", 1).
			AddRow(2, "b", "open", 2))
	mock.ExpectQuery("SELECT count").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(120))

	items, meta, err := repo.List(context.Background(), conn, nil, &types.ListOptions{Limit: 100})
	require.NoError(t, err)
	assert.Len(t, items, 2)
	assert.Equal(t, int64(120), meta.TotalItems)
	assert.Equal(t, int64(50), meta.PerPage)
	assert.Equal(t, int64(3), meta.TotalPages)
	assert.Equal(t, int64(1), meta.CurrentPage)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepositoryListDefaultLimit(t *testing.T) {
	repo, conn, mock := newMockRepo(t)
	mock.ExpectQuery("SELECT (.+) FROM `tickets`(.+)LIMIT 20").
		WillReturnRows(ticketRows())
	mock.ExpectQuery("SELECT count").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))

	items, meta, err := repo.List(context.Background(), conn, nil, nil)
	require.NoError(t, err)
	assert.Empty(t, items)
	assert.Equal(t, int64(20), meta.PerPage)
	assert.Equal(t, int64(1), meta.TotalPages)
	assert.Equal(t, int64(1), meta.CurrentPage)
}

func TestRepositoryListUnknownFilterColumnFailsBeforeSQL(t *testing.T) {
	repo, conn, mock := newMockRepo(t)

	_, _, err := repo.List(context.Background(), conn, types.Filters(types.Eq("mood", "grim")), nil)
	var unknown *UnknownColumnError
	require.ErrorAs(t, err, &unknown)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepositoryCount(t *testing.T) {
	repo, conn, mock := newMockRepo(t)
	mock.ExpectQuery("SELECT count(.+) FROM `tickets`").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(45))

	n, err := repo.Count(context.Background(), conn, types.Filters(types.Eq("status", "open")))
	require.NoError(t, err)
	assert.Equal(t, int64(45), n)
}

func TestRepositoryUpdateRefetches(t *testing.T) {
	repo, conn, mock := newMockRepo(t)
	mock.ExpectExec("UPDATE `tickets` SET").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("SELECT (.+) FROM `tickets` WHERE").
		WillReturnRows(ticketRows().AddRow(7, "x", "closed", 1))

	got, err := repo.Update(context.Background(), conn, uuid.New(), 7, FieldsOf("status", "closed"))
	require.NoError(t, err)
	assert.Equal(t, "closed", got.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepositoryUpdateMissingRow(t *testing.T) {
	repo, conn, mock := newMockRepo(t)
	mock.ExpectExec("UPDATE `tickets` SET").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT (.+) FROM `tickets` WHERE").
		WillReturnRows(ticketRows())

	_, err := repo.Update(context.Background(), conn, uuid.New(), 99, FieldsOf("status", "closed"))
	assert.True(t, IsNotFound(err))
}

func TestRepositoryUpdateMany(t *testing.T) {
	repo, conn, mock := newMockRepo(t)
	mock.ExpectExec("UPDATE `tickets` SET").
		WillReturnResult(sqlmock.NewResult(0, 2))

	n, err := repo.UpdateMany(context.Background(), conn, uuid.New(),
		[]interface{}{1, 2, 3}, FieldsOf("status", "closed"))
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	n, err = repo.UpdateMany(context.Background(), conn, uuid.New(), nil, FieldsOf("status", "closed"))
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestRepositoryUpdateByFilter(t *testing.T) {
	repo, conn, mock := newMockRepo(t)
	mock.ExpectExec("UPDATE `tickets` SET").
		WillReturnResult(sqlmock.NewResult(0, 3))

	n, err := repo.UpdateByFilter(context.Background(), conn, uuid.New(),
		types.Filters(types.Eq("status", "open")), FieldsOf("priority", 5))
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
}

func TestRepositoryUpdateByFilterEmptyFilterUpdatesAllRows(t *testing.T) {
	repo, conn, mock := newMockRepo(t)
	mock.ExpectExec("UPDATE `tickets` SET (.+) WHERE").
		WillReturnResult(sqlmock.NewResult(0, 120))

	n, err := repo.UpdateByFilter(context.Background(), conn, uuid.New(), nil, FieldsOf("status", "closed"))
	require.NoError(t, err)
	assert.Equal(t, int64(120), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepositoryDelete(t *testing.T) {
	repo, conn, mock := newMockRepo(t)
	mock.ExpectExec("DELETE FROM `tickets`").
		WillReturnResult(sqlmock.NewResult(0, 1))

	assert.NoError(t, repo.Delete(context.Background(), conn, 7))
}

func TestRepositoryDeleteMissingRow(t *testing.T) {
	repo, conn, mock := newMockRepo(t)
	mock.ExpectExec("DELETE FROM `tickets`").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Delete(context.Background(), conn, 99)
	assert.True(t, IsNotFound(err))
}

func TestRepositoryDeleteMany(t *testing.T) {
	repo, conn, mock := newMockRepo(t)
	mock.ExpectExec("DELETE FROM `tickets`").
		WillReturnResult(sqlmock.NewResult(0, 2))

	n, err := repo.DeleteMany(context.Background(), conn, []interface{}{1, 2, 3})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	n, err = repo.DeleteMany(context.Background(), conn, nil)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestRepositoryDeleteByFilterEmptyFilterDeletesAllRows(t *testing.T) {
	repo, conn, mock := newMockRepo(t)
	mock.ExpectExec("DELETE FROM `tickets` WHERE").
		WillReturnResult(sqlmock.NewResult(0, 7))

	n, err := repo.DeleteByFilter(context.Background(), conn, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(7), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepositoryOperationsInsideTransaction(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	db := bun.NewDB(sqlDB, mysqldialect.New())
	conn := database.NewConn(db, true)
	repo, err := NewRepository[ticket](ticketDescriptor(), Config{})
	require.NoError(t, err)

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM `tickets`").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	ctx := context.Background()
	err = conn.RunInTxn(ctx, func(ctx context.Context) error {
		return repo.Delete(ctx, conn, 7)
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
