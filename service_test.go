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

package mole

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/mysqldialect"

	"github.com/tomoncle/mole/database"
	"github.com/tomoncle/mole/repository"
	"github.com/tomoncle/mole/types"
)

type note struct {
	ID    int64  `bun:"id"`
	Title string `bun:"title"`
}

func noteDescriptor() types.TableDescriptor {
	return types.TableDescriptor{
		TableName:   "notes",
		IDName:      "id",
		ColumnNames: []string{"title"},
	}
}

func setupGlobalDB(t *testing.T) sqlmock.Sqlmock {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)

	prev := database.DB
	database.DB = bun.NewDB(sqlDB, mysqldialect.New())
	t.Cleanup(func() {
		database.DB = prev
		_ = sqlDB.Close()
	})
	return mock
}

func TestServiceGet(t *testing.T) {
	mock := setupGlobalDB(t)
	mock.ExpectQuery("SELECT (.+) FROM `notes` WHERE").
		WillReturnRows(sqlmock.NewRows([]string{"id", "title"}).AddRow(1, "hello"))

	svc := NewService[note](noteDescriptor(), uuid.New())
	got, err := svc.Get(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "hello", got.Title)
}

func TestServiceSaveStampsNothingOnPlainTable(t *testing.T) {
	mock := setupGlobalDB(t)
	mock.ExpectExec("INSERT INTO `notes`").
		WillReturnResult(sqlmock.NewResult(5, 1))
	mock.ExpectQuery("SELECT (.+) FROM `notes` WHERE").
		WillReturnRows(sqlmock.NewRows([]string{"id", "title"}).AddRow(5, "hello"))

	svc := NewService[note](noteDescriptor(), uuid.New())
	got, err := svc.Save(context.Background(), repository.FieldsOf("title", "hello"))
	require.NoError(t, err)
	assert.Equal(t, int64(5), got.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestServiceWithTxnCommits(t *testing.T) {
	mock := setupGlobalDB(t)
	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM `notes`").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	svc := NewService[note](noteDescriptor(), uuid.New())
	err := svc.WithTxn(context.Background(), func(ctx context.Context, conn *database.Conn) error {
		return svc.Repo().Delete(ctx, conn, 3)
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestServiceWithTxnRollsBackOnError(t *testing.T) {
	mock := setupGlobalDB(t)
	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM `notes`").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	svc := NewService[note](noteDescriptor(), uuid.New())
	err := svc.WithTxn(context.Background(), func(ctx context.Context, conn *database.Conn) error {
		return svc.Repo().Delete(ctx, conn, 3)
	})
	assert.True(t, repository.IsNotFound(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}
