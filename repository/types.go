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
	"time"

	"github.com/tomoncle/mole/database"
	"github.com/tomoncle/mole/types"
)

// List-window bounds applied when the caller passes none of its own.
const (
	DefaultListLimit = 20
	MaxListLimit     = 50
)

// Config tunes one repository instance. Zero values fall back to the package
// defaults; Now defaults to the UTC wall clock and exists so tests can pin
// the injected timestamps.
type Config struct {
	DefaultListLimit int
	MaxListLimit     int
	Now              func() time.Time
}

func (c Config) withDefaults() Config {
	if c.DefaultListLimit <= 0 {
		c.DefaultListLimit = DefaultListLimit
	}
	if c.MaxListLimit <= 0 {
		c.MaxListLimit = MaxListLimit
	}
	if c.Now == nil {
		c.Now = func() time.Time { return time.Now().UTC() }
	}
	return c
}

// CrudRepository defines the by-id and by-field operations of the engine.
// Every operation executes on the caller's Conn, so the same repository value
// serves transactional and auto-commit flows alike.
type CrudRepository[T any] interface {
	Create(ctx context.Context, conn *database.Conn, actor interface{}, fields *FieldSet) (*T, error)

	CreateMany(ctx context.Context, conn *database.Conn, actor interface{}, sets []*FieldSet) (int64, error)

	Get(ctx context.Context, conn *database.Conn, id interface{}) (*T, error)

	Update(ctx context.Context, conn *database.Conn, actor interface{}, id interface{}, fields *FieldSet) (*T, error)

	UpdateMany(ctx context.Context, conn *database.Conn, actor interface{}, ids []interface{}, fields *FieldSet) (int64, error)

	Delete(ctx context.Context, conn *database.Conn, id interface{}) error

	DeleteMany(ctx context.Context, conn *database.Conn, ids []interface{}) (int64, error)
}

// QueryRepository defines the filter-driven read and bulk-write operations.
type QueryRepository[T any] interface {
	First(ctx context.Context, conn *database.Conn, filters types.FilterSet, opts *types.ListOptions) (*T, error)

	List(ctx context.Context, conn *database.Conn, filters types.FilterSet, opts *types.ListOptions) ([]T, types.PaginationMetadata, error)

	Count(ctx context.Context, conn *database.Conn, filters types.FilterSet) (int64, error)

	UpdateByFilter(ctx context.Context, conn *database.Conn, actor interface{}, filters types.FilterSet, fields *FieldSet) (int64, error)

	DeleteByFilter(ctx context.Context, conn *database.Conn, filters types.FilterSet) (int64, error)
}

// Repository combines the by-id and filter-driven operations of one entity
// kind described by a descriptor.
type Repository[T any] interface {
	CrudRepository[T]
	QueryRepository[T]
	Descriptor() types.Descriptor
}
