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
	"sync"

	"github.com/google/uuid"

	"github.com/tomoncle/mole/database"
	"github.com/tomoncle/mole/repository"
	"github.com/tomoncle/mole/types"
)

type Service[T any] interface {
	// Get returns a single entity by its identifier.
	Get(ctx context.Context, id any) (*T, error)

	// First returns the first entity matching the filters, or nil when none does.
	First(ctx context.Context, filters types.FilterSet, opts *types.ListOptions) (*T, error)

	// List returns one page of matching entities plus pagination metadata.
	List(ctx context.Context, filters types.FilterSet, opts *types.ListOptions) ([]T, types.PaginationMetadata, error)

	// Count returns the number of entities matching the filters.
	Count(ctx context.Context, filters types.FilterSet) (int64, error)

	// Save inserts a new entity from the field set and returns the stored row.
	Save(ctx context.Context, fields *repository.FieldSet) (*T, error)

	// SaveMany inserts one entity per field set and returns how many were stored.
	SaveMany(ctx context.Context, sets []*repository.FieldSet) (int64, error)

	// Update modifies an entity by id and returns the stored row.
	Update(ctx context.Context, id any, fields *repository.FieldSet) (*T, error)

	// UpdateMany applies the field set to the given ids and returns the count.
	UpdateMany(ctx context.Context, ids []any, fields *repository.FieldSet) (int64, error)

	// UpdateByFilter applies the field set to every match and returns the count.
	UpdateByFilter(ctx context.Context, filters types.FilterSet, fields *repository.FieldSet) (int64, error)

	// Delete removes an entity by its identifier.
	Delete(ctx context.Context, id any) error

	// DeleteMany removes entities by identifier and returns how many existed.
	DeleteMany(ctx context.Context, ids []any) (int64, error)

	// DeleteByFilter removes every match and returns the count.
	DeleteByFilter(ctx context.Context, filters types.FilterSet) (int64, error)

	// WithTxn runs fn inside one transaction: every repository call made
	// through the passed Conn commits or rolls back together.
	WithTxn(ctx context.Context, fn func(ctx context.Context, conn *database.Conn) error) error

	// Repo exposes the underlying repository for use with a caller-owned Conn.
	Repo() repository.Repository[T]
}

type baseServiceImpl[T any] struct {
	descriptor types.Descriptor
	actor      uuid.UUID
	config     repository.Config
	repo       repository.Repository[T]
	once       sync.Once
}

// NewService returns a Service bound to one entity descriptor and one actor.
// The actor stamps owner_id and the created/modified-by columns on writes.
func NewService[T any](d types.Descriptor, actor uuid.UUID) Service[T] {
	return NewServiceWithConfig[T](d, actor, repository.Config{})
}

// NewServiceWithConfig is NewService with explicit repository tuning.
func NewServiceWithConfig[T any](d types.Descriptor, actor uuid.UUID, config repository.Config) Service[T] {
	return &baseServiceImpl[T]{descriptor: d, actor: actor, config: config}
}

func (s *baseServiceImpl[T]) Repo() repository.Repository[T] {
	s.once.Do(func() {
		s.repo = repository.MustNewRepository[T](s.descriptor, s.config)
	})
	return s.repo
}

func (s *baseServiceImpl[T]) conn() (*database.Conn, error) {
	return database.AcquireConnNoTxn()
}

func (s *baseServiceImpl[T]) Get(ctx context.Context, id any) (*T, error) {
	conn, err := s.conn()
	if err != nil {
		return nil, err
	}
	return s.Repo().Get(ctx, conn, id)
}

func (s *baseServiceImpl[T]) First(ctx context.Context, filters types.FilterSet, opts *types.ListOptions) (*T, error) {
	conn, err := s.conn()
	if err != nil {
		return nil, err
	}
	return s.Repo().First(ctx, conn, filters, opts)
}

func (s *baseServiceImpl[T]) List(ctx context.Context, filters types.FilterSet, opts *types.ListOptions) ([]T, types.PaginationMetadata, error) {
	conn, err := s.conn()
	if err != nil {
		return nil, types.PaginationMetadata{}, err
	}
	return s.Repo().List(ctx, conn, filters, opts)
}

func (s *baseServiceImpl[T]) Count(ctx context.Context, filters types.FilterSet) (int64, error) {
	conn, err := s.conn()
	if err != nil {
		return 0, err
	}
	return s.Repo().Count(ctx, conn, filters)
}

func (s *baseServiceImpl[T]) Save(ctx context.Context, fields *repository.FieldSet) (*T, error) {
	conn, err := s.conn()
	if err != nil {
		return nil, err
	}
	return s.Repo().Create(ctx, conn, s.actor, fields)
}

func (s *baseServiceImpl[T]) SaveMany(ctx context.Context, sets []*repository.FieldSet) (int64, error) {
	var created int64
	err := s.WithTxn(ctx, func(ctx context.Context, conn *database.Conn) error {
		var err error
		created, err = s.Repo().CreateMany(ctx, conn, s.actor, sets)
		return err
	})
	return created, err
}

func (s *baseServiceImpl[T]) Update(ctx context.Context, id any, fields *repository.FieldSet) (*T, error) {
	conn, err := s.conn()
	if err != nil {
		return nil, err
	}
	return s.Repo().Update(ctx, conn, s.actor, id, fields)
}

func (s *baseServiceImpl[T]) UpdateMany(ctx context.Context, ids []any, fields *repository.FieldSet) (int64, error) {
	conn, err := s.conn()
	if err != nil {
		return 0, err
	}
	return s.Repo().UpdateMany(ctx, conn, s.actor, ids, fields)
}

func (s *baseServiceImpl[T]) UpdateByFilter(ctx context.Context, filters types.FilterSet, fields *repository.FieldSet) (int64, error) {
	conn, err := s.conn()
	if err != nil {
		return 0, err
	}
	return s.Repo().UpdateByFilter(ctx, conn, s.actor, filters, fields)
}

func (s *baseServiceImpl[T]) Delete(ctx context.Context, id any) error {
	conn, err := s.conn()
	if err != nil {
		return err
	}
	return s.Repo().Delete(ctx, conn, id)
}

func (s *baseServiceImpl[T]) DeleteMany(ctx context.Context, ids []any) (int64, error) {
	conn, err := s.conn()
	if err != nil {
		return 0, err
	}
	return s.Repo().DeleteMany(ctx, conn, ids)
}

func (s *baseServiceImpl[T]) DeleteByFilter(ctx context.Context, filters types.FilterSet) (int64, error) {
	conn, err := s.conn()
	if err != nil {
		return 0, err
	}
	return s.Repo().DeleteByFilter(ctx, conn, filters)
}

func (s *baseServiceImpl[T]) WithTxn(ctx context.Context, fn func(ctx context.Context, conn *database.Conn) error) error {
	conn, err := database.AcquireConn()
	if err != nil {
		return err
	}
	defer func() { _ = conn.Release(ctx) }()
	return conn.RunInTxn(ctx, func(ctx context.Context) error {
		return fn(ctx, conn)
	})
}
