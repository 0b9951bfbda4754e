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

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/uptrace/bun"
)

// MigrationError wraps a failure while preparing or applying schema changes.
// The underlying backend error passes through unchanged in substance.
type MigrationError struct {
	Version string
	Err     error
}

func (e *MigrationError) Error() string {
	if e.Version == "" {
		return fmt.Sprintf("migration failed: %v", e.Err)
	}
	return fmt.Sprintf("migration %s failed: %v", e.Version, e.Err)
}

func (e *MigrationError) Unwrap() error { return e.Err }

// Migration is an applied migration record stored in the tracking table.
type Migration struct {
	bun.BaseModel `bun:"table:schema_migrations"`

	Version     string    `bun:"version,pk"`
	Name        string    `bun:"name"`
	AppliedAt   time.Time `bun:"applied_at"`
	Description string    `bun:"description"`
}

// MigrationFunc is a migration step executed within a transaction.
type MigrationFunc func(ctx context.Context, db bun.IDB) error

// MigrationItem describes a single migration version with up/down functions.
type MigrationItem struct {
	Version     string
	Name        string
	Description string
	Up          MigrationFunc
	Down        MigrationFunc
}

var (
	registeredMigrations   []MigrationItem
	registeredMigrationsMu sync.Mutex
)

// RegisterMigration adds a migration item to the set RunMigrations applies.
func RegisterMigration(item MigrationItem) {
	registeredMigrationsMu.Lock()
	defer registeredMigrationsMu.Unlock()
	registeredMigrations = append(registeredMigrations, item)
}

func allMigrations() []MigrationItem {
	registeredMigrationsMu.Lock()
	defer registeredMigrationsMu.Unlock()
	items := make([]MigrationItem, len(registeredMigrations))
	copy(items, registeredMigrations)
	return items
}

// MigrationManager applies schema migrations: tables for every registered
// entity first, then the registered migration items in version order.
type MigrationManager struct {
	db     *bun.DB
	logger Logger
}

// NewMigrationManager constructs a MigrationManager on the given Bun database.
func NewMigrationManager(db *bun.DB, logger Logger) *MigrationManager {
	if logger == nil {
		logger = GetLogger()
	}
	return &MigrationManager{db: db, logger: logger}
}

// RunMigrations creates the tracking table if needed, creates entity tables
// for every registered descriptor, and executes pending migrations in
// ascending version order, each inside its own transaction.
func (mm *MigrationManager) RunMigrations(ctx context.Context) error {
	if mm.db == nil {
		return &MigrationError{Err: errors.New("database not initialized")}
	}

	if _, err := mm.db.NewCreateTable().Model((*Migration)(nil)).IfNotExists().Exec(ctx); err != nil {
		return &MigrationError{Err: err}
	}

	if err := mm.createEntityTables(ctx); err != nil {
		return err
	}

	items := allMigrations()
	sort.Slice(items, func(i, j int) bool { return items[i].Version < items[j].Version })

	for _, item := range items {
		if err := mm.runMigration(ctx, item); err != nil {
			return err
		}
	}

	mm.logger.Info("Database migrations completed")
	return nil
}

func (mm *MigrationManager) createEntityTables(ctx context.Context) error {
	for _, e := range RegisteredEntities() {
		q := mm.db.NewCreateTable().Model(e.Instance()).IfNotExists()
		if schema := e.Descriptor().Schema(); schema != "" && schema != "public" {
			q = q.ModelTableExpr("?.?", bun.Ident(schema), bun.Ident(e.Descriptor().Table()))
		}
		if _, err := q.Exec(ctx); err != nil {
			return &MigrationError{Err: fmt.Errorf("create table %s: %w", e.Descriptor().Table(), err)}
		}
	}
	return nil
}

func (mm *MigrationManager) runMigration(ctx context.Context, item MigrationItem) error {
	applied, err := mm.isApplied(ctx, item.Version)
	if err != nil {
		return &MigrationError{Version: item.Version, Err: err}
	}
	if applied {
		return nil
	}

	err = mm.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if item.Up != nil {
			if err := item.Up(ctx, tx); err != nil {
				return err
			}
		}
		record := &Migration{
			Version:     item.Version,
			Name:        item.Name,
			AppliedAt:   time.Now().UTC(),
			Description: item.Description,
		}
		_, err := tx.NewInsert().Model(record).Exec(ctx)
		return err
	})
	if err != nil {
		return &MigrationError{Version: item.Version, Err: err}
	}

	mm.logger.Info("Applied migration", "version", item.Version, "name", item.Name)
	return nil
}

// Rollback reverts the most recently applied migration using its Down
// function, when one is registered.
func (mm *MigrationManager) Rollback(ctx context.Context) error {
	var latest Migration
	err := mm.db.NewSelect().Model(&latest).OrderExpr("version DESC").Limit(1).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		return &MigrationError{Err: err}
	}

	var item *MigrationItem
	for _, m := range allMigrations() {
		if m.Version == latest.Version {
			item = &m
			break
		}
	}
	if item == nil || item.Down == nil {
		return &MigrationError{Version: latest.Version, Err: errors.New("no down migration registered")}
	}

	err = mm.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if err := item.Down(ctx, tx); err != nil {
			return err
		}
		_, err := tx.NewDelete().Model((*Migration)(nil)).Where("version = ?", latest.Version).Exec(ctx)
		return err
	})
	if err != nil {
		return &MigrationError{Version: latest.Version, Err: err}
	}

	mm.logger.Info("Rolled back migration", "version", latest.Version)
	return nil
}

func (mm *MigrationManager) isApplied(ctx context.Context, version string) (bool, error) {
	n, err := mm.db.NewSelect().Model((*Migration)(nil)).Where("version = ?", version).Count(ctx)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
