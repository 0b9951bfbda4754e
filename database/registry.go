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
	"fmt"
	"sort"
	"sync"

	"github.com/tomoncle/mole/types"
)

var defaultRegistry = newEntityRegistry()

// Entity pairs a descriptor with the Bun model struct its rows scan into.
// Instance should return a pointer to a fresh model value; Priority controls
// table creation order during migrations (lower values first).
type Entity interface {
	Descriptor() types.Descriptor
	Instance() interface{}
	Priority() int
}

// EntityRegistry stores registered entities and exposes them in a
// deterministic order.
type EntityRegistry interface {
	Register(e Entity) error
	Entities() []Entity
	Lookup(table string) (Entity, bool)
}

type entityRegistry struct {
	entities []Entity
	byTable  map[string]Entity
	mutex    sync.RWMutex
}

func newEntityRegistry() EntityRegistry {
	return &entityRegistry{byTable: make(map[string]Entity)}
}

func (r *entityRegistry) Register(e Entity) error {
	if err := types.ValidateDescriptor(e.Descriptor()); err != nil {
		return err
	}
	r.mutex.Lock()
	defer r.mutex.Unlock()
	table := e.Descriptor().Table()
	if _, dup := r.byTable[table]; dup {
		return fmt.Errorf("entity for table %q already registered", table)
	}
	r.entities = append(r.entities, e)
	r.byTable[table] = e
	return nil
}

func (r *entityRegistry) Entities() []Entity {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	result := make([]Entity, len(r.entities))
	copy(result, r.entities)
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].Priority() < result[j].Priority()
	})
	return result
}

func (r *entityRegistry) Lookup(table string) (Entity, bool) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	e, ok := r.byTable[table]
	return e, ok
}

// EntityAdapter wraps a descriptor, model instance, and priority into an
// Entity without a dedicated type per entity kind.
type EntityAdapter struct {
	descriptor types.Descriptor
	instance   interface{}
	priority   int
}

// NewEntityAdapter builds an Entity from its parts.
func NewEntityAdapter(d types.Descriptor, instance interface{}, priority int) *EntityAdapter {
	return &EntityAdapter{descriptor: d, instance: instance, priority: priority}
}

func (a *EntityAdapter) Descriptor() types.Descriptor { return a.descriptor }
func (a *EntityAdapter) Instance() interface{}        { return a.instance }
func (a *EntityAdapter) Priority() int                { return a.priority }

// RegisterEntity adds an entity to the default registry.
func RegisterEntity(e Entity) error {
	return defaultRegistry.Register(e)
}

// RegisteredEntities returns all entities from the default registry sorted by
// ascending priority.
func RegisteredEntities() []Entity {
	return defaultRegistry.Entities()
}

// LookupEntity finds a registered entity by table name.
func LookupEntity(table string) (Entity, bool) {
	return defaultRegistry.Lookup(table)
}

// RegisteredModelInstances returns the model instances of all registered
// entities, in priority order, for bun.DB.RegisterModel.
func RegisteredModelInstances() []interface{} {
	entities := RegisteredEntities()
	instances := make([]interface{}, len(entities))
	for i, e := range entities {
		instances[i] = e.Instance()
	}
	return instances
}
