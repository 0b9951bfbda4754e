// Package repository provides a metadata-driven repository built on Bun:
// entity descriptors declare tables and columns once, and a generic engine
// derives create, read, list, update, and delete statements from them,
// with filter translation, owner/timestamp field injection, and offset
// pagination.
package repository
