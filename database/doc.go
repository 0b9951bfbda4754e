// Package database provides connection management, migrations, the
// transactional connection wrapper with its explicit state machine,
// driver error classification, entity registration, configuration types,
// logging, health checks, and related utilities built on top of Bun.
package database
