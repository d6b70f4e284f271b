// Package models holds the GORM persistence models backing the ledger
// tables. Domain entities stay free of ORM tags; mappers in the persistence
// package translate between the two representations.
//
// base.go defines the shared TenantAggregateModel embedding, ledger.go maps
// invoices, payments, allocations and
// account aggregates, and outbox.go maps the transactional outbox table.
package models
