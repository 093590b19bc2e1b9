// Package storage persists owners (with pets and tasks), generated plans,
// an audit trail and the notification dedup table.
//
// Drivers: "file" (JSON documents under a directory), "sqlite" and
// "postgres". They share one Store contract and, for the SQL drivers, one
// schema.
package storage
