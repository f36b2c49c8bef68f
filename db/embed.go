// Package db embeds the database schema applied on startup.
package db

import _ "embed"

// Schema contains the DDL for all cart service tables and indexes.
//
//go:embed migrations/001_schema.sql
var Schema string
