// Package db embeds the catalog database schema.
package db

import _ "embed"

// Schema holds the idempotent DDL for users, access tokens, products, the
// product_user ownership join and the blobs table.
//
//go:embed migrations/001_schema.sql
var Schema string
