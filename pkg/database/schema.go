package database

import (
	"database/sql"
	"fmt"
)

// SchemaValidator verifies a deployed database against the structure the
// code expects. It is separate from the migration system so deployment
// checks can run without mutating anything.
type SchemaValidator struct {
	db *sql.DB
}

// NewSchemaValidator creates a new schema validator.
func NewSchemaValidator(db *sql.DB) *SchemaValidator {
	return &SchemaValidator{db: db}
}

// ValidateTablesExist verifies that all required tables exist.
func (v *SchemaValidator) ValidateTablesExist() error {
	requiredTables := map[string]string{
		"live_sessions":     "singleton live-class record",
		"users":             "account storage",
		"banners":           "carousel images",
		"announcements":     "notices",
		"payments":          "fee submissions",
		"materials":         "study materials",
		"schema_migrations": "migration tracking",
	}

	for table, description := range requiredTables {
		exists, err := v.tableExists(table)
		if err != nil {
			return fmt.Errorf("error checking table %s (%s): %w", table, description, err)
		}
		if !exists {
			return fmt.Errorf("required table %s (%s) does not exist", table, description)
		}
	}

	return nil
}

// ValidateTableStructure verifies column structure for the tables whose
// shape the Go structs depend on.
func (v *SchemaValidator) ValidateTableStructure() error {
	liveSessionColumns := map[string]string{
		"id":               "TEXT",
		"meeting_id":       "TEXT",
		"is_active":        "INTEGER",
		"invited_students": "TEXT",
		"updated_at":       "DATETIME",
	}
	if err := v.validateColumns("live_sessions", liveSessionColumns); err != nil {
		return fmt.Errorf("live_sessions table structure invalid: %w", err)
	}

	userColumns := map[string]string{
		"id":         "TEXT",
		"name":       "TEXT",
		"phone":      "TEXT",
		"password":   "TEXT",
		"role":       "TEXT",
		"created_at": "DATETIME",
	}
	if err := v.validateColumns("users", userColumns); err != nil {
		return fmt.Errorf("users table structure invalid: %w", err)
	}

	return nil
}

// tableExists checks if a table exists.
func (v *SchemaValidator) tableExists(tableName string) (bool, error) {
	var count int
	err := v.db.QueryRow(
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?", tableName,
	).Scan(&count)
	return count > 0, err
}

// validateColumns checks that a table has the expected columns and types.
func (v *SchemaValidator) validateColumns(tableName string, expected map[string]string) error {
	rows, err := v.db.Query(fmt.Sprintf("PRAGMA table_info(%s)", tableName))
	if err != nil {
		return fmt.Errorf("failed to query table info: %w", err)
	}
	defer func() { _ = rows.Close() }()

	actual := make(map[string]string)
	for rows.Next() {
		var cid int
		var name, colType string
		var notNull, pk int
		var defaultValue sql.NullString

		if err := rows.Scan(&cid, &name, &colType, &notNull, &defaultValue, &pk); err != nil {
			return fmt.Errorf("failed to scan column info: %w", err)
		}
		actual[name] = colType
	}
	if err := rows.Err(); err != nil {
		return err
	}

	for column, expectedType := range expected {
		actualType, exists := actual[column]
		if !exists {
			return fmt.Errorf("missing column %s", column)
		}
		if actualType != expectedType {
			return fmt.Errorf("column %s has type %s, expected %s", column, actualType, expectedType)
		}
	}

	return nil
}
