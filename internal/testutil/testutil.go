// Package testutil holds helpers shared by package tests.
package testutil

import (
	"fmt"
	"strings"
)

// NewTestDSN generates a DSN for a named in-memory SQLite database.
// Databases with distinct names are isolated from each other.
func NewTestDSN(testName string) string {
	name := strings.NewReplacer("/", "_", " ", "_", "#", "_").Replace(testName)
	return fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
}
