// Package migrations embeds the versioned schema for each supported driver.
package migrations

import "embed"

// FS holds sqlite/*.sql and mysql/*.sql
//
//go:embed sqlite/*.sql mysql/*.sql
var FS embed.FS

// Dir returns the directory in FS holding the driver's migrations
func Dir(driver string) string {
	if driver == "mysql" {
		return "mysql"
	}
	return "sqlite"
}
