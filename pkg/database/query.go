package database

// DBQuery is a named statement with optional dialect variants
type DBQuery struct {
	ID string
	// Query is used when no variant exists for the driver
	Query       string
	SQLiteQuery string
	MySQLQuery  string
}

// GetQuery returns the statement for driver
func (q DBQuery) GetQuery(driver string) string {
	switch driver {
	case DriverSQLite, "sqlite":
		if q.SQLiteQuery != "" {
			return q.SQLiteQuery
		}
	case DriverMySQL:
		if q.MySQLQuery != "" {
			return q.MySQLQuery
		}
	}
	return q.Query
}
