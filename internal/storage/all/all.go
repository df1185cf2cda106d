// Package all registers every SQL backend with the storage registry.
package all

import (
	_ "phenoetl/internal/storage/mssql"
	_ "phenoetl/internal/storage/postgres"
	_ "phenoetl/internal/storage/sqlite"
)
