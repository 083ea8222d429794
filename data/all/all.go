// Package all registers every database driver the job store supports.
// Entrypoints blank-import it so the registry is populated before
// data.New resolves the configured driver:
//
//	import _ "github.com/ncobase/spacearc/data/all"
package all

import (
	_ "github.com/ncobase/spacearc/data/mysql"
	_ "github.com/ncobase/spacearc/data/postgres"
	_ "github.com/ncobase/spacearc/data/sqlite"
)
