package vigil

import "github.com/xraph/vigil/id"

// ID is the identifier type for entities minted by vigil itself.
type ID = id.ID
