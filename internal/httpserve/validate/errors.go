package validate

import "errors"

// errNoRootOrAlias indicates neither root nor alias is configured for
// the effective location/server, which spec.md §4.3 step 3 maps to 404.
var errNoRootOrAlias = errors.New("validate: no root or alias configured")
