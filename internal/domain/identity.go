package domain

import "regexp"

// identityPattern accepts the two well-formed health-identifier shapes: the
// 14-digit hyphenated number (NN-NNNN-NNNN-NNNN) and the sandbox address
// (local-part@sbx). Anything else is malformed and quarantines the record;
// malformedness is recoverable by re-submission, so it never purges.
var identityPattern = regexp.MustCompile(`^([0-9]{2}-[0-9]{4}-[0-9]{4}-[0-9]{4}|[a-zA-Z0-9.]+@sbx)$`)

// ValidIdentityID reports whether id is a well-formed health identifier.
// The empty string is not well-formed; callers distinguish missing from
// malformed before asking.
func ValidIdentityID(id string) bool {
	return identityPattern.MatchString(id)
}
