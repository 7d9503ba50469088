// Package authz evaluates administrative permission grants.
//
// A grant is an action string, optionally ending in a wildcard. Grants are
// immutable once issued; an admin's grant set is evaluated on every
// privileged request.
package authz

import "strings"

// Authorize reports whether any grant matches the requested action.
//
// A grant ending in "*" matches every action sharing its prefix (the grant
// with the trailing "*" stripped), so "Audit*" covers "AuditLog.View" and the
// bare "*" covers everything. A grant without "*" matches only the identical
// action string. The first match wins; an empty grant set always denies.
func Authorize(grants []string, action string) bool {
	for _, grant := range grants {
		if strings.HasSuffix(grant, "*") {
			if strings.HasPrefix(action, strings.TrimSuffix(grant, "*")) {
				return true
			}
		}
		if action == grant {
			return true
		}
	}
	return false
}
