package authz

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAuthorize(t *testing.T) {
	tests := []struct {
		name   string
		grants []string
		action string
		want   bool
	}{
		{"wildcard prefix matches namespace", []string{"Audit*"}, "AuditLog.View", true},
		{"wildcard prefix rejects other namespace", []string{"Audit*"}, "Users.Delete", false},
		{"bare star matches everything", []string{"*"}, "Users.Delete", true},
		{"bare star matches empty action", []string{"*"}, "", true},
		{"empty grant set denies", nil, "AuditLog.View", false},
		{"exact grant matches identical action", []string{"Users.Delete"}, "Users.Delete", true},
		{"exact grant rejects prefix extension", []string{"Users.Delete"}, "Users.DeleteAll", false},
		{"wildcard requires full prefix", []string{"AuditLog.View*"}, "AuditLog", false},
		{"first match short-circuits across set", []string{"Boards.*", "Audit*"}, "AuditLog.View", true},
		{"action shorter than grant prefix", []string{"AuditLogExport*"}, "Audit", false},
		{"literal star action matches star grant exactly", []string{"*"}, "*", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Authorize(tt.grants, tt.action))
		})
	}
}
