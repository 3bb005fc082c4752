package access

import "testing"

func TestAllowsDefaultDeny(t *testing.T) {
	if Allows(RoleStudent, ResourceCertificate, ActionApprove) {
		t.Fatalf("students must not approve certificates")
	}
	if Allows(RoleFaculty, ResourceFee, ActionRead) {
		t.Fatalf("faculty have no fee grant")
	}
	if Allows(RoleStudent, Resource("unknown"), ActionRead) {
		t.Fatalf("unknown resource must deny")
	}
	if Allows(Role("superuser"), ResourceCourse, ActionRead) {
		t.Fatalf("unknown role must deny")
	}
}

func TestAllowsGrants(t *testing.T) {
	cases := []struct {
		role     Role
		resource Resource
		action   Action
	}{
		{RoleStudent, ResourceCertificate, ActionCreate},
		{RoleStudent, ResourceFee, ActionPay},
		{RoleFaculty, ResourceAttendance, ActionUpdate},
		{RoleHOD, ResourceCourse, ActionDelete},
		{RolePrincipal, ResourceCertificate, ActionApprove},
		{RoleAdmin, ResourceCertificate, ActionIssue},
		{RoleAdmin, ResourceAuditFeed, ActionRead},
	}
	for _, tc := range cases {
		if !Allows(tc.role, tc.resource, tc.action) {
			t.Fatalf("expected %s to %s %s", tc.role, tc.action, tc.resource)
		}
	}
}

func TestAuditFeedIsAdminOnly(t *testing.T) {
	for _, role := range []Role{RoleStudent, RoleFaculty, RoleHOD, RolePrincipal} {
		if Allows(role, ResourceAuditFeed, ActionRead) {
			t.Fatalf("%s must not read the audit feed", role)
		}
	}
}
