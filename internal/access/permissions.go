package access

// Resource identifies a class of portal records subject to authorization.
type Resource string

const (
	ResourceCourse      Resource = "course"
	ResourceAttendance  Resource = "attendance"
	ResourceFee         Resource = "fee"
	ResourceCertificate Resource = "certificate_request"
	ResourceUser        Resource = "user"
	ResourceDepartment  Resource = "department"
	ResourceAuditFeed   Resource = "audit_feed"
)

// Action is a coarse capability verb checked against the permission table.
type Action string

const (
	ActionCreate  Action = "create"
	ActionRead    Action = "read"
	ActionUpdate  Action = "update"
	ActionDelete  Action = "delete"
	ActionApprove Action = "approve"
	ActionReject  Action = "reject"
	ActionIssue   Action = "issue"
	ActionPay     Action = "pay"
)

// permissionGrants is the source-of-truth policy: (role, resource) -> actions.
// Role-level only; instance-level scoping is the Guard's job. Both gates are
// required for every resource operation, in that order.
var permissionGrants = map[Role]map[Resource][]Action{
	RoleStudent: {
		ResourceCourse:      {ActionRead},
		ResourceAttendance:  {ActionRead},
		ResourceFee:         {ActionRead, ActionPay},
		ResourceCertificate: {ActionCreate, ActionRead},
	},
	RoleFaculty: {
		ResourceCourse:      {ActionCreate, ActionRead, ActionUpdate},
		ResourceAttendance:  {ActionCreate, ActionRead, ActionUpdate},
		ResourceCertificate: {ActionRead, ActionApprove, ActionReject},
		ResourceUser:        {ActionRead},
	},
	RoleHOD: {
		ResourceCourse:      {ActionCreate, ActionRead, ActionUpdate, ActionDelete},
		ResourceAttendance:  {ActionCreate, ActionRead, ActionUpdate},
		ResourceCertificate: {ActionRead, ActionApprove, ActionReject},
		ResourceUser:        {ActionRead},
		ResourceDepartment:  {ActionRead, ActionUpdate},
	},
	RolePrincipal: {
		ResourceCourse:      {ActionRead},
		ResourceAttendance:  {ActionRead},
		ResourceFee:         {ActionRead},
		ResourceCertificate: {ActionRead, ActionApprove, ActionReject},
		ResourceUser:        {ActionRead},
		ResourceDepartment:  {ActionRead},
	},
	RoleAdmin: {
		ResourceCourse:      {ActionCreate, ActionRead, ActionUpdate, ActionDelete},
		ResourceAttendance:  {ActionCreate, ActionRead, ActionUpdate, ActionDelete},
		ResourceFee:         {ActionCreate, ActionRead, ActionUpdate},
		ResourceCertificate: {ActionRead, ActionApprove, ActionReject, ActionIssue},
		ResourceUser:        {ActionCreate, ActionRead, ActionUpdate, ActionDelete},
		ResourceDepartment:  {ActionCreate, ActionRead, ActionUpdate, ActionDelete},
		ResourceAuditFeed:   {ActionRead},
	},
}

// permissionTable is the flattened read-only lookup built once at process start.
var permissionTable = buildPermissionTable()

func buildPermissionTable() map[Role]map[Resource]map[Action]struct{} {
	table := make(map[Role]map[Resource]map[Action]struct{}, len(permissionGrants))
	for role, grants := range permissionGrants {
		byResource := make(map[Resource]map[Action]struct{}, len(grants))
		for resource, actions := range grants {
			set := make(map[Action]struct{}, len(actions))
			for _, a := range actions {
				set[a] = struct{}{}
			}
			byResource[resource] = set
		}
		table[role] = byResource
	}
	return table
}

// Allows reports whether the role may in principle perform action on the
// resource type. Unknown pairs are denied.
func Allows(role Role, resource Resource, action Action) bool {
	byResource, ok := permissionTable[role]
	if !ok {
		return false
	}
	actions, ok := byResource[resource]
	if !ok {
		return false
	}
	_, ok = actions[action]
	return ok
}
