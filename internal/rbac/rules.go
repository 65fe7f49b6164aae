package rbac

const (
	RoleInstructor = "instructor"
	RoleStudent    = "student"
	RoleAdmin      = "admin"
)

// Default policy. Students only take quizzes; everything that changes
// uploads or questions belongs to instructors.
var RolePermissions = map[string][]string{
	RoleStudent: {
		"question:view",
		"question:check",
	},
	RoleInstructor: {
		"upload:*",
		"course:delete_uploads",
		"question:*",
		"image:upload",
	},
	RoleAdmin: {
		"*",
	},
}
