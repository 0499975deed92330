package rbac

// Simple default policy. quiz:manage is the elevated capability that
// unmasks correct-answer metadata.
var RolePermissions = map[string][]string{
	"student": {
		"quiz:view",
		"attempt:create",
		"attempt:submit",
		"attempt:view-own",
	},
	"teacher": {
		"quiz:view",
		"quiz:manage",
		"attempt:view-all",
	},
	"admin": {
		"*", // everything
	},
}
