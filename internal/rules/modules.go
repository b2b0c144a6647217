package rules

const (
	// ModuleRepository groups repository-level hygiene and exposure rules.
	ModuleRepository = "Audit.Repository"

	// ModuleBranchProtection groups default-branch protection rules.
	ModuleBranchProtection = "Audit.BranchProtection"
)

// DefaultModules is the module set evaluated when none is configured.
func DefaultModules() []string {
	return []string{ModuleRepository, ModuleBranchProtection}
}
