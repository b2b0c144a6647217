package data

// DependencyKey names one section of an exported report. Rules declare the
// sections they read; the exporter fetches one section per key.
type DependencyKey string

const (
	// DepRepoMetadata is the repository object as returned by the platform API.
	DepRepoMetadata DependencyKey = "repo.metadata"

	// DepRepoDefaultBranchClassicProtection is the classic branch protection
	// object for the default branch. A JSON null means the branch has no
	// classic protection.
	DepRepoDefaultBranchClassicProtection DependencyKey = "repo.default_branch_protection"

	// DepRepoDefaultBranchCodeowners records where a CODEOWNERS file exists
	// on the default branch:
	// - CODEOWNERS
	// - .github/CODEOWNERS
	DepRepoDefaultBranchCodeowners DependencyKey = "repo.default_branch_codeowners"
)

// Keys lists every known section in fetch order.
func Keys() []DependencyKey {
	return []DependencyKey{
		DepRepoMetadata,
		DepRepoDefaultBranchClassicProtection,
		DepRepoDefaultBranchCodeowners,
	}
}

// Priority returns the fetch priority for a dependency key (lower is higher priority).
func Priority(key DependencyKey) int {
	switch key {
	case DepRepoMetadata:
		return 0
	case DepRepoDefaultBranchClassicProtection:
		return 1
	default:
		return 2
	}
}
