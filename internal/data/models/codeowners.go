package models

// CodeownersPresence records whether a CODEOWNERS file exists on the default
// branch in one or both supported locations:
// - CODEOWNERS
// - .github/CODEOWNERS
//
// Contents are not validated.
type CodeownersPresence struct {
	Root   bool `json:"root"`
	GitHub bool `json:"github"`
}
