package pipeline

// ReportFile is one candidate report found under the input root.
type ReportFile struct {
	Path string
	Dir  string
}

// Outcome classifies one report file.
type Outcome int

const (
	OutcomeValid Outcome = iota
	OutcomeEmpty
	OutcomeMalformed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeValid:
		return "valid"
	case OutcomeEmpty:
		return "empty"
	case OutcomeMalformed:
		return "malformed"
	default:
		return "unknown"
	}
}

// Classification is the validator's verdict for one file. Reason holds the
// parse or read error for malformed files.
type Classification struct {
	File    ReportFile
	Outcome Outcome
	Reason  string
}

// ValidationSummary is the outcome of validating a file set.
type ValidationSummary struct {
	Classifications []Classification
	Valid           int
	Empty           int
	Malformed       int

	// Globs holds one evaluation glob per directory containing at least one
	// valid file, sorted.
	Globs []string
}

// Rejected returns the paths of the empty and malformed files, in
// classification order.
func (s ValidationSummary) Rejected() []string {
	var out []string
	for _, c := range s.Classifications {
		if c.Outcome != OutcomeValid {
			out = append(out, c.File.Path)
		}
	}
	return out
}

// Warnings is the number of files that were not valid.
func (s ValidationSummary) Warnings() int {
	return s.Empty + s.Malformed
}
