package checks

// Outcome is the tagged result of one check: the practice was found, was not
// found, or could not be determined from the snapshot.
type Outcome string

const (
	OutcomePresent Outcome = "present"
	OutcomeAbsent  Outcome = "absent"
	OutcomeUnknown Outcome = "unknown"
)

// Result is one check's verdict for one repository.
type Result struct {
	Check   string  `json:"check"`
	Outcome Outcome `json:"outcome"`
	Detail  string  `json:"detail,omitempty"`
}

func Present(name, detail string) Result {
	return Result{Check: name, Outcome: OutcomePresent, Detail: detail}
}

func Absent(name, detail string) Result {
	return Result{Check: name, Outcome: OutcomeAbsent, Detail: detail}
}

func Unknown(name, detail string) Result {
	return Result{Check: name, Outcome: OutcomeUnknown, Detail: detail}
}
