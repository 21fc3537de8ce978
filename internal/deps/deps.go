package deps

// Requirement names one external tool and the command configured for it.
type Requirement struct {
	Name        string
	Command     string
	Description string
	Optional    bool
}

// Status is the resolution outcome for one requirement.
type Status struct {
	Name        string
	Command     string
	Description string
	Detail      string
	Optional    bool
	Available   bool
}

// CheckBinaries resolves every requirement to a concrete binary status.
func CheckBinaries(requirements []Requirement) []Status {
	statuses := make([]Status, len(requirements))
	for i, req := range requirements {
		st := Resolve(req.Name, req.Command, req.Description)
		st.Optional = req.Optional
		statuses[i] = st
	}
	return statuses
}
