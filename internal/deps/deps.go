package deps

import (
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// Requirement defines an external binary keepsake runs.
type Requirement struct {
	Name        string
	Command     string
	Description string
	Optional    bool
}

// Status reports the availability of a dependency. Path is the resolved
// executable when Available is set.
type Status struct {
	Name        string
	Command     string
	Description string
	Optional    bool
	Available   bool
	Path        string
	Detail      string
}

// CheckBinaries resolves every requirement. Bare names are looked up on PATH;
// commands containing a separator are checked in place.
func CheckBinaries(requirements []Requirement) []Status {
	results := make([]Status, 0, len(requirements))
	for _, req := range requirements {
		results = append(results, checkBinary(req))
	}
	return results
}

func checkBinary(req Requirement) Status {
	status := Status{
		Name:        req.Name,
		Command:     strings.TrimSpace(req.Command),
		Description: strings.TrimSpace(req.Description),
		Optional:    req.Optional,
	}
	if status.Command == "" {
		status.Detail = "command not configured"
		return status
	}
	resolved, err := exec.LookPath(status.Command)
	if err == nil {
		status.Available = true
		status.Path = resolved
		return status
	}
	if info, statErr := os.Stat(status.Command); statErr == nil && !isExecutable(info) {
		status.Detail = fmt.Sprintf("binary %q is not executable", status.Command)
		return status
	}
	status.Detail = fmt.Sprintf("binary %q not found", status.Command)
	return status
}
