package deps

import (
	"fmt"
	"os/exec"
	"strings"
)

// Requirement names an external tool and how scenecut depends on it.
type Requirement struct {
	Name        string
	Command     string
	Description string
	// Optional tools only degrade a feature when missing.
	Optional bool
}

// Status is the resolved availability of one Requirement.
type Status struct {
	Name        string `json:"name"`
	Command     string `json:"command"`
	Description string `json:"description,omitempty"`
	Optional    bool   `json:"optional"`
	Available   bool   `json:"available"`
	Detail      string `json:"detail,omitempty"`
}

// CheckBinaries resolves every requirement against PATH.
func CheckBinaries(requirements []Requirement) []Status {
	results := make([]Status, 0, len(requirements))
	for _, req := range requirements {
		results = append(results, lookup(req))
	}
	return results
}

func lookup(req Requirement) Status {
	status := Status{
		Name:        req.Name,
		Command:     strings.TrimSpace(req.Command),
		Description: strings.TrimSpace(req.Description),
		Optional:    req.Optional,
	}
	switch _, err := exec.LookPath(status.Command); {
	case status.Command == "":
		status.Detail = "command not configured"
	case err != nil:
		status.Detail = fmt.Sprintf("binary %q not found", status.Command)
	default:
		status.Available = true
	}
	return status
}
