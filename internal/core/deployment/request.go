package deployment

import (
	"fmt"
	"regexp"
	"strings"
)

// =============================================================================
// Actions
// =============================================================================

// Action is the operation requested by the caller.
type Action string

const (
	ActionDeploy   Action = "deploy"
	ActionRollback Action = "rollback"
)

// ParseAction parses an action name case-insensitively.
func ParseAction(s string) (Action, error) {
	switch Action(strings.ToLower(strings.TrimSpace(s))) {
	case ActionDeploy:
		return ActionDeploy, nil
	case ActionRollback:
		return ActionRollback, nil
	default:
		return "", fmt.Errorf("%w: invalid action %q (want deploy or rollback)", ErrValidation, s)
	}
}

// =============================================================================
// Requests
// =============================================================================

// projectNameRegex matches names Docker Compose accepts as project names.
var projectNameRegex = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]*$`)

// DeployRequest asks for version to be deployed into the next slot.
type DeployRequest struct {
	ProjectName    string
	Pool           Pool
	Version        string
	ExpectedStatus string
}

// Validate checks the request before any state is read.
func (r DeployRequest) Validate() error {
	if err := validateTarget(r.ProjectName, r.Pool); err != nil {
		return err
	}
	if strings.TrimSpace(r.Version) == "" {
		return fmt.Errorf("%w: version is required for deploy", ErrValidation)
	}
	if _, err := ParseStatus(r.ExpectedStatus); err != nil {
		return err
	}
	return nil
}

// RollbackRequest asks for the live pointer to move. An empty TargetVersion
// means the previous live slot.
type RollbackRequest struct {
	ProjectName   string
	Pool          Pool
	TargetVersion string
}

// Validate checks the request before any state is read.
func (r RollbackRequest) Validate() error {
	return validateTarget(r.ProjectName, r.Pool)
}

func validateTarget(projectName string, pool Pool) error {
	if projectName == "" {
		return fmt.Errorf("%w: project name is required", ErrValidation)
	}
	if !projectNameRegex.MatchString(projectName) {
		return fmt.Errorf("%w: project name %q must be lowercase letters, digits, '-' or '_'", ErrValidation, projectName)
	}
	if _, err := NewPool(pool); err != nil {
		return err
	}
	return nil
}
