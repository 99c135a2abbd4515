package workflow

import (
	"fmt"

	"github.com/balmohsen/backend/pkg/models"
)

// StageSequence is the ordered list of approver roles a form type routes
// through. It is the single source of truth for routing: the engine indexes
// into it instead of branching on role names.
type StageSequence []models.Role

// First returns the initial stage.
func (s StageSequence) First() models.Role {
	return s[0]
}

// Contains reports whether role is a stage of this sequence.
func (s StageSequence) Contains(role models.Role) bool {
	for _, stage := range s {
		if stage == role {
			return true
		}
	}
	return false
}

// Next returns the stage after role. ok is false when role is the final
// stage or not part of the sequence.
func (s StageSequence) Next(role models.Role) (next models.Role, ok bool) {
	for i, stage := range s {
		if stage == role && i+1 < len(s) {
			return s[i+1], true
		}
	}
	return "", false
}

// IsLast reports whether role is the final stage.
func (s StageSequence) IsLast(role models.Role) bool {
	return len(s) > 0 && s[len(s)-1] == role
}

// Routes maps each form type to its approval stage sequence.
type Routes map[models.FormType]StageSequence

// DefaultRoutes returns the built-in form types and their stage sequences.
func DefaultRoutes() Routes {
	return Routes{
		models.FormTypeCOC:           {models.RoleFinance, models.RoleManager, models.RoleVP},
		models.FormTypeCertification: {models.RoleManager, models.RoleFinance, models.RoleVP, models.RoleAdministrator},
	}
}

// RoutesFromConfig builds Routes from the raw configuration mapping. An
// empty mapping yields the defaults; configured form types replace the
// default sequence for that type.
func RoutesFromConfig(raw map[string][]string) Routes {
	routes := DefaultRoutes()
	for formType, stages := range raw {
		seq := make(StageSequence, 0, len(stages))
		for _, stage := range stages {
			seq = append(seq, models.Role(stage))
		}
		routes[models.FormType(formType)] = seq
	}
	return routes
}

// Validate checks every sequence is non-empty, holds only assignable roles
// and has no duplicate stages.
func (r Routes) Validate() error {
	for formType, seq := range r {
		if len(seq) == 0 {
			return fmt.Errorf("form type %q has an empty stage sequence", formType)
		}
		seen := make(map[models.Role]bool, len(seq))
		for _, stage := range seq {
			if !stage.IsValid() {
				return fmt.Errorf("form type %q references unknown role %q", formType, stage)
			}
			if seen[stage] {
				return fmt.Errorf("form type %q lists role %q twice", formType, stage)
			}
			seen[stage] = true
		}
	}
	return nil
}
