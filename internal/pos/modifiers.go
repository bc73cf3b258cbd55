package pos

import "fmt"

// Modifier is a priced add-on option inside a group.
type Modifier struct {
	ID         string  `json:"id"`
	Name       string  `json:"name"`
	PriceDelta float64 `json:"price_delta"`
	Active     bool    `json:"active"`
}

// ModifierGroup is the named constraint set a modifier belongs to. When
// AllowMultiple is false at most one modifier from the group may be
// selected; when Required is true the selected count must lie in
// [MinSelection, MaxSelection-or-unbounded].
type ModifierGroup struct {
	ID            string     `json:"id"`
	Name          string     `json:"name"`
	Required      bool       `json:"required"`
	AllowMultiple bool       `json:"allow_multiple"`
	MinSelection  int        `json:"min_selection"`
	MaxSelection  *int       `json:"max_selection"`
	Active        bool       `json:"active"`
	Modifiers     []Modifier `json:"modifiers"`
}

// enforceable reports whether the group participates in validation at all:
// inactive groups and groups with no active modifiers are skipped.
func (g *ModifierGroup) enforceable() bool {
	if !g.Active {
		return false
	}
	for i := range g.Modifiers {
		if g.Modifiers[i].Active {
			return true
		}
	}
	return false
}

func (g *ModifierGroup) modifier(id string) *Modifier {
	for i := range g.Modifiers {
		if g.Modifiers[i].ID == id {
			return &g.Modifiers[i]
		}
	}
	return nil
}

// SelectedModifier is an accepted selection carried on a cart line.
type SelectedModifier struct {
	ModifierID string  `json:"modifier_id"`
	Name       string  `json:"name"`
	PriceDelta float64 `json:"price_delta"`
}

// Toggle applies a tentative selection of modifierID to the current
// selections. For single-select groups picking a new modifier replaces any
// sibling already selected from the same group; that replacement is correct
// behavior, not a validation error. Picking an already-selected modifier
// deselects it.
func Toggle(groups []ModifierGroup, selections []SelectedModifier, modifierID string) ([]SelectedModifier, error) {
	group, mod := findModifier(groups, modifierID)
	if mod == nil {
		return selections, &ValidationError{Message: fmt.Sprintf("unknown modifier %s", modifierID)}
	}
	if !mod.Active || !group.Active {
		return selections, &ValidationError{Message: fmt.Sprintf("%s is not available", mod.Name)}
	}

	out := make([]SelectedModifier, 0, len(selections)+1)
	removed := false
	for _, sel := range selections {
		if sel.ModifierID == modifierID {
			// Re-selecting toggles off.
			removed = true
			continue
		}
		if !group.AllowMultiple {
			if sibling := group.modifier(sel.ModifierID); sibling != nil {
				// Exclusive choice: drop the sibling from the same group.
				continue
			}
		}
		out = append(out, sel)
	}

	if !removed {
		out = append(out, SelectedModifier{
			ModifierID: mod.ID,
			Name:       mod.Name,
			PriceDelta: mod.PriceDelta,
		})
	}

	return out, nil
}

// ValidateSelections decides admissibility of a tentative selection set
// before checkout confirmation. It returns the accepted selections or the
// first offending group with a human-readable reason, meant for a single
// toast rather than a batch of errors.
func ValidateSelections(groups []ModifierGroup, selections []SelectedModifier) ([]SelectedModifier, error) {
	accepted := make([]SelectedModifier, 0, len(selections))
	for _, sel := range selections {
		group, mod := findModifier(groups, sel.ModifierID)
		if mod == nil || !mod.Active || !group.Active {
			return nil, &ValidationError{Message: fmt.Sprintf("selection %s is no longer available", sel.Name)}
		}
		accepted = append(accepted, SelectedModifier{
			ModifierID: mod.ID,
			Name:       mod.Name,
			PriceDelta: mod.PriceDelta,
		})
	}

	for i := range groups {
		group := &groups[i]
		if !group.enforceable() {
			continue
		}

		count := 0
		for _, sel := range accepted {
			if group.modifier(sel.ModifierID) != nil {
				count++
			}
		}

		if !group.AllowMultiple && count > 1 {
			return nil, &ValidationError{Message: fmt.Sprintf("%s allows only one choice", group.Name)}
		}

		if group.Required {
			if count < group.MinSelection {
				missing := group.MinSelection - count
				return nil, &ValidationError{Message: fmt.Sprintf("%s requires %d more selection(s)", group.Name, missing)}
			}
			if group.MaxSelection != nil && count > *group.MaxSelection {
				return nil, &ValidationError{Message: fmt.Sprintf("%s allows at most %d selection(s)", group.Name, *group.MaxSelection)}
			}
		}
	}

	return accepted, nil
}

// Surcharge is the total modifier price delta for a line. It is added to
// the line's unit price once, when the line is built, never per validation
// pass.
func Surcharge(selections []SelectedModifier) float64 {
	var total float64
	for _, sel := range selections {
		total += sel.PriceDelta
	}
	return total
}

func findModifier(groups []ModifierGroup, modifierID string) (*ModifierGroup, *Modifier) {
	for i := range groups {
		if mod := groups[i].modifier(modifierID); mod != nil {
			return &groups[i], mod
		}
	}
	return nil, nil
}
