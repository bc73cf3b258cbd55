package pos

import (
	"testing"
)

func intPtr(v int) *int {
	return &v
}

func testGroups() []ModifierGroup {
	return []ModifierGroup{
		{
			ID:            "grp-size",
			Name:          "Size",
			Required:      true,
			AllowMultiple: false,
			MinSelection:  1,
			MaxSelection:  intPtr(1),
			Active:        true,
			Modifiers: []Modifier{
				{ID: "mod-half", Name: "Half", PriceDelta: 0, Active: true},
				{ID: "mod-full", Name: "Full", PriceDelta: 40, Active: true},
			},
		},
		{
			ID:            "grp-addons",
			Name:          "Add-ons",
			Required:      false,
			AllowMultiple: true,
			Active:        true,
			Modifiers: []Modifier{
				{ID: "mod-butter", Name: "Extra Butter", PriceDelta: 20, Active: true},
				{ID: "mod-cheese", Name: "Cheese", PriceDelta: 30, Active: true},
				{ID: "mod-paneer", Name: "Paneer", PriceDelta: 50, Active: false},
			},
		},
	}
}

func TestToggleSingleSelectReplaces(t *testing.T) {
	groups := testGroups()

	selections, err := Toggle(groups, nil, "mod-half")
	if err != nil {
		t.Fatalf("Toggle() error = %v", err)
	}
	if len(selections) != 1 || selections[0].ModifierID != "mod-half" {
		t.Fatalf("Toggle() selections = %+v, want single mod-half", selections)
	}

	// Picking the sibling replaces, it does not error and does not stack.
	selections, err = Toggle(groups, selections, "mod-full")
	if err != nil {
		t.Fatalf("Toggle() error = %v", err)
	}
	if len(selections) != 1 {
		t.Fatalf("Toggle() selections = %+v, want one entry after replacement", selections)
	}
	if selections[0].ModifierID != "mod-full" {
		t.Errorf("Toggle() kept %q, want mod-full", selections[0].ModifierID)
	}
	if selections[0].PriceDelta != 40 {
		t.Errorf("Toggle() price delta = %v, want 40", selections[0].PriceDelta)
	}
}

func TestToggleDeselects(t *testing.T) {
	groups := testGroups()

	selections, err := Toggle(groups, nil, "mod-butter")
	if err != nil {
		t.Fatalf("Toggle() error = %v", err)
	}

	selections, err = Toggle(groups, selections, "mod-butter")
	if err != nil {
		t.Fatalf("Toggle() error = %v", err)
	}
	if len(selections) != 0 {
		t.Errorf("Toggle() selections = %+v, want empty after re-select", selections)
	}
}

func TestToggleMultiSelectStacks(t *testing.T) {
	groups := testGroups()

	selections, err := Toggle(groups, nil, "mod-butter")
	if err != nil {
		t.Fatalf("Toggle() error = %v", err)
	}
	selections, err = Toggle(groups, selections, "mod-cheese")
	if err != nil {
		t.Fatalf("Toggle() error = %v", err)
	}
	if len(selections) != 2 {
		t.Errorf("Toggle() selections = %+v, want both add-ons", selections)
	}
}

func TestToggleRejectsUnavailable(t *testing.T) {
	groups := testGroups()

	tests := []struct {
		name       string
		modifierID string
	}{
		{name: "unknownModifier", modifierID: "mod-ghost"},
		{name: "inactiveModifier", modifierID: "mod-paneer"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Toggle(groups, nil, tt.modifierID)
			if !IsValidationError(err) {
				t.Errorf("Toggle(%q) error = %v, want validation error", tt.modifierID, err)
			}
		})
	}
}

func TestValidateSelections(t *testing.T) {
	groups := testGroups()

	tests := []struct {
		name       string
		selections []SelectedModifier
		wantErr    bool
	}{
		{
			name:       "requiredGroupSatisfied",
			selections: []SelectedModifier{{ModifierID: "mod-half"}},
			wantErr:    false,
		},
		{
			name:       "requiredGroupMissing",
			selections: nil,
			wantErr:    true,
		},
		{
			name: "twoInSingleSelectGroup",
			selections: []SelectedModifier{
				{ModifierID: "mod-half"},
				{ModifierID: "mod-full"},
			},
			wantErr: true,
		},
		{
			name: "inactiveSelectionRejected",
			selections: []SelectedModifier{
				{ModifierID: "mod-half"},
				{ModifierID: "mod-paneer", Name: "Paneer"},
			},
			wantErr: true,
		},
		{
			name: "optionalGroupUnbounded",
			selections: []SelectedModifier{
				{ModifierID: "mod-half"},
				{ModifierID: "mod-butter"},
				{ModifierID: "mod-cheese"},
			},
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			accepted, err := ValidateSelections(groups, tt.selections)
			if tt.wantErr {
				if !IsValidationError(err) {
					t.Errorf("ValidateSelections() error = %v, want validation error", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ValidateSelections() error = %v", err)
			}
			if len(accepted) != len(tt.selections) {
				t.Errorf("ValidateSelections() accepted %d selections, want %d", len(accepted), len(tt.selections))
			}
		})
	}
}

func TestValidateSelectionsMaxSelection(t *testing.T) {
	groups := []ModifierGroup{
		{
			ID:            "grp-chutney",
			Name:          "Chutneys",
			Required:      true,
			AllowMultiple: true,
			MinSelection:  1,
			MaxSelection:  intPtr(2),
			Active:        true,
			Modifiers: []Modifier{
				{ID: "c1", Name: "Mint", Active: true},
				{ID: "c2", Name: "Tamarind", Active: true},
				{ID: "c3", Name: "Garlic", Active: true},
			},
		},
	}

	_, err := ValidateSelections(groups, []SelectedModifier{
		{ModifierID: "c1"}, {ModifierID: "c2"}, {ModifierID: "c3"},
	})
	if !IsValidationError(err) {
		t.Errorf("ValidateSelections() error = %v, want validation error for exceeding max", err)
	}

	accepted, err := ValidateSelections(groups, []SelectedModifier{
		{ModifierID: "c1"}, {ModifierID: "c2"},
	})
	if err != nil {
		t.Fatalf("ValidateSelections() error = %v", err)
	}
	if len(accepted) != 2 {
		t.Errorf("ValidateSelections() accepted %d, want 2", len(accepted))
	}
}

func TestValidateSelectionsSkipsDisabledGroups(t *testing.T) {
	groups := []ModifierGroup{
		{
			ID:           "grp-off",
			Name:         "Seasonal",
			Required:     true,
			MinSelection: 1,
			Active:       false,
			Modifiers:    []Modifier{{ID: "s1", Name: "Mango", Active: true}},
		},
		{
			ID:           "grp-empty",
			Name:         "Retired",
			Required:     true,
			MinSelection: 1,
			Active:       true,
			Modifiers:    []Modifier{{ID: "r1", Name: "Old", Active: false}},
		},
	}

	// Neither group is enforceable, so an empty selection passes.
	if _, err := ValidateSelections(groups, nil); err != nil {
		t.Errorf("ValidateSelections() error = %v, want nil for disabled groups", err)
	}
}

func TestSurcharge(t *testing.T) {
	selections := []SelectedModifier{
		{ModifierID: "m1", PriceDelta: 20},
		{ModifierID: "m2", PriceDelta: 30},
		{ModifierID: "m3", PriceDelta: 0},
	}
	if got := Surcharge(selections); got != 50 {
		t.Errorf("Surcharge() = %v, want 50", got)
	}
	if got := Surcharge(nil); got != 0 {
		t.Errorf("Surcharge(nil) = %v, want 0", got)
	}
}
