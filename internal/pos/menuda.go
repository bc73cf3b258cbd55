package pos

import (
	"context"
	"fmt"

	"github.com/aquamarinepk/aqm"
)

// MenuItem mirrors the catalog service's item. Read-only to this core.
type MenuItem struct {
	ID        string  `json:"id"`
	Name      string  `json:"name"`
	Category  string  `json:"category"`
	UnitPrice float64 `json:"unit_price"`
	Available bool    `json:"available"`
	TaxRate   float64 `json:"tax_rate"`
	HSNCode   string  `json:"hsn_code,omitempty"`
}

// MenuDataAccess centralizes decoding of catalog service responses.
type MenuDataAccess struct {
	client *aqm.ServiceClient
}

func NewMenuDataAccess(client *aqm.ServiceClient) *MenuDataAccess {
	return &MenuDataAccess{client: client}
}

func (da *MenuDataAccess) ListMenuItems(ctx context.Context) ([]MenuItem, error) {
	if da == nil || da.client == nil {
		return nil, fmt.Errorf("catalog client not configured")
	}

	resp, err := da.client.List(ctx, "menu-items")
	if err != nil {
		return nil, err
	}

	var items []MenuItem
	if err := rehydrateCollection(resp.Data, &items); err != nil {
		return nil, err
	}

	return items, nil
}

func (da *MenuDataAccess) GetMenuItem(ctx context.Context, id string) (*MenuItem, error) {
	if da == nil || da.client == nil {
		return nil, fmt.Errorf("catalog client not configured")
	}
	if id == "" {
		return nil, fmt.Errorf("missing menu item id")
	}

	resp, err := da.client.Get(ctx, "menu-items", id)
	if err != nil {
		return nil, err
	}

	var item MenuItem
	if err := decodeSuccessResponse(resp, &item); err != nil {
		return nil, err
	}

	return &item, nil
}

// GetModifierGroups fetches the ordered modifier groups for a menu item,
// nested modifiers included.
func (da *MenuDataAccess) GetModifierGroups(ctx context.Context, menuItemID string) ([]ModifierGroup, error) {
	if da == nil || da.client == nil {
		return nil, fmt.Errorf("catalog client not configured")
	}
	if menuItemID == "" {
		return nil, fmt.Errorf("missing menu item id")
	}

	path := fmt.Sprintf("/modifiers/menu-items/%s/modifier-groups", menuItemID)
	resp, err := da.client.Request(ctx, "GET", path, nil)
	if err != nil {
		return nil, err
	}

	var groups []ModifierGroup
	if err := rehydrateCollection(resp.Data, &groups); err != nil {
		return nil, err
	}

	return groups, nil
}
