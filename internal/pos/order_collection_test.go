package pos

import "testing"

func TestOrderCollectionUpsert(t *testing.T) {
	c := NewOrderCollection()

	c.Upsert(Order{ID: "o1", TableID: "t1", Status: StatusCreated, Total: 100})
	c.Upsert(Order{ID: "o2", TableID: "t2", Status: StatusCreated, Total: 200})

	// Replacing o1 keeps its slice position and takes the payload wholesale.
	c.Upsert(Order{ID: "o1", TableID: "t1", Status: StatusInProgress, Total: 150})

	if c.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", c.Len())
	}

	pos, ok := c.IndexOf("o1")
	if !ok || pos != 0 {
		t.Errorf("IndexOf(o1) = %d, %v, want 0, true", pos, ok)
	}

	order, ok := c.Get("o1")
	if !ok {
		t.Fatal("Get(o1) missing")
	}
	if order.Status != StatusInProgress {
		t.Errorf("Get(o1).Status = %q, want %q", order.Status, StatusInProgress)
	}
	if order.Total != 150 {
		t.Errorf("Get(o1).Total = %v, want 150", order.Total)
	}
}

func TestOrderCollectionLastWriterWins(t *testing.T) {
	c := NewOrderCollection()

	// Two updates for the same id: no field merging, the later one replaces
	// everything including fields the earlier one carried.
	c.Upsert(Order{ID: "o1", Status: StatusInProgress, Total: 500, Items: []OrderItem{{MenuItemID: "m1", Quantity: 2}}})
	c.Upsert(Order{ID: "o1", Status: StatusCompleted, Total: 500})

	order, _ := c.Get("o1")
	if order.Status != StatusCompleted {
		t.Errorf("Status = %q, want %q", order.Status, StatusCompleted)
	}
	if len(order.Items) != 0 {
		t.Errorf("Items = %+v, want the later payload's empty items", order.Items)
	}
}

func TestOrderCollectionReplaceAll(t *testing.T) {
	c := NewOrderCollection()
	c.Upsert(Order{ID: "o1", Status: StatusCreated})
	c.Upsert(Order{ID: "o2", Status: StatusCreated})

	c.ReplaceAll([]Order{
		{ID: "o2", Status: StatusCompleted},
		{ID: "o3", Status: StatusCreated},
	})

	if c.Len() != 2 {
		t.Fatalf("Len() = %d, want 2 after replace", c.Len())
	}
	if _, ok := c.Get("o1"); ok {
		t.Error("o1 should be gone after ReplaceAll")
	}
	if order, ok := c.Get("o2"); !ok || order.Status != StatusCompleted {
		t.Errorf("Get(o2) = %+v, %v, want completed order", order, ok)
	}
}

func TestOrderCollectionByStatusAndTable(t *testing.T) {
	c := NewOrderCollection()
	c.Upsert(Order{ID: "o1", TableID: "t1", Status: StatusCreated})
	c.Upsert(Order{ID: "o2", TableID: "t1", Status: StatusCompleted})
	c.Upsert(Order{ID: "o3", TableID: "t2", Status: StatusCompleted})

	if got := c.ByStatus(StatusCompleted); len(got) != 2 {
		t.Errorf("ByStatus(COMPLETED) returned %d orders, want 2", len(got))
	}
	if got := c.ByTable("t1"); len(got) != 2 {
		t.Errorf("ByTable(t1) returned %d orders, want 2", len(got))
	}
}

func TestCompletedUnbilled(t *testing.T) {
	c := NewOrderCollection()
	c.Upsert(Order{ID: "o1", TableID: "t1", Status: StatusCompleted, Total: 100})
	c.Upsert(Order{ID: "o2", TableID: "t1", Status: StatusCompleted, Total: 200})
	c.Upsert(Order{ID: "o3", TableID: "t1", Status: StatusCreated, Total: 50})
	c.Upsert(Order{ID: "o4", TableID: "t2", Status: StatusCompleted, Total: 75})

	links := NewBillLinkCache()
	links.Link("o2", "bill-1")

	eligible := c.CompletedUnbilled("t1", links)
	if len(eligible) != 1 {
		t.Fatalf("CompletedUnbilled() returned %d orders, want 1", len(eligible))
	}
	if eligible[0].ID != "o1" {
		t.Errorf("CompletedUnbilled()[0].ID = %q, want o1", eligible[0].ID)
	}
}

func TestOrderCollectionSnapshotIsCopy(t *testing.T) {
	c := NewOrderCollection()
	c.Upsert(Order{ID: "o1", Status: StatusCreated})

	snap := c.Snapshot()
	snap[0].Status = StatusCancelled

	order, _ := c.Get("o1")
	if order.Status != StatusCreated {
		t.Error("mutating a snapshot must not touch the collection")
	}
}
