package registry

import (
	"fmt"
	"sync"
	"testing"
)

// TestItem is a simple struct for testing
type TestItem struct {
	ID   string
	Name string
}

func TestBaseRegistry_Register(t *testing.T) {
	registry := NewBaseRegistry[TestItem]()

	tests := []struct {
		name    string
		item    TestItem
		wantErr bool
	}{
		{
			name: "register valid item",
			item: TestItem{
				ID:   "test-1",
				Name: "Test Item 1",
			},
			wantErr: false,
		},
		{
			name: "register item with empty name",
			item: TestItem{
				ID:   "",
				Name: "Test Item",
			},
			wantErr: true,
		},
		{
			name: "register duplicate item",
			item: TestItem{
				ID:   "test-1", // Same ID as first test
				Name: "Test Item 2",
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := registry.Register(tt.item.ID, tt.item)
			if (err != nil) != tt.wantErr {
				t.Errorf("BaseRegistry.Register() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestBaseRegistry_Set(t *testing.T) {
	registry := NewBaseRegistry[TestItem]()

	registry.Set("a", TestItem{ID: "a", Name: "first"})
	registry.Set("a", TestItem{ID: "a", Name: "second"})

	item, ok := registry.Get("a")
	if !ok {
		t.Fatal("expected item to exist")
	}
	if item.Name != "second" {
		t.Errorf("Set() did not replace item, got %q", item.Name)
	}
	if registry.Count() != 1 {
		t.Errorf("Count() = %d, want 1", registry.Count())
	}
}

func TestBaseRegistry_Get(t *testing.T) {
	registry := NewBaseRegistry[TestItem]()

	testItem := TestItem{ID: "test-1", Name: "Test Item 1"}
	if err := registry.Register("test-1", testItem); err != nil {
		t.Fatalf("Failed to register test item: %v", err)
	}

	if _, ok := registry.Get("missing"); ok {
		t.Error("Get() returned ok for missing item")
	}

	got, ok := registry.Get("test-1")
	if !ok {
		t.Fatal("Get() returned !ok for existing item")
	}
	if got != testItem {
		t.Errorf("Get() = %v, want %v", got, testItem)
	}
}

func TestBaseRegistry_Names(t *testing.T) {
	registry := NewBaseRegistry[int]()

	for i, name := range []string{"zeta", "alpha", "mid"} {
		if err := registry.Register(name, i); err != nil {
			t.Fatalf("Register(%s): %v", name, err)
		}
	}

	names := registry.Names()
	want := []string{"alpha", "mid", "zeta"}
	if len(names) != len(want) {
		t.Fatalf("Names() returned %d names, want %d", len(names), len(want))
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("Names()[%d] = %q, want %q", i, names[i], want[i])
		}
	}
}

func TestBaseRegistry_Snapshot(t *testing.T) {
	registry := NewBaseRegistry[int]()
	if err := registry.Register("a", 1); err != nil {
		t.Fatal(err)
	}

	snap := registry.Snapshot()
	snap["b"] = 2

	if registry.Count() != 1 {
		t.Errorf("mutating snapshot changed registry, Count() = %d", registry.Count())
	}
	if _, ok := registry.Get("b"); ok {
		t.Error("snapshot mutation leaked into registry")
	}
}

func TestBaseRegistry_Remove(t *testing.T) {
	registry := NewBaseRegistry[TestItem]()

	if err := registry.Remove("missing"); err == nil {
		t.Error("Remove() of missing item should error")
	}

	if err := registry.Register("test-1", TestItem{ID: "test-1"}); err != nil {
		t.Fatal(err)
	}
	if err := registry.Remove("test-1"); err != nil {
		t.Errorf("Remove() error = %v", err)
	}
	if registry.Count() != 0 {
		t.Errorf("Count() = %d after remove, want 0", registry.Count())
	}
}

func TestBaseRegistry_Clear(t *testing.T) {
	registry := NewBaseRegistry[int]()
	for i := 0; i < 5; i++ {
		if err := registry.Register(fmt.Sprintf("item-%d", i), i); err != nil {
			t.Fatal(err)
		}
	}

	registry.Clear()
	if registry.Count() != 0 {
		t.Errorf("Count() = %d after clear, want 0", registry.Count())
	}
}

func TestBaseRegistry_ConcurrentAccess(t *testing.T) {
	registry := NewBaseRegistry[int]()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_ = registry.Register(fmt.Sprintf("item-%d", n), n)
			registry.Get(fmt.Sprintf("item-%d", n))
			registry.Names()
		}(i)
	}
	wg.Wait()

	if registry.Count() != 50 {
		t.Errorf("Count() = %d, want 50", registry.Count())
	}
}
