package perf

import "testing"

func TestConnPoolBounded(t *testing.T) {
	p := NewConnPool(2)

	if !p.Add("ws", "c1") || !p.Add("ws", "c2") {
		t.Fatal("adds under the cap must succeed")
	}
	if p.Add("ws", "c3") {
		t.Fatal("add beyond the cap must be refused")
	}
	if p.Len("ws") != 2 {
		t.Fatalf("expected 2 handles, got %d", p.Len("ws"))
	}
}

func TestConnPoolNamesAreIndependent(t *testing.T) {
	p := NewConnPool(1)

	p.Add("a", "c1")
	if !p.Add("b", "c2") {
		t.Fatal("pools must not share the cap across names")
	}
}

func TestConnPoolRemove(t *testing.T) {
	p := NewConnPool(2)
	p.Add("ws", "c1")
	p.Add("ws", "c2")

	if !p.Remove("ws", "c1") {
		t.Fatal("expected removal of a present handle")
	}
	if p.Remove("ws", "c1") {
		t.Fatal("removing an absent handle must report false")
	}
	if !p.Add("ws", "c3") {
		t.Fatal("removal must free a slot")
	}

	handles := p.Handles("ws")
	if len(handles) != 2 || handles[0] != "c2" || handles[1] != "c3" {
		t.Fatalf("unexpected handles: %v", handles)
	}
}

func TestConnPoolDefaultSize(t *testing.T) {
	p := NewConnPool(0)
	for i := 0; i < DefaultPoolSize; i++ {
		if !p.Add("ws", i) {
			t.Fatalf("add %d should fit the default cap", i)
		}
	}
	if p.Add("ws", DefaultPoolSize) {
		t.Fatal("default cap not enforced")
	}
}
