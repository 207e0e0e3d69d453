package perf

import (
	"sync"
	"testing"
)

type attachRecorder struct {
	mu       sync.Mutex
	attached int
	detached int
	fire     func(payload any)
}

func (a *attachRecorder) attach(_ string, fire func(payload any)) func() {
	a.mu.Lock()
	a.attached++
	a.fire = fire
	a.mu.Unlock()
	return func() {
		a.mu.Lock()
		a.detached++
		a.mu.Unlock()
	}
}

func TestListenerRegistrySingleNativeRegistration(t *testing.T) {
	rec := &attachRecorder{}
	reg := NewListenerRegistry(rec.attach)

	var got []any
	off1 := reg.On("message:new", func(p any) { got = append(got, p) })
	off2 := reg.On("message:new", func(p any) { got = append(got, p) })

	if rec.attached != 1 {
		t.Fatalf("expected exactly one native registration, got %d", rec.attached)
	}
	if reg.Listeners("message:new") != 2 {
		t.Fatalf("expected 2 local subscribers, got %d", reg.Listeners("message:new"))
	}

	rec.fire("hello")
	if len(got) != 2 {
		t.Fatalf("expected fanout to both subscribers, got %d deliveries", len(got))
	}

	off1()
	if rec.detached != 0 {
		t.Fatal("native handler detached while subscribers remain")
	}
	off2()
	if rec.detached != 1 {
		t.Fatalf("expected native detach after last unsubscribe, got %d", rec.detached)
	}
	if reg.NativeCount() != 0 {
		t.Fatalf("native registration leaked, count %d", reg.NativeCount())
	}
}

func TestListenerRegistryOffIsIdempotent(t *testing.T) {
	rec := &attachRecorder{}
	reg := NewListenerRegistry(rec.attach)

	off := reg.On("typing", func(any) {})
	off()
	off()

	if rec.detached != 1 {
		t.Fatalf("double off must not double-detach, got %d", rec.detached)
	}
}

func TestListenerRegistryNilAttach(t *testing.T) {
	reg := NewListenerRegistry(nil)

	fired := 0
	reg.On("local", func(any) { fired++ })
	reg.Dispatch("local", struct{}{})

	if fired != 1 {
		t.Fatalf("local fanout should work without native attach, fired %d", fired)
	}
	if reg.NativeCount() != 0 {
		t.Fatal("nil attach must not record native registrations")
	}
}
