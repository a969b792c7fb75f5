package bus

import (
	"errors"
	"testing"
	"time"
)

type testObserver struct {
	publishCount   int
	deliveredCount int
	lastErr        error
}

func (o *testObserver) OnPublish(_ string, _ Event) {
	o.publishCount++
}

func (o *testObserver) OnDelivered(_ string, handlers int, err error, _ time.Duration) {
	o.deliveredCount += handlers
	o.lastErr = err
}

func TestBasicPublishSubscribe(t *testing.T) {
	b := New()
	calls := 0
	_, err := b.Subscribe("test.event", func(e Event) error {
		calls++
		if e.Source() != "tester" {
			t.Errorf("unexpected source %q", e.Source())
		}
		return nil
	})
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	if err = b.Publish(NewEvent("test.event", "tester", 123)); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if calls != 1 {
		t.Fatalf("handler called %d times, want 1", calls)
	}
}

func TestPublishJoinsHandlerErrors(t *testing.T) {
	b := New()
	errA := errors.New("a")
	errB := errors.New("b")
	_, _ = b.Subscribe("x", func(Event) error { return errA })
	_, _ = b.Subscribe("x", func(Event) error { return errB })

	err := b.Publish(NewEvent("x", "src", nil))
	if !errors.Is(err, errA) || !errors.Is(err, errB) {
		t.Fatalf("expected joined error, got %v", err)
	}
}

func TestCancelStopsDelivery(t *testing.T) {
	b := New()
	count := 0
	sub, _ := b.Subscribe("e", func(Event) error { count++; return nil })
	_ = b.Publish(NewEvent("e", "s", nil))
	if err := b.Unsubscribe(sub); err != nil {
		t.Fatalf("unsubscribe: %v", err)
	}
	if err := sub.Cancel(); err != nil {
		t.Fatalf("second cancel: %v", err)
	}
	_ = b.Publish(NewEvent("e", "s", nil))
	if count != 1 {
		t.Fatalf("expected 1 delivery, got %d", count)
	}
	if sub.IsActive() {
		t.Fatal("subscription still active")
	}
	if err := b.Unsubscribe(nil); err != nil {
		t.Fatalf("nil unsubscribe: %v", err)
	}
}

func TestHandlerMaySubscribeDuringDispatch(t *testing.T) {
	b := New()
	late := 0
	_, _ = b.Subscribe("e", func(Event) error {
		_, err := b.Subscribe("e", func(Event) error { late++; return nil })
		return err
	})
	if err := b.Publish(NewEvent("e", "s", nil)); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if late != 0 {
		t.Fatalf("subscriber added during dispatch should not see the same event")
	}
}

func TestNilHandlerRejected(t *testing.T) {
	if _, err := New().Subscribe("e", nil); !errors.Is(err, ErrNilHandler) {
		t.Fatalf("expected ErrNilHandler, got %v", err)
	}
}

func TestObserverMetricsOptional(t *testing.T) {
	b := New()
	_, _ = b.Subscribe("e", func(e Event) error { return nil })
	_ = b.Publish(NewEvent("e", "s", nil))
	m := b.GetMetrics()
	if m.Published != 0 || m.DeliveredHandlers != 0 {
		t.Fatalf("metrics should be zero without observers: %+v", m)
	}
	obs := &testObserver{}
	b.AddObserver(obs)
	_ = b.Publish(NewEvent("e", "s", nil))
	m2 := b.GetMetrics()
	if m2.Published != 1 || m2.DeliveredHandlers != 1 || m2.SubscribersActive != 1 {
		t.Fatalf("metrics should update with observer: %+v", m2)
	}
	if obs.publishCount != 1 || obs.deliveredCount != 1 {
		t.Fatalf("observer not called: %+v", obs)
	}
	b.RemoveObserver(obs)
	_ = b.Publish(NewEvent("e", "s", nil))
	if obs.publishCount != 1 {
		t.Fatalf("removed observer still notified")
	}
}
