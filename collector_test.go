package layerz

import (
	"sync"
	"testing"
	"time"
)

func testEvent(layer string) *Event {
	return newRootEvent(layer, LabelEntry, NewMetadata(true))
}

func TestNewCollector(t *testing.T) {
	collector := NewCollector("test-collector", 100)
	defer collector.Close()

	if collector.Name() != "test-collector" {
		t.Errorf("Expected name 'test-collector', got %q", collector.Name())
	}

	if collector.Count() != 0 {
		t.Errorf("Expected 0 events initially, got %d", collector.Count())
	}

	if collector.DroppedCount() != 0 {
		t.Errorf("Expected 0 dropped events initially, got %d", collector.DroppedCount())
	}
}

func TestCollectorBasicCollection(t *testing.T) {
	collector := NewCollector("test", 10)
	collector.SetSyncMode(true) // Enable sync for deterministic testing.
	defer collector.Close()

	ev := testEvent("test-operation")
	if err := collector.Send(ev); err != nil {
		t.Fatalf("Send: %v", err)
	}

	if collector.Count() != 1 {
		t.Errorf("Expected 1 event, got %d", collector.Count())
	}

	events := collector.Export()
	if len(events) != 1 {
		t.Fatalf("Expected 1 exported event, got %d", len(events))
	}
	if events[0] != ev {
		t.Error("Expected the sent event to be exported")
	}

	// After export, collector should be empty.
	if collector.Count() != 0 {
		t.Errorf("Expected 0 events after export, got %d", collector.Count())
	}
}

func TestCollectorNilEventDropped(t *testing.T) {
	collector := NewCollector("test", 10)
	collector.SetSyncMode(true)
	defer collector.Close()

	collector.Collect(nil)
	if collector.Count() != 0 || collector.DroppedCount() != 1 {
		t.Errorf("count=%d dropped=%d", collector.Count(), collector.DroppedCount())
	}
}

func TestCollectorBackpressure(t *testing.T) {
	// Small buffer to trigger backpressure quickly.
	collector := NewCollector("test", 2)
	defer collector.Close()

	for i := 0; i < 1000; i++ {
		collector.Collect(testEvent("burst"))
	}

	// Give time for async processing and dropping.
	time.Sleep(50 * time.Millisecond)

	droppedCount := collector.DroppedCount()
	if droppedCount == 0 {
		t.Error("Expected some events to be dropped due to backpressure")
	}
	if int(droppedCount)+collector.Count() != 1000 {
		t.Errorf("collected %d + dropped %d != 1000", collector.Count(), droppedCount)
	}
}

func TestCollectorBufferGrowthAndOrder(t *testing.T) {
	collector := NewCollector("test", 100)
	collector.SetSyncMode(true)
	defer collector.Close()

	sent := make([]*Event, 50)
	for i := range sent {
		sent[i] = testEvent("op")
		collector.Collect(sent[i])
	}

	events := collector.Export()
	if len(events) != len(sent) {
		t.Fatalf("Expected %d exported events, got %d", len(sent), len(events))
	}
	for i := range sent {
		if events[i] != sent[i] {
			t.Fatalf("event %d out of order", i)
		}
	}
}

func TestCollectorMemoryShrink(t *testing.T) {
	collector := NewCollector("test", 1000)
	collector.SetSyncMode(true)
	defer collector.Close()

	for i := 0; i < 600; i++ {
		collector.Collect(testEvent("op"))
	}
	if got := len(collector.Export()); got != 600 {
		t.Fatalf("Expected 600 events, got %d", got)
	}

	// A small batch after a large one still round-trips.
	for i := 0; i < 5; i++ {
		collector.Collect(testEvent("op"))
	}
	if collector.Count() != 5 {
		t.Errorf("Expected 5 events after small batch, got %d", collector.Count())
	}
	if got := len(collector.Export()); got != 5 {
		t.Errorf("Expected 5 exported events, got %d", got)
	}
}

func TestCollectorExportIndependentSlices(t *testing.T) {
	collector := NewCollector("test", 10)
	collector.SetSyncMode(true)
	defer collector.Close()

	first := testEvent("first")
	collector.Collect(first)
	exported := collector.Export()

	collector.Collect(testEvent("second"))
	if exported[0] != first {
		t.Error("later collection overwrote an exported slice")
	}
}

func TestCollectorReset(t *testing.T) {
	collector := NewCollector("test", 10)
	collector.SetSyncMode(true)
	defer collector.Close()

	for i := 0; i < 5; i++ {
		collector.Collect(testEvent("op"))
	}
	if collector.Count() != 5 {
		t.Errorf("Expected 5 events before reset, got %d", collector.Count())
	}

	collector.droppedCount.Store(10)
	collector.Reset()

	if collector.Count() != 0 {
		t.Errorf("Expected 0 events after reset, got %d", collector.Count())
	}
	if collector.DroppedCount() != 0 {
		t.Errorf("Expected 0 dropped count after reset, got %d", collector.DroppedCount())
	}
}

func TestCollectorShutdown(t *testing.T) {
	collector := NewCollector("test", 10)
	collector.SetSyncMode(true)

	for i := 0; i < 3; i++ {
		collector.Collect(testEvent("op"))
	}

	collector.Close()

	// Should still be able to export what was collected.
	if events := collector.Export(); len(events) != 3 {
		t.Errorf("Expected 3 events after shutdown, got %d", len(events))
	}

	collector.Collect(testEvent("late"))
	if collector.Count() != 0 {
		t.Errorf("Expected closed collector to drop, got %d events", collector.Count())
	}
	if collector.DroppedCount() != 1 {
		t.Errorf("Expected 1 dropped event, got %d", collector.DroppedCount())
	}

	// Multiple closes should be safe.
	collector.Close()
}

func TestCollectorConcurrentCollection(t *testing.T) {
	collector := NewCollector("test", 100)
	defer collector.Close()

	var wg sync.WaitGroup
	numGoroutines := 50
	eventsPerGoroutine := 10

	for i := 0; i < numGoroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < eventsPerGoroutine; j++ {
				collector.Collect(testEvent("operation"))
			}
		}()
	}

	wg.Wait()

	// Give time for all events to be processed by async goroutine.
	time.Sleep(100 * time.Millisecond)

	expectedTotal := numGoroutines * eventsPerGoroutine
	actualCount := collector.Count()
	droppedCount := collector.DroppedCount()
	if int(droppedCount)+actualCount != expectedTotal {
		t.Errorf("Expected %d total events (collected + dropped), got collected: %d, dropped: %d",
			expectedTotal, actualCount, droppedCount)
	}
}

func TestCollectorConcurrentExport(t *testing.T) {
	collector := NewCollector("test", 100)
	collector.SetSyncMode(true)
	defer collector.Close()

	for i := 0; i < 20; i++ {
		collector.Collect(testEvent("op"))
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	var results [][]*Event

	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result := collector.Export()
			mu.Lock()
			results = append(results, result)
			mu.Unlock()
		}()
	}
	wg.Wait()

	total, nonEmpty := 0, 0
	for _, r := range results {
		total += len(r)
		if len(r) > 0 {
			nonEmpty++
		}
	}
	if nonEmpty != 1 || total != 20 {
		t.Errorf("Expected one export of 20 events, got %d non-empty exports totalling %d", nonEmpty, total)
	}
}

func TestSetSyncMode(t *testing.T) {
	collector := NewCollector("test", 10)
	defer collector.Close()

	// Async mode (default).
	collector.Collect(testEvent("async"))
	time.Sleep(10 * time.Millisecond)
	if collector.Count() != 1 {
		t.Errorf("Expected 1 event in async mode, got %d", collector.Count())
	}
	collector.Export()

	collector.SetSyncMode(true)
	ev := testEvent("sync")
	collector.Collect(ev)

	// Should be immediately available.
	events := collector.Export()
	if len(events) != 1 || events[0] != ev {
		t.Fatalf("Expected the sync event immediately, got %d events", len(events))
	}
}
