package poolswitcher

import (
	"context"
	"sync"
	"testing"

	"github.com/jig0901/Bitcoin-Mining-Pool-Switcher/internal/browser"
)

type countingRecorder struct {
	mu      sync.Mutex
	results []Result
	err     error
}

func (r *countingRecorder) Record(ctx context.Context, res Result) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.results = append(r.results, res)
	return r.err
}

func minerWithDriver(name string, driver DeviceDriver) *Miner {
	return NewMiner(testDeviceConfig(name), driver, &fakeFactory{build: newFakeSession})
}

func TestDispatchSwitchAndRebootPerMiner(t *testing.T) {
	fleet := []*Miner{
		minerWithDriver("ant01", &fakeDriver{}),
		minerWithDriver("whats01", &fakeDriver{}),
	}
	d := NewDispatcher(DispatcherConfig{})
	results := d.Dispatch(context.Background(), fleet, Request{PoolKey: "solo", Slot: 1, Reboot: true})

	if len(results) != 4 {
		t.Fatalf("expected 4 results (2 miners x 2 ops), got %d", len(results))
	}
	want := []struct {
		miner string
		op    Operation
	}{
		{"ant01", OpPoolSwitch},
		{"ant01", OpReboot},
		{"whats01", OpPoolSwitch},
		{"whats01", OpReboot},
	}
	for i, res := range results {
		if res.Miner != want[i].miner || res.Operation != want[i].op {
			t.Fatalf("result %d: expected %s/%s, got %s/%s", i, want[i].miner, want[i].op, res.Miner, res.Operation)
		}
		if !res.OK() {
			t.Fatalf("result %d: expected success, got %v", i, res)
		}
	}
}

func TestDispatchFailureIsolation(t *testing.T) {
	failing := &fakeDriver{applyErr: protocolErr(FailFieldNotFound, nil, "ui changed")}
	fleet := []*Miner{
		minerWithDriver("ok1", &fakeDriver{}),
		minerWithDriver("broken", failing),
		minerWithDriver("ok2", &fakeDriver{}),
	}
	d := NewDispatcher(DispatcherConfig{})
	results := d.Dispatch(context.Background(), fleet, Request{PoolKey: "solo", Reboot: true})

	if len(results) != 6 {
		t.Fatalf("expected 6 results, got %d", len(results))
	}
	byMiner := make(map[string][]Result)
	for _, res := range results {
		byMiner[res.Miner] = append(byMiner[res.Miner], res)
	}
	for _, name := range []string{"ok1", "ok2"} {
		for _, res := range byMiner[name] {
			if !res.OK() {
				t.Fatalf("%s should be unaffected by broken miner: %v", name, res)
			}
		}
	}
	broken := byMiner["broken"]
	if len(broken) != 2 {
		t.Fatalf("broken miner should still get both operations, got %d", len(broken))
	}
	if broken[0].Operation != OpPoolSwitch || broken[0].OK() {
		t.Fatalf("expected failed pool switch first, got %v", broken[0])
	}
	// The failed switch must not suppress the reboot.
	if broken[1].Operation != OpReboot || !broken[1].OK() {
		t.Fatalf("expected successful reboot after failed switch, got %v", broken[1])
	}
}

func TestDispatchRebootOnly(t *testing.T) {
	driver := &fakeDriver{}
	fleet := []*Miner{minerWithDriver("ant01", driver)}
	d := NewDispatcher(DispatcherConfig{})
	results := d.Dispatch(context.Background(), fleet, Request{Reboot: true})

	if len(results) != 1 || results[0].Operation != OpReboot {
		t.Fatalf("expected single reboot result, got %v", results)
	}
	driver.mu.Lock()
	defer driver.mu.Unlock()
	for _, call := range driver.calls {
		if call == "nav" || call == "save" {
			t.Fatalf("reboot-only dispatch must not touch pool page: %v", driver.calls)
		}
	}
}

func TestDispatchWithoutOperationsIsNoop(t *testing.T) {
	fleet := []*Miner{minerWithDriver("ant01", &fakeDriver{})}
	d := NewDispatcher(DispatcherConfig{})
	if results := d.Dispatch(context.Background(), fleet, Request{}); results != nil {
		t.Fatalf("expected nil results for empty request, got %v", results)
	}
}

func TestDispatchParallelWorkersKeepResultOrder(t *testing.T) {
	fleet := []*Miner{
		minerWithDriver("m1", &fakeDriver{}),
		minerWithDriver("m2", &fakeDriver{}),
		minerWithDriver("m3", &fakeDriver{}),
		minerWithDriver("m4", &fakeDriver{}),
	}
	d := NewDispatcher(DispatcherConfig{Workers: 3})
	results := d.Dispatch(context.Background(), fleet, Request{PoolKey: "solo"})
	if len(results) != 4 {
		t.Fatalf("expected 4 results, got %d", len(results))
	}
	for i, res := range results {
		if res.Miner != fleet[i].Name() {
			t.Fatalf("result %d out of fleet order: %v", i, res)
		}
	}
}

// panicOnSave simulates a driver bug escaping as a panic.
type panicOnSave struct{ fakeDriver }

func (*panicOnSave) Save(ctx context.Context, s browser.Session) error {
	panic("selector cache corrupted")
}

func TestDispatchConfinesPanics(t *testing.T) {
	fleet := []*Miner{
		minerWithDriver("boom", &panicOnSave{}),
		minerWithDriver("calm", &fakeDriver{}),
	}
	d := NewDispatcher(DispatcherConfig{})
	results := d.Dispatch(context.Background(), fleet, Request{PoolKey: "solo"})
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].Failure != FailSession {
		t.Fatalf("expected panic mapped to %s, got %v", FailSession, results[0])
	}
	if !results[1].OK() {
		t.Fatalf("panic must not leak into other miners: %v", results[1])
	}
}

// End to end over both real drivers: a union page that carries both vendors'
// elements stands in for the two UIs.
func TestDispatchMixedFleetSwitchAndReboot(t *testing.T) {
	factory := &fakeFactory{build: func() *fakeSession {
		s := antSession(3)
		s.show(whatsLoginUser, whatsLoginPass, whatsLoginBtn, whatsSaveAliases[0], whatsConfirm, antRestart, antConfirm)
		for _, suffix := range []string{"url", "user", "pass"} {
			s.show(whatsFieldID("cbid.btminer.1." + suffix))
		}
		return s
	}}
	ant := testDeviceConfig("ant01")
	whats := testDeviceConfig("whats01")
	whats.Kind = KindWhatsminer
	fleet, err := BuildFleet([]DeviceConfig{ant, whats}, FleetOptions{Sessions: factory})
	if err != nil {
		t.Fatalf("BuildFleet: %v", err)
	}

	d := NewDispatcher(DispatcherConfig{})
	results := d.Dispatch(context.Background(), fleet, Request{PoolKey: "solo", Slot: 1, Reboot: true})
	if len(results) != 4 {
		t.Fatalf("expected 2 switch + 2 reboot results, got %d", len(results))
	}
	wantOps := []Operation{OpPoolSwitch, OpReboot, OpPoolSwitch, OpReboot}
	for i, res := range results {
		if !res.OK() {
			t.Fatalf("result %d failed: %v", i, res)
		}
		if res.Operation != wantOps[i] {
			t.Fatalf("result %d: expected %s, got %s", i, wantOps[i], res.Operation)
		}
	}
	// One session per operation, each closed exactly once.
	if factory.openCount() != 4 || factory.closeCount() != 4 {
		t.Fatalf("expected 4 opens / 4 closes, got %d / %d", factory.openCount(), factory.closeCount())
	}
}

func TestDispatchRecordsEveryResult(t *testing.T) {
	recorder := &countingRecorder{}
	fleet := []*Miner{
		minerWithDriver("ant01", &fakeDriver{}),
		minerWithDriver("whats01", &fakeDriver{loginErr: protocolErr(FailAuthentication, nil, "bad creds")}),
	}
	d := NewDispatcher(DispatcherConfig{Recorder: recorder})
	results := d.Dispatch(context.Background(), fleet, Request{PoolKey: "solo"})

	recorder.mu.Lock()
	defer recorder.mu.Unlock()
	if len(recorder.results) != len(results) {
		t.Fatalf("expected %d recorded results, got %d", len(results), len(recorder.results))
	}
	if FailedCount(results) != 1 {
		t.Fatalf("expected exactly one failure, got %d", FailedCount(results))
	}
}
