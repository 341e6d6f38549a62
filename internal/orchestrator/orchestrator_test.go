package orchestrator

import (
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/evertran/koinonia-desktop/internal/desktop/windowstate"
	"github.com/evertran/koinonia-desktop/internal/logger"
	"github.com/evertran/koinonia-desktop/internal/session"
	"github.com/evertran/koinonia-desktop/internal/store"
	"github.com/evertran/koinonia-desktop/internal/ui"
)

// callLog records cross-component calls in order.
type callLog struct {
	mu    sync.Mutex
	calls []string
}

func (l *callLog) add(call string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = append(l.calls, call)
}

func (l *callLog) snapshot() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, len(l.calls))
	copy(out, l.calls)
	return out
}

type fakeSession struct {
	log      *callLog
	identity string
	mu       sync.Mutex
}

func (f *fakeSession) CurrentIdentity() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.identity
}

func (f *fakeSession) OnLoginSuccess(memberID, authToken string) error {
	f.mu.Lock()
	f.identity = memberID
	f.mu.Unlock()
	f.log.add("login")
	return nil
}

func (f *fakeSession) OnLogout() session.LogoutResult {
	f.mu.Lock()
	f.identity = ""
	f.mu.Unlock()
	f.log.add("logout")
	return session.LogoutResult{ServerNotified: true}
}

func (f *fakeSession) RestoreSession() bool {
	f.log.add("restore")
	return false
}

func (f *fakeSession) Heartbeat() {
	f.log.add("heartbeat")
}

type fakeRealtime struct {
	log *callLog
}

func (f *fakeRealtime) CheckReconnect() { f.log.add("check-reconnect") }

func (f *fakeRealtime) Close() error {
	f.log.add("close")
	return nil
}

func count(calls []string, name string) int {
	n := 0
	for _, c := range calls {
		if c == name {
			n++
		}
	}
	return n
}

func newTestOrchestrator(t *testing.T, identity string) (*Orchestrator, *callLog) {
	t.Helper()
	dir := t.TempDir()

	s, err := store.Open(filepath.Join(dir, "store"), store.KeyMaterial{
		DataDir:    dir,
		AppVersion: "2.0.0",
		AppName:    "koinonia-desktop",
	})
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}

	log := &callLog{}
	o := &Orchestrator{
		store:    s,
		session:  &fakeSession{log: log, identity: identity},
		realtime: &fakeRealtime{log: log},
		bus:      ui.NewBus(),
		window:   ui.NewLogWindow(),
		winState: windowstate.NewManager(filepath.Join(dir, "window_state.json"), 412, 850),
		logger:   logger.NewComponentLogger("Orchestrator"),
		done:     make(chan struct{}),
	}
	return o, log
}

func waitDone(t *testing.T, o *Orchestrator) {
	t.Helper()
	select {
	case <-o.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("shutdown never finished")
	}
}

func TestQuitWithSessionLogsOutThenCloses(t *testing.T) {
	o, log := newTestOrchestrator(t, "member-1")

	o.RequestQuit()
	waitDone(t, o)

	calls := log.snapshot()
	if count(calls, "logout") != 1 {
		t.Fatalf("logout count = %d, calls %v", count(calls, "logout"), calls)
	}
	if count(calls, "close") != 1 {
		t.Fatalf("close count = %d, calls %v", count(calls, "close"), calls)
	}

	var logoutIdx, closeIdx int
	for i, c := range calls {
		switch c {
		case "logout":
			logoutIdx = i
		case "close":
			closeIdx = i
		}
	}
	if logoutIdx > closeIdx {
		t.Errorf("connection closed before server logout: %v", calls)
	}
}

func TestQuitWithoutSessionSkipsLogout(t *testing.T) {
	o, log := newTestOrchestrator(t, "")

	o.RequestQuit()
	waitDone(t, o)

	calls := log.snapshot()
	if count(calls, "logout") != 0 {
		t.Errorf("logout without session: %v", calls)
	}
	if count(calls, "close") != 1 {
		t.Errorf("close count = %d", count(calls, "close"))
	}
}

func TestConcurrentQuitRunsOnce(t *testing.T) {
	o, log := newTestOrchestrator(t, "member-1")

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			o.RequestQuit()
		}()
	}
	wg.Wait()
	waitDone(t, o)

	calls := log.snapshot()
	if count(calls, "logout") != 1 || count(calls, "close") != 1 {
		t.Errorf("shutdown ran more than once: %v", calls)
	}
}

func TestWindowFocusChecksConnection(t *testing.T) {
	o, log := newTestOrchestrator(t, "member-1")
	defer func() {
		o.RequestQuit()
		waitDone(t, o)
	}()

	o.OnWindowFocus()
	time.Sleep(50 * time.Millisecond) // heartbeat runs async

	calls := log.snapshot()
	if count(calls, "check-reconnect") != 1 {
		t.Errorf("check-reconnect count = %d, calls %v", count(calls, "check-reconnect"), calls)
	}
	if count(calls, "heartbeat") != 1 {
		t.Errorf("heartbeat count = %d, calls %v", count(calls, "heartbeat"), calls)
	}
}

func TestWindowRestoreWithoutSessionAttemptsRestore(t *testing.T) {
	o, log := newTestOrchestrator(t, "")
	defer func() {
		o.RequestQuit()
		waitDone(t, o)
	}()

	o.OnWindowRestore()

	calls := log.snapshot()
	if count(calls, "restore") != 1 {
		t.Errorf("restore count = %d, calls %v", count(calls, "restore"), calls)
	}
	if count(calls, "check-reconnect") != 0 {
		t.Errorf("reconnect check should be skipped without a session: %v", calls)
	}
}

func TestNotificationClickPresentsAndNavigates(t *testing.T) {
	o, _ := newTestOrchestrator(t, "member-1")
	window := o.window.(*ui.LogWindow)

	if err := o.bus.Listen(ui.ChanLifecycle, o.handleEvent); err != nil {
		t.Fatalf("Listen: %v", err)
	}

	o.bus.Notify(ui.ChanLifecycle, ui.NotificationClicked{
		TargetURL: "https://koinonia.evertran.com/chat/42",
	})

	deadline := time.After(time.Second)
	for window.CurrentURL() == "" {
		select {
		case <-deadline:
			t.Fatal("window never navigated")
		case <-time.After(10 * time.Millisecond):
		}
	}

	if !window.Visible() {
		t.Error("window not presented on click")
	}
	if window.CurrentURL() != "https://koinonia.evertran.com/chat/42" {
		t.Errorf("navigated to %s", window.CurrentURL())
	}

	o.RequestQuit()
	waitDone(t, o)
}

func TestWindowCloseSavesGeometry(t *testing.T) {
	o, _ := newTestOrchestrator(t, "")
	defer func() {
		o.RequestQuit()
		waitDone(t, o)
	}()

	o.OnWindowClose(windowstate.Geometry{Width: 800, Height: 600, X: 5, Y: 6})

	got := o.WindowGeometry()
	if got.Width != 800 || got.Height != 600 {
		t.Errorf("geometry not persisted: %+v", got)
	}
}
