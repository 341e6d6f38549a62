package notify

import (
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/evertran/koinonia-desktop/internal/ui"
)

const testServer = "https://koinonia.evertran.com"

func TestNormalizeDefaults(t *testing.T) {
	env := Normalize([]byte(`{}`), testServer, 50)

	if env.Title != DefaultTitle {
		t.Errorf("title = %q", env.Title)
	}
	if env.Body != DefaultBody {
		t.Errorf("body = %q", env.Body)
	}
	if env.Kind != TargetNone || env.TargetURL != "" {
		t.Errorf("empty payload resolved a target: %+v", env)
	}
}

func TestNormalizeGarbagePayload(t *testing.T) {
	env := Normalize([]byte(`not json at all`), testServer, 50)
	if env.Title != DefaultTitle || env.Body != DefaultBody {
		t.Errorf("garbage payload should yield defaults: %+v", env)
	}
}

func TestNormalizeNestedNotificationFields(t *testing.T) {
	payload := []byte(`{"notification":{"title":"Alice","body":"hello there"}}`)
	env := Normalize(payload, testServer, 50)

	if env.Title != "Alice" || env.Body != "hello there" {
		t.Errorf("nested fields not extracted: %+v", env)
	}
}

func TestNormalizeChatRoomKeyOrder(t *testing.T) {
	cases := []struct {
		name    string
		payload string
		wantID  string
	}{
		{"canonical casing", `{"chatRoomID":"42"}`, "42"},
		{"camel casing", `{"chatRoomId":"43"}`, "43"},
		{"short key", `{"roomId":"44"}`, "44"},
		{"snake key", `{"chat_id":"45"}`, "45"},
		{"under data", `{"data":{"chatRoomID":"46"}}`, "46"},
		{"data wins over top level", `{"roomId":"47","data":{"chatRoomID":"48"}}`, "48"},
		{"first key wins", `{"chatRoomID":"49","roomId":"50"}`, "49"},
		{"numeric id", `{"chatRoomID":42}`, "42"},
	}

	for _, tc := range cases {
		env := Normalize([]byte(tc.payload), testServer, 50)
		if env.Kind != TargetChatRoom {
			t.Errorf("%s: kind = %s", tc.name, env.Kind)
			continue
		}
		if env.ChatRoomID != tc.wantID {
			t.Errorf("%s: id = %q, want %q", tc.name, env.ChatRoomID, tc.wantID)
		}
		if env.TargetURL != testServer+"/chat/"+tc.wantID {
			t.Errorf("%s: url = %q", tc.name, env.TargetURL)
		}
	}
}

func TestNormalizeCelebration(t *testing.T) {
	payload := []byte(`{"title":"Congrats!","click_action":"CELEBRATION_NOTIFICATION_CLICK"}`)
	env := Normalize(payload, testServer, 50)

	if env.Kind != TargetCelebration {
		t.Fatalf("kind = %s", env.Kind)
	}
	if env.TargetURL != testServer+"/celebration" {
		t.Errorf("url = %q", env.TargetURL)
	}
}

func TestNormalizeCelebrationExplicitURL(t *testing.T) {
	payload := []byte(`{"data":{"click_action":"CELEBRATION_NOTIFICATION_CLICK","targetUrl":"https://koinonia.evertran.com/celebration/9"}}`)
	env := Normalize(payload, testServer, 50)

	if env.Kind != TargetCelebration {
		t.Fatalf("kind = %s", env.Kind)
	}
	if env.TargetURL != "https://koinonia.evertran.com/celebration/9" {
		t.Errorf("url = %q", env.TargetURL)
	}
}

func TestNormalizeCelebrationBeatsChatRoom(t *testing.T) {
	payload := []byte(`{"click_action":"CELEBRATION_NOTIFICATION_CLICK","chatRoomID":"42"}`)
	env := Normalize(payload, testServer, 50)

	if env.Kind != TargetCelebration {
		t.Errorf("kind = %s, want celebration", env.Kind)
	}
}

func TestTruncate(t *testing.T) {
	cases := []struct {
		in    string
		limit int
		want  string
	}{
		{"short", 50, "short"},
		{strings.Repeat("a", 50), 50, strings.Repeat("a", 50)},
		{strings.Repeat("a", 51), 50, strings.Repeat("a", 47) + "..."},
		{"héllo wörld, this body is well over the limit for sure", 50, string([]rune("héllo wörld, this body is well over the limit for sure")[:47]) + "..."},
		{"abcdef", 3, "..."},
		{"abcdef", 0, "abcdef"},
	}

	for _, tc := range cases {
		got := Truncate(tc.in, tc.limit)
		if got != tc.want {
			t.Errorf("Truncate(%q, %d) = %q, want %q", tc.in, tc.limit, got, tc.want)
		}
		if tc.limit > 0 && len([]rune(got)) > tc.limit {
			t.Errorf("Truncate(%q, %d) exceeds limit: %d runes", tc.in, tc.limit, len([]rune(got)))
		}
	}
}

// fakeRenderer records renders and lets the test fire clicks.
type fakeRenderer struct {
	mu      sync.Mutex
	renders []Envelope
	clicks  []func()
	fail    bool
}

func (f *fakeRenderer) Render(env Envelope, onClick func()) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return fmt.Errorf("renderer broken")
	}
	f.renders = append(f.renders, env)
	f.clicks = append(f.clicks, onClick)
	return nil
}

func (f *fakeRenderer) renderCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.renders)
}

func testRouterConfig() Config {
	return Config{ServerURL: testServer, BodyLimit: 50, Enabled: true}
}

func TestRoutePrefersPrimaryRenderer(t *testing.T) {
	primary := &fakeRenderer{}
	fallback := &fakeRenderer{}
	r := NewRouter(testRouterConfig(), primary, fallback, nil)

	if !r.Route([]byte(`{"title":"hi","body":"there"}`)) {
		t.Fatal("Route returned false")
	}
	if primary.renderCount() != 1 || fallback.renderCount() != 0 {
		t.Errorf("renders: primary %d, fallback %d", primary.renderCount(), fallback.renderCount())
	}
}

func TestRouteFallsBack(t *testing.T) {
	primary := &fakeRenderer{fail: true}
	fallback := &fakeRenderer{}
	r := NewRouter(testRouterConfig(), primary, fallback, nil)

	if !r.Route([]byte(`{"title":"hi"}`)) {
		t.Fatal("Route returned false despite working fallback")
	}
	if fallback.renderCount() != 1 {
		t.Errorf("fallback renders = %d", fallback.renderCount())
	}
}

func TestRouteTotalFailureSwallowed(t *testing.T) {
	primary := &fakeRenderer{fail: true}
	fallback := &fakeRenderer{fail: true}
	r := NewRouter(testRouterConfig(), primary, fallback, nil)

	if r.Route([]byte(`{"title":"hi"}`)) {
		t.Error("Route should report false when nothing displayed")
	}
}

func TestRouteDisabled(t *testing.T) {
	primary := &fakeRenderer{}
	r := NewRouter(Config{ServerURL: testServer, BodyLimit: 50, Enabled: false}, primary, nil, nil)

	if r.Route([]byte(`{"title":"hi"}`)) {
		t.Error("disabled router should not display")
	}
	if primary.renderCount() != 0 {
		t.Error("disabled router still rendered")
	}
}

func TestClickForwardedExactlyOnce(t *testing.T) {
	primary := &fakeRenderer{}
	bus := ui.NewBus()
	defer bus.Close()

	clicks := make(chan ui.Payload, 4)
	bus.Listen(ui.ChanLifecycle, func(p ui.Payload) { clicks <- p })

	r := NewRouter(testRouterConfig(), primary, nil, bus)
	r.Route([]byte(`{"chatRoomID":"42"}`))

	// A misbehaving renderer fires the click three times.
	onClick := primary.clicks[0]
	onClick()
	onClick()
	onClick()

	first := <-clicks
	nc, ok := first.(ui.NotificationClicked)
	if !ok {
		t.Fatalf("unexpected payload %T", first)
	}
	if nc.TargetURL != testServer+"/chat/42" {
		t.Errorf("target = %q", nc.TargetURL)
	}

	select {
	case extra := <-clicks:
		t.Errorf("duplicate click forwarded: %+v", extra)
	default:
	}
}

func TestRouteAppliesBodyLimit(t *testing.T) {
	primary := &fakeRenderer{}
	r := NewRouter(testRouterConfig(), primary, nil, nil)

	long := strings.Repeat("x", 80)
	r.Route([]byte(`{"body":"` + long + `"}`))

	got := primary.renders[0].Body
	if got != strings.Repeat("x", 47)+"..." {
		t.Errorf("body not truncated: %q", got)
	}
}
