package source

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"piedial/internal/config"
	"piedial/internal/model"
)

func calendar(events ...string) string {
	var b strings.Builder
	b.WriteString("BEGIN:VCALENDAR\r\nVERSION:2.0\r\nPRODID:-//piedial//test//EN\r\n")
	for _, e := range events {
		b.WriteString(e)
	}
	b.WriteString("END:VCALENDAR\r\n")
	return b.String()
}

func vevent(uid, summary, start, end string) string {
	return "BEGIN:VEVENT\r\nUID:" + uid + "\r\nSUMMARY:" + summary +
		"\r\nDTSTART:" + start + "\r\nDTEND:" + end + "\r\nEND:VEVENT\r\n"
}

func writeFile(t *testing.T, path, data string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatal(err)
	}
}

func testConfig(t *testing.T, path string) *config.Config {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Timezone = "UTC"
	cfg.CacheDir = filepath.Join(t.TempDir(), "cache")
	cfg.ExcludeTitles = []string{"BOL"}
	cfg.Sources = []config.SourceConfig{{ID: "home", Path: path, Color: "#009688"}}
	cfg.Normalize()
	return cfg
}

var fixedNow = time.Date(2025, 11, 24, 11, 0, 0, 0, time.UTC)

func titles(events []model.Event) string {
	var out []string
	for _, ev := range events {
		out = append(out, ev.Title())
	}
	return strings.Join(out, ",")
}

func TestDemoEvents(t *testing.T) {
	morning := DemoEvents(time.Date(2025, 11, 24, 9, 0, 0, 0, time.UTC))
	evening := DemoEvents(time.Date(2025, 11, 24, 21, 0, 0, 0, time.UTC))
	if len(morning) != 6 || len(evening) != 6 {
		t.Fatalf("len = %d, %d", len(morning), len(evening))
	}

	ids := map[string]bool{}
	for i := range morning {
		ids[morning[i].ID()] = true
		if morning[i].Title() != evening[i].Title() {
			t.Errorf("titles differ at %d", i)
		}
		if morning[i].StartAngle() != evening[i].StartAngle() {
			t.Errorf("%s: angles differ between halves", morning[i].Title())
		}
		if evening[i].Start().Hour() < 12 {
			t.Errorf("%s: evening start %v", evening[i].Title(), evening[i].Start())
		}
	}
	if len(ids) != 6 {
		t.Errorf("ids not unique: %v", ids)
	}
	if got := morning[0]; got.Title() != "Running" || got.Start().Hour() != 6 || model.HexColor(got.Color()) != "#ee6161" {
		t.Errorf("first demo event = %v", got)
	}
}

func TestStaticProvider(t *testing.T) {
	p := NewStatic(DemoEvents(fixedNow))
	events := p.Snapshot()
	if len(events) != 6 || events[0].Title() != "Lunch at this restaurant" {
		t.Errorf("static snapshot not sorted: %s", titles(events))
	}
	if err := p.Refresh(context.Background()); err != nil {
		t.Errorf("Refresh: %v", err)
	}
	if len(p.Snapshot()) != 6 {
		t.Error("static refresh changed the snapshot")
	}
}

func TestRefreshFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "home.ics")
	writeFile(t, path, calendar(
		vevent("a", "Lunch", "20251124T120000Z", "20251124T133000Z"),
		vevent("b", "BOL review", "20251124T140000Z", "20251124T150000Z"),
		vevent("c", "Gone", "20251124T080000Z", "20251124T090000Z"),
		vevent("d", "Tomorrow", "20251125T120000Z", "20251125T130000Z"),
	))

	p := New(testConfig(t, path))
	p.SetClock(func() time.Time { return fixedNow })

	if got := p.Snapshot(); len(got) != 0 {
		t.Fatalf("snapshot before refresh = %v", got)
	}
	if err := p.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh: %v", err)
	}

	events := p.Snapshot()
	if titles(events) != "Lunch" {
		t.Fatalf("events = %s", titles(events))
	}
	if model.HexColor(events[0].Color()) != "#009688" {
		t.Errorf("color = %v", events[0].Color())
	}
	cur := p.Current()
	if cur.Excluded != 1 || !cur.RangeStart.Equal(fixedNow) || cur.RangeEnd.Sub(cur.RangeStart) != 12*time.Hour {
		t.Errorf("snapshot meta = %+v", cur)
	}
}

func TestRefreshKeepsLastGoodOnFailure(t *testing.T) {
	path := filepath.Join(t.TempDir(), "home.ics")
	writeFile(t, path, calendar(vevent("a", "Lunch", "20251124T120000Z", "20251124T133000Z")))

	p := New(testConfig(t, path))
	p.SetClock(func() time.Time { return fixedNow })
	if err := p.Refresh(context.Background()); err != nil {
		t.Fatal(err)
	}
	before := p.Snapshot()

	writeFile(t, path, "not a calendar")
	if err := p.Refresh(context.Background()); err == nil {
		t.Error("expected parse error")
	}
	if titles(p.Snapshot()) != "Lunch" {
		t.Errorf("events after failure = %s", titles(p.Snapshot()))
	}

	if err := os.Remove(path); err != nil {
		t.Fatal(err)
	}
	if err := p.Refresh(context.Background()); err == nil {
		t.Error("expected fetch error")
	}
	if titles(p.Snapshot()) != "Lunch" || len(before) != 1 {
		t.Errorf("events after missing file = %s", titles(p.Snapshot()))
	}
}

func TestStartReloadsChangedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "home.ics")
	writeFile(t, path, calendar(vevent("a", "Lunch", "20251124T120000Z", "20251124T133000Z")))

	p := New(testConfig(t, path))
	p.SetClock(func() time.Time { return fixedNow })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Start(ctx) }()
	defer func() {
		cancel()
		if err := <-done; err != nil {
			t.Errorf("Start: %v", err)
		}
	}()

	waitFor(t, func() bool { return titles(p.Snapshot()) == "Lunch" })

	updated := calendar(
		vevent("a", "Lunch", "20251124T120000Z", "20251124T133000Z"),
		vevent("b", "Review", "20251124T150000Z", "20251124T160000Z"),
	)
	// The watcher is registered after the first refresh; rewrite the file
	// now and then until the change is picked up.
	var lastWrite time.Time
	waitFor(t, func() bool {
		if titles(p.Snapshot()) == "Lunch,Review" {
			return true
		}
		if time.Since(lastWrite) > 500*time.Millisecond {
			writeFile(t, path, updated)
			lastWrite = time.Now()
		}
		return false
	})
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met before deadline")
		}
		time.Sleep(50 * time.Millisecond)
	}
}

func TestStartRejectsBadSchedule(t *testing.T) {
	cfg := testConfig(t, filepath.Join(t.TempDir(), "x.ics"))
	cfg.RefreshCron = "never"
	p := New(cfg)
	if err := p.Start(context.Background()); err == nil {
		t.Error("expected schedule error")
	}
}
