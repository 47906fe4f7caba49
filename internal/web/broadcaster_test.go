package web

import (
	"encoding/json"
	"testing"
	"time"
)

var streamTime = time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

func newTestBroadcaster() *StatusBroadcaster {
	b := NewStatusBroadcaster()
	b.now = func() time.Time { return streamTime }
	return b
}

// event is StatusEvent with a decodable payload.
type event struct {
	Time  string          `json:"t"`
	Type  string          `json:"type"`
	Level string          `json:"l"`
	Msg   string          `json:"msg"`
	Data  json.RawMessage `json:"data"`
}

func nextEvent(t *testing.T, ch <-chan string) event {
	t.Helper()
	select {
	case msg := <-ch:
		var evt event
		if err := json.Unmarshal([]byte(msg), &evt); err != nil {
			t.Fatalf("unmarshal %q: %v", msg, err)
		}
		return evt
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for event")
	}
	return event{}
}

func noEvent(t *testing.T, ch <-chan string) {
	t.Helper()
	select {
	case msg := <-ch:
		t.Errorf("unexpected event %s", msg)
	case <-time.After(50 * time.Millisecond):
	}
}

// ---------- event shapes ----------

func TestBroadcaster_Events(t *testing.T) {
	cases := []struct {
		name  string
		send  func(b *StatusBroadcaster)
		typ   string
		level string
		msg   string
		data  string
	}{
		{"log", func(b *StatusBroadcaster) { b.Broadcast("warn", "flat range") }, EventLog, "warn", "flat range", ""},
		{"log_info", func(b *StatusBroadcaster) { b.BroadcastMsg("Sensor on") }, EventLog, "info", "Sensor on", ""},
		{"status", func(b *StatusBroadcaster) { b.Publish(EventStatus, "offline") }, EventStatus, "", "", `"offline"`},
		{"state", func(b *StatusBroadcaster) { b.Publish(EventState, "burst") }, EventState, "", "", `"burst"`},
		{"progress", func(b *StatusBroadcaster) {
			b.Publish(EventProgress, map[string]int{"taken": 2, "target": 5})
		}, EventProgress, "", "", `{"target":5,"taken":2}`},
		{"capture", func(b *StatusBroadcaster) {
			b.Publish(EventCapture, GalleryItem{ID: "img-1", Seq: 1, Time: streamTime, Kind: "single", Index: 1, Total: 1, URL: "/gallery/img-1.png"})
		}, EventCapture, "", "", `{"id":"img-1","seq":1,"t":"2024-05-01T10:00:00Z","kind":"single","index":1,"total":1,"url":"/gallery/img-1.png"}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			b := newTestBroadcaster()
			ch, unsub := b.Subscribe()
			defer unsub()

			tc.send(b)
			evt := nextEvent(t, ch)
			if evt.Type != tc.typ || evt.Level != tc.level || evt.Msg != tc.msg {
				t.Errorf("event = %+v, want type %q level %q msg %q", evt, tc.typ, tc.level, tc.msg)
			}
			if string(evt.Data) != tc.data {
				t.Errorf("data = %s, want %s", evt.Data, tc.data)
			}
			if evt.Time != "2024-05-01T10:00:00Z" {
				t.Errorf("time = %q", evt.Time)
			}
		})
	}
}

// ---------- subscribers ----------

func TestBroadcaster_FanOut(t *testing.T) {
	b := newTestBroadcaster()
	ch1, unsub1 := b.Subscribe()
	defer unsub1()
	ch2, unsub2 := b.Subscribe()
	defer unsub2()

	b.Publish(EventState, "idle")
	for _, ch := range []<-chan string{ch1, ch2} {
		if evt := nextEvent(t, ch); evt.Type != EventState {
			t.Errorf("event = %+v", evt)
		}
	}
}

func TestBroadcaster_Unsubscribe(t *testing.T) {
	b := newTestBroadcaster()
	ch, unsub := b.Subscribe()
	unsub()
	unsub() // no double close

	if _, ok := <-ch; ok {
		t.Error("channel should be closed")
	}
	b.Publish(EventStatus, "online") // no send on closed channel
}

func TestBroadcaster_SlowClientDropsEvents(t *testing.T) {
	b := newTestBroadcaster()
	ch, unsub := b.Subscribe()
	defer unsub()

	for i := 0; i < 80; i++ {
		b.Publish(EventProgress, map[string]int{"taken": i})
	}

	count := 0
	for len(ch) > 0 {
		<-ch
		count++
	}
	if count != 64 {
		t.Errorf("buffered = %d, want 64", count)
	}
}

// ---------- debug output bridge ----------

func TestLevelOf(t *testing.T) {
	cases := []struct {
		line, want string
	}{
		{"[ThermoGo] [ERROR] bus", "error"},
		{"[ThermoGo] [WARN] flat range", "warn"},
		{"[ThermoGo] [INFO] Sensor started", "info"},
		{"[ThermoGo] [LIVE] 2/3 pictures taken", "info"},
		{"plain text", "info"},
	}
	for _, tc := range cases {
		if got := levelOf(tc.line); got != tc.want {
			t.Errorf("levelOf(%q) = %q, want %q", tc.line, got, tc.want)
		}
	}
}

func TestBroadcastWriter(t *testing.T) {
	b := newTestBroadcaster()
	ch, unsub := b.Subscribe()
	defer unsub()

	w := BroadcastWriter(b)
	in := "  [ThermoGo] [WARN] flat range  \n\n[ThermoGo] [ERROR] bus\n"
	n, err := w.Write([]byte(in))
	if err != nil || n != len(in) {
		t.Fatalf("Write = %d, %v; want %d, nil", n, err, len(in))
	}

	want := []event{
		{Type: EventLog, Level: "warn", Msg: "[ThermoGo] [WARN] flat range"},
		{Type: EventLog, Level: "error", Msg: "[ThermoGo] [ERROR] bus"},
	}
	for i, exp := range want {
		evt := nextEvent(t, ch)
		if evt.Type != exp.Type || evt.Level != exp.Level || evt.Msg != exp.Msg {
			t.Errorf("line %d = %+v, want %+v", i, evt, exp)
		}
	}
	noEvent(t, ch)
}

func TestBroadcastWriter_BlankWrite(t *testing.T) {
	b := newTestBroadcaster()
	ch, unsub := b.Subscribe()
	defer unsub()

	BroadcastWriter(b).Write([]byte("   \n"))
	noEvent(t, ch)
}
