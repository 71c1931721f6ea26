package log

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/klauspost/compress/zstd"

	"raidcraft.ai/internal/sim/behavior"
	"raidcraft.ai/internal/sim/geo"
)

func readRaidLog(t *testing.T, dataDir string) []behavior.Event {
	t.Helper()
	ents, err := os.ReadDir(filepath.Join(dataDir, "raids"))
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	var events []behavior.Event
	for _, e := range ents {
		if !strings.HasSuffix(e.Name(), ".jsonl.zst") {
			t.Fatalf("unexpected file %s", e.Name())
		}
		f, err := os.Open(filepath.Join(dataDir, "raids", e.Name()))
		if err != nil {
			t.Fatalf("open: %v", err)
		}
		dec, err := zstd.NewReader(f)
		if err != nil {
			t.Fatalf("zstd: %v", err)
		}
		sc := bufio.NewScanner(dec)
		for sc.Scan() {
			var ev behavior.Event
			if err := json.Unmarshal(sc.Bytes(), &ev); err != nil {
				t.Fatalf("unmarshal %q: %v", sc.Text(), err)
			}
			events = append(events, ev)
		}
		if err := sc.Err(); err != nil {
			t.Fatalf("scan: %v", err)
		}
		dec.Close()
		_ = f.Close()
	}
	return events
}

func TestRaidLogger_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	l := NewRaidLogger(dir)

	want := []behavior.Event{
		{
			Time:    time.Unix(1000, 0).UTC(),
			AgentID: "r1",
			Type:    behavior.EventState,
			State:   "BREACHING",
			Pos:     geo.Vec3{X: 1.5, Y: 1, Z: 2.5},
		},
		{
			Time:    time.Unix(1001, 0).UTC(),
			AgentID: "r1",
			Type:    behavior.EventDoorDestroyed,
			State:   "BREACHING",
			Pos:     geo.Vec3{X: 2.5, Y: 1, Z: 2.5},
			Detail:  "3,1,2",
		},
	}
	for _, ev := range want {
		if err := l.WriteEvent(ev); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	if err := l.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	got := readRaidLog(t, dir)
	if len(got) != len(want) {
		t.Fatalf("events: want %d, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i].AgentID != want[i].AgentID || got[i].Type != want[i].Type ||
			got[i].Detail != want[i].Detail || got[i].Pos != want[i].Pos {
			t.Fatalf("event %d: want %+v, got %+v", i, want[i], got[i])
		}
		if !got[i].Time.Equal(want[i].Time) {
			t.Fatalf("event %d time: want %v, got %v", i, want[i].Time, got[i].Time)
		}
	}
}

func TestRaidLogger_CloseWithoutWrites(t *testing.T) {
	l := NewRaidLogger(t.TempDir())
	if err := l.Close(); err != nil {
		t.Fatalf("close of an idle logger: %v", err)
	}
}

func TestJSONLZstdWriter_AppendsAcrossReopen(t *testing.T) {
	dir := t.TempDir()

	w := NewJSONLZstdWriter(dir, "raids")
	if err := w.Write(map[string]int{"n": 1}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	w = NewJSONLZstdWriter(dir, "raids")
	if err := w.Write(map[string]int{"n": 2}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	ents, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	if len(ents) != 1 {
		t.Fatalf("reopen within the hour should append, files=%d", len(ents))
	}

	f, err := os.Open(filepath.Join(dir, ents[0].Name()))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()
	dec, err := zstd.NewReader(f)
	if err != nil {
		t.Fatalf("zstd: %v", err)
	}
	defer dec.Close()

	lines := 0
	sc := bufio.NewScanner(dec)
	for sc.Scan() {
		lines++
	}
	if err := sc.Err(); err != nil {
		t.Fatalf("scan: %v", err)
	}
	if lines != 2 {
		t.Fatalf("want 2 appended lines, got %d", lines)
	}
}
