package tuning

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"
)

func findRepoRoot(t *testing.T) string {
	t.Helper()
	dir, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			t.Fatalf("could not find repo root from %s", dir)
		}
		dir = parent
	}
}

func TestDefaults_Sanity(t *testing.T) {
	d := Defaults()
	if d.TickRateHz <= 0 {
		t.Fatalf("tick rate: %d", d.TickRateHz)
	}
	if d.Nav.MaxNodes != 1000 {
		t.Fatalf("max nodes: %d", d.Nav.MaxNodes)
	}
	if d.Behavior.InterruptRadius >= d.Behavior.DetectRadius {
		t.Fatal("interrupt radius must be tighter than detect radius")
	}
	if d.Behavior.DoorPriorityRadius >= d.Behavior.DetectRadius {
		t.Fatal("door priority radius should sit inside the detect radius")
	}
	if d.Behavior.RecoverMinDistance >= d.Behavior.RecoverMaxDistance {
		t.Fatal("recovery distance range inverted")
	}
	if d.Contention.MaxAttackers <= 0 {
		t.Fatalf("max attackers: %d", d.Contention.MaxAttackers)
	}
}

func TestLoad_OverlaysDefaults(t *testing.T) {
	p := filepath.Join(t.TempDir(), "tuning.yaml")
	body := []byte("tick_rate_hz: 30\nbehavior:\n  detect_radius: 32\n")
	if err := os.WriteFile(p, body, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	got, err := Load(p)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.TickRateHz != 30 {
		t.Fatalf("tick rate not overlaid: %d", got.TickRateHz)
	}
	if got.Behavior.DetectRadius != 32 {
		t.Fatalf("detect radius not overlaid: %v", got.Behavior.DetectRadius)
	}
	// Untouched keys keep their defaults.
	if got.Behavior.DoorPriorityRadius != Defaults().Behavior.DoorPriorityRadius {
		t.Fatalf("default clobbered: %v", got.Behavior.DoorPriorityRadius)
	}
	if got.Sched.RefreshQueueSize != Defaults().Sched.RefreshQueueSize {
		t.Fatalf("default clobbered: %v", got.Sched.RefreshQueueSize)
	}
}

func TestLoad_MissingFileKeepsDefaults(t *testing.T) {
	got, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err == nil {
		t.Fatal("want an error for a missing file")
	}
	if got.TickRateHz != Defaults().TickRateHz {
		t.Fatal("missing file should still return defaults")
	}
}

func TestLoad_RejectsMalformedYAML(t *testing.T) {
	p := filepath.Join(t.TempDir(), "tuning.yaml")
	if err := os.WriteFile(p, []byte("behavior: [not, a, map]"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := Load(p); err == nil {
		t.Fatal("want an unmarshal error")
	}
}

// TestShippedConfig_MatchesSchema validates configs/tuning.yaml against
// schemas/tuning.schema.json, the same shape the Load path consumes.
func TestShippedConfig_MatchesSchema(t *testing.T) {
	root := findRepoRoot(t)

	schema, err := jsonschema.Compile(filepath.Join(root, "schemas", "tuning.schema.json"))
	if err != nil {
		t.Fatalf("compile schema: %v", err)
	}

	raw, err := os.ReadFile(filepath.Join(root, "configs", "tuning.yaml"))
	if err != nil {
		t.Fatalf("read config: %v", err)
	}
	var viaYAML any
	if err := yaml.Unmarshal(raw, &viaYAML); err != nil {
		t.Fatalf("yaml: %v", err)
	}
	// Round-trip through JSON so numbers carry JSON types for validation.
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(viaYAML); err != nil {
		t.Fatalf("encode: %v", err)
	}
	var doc any
	if err := json.NewDecoder(&buf).Decode(&doc); err != nil {
		t.Fatalf("decode: %v", err)
	}

	if err := schema.Validate(doc); err != nil {
		t.Fatalf("shipped tuning.yaml violates its schema: %v", err)
	}

	// And the shipped file must load cleanly.
	cfg, err := Load(filepath.Join(root, "configs", "tuning.yaml"))
	if err != nil {
		t.Fatalf("load shipped config: %v", err)
	}
	if cfg.TickRateHz != 20 {
		t.Fatalf("shipped tick rate: %d", cfg.TickRateHz)
	}
}
