package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/klauspost/compress/zstd"

	"raidcraft.ai/internal/sim/behavior"
)

type agentSummary struct {
	first, last behavior.Event
	events      int
	states      int
	breaches    int
	recoveries  int
	lost        int
}

func main() {
	var (
		raidsDir = flag.String("raids", "./data/raids", "dir containing raids-*.jsonl.zst")
		agentID  = flag.String("agent", "", "print the full timeline for one agent")
		evType   = flag.String("type", "", "filter timeline by event type")
	)
	flag.Parse()

	files, err := listRaidFiles(*raidsDir)
	if err != nil {
		fmt.Fprintln(os.Stderr, "list raids:", err)
		os.Exit(1)
	}
	if len(files) == 0 {
		fmt.Fprintln(os.Stderr, "no raid logs found in", *raidsDir)
		os.Exit(1)
	}

	agents := map[string]*agentSummary{}
	total := 0
	for _, path := range files {
		if err := readFile(path, func(ev behavior.Event) {
			total++
			if *agentID != "" {
				if ev.AgentID != *agentID {
					return
				}
				if *evType != "" && ev.Type != *evType {
					return
				}
				printEvent(ev)
				return
			}
			s := agents[ev.AgentID]
			if s == nil {
				s = &agentSummary{first: ev}
				agents[ev.AgentID] = s
			}
			s.last = ev
			s.events++
			switch ev.Type {
			case behavior.EventState:
				s.states++
			case behavior.EventDoorDestroyed:
				s.breaches++
			case behavior.EventStuckRecover:
				s.recoveries++
			case behavior.EventTargetLost:
				s.lost++
			}
		}); err != nil {
			fmt.Fprintln(os.Stderr, "read:", err)
			os.Exit(1)
		}
	}

	if *agentID != "" {
		return
	}

	ids := make([]string, 0, len(agents))
	for id := range agents {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		s := agents[id]
		dur := s.last.Time.Sub(s.first.Time).Round(100 * time.Millisecond)
		fmt.Printf("%s events=%d states=%d breaches=%d recoveries=%d target_lost=%d span=%s end=%s\n",
			id, s.events, s.states, s.breaches, s.recoveries, s.lost, dur, s.last.Type)
	}
	fmt.Printf("total: %d events across %d agents in %d files\n", total, len(agents), len(files))
}

func printEvent(ev behavior.Event) {
	line := fmt.Sprintf("%s %-14s", ev.Time.Format("15:04:05.000"), ev.Type)
	if ev.State != "" {
		line += " state=" + ev.State
	}
	line += fmt.Sprintf(" pos=(%.1f,%.1f,%.1f)", ev.Pos.X, ev.Pos.Y, ev.Pos.Z)
	if ev.Detail != "" {
		line += " " + ev.Detail
	}
	fmt.Println(line)
}

func listRaidFiles(dir string) ([]string, error) {
	ents, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(ents))
	for _, e := range ents {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if strings.HasPrefix(name, "raids-") && strings.HasSuffix(name, ".jsonl.zst") {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	out := make([]string, 0, len(names))
	for _, name := range names {
		out = append(out, filepath.Join(dir, name))
	}
	return out, nil
}

func readFile(path string, fn func(behavior.Event)) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return err
	}
	defer dec.Close()

	sc := bufio.NewScanner(dec)
	sc.Buffer(make([]byte, 64*1024), 8*1024*1024)
	for sc.Scan() {
		var ev behavior.Event
		if err := json.Unmarshal(sc.Bytes(), &ev); err != nil {
			return fmt.Errorf("%s: unmarshal: %w", filepath.Base(path), err)
		}
		fn(ev)
	}
	return sc.Err()
}
