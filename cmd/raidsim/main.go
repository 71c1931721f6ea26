package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"

	"raidcraft.ai/internal/persistence/indexdb"
	persistlog "raidcraft.ai/internal/persistence/log"
	"raidcraft.ai/internal/sim/behavior"
	"raidcraft.ai/internal/sim/geo"
	"raidcraft.ai/internal/sim/sched"
	"raidcraft.ai/internal/sim/tuning"
	"raidcraft.ai/internal/sim/world"
	"raidcraft.ai/internal/sim/worldtest"
)

func main() {
	var (
		raiders    = flag.Int("raiders", 4, "number of raid agents to attach")
		seed       = flag.Int64("seed", 1337, "behavior rng seed")
		duration   = flag.Duration("duration", 2*time.Minute, "how long to run (0 = until signal)")
		configDir  = flag.String("configs", "./configs", "config directory")
		tuningPath = flag.String("tuning", "", "path to tuning.yaml (default: <configs>/tuning.yaml)")
		dataDir    = flag.String("data", "./data", "runtime data directory")
		disableDB  = flag.Bool("disable_db", false, "disable the sqlite raid index")
		pprofAddr  = flag.String("pprof", "", "pprof http listen address (empty to disable)")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[raidsim] ", log.LstdFlags|log.Lmicroseconds)

	tp := strings.TrimSpace(*tuningPath)
	if tp == "" {
		tp = filepath.Join(*configDir, "tuning.yaml")
	}
	cfg, err := tuning.Load(tp)
	if err != nil {
		logger.Printf("tuning: %v (using defaults)", err)
		cfg = tuning.Defaults()
	}

	_ = os.MkdirAll(*dataDir, 0o755)
	raidLog := persistlog.NewRaidLogger(*dataDir)
	defer raidLog.Close()

	var index *indexdb.RaidIndex
	if !*disableDB {
		index, err = indexdb.Open(filepath.Join(*dataDir, "index", "raids.db"))
		if err != nil {
			logger.Fatalf("open index: %v", err)
		}
		defer index.Close()
		logger.Printf("index session %s", index.Session())
	}

	if *pprofAddr != "" {
		mux := http.NewServeMux()
		mux.HandleFunc("/debug/pprof/", pprof.Index)
		mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
		go func() {
			if err := http.ListenAndServe(*pprofAddr, mux); err != nil {
				logger.Printf("pprof: %v", err)
			}
		}()
	}

	w := buildDemoWorld()

	s := sched.New(cfg, sched.Deps{
		Query:  w,
		Reg:    w,
		Bases:  w,
		Dmg:    w,
		Breach: w,
		Seed:   *seed,
		Events: func(ev behavior.Event) {
			if err := raidLog.WriteEvent(ev); err != nil {
				logger.Printf("raid log: %v", err)
			}
			if index != nil {
				_ = index.WriteEvent(ev)
			}
		},
	}, logger)

	base, _ := w.BaseCenter("owner_1")
	for i := 0; i < *raiders; i++ {
		id := "raider_" + uuid.NewString()[:8]
		pos := geo.Vec3{X: float64(-20 - 3*i), Y: 1, Z: float64(2 * i)}
		w.AddRaider(id, pos)
		s.Attach(sched.AttachRequest{
			AgentID: id,
			OwnerID: "owner_1",
			Pos:     pos,
			Goal:    base,
		})
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if *duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, *duration)
		defer cancel()
	}

	logger.Printf("running: raiders=%d tick=%dHz", *raiders, cfg.TickRateHz)
	if err := s.Run(ctx); err != nil {
		logger.Fatalf("run: %v", err)
	}

	totals := s.Stats().WindowTotals()
	logger.Printf("done: attached=%d detached=%d breaches=%d recoveries=%d target_lost=%d",
		totals.Attached, totals.Detached, totals.Breaches, totals.Recoveries, totals.TargetLost)
	for _, c := range w.Destroyed() {
		logger.Printf("breached obstacle at %s", fmtCell(c))
	}
	if index != nil && index.Dropped() > 0 {
		logger.Printf("index dropped %d events", index.Dropped())
	}
}

// buildDemoWorld assembles a small walled base with two doors, a defender
// inside and open terrain around it.
func buildDemoWorld() *worldtest.World {
	w := worldtest.NewFlatWorld(0)

	// Perimeter wall, 2 high, around the base at the origin.
	const r = 8
	for x := -r; x <= r; x++ {
		for _, z := range []int{-r, r} {
			w.FillBox(geo.Cell{X: x, Y: 1, Z: z}, geo.Cell{X: x, Y: 2, Z: z}, world.BlockSolid)
		}
	}
	for z := -r; z <= r; z++ {
		for _, x := range []int{-r, r} {
			w.FillBox(geo.Cell{X: x, Y: 1, Z: z}, geo.Cell{X: x, Y: 2, Z: z}, world.BlockSolid)
		}
	}
	// Doors punched into the west and north walls.
	w.FillBox(geo.Cell{X: -r, Y: 1, Z: 0}, geo.Cell{X: -r, Y: 2, Z: 0}, world.BlockDoor)
	w.FillBox(geo.Cell{X: 0, Y: 1, Z: -r}, geo.Cell{X: 0, Y: 2, Z: -r}, world.BlockGate)

	w.SetBaseCenter("owner_1", geo.Vec3{X: 0.5, Y: 1, Z: 0.5})
	w.AddEntrance("owner_1", geo.Vec3{X: float64(-r) + 0.5, Y: 1, Z: 0.5})
	w.AddEntrance("owner_1", geo.Vec3{X: 0.5, Y: 1, Z: float64(-r) + 0.5})
	w.AddPlayer("owner_1", geo.Vec3{X: 2.5, Y: 1, Z: 2.5})
	return w
}

func fmtCell(c geo.Cell) string {
	return fmt.Sprintf("(%d,%d,%d)", c.X, c.Y, c.Z)
}
