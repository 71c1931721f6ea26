package target_test

import (
	"testing"
	"time"

	"raidcraft.ai/internal/sim/geo"
	"raidcraft.ai/internal/sim/target"
	"raidcraft.ai/internal/sim/world"
	"raidcraft.ai/internal/sim/worldtest"
)

func newSelector(w *worldtest.World) *target.Selector {
	s := target.NewSelector(w, w, w)
	s.SetClock(func() time.Time { return time.Unix(1000, 0) })
	return s
}

func baseRequest(from geo.Vec3) target.Request {
	return target.Request{From: from, OwnerID: "owner_1", SelfID: "self"}
}

func TestBestTarget_PlayerOutranksStaticPoints(t *testing.T) {
	w := worldtest.NewFlatWorld(0)
	w.SetBaseCenter("owner_1", geo.Vec3{X: 2, Y: 1, Z: 2})
	w.AddEntrance("owner_1", geo.Vec3{X: 1, Y: 1, Z: 1})
	w.AddPlayer("p1", geo.Vec3{X: 8, Y: 1, Z: 0})

	got := newSelector(w).BestTarget(baseRequest(geo.Vec3{Y: 1}))
	if got == nil || got.Kind != target.KindPlayer || got.SourceID != "p1" {
		t.Fatalf("want player p1, got %+v", got)
	}
}

func TestBestTarget_AssignedPlayerWinsTies(t *testing.T) {
	w := worldtest.NewFlatWorld(0)
	w.AddPlayer("p_far", geo.Vec3{X: 6, Y: 1, Z: 0})
	w.AddPlayer("p_near", geo.Vec3{X: 4, Y: 1, Z: 0})

	sel := newSelector(w)
	req := baseRequest(geo.Vec3{Y: 1})
	req.AssignedID = "p_far"
	got := sel.BestTarget(req)
	if got == nil || got.SourceID != "p_far" {
		t.Fatalf("assigned bonus should beat distance tiebreak, got %+v", got)
	}

	req.AssignedID = ""
	got = sel.BestTarget(req)
	if got == nil || got.SourceID != "p_near" {
		t.Fatalf("without assignment the closer player wins, got %+v", got)
	}
}

func TestBestTarget_SkipsDeadAndDisconnected(t *testing.T) {
	w := worldtest.NewFlatWorld(0)
	w.PutActor(world.Actor{ID: "dead", Kind: world.ActorPlayer, Pos: geo.Vec3{X: 3, Y: 1}, Connected: true})
	w.PutActor(world.Actor{ID: "offline", Kind: world.ActorPlayer, Pos: geo.Vec3{X: 3, Y: 1}, Alive: true})
	w.SetBaseCenter("owner_1", geo.Vec3{X: 5, Y: 1, Z: 5})

	got := newSelector(w).BestTarget(baseRequest(geo.Vec3{Y: 1}))
	if got == nil || got.Kind != target.KindBaseCenter {
		t.Fatalf("only the base center is valid, got %+v", got)
	}
}

func TestBestTarget_MaxRangeFilters(t *testing.T) {
	w := worldtest.NewFlatWorld(0)
	w.AddPlayer("p1", geo.Vec3{X: 30, Y: 1, Z: 0})
	w.SetBaseCenter("owner_1", geo.Vec3{X: 4, Y: 1, Z: 0})

	sel := newSelector(w)
	req := baseRequest(geo.Vec3{Y: 1})
	req.MaxRange = 10
	got := sel.BestTarget(req)
	if got == nil || got.Kind != target.KindBaseCenter {
		t.Fatalf("player beyond max range must be filtered, got %+v", got)
	}
}

func TestBestTarget_ExcludesSelfAndDeadRaiders(t *testing.T) {
	w := worldtest.NewFlatWorld(0)
	w.AddRaider("self", geo.Vec3{X: 0, Y: 1})
	w.PutActor(world.Actor{ID: "r_dead", Kind: world.ActorRaider, Pos: geo.Vec3{X: 2, Y: 1}})
	w.AddRaider("r_live", geo.Vec3{X: 4, Y: 1})

	got := newSelector(w).BestTarget(baseRequest(geo.Vec3{Y: 1}))
	if got == nil || got.Kind != target.KindRaider || got.SourceID != "r_live" {
		t.Fatalf("want live rival raider, got %+v", got)
	}
}

func TestBestTarget_PatrolPointOnlyWhenNothingElse(t *testing.T) {
	w := worldtest.NewFlatWorld(0)

	got := newSelector(w).BestTarget(baseRequest(geo.Vec3{Y: 1}))
	if got == nil || got.Kind != target.KindPatrolPoint {
		t.Fatalf("empty world should fall back to patrol, got %+v", got)
	}

	w.SetBaseCenter("owner_1", geo.Vec3{X: 3, Y: 1, Z: 3})
	got = newSelector(w).BestTarget(baseRequest(geo.Vec3{Y: 1}))
	if got == nil || got.Kind != target.KindBaseCenter {
		t.Fatalf("a known center suppresses patrol points, got %+v", got)
	}
}

func TestTarget_StaticValidityExpires(t *testing.T) {
	w := worldtest.NewFlatWorld(0)
	created := time.Unix(1000, 0)
	tg := &target.Target{Kind: target.KindBaseEntrance, CreatedAt: created}

	if !tg.IsValid(created.Add(10*time.Second), w) {
		t.Fatal("fresh static target should be valid")
	}
	if tg.IsValid(created.Add(31*time.Second), w) {
		t.Fatal("static target should expire after its validity window")
	}
}

func TestTarget_RefreshTracksEntity(t *testing.T) {
	w := worldtest.NewFlatWorld(0)
	w.AddPlayer("p1", geo.Vec3{X: 1, Y: 1})
	tg := &target.Target{Kind: target.KindPlayer, SourceID: "p1", Pos: geo.Vec3{X: 1, Y: 1}}

	w.AddPlayer("p1", geo.Vec3{X: 9, Y: 1, Z: 4})
	tg.Refresh(w)
	if tg.Pos.X != 9 || tg.Pos.Z != 4 {
		t.Fatalf("refresh should pull the live position, got %+v", tg.Pos)
	}
}

func TestFallback_LostPlayerRoutesToNearestEntrance(t *testing.T) {
	w := worldtest.NewFlatWorld(0)
	w.AddEntrance("owner_1", geo.Vec3{X: 40, Y: 1, Z: 0})
	w.AddEntrance("owner_1", geo.Vec3{X: 22, Y: 1, Z: 0})
	w.SetBaseCenter("owner_1", geo.Vec3{X: 30, Y: 1, Z: 0})

	lost := &target.Target{Kind: target.KindPlayer, SourceID: "gone"}
	got := newSelector(w).Fallback(lost, geo.Vec3{X: 20, Y: 1}, baseRequest(geo.Vec3{X: 20, Y: 1}))
	if got == nil || got.Kind != target.KindBaseEntrance || got.Pos.X != 22 {
		t.Fatalf("want nearest entrance at x=22, got %+v", got)
	}
}

func TestFallback_ShortRetryPrefersClosePlayer(t *testing.T) {
	w := worldtest.NewFlatWorld(0)
	w.AddPlayer("p1", geo.Vec3{X: 5, Y: 1, Z: 0})
	w.SetBaseCenter("owner_1", geo.Vec3{X: 50, Y: 1, Z: 0})

	got := newSelector(w).Fallback(nil, geo.Vec3{Y: 1}, baseRequest(geo.Vec3{Y: 1}))
	if got == nil || got.Kind != target.KindPlayer || got.SourceID != "p1" {
		t.Fatalf("a player inside the retry range wins, got %+v", got)
	}
}

func TestFallback_DefaultsToBaseCenter(t *testing.T) {
	w := worldtest.NewFlatWorld(0)
	w.SetBaseCenter("owner_1", geo.Vec3{X: 30, Y: 1, Z: 0})

	lost := &target.Target{Kind: target.KindBaseEntrance}
	got := newSelector(w).Fallback(lost, geo.Vec3{Y: 1}, baseRequest(geo.Vec3{Y: 1}))
	if got == nil || got.Kind != target.KindBaseCenter {
		t.Fatalf("want base center fallback, got %+v", got)
	}
}

func TestVisible_WallsBlockTransparentsDoNot(t *testing.T) {
	w := worldtest.NewFlatWorld(0)
	a := geo.Vec3{X: 0.5, Y: 2.5, Z: 0.5}
	b := geo.Vec3{X: 10.5, Y: 2.5, Z: 0.5}

	if !target.Visible(w, a, b) {
		t.Fatal("open air should be visible")
	}

	w.FillBox(geo.Cell{X: 5, Y: 1, Z: -1}, geo.Cell{X: 5, Y: 4, Z: 1}, world.BlockSolid)
	if target.Visible(w, a, b) {
		t.Fatal("solid wall should block sight")
	}

	w.FillBox(geo.Cell{X: 5, Y: 1, Z: -1}, geo.Cell{X: 5, Y: 4, Z: 1}, world.BlockGlass)
	if !target.Visible(w, a, b) {
		t.Fatal("glass should not block sight")
	}

	w.FillBox(geo.Cell{X: 5, Y: 1, Z: -1}, geo.Cell{X: 5, Y: 4, Z: 1}, world.BlockBars)
	if !target.Visible(w, a, b) {
		t.Fatal("bars should not block sight")
	}
}
