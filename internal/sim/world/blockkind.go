package world

// BlockKind classifies terrain blocks for the three questions the core asks:
// does it collide, can sight pass through it, and can raiders break it down.
type BlockKind uint8

const (
	BlockAir BlockKind = iota
	BlockSolid
	BlockWater
	BlockGlass
	BlockFence
	BlockBars
	BlockGrate
	BlockLattice
	BlockDoor
	BlockGate
)

var blockKindNames = [...]string{
	BlockAir:     "AIR",
	BlockSolid:   "SOLID",
	BlockWater:   "WATER",
	BlockGlass:   "GLASS",
	BlockFence:   "FENCE",
	BlockBars:    "BARS",
	BlockGrate:   "GRATE",
	BlockLattice: "LATTICE",
	BlockDoor:    "DOOR",
	BlockGate:    "GATE",
}

func (k BlockKind) String() string {
	if int(k) < len(blockKindNames) {
		return blockKindNames[k]
	}
	return "UNKNOWN"
}

// Collidable blocks occupy their cell for movement and sight purposes.
func (k BlockKind) Collidable() bool {
	switch k {
	case BlockAir, BlockWater:
		return false
	}
	return true
}

// Transparent blocks collide but do not block line-of-sight.
func (k BlockKind) Transparent() bool {
	switch k {
	case BlockGlass, BlockFence, BlockBars, BlockGrate, BlockLattice:
		return true
	}
	return false
}

// Destructible blocks are obstacles raiders may register against and break.
func (k BlockKind) Destructible() bool {
	return k == BlockDoor || k == BlockGate
}
