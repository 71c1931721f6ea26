package mathx

import "testing"

func TestFloorDiv(t *testing.T) {
	cases := []struct {
		a, b, div int
	}{
		{7, 4, 1},
		{-1, 4, -1},
		{-4, 4, -1},
		{-5, 4, -2},
	}
	for _, c := range cases {
		if got := FloorDiv(c.a, c.b); got != c.div {
			t.Fatalf("FloorDiv(%d,%d): want %d, got %d", c.a, c.b, c.div, got)
		}
	}
}

func TestHash3_SpreadsNearbyInputs(t *testing.T) {
	seen := map[uint64]struct{}{}
	for x := -2; x <= 2; x++ {
		for z := -2; z <= 2; z++ {
			h := Hash3(42, x, 0, z)
			if _, dup := seen[h]; dup {
				t.Fatalf("collision at (%d,0,%d)", x, z)
			}
			seen[h] = struct{}{}
		}
	}
	if Hash3(1, 3, 4, 5) == Hash3(2, 3, 4, 5) {
		t.Fatal("seed should perturb the hash")
	}
}
