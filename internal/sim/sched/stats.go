package sched

// StatsBucket counts behavior outcomes inside one rolling window slot.
type StatsBucket struct {
	Attached   int
	Detached   int
	Breaches   int
	Recoveries int
	TargetLost int
}

// Stats keeps a rolling window of bucketed counters, rotated by tick. Only
// the scheduler loop goroutine touches it.
type Stats struct {
	bucketTicks uint64
	buckets     []StatsBucket
	curIdx      int
	curBase     uint64
}

func NewStats(bucketTicks, windowTicks uint64) *Stats {
	if bucketTicks == 0 {
		bucketTicks = 300
	}
	if windowTicks < bucketTicks {
		windowTicks = bucketTicks
	}
	n := int(windowTicks / bucketTicks)
	if n < 1 {
		n = 1
	}
	return &Stats{
		bucketTicks: bucketTicks,
		buckets:     make([]StatsBucket, n),
	}
}

func (s *Stats) rotate(nowTick uint64) {
	for nowTick >= s.curBase+s.bucketTicks {
		s.curIdx = (s.curIdx + 1) % len(s.buckets)
		s.buckets[s.curIdx] = StatsBucket{}
		s.curBase += s.bucketTicks
	}
}

func (s *Stats) RecordAttach(nowTick uint64) {
	s.rotate(nowTick)
	s.buckets[s.curIdx].Attached++
}

func (s *Stats) RecordDetach(nowTick uint64) {
	s.rotate(nowTick)
	s.buckets[s.curIdx].Detached++
}

func (s *Stats) RecordBreach(nowTick uint64) {
	s.rotate(nowTick)
	s.buckets[s.curIdx].Breaches++
}

func (s *Stats) RecordRecovery(nowTick uint64) {
	s.rotate(nowTick)
	s.buckets[s.curIdx].Recoveries++
}

func (s *Stats) RecordTargetLost(nowTick uint64) {
	s.rotate(nowTick)
	s.buckets[s.curIdx].TargetLost++
}

// WindowTotals sums every bucket in the window.
func (s *Stats) WindowTotals() StatsBucket {
	var t StatsBucket
	for _, b := range s.buckets {
		t.Attached += b.Attached
		t.Detached += b.Detached
		t.Breaches += b.Breaches
		t.Recoveries += b.Recoveries
		t.TargetLost += b.TargetLost
	}
	return t
}
