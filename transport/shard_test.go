package transport

import "testing"

func TestShard(t *testing.T) {
	cases := []struct {
		chanID, groups, want int
	}{
		{0, 1, 0},
		{7, 1, 0},
		{0, 4, 0},
		{1, 4, 1},
		{4, 4, 0},
		{9, 4, 1},
		{12, 5, 2},
	}
	for _, c := range cases {
		if got := shard(c.chanID, c.groups); got != c.want {
			t.Errorf("shard(%d, %d) = %d, want %d", c.chanID, c.groups, got, c.want)
		}
	}
}

func TestShardStableAcrossIDs(t *testing.T) {
	// Every id in 0..N-1 lands in [0, groups) and ids congruent mod groups
	// share a worker.
	const groups = 3
	for id := 0; id < 30; id++ {
		g := shard(id, groups)
		if g < 0 || g >= groups {
			t.Fatalf("shard(%d, %d) = %d out of range", id, groups, g)
		}
		if g != shard(id+groups, groups) {
			t.Fatalf("ids %d and %d disagree on worker", id, id+groups)
		}
	}
}
