package scoring

import "testing"

func TestTimeBonusSteps(t *testing.T) {
	cases := []struct {
		elapsed int
		want    int
	}{
		{0, 5},
		{10, 4},
		{20, 3},
		{30, 2},
		{40, 1},
		{50, 0},
		{60, 0},
		{1, 4},
		{11, 3},
		{-3, 5},
	}
	for _, tc := range cases {
		if got := TimeBonus(tc.elapsed); got != tc.want {
			t.Fatalf("TimeBonus(%d) = %d, want %d", tc.elapsed, got, tc.want)
		}
	}
}

func TestBaseScoreSums(t *testing.T) {
	if got := BaseScore([]int{7, 8, 9}); got != 24 {
		t.Fatalf("expected 24, got %d", got)
	}
	if got := BaseScore(nil); got != 0 {
		t.Fatalf("expected 0 for no scores, got %d", got)
	}
}

func TestComputeCombinesBaseAndBonus(t *testing.T) {
	res := Compute([]int{7, 8, 9}, 25)
	if res.Base != 24 || res.Bonus != 2 || res.Total != 26 {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestComputeWithoutResourcesIsZero(t *testing.T) {
	res := Compute(nil, 0)
	if res != (Result{}) {
		t.Fatalf("expected zero result, got %+v", res)
	}
}
