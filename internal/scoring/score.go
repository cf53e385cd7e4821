// Package scoring holds the pure arithmetic behind match scores and standings.
package scoring

// MaxTimeBonus is awarded for submitting within the first ten-second window.
const MaxTimeBonus = 5

// Result is the score breakdown of a single match.
type Result struct {
	Base  int
	Bonus int
	Total int
}

// BaseScore sums per-resource evaluation scores.
func BaseScore(scores []int) int {
	total := 0
	for _, s := range scores {
		total += s
	}
	return total
}

// TimeBonus loses one point per started ten-second window and bottoms out at zero.
func TimeBonus(elapsedSeconds int) int {
	if elapsedSeconds < 0 {
		elapsedSeconds = 0
	}
	windows := (elapsedSeconds + 9) / 10
	bonus := MaxTimeBonus - windows
	if bonus < 0 {
		return 0
	}
	return bonus
}

// Total combines base score and time bonus.
func Total(base, bonus int) int {
	return base + bonus
}

// Compute scores a match. A match without scored resources earns nothing,
// including no time bonus.
func Compute(scores []int, elapsedSeconds int) Result {
	if len(scores) == 0 {
		return Result{}
	}
	base := BaseScore(scores)
	bonus := TimeBonus(elapsedSeconds)
	return Result{Base: base, Bonus: bonus, Total: Total(base, bonus)}
}
