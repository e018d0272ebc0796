package game

const (
	BasePoints  int64 = 1
	ComboPoints int64 = 10
	// ComboEvery marks the taps that earn ComboPoints instead of BasePoints.
	ComboEvery int64 = 11
)

// Points returns what the tap with ordinal taps (1-based, after increment) is worth.
func Points(role Role, taps int64) int64 {
	if role == RoleNikita {
		return 0
	}
	if taps > 0 && taps%ComboEvery == 0 {
		return ComboPoints
	}
	return BasePoints
}

// ScoreAfter is the closed form of summing Points over taps 1..n.
func ScoreAfter(role Role, n int64) int64 {
	if role == RoleNikita || n <= 0 {
		return 0
	}
	combos := n / ComboEvery
	return combos*ComboPoints + (n-combos)*BasePoints
}
