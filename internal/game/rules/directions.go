package rules

type step struct {
	df, dr int
}

var (
	orthogonal = []step{{0, 1}, {1, 0}, {0, -1}, {-1, 0}}
	diagonal   = []step{{1, 1}, {1, -1}, {-1, -1}, {-1, 1}}
	allEight   = append(append([]step{}, orthogonal...), diagonal...)
	knightJump = []step{
		{1, 2}, {2, 1}, {2, -1}, {1, -2},
		{-1, -2}, {-2, -1}, {-2, 1}, {-1, 2},
	}
)

// unlimited is a ray length that exceeds any board dimension.
const unlimited = 0
