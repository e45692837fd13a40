package primitives

import "math/big"

// maxU256 is the maximum value representable in 256 bits: 2^256 - 1.
// Used both as the overflow ceiling for BlueWork and as the numerator in
// calc_work (spec §3.1).
var maxU256 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))

// Difficulty is an arbitrary-precision unsigned integer representing the
// inverse of the mining target: higher difficulty means a harder target.
type Difficulty struct {
	v *big.Int
}

// NewDifficulty wraps n as a Difficulty. n must be non-negative.
func NewDifficulty(n *big.Int) Difficulty {
	return Difficulty{v: new(big.Int).Set(n)}
}

// DifficultyFromUint64 constructs a Difficulty from a uint64.
func DifficultyFromUint64(n uint64) Difficulty {
	return Difficulty{v: new(big.Int).SetUint64(n)}
}

// Big returns the underlying big.Int (a defensive copy).
func (d Difficulty) Big() *big.Int {
	if d.v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(d.v)
}

// IsZero reports whether the difficulty is zero.
func (d Difficulty) IsZero() bool {
	return d.v == nil || d.v.Sign() == 0
}

// CalcWork converts a Difficulty into cumulative proof-of-work units per
// spec §3.1: work = MAX / (MAX/difficulty + 1) + 1, with the explicit edge
// case that zero difficulty yields work = MAX. This mirrors the
// target-inverse-to-work conversion used throughout the teacher's
// difficulty/work handling (domain/consensus/processes/difficultymanager).
func CalcWork(d Difficulty) *big.Int {
	if d.IsZero() {
		return new(big.Int).Set(maxU256)
	}

	denom := new(big.Int).Div(maxU256, d.v)
	denom.Add(denom, big.NewInt(1))
	work := new(big.Int).Div(maxU256, denom)
	work.Add(work, big.NewInt(1))
	return work
}

// BlueWork is cumulative work along the GHOSTDAG-selected chain: a U256
// that is monotonically non-decreasing along any chain of selected parents.
type BlueWork struct {
	v *big.Int
}

// ZeroBlueWork is the additive identity.
func ZeroBlueWork() BlueWork {
	return BlueWork{v: big.NewInt(0)}
}

// BlueWorkFromBig wraps n as a BlueWork.
func BlueWorkFromBig(n *big.Int) BlueWork {
	return BlueWork{v: new(big.Int).Set(n)}
}

// Big returns the underlying big.Int (a defensive copy).
func (w BlueWork) Big() *big.Int {
	if w.v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(w.v)
}

// Cmp compares two BlueWork values following big.Int.Cmp semantics.
func (w BlueWork) Cmp(other BlueWork) int {
	return w.Big().Cmp(other.Big())
}

// ErrBlueWorkOverflow is returned when adding work would exceed the U256
// range (spec §4.3: BlueWorkOverflow).
type ErrBlueWorkOverflow struct{}

func (ErrBlueWorkOverflow) Error() string { return "blue work overflow" }

// Add returns w + delta, checked against the U256 ceiling (spec §3.2:
// blue_work uses checked arithmetic, as blue_score's add in ghostdag does).
func (w BlueWork) Add(delta *big.Int) (BlueWork, error) {
	sum := new(big.Int).Add(w.Big(), delta)
	if sum.Cmp(maxU256) > 0 {
		return BlueWork{}, ErrBlueWorkOverflow{}
	}
	return BlueWork{v: sum}, nil
}
