package types

// Amount is an unsigned quantity in nano-QNC (1 QNC = 1e9 nano-QNC).
type Amount uint64

const (
	// NanoPerQNC is the number of nano-QNC in one QNC.
	NanoPerQNC Amount = 1_000_000_000

	// qncMaxSupply is 2^32 QNC, expressed in whole QNC.
	qncMaxSupply uint64 = uint64(1) << 32

	// MaxSupply is the hard cap on total QNC ever minted: 2^32 QNC, in nano-QNC.
	MaxSupply Amount = Amount(qncMaxSupply) * NanoPerQNC
)

// QNC converts an Amount (nano-QNC) to a float64 QNC value for display only;
// never use this for accounting math.
func (a Amount) QNC() float64 {
	return float64(a) / float64(NanoPerQNC)
}

// FromQNC builds an Amount from a QNC float, rounding down to the nearest nano-QNC.
func FromQNC(qnc float64) Amount {
	return Amount(qnc * float64(NanoPerQNC))
}

// Add saturates at the u64 max rather than wrapping.
func (a Amount) Add(b Amount) Amount {
	sum := a + b
	if sum < a { // overflow
		return ^Amount(0)
	}
	return sum
}

// Sub floors at zero rather than wrapping.
func (a Amount) Sub(b Amount) Amount {
	if b > a {
		return 0
	}
	return a - b
}
