package eventmodels

type LadderDirection string

const (
	LadderLong  LadderDirection = "LONG"
	LadderShort LadderDirection = "SHORT"
)

func (d LadderDirection) Opposite() LadderDirection {
	if d == LadderLong {
		return LadderShort
	}

	return LadderLong
}

func (d LadderDirection) Validate() bool {
	return d == LadderLong || d == LadderShort
}
