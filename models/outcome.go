package models

type Color string

const (
	ColorRed    Color = "RED"
	ColorGreen  Color = "GREEN"
	ColorViolet Color = "VIOLET"
)

type Size string

const (
	SizeSmall Size = "SMALL"
	SizeBig   Size = "BIG"
)

// Outcome is the resolved result of a period.
type Outcome struct {
	Digit  int     `json:"digit" bson:"digit"`
	Colors []Color `json:"colors" bson:"colors"`
	Size   Size    `json:"size" bson:"size"`
}

// OutcomeForDigit derives colours and size from a digit in 0..9.
func OutcomeForDigit(digit int) Outcome {
	return Outcome{Digit: digit, Colors: ColorsForDigit(digit), Size: SizeForDigit(digit)}
}

// ColorsForDigit returns the colour set of a digit. 0 and 5 are the
// dual-colour violet digits.
func ColorsForDigit(digit int) []Color {
	switch {
	case digit == 0:
		return []Color{ColorRed, ColorViolet}
	case digit == 5:
		return []Color{ColorGreen, ColorViolet}
	case digit%2 == 1:
		return []Color{ColorGreen}
	default:
		return []Color{ColorRed}
	}
}

func SizeForDigit(digit int) Size {
	if digit >= 5 {
		return SizeBig
	}
	return SizeSmall
}

// IsDualColor reports whether the outcome carries the violet colour.
func (o Outcome) IsDualColor() bool {
	return len(o.Colors) > 1
}

func (o Outcome) HasColor(c Color) bool {
	for _, oc := range o.Colors {
		if oc == c {
			return true
		}
	}
	return false
}

// Family is the single colour family of a non-violet digit.
func Family(digit int) (Color, bool) {
	colors := ColorsForDigit(digit)
	if len(colors) != 1 {
		return "", false
	}
	return colors[0], true
}
