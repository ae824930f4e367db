package progress

// DefaultBarWidth matches the width used by progress messages.
const DefaultBarWidth = 17

var barStyle = []rune("░▒▓█")

// Bar renders percent as a fixed-width text bar with partial-block edge
// characters.
func Bar(percent, width int) string {
	percent = clampPercent(percent)
	styleLen := len(barStyle)
	qMax := styleLen * width
	qCurrent := percent * qMax / 100

	out := make([]rune, 0, width)
	for y := 1; y <= width; y++ {
		x := y * styleLen
		switch {
		case x <= qCurrent:
			out = append(out, barStyle[styleLen-1])
		case x-qCurrent < styleLen:
			out = append(out, barStyle[styleLen-(x-qCurrent)])
		default:
			out = append(out, barStyle[0])
		}
	}
	return string(out)
}
