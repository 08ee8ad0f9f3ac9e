package ui

import "github.com/gdamore/tcell/v2"

// Theme holds the console palette.
type Theme struct {
	BgColor     tcell.Color
	FgColor     tcell.Color
	BorderColor tcell.Color
	TitleColor  tcell.Color

	// Tables and breadcrumbs.
	TableHeaderFg   tcell.Color
	TableHeaderBg   tcell.Color
	TableCursorFg   tcell.Color
	TableCursorBg   tcell.Color
	CrumbActiveFg   tcell.Color
	CrumbActiveBg   tcell.Color
	CrumbInactiveFg tcell.Color
	CrumbInactiveBg tcell.Color

	// Header and prompt.
	MenuKeyColor      tcell.Color
	NumericKeyColor   tcell.Color
	CounterColor      tcell.Color
	PromptBorderColor tcell.Color

	FlashInfoColor tcell.Color
	FlashWarnColor tcell.Color
	FlashErrColor  tcell.Color

	// Conversation.
	OperatorColor tcell.Color
	ContactColor  tcell.Color
	DayColor      tcell.Color
	ReadColor     tcell.Color
	FailedColor   tcell.Color
	UnreadColor   tcell.Color

	// Realtime connection.
	OnlineColor  tcell.Color
	PendingColor tcell.Color
	OfflineColor tcell.Color
}

// DefaultTheme returns a dark theme in the k9s palette.
func DefaultTheme() *Theme {
	return &Theme{
		BgColor:     tcell.ColorBlack,
		FgColor:     tcell.ColorCadetBlue,
		BorderColor: tcell.ColorDodgerBlue,
		TitleColor:  tcell.ColorFuchsia,

		TableHeaderFg:   tcell.ColorWhite,
		TableHeaderBg:   tcell.ColorBlack,
		TableCursorFg:   tcell.ColorBlack,
		TableCursorBg:   tcell.ColorAqua,
		CrumbActiveFg:   tcell.ColorBlack,
		CrumbActiveBg:   tcell.ColorOrange,
		CrumbInactiveFg: tcell.ColorBlack,
		CrumbInactiveBg: tcell.ColorAqua,

		MenuKeyColor:      tcell.ColorDodgerBlue,
		NumericKeyColor:   tcell.ColorFuchsia,
		CounterColor:      tcell.ColorPapayaWhip,
		PromptBorderColor: tcell.ColorDodgerBlue,

		FlashInfoColor: tcell.ColorNavajoWhite,
		FlashWarnColor: tcell.ColorOrange,
		FlashErrColor:  tcell.ColorOrangeRed,

		OperatorColor: tcell.ColorMediumSeaGreen,
		ContactColor:  tcell.ColorLightSkyBlue,
		DayColor:      tcell.ColorGray,
		ReadColor:     tcell.ColorDeepSkyBlue,
		FailedColor:   tcell.ColorRed,
		UnreadColor:   tcell.ColorLimeGreen,

		OnlineColor:  tcell.ColorLimeGreen,
		PendingColor: tcell.ColorYellow,
		OfflineColor: tcell.ColorOrangeRed,
	}
}

// ConnectionColor picks the color for a realtime connection state name.
// Unknown states are treated as pending.
func (t *Theme) ConnectionColor(state string) tcell.Color {
	switch state {
	case "CONNECTED":
		return t.OnlineColor
	case "", "DISCONNECTED", "AUTH_REQUIRED":
		return t.OfflineColor
	}
	return t.PendingColor
}

// Tag returns c as a tview color tag name.
func Tag(c tcell.Color) string {
	return colorName(c)
}
