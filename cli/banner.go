// Package cli holds terminal helpers for the demo programs: boxed banners
// and promptui-driven selection.
package cli

import (
	"strings"
	"unicode/utf8"
)

const (
	boxTopLeft     = "╒"
	boxBottomLeft  = "└"
	boxTopRight    = "╕"
	boxBottomRight = "┘"
	boxSide        = "│"
	boxTop         = "═"
	boxBottom      = "─"
	dividerLeft    = "┠"
	dividerMiddle  = "─"
	dividerRight   = "┨"
	ellipsis       = "…"

	// One space on each side of the text, plus the two borders.
	bannerPadding  = 4
	dividerPadding = 2
	minWidth       = bannerPadding + 1
)

// DefaultWidth is used when no width is given.
const DefaultWidth = 60

// Divider renders a horizontal rule width runes wide.
func Divider(width int) string {
	if width < dividerPadding {
		width = dividerPadding
	}

	return dividerLeft + strings.Repeat(dividerMiddle, width-dividerPadding) + dividerRight + "\n"
}

// Banner draws s inside a box width runes wide. Each line of s gets its own
// row; lines that do not fit are truncated with an ellipsis.
func Banner(s string, width int) string {
	if width <= 0 {
		width = DefaultWidth
	}

	if width < minWidth {
		width = minWidth
	}

	inner := width - bannerPadding

	var sb strings.Builder

	sb.WriteString(boxTopLeft + strings.Repeat(boxTop, width-2) + boxTopRight + "\n")

	for _, line := range strings.Split(strings.TrimRight(s, "\n"), "\n") {
		line = truncate(strings.TrimRight(line, " \t"), inner)
		pad := inner - utf8.RuneCountInString(line)

		sb.WriteString(boxSide + " " + line + strings.Repeat(" ", pad) + " " + boxSide + "\n")
	}

	sb.WriteString(boxBottomLeft + strings.Repeat(boxBottom, width-2) + boxBottomRight + "\n")

	return sb.String()
}

func truncate(s string, width int) string {
	if utf8.RuneCountInString(s) <= width {
		return s
	}

	runes := []rune(s)

	return string(runes[:width-1]) + ellipsis
}
