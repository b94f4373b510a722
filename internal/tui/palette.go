// SPDX-License-Identifier: MIT
package tui

import (
	"levelmeter/internal/meter"

	"github.com/charmbracelet/lipgloss"
)

// Role is a display role of the meter. The first five match meter bands.
type Role int

const (
	RoleOver Role = iota
	Role0dB
	Role3dB
	Role6dB
	Role10dB
	RoleBack // Unlit cells
	RoleFore // Peak line and scale labels
	RoleCount
)

var roleNames = [RoleCount]string{"over", "0dB", "3dB", "6dB", "10dB", "back", "fore"}

func (r Role) String() string {
	if r < 0 || r >= RoleCount {
		return "unknown"
	}
	return roleNames[r]
}

// Palette maps every role to a terminal color.
type Palette [RoleCount]lipgloss.Color

// DefaultPalette follows the usual broadcast meter colors.
var DefaultPalette = Palette{
	RoleOver: lipgloss.Color("#FF0000"),
	Role0dB:  lipgloss.Color("#FF7F00"),
	Role3dB:  lipgloss.Color("#FFFF00"),
	Role6dB:  lipgloss.Color("#7FFF00"),
	Role10dB: lipgloss.Color("#00C000"),
	RoleBack: lipgloss.Color("#303030"),
	RoleFore: lipgloss.Color("#E0E0E0"),
}

// Color returns the color of r, falling back to the Back color for roles
// outside the palette.
func (p *Palette) Color(r Role) lipgloss.Color {
	if r < 0 || r >= RoleCount {
		return p[RoleBack]
	}
	return p[r]
}

// SetColor changes the color of r. Out of range roles are ignored.
func (p *Palette) SetColor(r Role, c lipgloss.Color) {
	if r >= 0 && r < RoleCount {
		p[r] = c
	}
}

// RoleForBand returns the display role painting a band.
func RoleForBand(b meter.Band) Role {
	switch b {
	case meter.BandOver:
		return RoleOver
	case meter.Band0dB:
		return Role0dB
	case meter.Band3dB:
		return Role3dB
	case meter.Band6dB:
		return Role6dB
	default:
		return Role10dB
	}
}
