/*
 * Copyright 2025 Carver Automation Corporation.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package dashboard

import "github.com/charmbracelet/lipgloss"

const (
	draculaForeground = "#f8f8f2"
	draculaComment    = "#6272a4"
	draculaCyan       = "#8be9fd"
	draculaGreen      = "#50fa7b"
	draculaOrange     = "#ffb86c"
	draculaPink       = "#ff79c6"
	draculaPurple     = "#bd93f9"
	draculaRed        = "#ff5555"
	draculaYellow     = "#f1fa8c"
)

// Thresholds for metric severity levels
const (
	warningThreshold  = 70.0
	criticalThreshold = 90.0
)

var (
	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(draculaPink)).
			Bold(true)

	paneStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color(draculaPurple)).
			Padding(0, 1)

	labelStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color(draculaComment))
	valueStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color(draculaForeground))
	helpStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color(draculaComment))
	addedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color(draculaGreen))
	removedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color(draculaRed))
	onlineStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color(draculaGreen)).Bold(true)
	offlineStyle = lipgloss.NewStyle().Foreground(lipgloss.Color(draculaOrange)).Bold(true)
	cpuStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color(draculaCyan))
	memStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color(draculaYellow))
)

// severityStyle colours a percentage by how close it is to saturation.
func severityStyle(pct float64) lipgloss.Style {
	switch {
	case pct >= criticalThreshold:
		return removedStyle
	case pct >= warningThreshold:
		return offlineStyle
	default:
		return valueStyle
	}
}
