// Copyright 2025 The PostureKit Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package ui

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/ssh"
	"github.com/dustin/go-humanize"

	"github.com/posturekit/PostureWorker/service/objects"
)

// WorkerAPI provides the object states shown in the worker UI.
type WorkerAPI interface {
	Actuals() []objects.ActualState
}

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	busyStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	idleStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	dimStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

// WorkerUI serves the worker status UI on SSH sessions.
type WorkerUI struct {
	API WorkerAPI
}

// Handler creates a bubbletea model for the given SSH session.
func (u *WorkerUI) Handler(s ssh.Session) (tea.Model, []tea.ProgramOption) {
	pty, _, _ := s.Pty()
	m := workerModel{
		api:    u.API,
		term:   pty.Term,
		width:  pty.Window.Width,
		height: pty.Window.Height,
	}
	return m, []tea.ProgramOption{tea.WithAltScreen()}
}

type refreshMsg []objects.ActualState

func doRefresh(api WorkerAPI) tea.Cmd {
	return tea.Tick(time.Second, func(time.Time) tea.Msg {
		return refreshMsg(api.Actuals())
	})
}

type workerModel struct {
	api     WorkerAPI
	term    string
	width   int
	height  int
	actuals []objects.ActualState
}

var _ tea.Model = workerModel{}

// Init is the first function that will be called.
func (m workerModel) Init() tea.Cmd {
	return doRefresh(m.api)
}

// Update is called when a message is received.
func (m workerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case refreshMsg:
		m.actuals = msg
		return m, doRefresh(m.api)
	case tea.WindowSizeMsg:
		m.height = msg.Height
		m.width = msg.Width
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		}
	}
	return m, nil
}

// View renders the program's UI.
func (m workerModel) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("PostureWorker objects"))
	b.WriteString("\n\n")
	if len(m.actuals) == 0 {
		b.WriteString(dimStyle.Render("no configured objects"))
		b.WriteString("\n")
	}
	for _, a := range m.actuals {
		state := idleStyle.Render("idle")
		if a.Busy {
			state = busyStyle.Render("busy")
		}
		b.WriteString(fmt.Sprintf("%-12s %-14s %s", a.ID, a.Type, state))
		if a.Output != nil {
			value := "low"
			if *a.Output {
				value = "high"
			}
			b.WriteString(fmt.Sprintf("  output=%s", value))
		}
		if a.Angle != nil {
			b.WriteString(fmt.Sprintf("  angle=%d°", *a.Angle))
		}
		if a.TriggerCount > 0 {
			b.WriteString(dimStyle.Render(fmt.Sprintf("  triggered %d times, last %s", a.TriggerCount, humanize.Time(a.LastTriggered))))
		}
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(dimStyle.Render("q - quit"))
	return b.String()
}
