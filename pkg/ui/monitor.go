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
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/dustin/go-humanize"

	"github.com/posturekit/PostureWorker/pkg/posture"
	"github.com/posturekit/PostureWorker/pkg/postlog"
)

const recentChangesLimit = 10

// MonitorAPI provides the live posture status shown in the monitor UI.
type MonitorAPI interface {
	CurrentStatus() (posture.Status, bool)
}

// NewMonitorModel creates the model for the live monitor view of the
// given user.
func NewMonitorModel(username string, api MonitorAPI, store *postlog.Store) tea.Model {
	return monitorModel{
		username: username,
		api:      api,
		store:    store,
		ratioBar: progress.New(progress.WithDefaultGradient()),
	}
}

type monitorRefreshMsg struct {
	status  posture.Status
	known   bool
	entries []postlog.Entry
}

type reportMsg struct {
	report postlog.Report
	err    error
}

func doMonitorRefresh(username string, api MonitorAPI, store *postlog.Store) tea.Cmd {
	return tea.Tick(time.Second, func(time.Time) tea.Msg {
		msg := monitorRefreshMsg{}
		msg.status, msg.known = api.CurrentStatus()
		msg.entries, _ = store.RecentChanges(context.Background(), username, recentChangesLimit)
		return msg
	})
}

func doGenerateReport(username string, store *postlog.Store) tea.Cmd {
	return func() tea.Msg {
		report, err := store.GenerateReport(context.Background(), username)
		return reportMsg{report: report, err: err}
	}
}

type monitorModel struct {
	username string
	api      MonitorAPI
	store    *postlog.Store

	status    posture.Status
	known     bool
	entries   []postlog.Entry
	report    *postlog.Report
	reportErr error
	ratioBar  progress.Model
}

var _ tea.Model = monitorModel{}

// Init is the first function that will be called.
func (m monitorModel) Init() tea.Cmd {
	return doMonitorRefresh(m.username, m.api, m.store)
}

// Update is called when a message is received.
func (m monitorModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case monitorRefreshMsg:
		m.status = msg.status
		m.known = msg.known
		m.entries = msg.entries
		return m, doMonitorRefresh(m.username, m.api, m.store)
	case reportMsg:
		m.report = &msg.report
		m.reportErr = msg.err
	case tea.KeyMsg:
		switch msg.String() {
		case "r":
			return m, doGenerateReport(m.username, m.store)
		case "esc":
			m.report = nil
			m.reportErr = nil
		case "q", "ctrl+c":
			return m, tea.Quit
		}
	}
	return m, nil
}

// View renders the program's UI.
func (m monitorModel) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render(fmt.Sprintf("Posture monitor - %s", m.username)))
	b.WriteString("\n\n")

	switch {
	case !m.known:
		b.WriteString(dimStyle.Render("Status: unknown"))
	case m.status.IsGood():
		b.WriteString(idleStyle.Render(fmt.Sprintf("Status: %s", m.status)))
	default:
		b.WriteString(busyStyle.Render(fmt.Sprintf("Status: %s", m.status)))
	}
	b.WriteString("\n\n")

	if m.reportErr != nil {
		b.WriteString(busyStyle.Render(fmt.Sprintf("Report failed: %s", m.reportErr)))
		b.WriteString("\n\n")
	} else if m.report != nil {
		b.WriteString(titleStyle.Render("Report"))
		b.WriteString("\n")
		b.WriteString(fmt.Sprintf("Good posture ratio:  %.2f%%\n", m.report.Ratio*100))
		b.WriteString(m.ratioBar.ViewAs(m.report.Ratio))
		b.WriteString("\n")
		b.WriteString(fmt.Sprintf("Ranking percentile:  %.2f%% (rank %d of %d)\n", m.report.Percentile, m.report.Rank, m.report.TotalUsers))
		b.WriteString(dimStyle.Render("Best performer always gets 100%; rankings are relative among all users."))
		b.WriteString("\n\n")
	}

	if len(m.entries) > 0 {
		b.WriteString(titleStyle.Render("Recent changes"))
		b.WriteString("\n")
		for _, e := range m.entries {
			style := idleStyle
			if !e.Status.IsGood() {
				style = busyStyle
			}
			b.WriteString(fmt.Sprintf("%-16s %s\n", style.Render(string(e.Status)), dimStyle.Render(humanize.Time(e.Time))))
		}
		b.WriteString("\n")
	}

	b.WriteString(dimStyle.Render("r: report  esc: hide report  q: quit"))
	b.WriteString("\n")
	return b.String()
}
