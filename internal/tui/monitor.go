package tui

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/viper"
)

// Config holds configuration for the TUI monitor
type Config struct {
	RefreshRate int
}

// Model represents the TUI application state
type Model struct {
	config     Config
	status     *EngineStatus
	loading    bool
	error      error
	width      int
	height     int
	lastUpdate time.Time
}

// EngineStatus mirrors the /api/v1/status payload plus recent alerts.
type EngineStatus struct {
	Status    string          `json:"status"`
	Uptime    string          `json:"uptime"`
	Timestamp time.Time       `json:"timestamp"`
	Engine    *EngineCounters `json:"engine,omitempty"`
	Pipeline  *PipelineStats  `json:"pipeline,omitempty"`
	Alerts    []AlertSummary  `json:"alerts,omitempty"`
}

type EngineCounters struct {
	Evaluations   uint64            `json:"evaluations"`
	Threats       map[string]uint64 `json:"threats"`
	Decisions     map[string]uint64 `json:"decisions"`
	GasAverageWei string            `json:"gasAverageWei"`
}

type PipelineStats struct {
	Workers   int    `json:"workers"`
	QueueSize int    `json:"queueSize"`
	Processed uint64 `json:"processed"`
	Threats   uint64 `json:"threats"`
	Errors    uint64 `json:"errors"`
	Dropped   uint64 `json:"dropped"`
}

type AlertSummary struct {
	Threat    string    `json:"threat"`
	Severity  string    `json:"severity"`
	FeedID    string    `json:"feedId"`
	Score     int       `json:"score"`
	CreatedAt time.Time `json:"createdAt"`
}

// tickMsg is sent when the refresh timer ticks
type tickMsg time.Time

// statusMsg is sent when status is updated
type statusMsg *EngineStatus

// errorMsg is sent when an error occurs
type errorMsg error

// StartMonitor starts the TUI monitor application
func StartMonitor(config Config) error {
	p := tea.NewProgram(initialModel(config), tea.WithAltScreen())
	_, err := p.Run()
	return err
}

func initialModel(config Config) Model {
	return Model{
		config:  config,
		loading: true,
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(
		fetchStatus(),
		tickCmd(m.config.RefreshRate),
	)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "r":
			return m, fetchStatus()
		}

	case tickMsg:
		return m, tea.Batch(
			fetchStatus(),
			tickCmd(m.config.RefreshRate),
		)

	case statusMsg:
		m.status = msg
		m.loading = false
		m.error = nil
		m.lastUpdate = time.Now()
		return m, nil

	case errorMsg:
		m.error = msg
		m.loading = false
		return m, nil
	}

	return m, nil
}

func (m Model) View() string {
	if m.width == 0 {
		return "Loading..."
	}

	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#FAFAFA")).
		Background(lipgloss.Color("#7D56F4")).
		Padding(0, 1)

	contentStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("#874BFD")).
		Padding(1, 2)

	var content string

	title := titleStyle.Width(m.width - 2).Render("MEV Shield Monitor")
	content += title + "\n\n"

	instructions := "Press 'r' to refresh manually, 'q' to quit"
	content += lipgloss.NewStyle().Faint(true).Render(instructions) + "\n\n"

	if m.error != nil {
		errorStyle := lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF0000")).
			Bold(true)
		content += errorStyle.Render(fmt.Sprintf("Error: %v", m.error)) + "\n"
	} else if m.loading {
		content += "Loading status...\n"
	} else if m.status != nil {
		content += m.renderStatus()
	}

	if !m.lastUpdate.IsZero() {
		updateTime := fmt.Sprintf("Last updated: %s", m.lastUpdate.Format("15:04:05"))
		content += "\n" + lipgloss.NewStyle().Faint(true).Render(updateTime)
	}

	return contentStyle.Width(m.width - 4).Render(content)
}

func (m Model) renderStatus() string {
	var content string

	statusColor := lipgloss.Color("#FF0000")
	if m.status.Status == "running" {
		statusColor = lipgloss.Color("#00FF00")
	}

	statusStyle := lipgloss.NewStyle().Foreground(statusColor).Bold(true)
	content += fmt.Sprintf("Status: %s\n", statusStyle.Render(m.status.Status))
	if m.status.Uptime != "" {
		content += fmt.Sprintf("Uptime: %s\n", m.status.Uptime)
	}

	if m.status.Engine != nil {
		content += "\nEngine\n"
		content += "──────\n"
		content += fmt.Sprintf("Evaluations:  %d\n", m.status.Engine.Evaluations)
		content += fmt.Sprintf("Gas Average:  %s wei\n", m.status.Engine.GasAverageWei)
		for threat, count := range m.status.Engine.Threats {
			content += fmt.Sprintf("  %-10s %d\n", threat, count)
		}
		for state, count := range m.status.Engine.Decisions {
			content += fmt.Sprintf("  %-10s %d\n", state, count)
		}
	}

	if m.status.Pipeline != nil {
		content += "\nPipeline\n"
		content += "────────\n"
		content += fmt.Sprintf("Workers:      %d\n", m.status.Pipeline.Workers)
		content += fmt.Sprintf("Queue Size:   %d\n", m.status.Pipeline.QueueSize)
		content += fmt.Sprintf("Processed:    %d\n", m.status.Pipeline.Processed)
		content += fmt.Sprintf("Threats:      %d\n", m.status.Pipeline.Threats)
		content += fmt.Sprintf("Errors:       %d\n", m.status.Pipeline.Errors)
		content += fmt.Sprintf("Dropped:      %d\n", m.status.Pipeline.Dropped)
	}

	if len(m.status.Alerts) > 0 {
		content += "\nRecent Alerts\n"
		content += "─────────────\n"
		for _, alert := range m.status.Alerts {
			content += fmt.Sprintf("%s  %-9s %-8s %-6s score %d\n",
				alert.CreatedAt.Format("15:04:05"),
				alert.Threat, alert.Severity, alert.FeedID, alert.Score)
		}
	}

	return content
}

func fetchStatus() tea.Cmd {
	return func() tea.Msg {
		status, err := getEngineStatus()
		if err != nil {
			return errorMsg(err)
		}
		return statusMsg(status)
	}
}

func tickCmd(refreshRate int) tea.Cmd {
	return tea.Tick(time.Duration(refreshRate)*time.Millisecond, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func getEngineStatus() (*EngineStatus, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var status EngineStatus
	ok, err := fetchJSON(ctx, "/api/v1/status", &status)
	if err != nil {
		return nil, err
	}
	if !ok {
		return &EngineStatus{Status: "offline", Timestamp: time.Now()}, nil
	}
	status.Status = "running"

	var alerts struct {
		Alerts []AlertSummary `json:"alerts"`
	}
	if ok, err := fetchJSON(ctx, "/api/v1/alerts?limit=10", &alerts); err == nil && ok {
		status.Alerts = alerts.Alerts
	}

	return &status, nil
}

// fetchJSON gets an authenticated API resource; ok is false when the engine
// is unreachable or the call failed.
func fetchJSON(ctx context.Context, path string, out interface{}) (bool, error) {
	host := viper.GetString("server.host")
	if host == "" || host == "0.0.0.0" {
		host = "localhost"
	}
	port := viper.GetInt("server.port")
	if port == 0 {
		port = 8080
	}
	url := fmt.Sprintf("http://%s:%d%s", host, port, path)

	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return false, err
	}
	if key := viper.GetString("api_key"); key != "" {
		req.Header.Set("Authorization", "Bearer "+key)
	}

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return false, nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false, nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return false, fmt.Errorf("failed to decode %s response: %w", path, err)
	}
	return true, nil
}
