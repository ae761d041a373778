package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/joho/godotenv"

	"photoreel/config"
	"photoreel/slideshow"
	"photoreel/types"
)

// Styles
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#7D56F4")).
			MarginTop(1).
			MarginBottom(1)

	statusStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#04B575"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF0000"))

	infoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#626262"))

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#874BFD")).
			Padding(1, 2)

	barFillStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#874BFD"))
)

// Messages for the tea program
type progressMsg int

type renderCompleteMsg struct {
	output    *slideshow.VideoOutput
	savedPath string
	err       error
}

// Model represents the application state
type model struct {
	state    string // "idle", "rendering", "complete", "error"
	manifest types.JobManifest
	outDir   string

	percent   int
	progress  chan int
	result    chan renderCompleteMsg
	cancel    context.CancelFunc
	output    *slideshow.VideoOutput
	savedPath string
	err       error
	logs      []string
}

func initialModel(manifest types.JobManifest, outDir string) model {
	return model{
		state:    "idle",
		manifest: manifest,
		outDir:   outDir,
		progress: make(chan int, 8),
		result:   make(chan renderCompleteMsg, 1),
		logs:     []string{},
	}
}

func (m *model) addLog(line string) {
	m.logs = append(m.logs, line)
	if len(m.logs) > 8 {
		m.logs = m.logs[len(m.logs)-8:]
	}
}

func (m model) Init() tea.Cmd {
	// Wait for the user to press 'r'
	return nil
}

// startRender launches the pipeline; progress and the final result come
// back over the model's channels.
func (m *model) startRender() tea.Cmd {
	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel

	progress := m.progress
	result := m.result
	manifest := m.manifest
	outDir := m.outDir

	gen := slideshow.New(slideshow.Config{
		OnProgress: func(percent int) {
			select {
			case progress <- percent:
			default:
			}
		},
	})

	go func() {
		out, err := gen.Generate(ctx, manifest.Photos, manifest.JobInfo)
		msg := renderCompleteMsg{output: out, err: err}
		if err == nil {
			msg.savedPath, msg.err = out.Save(outDir)
		}
		result <- msg
	}()

	return waitForEvent(progress, result)
}

func waitForEvent(progress chan int, result chan renderCompleteMsg) tea.Cmd {
	return func() tea.Msg {
		select {
		case p := <-progress:
			return progressMsg(p)
		case r := <-result:
			return r
		}
	}
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			if m.cancel != nil {
				m.cancel()
			}
			return m, tea.Quit
		case "r", "R":
			if m.state == "idle" {
				m.state = "rendering"
				m.addLog(fmt.Sprintf("Rendering %d photos for job %s...", len(m.manifest.Photos), m.manifest.JobNumber))
				cmd := m.startRender()
				return m, cmd
			}
		}

	case progressMsg:
		m.percent = int(msg)
		return m, waitForEvent(m.progress, m.result)

	case renderCompleteMsg:
		if msg.err != nil {
			m.state = "error"
			m.err = msg.err
			m.addLog("Render failed")
			return m, nil
		}
		m.state = "complete"
		m.percent = 100
		m.output = msg.output
		m.savedPath = msg.savedPath
		m.addLog(fmt.Sprintf("Saved %s", msg.savedPath))
		return m, nil
	}

	return m, nil
}

func (m model) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render(fmt.Sprintf("%s Demo", config.BrandingText)))
	b.WriteString("\n")

	var body strings.Builder
	body.WriteString(fmt.Sprintf("Job:    %s\n", m.manifest.JobNumber))
	body.WriteString(fmt.Sprintf("Model:  %s\n", m.manifest.CarModel))
	body.WriteString(fmt.Sprintf("Photos: %d\n\n", len(m.manifest.Photos)))

	switch m.state {
	case "idle":
		body.WriteString(infoStyle.Render("Press 'r' to render, 'q' to quit"))
	case "rendering":
		body.WriteString(renderBar(m.percent))
		body.WriteString(infoStyle.Render("\n\nRendering... ('q' cancels)"))
	case "complete":
		body.WriteString(renderBar(m.percent))
		body.WriteString(statusStyle.Render(fmt.Sprintf("\n\nDone: %s (%d bytes, %s)",
			m.savedPath, len(m.output.Data), m.output.Duration)))
	case "error":
		body.WriteString(errorStyle.Render(fmt.Sprintf("Error: %v", m.err)))
	}

	if len(m.logs) > 0 {
		body.WriteString("\n\n")
		for _, line := range m.logs {
			body.WriteString(infoStyle.Render("· " + line))
			body.WriteString("\n")
		}
	}

	b.WriteString(boxStyle.Render(body.String()))
	b.WriteString("\n")
	return b.String()
}

func renderBar(percent int) string {
	const width = 40
	filled := width * percent / 100
	if filled > width {
		filled = width
	}
	bar := barFillStyle.Render(strings.Repeat("█", filled)) + strings.Repeat("░", width-filled)
	return fmt.Sprintf("%s %3d%%", bar, percent)
}

func main() {
	_ = godotenv.Load()

	manifestPath := flag.String("input", filepath.Join(config.InputDir, "job.json"), "job manifest JSON file")
	outDir := flag.String("out", config.OutputDir, "directory for the generated video")
	flag.Parse()

	data, err := os.ReadFile(*manifestPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "read manifest: %v\n", err)
		os.Exit(1)
	}
	var manifest types.JobManifest
	if err := json.Unmarshal(data, &manifest); err != nil {
		fmt.Fprintf(os.Stderr, "parse manifest: %v\n", err)
		os.Exit(1)
	}

	base := filepath.Dir(*manifestPath)
	for i, p := range manifest.Photos {
		if p.Ref != "" && !filepath.IsAbs(p.Ref) && !strings.HasPrefix(p.Ref, "http") {
			manifest.Photos[i].Ref = filepath.Join(base, p.Ref)
		}
	}

	p := tea.NewProgram(initialModel(manifest, *outDir))
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "demo failed: %v\n", err)
		os.Exit(1)
	}
}
