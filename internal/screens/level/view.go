package level

import (
	"fmt"
	"strings"

	"charm.land/lipgloss/v2"

	"github.com/ecoloop/ecoloop/internal/api"
	"github.com/ecoloop/ecoloop/internal/session"
	"github.com/ecoloop/ecoloop/internal/ui/components"
	"github.com/ecoloop/ecoloop/internal/ui/theme"
)

var phaseLabels = map[session.Phase]string{
	session.PhaseVideo: "Video",
	session.PhaseInfo:  "Learn",
	session.PhaseQuiz:  "Quiz",
	session.PhaseTask:  "Task",
}

func (s *LevelScreen) View(width, height int) string {
	cw := min(width-4, 90)

	var sections []string
	sections = append(sections, s.renderSteps())

	switch s.state.Phase {
	case session.PhaseVideo:
		sections = append(sections, s.renderVideo(cw))
	case session.PhaseInfo:
		sections = append(sections, s.renderInfo(cw))
	case session.PhaseQuiz:
		sections = append(sections, s.renderPractice(cw))
	case session.PhaseTask, session.PhaseDone:
		sections = append(sections, s.renderTask(cw))
	}

	if s.state.RetryPrompt != "" {
		line := lipgloss.NewStyle().Foreground(theme.Error).Render(s.state.RetryPrompt)
		if s.state.Reporting() {
			line += "  " + s.spinner.View()
		} else {
			line += "  " + s.retryBtn.View()
		}
		sections = append(sections, line)
	} else if s.state.Reporting() {
		sections = append(sections, theme.Hint.Render(s.spinner.View()+" Saving progress..."))
	}

	if s.flash != "" {
		sections = append(sections, lipgloss.NewStyle().Foreground(theme.Accent).Bold(true).Render(s.flash))
	}

	content := strings.Join(sections, "\n\n")
	return lipgloss.Place(width, height, lipgloss.Center, lipgloss.Top,
		lipgloss.NewStyle().Width(cw).Render(content))
}

// renderSteps draws the phase tabs. Unvisited phases are dim.
func (s *LevelScreen) renderSteps() string {
	parts := make([]string, 0, len(session.Phases))
	for i, p := range session.Phases {
		label := fmt.Sprintf("%d %s", i+1, phaseLabels[p])
		switch {
		case p == s.state.Phase:
			parts = append(parts, theme.ButtonActive.Render(label))
		case s.state.Visited[p]:
			parts = append(parts, lipgloss.NewStyle().Foreground(theme.Text).Padding(0, 2).Render(label))
		default:
			parts = append(parts, theme.Locked.Padding(0, 2).Render(label))
		}
	}
	return strings.Join(parts, lipgloss.NewStyle().Foreground(theme.Border).Render("›"))
}

func (s *LevelScreen) renderVideo(cw int) string {
	media := s.state.Media
	idx, count := s.state.Segment()
	total := media.Duration()

	var b strings.Builder
	b.WriteString(lipgloss.NewStyle().Foreground(theme.Text).Bold(true).Render(s.state.Level.Title))
	b.WriteString("\n")
	if s.state.Level.Description != "" {
		b.WriteString(theme.Hint.Render(s.state.Level.Description))
		b.WriteString("\n")
	}
	b.WriteString("\n")

	status := "▶ Playing"
	switch {
	case s.state.Runner.Controller().QuizVisible():
		status = "❚❚ Quiz time"
	case s.state.Runner.Controller().Restarting():
		status = "↺ Rewinding"
	case media.Paused():
		status = "❚❚ Paused"
	}
	if s.speed > 1 {
		status += fmt.Sprintf("  ×%g", s.speed)
	}
	b.WriteString(fmt.Sprintf("%s   %s / %s\n",
		lipgloss.NewStyle().Foreground(theme.Secondary).Render(status),
		clockTime(media.Position()), clockTime(total)))

	pos := 0.0
	if total > 0 {
		pos = media.Position() / total
	}
	b.WriteString(components.SegmentBar{Count: count, Current: idx, Position: pos, Width: cw}.View())

	if s.state.Runner.Controller().QuizVisible() {
		b.WriteString("\n\n")
		b.WriteString(s.renderOverlay(cw))
	}
	return b.String()
}

func (s *LevelScreen) renderOverlay(cw int) string {
	idx, count := s.state.Segment()
	head := theme.Hint.Render(fmt.Sprintf("Checkpoint %d of %d", idx+1, count-1))
	body := s.choice.View()

	if ch := s.state.Runner.Challenge(); ch != nil && ch.Submitted() {
		if ch.Correct() {
			body += "\n" + theme.Correct.Render("Correct!")
		} else {
			body += "\n" + theme.Incorrect.Render("Incorrect. Rewinding this part...")
		}
	}
	return theme.Overlay.Width(cw - 4).Render(head + "\n\n" + body)
}

func (s *LevelScreen) renderInfo(cw int) string {
	lvl := s.state.Level
	info := lvl.InfoContent
	if strings.TrimSpace(info) == "" {
		info = "Well done watching the video. Take a moment to recall what you learned."
	}
	return lipgloss.NewStyle().Foreground(theme.Text).Bold(true).Render("What you learned") + "\n\n" +
		components.Panel("", info, cw) + "\n\n" +
		theme.Hint.Render("Press Enter when you are ready for the quiz.")
}

func (s *LevelScreen) renderPractice(cw int) string {
	p := s.state.Practice
	if p == nil {
		return ""
	}
	var b strings.Builder
	n := len(p.Questions())
	b.WriteString(lipgloss.NewStyle().Foreground(theme.Text).Bold(true).Render("Quiz"))
	if n == 0 {
		b.WriteString("\n\n" + theme.Hint.Render("No questions for this level. Press s to continue."))
		return b.String()
	}
	b.WriteString(theme.Hint.Render(fmt.Sprintf("   Question %d of %d   %d answered", s.practiceIdx+1, n, p.Answered())))
	b.WriteString("\n\n")
	b.WriteString(components.Panel("", s.practiceChoice.View(), cw))

	if r := s.state.LastPractice; r != nil {
		style := theme.Incorrect
		if r.Passed {
			style = theme.Correct
		}
		b.WriteString("\n" + style.Render(fmt.Sprintf("Score: %d/%d", r.Correct, r.Total)))
	}
	if s.practiceMsg != "" {
		b.WriteString("\n" + theme.Hint.Render(s.practiceMsg))
	}
	return b.String()
}

func (s *LevelScreen) renderTask(cw int) string {
	lvl := s.state.Level
	var b strings.Builder
	b.WriteString(lipgloss.NewStyle().Foreground(theme.Text).Bold(true).Render("Real-world task"))
	b.WriteString(theme.Hint.Render(fmt.Sprintf("   +%d coins on completion", lvl.XPReward)))
	b.WriteString("\n\n")
	task := lvl.TaskDescription
	if task == "" {
		task = "Complete the activity from the video and upload a photo as proof."
	}
	b.WriteString(components.Panel("Your mission", task, cw))
	b.WriteString("\n\n")

	if v := s.state.Verification; v != nil {
		b.WriteString(theme.Correct.Render("✓ Proof verified"))
		if v.Message != "" {
			b.WriteString("  " + theme.Hint.Render(v.Message))
		}
		if a := analysisLine(v.Analysis); a != "" {
			b.WriteString("\n" + theme.Hint.Render(a))
		}
		return b.String()
	}

	b.WriteString(s.proofInput.View())
	if s.proofBusy {
		b.WriteString("\n\n" + s.spinner.View() + " " + theme.Hint.Render("Verifying proof, this can take a minute..."))
	}
	if s.proofFile != "" {
		b.WriteString("\n" + theme.Hint.Render("Last upload: "+s.proofFile))
	}
	if s.proofErr != "" {
		b.WriteString("\n\n" + lipgloss.NewStyle().Foreground(theme.Error).Width(cw).Render(s.proofErr))
		if rej := s.state.Rejection; rej != nil {
			if a := analysisLine(rej.Result.Analysis); a != "" {
				b.WriteString("\n" + theme.Hint.Render(a))
			}
		}
	}
	return b.String()
}

// analysisLine summarizes the backend's judgement of a proof, e.g.
// "Confidence 92%  Relevance 80%  AI-generated 3%".
func analysisLine(a *api.Analysis) string {
	if a == nil {
		return ""
	}
	var parts []string
	add := func(label string, v *float64) {
		if v != nil {
			parts = append(parts, fmt.Sprintf("%s %.0f%%", label, percent(*v)))
		}
	}
	add("Confidence", a.Confidence)
	add("Relevance", a.Relevance)
	add("AI-generated", a.AIProbability)
	if a.ProofDetected != nil && !*a.ProofDetected {
		parts = append(parts, "no proof detected")
	}
	return strings.Join(parts, "  ")
}

// percent accepts both 0..1 and 0..100 scales.
func percent(v float64) float64 {
	if v <= 1 {
		return v * 100
	}
	return v
}

func clockTime(seconds float64) string {
	t := int(seconds)
	return fmt.Sprintf("%d:%02d", t/60, t%60)
}
