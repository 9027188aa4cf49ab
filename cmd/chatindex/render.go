package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/fyrsmithlabs/chatindex/internal/indexer"
	"github.com/fyrsmithlabs/chatindex/internal/language"
	"github.com/fyrsmithlabs/chatindex/internal/search"
)

const (
	ruleWidth       = 70
	idPreviewLen    = 12
	maxShownCode    = 20
	roleColumnWidth = 12
	labelWidth      = len("Conversations:")
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("51"))

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("45"))

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("250"))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("243"))

	roleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("39"))

	codeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("220"))

	okStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("46"))

	errorStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("196"))
)

func rule(ch string) string {
	return strings.Repeat(ch, ruleWidth)
}

func shortID(id string) string {
	if len(id) <= idPreviewLen {
		return id
	}
	return id[:idPreviewLen] + "..."
}

func dateOnly(ts string) string {
	if len(ts) >= 10 {
		return ts[:10]
	}
	return ts
}

// field prints an aligned "label value" line.
func field(w io.Writer, label string, value any) {
	pad := strings.Repeat(" ", max(0, labelWidth-len(label)))
	fmt.Fprintf(w, "  %s%s %v\n", labelStyle.Render(label), pad, value)
}

func renderBuild(w io.Writer, st *indexer.Stats) {
	fmt.Fprintln(w, okStyle.Render("Index built successfully:"))
	field(w, "Conversations:", st.ConversationCount)
	field(w, "Messages:", st.MessageCount)
	field(w, "Keywords:", st.KeywordCount)
	if st.SkippedRecords > 0 {
		field(w, "Skipped:", st.SkippedRecords)
	}
	if st.DuplicateMessages > 0 {
		field(w, "Duplicates:", st.DuplicateMessages)
	}
	if st.ScrubbedMessages > 0 {
		field(w, "Scrubbed:", st.ScrubbedMessages)
	}
	field(w, "Duration:", fmt.Sprintf("%.1fs", st.Duration.Seconds()))
	field(w, "Database:", st.DBPath)
}

// renderResults prints results grouped by conversation, in order of each
// conversation's best match.
func renderResults(w io.Writer, results []search.Result) {
	if len(results) == 0 {
		fmt.Fprintln(w, "No results found.")
		return
	}

	var order []string
	groups := make(map[string][]search.Result)
	for _, r := range results {
		if _, ok := groups[r.ConversationID]; !ok {
			order = append(order, r.ConversationID)
		}
		groups[r.ConversationID] = append(groups[r.ConversationID], r)
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, rule("="))
	fmt.Fprintln(w, titleStyle.Render(fmt.Sprintf("  %d results across %d conversations", len(results), len(order))))
	fmt.Fprintln(w, rule("="))

	for _, id := range order {
		group := groups[id]
		first := group[0]

		fmt.Fprintln(w)
		fmt.Fprintf(w, "%s %s\n",
			dimStyle.Render("["+dateOnly(search.FormatTimestamp(first.CreatedAt))+"]"),
			headerStyle.Render(first.ConversationTitle))
		fmt.Fprintf(w, "  %s %s\n", labelStyle.Render("ID:"), shortID(id))
		if first.ModelSlug != "" {
			fmt.Fprintf(w, "  %s %s\n", labelStyle.Render("Model:"), first.ModelSlug)
		}
		fmt.Fprintln(w, "  "+dimStyle.Render(strings.Repeat("-", 40)))

		for _, r := range group {
			role := fmt.Sprintf("%-*s", roleColumnWidth, "["+r.Role+"]")
			snippet := strings.ReplaceAll(r.ContentSnippet, "\n", " ")
			fmt.Fprintf(w, "  %s %s\n", roleStyle.Render(role), snippet)
			if r.CodeSnippet != "" {
				code := strings.ReplaceAll(r.CodeSnippet, "\n", " ")
				fmt.Fprintf(w, "  %s %s\n", strings.Repeat(" ", roleColumnWidth), codeStyle.Render("code: "+code))
			}
		}
	}
	fmt.Fprintln(w)
}

func renderConversation(w io.Writer, v *search.ConversationView) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, rule("="))
	fmt.Fprintln(w, titleStyle.Render("  "+v.Title))
	fmt.Fprintf(w, "  %s %s\n", labelStyle.Render("ID:"), v.ID)
	fmt.Fprintf(w, "  %s %s\n", labelStyle.Render("Created:"), search.FormatTimestamp(v.CreatedAt))
	if v.DefaultModelSlug != "" {
		fmt.Fprintf(w, "  %s %s\n", labelStyle.Render("Model:"), v.DefaultModelSlug)
	}
	fmt.Fprintf(w, "  %s %d\n", labelStyle.Render("Messages:"), len(v.Messages))
	fmt.Fprintln(w, rule("="))

	for _, m := range v.Messages {
		fmt.Fprintln(w)
		header := roleStyle.Render(strings.ToUpper(m.Role))
		if m.ModelSlug != "" {
			header += dimStyle.Render(" (" + m.ModelSlug + ")")
		}
		if m.CreatedAt != nil {
			header += "  " + dimStyle.Render(search.FormatTimestamp(m.CreatedAt))
		}
		fmt.Fprintln(w, header)
		fmt.Fprintln(w, dimStyle.Render(rule("-")))

		if m.Content != "" {
			for _, line := range strings.Split(m.Content, "\n") {
				fmt.Fprintln(w, "  "+line)
			}
		}
		if m.Code != "" {
			lines := strings.Split(m.Code, "\n")
			fmt.Fprintln(w, "  "+codeStyle.Render("[code]"))
			shown := lines
			if len(shown) > maxShownCode {
				shown = shown[:maxShownCode]
			}
			for _, line := range shown {
				fmt.Fprintln(w, "    "+codeStyle.Render(line))
			}
			if len(lines) > maxShownCode {
				fmt.Fprintln(w, "    "+dimStyle.Render(fmt.Sprintf("... (%d more lines)", len(lines)-maxShownCode)))
			}
		}
	}
	fmt.Fprintln(w)
}

func renderStats(w io.Writer, st *search.CorpusStats) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, rule("="))
	fmt.Fprintln(w, titleStyle.Render("  Index Statistics"))
	fmt.Fprintln(w, rule("="))
	field(w, "Conversations:", st.ConversationCount)
	field(w, "Messages:", st.MessageCount)
	field(w, "Keywords:", st.KeywordCount)
	if st.FirstConversation != nil {
		field(w, "Date range:", dateOnly(search.FormatTimestamp(st.FirstConversation))+
			" to "+dateOnly(search.FormatTimestamp(st.LastConversation)))
	}
	field(w, "DB size:", fmt.Sprintf("%.1f MB", st.SizeMB()))
	if st.BuildID != "" {
		field(w, "Build:", fmt.Sprintf("%s (schema v%d)", st.BuildID, st.SchemaVersion))
	}

	renderDistribution(w, "Messages by role", st.Roles, st.MessageCount, nil)
	renderDistribution(w, "Messages by model", st.Models, st.MessageCount, nil)
	renderDistribution(w, "Messages by language", st.Languages, st.MessageCount, language.DisplayName)
	renderDistribution(w, "Content types", st.ContentTypes, st.MessageCount, nil)
	fmt.Fprintln(w)
}

func renderDistribution(w io.Writer, title string, counts []search.Count, total int, label func(string) string) {
	if len(counts) == 0 {
		return
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, headerStyle.Render("  "+title+":"))
	for _, c := range counts {
		key := c.Key
		if label != nil {
			key = label(key)
		}
		pct := 0.0
		if total > 0 {
			pct = float64(c.Count) / float64(total) * 100
		}
		fmt.Fprintf(w, "    %-20s %7d  %s\n", key, c.Count, dimStyle.Render(fmt.Sprintf("(%.1f%%)", pct)))
	}
}

func renderKeywords(w io.Writer, title string, kws []search.Keyword) {
	if len(kws) == 0 {
		fmt.Fprintln(w, "No keywords found. Rebuild the index to extract keywords.")
		return
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, titleStyle.Render("  "+title))
	fmt.Fprintf(w, "  %-40s %8s\n", "Keyword", "Score")
	fmt.Fprintln(w, "  "+strings.Repeat("-", 49))
	for _, k := range kws {
		fmt.Fprintf(w, "  %-40s %8.4f\n", k.Keyword, k.Score)
	}
	fmt.Fprintln(w)
}
