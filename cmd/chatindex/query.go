package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/chatindex/internal/search"
)

var (
	searchRole  string
	searchModel string
	searchSince string
	searchUntil string
	searchLang  string
	searchLimit int

	keywordsConversation string
	keywordsLimit        int
)

var searchCmd = &cobra.Command{
	Use:   "search QUERY",
	Short: "Full-text search across indexed conversations",
	Long: `Search message text, code and conversation titles. QUERY accepts quoted
phrases, AND/OR/NOT and prefix* terms; anything else is matched literally.

Dates take YYYY, YYYY-MM or YYYY-MM-DD. --until includes the whole period it
names, so --until 2024 matches through the end of 2024.`,
	Example: `  chatindex search "vector database"
  chatindex search kubernetes --role user --since 2025-01
  chatindex search python --model gpt-4o --limit 5`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSearch,
}

var showCmd = &cobra.Command{
	Use:   "show ID",
	Short: "Show a full conversation",
	Long:  "Print every message of a conversation in turn order. ID may be any unique prefix.",
	Args:  cobra.ExactArgs(1),
	RunE:  runShow,
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show index statistics",
	Args:  cobra.NoArgs,
	RunE:  runStats,
}

var keywordsCmd = &cobra.Command{
	Use:   "keywords",
	Short: "Show extracted keywords",
	Long:  "Without --conversation, list the heaviest keywords across the whole corpus.",
	Args:  cobra.NoArgs,
	RunE:  runKeywords,
}

func init() {
	f := searchCmd.Flags()
	f.StringVar(&searchRole, "role", "", "only messages with this role (user, assistant, system, tool)")
	f.StringVar(&searchModel, "model", "", "only messages whose model contains this text")
	f.StringVar(&searchSince, "since", "", "only messages on or after this date")
	f.StringVar(&searchUntil, "until", "", "only messages up to the end of this date period")
	f.StringVar(&searchLang, "lang", "", "only conversations with messages in this language (ISO 639-1)")
	f.IntVarP(&searchLimit, "limit", "n", 0, "maximum results (default: search.default_limit from config, 20)")

	keywordsCmd.Flags().StringVarP(&keywordsConversation, "conversation", "c", "", "conversation id or prefix")
	keywordsCmd.Flags().IntVarP(&keywordsLimit, "limit", "n", search.DefaultTopKeywords, "maximum keywords for corpus-wide listings")

	rootCmd.AddCommand(searchCmd, showCmd, statsCmd, keywordsCmd)
}

// buildQuery assembles a search.Query from the search flags.
func buildQuery(cmd *cobra.Command, text string, defaultLimit int) (search.Query, error) {
	q := search.Query{
		Text:  text,
		Role:  searchRole,
		Model: searchModel,
		Lang:  searchLang,
		Limit: defaultLimit,
	}
	if cmd.Flags().Changed("limit") {
		if searchLimit <= 0 {
			return q, fmt.Errorf("--limit must be greater than 0, got %d", searchLimit)
		}
		q.Limit = searchLimit
	}
	if searchSince != "" {
		t, err := search.ParseDateFilter(searchSince, false)
		if err != nil {
			return q, fmt.Errorf("--since: %w", err)
		}
		q.Since = &t
	}
	if searchUntil != "" {
		t, err := search.ParseDateFilter(searchUntil, true)
		if err != nil {
			return q, fmt.Errorf("--until: %w", err)
		}
		q.Until = &t
	}
	return q, nil
}

func runSearch(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.close()

	q, err := buildQuery(cmd, strings.Join(args, " "), a.cfg.Search.DefaultLimit)
	if err != nil {
		return err
	}

	st, s, err := a.openSearcher(cmd.Context())
	if err != nil {
		return err
	}
	defer st.Close()

	results, err := s.Search(cmd.Context(), q)
	if err != nil {
		return err
	}
	renderResults(cmd.OutOrStdout(), results)
	return nil
}

func runShow(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.close()

	st, s, err := a.openSearcher(cmd.Context())
	if err != nil {
		return err
	}
	defer st.Close()

	view, err := s.Conversation(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	renderConversation(cmd.OutOrStdout(), view)
	return nil
}

func runStats(cmd *cobra.Command, _ []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.close()

	st, s, err := a.openSearcher(cmd.Context())
	if err != nil {
		return err
	}
	defer st.Close()

	stats, err := s.Stats(cmd.Context())
	if err != nil {
		return err
	}
	renderStats(cmd.OutOrStdout(), stats)
	return nil
}

func runKeywords(cmd *cobra.Command, _ []string) error {
	if keywordsLimit <= 0 {
		return fmt.Errorf("--limit must be greater than 0, got %d", keywordsLimit)
	}

	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.close()

	st, s, err := a.openSearcher(cmd.Context())
	if err != nil {
		return err
	}
	defer st.Close()

	if keywordsConversation != "" {
		kws, err := s.ConversationKeywords(cmd.Context(), keywordsConversation)
		if err != nil {
			return err
		}
		renderKeywords(cmd.OutOrStdout(), "Keywords for "+keywordsConversation, kws)
		return nil
	}

	kws, err := s.TopKeywords(cmd.Context(), keywordsLimit)
	if err != nil {
		return err
	}
	renderKeywords(cmd.OutOrStdout(), fmt.Sprintf("Top %d keywords", keywordsLimit), kws)
	return nil
}
