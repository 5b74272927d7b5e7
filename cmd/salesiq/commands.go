package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kalambet/salesiq/internal/api"
	"github.com/kalambet/salesiq/internal/config"
	"github.com/kalambet/salesiq/internal/pipeline"
	"github.com/kalambet/salesiq/internal/plan"
)

// --- ask ---

// answerView is the subset of an answer the CLI prints.
type answerView struct {
	ID         string `json:"id"`
	Question   string `json:"question"`
	IntentKind string `json:"intent_kind"`
	Response   struct {
		Narrative string `json:"narrative"`
	} `json:"response"`
	Failure *struct {
		Kind    string `json:"kind"`
		Message string `json:"message"`
	} `json:"failure,omitempty"`
}

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Ask a question about the sales data",
	Long: `Ask a question about the sales data.

Examples:
  salesiq ask "top 5 products by profit"
  salesiq ask --local "revenue by month last year"
  salesiq ask --file questions.txt --json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		file, _ := cmd.Flags().GetString("file")
		local, _ := cmd.Flags().GetBool("local")
		asJSON, _ := cmd.Flags().GetBool("json")
		hideBlocks, _ := cmd.Flags().GetBool("no-blocks")

		var questions []string
		switch {
		case file != "":
			f, err := os.Open(file)
			if err != nil {
				return fmt.Errorf("opening questions file: %w", err)
			}
			defer f.Close()
			if questions, err = readQuestions(f); err != nil {
				return err
			}
			if len(questions) == 0 {
				return fmt.Errorf("no questions in %s", file)
			}
		case len(args) > 0:
			questions = []string{strings.Join(args, " ")}
		default:
			return fmt.Errorf("a question or --file is required")
		}

		var (
			out any
			err error
		)
		if local {
			out, err = askLocal(cmd.Context(), questions)
		} else {
			out, err = askRemote(cmd.Context(), questions)
		}
		if err != nil {
			return err
		}

		if asJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(out)
		}

		// Round-trip through JSON so local and remote answers print alike.
		data, err := json.Marshal(out)
		if err != nil {
			return err
		}
		var views []answerView
		if err := json.Unmarshal(data, &views); err != nil {
			return fmt.Errorf("decoding answers: %w", err)
		}
		printAnswers(os.Stdout, views, hideBlocks)
		return nil
	},
}

func init() {
	askCmd.Flags().String("file", "", "file with one question per line")
	askCmd.Flags().Bool("local", false, "answer in-process against the configured database instead of the server")
	askCmd.Flags().Bool("json", false, "print full answers as JSON")
	askCmd.Flags().Bool("no-blocks", false, "omit chart and table JSON blocks from the narrative")
}

// readQuestions returns the non-empty lines of r, skipping # comments.
func readQuestions(r io.Reader) ([]string, error) {
	var qs []string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		qs = append(qs, line)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading questions: %w", err)
	}
	return qs, nil
}

func askRemote(ctx context.Context, questions []string) ([]answerView, error) {
	client, err := newAPIClient()
	if err != nil {
		return nil, err
	}
	return askWith(ctx, client, questions)
}

func askWith(ctx context.Context, client *apiClient, questions []string) ([]answerView, error) {
	if len(questions) == 1 {
		resp, err := client.post(ctx, "/v1/ask", api.AskRequest{Text: questions[0]})
		if err != nil {
			return nil, err
		}
		var ans answerView
		if err := decodeJSON(resp, &ans); err != nil {
			return nil, err
		}
		return []answerView{ans}, nil
	}

	req := api.BatchRequest{Questions: make([]api.AskRequest, len(questions))}
	for i, q := range questions {
		req.Questions[i] = api.AskRequest{Text: q}
	}
	resp, err := client.post(ctx, "/v1/ask/batch", req)
	if err != nil {
		return nil, err
	}
	var batch struct {
		Answers []answerView `json:"answers"`
	}
	if err := decodeJSON(resp, &batch); err != nil {
		return nil, err
	}
	return batch.Answers, nil
}

func askLocal(ctx context.Context, questions []string) ([]pipeline.Answer, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	setupLogging(cfg.Log.Level)

	store, err := openStore(cfg)
	if err != nil {
		return nil, err
	}
	defer store.Close()

	qs := make([]pipeline.Query, len(questions))
	for i, q := range questions {
		qs[i] = pipeline.Query{Text: q}
	}
	return newAnalyzer(cfg, store).AnswerBatch(ctx, qs)
}

func printAnswers(w io.Writer, answers []answerView, hideBlocks bool) {
	for i, a := range answers {
		if len(answers) > 1 {
			if i > 0 {
				fmt.Fprintln(w)
			}
			fmt.Fprintf(w, "%s %s\n\n", colorize(colorCyan, fmt.Sprintf("[%d]", i+1)), a.Question)
		}
		if a.Failure != nil {
			fmt.Fprintln(w, colorize(colorRed, a.Failure.Message))
			continue
		}
		printNarrative(w, a.Response.Narrative, hideBlocks)
	}
}

// --- explain ---

var explainCmd = &cobra.Command{
	Use:   "explain <question>",
	Short: "Show the intent and query a question maps to, without running it",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		driver, _ := cmd.Flags().GetString("driver")
		if driver == "" {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			driver = cfg.Storage.Driver
		}
		return explain(os.Stdout, driver, strings.Join(args, " "))
	},
}

func init() {
	explainCmd.Flags().String("driver", "", "SQL dialect to plan for: sqlite or postgres (default: configured driver)")
}

func explain(w io.Writer, driver, question string) error {
	a := pipeline.NewAnalyzer(plan.NewGenerator(plan.DialectFor(driver)), nil, nil, nil, 1)
	ex, err := a.Explain(question)
	if err != nil {
		var f *pipeline.Failure
		if errors.As(err, &f) {
			return fmt.Errorf("%s (%v)", f.Message, f.Err)
		}
		return err
	}

	intentJSON, err := json.Marshal(ex.Intent)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "%s %s %s\n", colorize(colorBold, "Intent:"), ex.IntentKind, intentJSON)
	fmt.Fprintf(w, "%s %s\n\n", colorize(colorBold, "Dialect:"), ex.Dialect)
	fmt.Fprintln(w, ex.Plan)
	return nil
}

// --- history ---

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List or show asked questions",
}

var historyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recently asked questions",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), fmt.Sprintf("/v1/asks?limit=%d", limit))
		if err != nil {
			return err
		}

		var asks []struct {
			ID         string `json:"id"`
			CreatedAt  string `json:"created_at"`
			Question   string `json:"question"`
			Intent     string `json:"intent"`
			Outcome    string `json:"outcome"`
			DurationMS int64  `json:"duration_ms"`
		}
		if err := decodeJSON(resp, &asks); err != nil {
			return err
		}

		if len(asks) == 0 {
			fmt.Println("No questions asked yet.")
			return nil
		}

		for _, a := range asks {
			q := a.Question
			if len(q) > 80 {
				q = q[:80] + "..."
			}
			outcome := colorize(colorGreen, a.Outcome)
			if a.Outcome != "ok" {
				outcome = colorize(colorRed, a.Outcome)
			}
			fmt.Printf("%s  %s  %-18s %-15s %5dms  %s\n",
				colorize(colorCyan, shortID(a.ID)),
				a.CreatedAt,
				a.Intent,
				outcome,
				a.DurationMS,
				q,
			)
		}
		return nil
	},
}

var historyShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a single asked question with its query",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), "/v1/asks/"+args[0])
		if err != nil {
			return err
		}

		var ask any
		if err := decodeJSON(resp, &ask); err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(ask)
	},
}

func init() {
	historyListCmd.Flags().Int("limit", 20, "maximum number of questions to list")
	historyCmd.AddCommand(historyListCmd)
	historyCmd.AddCommand(historyShowCmd)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// --- config ---

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or update configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		for _, k := range config.ShowAll(cfg) {
			fmt.Printf("  %s = %s  %s\n", colorize(colorBold, k.Key), k.Value, colorize(colorCyan, "$"+k.EnvVar))
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Long:  "Set a configuration value. Valid keys: " + strings.Join(config.ValidKeys(), ", "),
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]

		if err := config.SetKey(key, value); err != nil {
			return err
		}

		printSuccess("Set %s = %s", key, value)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}
