package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"

	"answerlab/internal/app"
	"answerlab/internal/domain"
	"answerlab/internal/export"
	"github.com/spf13/cobra"
)

// NewSheetCmd groups the local sheet management subcommands.
func NewSheetCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sheet",
		Short: "Manage answer sheets in the configured storage",
	}
	cmd.AddCommand(
		newSheetCreateCmd(configPath),
		newSheetListCmd(configPath),
		newSheetShowCmd(configPath),
		newSheetAnswerCmd(configPath),
		newSheetRenameCmd(configPath),
		newSheetResizeCmd(configPath),
		newSheetCheckCmd(configPath),
		newSheetDeleteCmd(configPath),
		newSheetExportCmd(configPath),
	)
	return cmd
}

// sheetRun is a subcommand body with the store loaded and the configured weights resolved.
type sheetRun func(ctx context.Context, store *app.SheetStore, weights domain.Weights, cmd *cobra.Command, args []string) error

// withStore runs fn against a freshly loaded store and releases the slot afterwards.
func withStore(configPath *string, fn sheetRun) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		store, cfg, closeSlot, err := openStore(ctx, *configPath)
		if err != nil {
			return err
		}
		defer closeSlot()
		return fn(ctx, store, configWeights(cfg), cmd, args)
	}
}

func newSheetCreateCmd(configPath *string) *cobra.Command {
	var form app.SheetForm
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a blank sheet",
		Args:  cobra.NoArgs,
	}
	cmd.Flags().StringVar(&form.Name, "name", "", "sheet name")
	cmd.Flags().StringVar(&form.Questions, "questions", "10", "number of questions")
	cmd.Flags().StringVar(&form.Choices, "choices", "4", "number of choices per question")
	cmd.RunE = withStore(configPath, func(ctx context.Context, store *app.SheetStore, _ domain.Weights, cmd *cobra.Command, _ []string) error {
		payload, err := app.ParseSheetForm(form)
		if err != nil {
			return errors.New(app.Message(err))
		}
		sheet, err := store.Create(ctx, payload)
		if err != nil {
			return errors.New(app.Message(err))
		}
		fmt.Fprintln(cmd.OutOrStdout(), sheet.ID)
		return nil
	})
	return cmd
}

func newSheetListCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List sheets, newest first",
		Args:  cobra.NoArgs,
		RunE: withStore(configPath, func(_ context.Context, store *app.SheetStore, _ domain.Weights, cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			sheets := store.Sheets()
			if len(sheets) == 0 {
				fmt.Fprintln(out, "No sheets yet. Create one to get started.")
				return nil
			}
			for _, sheet := range sheets {
				fmt.Fprintf(out, "%s\t%s\t%d questions\t%d choices\tupdated %s\n",
					sheet.ID, sheet.Name, sheet.QuestionCount, sheet.ChoiceCount,
					sheet.Updated().Format("2006-01-02 15:04"))
			}
			return nil
		}),
	}
}

func newSheetShowCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Print a sheet's answers and key",
		Args:  cobra.ExactArgs(1),
	}
	cmd.RunE = withStore(configPath, func(_ context.Context, store *app.SheetStore, _ domain.Weights, cmd *cobra.Command, args []string) error {
		sheet, ok := store.Get(args[0])
		if !ok {
			return domain.ErrSheetNotFound
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "%s (%d questions, %d choices)\n", sheet.Name, sheet.QuestionCount, sheet.ChoiceCount)
		for i, entry := range sheet.Answers {
			fmt.Fprintf(out, "%3d  answer %-4s key %s\n", i+1, choiceLabel(entry.UserAnswer), choiceLabel(entry.KeyAnswer))
		}
		return nil
	})
	return cmd
}

func newSheetAnswerCmd(configPath *string) *cobra.Command {
	var key bool
	cmd := &cobra.Command{
		Use:   "answer <id> <question> <choice|none>",
		Short: "Set or clear one answer (use --key for the answer key)",
		Args:  cobra.ExactArgs(3),
	}
	cmd.Flags().BoolVar(&key, "key", false, "edit the answer key instead of the attempt")
	cmd.RunE = withStore(configPath, func(ctx context.Context, store *app.SheetStore, _ domain.Weights, _ *cobra.Command, args []string) error {
		sheet, ok := store.Get(args[0])
		if !ok {
			return domain.ErrSheetNotFound
		}
		question, err := strconv.Atoi(args[1])
		if err != nil || question < 1 || question > sheet.QuestionCount {
			return fmt.Errorf("question must be between 1 and %d", sheet.QuestionCount)
		}
		value, err := app.ParseChoice(args[2], sheet.ChoiceCount)
		if err != nil {
			return fmt.Errorf("choice must be between 1 and %d or %q", sheet.ChoiceCount, app.NoChoice)
		}
		role := domain.RoleUser
		if key {
			role = domain.RoleKey
		}
		store.SetAnswer(ctx, sheet.ID, question-1, role, value)
		return nil
	})
	return cmd
}

func newSheetRenameCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rename <id> <name>",
		Short: "Rename a sheet",
		Args:  cobra.ExactArgs(2),
	}
	cmd.RunE = withStore(configPath, func(ctx context.Context, store *app.SheetStore, _ domain.Weights, _ *cobra.Command, args []string) error {
		if _, ok := store.Get(args[0]); !ok {
			return domain.ErrSheetNotFound
		}
		if err := store.Rename(ctx, args[0], args[1]); err != nil {
			return errors.New(app.Message(err))
		}
		return nil
	})
	return cmd
}

func newSheetResizeCmd(configPath *string) *cobra.Command {
	var questions, choices string
	cmd := &cobra.Command{
		Use:   "resize <id>",
		Short: "Change question and choice counts, keeping answers that still fit",
		Args:  cobra.ExactArgs(1),
	}
	cmd.Flags().StringVar(&questions, "questions", "", "new number of questions")
	cmd.Flags().StringVar(&choices, "choices", "", "new number of choices")
	cmd.RunE = withStore(configPath, func(ctx context.Context, store *app.SheetStore, _ domain.Weights, _ *cobra.Command, args []string) error {
		sheet, ok := store.Get(args[0])
		if !ok {
			return domain.ErrSheetNotFound
		}
		form := app.SheetForm{Name: sheet.Name, Questions: questions, Choices: choices}
		if form.Questions == "" {
			form.Questions = strconv.Itoa(sheet.QuestionCount)
		}
		if form.Choices == "" {
			form.Choices = strconv.Itoa(sheet.ChoiceCount)
		}
		payload, err := app.ParseSheetForm(form)
		if err != nil {
			return errors.New(app.Message(err))
		}
		return store.Resize(ctx, sheet.ID, payload.QuestionCount, payload.ChoiceCount)
	})
	return cmd
}

func newSheetCheckCmd(configPath *string) *cobra.Command {
	var correct, incorrect, noAnswer string
	cmd := &cobra.Command{
		Use:   "check <id>",
		Short: "Compare the attempt with the answer key and print the score",
		Args:  cobra.ExactArgs(1),
	}
	cmd.Flags().StringVar(&correct, "correct", "", "multiplier for correct answers (default from config, else 1)")
	cmd.Flags().StringVar(&incorrect, "incorrect", "", "multiplier for incorrect answers (default from config, else 0)")
	cmd.Flags().StringVar(&noAnswer, "no-answer", "", "multiplier for unanswered questions (default from config, else 0)")
	cmd.RunE = withStore(configPath, func(_ context.Context, store *app.SheetStore, weights domain.Weights, cmd *cobra.Command, args []string) error {
		sheet, ok := store.Get(args[0])
		if !ok {
			return domain.ErrSheetNotFound
		}
		summary, err := app.Evaluate(sheet)
		if err != nil {
			return errors.New(app.Message(err))
		}
		weights = overrideWeights(cmd, weights, correct, incorrect, noAnswer)
		printScoreCard(cmd.OutOrStdout(), app.NewScoreCard(summary, weights))
		return nil
	})
	return cmd
}

func newSheetDeleteCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a sheet (missing ids are ignored)",
		Args:  cobra.ExactArgs(1),
	}
	cmd.RunE = withStore(configPath, func(ctx context.Context, store *app.SheetStore, _ domain.Weights, _ *cobra.Command, args []string) error {
		store.Remove(ctx, args[0])
		return nil
	})
	return cmd
}

func newSheetExportCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export <file.xlsx>",
		Short: "Write all sheets to an xlsx workbook",
		Args:  cobra.ExactArgs(1),
	}
	cmd.RunE = withStore(configPath, func(_ context.Context, store *app.SheetStore, weights domain.Weights, cmd *cobra.Command, args []string) error {
		sheets := store.Sheets()
		if err := export.SaveAs(args[0], sheets, weights); err != nil {
			return fmt.Errorf("export: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "exported %d sheets to %s\n", len(sheets), args[0])
		return nil
	})
	return cmd
}

// overrideWeights replaces configured weights with any flag the user set.
func overrideWeights(cmd *cobra.Command, base domain.Weights, correct, incorrect, noAnswer string) domain.Weights {
	flags := cmd.Flags()
	if flags.Changed("correct") {
		base.Correct = app.ParseWeights(correct, "", "").Correct
	}
	if flags.Changed("incorrect") {
		base.Incorrect = app.ParseWeights("", incorrect, "").Incorrect
	}
	if flags.Changed("no-answer") {
		base.NoAnswer = app.ParseWeights("", "", noAnswer).NoAnswer
	}
	return base
}

func printScoreCard(out io.Writer, card app.ScoreCard) {
	labels := map[app.Category]string{
		app.CategoryCorrect:   "Correct",
		app.CategoryIncorrect: "Incorrect",
		app.CategoryNoAnswer:  "No answer",
	}
	fmt.Fprintf(out, "%-16s %6s %10s %10s\n", "Result", "Count", "Multiplier", "Score")
	for _, row := range card.Rows {
		fmt.Fprintf(out, "%-16s %6d %10s %10s\n", labels[row.Category], row.Count, formatNumber(row.Weight), formatNumber(row.Score))
	}
	fmt.Fprintf(out, "%-16s %6d\n", "Total questions", card.Summary.Total)
	fmt.Fprintf(out, "%-16s %s/%s\n", "Total score", formatNumber(card.Total), formatNumber(card.Max))
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func choiceLabel(v *int) string {
	if v == nil {
		return "-"
	}
	return strconv.Itoa(*v)
}
