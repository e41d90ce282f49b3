package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"fitlog-go/internal/app"
	"fitlog-go/internal/logbook"
)

func NewSessionCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "session",
		Short: "Start, complete or delete workout sessions",
	}

	var template, notes string
	start := &cobra.Command{
		Use:   "start",
		Short: "Start a session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(rootOpts, cmd, func(ctx context.Context, a *app.App, out *OutputFormatter) error {
				s, err := a.Logbook.StartSession(ctx, template, notes)
				if err != nil {
					return err
				}
				return out.Success(s, fmt.Sprintf("session %d started", s.ID))
			})
		},
	}
	start.Flags().StringVarP(&template, "template", "t", "", "workout template id")
	start.Flags().StringVar(&notes, "notes", "", "session notes")

	var doneNotes string
	complete := &cobra.Command{
		Use:   "complete <session-id>",
		Short: "Mark a session completed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(rootOpts, cmd, func(ctx context.Context, a *app.App, out *OutputFormatter) error {
				id, err := parseID(args[0], "session id")
				if err != nil {
					return err
				}
				s, err := a.Logbook.CompleteSession(ctx, id, doneNotes)
				if err != nil {
					return err
				}
				return out.Success(s, fmt.Sprintf("session %d completed", s.ID))
			})
		},
	}
	complete.Flags().StringVar(&doneNotes, "notes", "", "replace the session notes")

	del := &cobra.Command{
		Use:   "delete <session-id>",
		Short: "Delete a session and its sets",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(rootOpts, cmd, func(ctx context.Context, a *app.App, out *OutputFormatter) error {
				id, err := parseID(args[0], "session id")
				if err != nil {
					return err
				}
				if err := a.Logbook.DeleteSession(ctx, id); err != nil {
					return err
				}
				return out.Success(map[string]int64{"deleted": id}, fmt.Sprintf("session %d deleted", id))
			})
		},
	}

	cmd.AddCommand(start, complete, del)
	return cmd
}

func NewSetCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		number int
		rpe    float64
		warmup bool
	)
	cmd := &cobra.Command{
		Use:   "set <session-id> <exercise> <weight> <reps>",
		Short: "Log a set",
		Args:  cobra.ExactArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(rootOpts, cmd, func(ctx context.Context, a *app.App, out *OutputFormatter) error {
				in := logbook.SetInput{ExerciseID: args[1], SetNumber: number, IsWarmup: warmup}
				var err error
				if in.SessionID, err = parseID(args[0], "session id"); err != nil {
					return err
				}
				if in.Weight, err = parseFloat(args[2], "weight"); err != nil {
					return err
				}
				if in.Reps, err = parseInt(args[3], "reps"); err != nil {
					return err
				}
				if cmd.Flags().Changed("rpe") {
					in.RPE = &rpe
				}
				set, err := a.Logbook.LogSet(ctx, in)
				if err != nil {
					return err
				}
				return out.Success(set, fmt.Sprintf("set %d: %s %gx%d", set.SetNumber, set.ExerciseID, set.Weight, set.Reps))
			})
		},
	}
	cmd.Flags().IntVar(&number, "number", 0, "set number (default: next in session)")
	cmd.Flags().Float64Var(&rpe, "rpe", 0, "rate of perceived exertion, 0-10")
	cmd.Flags().BoolVar(&warmup, "warmup", false, "mark as a warm-up set")
	return cmd
}

func NewWeightCommand(rootOpts *RootOptions) *cobra.Command {
	var unit string
	cmd := &cobra.Command{
		Use:   "weight <value>",
		Short: "Record body weight",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(rootOpts, cmd, func(ctx context.Context, a *app.App, out *OutputFormatter) error {
				v, err := parseFloat(args[0], "weight")
				if err != nil {
					return err
				}
				w, err := a.Logbook.RecordWeight(ctx, v, unit)
				if err != nil {
					return err
				}
				return out.Success(w, fmt.Sprintf("recorded %g %s", w.Weight, w.Unit))
			})
		},
	}
	cmd.Flags().StringVar(&unit, "unit", "kg", "kg or lb")
	return cmd
}

func NewMaxCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "max <exercise> <weight> <reps>",
		Short: "Record an estimated one-rep max",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(rootOpts, cmd, func(ctx context.Context, a *app.App, out *OutputFormatter) error {
				weight, err := parseFloat(args[1], "weight")
				if err != nil {
					return err
				}
				reps, err := parseInt(args[2], "reps")
				if err != nil {
					return err
				}
				m, err := a.Logbook.RecordEstimatedMax(ctx, args[0], weight, reps)
				if err != nil {
					return err
				}
				return out.Success(m, fmt.Sprintf("%s estimated 1RM: %g", m.ExerciseID, m.Value))
			})
		},
	}
}

func NewFeedbackCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		session int64
		kind    string
	)
	cmd := &cobra.Command{
		Use:   "feedback <text>",
		Short: "Save coaching feedback",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(rootOpts, cmd, func(ctx context.Context, a *app.App, out *OutputFormatter) error {
				var sessionID *int64
				if session > 0 {
					sessionID = &session
				}
				f, err := a.Logbook.SaveFeedback(ctx, sessionID, kind, strings.Join(args, " "))
				if err != nil {
					return err
				}
				return out.Success(f, fmt.Sprintf("feedback %d saved", f.ID))
			})
		},
	}
	cmd.Flags().Int64Var(&session, "session", 0, "attach to this session")
	cmd.Flags().StringVar(&kind, "kind", "note", "feedback kind")
	return cmd
}
