package main

import (
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"time"

	"infer-rpc/client"
	"infer-rpc/control"
	"infer-rpc/payload"

	"github.com/spf13/cobra"
)

func newPingCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "ping",
		Short: "Check that the server is answering",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(cmd, func(c *client.Client) error {
				status, err := c.Status(cmd.Context())
				if err != nil {
					return fmt.Errorf("server %s unreachable: %w", c.Addr(), err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderPayload(status))
				return nil
			})
		},
	}
}

func newCallCommand(ctx *commandContext) *cobra.Command {
	var sets []string
	var noInput bool

	cmd := &cobra.Command{
		Use:   "call <endpoint>",
		Short: "Call an endpoint and print the reply",
		Long: "Call an endpoint with fields given as --set name:type=value.\n\n" +
			"Types are int, float, string, bool, bytes (hex) or an array dtype\n" +
			"with an optional shape, for example float32[1,7]=0,0,0,0,0,0,1.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if noInput && len(sets) > 0 {
				return fmt.Errorf("--no-input cannot be combined with --set")
			}
			var data payload.Map
			if !noInput {
				var err error
				if data, err = parseFields(sets); err != nil {
					return err
				}
			}
			return ctx.withClient(cmd, func(c *client.Client) error {
				result, err := c.Call(cmd.Context(), args[0], data)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderPayload(result))
				return nil
			})
		},
	}
	cmd.Flags().StringArrayVar(&sets, "set", nil, "Request field as name:type=value (repeatable)")
	cmd.Flags().BoolVar(&noInput, "no-input", false, "Send the request without a data field")
	return cmd
}

func newKillCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "kill",
		Short: "Stop the server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(cmd, func(c *client.Client) error {
				if err := c.KillServer(cmd.Context()); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Server at %s is stopping\n", c.Addr())
				return nil
			})
		},
	}
}

func newDriveCommand(ctx *commandContext) *cobra.Command {
	var (
		steps     int
		fps       float64
		stateDim  int
		imageSize int
		task      string
	)

	cmd := &cobra.Command{
		Use:   "drive",
		Short: "Run the control loop against a simulated robot",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			runCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			return ctx.withClient(cmd, func(c *client.Client) error {
				loop := &control.Loop{
					Robot: &control.SimRobot{
						StateDim:    stateDim,
						ImageHeight: imageSize,
						ImageWidth:  imageSize,
						Task:        task,
					},
					Source:   c,
					FPS:      fps,
					MaxSteps: steps,
					Logger:   ctx.logger,
				}
				stats, err := loop.Run(runCtx)
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(
					[]string{"Steps", "Actions", "Failures", "Elapsed"},
					[][]string{{
						strconv.Itoa(stats.Steps),
						strconv.Itoa(stats.Actions),
						strconv.Itoa(stats.Failures),
						stats.Elapsed.Round(time.Millisecond).String(),
					}},
					[]columnAlignment{alignRight, alignRight, alignRight, alignRight},
				))
				return err
			})
		},
	}
	cmd.Flags().IntVar(&steps, "steps", 100, "Steps to run, 0 runs until interrupted")
	cmd.Flags().Float64Var(&fps, "fps", 30, "Control rate, 0 runs unpaced")
	cmd.Flags().IntVar(&stateDim, "state-dim", 7, "Joint state dimension")
	cmd.Flags().IntVar(&imageSize, "image-size", 0, "Camera frame height and width, 0 sends no image")
	cmd.Flags().StringVar(&task, "task", "", "Task description sent with each observation")
	return cmd
}
