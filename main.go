package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/tournevent/fezdelivery/internal/server"
	"github.com/tournevent/fezdelivery/pkg/delivery"
	"go.uber.org/zap"
)

var version = "0.0.1"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(),
		syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "fezdelivery",
	Short:   "Fez Delivery bridge - quotes, order submission and labels for a storefront",
	Version: version,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	RunE:  runServe,
}

var submitCmd = &cobra.Command{
	Use:   "submit <order-id>",
	Short: "Send a storefront order to Fez Delivery",
	Args:  cobra.ExactArgs(1),
	RunE:  runSubmit,
}

var statusCmd = &cobra.Command{
	Use:   "status <order-nos>...",
	Short: "Show the Fez Delivery status of one or more orders",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runStatus,
}

var labelCmd = &cobra.Command{
	Use:   "label <order-nos>",
	Short: "Render the shipping label of an order as PDF",
	Args:  cobra.ExactArgs(1),
	RunE:  runLabel,
}

func init() {
	labelCmd.Flags().StringP("output", "o", "shipping_label.pdf", "output file")

	rootCmd.AddCommand(serveCmd, submitCmd, statusCmd, labelCmd)
}

// withApp loads configuration and wires the components around fn.
func withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app) error) error {
	ctx := cmd.Context()

	// Load configuration
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	// Initialize telemetry
	logger, err := initLogger(cfg)
	if err != nil {
		return err
	}
	defer logger.Sync()

	tracerShutdown, err := initTracer(ctx, cfg)
	if err != nil {
		logger.Warn("Failed to initialize tracer", zap.Error(err))
	} else {
		defer tracerShutdown(context.Background())
	}

	a, err := initApp(ctx, cfg, logger)
	if err != nil {
		logger.Error("Failed to initialize", zap.Error(err))
		return err
	}
	defer a.Close()

	return fn(ctx, a)
}

func runServe(cmd *cobra.Command, args []string) error {
	return withApp(cmd, func(ctx context.Context, a *app) error {
		a.logger.Info("Starting Fez Delivery bridge",
			zap.Int("port", a.cfg.Port),
			zap.String("version", a.cfg.Version),
			zap.String("mode", a.cfg.FezMode),
			zap.Bool("mock", a.cfg.FezUseMock),
		)

		srv := server.New(server.Config{
			Port:              a.cfg.Port,
			PickupState:       a.cfg.FezPickupState,
			DefaultItemWeight: a.cfg.FezDefaultItemWeight,
		}, server.Deps{
			Engine:     a.engine,
			Submitter:  a.submitter,
			Dispatcher: a.dispatcher,
			Status:     a.status,
			Rates:      a.rates,
			Sessions:   a.sessions,
			Orders:     a.orders,
			Gatherer:   a.registry,
		}, a.logger)
		if err := srv.Run(ctx); err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})
}

func runSubmit(cmd *cobra.Command, args []string) error {
	orderID, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid order id %q", args[0])
	}

	return withApp(cmd, func(ctx context.Context, a *app) error {
		res, err := a.submitter.Submit(ctx, orderID, nil)
		if err != nil {
			return fmt.Errorf("submitting order %d: %s", orderID, delivery.MessageOf(err))
		}

		out := cmd.OutOrStdout()
		switch {
		case res.AlreadyLinked:
			fmt.Fprintf(out, "order %d already linked to %s\n", orderID, res.RemoteOrderNumber)
		case res.Duplicate:
			fmt.Fprintf(out, "order %d already created as %s: %s\n", orderID, res.RemoteOrderNumber, res.Message)
		default:
			fmt.Fprintf(out, "order %d created as %s (cost %.2f)\n", orderID, res.RemoteOrderNumber, res.Cost)
		}
		return nil
	})
}

func runStatus(cmd *cobra.Command, args []string) error {
	return withApp(cmd, func(ctx context.Context, a *app) error {
		out := cmd.OutOrStdout()
		failed := 0
		for _, res := range a.status.SyncStatuses(ctx, args...) {
			if res.Err != nil {
				failed++
				fmt.Fprintf(out, "%s\terror: %s\n", res.OrderNos, delivery.MessageOf(res.Err))
				continue
			}
			fmt.Fprintf(out, "%s\t%s\t%s\n", res.OrderNos, res.Details.Status, a.status.TrackingURL(res.OrderNos))
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d status reads failed", failed, len(args))
		}
		return nil
	})
}

func runLabel(cmd *cobra.Command, args []string) error {
	output, _ := cmd.Flags().GetString("output")

	return withApp(cmd, func(ctx context.Context, a *app) error {
		f, err := os.Create(output)
		if err != nil {
			return err
		}
		if err := a.status.RenderLabel(ctx, args[0], f); err != nil {
			f.Close()
			os.Remove(output)
			return fmt.Errorf("rendering label: %s", delivery.MessageOf(err))
		}
		if err := f.Close(); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "label written to %s\n", output)
		return nil
	})
}
