package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"coffee-queue/internal/infra/storage"
	"coffee-queue/internal/infra/storage/postgres"
)

var orderOptions []string

var placeOrderCmd = &cobra.Command{
	Use:   "place-order [guest_name] [drink]",
	Short: "Place a new order directly against the store",
	Args:  cobra.ExactArgs(2),
	Run:   runPlaceOrder,
}

func init() {
	placeOrderCmd.Flags().StringArrayVar(&orderOptions, "option", nil, "drink option, repeatable (e.g. --option 'oat milk')")
	rootCmd.AddCommand(placeOrderCmd)
}

func runPlaceOrder(cmd *cobra.Command, args []string) {
	cfg := loadConfig()
	if cfg.Database.URL == "" {
		slog.Error("place-order requires database.url in config")
		os.Exit(1)
	}

	ctx := context.Background()
	db, err := postgres.NewDB(ctx, cfg.Database)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer func() {
		_ = db.Close()
	}()

	created, err := postgres.NewOrderRepo(db).Create(ctx, storage.NewOrder{
		GuestName: args[0],
		Drink:     args[1],
		Options:   orderOptions,
	})
	if err != nil {
		slog.Error("Failed to place order", "error", err)
		os.Exit(1)
	}

	fmt.Printf("Order %s placed: queue number %d\n", created.ID, created.QueueNumber)
}
