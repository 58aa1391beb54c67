package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"sentinel/pkg/sentinel"
)

func main() {
	server := flag.String("server", "http://localhost:8090", "sentinel server URL")
	orderID := flag.String("order", "", "resolve one order's status instead of the overview")
	symbol := flag.String("symbol", "", "filter journal output to one symbol")
	journalN := flag.Int("journal", 10, "number of journal entries to show")
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	c := sentinel.NewClient(*server)

	if *orderID != "" {
		status, err := c.OrderStatus(ctx, *orderID)
		if err != nil {
			log.Fatalf("order status: %v", err)
		}
		fmt.Printf("%s: %s\n", *orderID, status)
		return
	}

	status, brokerName, err := c.Health(ctx)
	if err != nil {
		log.Fatalf("health: %v", err)
	}
	fmt.Printf("server:  %s (broker: %s)\n", status, brokerName)

	positions, err := c.Positions(ctx)
	if err != nil {
		log.Fatalf("positions: %v", err)
	}
	fmt.Printf("\npositions (%d):\n", len(positions))
	for _, p := range positions {
		fmt.Printf("  %-6s %8.0f @ %.2f\n", p.Symbol, p.Qty, p.AvgEntryPrice)
	}

	reg, err := c.Registry(ctx)
	if err != nil {
		log.Fatalf("registry: %v", err)
	}
	fmt.Printf("\npending buys (%d):\n", len(reg.PendingBuys))
	for _, e := range reg.PendingBuys {
		fmt.Printf("  %-6s %8.0f  %s  age %s\n", e.Symbol, e.Qty, e.OrderID,
			time.Since(e.CreatedAt).Round(time.Second))
	}
	fmt.Printf("\nprotective orders (%d):\n", len(reg.Protective))
	for _, e := range reg.Protective {
		fmt.Printf("  %-6s %8.0f  %s  [%s]\n", e.Symbol, e.Qty, e.OrderID, e.State)
	}
	if len(reg.InProgress) > 0 {
		fmt.Printf("\nin progress: %v\n", reg.InProgress)
	}

	entries, err := c.Journal(ctx, *symbol, *journalN)
	if err != nil {
		log.Fatalf("journal: %v", err)
	}
	fmt.Printf("\njournal (%d):\n", len(entries))
	for _, e := range entries {
		fmt.Printf("  %s  %-8s %-6s %s", e.Time.Local().Format("15:04:05"), e.Kind, e.Symbol, e.OrderID)
		if e.Note != "" {
			fmt.Printf("  (%s)", e.Note)
		}
		fmt.Println()
	}
}
