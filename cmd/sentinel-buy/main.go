package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"sentinel/pkg/sentinel"
)

func main() {
	server := flag.String("server", "http://localhost:8090", "sentinel server URL")
	symbol := flag.String("symbol", "", "symbol to buy")
	qty := flag.Float64("qty", 0, "number of shares")
	limit := flag.Float64("limit", 0, "limit price (0 for market)")
	flag.Parse()

	if *symbol == "" || *qty <= 0 {
		flag.Usage()
		os.Exit(2)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	c := sentinel.NewClient(*server)
	order, err := c.SubmitBuy(ctx, *symbol, *qty, *limit)
	if err != nil {
		log.Fatalf("buy failed: %v", err)
	}

	fmt.Printf("submitted %s buy %s x%.0f", order.Type, order.Symbol, order.Qty)
	if order.LimitPrice > 0 {
		fmt.Printf(" @ %.2f", order.LimitPrice)
	}
	fmt.Printf("\n  order id: %s\n  status:   %s\n", order.ID, order.Status)
}
