package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/redis/go-redis/v9"

	"storecore/internal/adapter/messaging"
	"storecore/internal/adapter/storage"
	"storecore/internal/core/service"
	"storecore/internal/logging"
)

const (
	mysqlDSN      = "root:root@tcp(localhost:3306)/storefront?parseTime=true"
	redisAddr     = "localhost:6379"
	productID     = "stress-test-product"
	initialStock  = 20
	totalRequests = 50
)

func main() {
	ctx := context.Background()

	db, err := sql.Open("mysql", mysqlDSN)
	if err != nil {
		log.Fatalf("failed to connect mysql: %v", err)
	}
	defer db.Close()
	if err := db.PingContext(ctx); err != nil {
		log.Fatalf("failed to ping mysql: %v", err)
	}

	rdb := redis.NewClient(&redis.Options{Addr: redisAddr})
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Fatalf("failed to connect redis: %v", err)
	}
	defer rdb.Close()

	mysqlAdapter := storage.NewMySQLAdapter(db)
	if err := mysqlAdapter.Migrate(ctx); err != nil {
		log.Fatalf("failed to migrate schema: %v", err)
	}
	redisAdapter := storage.NewRedisAdapter(rdb)

	// Clear previous test data
	rdb.Del(ctx, "hold:"+productID)
	db.ExecContext(ctx, `DELETE FROM reservations WHERE product_id = ?`, productID)
	db.ExecContext(ctx, `
		INSERT INTO products (id, name, price, stock, version) VALUES (?, 'Stress Test Product', '9.99', ?, 0)
		ON DUPLICATE KEY UPDATE stock = ?, version = 0`, productID, initialStock, initialStock)

	logger := logging.New("warn", true)
	reservations := service.NewReservationService(mysqlAdapter, redisAdapter, logger)
	inventory := service.NewInventoryService(mysqlAdapter, logger)
	orders := service.NewOrderService(mysqlAdapter, redisAdapter, inventory, reservations, messaging.NopPublisher{}, logger)

	// Phase 1: concurrent reservations; exactly one shopper may win.
	var reserveWins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < totalRequests; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			holder := fmt.Sprintf("user-%d", n)
			if _, err := reservations.Reserve(ctx, productID, holder, "Shopper "+holder, holder+"@example.com"); err == nil {
				reserveWins.Add(1)
			}
		}(i)
	}
	wg.Wait()

	// Phase 2: concurrent single-unit checkouts; at most initialStock succeed.
	var orderWins, orderFails atomic.Int32
	start := time.Now()
	for i := 0; i < totalRequests; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_, err := orders.PlaceOrder(ctx, service.PlaceOrderRequest{
				RequestID:       fmt.Sprintf("stress-%d-%d", n, start.UnixNano()),
				UserID:          fmt.Sprintf("user-%d", n),
				Items:           []service.CartItem{{ProductID: productID, Quantity: 1}},
				ShippingAddress: "1 Test Street",
				PaymentMethod:   "card",
			})
			if err == nil {
				orderWins.Add(1)
			} else {
				orderFails.Add(1)
			}
		}(i)
	}
	wg.Wait()
	elapsed := time.Since(start)

	fmt.Println("========== STRESS TEST RESULTS ==========")
	fmt.Printf("Initial Stock:      %d\n", initialStock)
	fmt.Printf("Total Requests:     %d\n", totalRequests)
	fmt.Printf("Reservation Wins:   %d\n", reserveWins.Load())
	fmt.Printf("Orders Placed:      %d\n", orderWins.Load())
	fmt.Printf("Orders Rejected:    %d\n", orderFails.Load())
	fmt.Printf("Duration:           %v\n", elapsed)
	fmt.Println("==========================================")

	if reserveWins.Load() == 1 {
		fmt.Println("PASS: Exactly one reservation granted")
	} else {
		fmt.Printf("FAIL: Expected 1 reservation win, got %d\n", reserveWins.Load())
	}

	if orderWins.Load() == int32(initialStock) {
		fmt.Printf("PASS: Exactly %d orders succeeded\n", initialStock)
	} else {
		fmt.Printf("FAIL: Expected %d orders, got %d\n", initialStock, orderWins.Load())
	}

	var finalStock int
	db.QueryRowContext(ctx, `SELECT stock FROM products WHERE id = ?`, productID).Scan(&finalStock)
	fmt.Printf("Final Stock: %d\n", finalStock)

	if finalStock == 0 {
		fmt.Println("PASS: Stock depleted to 0")
	} else {
		fmt.Printf("FAIL: Expected stock 0, got %d\n", finalStock)
	}
}
