package main

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	_ "github.com/go-sql-driver/mysql"
)

// Fires concurrent cash-on-delivery checkouts at a running server and checks
// that stock never oversells. Seeds its own product, variant, and one cart
// per request directly in MySQL.
func main() {
	var (
		baseURL       = flag.String("url", "http://localhost:8080", "server base url")
		mysqlDSN      = flag.String("dsn", "root:root@tcp(localhost:3306)/checkout?parseTime=true", "mysql dsn")
		initialStock  = flag.Int("stock", 20, "initial stock for the test variant")
		totalRequests = flag.Int("requests", 50, "concurrent checkout requests")
	)
	flag.Parse()

	ctx := context.Background()
	db, err := sql.Open("mysql", *mysqlDSN)
	if err != nil {
		log.Fatalf("failed to open mysql: %v", err)
	}
	defer db.Close()
	if err := db.PingContext(ctx); err != nil {
		log.Fatalf("failed to ping mysql: %v", err)
	}

	productID, variantID, cartItemIDs := seed(ctx, db, *initialStock, *totalRequests)
	log.Printf("seeded product %d variant %d with stock %d and %d carts",
		productID, variantID, *initialStock, *totalRequests)

	client := &http.Client{Timeout: 10 * time.Second}
	var successCount, shortfallCount, otherCount atomic.Int32
	var wg sync.WaitGroup
	start := time.Now()

	for i := 0; i < *totalRequests; i++ {
		wg.Add(1)
		go func(cartItemID uint64) {
			defer wg.Done()
			status, err := placeOrder(client, *baseURL, cartItemID)
			switch {
			case err != nil:
				otherCount.Add(1)
			case status == http.StatusCreated:
				successCount.Add(1)
			case status == http.StatusBadRequest:
				shortfallCount.Add(1)
			default:
				otherCount.Add(1)
			}
		}(cartItemIDs[i])
	}
	wg.Wait()
	elapsed := time.Since(start)

	var finalVariant, finalProduct int
	db.QueryRowContext(ctx, `SELECT quantity FROM product_variants WHERE id = ?`, variantID).Scan(&finalVariant)
	db.QueryRowContext(ctx, `SELECT quantity FROM products WHERE id = ?`, productID).Scan(&finalProduct)

	fmt.Println("========== STRESS TEST RESULTS ==========")
	fmt.Printf("Initial Stock:    %d\n", *initialStock)
	fmt.Printf("Total Requests:   %d\n", *totalRequests)
	fmt.Printf("Successful:       %d\n", successCount.Load())
	fmt.Printf("Out of Stock:     %d\n", shortfallCount.Load())
	fmt.Printf("Other Failures:   %d\n", otherCount.Load())
	fmt.Printf("Duration:         %v\n", elapsed)
	fmt.Printf("Final Variant Qty: %d\n", finalVariant)
	fmt.Printf("Final Product Qty: %d\n", finalProduct)
	fmt.Println("==========================================")

	expected := *initialStock
	if *totalRequests < expected {
		expected = *totalRequests
	}
	if int(successCount.Load()) == expected && finalVariant == *initialStock-expected {
		fmt.Println("PASS: stock sold exactly once per unit, no oversell")
	} else {
		fmt.Printf("FAIL: expected %d successes and variant stock %d, got %d/%d\n",
			expected, *initialStock-expected, successCount.Load(), finalVariant)
	}
}

func seed(ctx context.Context, db *sql.DB, stock, carts int) (productID, variantID uint64, cartItemIDs []uint64) {
	res, err := db.ExecContext(ctx,
		`INSERT INTO products (name, price, quantity) VALUES (?, ?, ?)`,
		fmt.Sprintf("stress-product-%d", time.Now().UnixNano()), "49.99", stock)
	if err != nil {
		log.Fatalf("seed product: %v", err)
	}
	pid, _ := res.LastInsertId()

	res, err = db.ExecContext(ctx,
		`INSERT INTO product_variants (product_id, color, size, quantity) VALUES (?, 'black', 'M', ?)`,
		pid, stock)
	if err != nil {
		log.Fatalf("seed variant: %v", err)
	}
	vid, _ := res.LastInsertId()

	for i := 0; i < carts; i++ {
		res, err = db.ExecContext(ctx, `INSERT INTO carts (session_key) VALUES (?)`,
			fmt.Sprintf("stress-%d-%d", time.Now().UnixNano(), i))
		if err != nil {
			log.Fatalf("seed cart: %v", err)
		}
		cid, _ := res.LastInsertId()
		res, err = db.ExecContext(ctx,
			`INSERT INTO cart_items (cart_id, variant_id, quantity) VALUES (?, ?, 1)`, cid, vid)
		if err != nil {
			log.Fatalf("seed cart item: %v", err)
		}
		ciid, _ := res.LastInsertId()
		cartItemIDs = append(cartItemIDs, uint64(ciid))
	}
	return uint64(pid), uint64(vid), cartItemIDs
}

func placeOrder(client *http.Client, baseURL string, cartItemID uint64) (int, error) {
	body, _ := json.Marshal(map[string]any{
		"fullName":       "Stress Tester",
		"address":        "1 Load Ave",
		"email":          "stress@example.com",
		"phone":          "0000000000",
		"city":           "Dhaka",
		"shippingMethod": "cash_on_delivery",
		"cartItemIds":    []uint64{cartItemID},
	})
	resp, err := client.Post(baseURL+"/api/checkout/orders", "application/json", bytes.NewReader(body))
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	return resp.StatusCode, nil
}
