//go:build e2e

package e2e

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/lib/pq"
	"github.com/quickcart/apiserver/config"
	"github.com/quickcart/apiserver/internal/cart"
	"github.com/quickcart/apiserver/internal/client"
	"github.com/quickcart/apiserver/internal/db"
	"github.com/quickcart/apiserver/internal/logging"
	"github.com/quickcart/apiserver/internal/server"
	"github.com/quickcart/apiserver/types"
	"github.com/shopspring/decimal"
)

const (
	serverPort = 18080
)

var baseURL = fmt.Sprintf("http://localhost:%d", serverPort)

func TestMain(m *testing.M) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	root, err := repoRoot()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to locate repo root: %v\n", err)
		os.Exit(1)
	}

	setEnv()

	if err := dockerCompose(ctx, root, "up", "-d"); err != nil {
		fmt.Fprintf(os.Stderr, "failed to start docker compose: %v\n", err)
		os.Exit(1)
	}

	if err := waitForPostgres(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "postgres not ready: %v\n", err)
		_ = dockerCompose(context.Background(), root, "down")
		os.Exit(1)
	}

	if err := runMigrations(root); err != nil {
		fmt.Fprintf(os.Stderr, "failed to run migrations: %v\n", err)
		_ = dockerCompose(context.Background(), root, "down")
		os.Exit(1)
	}

	srv, err := startServer(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to start server: %v\n", err)
		_ = dockerCompose(context.Background(), root, "down")
		os.Exit(1)
	}

	if err := waitForHealth(ctx, baseURL+"/healthz"); err != nil {
		fmt.Fprintf(os.Stderr, "server not healthy: %v\n", err)
		_ = srv.Shutdown(context.Background())
		_ = dockerCompose(context.Background(), root, "down")
		os.Exit(1)
	}

	code := m.Run()

	_ = srv.Shutdown(context.Background())
	_ = dockerCompose(context.Background(), root, "down")
	os.Exit(code)
}

func TestOrderLifecycle(t *testing.T) {
	ctx := context.Background()
	api := client.New(baseURL)
	suffix := time.Now().UnixNano()
	password := "testpass123!"

	adminEmail := fmt.Sprintf("admin_%d@example.com", suffix)
	if _, err := api.Register(ctx, "Admin", adminEmail, password, types.RoleAdmin); err != nil {
		t.Fatalf("register admin: %v", err)
	}
	adminLogin, err := api.Login(ctx, adminEmail, password)
	if err != nil {
		t.Fatalf("login admin: %v", err)
	}

	apples, err := createProduct(t, adminLogin.Token, "Apples", "4.99", "fruit")
	if err != nil {
		t.Fatalf("create apples: %v", err)
	}
	milk, err := createProduct(t, adminLogin.Token, "Milk", "2.00", "dairy")
	if err != nil {
		t.Fatalf("create milk: %v", err)
	}

	shopper := client.New(baseURL)
	shopperEmail := fmt.Sprintf("shopper_%d@example.com", suffix)
	if _, err := shopper.Register(ctx, "Shopper", shopperEmail, password, ""); err != nil {
		t.Fatalf("register shopper: %v", err)
	}
	if _, err := shopper.Register(ctx, "Shopper", fmt.Sprintf("SHOPPER_%d@EXAMPLE.COM", suffix), password, ""); err == nil {
		t.Fatalf("expected duplicate email to be rejected")
	}
	if _, err := shopper.Login(ctx, shopperEmail, password); err != nil {
		t.Fatalf("login shopper: %v", err)
	}

	if _, err := createProduct(t, shopperToken(t, shopperEmail, password), "Forbidden", "1.00", "misc"); err == nil {
		t.Fatalf("expected customer product creation to be rejected")
	}

	engine, err := cart.New(cart.NewMemoryStore())
	if err != nil {
		t.Fatalf("new cart: %v", err)
	}
	for _, p := range []types.Product{apples, apples, milk} {
		if err := engine.Add(p); err != nil {
			t.Fatalf("add to cart: %v", err)
		}
	}

	order, err := client.Checkout(ctx, shopper, engine)
	if err != nil {
		t.Fatalf("checkout: %v", err)
	}
	if !order.TotalAmount.Equal(decimal.RequireFromString("11.98")) {
		t.Fatalf("unexpected order total: %s", order.TotalAmount)
	}
	if len(order.Items) != 2 {
		t.Fatalf("expected 2 order items, got %d", len(order.Items))
	}
	if engine.ItemCount() != 0 {
		t.Fatalf("expected cart to be cleared after checkout")
	}

	orders, err := shopper.MyOrders(ctx)
	if err != nil {
		t.Fatalf("list orders: %v", err)
	}
	if len(orders) != 1 || orders[0].ID != order.ID {
		t.Fatalf("unexpected order history: %+v", orders)
	}

	if err := deleteProduct(t, adminLogin.Token, apples.ID); err != nil {
		t.Fatalf("delete product: %v", err)
	}
	if _, err := api.GetProduct(ctx, apples.ID); err == nil {
		t.Fatalf("expected deleted product to be gone")
	}

	orders, err = shopper.MyOrders(ctx)
	if err != nil {
		t.Fatalf("list orders after delete: %v", err)
	}
	if orders[0].Items[0].Name != "Apples" {
		t.Fatalf("order snapshot changed after product deletion")
	}
}

func shopperToken(t *testing.T, email, password string) string {
	t.Helper()
	login, err := client.New(baseURL).Login(context.Background(), email, password)
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	return login.Token
}

func createProduct(t *testing.T, token, name, price, category string) (types.Product, error) {
	t.Helper()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	_ = writer.WriteField("name", name)
	_ = writer.WriteField("price", price)
	_ = writer.WriteField("description", name+" from the e2e suite")
	_ = writer.WriteField("category", category)
	if err := writer.Close(); err != nil {
		return types.Product{}, err
	}

	req, err := http.NewRequest(http.MethodPost, baseURL+"/api/products", &body)
	if err != nil {
		return types.Product{}, err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return types.Product{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		return types.Product{}, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	var product types.Product
	if err := json.NewDecoder(resp.Body).Decode(&product); err != nil {
		return types.Product{}, err
	}
	return product, nil
}

func deleteProduct(t *testing.T, token, id string) error {
	t.Helper()

	req, err := http.NewRequest(http.MethodDelete, baseURL+"/api/products/"+id, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return nil
}

func setEnv() {
	_ = os.Setenv("JWT_SECRET", "test-secret")
	_ = os.Setenv("SERVER_PORT", fmt.Sprintf("%d", serverPort))
	_ = os.Setenv("DB_DRIVER", "postgres")
	_ = os.Setenv("DB_HOST", "localhost")
	_ = os.Setenv("DB_PORT", "5432")
	_ = os.Setenv("DB_USER", "quickcart")
	_ = os.Setenv("DB_PASSWORD", "quickcart")
	_ = os.Setenv("DB_NAME", "quickcart")
	_ = os.Setenv("DB_SSL", "false")
	_ = os.Setenv("AUTH_ALLOW_ROLE_SIGNUP", "true")
	_ = os.Setenv("RATE_LIMIT_RPS", "0")
}

func waitForPostgres(ctx context.Context) error {
	cfg := config.LoadConfig()
	conn, err := sql.Open("postgres", db.PostgresURL(cfg.Database))
	if err != nil {
		return err
	}
	defer conn.Close()

	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()

	for {
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		err := conn.PingContext(pingCtx)
		cancel()
		if err == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("postgres ping timeout: %w", err)
		case <-ticker.C:
		}
	}
}

func waitForHealth(ctx context.Context, url string) error {
	httpClient := &http.Client{Timeout: 2 * time.Second}
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return err
		}
		resp, err := httpClient.Do(req)
		if err == nil {
			_ = resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return nil
			}
		}
		select {
		case <-ctx.Done():
			if err != nil {
				return fmt.Errorf("health check failed: %w", err)
			}
			return fmt.Errorf("health check failed with status")
		case <-ticker.C:
		}
	}
}

func runMigrations(root string) error {
	cfg := config.LoadConfig()
	migrationsURL := "file://" + filepath.Join(root, "internal", "db", "migrations")

	migrator, err := migrate.New(migrationsURL, db.PostgresURL(cfg.Database))
	if err != nil {
		return err
	}
	defer func() {
		_, _ = migrator.Close()
	}()

	if err := migrator.Up(); err != nil && err != migrate.ErrNoChange {
		return err
	}
	return nil
}

func startServer(ctx context.Context) (*server.Server, error) {
	cfg := config.LoadConfig()
	srv, err := server.New(ctx, cfg, logging.New("warn", "text"))
	if err != nil {
		return nil, err
	}

	go func() {
		_ = srv.Start()
	}()

	return srv, nil
}

func dockerCompose(ctx context.Context, root string, args ...string) error {
	composeFile := filepath.Join(root, "development", "docker-compose.yml")
	baseArgs := append([]string{"compose", "-f", composeFile}, args...)
	cmd := exec.CommandContext(ctx, "docker", baseArgs...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
}

func repoRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("go.mod not found")
		}
		dir = parent
	}
}
