package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/joho/godotenv"

	"github.com/example/storefront/internal/auth"
	cfg "github.com/example/storefront/internal/config"
	"github.com/example/storefront/internal/mail"
	"github.com/example/storefront/internal/payment"
	"github.com/example/storefront/internal/shop"
	"github.com/example/storefront/internal/store"
)

type App struct {
	Config      *cfg.Config
	DB          store.DB
	Shop        *shop.Shop
	Sessions    *auth.Sessions
	rateLimiter *RateLimiter
}

func newApp(c *cfg.Config, db store.DB, gateway payment.Gateway, mailer mail.Sender) (*App, error) {
	creds, err := auth.NewCredentials(c.AppSecret, c.BcryptCost)
	if err != nil {
		return nil, err
	}
	return &App{
		Config:   c,
		DB:       db,
		Sessions: auth.NewSessions(creds, db),
		Shop: shop.New(shop.Options{
			DB:          db,
			Credentials: creds,
			Gateway:     gateway,
			Mailer:      mailer,
			FrontendURL: c.FrontendURL,
			Currency:    c.Currency,
		}),
		rateLimiter: NewRateLimiter(c.AuthRateLimit),
	}, nil
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("write json: %v", err)
	}
}

func openDB(c *cfg.Config) (store.DB, error) {
	switch c.DBAdapter {
	case "sqlite":
		return store.NewSQLiteDB(c.SQLiteFile)
	case "postgres":
		log.Println("Applying database migrations...")
		if err := store.ApplyMigrations("./migrations", c.PostgresDSN); err != nil {
			return nil, fmt.Errorf("migrations: %w", err)
		}
		p, err := store.NewPostgresDB(c.PostgresDSN)
		if err != nil {
			return nil, err
		}
		log.Println("Connected to PostgreSQL database")
		return p, nil
	case "memory":
		log.Println("Using in-memory database (not recommended for production)")
		return store.NewMemoryDB(), nil
	}
	return nil, fmt.Errorf("unsupported DB_ADAPTER: %s", c.DBAdapter)
}

// routes builds the full handler. CORS wraps the router so preflight requests
// are answered even for routes that do not list OPTIONS.
func (a *App) routes() http.Handler {
	r := mux.NewRouter()

	r.Use(SecurityHeaders)
	r.Use(a.Session)
	r.Use(a.Logging)

	// Health check endpoints (no auth required)
	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}).Methods("GET")
	r.HandleFunc("/ready", a.HandleReady).Methods("GET")

	v1 := r.PathPrefix("/api/v1").Subrouter()

	authRoutes := v1.PathPrefix("/auth").Subrouter()
	authRoutes.Use(a.RateLimit)
	authRoutes.HandleFunc("/signup", a.HandleSignup).Methods("POST")
	authRoutes.HandleFunc("/signin", a.HandleSignin).Methods("POST")
	authRoutes.HandleFunc("/signout", a.HandleSignout).Methods("POST")
	authRoutes.HandleFunc("/request-reset", a.HandleRequestReset).Methods("POST")
	authRoutes.HandleFunc("/reset-password", a.HandleResetPassword).Methods("POST")

	v1.HandleFunc("/me", a.HandleMe).Methods("GET")
	v1.HandleFunc("/users", a.HandleUsers).Methods("GET")
	v1.HandleFunc("/users/{id}/permissions", a.HandleUpdatePermissions).Methods("PUT")

	// count must be registered before {id}
	v1.HandleFunc("/items/count", a.HandleItemsCount).Methods("GET")
	v1.HandleFunc("/items", a.HandleItems).Methods("GET")
	v1.HandleFunc("/items", a.HandleCreateItem).Methods("POST")
	v1.HandleFunc("/items/{id}", a.HandleItem).Methods("GET")
	v1.HandleFunc("/items/{id}", a.HandleUpdateItem).Methods("PATCH")
	v1.HandleFunc("/items/{id}", a.HandleDeleteItem).Methods("DELETE")

	v1.HandleFunc("/cart", a.HandleCart).Methods("GET")
	v1.HandleFunc("/cart", a.HandleAddToCart).Methods("POST")
	v1.HandleFunc("/cart/{id}", a.HandleRemoveFromCart).Methods("DELETE")

	v1.HandleFunc("/orders", a.HandleCreateOrder).Methods("POST")
	v1.HandleFunc("/orders", a.HandleOrders).Methods("GET")
	v1.HandleFunc("/orders/{id}", a.HandleOrder).Methods("GET")

	return a.CORS(r)
}

func main() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("load .env: %v", err)
	}
	c, err := cfg.New()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	db, err := openDB(c)
	if err != nil {
		log.Fatalf("%s init: %v", c.DBAdapter, err)
	}

	var gateway payment.Gateway = payment.Unconfigured{}
	if c.StripeSecret != "" {
		gateway = payment.NewStripe(c.StripeSecret)
	} else {
		log.Println("STRIPE_SECRET not set; orders will fail with a gateway error")
	}
	var mailer mail.Sender = mail.LogSender{}
	if c.SendGridAPIKey != "" {
		mailer = mail.NewSendGrid(c.SendGridAPIKey, c.MailFrom)
	} else {
		log.Println("SENDGRID_API_KEY not set; reset links will be logged")
	}

	app, err := newApp(c, db, gateway, mailer)
	if err != nil {
		log.Fatalf("app init: %v", err)
	}

	srv := &http.Server{Handler: app.routes(), Addr: ":" + c.Port, ReadTimeout: 5 * time.Second, WriteTimeout: 30 * time.Second}

	go func() {
		fmt.Println("Starting storefront server on", c.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("shutdown failed:%+v", err)
	}
	if err := app.DB.Close(); err != nil {
		log.Printf("close db: %v", err)
	}
	fmt.Println("Server exited properly")
}
