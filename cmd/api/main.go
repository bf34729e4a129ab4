package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/ovaphlow/pitchfork/service-blog-go/internal/article"
	articlerepo "github.com/ovaphlow/pitchfork/service-blog-go/internal/article/repo"
	"github.com/ovaphlow/pitchfork/service-blog-go/internal/auth"
	"github.com/ovaphlow/pitchfork/service-blog-go/internal/credential"
	"github.com/ovaphlow/pitchfork/service-blog-go/internal/router"
	"github.com/ovaphlow/pitchfork/service-blog-go/internal/user"
	userrepo "github.com/ovaphlow/pitchfork/service-blog-go/internal/user/repo"
	"github.com/ovaphlow/pitchfork/service-blog-go/internal/validation"
	"github.com/ovaphlow/pitchfork/service-blog-go/pkg/database"
	"github.com/ovaphlow/pitchfork/service-blog-go/pkg/utilities"
)

func main() {
	// load .env file if present so os.Getenv picks values from it
	// this is best-effort: if no .env exists, continue (use defaults or real env)
	_ = godotenv.Load()

	lg, err := utilities.Init(utilities.ConfigFromEnv())
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer lg.Sync()

	sugar := lg.Sugar()
	sugar.Info("starting service-blog-go")

	keys, err := credential.NewKeyring(credential.ConfigFromEnv())
	if err != nil {
		sugar.Fatalf("token keys: %v", err)
	}

	db, err := database.Connect(database.ConfigFromEnv())
	if err != nil {
		sugar.Fatalf("db connect: %v", err)
	}
	defer db.Close()

	users := userrepo.NewUserRepo(db, sugar)
	articles := articlerepo.NewArticleRepo(db, sugar)

	setupCtx, cancelSetup := context.WithTimeout(context.Background(), 10*time.Second)
	if err := users.EnsureTable(setupCtx); err != nil {
		sugar.Fatalf("ensure users_and_admins: %v", err)
	}
	if err := articles.EnsureTable(setupCtx); err != nil {
		sugar.Fatalf("ensure articles: %v", err)
	}
	cancelSetup()

	v := validation.New()
	userService := user.NewUserService(users, nil, keys)
	sessions := auth.Sessions{Keys: keys, Accounts: userService}
	userHandler := user.NewHandler(userService, v, sessions, sugar)
	articleHandler := article.NewHandler(article.NewArticleService(articles), v, sessions, sugar)

	// graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	handler := router.RegisterRoutes(sugar, userHandler, articleHandler, router.LoginLimiterFromEnv(sugar))
	port := os.Getenv("APP_PORT")
	if port == "" {
		port = "8080"
	}
	srv := &http.Server{
		Addr:              "0.0.0.0:" + port,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			sugar.Fatalf("http server failed: %v", err)
		}
	}()
	sugar.Infow("service is running; press Ctrl+C to stop", "addr", srv.Addr)

	<-ctx.Done()

	sugar.Info("shutting down")

	// give a short grace period for cleanup
	doneCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(doneCtx); err != nil {
		sugar.Warnf("http server shutdown failed: %v", err)
	}

	sugar.Info("goodbye")
}
