package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/verte-zerg/typespeed/internal/account"
	"github.com/verte-zerg/typespeed/internal/cache"
	"github.com/verte-zerg/typespeed/internal/config"
	"github.com/verte-zerg/typespeed/internal/model"
	"github.com/verte-zerg/typespeed/internal/store"
	"github.com/verte-zerg/typespeed/internal/web"
	"github.com/verte-zerg/typespeed/pkg/logger"
)

const (
	defaultEnvFile  = ".env"
	shutdownTimeout = 10 * time.Second
)

var envFile string

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		Args:  cobra.NoArgs,
		RunE:  runServeCmd,
	}
	cmd.Flags().StringVar(&envFile, "env-file", defaultEnvFile, "optional dotenv file with TYPESPEED_* settings")
	return cmd
}

func runServeCmd(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.LoadServer(ctx, envFile)
	if err != nil {
		return err
	}
	log := logger.Init(logger.Options{Level: cfg.LogLevel})

	st, err := store.OpenSQLite(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("failed to open db: %w", err)
	}
	defer func() {
		if cerr := st.Close(); cerr != nil {
			log.Warn().Err(cerr).Msg("failed to close db")
		}
	}()

	lb, closeCache, err := openCache(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	defer closeCache()

	catalog, err := loadCatalog(cfg.Lang, cfg.TextsPath)
	if err != nil {
		return err
	}

	app, err := web.NewApp(cfg, web.Deps{
		Store:   st,
		Catalog: catalog,
		Cache:   lb,
		Log:     log,
	})
	if err != nil {
		return err
	}
	e := web.NewServer(app)

	errCh := make(chan error, 1)
	go func() {
		defer close(errCh)
		if err := e.Start(cfg.Addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	log.Info().
		Str("addr", cfg.Addr).
		Str("env", cfg.Env).
		Str("db", cfg.DBPath).
		Bool("redis", cfg.Redis.Addr != "").
		Msg("server started")

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("failed to serve: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down server: %w", err)
	}
	log.Info().Msg("server stopped")
	return nil
}

// openCache returns the Redis leaderboard cache when an address is configured and an in-process one otherwise.
func openCache(ctx context.Context, cfg model.RedisConfig) (cache.Leaderboard, func(), error) {
	if cfg.Addr == "" {
		return cache.NewMemory(cfg.TTL), func() {}, nil
	}
	client, err := cache.Connect(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	closeFn := func() {
		if cerr := client.Close(); cerr != nil {
			// Best-effort close on shutdown.
			_ = cerr
		}
	}
	return cache.NewRedis(client, cfg.TTL), closeFn, nil
}

func newAdminCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Manage server accounts",
	}
	create := &cobra.Command{
		Use:   "create <username>",
		Short: "Create an admin account (password read from the terminal or stdin)",
		Args:  cobra.ExactArgs(1),
		RunE:  runAdminCreateCmd,
	}
	create.Flags().StringVar(&envFile, "env-file", defaultEnvFile, "optional dotenv file with TYPESPEED_* settings")
	cmd.AddCommand(create)
	return cmd
}

func runAdminCreateCmd(cmd *cobra.Command, args []string) error {
	ctx := commandContext(cmd)
	cfg, err := config.LoadAccounts(ctx, envFile)
	if err != nil {
		return err
	}
	secret, err := readSecret(os.Stdin, cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	st, err := store.OpenSQLite(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("failed to open db: %w", err)
	}
	defer func() {
		if cerr := st.Close(); cerr != nil {
			logErrf("failed to close db: %v\n", cerr)
		}
	}()

	dir, err := account.NewDirectory(st, cfg.BcryptCost)
	if err != nil {
		return err
	}
	user, err := dir.RegisterAdmin(ctx, args[0], secret)
	if err != nil {
		return fmt.Errorf("failed to create admin: %w", err)
	}
	log := logger.Init(logger.Options{Level: logLevel, Pretty: true})
	log.Info().Str("admin", user.Username).Str("db", cfg.DBPath).Msg("admin account created")
	if _, err := fmt.Fprintf(cmd.OutOrStdout(), "Created admin %s\n", user.Username); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

// readSecret prompts twice without echo on a terminal and reads one line otherwise.
func readSecret(in *os.File, prompt io.Writer) (string, error) {
	fd := int(in.Fd())
	if !term.IsTerminal(fd) {
		return readSecretLine(in)
	}

	read := func(label string) (string, error) {
		if _, err := fmt.Fprint(prompt, label); err != nil {
			return "", fmt.Errorf("failed to write prompt: %w", err)
		}
		b, err := term.ReadPassword(fd)
		if _, perr := fmt.Fprintln(prompt); perr != nil {
			// Best-effort newline after hidden input.
			_ = perr
		}
		if err != nil {
			return "", fmt.Errorf("failed to read password: %w", err)
		}
		return string(b), nil
	}
	first, err := read("Password: ")
	if err != nil {
		return "", err
	}
	second, err := read("Repeat password: ")
	if err != nil {
		return "", err
	}
	if first != second {
		return "", fmt.Errorf("passwords do not match")
	}
	return first, nil
}

func readSecretLine(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}
