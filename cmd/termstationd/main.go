// termstationd is the process entrypoint: a cobra root command exposing
// "serve" (the terminal multiplexer daemon, the teacher's original
// flag-driven single-command shape generalized into a subcommand) and a
// "vault" command group for managing encrypted SSH credentials out of
// band from a running server, grounded on the teacher's main.go (flag
// parsing, godotenv, fatal-on-listen-failure) combined with the cobra
// subcommand convention the wider pack uses for multi-purpose daemons.
package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/wireterm/termstation/internal/api"
	"github.com/wireterm/termstation/internal/buffer"
	"github.com/wireterm/termstation/internal/cleanup"
	"github.com/wireterm/termstation/internal/config"
	"github.com/wireterm/termstation/internal/gateway"
	"github.com/wireterm/termstation/internal/id"
	"github.com/wireterm/termstation/internal/remoteshell"
	"github.com/wireterm/termstation/internal/session"
	"github.com/wireterm/termstation/internal/shellhost"
	"github.com/wireterm/termstation/internal/status"
	"github.com/wireterm/termstation/internal/store"
	"github.com/wireterm/termstation/internal/vault"
)

var portFlag int

func main() {
	if err := godotenv.Load(); err != nil {
		logrus.Debug("termstationd: no .env file found")
	}

	root := &cobra.Command{
		Use:   "termstationd",
		Short: "Persistent terminal-session multiplexer with a browser-facing event gateway",
	}
	root.PersistentFlags().IntVarP(&portFlag, "port", "p", 0, "override PORT from the environment")

	root.AddCommand(newServeCommand())
	root.AddCommand(newVaultCommand())

	if err := root.Execute(); err != nil {
		logrus.Fatalf("termstationd: %v", err)
	}
}

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the terminal multiplexer daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe()
		},
	}
}

func runServe() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if portFlag != 0 {
		cfg.Port = portFlag
	}

	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	logrus.SetLevel(level)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := store.Open(cfg.DataDir + "/termstation.db")
	if err != nil {
		return fmt.Errorf("open persistence store: %w", err)
	}
	defer db.Close()

	creds, err := vault.OpenFileStore(cfg.DataDir + "/credentials.json")
	if err != nil {
		return fmt.Errorf("open credential store: %w", err)
	}

	var vlt *vault.Vault
	if master := os.Getenv("VAULT_MASTER_PASSWORD"); master != "" {
		vlt, err = vault.New(master)
		if err != nil {
			return fmt.Errorf("init credential vault: %w", err)
		}
	} else {
		logrus.Warn("termstationd: VAULT_MASTER_PASSWORD unset; ssh:connect with credentialId will fail")
	}

	buffers := buffer.New(cfg.ScrollbackLines)
	buffers.StartFlushLoop(cfg.BufferPersistInterval(), db)

	detector := status.New(status.Options{}, nil)

	gw := gateway.New(gateway.Config{
		Detector:    detector,
		Vault:       vlt,
		Credentials: creds,
		CORSOrigin:  cfg.CORSOrigin,
	})

	mgr := session.New(session.Config{
		LocalHost:  shellhost.NewLocal(),
		RemoteHost: remoteshell.New(),
		Buffers:    buffers,
		Detector:   detector,
		Store:      db,
		BufStore:   db,
		Callbacks:  gw.Callbacks(),
	})
	gw.AttachManager(mgr)

	if stats, err := mgr.Initialize(); err != nil {
		logrus.Errorf("termstationd: session rehydration failed: %v", err)
	} else {
		logrus.Infof("termstationd: rehydrated=%d orphan_shells=%d", stats.Rehydrated, len(stats.OrphanShells))
	}

	sweeper := cleanup.New(mgr, cleanup.Options{
		IdleTimeout:   cfg.PausedSessionTimeout(),
		MaxSessions:   cfg.TmuxMaxSessions,
		CheckInterval: cfg.SessionCleanupInterval(),
	})
	sweeper.Start()
	defer sweeper.Stop()

	router := api.SetupRouter(gw, cfg.CORSOrigin, false)

	addr := cfg.Host + ":" + strconv.Itoa(cfg.Port)
	logrus.Infof("termstationd: listening on %s", addr)

	errCh := make(chan error, 1)
	go func() {
		errCh <- router.Run(addr)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("serve: %w", err)
	case <-ctx.Done():
		logrus.Info("termstationd: shutting down")
		return nil
	}
}

func newVaultCommand() *cobra.Command {
	vaultCmd := &cobra.Command{
		Use:   "vault",
		Short: "Manage encrypted SSH credentials",
	}
	vaultCmd.AddCommand(newVaultInitCommand())
	vaultCmd.AddCommand(newVaultAddCommand())
	return vaultCmd
}

func newVaultInitCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Prepare DATA_DIR for the credential store (credentials.json is written by the first add)",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if _, err := vault.OpenFileStore(cfg.DataDir + "/credentials.json"); err != nil {
				return fmt.Errorf("init credential store: %w", err)
			}
			fmt.Println("credential store ready at", cfg.DataDir+"/credentials.json")
			return nil
		},
	}
}

func newVaultAddCommand() *cobra.Command {
	var name, host, username, authMethod string
	var port int

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Encrypt and save an SSH credential",
		RunE: func(cmd *cobra.Command, args []string) error {
			master := os.Getenv("VAULT_MASTER_PASSWORD")
			if master == "" {
				return fmt.Errorf("VAULT_MASTER_PASSWORD must be set")
			}
			vlt, err := vault.New(master)
			if err != nil {
				return fmt.Errorf("init vault: %w", err)
			}

			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			creds, err := vault.OpenFileStore(cfg.DataDir + "/credentials.json")
			if err != nil {
				return fmt.Errorf("open credential store: %w", err)
			}

			method := vault.AuthMethod(strings.ToLower(authMethod))
			if method != vault.AuthPassword && method != vault.AuthPrivateKey {
				return fmt.Errorf("auth-method must be %q or %q", vault.AuthPassword, vault.AuthPrivateKey)
			}

			secret, err := readSecret(method)
			if err != nil {
				return err
			}

			rec := vault.Record{
				ID:       id.New(id.PrefixCredential),
				Name:     name,
				Host:     host,
				Port:     port,
				Username: username,
			}
			rec, err = vlt.Seal(rec, method, secret)
			if err != nil {
				return fmt.Errorf("encrypt secret: %w", err)
			}
			if err := creds.Save(rec); err != nil {
				return fmt.Errorf("save credential: %w", err)
			}
			fmt.Println("saved credential", rec.ID, "for", username+"@"+host)
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "display name for this credential")
	cmd.Flags().StringVar(&host, "host", "", "SSH host")
	cmd.Flags().IntVar(&port, "port", 22, "SSH port")
	cmd.Flags().StringVar(&username, "username", "", "SSH username")
	cmd.Flags().StringVar(&authMethod, "auth-method", "password", "password or private-key")
	cmd.MarkFlagRequired("host")
	cmd.MarkFlagRequired("username")

	return cmd
}

// readSecret prompts on stdin for the password or private key to encrypt,
// since the plaintext secret must never appear as a command-line argument
// (visible in process listings and shell history).
func readSecret(method vault.AuthMethod) (string, error) {
	prompt := "password"
	if method == vault.AuthPrivateKey {
		prompt = "private key (single line, e.g. base64 or PEM with \\n escapes)"
	}
	fmt.Fprintf(os.Stderr, "Enter %s: ", prompt)
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		return "", fmt.Errorf("read secret: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}
