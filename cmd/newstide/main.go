package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"github.com/hrygo/newstide/ai/embedding"
	"github.com/hrygo/newstide/ai/llm"
	"github.com/hrygo/newstide/internal/profile"
	"github.com/hrygo/newstide/internal/version"
	"github.com/hrygo/newstide/process"
	"github.com/hrygo/newstide/server"
	"github.com/hrygo/newstide/store"
	"github.com/hrygo/newstide/store/db"
)

var rootCmd = &cobra.Command{
	Use:   "newstide",
	Short: `A news matching and clustering engine. Embeds articles, matches them to topics, and groups them into event clusters.`,
	PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
		// Only load .env for direct binary execution; systemd units carry
		// their own environment.
		if !isRunningAsSystemdService() {
			_ = godotenv.Load()
		}
		return nil
	},
	Run: func(_ *cobra.Command, _ []string) {
		instanceProfile := &profile.Profile{
			Mode:    viper.GetString("mode"),
			Addr:    viper.GetString("addr"),
			Port:    viper.GetInt("port"),
			Data:    viper.GetString("data"),
			Driver:  viper.GetString("driver"),
			DSN:     viper.GetString("dsn"),
			Version: version.GetCurrentVersion(viper.GetString("mode")),
		}
		instanceProfile.FromEnv()
		if err := instanceProfile.Validate(); err != nil {
			panic(err)
		}

		if err := run(instanceProfile, viper.GetBool("once")); err != nil {
			slog.Error("newstide exited with error", "error", err)
			os.Exit(1)
		}
	},
}

func run(instanceProfile *profile.Profile, once bool) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	dbDriver, err := db.NewDBDriver(instanceProfile)
	if err != nil {
		printDatabaseError(err, instanceProfile)
		return err
	}

	storeInstance := store.New(dbDriver, instanceProfile)
	defer storeInstance.Close()
	initialized, err := storeInstance.GetDriver().IsInitialized(ctx)
	if err != nil {
		return err
	}
	if err := storeInstance.Migrate(ctx); err != nil {
		return err
	}
	if !initialized {
		slog.Info("database schema initialized",
			slog.String("driver", instanceProfile.Driver))
	}

	llmService, err := llm.NewService(&llm.Config{
		Provider:  instanceProfile.LLMProvider,
		Model:     instanceProfile.LLMModel,
		APIKey:    instanceProfile.LLMAPIKey,
		BaseURL:   instanceProfile.LLMBaseURL,
		MaxTokens: 2048,
		Timeout:   instanceProfile.LLMTimeout,
	})
	if err != nil {
		return err
	}

	embedder, err := embedding.NewService(&embedding.Config{
		Model:      instanceProfile.EmbeddingModel,
		APIKey:     instanceProfile.EmbeddingAPIKey,
		BaseURL:    instanceProfile.EmbeddingBaseURL,
		Dimensions: instanceProfile.EmbeddingDimensions,
		MaxChars:   instanceProfile.EmbeddingMaxChars,
	})
	if err != nil {
		return err
	}

	processor := process.NewProcessor(instanceProfile, storeInstance, llmService, embedder)

	if once {
		processor.RunCycle(ctx)
		return nil
	}

	backfill := process.NewBackfillRunner(processor)
	apiServer := server.NewServer(instanceProfile, storeInstance, backfill)

	// Graceful shutdown on SIGINT or SIGTERM: the in-flight article
	// finishes, then everything stops.
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, terminationSignals...)
	go func() {
		<-sig
		slog.Info("shutdown signal received")
		cancel()
	}()

	printGreetings(instanceProfile)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		processor.Run(gctx)
		return nil
	})
	g.Go(func() error {
		backfill.Run(gctx)
		return nil
	})
	g.Go(func() error {
		return apiServer.Start(gctx)
	})

	return g.Wait()
}

func init() {
	viper.SetDefault("mode", "dev")
	viper.SetDefault("driver", "postgres")
	viper.SetDefault("port", 28091)

	rootCmd.PersistentFlags().String("mode", "dev", `mode of server, can be "prod" or "dev" or "demo"`)
	rootCmd.PersistentFlags().String("addr", "", "address of the internal API server")
	rootCmd.PersistentFlags().Int("port", 28091, "port of the internal API server")
	rootCmd.PersistentFlags().String("data", "", "data directory")
	rootCmd.PersistentFlags().String("driver", "postgres", "database driver (postgres, sqlite)")
	rootCmd.PersistentFlags().String("dsn", "", "database source name(aka. DSN)")
	rootCmd.PersistentFlags().Bool("once", false, "run a single processing cycle and exit")

	for _, flag := range []string{"mode", "addr", "port", "data", "driver", "dsn", "once"} {
		if err := viper.BindPFlag(flag, rootCmd.PersistentFlags().Lookup(flag)); err != nil {
			panic(err)
		}
	}

	viper.SetEnvPrefix("newstide")
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
}

func printGreetings(profile *profile.Profile) {
	fmt.Printf("Newstide %s started successfully!\n", profile.Version)

	if profile.IsDev() {
		fmt.Fprint(os.Stderr, "Development mode is enabled\n")
		if profile.DSN != "" {
			fmt.Fprintf(os.Stderr, "Database: %s\n", profile.DSN)
		}
	}

	fmt.Printf("Data directory: %s\n", profile.Data)
	fmt.Printf("Database driver: %s\n", profile.Driver)
	fmt.Printf("Mode: %s\n", profile.Mode)
	if len(profile.Addr) == 0 {
		fmt.Printf("Internal API on port %d\n", profile.Port)
	} else {
		fmt.Printf("Internal API on %s:%d\n", profile.Addr, profile.Port)
	}
}

// isRunningAsSystemdService detects if the process is running under systemd.
func isRunningAsSystemdService() bool {
	return os.Getenv("INVOCATION_ID") != "" || os.Getenv("WATCHDOG_USEC") != ""
}

// printDatabaseError provides user-friendly error messages for database
// connection issues.
func printDatabaseError(err error, profile *profile.Profile) {
	fmt.Fprintln(os.Stderr, "\nDatabase connection failed")

	errMsg := err.Error()
	switch {
	case strings.Contains(errMsg, "connection refused") || strings.Contains(errMsg, "no such host"):
		fmt.Fprintln(os.Stderr, "\nPostgreSQL is not running.")
		if profile.Driver == "postgres" {
			fmt.Fprintf(os.Stderr, "   Start it with: sudo systemctl start postgresql\n")
		}
		fmt.Fprintf(os.Stderr, "   Or use SQLite for development: ./newstide --driver=sqlite --data=./data\n")

	case strings.Contains(errMsg, "SSL is not enabled") || strings.Contains(errMsg, "sslmode"):
		fmt.Fprintln(os.Stderr, "\nPostgreSQL SSL configuration mismatch.")
		fmt.Fprintf(os.Stderr, "   Add ?sslmode=disable to your DSN.\n")

	case strings.Contains(errMsg, "password authentication failed"):
		fmt.Fprintln(os.Stderr, "\nPostgreSQL authentication failed. Check the credentials in your DSN or .env file.")

	case strings.Contains(errMsg, "does not exist"):
		fmt.Fprintln(os.Stderr, "\nDatabase does not exist.")
		fmt.Fprintf(os.Stderr, "   Create it with: psql -U postgres -c \"CREATE DATABASE newstide;\"\n")

	default:
		fmt.Fprintln(os.Stderr, "\nError:", errMsg)
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		panic(err)
	}
}
