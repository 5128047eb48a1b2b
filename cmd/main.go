// File: main.go

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"ioc-registry/pkg/api"
	"ioc-registry/pkg/database"
	"ioc-registry/pkg/models"
	"ioc-registry/pkg/threat"
)

var (
	debugFlag bool
	logger    *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "ioc-registry",
	Short: "A registry for Indicators of Compromise",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// Set up logging based on the debug flag
		var logLevel slog.Level
		if debugFlag {
			logLevel = slog.LevelDebug
		} else {
			logLevel = slog.LevelInfo
		}

		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))
		slog.SetDefault(logger)
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the IOC registry HTTP API",
	Run: func(cmd *cobra.Command, args []string) {
		db, err := initDB()
		if err != nil {
			logger.Error("Error initializing database", "error", err)
			os.Exit(1)
		}
		defer db.Close()

		service := threat.NewService(db, logger)
		apiServer := api.New(service, logger)
		apiServer.StartMetrics(viper.GetString("metrics.addr"))

		srv := &http.Server{
			Addr:         viper.GetString("server.addr"),
			Handler:      apiServer.Router(),
			ReadTimeout:  viper.GetDuration("server.read_timeout"),
			WriteTimeout: viper.GetDuration("server.write_timeout"),
		}

		go func() {
			logger.Info("IOC registry listening", "addr", srv.Addr)
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("Server error", "error", err)
				os.Exit(1)
			}
		}()

		stop := make(chan os.Signal, 1)
		signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
		<-stop

		logger.Info("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Error during shutdown", "error", err)
		}
	},
}

var addCmd = &cobra.Command{
	Use:     "add [type] [value] [severity]",
	Short:   "Register a single IOC in the database",
	Example: "add IP 203.0.113.7 High --source Firewall-01",
	Args:    cobra.ExactArgs(3),
	Run: func(cmd *cobra.Command, args []string) {
		db, err := initDB()
		if err != nil {
			logger.Error("Error initializing database", "error", err)
			os.Exit(1)
		}
		defer db.Close()

		service := threat.NewService(db, logger)

		input := threat.CreateInput{
			Type:     args[0],
			Value:    args[1],
			Severity: args[2],
		}
		if source, _ := cmd.Flags().GetString("source"); source != "" {
			input.Source = &source
		}

		created, err := service.Create(context.Background(), input)
		if err != nil {
			logger.Error("Error adding threat", "error", err)
			os.Exit(1)
		}
		logger.Info("Threat added successfully", "id", created.ID, "value", created.Value)
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print summary counts for the registry",
	Run: func(cmd *cobra.Command, args []string) {
		db, err := initDB()
		if err != nil {
			logger.Error("Error initializing database", "error", err)
			os.Exit(1)
		}
		defer db.Close()

		service := threat.NewService(db, logger)
		stats, err := service.Statistics(context.Background())
		if err != nil {
			logger.Error("Error getting statistics", "error", err)
			os.Exit(1)
		}

		fmt.Printf("Total threats: %d\n", stats.Total)
		fmt.Println("By type:")
		for _, indicatorType := range models.AllIndicatorTypes() {
			fmt.Printf("  %-8s %d\n", indicatorType, stats.ByType[indicatorType.String()])
		}
		fmt.Println("By severity:")
		for _, severity := range models.AllSeverities() {
			fmt.Printf("  %-8s %d\n", severity, stats.BySeverity[severity.String()])
		}
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().BoolVarP(&debugFlag, "debug", "d", false, "Enable debug logging")
	addCmd.Flags().String("source", "", "Source of the IOC (e.g. Firewall-01, SIEM)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(addCmd)
	rootCmd.AddCommand(statsCmd)
}

func initConfig() {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("$HOME/.ioc-registry")
	viper.AddConfigPath("/etc/ioc-registry/")

	viper.SetDefault("database.url", "ioc_registry.db")
	viper.SetDefault("server.addr", ":8000")
	viper.SetDefault("server.read_timeout", "10s")
	viper.SetDefault("server.write_timeout", "10s")
	viper.SetDefault("metrics.addr", ":9090")

	viper.BindEnv("database.url", "DATABASE_URL")

	if err := viper.ReadInConfig(); err != nil {
		// A missing config file is fine, the defaults and environment
		// cover every setting.
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			fmt.Printf("Error reading config file: %v\n", err)
			os.Exit(1)
		}
	}
}

func initDB() (*database.DB, error) {
	db, err := database.NewDB(viper.GetString("database.url"))
	if err != nil {
		return nil, fmt.Errorf("error connecting to database: %v", err)
	}

	err = db.InitSchema(context.Background())
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("error initializing database schema: %v", err)
	}

	return db, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
