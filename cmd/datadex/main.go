package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/cuemby/datadex/pkg/api"
	"github.com/cuemby/datadex/pkg/bucket"
	"github.com/cuemby/datadex/pkg/catalog"
	"github.com/cuemby/datadex/pkg/client"
	"github.com/cuemby/datadex/pkg/config"
	"github.com/cuemby/datadex/pkg/gcp"
	"github.com/cuemby/datadex/pkg/ingest"
	"github.com/cuemby/datadex/pkg/log"
	"github.com/cuemby/datadex/pkg/pubsub"
	"github.com/cuemby/datadex/pkg/types"
)

var (
	// Version information (set via ldflags during build)
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "datadex",
	Short: "Datadex - Dataset catalog service",
	Long: `Datadex keeps a queryable index of the datasets and partitions
living in your blob store. The server ingests storage notifications to
stay in sync and serves the catalog over a JSON HTTP API; the remaining
commands are thin clients for that API.`,
	Version: Version,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"Datadex version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	rootCmd.AddCommand(serverCmd)
	rootCmd.AddCommand(managerCmd)
	rootCmd.AddCommand(datasetCmd)
	rootCmd.AddCommand(partitionCmd)
}

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Run the catalog server",
	Long: `Run the catalog server: migrate the database, create the pull
subscription, start the ingest worker, and serve the HTTP API.

Configuration comes from DD_* environment variables.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		jsonLogs, _ := cmd.Flags().GetBool("json-logs")
		logLevel, _ := cmd.Flags().GetString("log-level")
		log.Init(log.Config{Level: log.Level(logLevel), JSONOutput: jsonLogs})

		cfg := config.Load()
		if err := cfg.ValidateServer(); err != nil {
			return err
		}

		ctx := cmd.Context()
		if err := catalog.Migrate(ctx, cfg.DatabaseParams); err != nil {
			return err
		}
		log.Info("database migrated")

		cat, err := catalog.NewPostgres(ctx, catalog.PostgresConfig{
			Params:      cfg.DatabaseParams,
			MinIdle:     cfg.PoolMinIdle,
			MaxSize:     cfg.PoolMaxSize,
			EmailDomain: cfg.ManagerEmailDomain,
		})
		if err != nil {
			return fmt.Errorf("failed to connect to catalog database: %w", err)
		}
		defer cat.Close()

		gcpClient, err := gcp.NewClient(ctx)
		if err != nil {
			return fmt.Errorf("failed to build service credentials: %w", err)
		}

		sub := pubsub.NewSubscriber(pubsub.Config{
			Endpoint:     cfg.PubsubService,
			ProjectID:    cfg.GCPProjectID,
			Topic:        cfg.TopicName,
			Subscription: cfg.SubscriptionName,
		}, gcpClient)
		if err := sub.CreateSubscription(ctx); err != nil {
			return fmt.Errorf("failed to create subscription: %w", err)
		}

		worker := ingest.NewWorker(cat, sub, cfg.TopicMaxMessages, cfg.IngestTick)
		worker.Start()

		buckets := bucket.NewManager(cfg.StorageService, cfg.Buckets(), gcpClient)
		server := &http.Server{
			Addr:              cfg.ListenAddr,
			Handler:           api.NewServer(cat, buckets).Handler(),
			ReadHeaderTimeout: 5 * time.Second,
		}

		errCh := make(chan error, 1)
		go func() {
			log.WithComponent("api").Info().Str("addr", cfg.ListenAddr).Msg("serving catalog API")
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				errCh <- err
			}
		}()

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

		select {
		case <-sigCh:
			log.Info("shutting down")
		case err := <-errCh:
			log.Errorf("API server error", err)
		}

		worker.Stop()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("failed to shut down API server: %w", err)
		}
		return nil
	},
}

func init() {
	serverCmd.Flags().Bool("json-logs", true, "Emit logs as JSON")
	serverCmd.Flags().String("log-level", "info", "Log level (debug|info|warn|error)")
}

func newClient(cmd *cobra.Command) *client.Client {
	addr, _ := cmd.Flags().GetString("addr")
	apiKey, _ := cmd.Flags().GetString("api-key")
	return client.New(addr, apiKey)
}

func addClientFlags(cmd *cobra.Command) {
	cmd.Flags().String("addr", "http://"+config.DefaultListenAddr, "Catalog server address")
	cmd.Flags().String("api-key", os.Getenv("DD_API_KEY"), "Manager api key")
}

func printJSON(v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

// Manager commands
var managerCmd = &cobra.Command{
	Use:   "manager",
	Short: "Manage manager accounts",
}

var managerRegisterCmd = &cobra.Command{
	Use:   "register EMAIL",
	Short: "Register a manager account",
	Long: `Register a manager account and print its api key. The password
comes from --password or, preferably, the DD_PASSWORD environment
variable.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		password, _ := cmd.Flags().GetString("password")
		if password == "" {
			password = os.Getenv("DD_PASSWORD")
		}
		if password == "" {
			return fmt.Errorf("set --password or DD_PASSWORD")
		}

		manager, err := newClient(cmd).RegisterManager(cmd.Context(), args[0], password)
		if err != nil {
			return err
		}
		fmt.Printf("✓ Manager registered\n")
		return printJSON(manager)
	},
}

var managerDatasetsCmd = &cobra.Command{
	Use:   "datasets",
	Short: "List the datasets owned by the authenticated manager",
	RunE: func(cmd *cobra.Command, args []string) error {
		datasets, err := newClient(cmd).ManagerDatasets(cmd.Context())
		if err != nil {
			return err
		}
		return printJSON(datasets)
	},
}

func init() {
	managerCmd.AddCommand(managerRegisterCmd)
	managerCmd.AddCommand(managerDatasetsCmd)
	addClientFlags(managerRegisterCmd)
	addClientFlags(managerDatasetsCmd)

	managerRegisterCmd.Flags().String("password", "", "Manager password (prefer DD_PASSWORD)")
}

// Dataset commands
var datasetCmd = &cobra.Command{
	Use:   "dataset",
	Short: "Manage datasets",
}

var datasetRegisterCmd = &cobra.Command{
	Use:   "register NAME",
	Short: "Register a new dataset",
	Long: `Register a new dataset. Either pass a full descriptor document with
--config, or build one from the individual flags.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		configFile, _ := cmd.Flags().GetString("config")

		cfg := &types.DatasetConfig{}
		if configFile != "" {
			raw, err := os.ReadFile(configFile)
			if err != nil {
				return fmt.Errorf("failed to read config file: %w", err)
			}
			if err := json.Unmarshal(raw, cfg); err != nil {
				return fmt.Errorf("failed to parse config file: %w", err)
			}
		} else {
			classification, _ := cmd.Flags().GetString("classification")
			compression, _ := cmd.Flags().GetString("compression")
			format, _ := cmd.Flags().GetString("format")
			description, _ := cmd.Flags().GetString("description")
			schemaFile, _ := cmd.Flags().GetString("schema")

			cfg.Classification = types.Classification(classification)
			cfg.Compression = types.Compression(compression)
			cfg.Format = types.Format(format)
			cfg.Description = description
			if schemaFile != "" {
				raw, err := os.ReadFile(schemaFile)
				if err != nil {
					return fmt.Errorf("failed to read schema file: %w", err)
				}
				if err := json.Unmarshal(raw, &cfg.Schema); err != nil {
					return fmt.Errorf("failed to parse schema file: %w", err)
				}
			}
		}
		cfg.Name = args[0]

		dataset, err := newClient(cmd).RegisterDataset(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		fmt.Printf("✓ Dataset %s registered\n", dataset.Name)
		return printJSON(dataset)
	},
}

var datasetListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all datasets",
	RunE: func(cmd *cobra.Command, args []string) error {
		datasets, err := newClient(cmd).ListDatasets(cmd.Context())
		if err != nil {
			return err
		}
		return printJSON(datasets)
	},
}

var datasetSearchCmd = &cobra.Command{
	Use:   "search TERM",
	Short: "Search datasets by name or description",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		datasets, err := newClient(cmd).SearchDatasets(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return printJSON(datasets)
	},
}

var datasetGetCmd = &cobra.Command{
	Use:   "get NAME",
	Short: "Show one dataset",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dataset, err := newClient(cmd).FindDataset(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return printJSON(dataset)
	},
}

func init() {
	datasetCmd.AddCommand(datasetRegisterCmd)
	datasetCmd.AddCommand(datasetListCmd)
	datasetCmd.AddCommand(datasetSearchCmd)
	datasetCmd.AddCommand(datasetGetCmd)

	addClientFlags(datasetRegisterCmd)
	addClientFlags(datasetListCmd)
	addClientFlags(datasetSearchCmd)
	addClientFlags(datasetGetCmd)

	datasetRegisterCmd.Flags().String("config", "", "Path to a dd.json descriptor document")
	datasetRegisterCmd.Flags().String("classification", "private", "Classification (public|private|sensitive|confidential)")
	datasetRegisterCmd.Flags().String("compression", "uncompressed", "Compression (uncompressed|zip|tar)")
	datasetRegisterCmd.Flags().String("format", "ndjson", "Format (plaintext|json|ndjson|csv|tsv|protobuf)")
	datasetRegisterCmd.Flags().String("description", "", "Dataset description")
	datasetRegisterCmd.Flags().String("schema", "", "Path to a JSON schema file (column name to type)")
}

// Partition commands
var partitionCmd = &cobra.Command{
	Use:   "partition",
	Short: "Inspect partitions",
}

var partitionListCmd = &cobra.Command{
	Use:   "list DATASET",
	Short: "List a dataset's partitions",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		partitions, err := newClient(cmd).ListPartitions(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return printJSON(partitions)
	},
}

var partitionLatestCmd = &cobra.Command{
	Use:   "latest DATASET",
	Short: "Show a dataset's most recently created partition",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		partition, err := newClient(cmd).LatestPartition(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return printJSON(partition)
	},
}

func init() {
	partitionCmd.AddCommand(partitionListCmd)
	partitionCmd.AddCommand(partitionLatestCmd)
	addClientFlags(partitionListCmd)
	addClientFlags(partitionLatestCmd)
}
