package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/andrej220/sshop/internal/operator"
	"github.com/andrej220/sshop/pkg/config"
	"github.com/andrej220/sshop/pkg/config/mongostore"
	"github.com/andrej220/sshop/pkg/lg"
	"github.com/andrej220/sshop/pkg/secrets"
)

type runOptions struct {
	file        string
	mongo       config.MongoConfig
	secretsFile string
	envSecrets  bool
}

var runOpts runOptions

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one ssh task",
	Long: `Runs the task described by a YAML file or by a MongoDB document.

Example task file:
  _command: systemctl restart app
  ssh:
    host: app01.example.org
    user: deploy
    password_auth: true
    command_timeout: 120

Example:
  sshop run -f task.yaml --secrets secrets.yaml
  sshop run --mongo-uri mongodb://localhost:27017 --mongo-db ops --mongo-collection tasks --task-id restart-app`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		logger := newLogger(SERVICENAME)
		defer logger.Sync()
		return runTask(ctx, runOpts, logger)
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
	f := runCmd.Flags()
	f.StringVarP(&runOpts.file, "file", "f", "", "task file (YAML)")
	f.StringVar(&runOpts.mongo.URI, "mongo-uri", "", "MongoDB URI to load the task from")
	f.StringVar(&runOpts.mongo.DBName, "mongo-db", "sshop", "MongoDB database")
	f.StringVar(&runOpts.mongo.CollName, "mongo-collection", "tasks", "MongoDB collection")
	f.StringVar(&runOpts.mongo.ID, "task-id", "", "_id of the task document")
	f.StringVar(&runOpts.secretsFile, "secrets", "", "secrets file (YAML)")
	f.BoolVar(&runOpts.envSecrets, "env-secrets", true, "read secrets from SSHOP_SECRET_* environment variables")
	runCmd.MarkFlagsMutuallyExclusive("file", "mongo-uri")
	runCmd.MarkFlagsOneRequired("file", "mongo-uri")
}

func runTask(ctx context.Context, opts runOptions, logger lg.Logger) error {
	params, err := loadTaskParams(opts)
	if err != nil {
		return err
	}
	store, err := loadSecrets(opts.secretsFile, opts.envSecrets)
	if err != nil {
		return err
	}

	op := operator.NewFactory(logger).NewOperator(operator.TaskContext{
		ID:      uuid.New(),
		Config:  params,
		Secrets: store,
	})
	res, err := op.Run(ctx)
	if err != nil {
		return err
	}
	logger.Info("task succeeded", lg.String("invocation", res.ID.String()))
	return nil
}

func loadTaskParams(opts runOptions) (config.Params, error) {
	if opts.file != "" {
		store, err := config.NewStore(config.FileStore, &config.FileConfig{Path: opts.file})
		if err != nil {
			return config.Params{}, err
		}
		return config.LoadParams(store)
	}
	if opts.mongo.URI == "" || opts.mongo.ID == "" {
		return config.Params{}, fmt.Errorf("either --file or --mongo-uri with --task-id is required")
	}
	store, err := config.NewStore(config.MongoStore, &opts.mongo)
	if err != nil {
		return config.Params{}, err
	}
	defer store.(*mongostore.MongoStore).Close()
	return config.LoadParams(store)
}

func loadSecrets(path string, env bool) (*secrets.Store, error) {
	store := secrets.NewStore(nil)
	if path != "" {
		var err error
		if store, err = secrets.LoadFile(path); err != nil {
			return nil, err
		}
	}
	if env {
		store.WithOSEnv()
	}
	return store, nil
}
