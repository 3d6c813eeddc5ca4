package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/andrej220/sshop/internal/operator"
	"github.com/andrej220/sshop/internal/worker"
	"github.com/andrej220/sshop/pkg/consumer"
	"github.com/andrej220/sshop/pkg/lg"
)

var workerConfigFile string

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Run ssh tasks received from Kafka",
	Long: `Reads task messages from a Kafka topic, runs them one at a time and
writes one result message per task to the result topic.

Example config:
  kafka:
    brokers: ["localhost:9092"]
    topic: ssh-tasks
    groupID: sshop
    resultTopic: ssh-results
  secrets:
    file: /etc/sshop/secrets.yaml`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		logger := newLogger(worker.SERVICENAME)
		defer logger.Sync()

		cfg, err := worker.LoadConfig(workerConfigFile)
		if err != nil {
			return err
		}
		store, err := loadSecrets(cfg.Secrets.File, true)
		if err != nil {
			return err
		}

		tasks := consumer.NewConsumer[worker.TaskMessage](cfg.Kafka.Config)
		defer tasks.Close()
		results := worker.NewPublisher(cfg.Kafka.Brokers, cfg.Kafka.ResultTopic, logger)
		defer results.Close()

		logger.Info("worker started",
			lg.Any("brokers", cfg.Kafka.Brokers),
			lg.String("topic", cfg.Kafka.Topic),
			lg.String("resultTopic", cfg.Kafka.ResultTopic))
		return worker.New(tasks, results, operator.NewFactory(logger), store, logger).Run(ctx)
	},
}

func init() {
	rootCmd.AddCommand(workerCmd)
	workerCmd.Flags().StringVarP(&workerConfigFile, "config", "c", "worker.yaml", "worker config file (YAML)")
}
