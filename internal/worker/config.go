package worker

import (
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/andrej220/sshop/pkg/config/filestore"
	"github.com/andrej220/sshop/pkg/consumer"
)

const SERVICENAME = "sshop-worker"

type KafkaConfig struct {
	consumer.Config `yaml:",inline"`
	ResultTopic     string `yaml:"resultTopic" json:"resultTopic" validate:"required"`
}

type Config struct {
	Kafka   KafkaConfig `yaml:"kafka" json:"kafka"`
	Secrets struct {
		File string `yaml:"file" json:"file"`
	} `yaml:"secrets" json:"secrets"`
}

func LoadConfig(path string) (*Config, error) {
	cfg := &Config{}
	if err := filestore.New(path).Load(cfg); err != nil {
		return nil, err
	}
	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid worker config %s: %w", path, err)
	}
	return cfg, nil
}
