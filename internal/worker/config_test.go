package worker

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "worker.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
kafka:
  brokers: ["localhost:9092"]
  topic: ssh-tasks
  groupID: sshop
  resultTopic: ssh-results
secrets:
  file: /etc/sshop/secrets.yaml
`), 0600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"localhost:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, "ssh-tasks", cfg.Kafka.Topic)
	assert.Equal(t, "sshop", cfg.Kafka.GroupID)
	assert.Equal(t, "ssh-results", cfg.Kafka.ResultTopic)
	assert.Equal(t, "/etc/sshop/secrets.yaml", cfg.Secrets.File)
}

func TestLoadConfigValidates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "worker.yaml")
	require.NoError(t, os.WriteFile(path, []byte("kafka:\n  topic: ssh-tasks\n"), 0600))

	_, err := LoadConfig(path)
	assert.Error(t, err)
}
