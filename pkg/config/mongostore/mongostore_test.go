package mongostore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestNormalize(t *testing.T) {
	doc := primitive.M{
		"host": "db01",
		"port": int32(2222),
		"ssh": primitive.D{
			{Key: "user", Value: "deploy"},
			{Key: "stdout_log", Value: false},
		},
		"tags": primitive.A{"a", primitive.M{"k": "v"}},
	}

	got := Normalize(doc)

	assert.Equal(t, map[string]any{
		"host": "db01",
		"port": int32(2222),
		"ssh":  map[string]any{"user": "deploy", "stdout_log": false},
		"tags": []any{"a", map[string]any{"k": "v"}},
	}, got)
}
