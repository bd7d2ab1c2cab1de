package pubsub

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/angelmondragon/packdrop-backend/pkg/config"
)

func TestResourceName(t *testing.T) {
	assert.Equal(t, "projects/p1/topics/deliveries", resourceName("p1", "topics", " deliveries "))
	assert.Equal(t, "projects/other/topics/x", resourceName("p1", "topics", "projects/other/topics/x"))
	assert.Equal(t, "projects/p1/subscriptions/notify", resourceName("p1", "subscriptions", "notify"))
	assert.Empty(t, resourceName("p1", "topics", "  "))
	assert.Empty(t, resourceName("", "topics", "deliveries"))
}

func TestTopicNamesDedupesAndSkipsBlank(t *testing.T) {
	names := TopicNames(config.PubSubConfig{
		DeliveriesTopic:   "pd-deliveries",
		EarningsTopic:     "pd-earnings",
		NotificationTopic: "",
		AlertsTopic:       "pd-earnings",
	})
	assert.Equal(t, []string{"pd-deliveries", "pd-earnings"}, names)
}

func TestClientOptions(t *testing.T) {
	assert.Empty(t, clientOptions(config.GCPConfig{ProjectID: "p"}))
	assert.Len(t, clientOptions(config.GCPConfig{CredentialsJSON: `{"type":"service_account"}`}), 1)
	assert.Len(t, clientOptions(config.GCPConfig{ApplicationCredentials: "/secrets/sa.json"}), 1)
}

func TestNilClientIsSafe(t *testing.T) {
	var c *Client
	assert.Nil(t, c.Publisher("pd-deliveries"))
	assert.NoError(t, c.Close())
	assert.Error(t, c.Ping(context.Background()))
}
