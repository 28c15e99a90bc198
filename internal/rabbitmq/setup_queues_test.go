package rabbitmq

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetNotificationQueues(t *testing.T) {
	queues := GetNotificationQueues()
	assert.Equal(t, []QueueConfig{{QueueName: "notifications.user", RoutingKey: "user.notify"}}, queues)
}
