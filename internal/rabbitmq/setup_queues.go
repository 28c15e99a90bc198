package rabbitmq

// QueueConfig — очередь и ключ, которым она привязана к ExchangeName.
type QueueConfig struct {
	QueueName  string
	RoutingKey string
}

// Очередь пользовательских уведомлений.
const (
	UserNotifyQueue      = "notifications.user"
	UserNotifyRoutingKey = "user.notify"
)

func GetNotificationQueues() []QueueConfig {
	return []QueueConfig{
		{QueueName: UserNotifyQueue, RoutingKey: UserNotifyRoutingKey},
	}
}
