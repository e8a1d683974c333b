package kafka

import (
	"strings"
	"time"

	"github.com/segmentio/kafka-go"

	"ms-booking/internal/config"
	"ms-booking/internal/logger"
)

// EnsureTopicsExist creates the notification topics on startup so the
// first publish does not race topic auto-creation.
func EnsureTopicsExist(cfg config.KafkaConfig, log *logger.Logger) error {
	conn, err := kafka.Dial("tcp", cfg.Brokers[0])
	if err != nil {
		return err
	}
	defer conn.Close()

	controller, err := conn.Controller()
	if err != nil {
		return err
	}
	controllerConn, err := kafka.Dial("tcp", controller.Host)
	if err != nil {
		return err
	}
	defer controllerConn.Close()

	topics := []string{
		cfg.Topics.BookingConfirmed,
		cfg.Topics.BookingCancelled,
		cfg.Topics.TicketCheckedIn,
	}
	for _, topic := range topics {
		err = controllerConn.CreateTopics(kafka.TopicConfig{
			Topic:             topic,
			NumPartitions:     1,
			ReplicationFactor: 1,
		})
		if err != nil {
			if strings.Contains(err.Error(), "already exists") {
				continue
			}
			log.Error("KAFKA", "Error creating topic "+topic+": "+err.Error())
			continue
		}
		log.Info("KAFKA", "Created topic: "+topic)
	}

	// Give the cluster a moment to propagate the new topics.
	time.Sleep(1 * time.Second)
	return nil
}
