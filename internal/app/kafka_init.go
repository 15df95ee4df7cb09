package app

import (
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/boxoffice/internal/messaging/kafka"
)

// initKafkaProducer поднимает издателя событий, когда брокеры заданы.
// Пустая строка и недоступный брокер дают nil: продажи идут без
// публикации, накопленный outbox разгребётся после восстановления связи.
func initKafkaProducer(brokers string, logger *log.Entry) (*kafka.Producer, error) {
	var list []string
	for _, b := range strings.Split(brokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			list = append(list, b)
		}
	}
	if len(list) == 0 {
		return nil, nil
	}

	producer, err := kafka.NewProducer(list)
	if err != nil {
		logger.WithError(err).Warn("kafka is unreachable, events will stay in outbox")
		return nil, err
	}

	logger.WithField("brokers", list).Info("kafka producer ready")
	return producer, nil
}

func closeKafkaProducer(producer *kafka.Producer, logger *log.Entry) {
	if producer == nil {
		return
	}
	if err := producer.Close(); err != nil {
		logger.WithError(err).Warn("kafka producer close failed")
		return
	}
	logger.Info("kafka producer closed")
}
