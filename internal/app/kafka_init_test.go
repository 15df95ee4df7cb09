package app

import (
	"testing"

	log "github.com/sirupsen/logrus"
)

func TestInitKafkaProducer_DisabledWithoutBrokers(t *testing.T) {
	logger := log.WithField("test", "kafka-init")

	for _, brokers := range []string{"", "  ", ", ,"} {
		producer, err := initKafkaProducer(brokers, logger)
		if err != nil {
			t.Fatalf("brokers %q: expected silent disable, got %v", brokers, err)
		}
		if producer != nil {
			t.Fatalf("brokers %q: expected nil producer", brokers)
		}
	}
}

func TestInitKafkaProducer_UnreachableBrokersFail(t *testing.T) {
	logger := log.WithField("test", "kafka-init")

	// Список с пробелами должен парситься, но подключение не пройдёт.
	producer, err := initKafkaProducer("127.0.0.1:1, 127.0.0.1:2", logger)
	if err == nil {
		t.Fatal("expected connection error for unreachable brokers")
	}
	if producer != nil {
		t.Fatal("expected nil producer on connection error")
	}
}

func TestCloseKafkaProducer_NilSafe(_ *testing.T) {
	closeKafkaProducer(nil, log.WithField("test", "kafka-init"))
}
