package app

import (
	"testing"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/boxoffice/internal/storage/memory"
)

func TestCreateOutboxWorker_NilProducer(t *testing.T) {
	store := memory.NewStore()

	worker := createOutboxWorker(DefaultConfig(), store.Outbox(), nil, log.WithField("test", "outbox-factory"))
	if worker != nil {
		t.Fatal("expected nil worker without kafka producer")
	}
}
