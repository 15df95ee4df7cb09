// Утилита возврата событий резерваций из dead letter queue в основной
// топик. По умолчанию работает в режиме dry-run: показывает кандидатов,
// ничего не публикуя; боевой запуск включается флагом -execute.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/IBM/sarama"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/boxoffice/internal/messaging/kafka"
)

type config struct {
	brokers     []string
	dlqTopic    string
	eventsTopic string
	limit       int
	execute     bool
	idleTimeout time.Duration
}

// report — итог одного прогона по всем партициям DLQ.
type report struct {
	scanned  int
	restored int
	skipped  int
}

// dlqSource объединяет то, что нужно от Kafka для чтения DLQ:
// список партиций, их границы и последовательное чтение.
type dlqSource interface {
	Partitions(topic string) ([]int32, error)
	GetOffset(topic string, partition int32, at int64) (int64, error)
	ConsumePartition(topic string, partition int32, offset int64) (messageStream, error)
	Close() error
}

type messageStream interface {
	Messages() <-chan *sarama.ConsumerMessage
	Close() error
}

// eventSink принимает восстановленные события. В dry-run он nil.
type eventSink interface {
	SendMessage(msg *sarama.ProducerMessage) (int32, int64, error)
	Close() error
}

func main() {
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})

	cfg, err := readConfig(os.Args[1:])
	if err != nil {
		log.WithError(err).Fatal("bad arguments")
	}

	src, sink, err := connect(cfg)
	if err != nil {
		log.WithError(err).Fatal("kafka connect failed")
	}
	defer src.Close()
	if sink != nil {
		defer sink.Close()
	}

	rep, err := replay(context.Background(), cfg, src, sink)
	if err != nil {
		log.WithError(err).Fatal("dlq replay failed")
	}

	mode := "dry-run"
	if cfg.execute {
		mode = "execute"
	}
	log.WithFields(log.Fields{
		"mode":     mode,
		"scanned":  rep.scanned,
		"restored": rep.restored,
		"skipped":  rep.skipped,
	}).Info("dlq replay finished")
}

func readConfig(args []string) (config, error) {
	fs := flag.NewFlagSet("dlq-reprocess", flag.ContinueOnError)
	var (
		brokersRaw  = fs.String("brokers", "", "kafka brokers, comma-separated (default: KAFKA_BROKERS)")
		dlqTopic    = fs.String("dlq-topic", kafka.TopicDeadLetterQueue, "dead letter topic to read")
		eventsTopic = fs.String("topic", kafka.TopicReservationEvents, "topic to restore events into")
		limit       = fs.Int("limit", 100, "max messages to scan")
		execute     = fs.Bool("execute", false, "actually publish instead of dry-run")
		idle        = fs.Duration("idle-timeout", 2*time.Second, "stop reading a partition after this much silence")
	)
	if err := fs.Parse(args); err != nil {
		return config{}, err
	}

	raw := strings.TrimSpace(*brokersRaw)
	if raw == "" {
		raw = strings.TrimSpace(os.Getenv("KAFKA_BROKERS"))
	}
	var brokers []string
	for _, b := range strings.Split(raw, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}

	cfg := config{
		brokers:     brokers,
		dlqTopic:    strings.TrimSpace(*dlqTopic),
		eventsTopic: strings.TrimSpace(*eventsTopic),
		limit:       *limit,
		execute:     *execute,
		idleTimeout: *idle,
	}
	switch {
	case len(cfg.brokers) == 0:
		return config{}, errors.New("kafka brokers are required (-brokers or KAFKA_BROKERS)")
	case cfg.dlqTopic == "" || cfg.eventsTopic == "":
		return config{}, errors.New("both -dlq-topic and -topic are required")
	case cfg.dlqTopic == cfg.eventsTopic:
		return config{}, errors.New("-dlq-topic and -topic must differ")
	case cfg.limit <= 0:
		return config{}, errors.New("-limit must be positive")
	case cfg.idleTimeout <= 0:
		return config{}, errors.New("-idle-timeout must be positive")
	}
	return cfg, nil
}

// saramaSource — боевая реализация dlqSource поверх client+consumer.
type saramaSource struct {
	client   sarama.Client
	consumer sarama.Consumer
}

func (s *saramaSource) Partitions(topic string) ([]int32, error) { return s.client.Partitions(topic) }

func (s *saramaSource) GetOffset(topic string, partition int32, at int64) (int64, error) {
	return s.client.GetOffset(topic, partition, at)
}

func (s *saramaSource) ConsumePartition(topic string, partition int32, offset int64) (messageStream, error) {
	return s.consumer.ConsumePartition(topic, partition, offset)
}

func (s *saramaSource) Close() error {
	_ = s.consumer.Close()
	return s.client.Close()
}

func connect(cfg config) (dlqSource, eventSink, error) {
	client, err := sarama.NewClient(cfg.brokers, sarama.NewConfig())
	if err != nil {
		return nil, nil, fmt.Errorf("kafka client: %w", err)
	}
	consumer, err := sarama.NewConsumerFromClient(client)
	if err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("kafka consumer: %w", err)
	}
	src := &saramaSource{client: client, consumer: consumer}

	if !cfg.execute {
		return src, nil, nil
	}

	producerCfg := sarama.NewConfig()
	producerCfg.Producer.RequiredAcks = sarama.WaitForAll
	producerCfg.Producer.Idempotent = true
	producerCfg.Net.MaxOpenRequests = 1
	producerCfg.Producer.Return.Successes = true
	producer, err := sarama.NewSyncProducer(cfg.brokers, producerCfg)
	if err != nil {
		_ = src.Close()
		return nil, nil, fmt.Errorf("kafka producer: %w", err)
	}
	return src, producer, nil
}

func replay(ctx context.Context, cfg config, src dlqSource, sink eventSink) (report, error) {
	if cfg.execute && sink == nil {
		return report{}, errors.New("execute mode needs a producer")
	}

	partitions, err := src.Partitions(cfg.dlqTopic)
	if err != nil {
		return report{}, fmt.Errorf("partitions of %s: %w", cfg.dlqTopic, err)
	}
	sort.Slice(partitions, func(i, j int) bool { return partitions[i] < partitions[j] })

	var total report
	for _, p := range partitions {
		if total.scanned >= cfg.limit {
			break
		}
		part, err := scanPartition(ctx, cfg, src, sink, p, cfg.limit-total.scanned)
		if err != nil {
			return total, err
		}
		total.scanned += part.scanned
		total.restored += part.restored
		total.skipped += part.skipped
	}
	return total, nil
}

func scanPartition(ctx context.Context, cfg config, src dlqSource, sink eventSink, partition int32, budget int) (report, error) {
	var rep report

	oldest, err := src.GetOffset(cfg.dlqTopic, partition, sarama.OffsetOldest)
	if err != nil {
		return rep, fmt.Errorf("oldest offset of partition %d: %w", partition, err)
	}
	newest, err := src.GetOffset(cfg.dlqTopic, partition, sarama.OffsetNewest)
	if err != nil {
		return rep, fmt.Errorf("newest offset of partition %d: %w", partition, err)
	}
	if newest <= oldest {
		return rep, nil
	}

	stream, err := src.ConsumePartition(cfg.dlqTopic, partition, oldest)
	if err != nil {
		return rep, fmt.Errorf("consume partition %d: %w", partition, err)
	}
	defer stream.Close()

	idle := time.NewTimer(cfg.idleTimeout)
	defer idle.Stop()

	for rep.scanned < budget {
		select {
		case <-ctx.Done():
			return rep, ctx.Err()
		case <-idle.C:
			return rep, nil
		case msg, ok := <-stream.Messages():
			if !ok || msg == nil || msg.Offset >= newest {
				return rep, nil
			}
			if !idle.Stop() {
				select {
				case <-idle.C:
				default:
				}
			}
			idle.Reset(cfg.idleTimeout)
			rep.scanned++

			key, value, err := rebuildEvent(msg.Value)
			if err != nil {
				rep.skipped++
				log.WithError(err).WithFields(log.Fields{
					"partition": partition,
					"offset":    msg.Offset,
				}).Warn("skipping unreadable dlq record")
				continue
			}

			if cfg.execute {
				_, _, err := sink.SendMessage(&sarama.ProducerMessage{
					Topic: cfg.eventsTopic,
					Key:   sarama.StringEncoder(key),
					Value: sarama.ByteEncoder(value),
				})
				if err != nil {
					return rep, fmt.Errorf("restore offset %d of partition %d: %w", msg.Offset, partition, err)
				}
			} else {
				log.WithFields(log.Fields{
					"partition": partition,
					"offset":    msg.Offset,
					"key":       key,
				}).Info("would restore")
			}
			rep.restored++

			if msg.Offset+1 >= newest {
				return rep, nil
			}
		}
	}
	return rep, nil
}

// Формат DLQ-записи задаёт outbox-воркер: publisher-конверт, внутри
// которого dlq-конверт с исходным payload события и причиной отказа.
type wireEnvelope struct {
	ID            string          `json:"id"`
	AggregateType string          `json:"aggregate_type"`
	AggregateID   string          `json:"aggregate_id"`
	EventType     string          `json:"event_type"`
	Payload       json.RawMessage `json:"payload"`
}

type deadLetter struct {
	OutboxID      string          `json:"outbox_id"`
	AggregateType string          `json:"aggregate_type"`
	AggregateID   string          `json:"aggregate_id"`
	EventType     string          `json:"event_type"`
	Payload       json.RawMessage `json:"payload"`
	PublishError  string          `json:"publish_error"`
}

// rebuildEvent разворачивает DLQ-запись обратно в событие для основного
// топика: ключ и конверт восстанавливаются, причина отказа отбрасывается.
func rebuildEvent(raw []byte) (key string, value []byte, err error) {
	var outer wireEnvelope
	if err := json.Unmarshal(raw, &outer); err != nil {
		return "", nil, fmt.Errorf("decode dlq record: %w", err)
	}
	var dead deadLetter
	if err := json.Unmarshal(outer.Payload, &dead); err != nil {
		return "", nil, fmt.Errorf("decode dead letter body: %w", err)
	}
	if len(dead.Payload) == 0 {
		return "", nil, errors.New("dead letter has no original payload")
	}

	restored := struct {
		wireEnvelope
		PublishedAt time.Time `json:"published_at"`
	}{
		wireEnvelope: wireEnvelope{
			ID:            pick(dead.OutboxID, outer.ID),
			AggregateType: pick(dead.AggregateType, outer.AggregateType),
			AggregateID:   pick(dead.AggregateID, outer.AggregateID),
			EventType:     pick(dead.EventType, outer.EventType),
			Payload:       dead.Payload,
		},
		PublishedAt: time.Now().UTC(),
	}

	value, err = json.Marshal(restored)
	if err != nil {
		return "", nil, fmt.Errorf("encode restored event: %w", err)
	}
	return pick(restored.AggregateID, restored.ID), value, nil
}

func pick(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
