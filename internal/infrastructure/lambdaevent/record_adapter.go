// Package lambdaevent adapts MSK (Kafka) Lambda batches to the event router.
package lambdaevent

import (
	"context"
	"encoding/base64"
	"sort"

	"github.com/aws/aws-lambda-go/events"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/example/ec-order-engine/internal/eventbus"
	"github.com/example/ec-order-engine/internal/infrastructure/kafka"
)

// ConvertFromKafkaRecord decodes the base64 record value into an envelope.
func ConvertFromKafkaRecord(record events.KafkaRecord) (eventbus.Envelope, error) {
	value, err := base64.StdEncoding.DecodeString(record.Value)
	if err != nil {
		return eventbus.Envelope{}, errors.Wrap(err, "decode record value")
	}
	return kafka.DecodeMessage(value)
}

// OrderedRecords flattens a batch. Records keep their offset order within
// each topic-partition; partitions are visited in a stable order.
func OrderedRecords(event events.KafkaEvent) []events.KafkaRecord {
	keys := make([]string, 0, len(event.Records))
	for k := range event.Records {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var out []events.KafkaRecord
	for _, k := range keys {
		records := append([]events.KafkaRecord(nil), event.Records[k]...)
		sort.SliceStable(records, func(i, j int) bool { return records[i].Offset < records[j].Offset })
		out = append(out, records...)
	}
	return out
}

// Summary reports how a batch went.
type Summary struct {
	Processed int
	Skipped   int
	Failed    int
}

// Processor dispatches every record of a batch. Malformed records are
// skipped; handler failures make the whole batch fail so Lambda retries it.
type Processor struct {
	router *eventbus.Router
	log    logrus.FieldLogger
}

func NewProcessor(router *eventbus.Router, log logrus.FieldLogger) *Processor {
	return &Processor{router: router, log: log.WithField("component", "lambda-projector")}
}

func (p *Processor) Handle(ctx context.Context, event events.KafkaEvent) (Summary, error) {
	records := OrderedRecords(event)
	p.log.WithField("records", len(records)).Info("received batch")

	var summary Summary
	var firstErr error
	for _, record := range records {
		log := p.log.WithFields(logrus.Fields{
			"topic":     record.Topic,
			"partition": record.Partition,
			"offset":    record.Offset,
		})

		env, err := ConvertFromKafkaRecord(record)
		if err != nil {
			log.WithError(err).Error("skipping malformed record")
			summary.Skipped++
			continue
		}

		if err := p.router.Dispatch(ctx, env); err != nil {
			log.WithField("event_id", env.ID).WithError(err).Error("failed to project event")
			summary.Failed++
			if firstErr == nil {
				firstErr = errors.Wrapf(err, "event %s", env.ID)
			}
			continue
		}
		summary.Processed++
	}

	p.log.WithFields(logrus.Fields{
		"processed": summary.Processed,
		"skipped":   summary.Skipped,
		"failed":    summary.Failed,
	}).Info("batch done")
	return summary, firstErr
}
