package migration

import (
	"context"
	"fmt"
	"log/slog"

	"arcmigrate/internal/logging"
)

// Result aggregates both stages of one pipeline run.
type Result struct {
	Produce ProduceSummary
	Insert  InsertSummary
}

// Pipeline connects the transcode producer to the insert consumer through
// one ordered, unbounded queue of item ids.
type Pipeline struct {
	producer *Transcoder
	consumer *Inserter
	logger   *slog.Logger
}

// NewPipeline wires producer to consumer.
func NewPipeline(producer *Transcoder, consumer *Inserter, logger *slog.Logger) *Pipeline {
	return &Pipeline{
		producer: producer,
		consumer: consumer,
		logger:   logging.NewComponentLogger(logger, "pipeline"),
	}
}

// Run processes batch and returns once the consumer has drained every
// forwarded id. A panic in the producer loop still closes the queue so the
// consumer finishes; it is returned as an error.
func (p *Pipeline) Run(ctx context.Context, batch string) (result Result, err error) {
	queue := newIDQueue()
	done := make(chan InsertSummary, 1)
	go func() {
		done <- p.consumer.Run(ctx, batch, queue.Receive())
	}()

	func() {
		defer queue.Close()
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("transcode stage panicked: %v", r)
			}
		}()
		result.Produce, err = p.producer.Run(ctx, batch, queue.Send)
	}()

	result.Insert = <-done
	if err != nil {
		logging.ErrorWithContext(p.logger, "pipeline aborted", "pipeline_failed",
			logging.Error(err),
			logging.String(logging.FieldBatch, batch),
		)
	}
	return result, err
}
