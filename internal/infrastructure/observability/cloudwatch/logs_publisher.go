package cloudwatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs/types"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	applicationPort "github.com/dreschagin/latency-validator/internal/application/port"
	"github.com/dreschagin/latency-validator/internal/infrastructure/awsclient"
)

// PutLogEvents quotas.
const (
	maxEventsPerPut = 10000
	maxBytesPerPut  = 1048576
	// eventOverhead is what CloudWatch adds to every message when counting batch bytes.
	eventOverhead = 26
	maxEventBytes = 256*1024 - eventOverhead

	truncatedSuffix = "…"
	defaultBuffer   = 50
)

// LogsPublisherConfig configures mirroring of analyzer logs to CloudWatch Logs.
type LogsPublisherConfig struct {
	LogGroupName string
	// StreamPrefix starts the per-invocation stream name: <prefix>/<yyyy/mm/dd>/<uuid>.
	StreamPrefix      string
	Region            string
	Endpoint          string
	AccessKeyID       string
	SecretAccessKey   string
	BufferSize        int
	AutoCreate        bool
	RequestsPerSecond float64
}

func (c *LogsPublisherConfig) normalize() error {
	c.LogGroupName = strings.TrimSpace(c.LogGroupName)
	c.StreamPrefix = strings.Trim(strings.TrimSpace(c.StreamPrefix), "/")
	switch {
	case c.LogGroupName == "":
		return errors.New("log group name is required")
	case c.StreamPrefix == "":
		return errors.New("log stream prefix is required")
	}
	if c.BufferSize <= 0 {
		c.BufferSize = defaultBuffer
	}
	return nil
}

type logsAPI interface {
	PutLogEvents(ctx context.Context, params *cloudwatchlogs.PutLogEventsInput, optFns ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.PutLogEventsOutput, error)
	CreateLogGroup(ctx context.Context, params *cloudwatchlogs.CreateLogGroupInput, optFns ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.CreateLogGroupOutput, error)
	CreateLogStream(ctx context.Context, params *cloudwatchlogs.CreateLogStreamInput, optFns ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.CreateLogStreamOutput, error)
}

// LogsPublisher writes the log entries of one analyzer invocation into its
// own CloudWatch Logs stream. Each entry becomes a flat JSON object, so
// Logs Insights can filter on run_id, file or passed directly.
type LogsPublisher struct {
	client  logsAPI
	group   string
	stream  string
	limiter *rate.Limiter
	flushAt int

	mu      sync.Mutex
	pending []applicationPort.LogEntry
}

var _ applicationPort.LogPublisher = (*LogsPublisher)(nil)

// NewLogsPublisher resolves AWS credentials and, with AutoCreate, makes sure
// the group and this invocation's stream exist.
func NewLogsPublisher(ctx context.Context, cfg LogsPublisherConfig) (*LogsPublisher, error) {
	if err := cfg.normalize(); err != nil {
		return nil, err
	}

	awsCfg, err := awsclient.Load(ctx, awsclient.Options{
		Region:          cfg.Region,
		Endpoint:        cfg.Endpoint,
		AccessKeyID:     cfg.AccessKeyID,
		SecretAccessKey: cfg.SecretAccessKey,
	})
	if err != nil {
		return nil, err
	}

	stream := streamName(cfg.StreamPrefix, time.Now(), uuid.NewString())
	p := newLogsPublisher(cloudwatchlogs.NewFromConfig(awsCfg), cfg, stream)

	if cfg.AutoCreate {
		if err := p.ensureStream(ctx); err != nil {
			return nil, err
		}
	}

	return p, nil
}

func newLogsPublisher(client logsAPI, cfg LogsPublisherConfig, stream string) *LogsPublisher {
	return &LogsPublisher{
		client:  client,
		group:   cfg.LogGroupName,
		stream:  stream,
		limiter: newRequestLimiter(cfg.RequestsPerSecond),
		flushAt: cfg.BufferSize,
	}
}

func streamName(prefix string, now time.Time, invocation string) string {
	return prefix + "/" + now.UTC().Format("2006/01/02") + "/" + invocation
}

// Stream returns the name of the stream this invocation writes to.
func (p *LogsPublisher) Stream() string {
	return p.stream
}

// Publish queues one entry.
func (p *LogsPublisher) Publish(ctx context.Context, entry applicationPort.LogEntry) error {
	return p.PublishBatch(ctx, []applicationPort.LogEntry{entry})
}

// PublishBatch queues entries and sends them once BufferSize is reached.
func (p *LogsPublisher) PublishBatch(ctx context.Context, entries []applicationPort.LogEntry) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, entry := range entries {
		p.pending = append(p.pending, entry)
		if len(p.pending) < p.flushAt {
			continue
		}
		if err := p.sendLocked(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Flush sends everything queued so far.
func (p *LogsPublisher) Flush(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.sendLocked(ctx)
}

// Close sends the tail of the run's log.
func (p *LogsPublisher) Close(ctx context.Context) error {
	return p.Flush(ctx)
}

// sendLocked drains the queue even when a put fails; the stderr log stays
// the primary copy.
func (p *LogsPublisher) sendLocked(ctx context.Context) error {
	if len(p.pending) == 0 {
		return nil
	}

	events := encodeEvents(p.pending)
	p.pending = p.pending[:0]

	for _, batch := range splitBatches(events) {
		err := withRetry(ctx, p.limiter, func() error {
			_, err := p.client.PutLogEvents(ctx, &cloudwatchlogs.PutLogEventsInput{
				LogGroupName:  aws.String(p.group),
				LogStreamName: aws.String(p.stream),
				LogEvents:     batch,
			})
			return err
		})
		if err != nil {
			return fmt.Errorf("put log events to %s: %w", p.stream, err)
		}
	}
	return nil
}

// encodeEvents orders entries by time, as PutLogEvents requires, and skips
// entries whose fields cannot be marshaled.
func encodeEvents(entries []applicationPort.LogEntry) []types.InputLogEvent {
	ordered := make([]applicationPort.LogEntry, len(entries))
	copy(ordered, entries)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Timestamp.Before(ordered[j].Timestamp)
	})

	events := make([]types.InputLogEvent, 0, len(ordered))
	for _, entry := range ordered {
		event, err := encodeEvent(entry)
		if err != nil {
			continue
		}
		events = append(events, event)
	}
	return events
}

// encodeEvent lifts the entry's fields to the top level next to time, level and msg.
func encodeEvent(entry applicationPort.LogEntry) (types.InputLogEvent, error) {
	record := make(map[string]any, len(entry.Fields)+3)
	for key, value := range entry.Fields {
		record[key] = value
	}
	record["time"] = entry.Timestamp.UTC().Format(time.RFC3339Nano)
	record["level"] = string(entry.Level)
	record["msg"] = entry.Message

	body, err := json.Marshal(record)
	if err != nil {
		return types.InputLogEvent{}, fmt.Errorf("marshal log entry: %w", err)
	}

	return types.InputLogEvent{
		Message:   aws.String(truncateEvent(string(body))),
		Timestamp: aws.Int64(entry.Timestamp.UnixMilli()),
	}, nil
}

// truncateEvent cuts oversized messages on a rune boundary.
func truncateEvent(message string) string {
	if len(message) <= maxEventBytes {
		return message
	}
	cut := maxEventBytes - len(truncatedSuffix)
	for cut > 0 && !utf8.RuneStart(message[cut]) {
		cut--
	}
	return message[:cut] + truncatedSuffix
}

// splitBatches groups events under both the count and the byte quota of one put.
func splitBatches(events []types.InputLogEvent) [][]types.InputLogEvent {
	var (
		batches [][]types.InputLogEvent
		current []types.InputLogEvent
		size    int
	)
	for _, event := range events {
		eventSize := len(aws.ToString(event.Message)) + eventOverhead
		if len(current) == maxEventsPerPut || (len(current) > 0 && size+eventSize > maxBytesPerPut) {
			batches = append(batches, current)
			current, size = nil, 0
		}
		current = append(current, event)
		size += eventSize
	}
	if len(current) > 0 {
		batches = append(batches, current)
	}
	return batches
}

func (p *LogsPublisher) ensureStream(ctx context.Context) error {
	if _, err := p.client.CreateLogGroup(ctx, &cloudwatchlogs.CreateLogGroupInput{
		LogGroupName: aws.String(p.group),
	}); ignoreExisting(err) != nil {
		return fmt.Errorf("create log group %s: %w", p.group, err)
	}

	if _, err := p.client.CreateLogStream(ctx, &cloudwatchlogs.CreateLogStreamInput{
		LogGroupName:  aws.String(p.group),
		LogStreamName: aws.String(p.stream),
	}); ignoreExisting(err) != nil {
		return fmt.Errorf("create log stream %s: %w", p.stream, err)
	}

	return nil
}

func ignoreExisting(err error) error {
	var exists *types.ResourceAlreadyExistsException
	if errors.As(err, &exists) {
		return nil
	}
	return err
}
