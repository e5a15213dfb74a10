// Package dynamodb indexes archived run artifacts by source log.
//
// Table layout:
//
//	source_file  (S, partition key)  log path as passed to the analyzer
//	artifact_key (S, sort key)       <analyzed_at unix ms, 13 digits>#<run_id>#<artifact_type>
//
// Verdict and sample counts are plain attributes, so `history --failed`
// filters on them without a secondary index.
package dynamodb

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/dreschagin/latency-validator/internal/application/port"
	"github.com/dreschagin/latency-validator/internal/infrastructure/awsclient"
)

const (
	keySource   = "source_file"
	keyArtifact = "artifact_key"

	fieldRunID          = "run_id"
	fieldContentHash    = "content_hash"
	fieldArtifactType   = "artifact_type"
	fieldS3Key          = "s3_key"
	fieldURL            = "url"
	fieldContentType    = "content_type"
	fieldSizeBytes      = "size_bytes"
	fieldPassed         = "passed"
	fieldTotalSamples   = "total_samples"
	fieldFailingWindows = "failing_windows"
	fieldP95MaxMs       = "p95_max_ms"
	fieldAnalyzedAt     = "analyzed_at"
	// fieldExpiresAt holds epoch seconds, the format DynamoDB TTL expects.
	fieldExpiresAt = "expires_at"

	defaultPageSize = 20
	maxPageSize     = 100
	batchSize       = 25
	batchAttempts   = 5
)

var (
	artifactKeyPattern = regexp.MustCompile(`^\d{13}#[^#]+#[^#]+$`)

	ErrInvalidCursor = errors.New("invalid history cursor")
)

type Config struct {
	TableName       string
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	StrongReads     bool
}

type dynamoAPI interface {
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	BatchWriteItem(ctx context.Context, params *dynamodb.BatchWriteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.BatchWriteItemOutput, error)
}

// ReportMetadataRepository is the DynamoDB-backed index behind `history`.
type ReportMetadataRepository struct {
	client      dynamoAPI
	table       string
	strongReads bool
	// backoff is the wait before retrying unprocessed items, scaled by attempt.
	backoff time.Duration
}

var _ port.ReportMetadataRepository = (*ReportMetadataRepository)(nil)

func NewReportMetadataRepository(ctx context.Context, cfg Config) (*ReportMetadataRepository, error) {
	table := strings.TrimSpace(cfg.TableName)
	if table == "" {
		return nil, errors.New("dynamodb table name is required")
	}

	awsCfg, err := awsclient.Load(ctx, awsclient.Options{
		Region:          cfg.Region,
		Endpoint:        cfg.Endpoint,
		AccessKeyID:     cfg.AccessKeyID,
		SecretAccessKey: cfg.SecretAccessKey,
	})
	if err != nil {
		return nil, fmt.Errorf("dynamodb: %w", err)
	}

	return newReportMetadataRepository(dynamodb.NewFromConfig(awsCfg), table, cfg.StrongReads), nil
}

func newReportMetadataRepository(client dynamoAPI, table string, strongReads bool) *ReportMetadataRepository {
	return &ReportMetadataRepository{
		client:      client,
		table:       table,
		strongReads: strongReads,
		backoff:     100 * time.Millisecond,
	}
}

// PutBatch indexes the artifacts of a run, 25 items per BatchWriteItem call.
func (r *ReportMetadataRepository) PutBatch(ctx context.Context, records []port.ReportMetadata) error {
	requests := make([]types.WriteRequest, 0, len(records))
	for _, record := range records {
		item, err := encodeArtifact(record)
		if err != nil {
			return err
		}
		requests = append(requests, types.WriteRequest{PutRequest: &types.PutRequest{Item: item}})
	}

	for len(requests) > 0 {
		n := min(batchSize, len(requests))
		if err := r.writeBatch(ctx, requests[:n]); err != nil {
			return err
		}
		requests = requests[n:]
	}
	return nil
}

func (r *ReportMetadataRepository) writeBatch(ctx context.Context, requests []types.WriteRequest) error {
	pending := map[string][]types.WriteRequest{r.table: requests}

	for attempt := 1; ; attempt++ {
		out, err := r.client.BatchWriteItem(ctx, &dynamodb.BatchWriteItemInput{RequestItems: pending})
		if err != nil {
			return fmt.Errorf("dynamodb batch write: %w", err)
		}
		if len(out.UnprocessedItems) == 0 {
			return nil
		}
		if attempt == batchAttempts {
			return fmt.Errorf("dynamodb batch write: %d items unprocessed after %d attempts",
				len(out.UnprocessedItems[r.table]), batchAttempts)
		}

		pending = out.UnprocessedItems
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(attempt) * r.backoff):
		}
	}
}

// ListBySource returns one page of a log's artifacts, newest first.
// Limit counts items read before the type and verdict filters apply, so a
// filtered page can be short while NextCursor is still set.
func (r *ReportMetadataRepository) ListBySource(
	ctx context.Context,
	query port.ReportListQuery,
) (port.ReportListPage, error) {
	source := strings.TrimSpace(query.SourceFile)
	if source == "" {
		return port.ReportListPage{}, errors.New("source_file is required")
	}

	input := &dynamodb.QueryInput{
		TableName:                aws.String(r.table),
		ScanIndexForward:         aws.Bool(false),
		ConsistentRead:           aws.Bool(r.strongReads),
		Limit:                    aws.Int32(int32(pageSize(query.Limit))),
		ExpressionAttributeNames: map[string]string{"#src": keySource},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":src": stringValue(source),
		},
	}

	keyCondition := "#src = :src"
	if !query.From.IsZero() || !query.To.IsZero() {
		lower, upper := timeBounds(query.From, query.To)
		keyCondition += " AND #ak BETWEEN :lower AND :upper"
		input.ExpressionAttributeNames["#ak"] = keyArtifact
		input.ExpressionAttributeValues[":lower"] = stringValue(lower)
		input.ExpressionAttributeValues[":upper"] = stringValue(upper)
	}
	input.KeyConditionExpression = aws.String(keyCondition)

	var filters []string
	if artifactType := strings.TrimSpace(query.ArtifactType); artifactType != "" {
		filters = append(filters, "#type = :type")
		input.ExpressionAttributeNames["#type"] = fieldArtifactType
		input.ExpressionAttributeValues[":type"] = stringValue(artifactType)
	}
	if query.OnlyFailed {
		filters = append(filters, "#passed = :failed")
		input.ExpressionAttributeNames["#passed"] = fieldPassed
		input.ExpressionAttributeValues[":failed"] = &types.AttributeValueMemberBOOL{Value: false}
	}
	if len(filters) > 0 {
		input.FilterExpression = aws.String(strings.Join(filters, " AND "))
	}

	if cursor := strings.TrimSpace(query.Cursor); cursor != "" {
		artifactKey, err := decodeCursor(cursor)
		if err != nil {
			return port.ReportListPage{}, err
		}
		input.ExclusiveStartKey = map[string]types.AttributeValue{
			keySource:   stringValue(source),
			keyArtifact: stringValue(artifactKey),
		}
	}

	out, err := r.client.Query(ctx, input)
	if err != nil {
		return port.ReportListPage{}, fmt.Errorf("dynamodb query: %w", err)
	}

	page := port.ReportListPage{Items: make([]port.ReportMetadata, 0, len(out.Items))}
	for _, item := range out.Items {
		record, err := decodeArtifact(item)
		if err != nil {
			return port.ReportListPage{}, err
		}
		page.Items = append(page.Items, record)
	}

	if last, ok := out.LastEvaluatedKey[keyArtifact].(*types.AttributeValueMemberS); ok {
		page.NextCursor = base64.RawURLEncoding.EncodeToString([]byte(last.Value))
	}
	return page, nil
}

func pageSize(limit int) int {
	switch {
	case limit <= 0:
		return defaultPageSize
	case limit > maxPageSize:
		return maxPageSize
	default:
		return limit
	}
}

func artifactKey(analyzedAt time.Time, runID, artifactType string) string {
	return fmt.Sprintf("%013d#%s#%s", analyzedAt.UnixMilli(), runID, artifactType)
}

// timeBounds turns an optionally open [from, to] range into sort key bounds.
// "~" sorts after every run id character.
func timeBounds(from, to time.Time) (string, string) {
	lower, upper := int64(0), int64(9999999999999)
	if !from.IsZero() {
		lower = from.UnixMilli()
	}
	if !to.IsZero() {
		upper = to.UnixMilli()
	}
	return fmt.Sprintf("%013d#", lower), fmt.Sprintf("%013d#~", upper)
}

func decodeCursor(cursor string) (string, error) {
	raw, err := base64.RawURLEncoding.DecodeString(cursor)
	if err != nil || !artifactKeyPattern.Match(raw) {
		return "", ErrInvalidCursor
	}
	return string(raw), nil
}

func encodeArtifact(record port.ReportMetadata) (map[string]types.AttributeValue, error) {
	for name, value := range map[string]string{
		keySource:         record.SourceFile,
		fieldRunID:        record.RunID,
		fieldArtifactType: record.ArtifactType,
		fieldS3Key:        record.S3Key,
	} {
		if strings.TrimSpace(value) == "" {
			return nil, fmt.Errorf("%s is required", name)
		}
	}
	// both end up inside the sort key
	if strings.Contains(record.RunID+record.ArtifactType, "#") {
		return nil, errors.New("run_id and artifact_type must not contain '#'")
	}

	analyzedAt := record.AnalyzedAt.UTC()
	if analyzedAt.IsZero() {
		analyzedAt = time.Now().UTC()
	}

	item := map[string]types.AttributeValue{
		keySource:           stringValue(record.SourceFile),
		keyArtifact:         stringValue(artifactKey(analyzedAt, record.RunID, record.ArtifactType)),
		fieldRunID:          stringValue(record.RunID),
		fieldArtifactType:   stringValue(record.ArtifactType),
		fieldS3Key:          stringValue(record.S3Key),
		fieldPassed:         &types.AttributeValueMemberBOOL{Value: record.Passed},
		fieldTotalSamples:   intValue(int64(record.TotalSamples)),
		fieldFailingWindows: intValue(int64(record.FailingWindows)),
		fieldP95MaxMs:       &types.AttributeValueMemberN{Value: strconv.FormatFloat(record.P95MaxMs, 'f', -1, 64)},
		fieldSizeBytes:      intValue(record.SizeBytes),
		fieldAnalyzedAt:     intValue(analyzedAt.UnixMilli()),
	}
	for name, value := range map[string]string{
		fieldContentHash: record.ContentHash,
		fieldURL:         record.URL,
		fieldContentType: record.ContentType,
	} {
		if value != "" {
			item[name] = stringValue(value)
		}
	}
	if !record.ExpiresAt.IsZero() {
		item[fieldExpiresAt] = intValue(record.ExpiresAt.Unix())
	}
	return item, nil
}

func decodeArtifact(item map[string]types.AttributeValue) (port.ReportMetadata, error) {
	d := itemDecoder{item: item}
	record := port.ReportMetadata{
		SourceFile:     d.text(keySource, true),
		RunID:          d.text(fieldRunID, true),
		ArtifactType:   d.text(fieldArtifactType, true),
		S3Key:          d.text(fieldS3Key, true),
		ContentHash:    d.text(fieldContentHash, false),
		URL:            d.text(fieldURL, false),
		ContentType:    d.text(fieldContentType, false),
		SizeBytes:      d.integer(fieldSizeBytes),
		Passed:         d.flag(fieldPassed),
		TotalSamples:   int(d.integer(fieldTotalSamples)),
		FailingWindows: int(d.integer(fieldFailingWindows)),
		P95MaxMs:       d.decimal(fieldP95MaxMs),
		AnalyzedAt:     time.UnixMilli(d.integer(fieldAnalyzedAt)).UTC(),
	}
	if expires := d.integer(fieldExpiresAt); expires > 0 {
		record.ExpiresAt = time.Unix(expires, 0).UTC()
	}
	if d.err != nil {
		return port.ReportMetadata{}, fmt.Errorf("decode %s item: %w", record.RunID, d.err)
	}
	return record, nil
}

// itemDecoder keeps the first decoding error so call sites stay flat.
type itemDecoder struct {
	item map[string]types.AttributeValue
	err  error
}

func (d *itemDecoder) fail(name, reason string) {
	if d.err == nil {
		d.err = fmt.Errorf("attribute %s: %s", name, reason)
	}
}

func (d *itemDecoder) text(name string, required bool) string {
	value, ok := d.item[name].(*types.AttributeValueMemberS)
	if !ok || value.Value == "" {
		if required {
			d.fail(name, "missing string")
		}
		return ""
	}
	return value.Value
}

func (d *itemDecoder) number(name string) (string, bool) {
	raw, present := d.item[name]
	if !present {
		return "", false
	}
	value, ok := raw.(*types.AttributeValueMemberN)
	if !ok {
		d.fail(name, "not a number")
		return "", false
	}
	return value.Value, true
}

func (d *itemDecoder) integer(name string) int64 {
	raw, ok := d.number(name)
	if !ok {
		return 0
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		d.fail(name, err.Error())
	}
	return n
}

func (d *itemDecoder) decimal(name string) float64 {
	raw, ok := d.number(name)
	if !ok {
		return 0
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		d.fail(name, err.Error())
	}
	return f
}

func (d *itemDecoder) flag(name string) bool {
	value, ok := d.item[name].(*types.AttributeValueMemberBOOL)
	return ok && value.Value
}

func stringValue(s string) types.AttributeValue {
	return &types.AttributeValueMemberS{Value: s}
}

func intValue(n int64) types.AttributeValue {
	return &types.AttributeValueMemberN{Value: strconv.FormatInt(n, 10)}
}
