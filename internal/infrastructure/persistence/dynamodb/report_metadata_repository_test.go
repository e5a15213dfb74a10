package dynamodb

import (
	"context"
	"encoding/base64"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/dreschagin/latency-validator/internal/application/port"
)

type fakeDynamo struct {
	queries []*dynamodb.QueryInput
	output  *dynamodb.QueryOutput

	writes      []*dynamodb.BatchWriteItemInput
	unprocessed []map[string][]types.WriteRequest
	err         error
}

func (f *fakeDynamo) Query(
	_ context.Context,
	params *dynamodb.QueryInput,
	_ ...func(*dynamodb.Options),
) (*dynamodb.QueryOutput, error) {
	f.queries = append(f.queries, params)
	if f.err != nil {
		return nil, f.err
	}
	if f.output == nil {
		return &dynamodb.QueryOutput{}, nil
	}
	return f.output, nil
}

func (f *fakeDynamo) BatchWriteItem(
	_ context.Context,
	params *dynamodb.BatchWriteItemInput,
	_ ...func(*dynamodb.Options),
) (*dynamodb.BatchWriteItemOutput, error) {
	f.writes = append(f.writes, params)
	if f.err != nil {
		return nil, f.err
	}
	out := &dynamodb.BatchWriteItemOutput{}
	if len(f.unprocessed) > 0 {
		out.UnprocessedItems = f.unprocessed[0]
		f.unprocessed = f.unprocessed[1:]
	}
	return out, nil
}

func failedRunArtifact() port.ReportMetadata {
	analyzedAt := time.Date(2026, 1, 13, 14, 30, 0, 0, time.UTC)
	return port.ReportMetadata{
		SourceFile:     "logs/latency_validation_20260113.txt",
		RunID:          "2f1c9a4e-6b1d-4c3e-9d7a-1a2b3c4d5e6f",
		ContentHash:    "9f86d081884c7d659a2feaa0c55ad015a3bf4f1b2b0b822cd15d6c15b0f00a08",
		ArtifactType:   "report",
		S3Key:          "latency-reports/latency_validation_20260113.txt/2026/01/13/20260113T143000Z_2f1c9a4e_report.txt",
		URL:            "https://example.com/report.txt",
		ContentType:    "text/plain; charset=utf-8",
		SizeBytes:      2048,
		Passed:         false,
		TotalSamples:   216000,
		FailingWindows: 3,
		P95MaxMs:       71.5,
		AnalyzedAt:     analyzedAt,
		ExpiresAt:      analyzedAt.Add(30 * 24 * time.Hour),
	}
}

func newTestRepository(client dynamoAPI) *ReportMetadataRepository {
	repo := newReportMetadataRepository(client, "latency-reports", true)
	repo.backoff = time.Millisecond
	return repo
}

func TestEncodeDecodeArtifact(t *testing.T) {
	record := failedRunArtifact()

	item, err := encodeArtifact(record)
	if err != nil {
		t.Fatalf("encodeArtifact() error = %v", err)
	}

	if got := item[keySource].(*types.AttributeValueMemberS).Value; got != record.SourceFile {
		t.Errorf("partition key = %s", got)
	}
	wantSort := "1768314600000#2f1c9a4e-6b1d-4c3e-9d7a-1a2b3c4d5e6f#report"
	if got := item[keyArtifact].(*types.AttributeValueMemberS).Value; got != wantSort {
		t.Errorf("sort key = %s, want %s", got, wantSort)
	}
	if passed := item[fieldPassed].(*types.AttributeValueMemberBOOL).Value; passed {
		t.Error("passed attribute must be false")
	}
	if got := item[fieldTotalSamples].(*types.AttributeValueMemberN).Value; got != "216000" {
		t.Errorf("total_samples = %s", got)
	}
	if got := item[fieldExpiresAt].(*types.AttributeValueMemberN).Value; got != "1770906600" {
		t.Errorf("expires_at = %s, want epoch seconds", got)
	}

	back, err := decodeArtifact(item)
	if err != nil {
		t.Fatalf("decodeArtifact() error = %v", err)
	}
	if !back.AnalyzedAt.Equal(record.AnalyzedAt) || !back.ExpiresAt.Equal(record.ExpiresAt) {
		t.Errorf("times = %v/%v", back.AnalyzedAt, back.ExpiresAt)
	}
	back.AnalyzedAt, back.ExpiresAt = record.AnalyzedAt, record.ExpiresAt
	if back != record {
		t.Errorf("decodeArtifact() = %+v, want %+v", back, record)
	}
}

func TestEncodeArtifact_Validation(t *testing.T) {
	base := failedRunArtifact()

	tests := []struct {
		name    string
		mutate  func(*port.ReportMetadata)
		wantErr string
	}{
		{"missing source", func(r *port.ReportMetadata) { r.SourceFile = " " }, "source_file is required"},
		{"missing run", func(r *port.ReportMetadata) { r.RunID = "" }, "run_id is required"},
		{"missing type", func(r *port.ReportMetadata) { r.ArtifactType = "" }, "artifact_type is required"},
		{"missing key", func(r *port.ReportMetadata) { r.S3Key = "" }, "s3_key is required"},
		{"separator in run id", func(r *port.ReportMetadata) { r.RunID = "a#b" }, "must not contain"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			record := base
			tt.mutate(&record)
			_, err := encodeArtifact(record)
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("encodeArtifact() error = %v, want %q", err, tt.wantErr)
			}
		})
	}
}

func TestDecodeArtifact_RejectsBrokenItem(t *testing.T) {
	item, err := encodeArtifact(failedRunArtifact())
	if err != nil {
		t.Fatalf("encodeArtifact() error = %v", err)
	}
	item[fieldTotalSamples] = &types.AttributeValueMemberS{Value: "many"}

	if _, err := decodeArtifact(item); err == nil || !strings.Contains(err.Error(), fieldTotalSamples) {
		t.Fatalf("decodeArtifact() error = %v, want total_samples failure", err)
	}
}

func TestPutBatch_ChunksAndRetriesUnprocessed(t *testing.T) {
	records := make([]port.ReportMetadata, 30)
	for i := range records {
		records[i] = failedRunArtifact()
		records[i].RunID = strings.Repeat("r", i+1)
	}

	leftover := map[string][]types.WriteRequest{"latency-reports": {{PutRequest: &types.PutRequest{}}}}
	client := &fakeDynamo{unprocessed: []map[string][]types.WriteRequest{leftover}}

	if err := newTestRepository(client).PutBatch(context.Background(), records); err != nil {
		t.Fatalf("PutBatch() error = %v", err)
	}

	if len(client.writes) != 3 {
		t.Fatalf("BatchWriteItem calls = %d, want 3 (25, retry, 5)", len(client.writes))
	}
	if n := len(client.writes[0].RequestItems["latency-reports"]); n != 25 {
		t.Errorf("first batch = %d items, want 25", n)
	}
	if n := len(client.writes[1].RequestItems["latency-reports"]); n != 1 {
		t.Errorf("retry batch = %d items, want 1", n)
	}
	if n := len(client.writes[2].RequestItems["latency-reports"]); n != 5 {
		t.Errorf("last batch = %d items, want 5", n)
	}
}

func TestPutBatch_GivesUpAfterAttempts(t *testing.T) {
	leftover := map[string][]types.WriteRequest{"latency-reports": {{PutRequest: &types.PutRequest{}}}}
	client := &fakeDynamo{}
	for i := 0; i < batchAttempts; i++ {
		client.unprocessed = append(client.unprocessed, leftover)
	}

	err := newTestRepository(client).PutBatch(context.Background(), []port.ReportMetadata{failedRunArtifact()})
	if err == nil || !strings.Contains(err.Error(), "unprocessed") {
		t.Fatalf("PutBatch() error = %v", err)
	}
	if len(client.writes) != batchAttempts {
		t.Errorf("attempts = %d, want %d", len(client.writes), batchAttempts)
	}
}

func TestListBySource_BuildsQuery(t *testing.T) {
	item, err := encodeArtifact(failedRunArtifact())
	if err != nil {
		t.Fatalf("encodeArtifact() error = %v", err)
	}
	lastKey := "1768314600000#2f1c9a4e-6b1d-4c3e-9d7a-1a2b3c4d5e6f#report"
	client := &fakeDynamo{output: &dynamodb.QueryOutput{
		Items: []map[string]types.AttributeValue{item},
		LastEvaluatedKey: map[string]types.AttributeValue{
			keySource:   stringValue("logs/latency_validation_20260113.txt"),
			keyArtifact: stringValue(lastKey),
		},
	}}

	since := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	page, err := newTestRepository(client).ListBySource(context.Background(), port.ReportListQuery{
		SourceFile:   "logs/latency_validation_20260113.txt",
		Limit:        500,
		ArtifactType: "report",
		OnlyFailed:   true,
		From:         since,
	})
	if err != nil {
		t.Fatalf("ListBySource() error = %v", err)
	}

	input := client.queries[0]
	if aws.ToInt32(input.Limit) != maxPageSize || aws.ToBool(input.ScanIndexForward) || !aws.ToBool(input.ConsistentRead) {
		t.Errorf("limit/order/consistency = %d/%v/%v", aws.ToInt32(input.Limit), aws.ToBool(input.ScanIndexForward), aws.ToBool(input.ConsistentRead))
	}
	if got := aws.ToString(input.KeyConditionExpression); got != "#src = :src AND #ak BETWEEN :lower AND :upper" {
		t.Errorf("key condition = %s", got)
	}
	if got := input.ExpressionAttributeValues[":lower"].(*types.AttributeValueMemberS).Value; got != "1767225600000#" {
		t.Errorf("lower bound = %s", got)
	}
	if got := aws.ToString(input.FilterExpression); got != "#type = :type AND #passed = :failed" {
		t.Errorf("filter = %s", got)
	}

	if len(page.Items) != 1 || page.Items[0].FailingWindows != 3 || page.Items[0].Passed {
		t.Errorf("items = %+v", page.Items)
	}
	decoded, err := decodeCursor(page.NextCursor)
	if err != nil || decoded != lastKey {
		t.Errorf("cursor decodes to %q, %v", decoded, err)
	}
}

func TestListBySource_ResumesFromCursor(t *testing.T) {
	client := &fakeDynamo{}
	lastKey := "1768314600000#run-1#samples"
	cursor := base64.RawURLEncoding.EncodeToString([]byte(lastKey))

	page, err := newTestRepository(client).ListBySource(context.Background(), port.ReportListQuery{
		SourceFile: "app.log",
		Cursor:     cursor,
	})
	if err != nil {
		t.Fatalf("ListBySource() error = %v", err)
	}
	if page.NextCursor != "" {
		t.Errorf("NextCursor = %q, want empty on last page", page.NextCursor)
	}

	input := client.queries[0]
	if input.FilterExpression != nil {
		t.Errorf("unexpected filter %s", aws.ToString(input.FilterExpression))
	}
	if aws.ToInt32(input.Limit) != defaultPageSize {
		t.Errorf("limit = %d", aws.ToInt32(input.Limit))
	}
	start := input.ExclusiveStartKey
	if start[keySource].(*types.AttributeValueMemberS).Value != "app.log" ||
		start[keyArtifact].(*types.AttributeValueMemberS).Value != lastKey {
		t.Errorf("ExclusiveStartKey = %+v", start)
	}
}

func TestListBySource_Errors(t *testing.T) {
	tests := []struct {
		name    string
		client  *fakeDynamo
		query   port.ReportListQuery
		wantErr error
		wantMsg string
	}{
		{"missing source", &fakeDynamo{}, port.ReportListQuery{}, nil, "source_file is required"},
		{"garbage cursor", &fakeDynamo{}, port.ReportListQuery{SourceFile: "a.log", Cursor: "!!!"}, ErrInvalidCursor, ""},
		{
			"cursor of another table layout",
			&fakeDynamo{},
			port.ReportListQuery{SourceFile: "a.log", Cursor: base64.RawURLEncoding.EncodeToString([]byte("TS#1#RUN#x"))},
			ErrInvalidCursor, "",
		},
		{"query failure", &fakeDynamo{err: errors.New("throttled")}, port.ReportListQuery{SourceFile: "a.log"}, nil, "throttled"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := newTestRepository(tt.client).ListBySource(context.Background(), tt.query)
			if err == nil {
				t.Fatal("ListBySource() error = nil")
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("error = %v, want %v", err, tt.wantErr)
			}
			if tt.wantMsg != "" && !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("error = %v, want %q", err, tt.wantMsg)
			}
		})
	}
}

func TestTimeBounds(t *testing.T) {
	to := time.Date(2026, 1, 13, 0, 0, 0, 0, time.UTC)

	lower, upper := timeBounds(time.Time{}, to)
	if lower != "0000000000000#" || upper != "1768262400000#~" {
		t.Errorf("bounds = %s .. %s", lower, upper)
	}
}
