package dynamo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"

	"github.com/joseph-ayodele/extract-annotator/internal/common"
	"github.com/joseph-ayodele/extract-annotator/internal/entity"
	"github.com/joseph-ayodele/extract-annotator/internal/repository"
)

// DynamoDBClient defines the DynamoDB operations the repository uses.
type DynamoDBClient interface {
	Query(ctx context.Context, input *dynamodb.QueryInput, opts ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	PutItem(ctx context.Context, input *dynamodb.PutItemInput, opts ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	UpdateItem(ctx context.Context, input *dynamodb.UpdateItemInput, opts ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	DeleteItem(ctx context.Context, input *dynamodb.DeleteItemInput, opts ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
}

// SpanRepository stores spans in a single DynamoDB table. Items are keyed by
// file (pk) and view plus span id (sk). Ids it mints embed their view; the
// span-id GSI resolves any other id.
type SpanRepository struct {
	client    DynamoDBClient
	tableName string
	logger    *slog.Logger
	now       func() time.Time
}

var _ repository.SpanRepository = (*SpanRepository)(nil)

func NewSpanRepository(client DynamoDBClient, tableName string, logger *slog.Logger) *SpanRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &SpanRepository{
		client:    client,
		tableName: tableName,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (r *SpanRepository) List(ctx context.Context, vc entity.ViewContext) ([]*entity.PersistedSpan, error) {
	spans, err := r.query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(r.tableName),
		KeyConditionExpression: aws.String("pk = :pk AND begins_with(sk, :prefix)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk":     &types.AttributeValueMemberS{Value: filePK(vc.FileID)},
			":prefix": &types.AttributeValueMemberS{Value: viewPrefixSK(vc)},
		},
	})
	if err != nil {
		r.logger.Error("failed to list spans", "view", vc.Key(), "error", err)
		return nil, err
	}
	sortSpans(spans)
	return spans, nil
}

func (r *SpanRepository) ListByFile(ctx context.Context, fileID uuid.UUID) ([]*entity.PersistedSpan, error) {
	spans, err := r.query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(r.tableName),
		KeyConditionExpression: aws.String("pk = :pk AND begins_with(sk, :prefix)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk":     &types.AttributeValueMemberS{Value: filePK(fileID)},
			":prefix": &types.AttributeValueMemberS{Value: viewPrefix},
		},
	})
	if err != nil {
		r.logger.Error("failed to list spans by file", "file_id", fileID, "error", err)
		return nil, err
	}
	sortSpans(spans)
	return spans, nil
}

func (r *SpanRepository) Get(ctx context.Context, id string) (*entity.PersistedSpan, error) {
	input := &dynamodb.QueryInput{
		TableName:              aws.String(r.tableName),
		IndexName:              aws.String(SpanIDIndex),
		KeyConditionExpression: aws.String("gsi1pk = :id"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":id": &types.AttributeValueMemberS{Value: spanGSIKey(id)},
		},
		Limit: aws.Int32(1),
	}
	if vc, ok := viewFromSpanID(id); ok {
		input = &dynamodb.QueryInput{
			TableName:              aws.String(r.tableName),
			KeyConditionExpression: aws.String("pk = :pk AND sk = :sk"),
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":pk": &types.AttributeValueMemberS{Value: filePK(vc.FileID)},
				":sk": &types.AttributeValueMemberS{Value: spanSK(vc, id)},
			},
			ConsistentRead: aws.Bool(true),
		}
	}
	spans, err := r.query(ctx, input)
	if err != nil {
		r.logger.Error("failed to get span", "span_id", id, "error", err)
		return nil, err
	}
	if len(spans) == 0 {
		return nil, fmt.Errorf("span %s: %w", id, common.ErrNotFound)
	}
	return spans[0], nil
}

// locate returns the view a span is stored under. Ids minted by Create carry it;
// other ids go through the span-id index, which is eventually consistent, so a
// miss there is reported as unavailable rather than not found.
func (r *SpanRepository) locate(ctx context.Context, id string) (entity.ViewContext, error) {
	if vc, ok := viewFromSpanID(id); ok {
		return vc, nil
	}
	sp, err := r.Get(ctx, id)
	if errors.Is(err, common.ErrNotFound) {
		r.logger.Warn("span id index has no entry", "span_id", id)
		return entity.ViewContext{}, common.NewAppError(common.CodeUnavailable,
			fmt.Sprintf("span %s is not indexed yet, retry", id), common.ErrUnavailable)
	}
	if err != nil {
		return entity.ViewContext{}, err
	}
	return sp.Context, nil
}

func (r *SpanRepository) Create(ctx context.Context, req *repository.CreateSpanRequest) (*entity.PersistedSpan, error) {
	if req.Start < 0 || req.End < 0 || req.Context.Segment < 0 {
		return nil, fmt.Errorf("%w: negative offset or segment", common.ErrValidation)
	}
	id := req.ID
	if id == "" {
		id = newSpanID(req.Context)
	}
	now := r.now()
	sp := &entity.PersistedSpan{
		ID:        id,
		Context:   req.Context,
		Start:     req.Start,
		End:       req.End,
		Comment:   req.Comment,
		FullText:  req.FullText,
		CreatedAt: now,
		UpdatedAt: now,
	}
	_, err := r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(r.tableName),
		Item:                marshalSpan(sp),
		ConditionExpression: aws.String("attribute_not_exists(pk)"),
	})
	if err != nil {
		r.logger.Error("failed to create span", "view", req.Context.Key(), "error", err)
		return nil, err
	}
	r.logger.Debug("span created", "span_id", id, "view", req.Context.Key())
	return sp, nil
}

func (r *SpanRepository) Delete(ctx context.Context, id string) (bool, error) {
	vc, err := r.locate(ctx, id)
	if err != nil {
		return false, err
	}
	_, err = r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName:           aws.String(r.tableName),
		Key:                 spanKey(vc, id),
		ConditionExpression: aws.String("attribute_exists(pk)"),
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return false, nil
		}
		r.logger.Error("failed to delete span", "span_id", id, "error", err)
		return false, err
	}
	return true, nil
}

func (r *SpanRepository) UpdateAnchor(ctx context.Context, id string, start, end int, fullText string) error {
	if start < 0 || end < 0 {
		return fmt.Errorf("%w: negative offset", common.ErrValidation)
	}
	vc, err := r.locate(ctx, id)
	if err != nil {
		return err
	}
	_, err = r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:        aws.String(r.tableName),
		Key:              spanKey(vc, id),
		UpdateExpression: aws.String("SET startOffset = :start, endOffset = :end, fullText = :text, updatedAt = :updatedAt"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":start":     &types.AttributeValueMemberN{Value: strconv.Itoa(start)},
			":end":       &types.AttributeValueMemberN{Value: strconv.Itoa(end)},
			":text":      &types.AttributeValueMemberS{Value: fullText},
			":updatedAt": &types.AttributeValueMemberS{Value: r.now().Format(time.RFC3339Nano)},
		},
		ConditionExpression: aws.String("attribute_exists(pk)"),
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return fmt.Errorf("span %s: %w", id, common.ErrNotFound)
		}
		r.logger.Error("failed to update span anchor", "span_id", id, "error", err)
		return err
	}
	return nil
}

// ListSpans, CreateSpan and DeleteSpan let a view store talk to the table
// directly, without the annotation service in between.

func (r *SpanRepository) ListSpans(ctx context.Context, vc entity.ViewContext) ([]entity.PersistedSpan, error) {
	spans, err := r.List(ctx, vc)
	if err != nil {
		return nil, err
	}
	out := make([]entity.PersistedSpan, len(spans))
	for i, sp := range spans {
		out[i] = *sp
	}
	return out, nil
}

func (r *SpanRepository) CreateSpan(ctx context.Context, vc entity.ViewContext, start, end int, comment, fullText string) (string, error) {
	sp, err := r.Create(ctx, &repository.CreateSpanRequest{
		Context:  vc,
		Start:    start,
		End:      end,
		Comment:  comment,
		FullText: fullText,
	})
	if err != nil {
		return "", err
	}
	return sp.ID, nil
}

func (r *SpanRepository) DeleteSpan(ctx context.Context, id string) error {
	_, err := r.Delete(ctx, id)
	return err
}

func (r *SpanRepository) query(ctx context.Context, input *dynamodb.QueryInput) ([]*entity.PersistedSpan, error) {
	var spans []*entity.PersistedSpan
	for {
		output, err := r.client.Query(ctx, input)
		if err != nil {
			return nil, err
		}
		for _, item := range output.Items {
			spans = append(spans, unmarshalSpan(item))
		}
		if len(output.LastEvaluatedKey) == 0 || (input.Limit != nil && len(spans) >= int(*input.Limit)) {
			return spans, nil
		}
		input.ExclusiveStartKey = output.LastEvaluatedKey
	}
}

func sortSpans(spans []*entity.PersistedSpan) {
	sort.SliceStable(spans, func(i, j int) bool {
		a, b := spans[i], spans[j]
		if a.Context.JobID != b.Context.JobID {
			return a.Context.JobID.String() < b.Context.JobID.String()
		}
		if a.Context.Segment != b.Context.Segment {
			return a.Context.Segment < b.Context.Segment
		}
		if a.Start != b.Start {
			return a.Start < b.Start
		}
		return a.CreatedAt.Before(b.CreatedAt)
	})
}

func spanKey(vc entity.ViewContext, id string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"pk": &types.AttributeValueMemberS{Value: filePK(vc.FileID)},
		"sk": &types.AttributeValueMemberS{Value: spanSK(vc, id)},
	}
}

func marshalSpan(sp *entity.PersistedSpan) map[string]types.AttributeValue {
	item := spanKey(sp.Context, sp.ID)
	item["gsi1pk"] = &types.AttributeValueMemberS{Value: spanGSIKey(sp.ID)}
	item["spanId"] = &types.AttributeValueMemberS{Value: sp.ID}
	item["fileId"] = &types.AttributeValueMemberS{Value: sp.Context.FileID.String()}
	item["jobId"] = &types.AttributeValueMemberS{Value: sp.Context.JobID.String()}
	item["segment"] = &types.AttributeValueMemberN{Value: strconv.Itoa(sp.Context.Segment)}
	item["startOffset"] = &types.AttributeValueMemberN{Value: strconv.Itoa(sp.Start)}
	item["endOffset"] = &types.AttributeValueMemberN{Value: strconv.Itoa(sp.End)}
	item["comment"] = &types.AttributeValueMemberS{Value: sp.Comment}
	item["fullText"] = &types.AttributeValueMemberS{Value: sp.FullText}
	item["createdAt"] = &types.AttributeValueMemberS{Value: sp.CreatedAt.UTC().Format(time.RFC3339Nano)}
	item["updatedAt"] = &types.AttributeValueMemberS{Value: sp.UpdatedAt.UTC().Format(time.RFC3339Nano)}
	return item
}

func unmarshalSpan(item map[string]types.AttributeValue) *entity.PersistedSpan {
	sp := &entity.PersistedSpan{}

	if v, ok := item["spanId"].(*types.AttributeValueMemberS); ok {
		sp.ID = v.Value
	}
	if v, ok := item["fileId"].(*types.AttributeValueMemberS); ok {
		sp.Context.FileID, _ = uuid.Parse(v.Value)
	}
	if v, ok := item["jobId"].(*types.AttributeValueMemberS); ok {
		sp.Context.JobID, _ = uuid.Parse(v.Value)
	}
	sp.Context.Segment = numberAttr(item, "segment")
	sp.Start = numberAttr(item, "startOffset")
	sp.End = numberAttr(item, "endOffset")
	if v, ok := item["comment"].(*types.AttributeValueMemberS); ok {
		sp.Comment = v.Value
	}
	if v, ok := item["fullText"].(*types.AttributeValueMemberS); ok {
		sp.FullText = v.Value
	}
	if v, ok := item["createdAt"].(*types.AttributeValueMemberS); ok {
		if t, err := time.Parse(time.RFC3339Nano, v.Value); err == nil {
			sp.CreatedAt = t
		}
	}
	if v, ok := item["updatedAt"].(*types.AttributeValueMemberS); ok {
		if t, err := time.Parse(time.RFC3339Nano, v.Value); err == nil {
			sp.UpdatedAt = t
		}
	}
	return sp
}

func numberAttr(item map[string]types.AttributeValue, name string) int {
	if v, ok := item[name].(*types.AttributeValueMemberN); ok {
		if n, err := strconv.Atoi(v.Value); err == nil {
			return n
		}
	}
	return 0
}
