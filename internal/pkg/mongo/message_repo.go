package mongo

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var ErrNotFound = errors.New("message not found")

type MessageRepo interface {
	SaveMessage(ctx context.Context, msg *Message) error
	GetMessage(ctx context.Context, id string) (*Message, error)
	GetHistory(ctx context.Context, roomKey string, lastSeq uint64, pageSize int) ([]*Message, error)
	// MarkRead 将 userID 写入房间内所有未包含它的消息的 read_by 集合，返回更新条数
	MarkRead(ctx context.Context, roomKey string, userID uint64) (int64, error)
	// HideForUser 仅对请求者隐藏（删除模式 me）
	HideForUser(ctx context.Context, id string, userID uint64) error
	// Tombstone 对所有人撤回：内容替换为占位符，类型保留，幂等
	Tombstone(ctx context.Context, id string, placeholder string) error
}

type messageRepoImpl struct {
	col *mongo.Collection
}

func NewMessageRepo(db *mongo.Database) MessageRepo {
	return &messageRepoImpl{
		col: db.Collection("message"),
	}
}

// SaveMessage 将消息存入 MongoDB
func (s *messageRepoImpl) SaveMessage(ctx context.Context, msg *Message) error {
	if msg.ID == "" {
		msg.ID = primitive.NewObjectID().Hex()
	}
	_, err := s.col.InsertOne(ctx, msg)
	return err
}

func (s *messageRepoImpl) GetMessage(ctx context.Context, id string) (*Message, error) {
	var msg Message
	err := s.col.FindOne(ctx, bson.M{"_id": id}).Decode(&msg)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

// GetHistory 历史消息查询逻辑
// lastSeq 为当前页面最旧一条消息的序号。如果是第一页，传 0。
func (s *messageRepoImpl) GetHistory(ctx context.Context, roomKey string, lastSeq uint64, pageSize int) ([]*Message, error) {
	filter := bson.M{"room_key": roomKey}

	// 游标过滤：拉取比当前最旧序号更小的消息
	if lastSeq > 0 {
		filter["seq"] = bson.M{"$lt": lastSeq}
	}

	findOptions := options.Find().
		SetSort(bson.D{{Key: "seq", Value: -1}}).
		SetLimit(int64(pageSize))

	cursor, err := s.col.Find(ctx, filter, findOptions)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = cursor.Close(ctx)
	}()

	var messages []*Message
	if err := cursor.All(ctx, &messages); err != nil {
		return nil, err
	}

	return messages, nil
}

// MarkRead $addToSet 保证集合只增不减且天然幂等，重放不会重复计数
func (s *messageRepoImpl) MarkRead(ctx context.Context, roomKey string, userID uint64) (int64, error) {
	res, err := s.col.UpdateMany(ctx,
		bson.M{"room_key": roomKey, "read_by": bson.M{"$ne": userID}},
		bson.M{"$addToSet": bson.M{"read_by": userID}},
	)
	if err != nil {
		return 0, err
	}
	return res.ModifiedCount, nil
}

// HideForUser 其他成员的视图不受影响
func (s *messageRepoImpl) HideForUser(ctx context.Context, id string, userID uint64) error {
	res, err := s.col.UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{"$addToSet": bson.M{"deleted_for": userID}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// Tombstone 对已撤回消息重放是无操作而不是错误
func (s *messageRepoImpl) Tombstone(ctx context.Context, id string, placeholder string) error {
	res, err := s.col.UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{"deleted": true, "content": placeholder, "attachments": nil}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}
