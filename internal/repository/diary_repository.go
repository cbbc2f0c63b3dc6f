package repository

import (
	"context"
	"fmt"
	"time"

	"maumon/internal/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type DiaryRepository struct {
	col *mongo.Collection
}

func NewDiaryRepository(col *mongo.Collection) *DiaryRepository {
	return &DiaryRepository{col: col}
}

// userRefFilter matches a diary's user_id in both historical forms: the raw
// ObjectID and its hex string. Normalization happens at read time only.
func userRefFilter(userID string) bson.M {
	if oid, err := primitive.ObjectIDFromHex(userID); err == nil {
		return bson.M{"user_id": bson.M{"$in": bson.A{oid, userID}}}
	}
	return bson.M{"user_id": userID}
}

func (r *DiaryRepository) Insert(ctx context.Context, d *model.Diary) error {
	d.CreatedAt = time.Now().UTC()
	d.ThreadStatus = model.StatusPending

	res, err := r.col.InsertOne(ctx, d)
	if err != nil {
		return err
	}
	if oid, ok := res.InsertedID.(primitive.ObjectID); ok {
		d.ID = oid
	}
	return nil
}

func (r *DiaryRepository) GetByID(ctx context.Context, id string) (*model.Diary, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, nil
	}

	var d model.Diary
	err = r.col.FindOne(ctx, bson.M{"_id": oid}).Decode(&d)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// TryClaim transitions a diary from pending to running. Exactly one caller
// wins for a given diary; losers get false and must drop the job.
func (r *DiaryRepository) TryClaim(ctx context.Context, id string) (bool, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return false, nil
	}

	res, err := r.col.UpdateOne(ctx,
		bson.M{"_id": oid, "thread_status": model.StatusPending},
		bson.M{"$set": bson.M{
			"thread_status": model.StatusRunning,
			"running_since": time.Now().UTC(),
		}},
	)
	if err != nil {
		return false, err
	}
	return res.ModifiedCount == 1, nil
}

// Release puts a running diary back to pending so a retry can claim it.
func (r *DiaryRepository) Release(ctx context.Context, id string) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return fmt.Errorf("invalid diary id %q", id)
	}

	_, err = r.col.UpdateOne(ctx,
		bson.M{"_id": oid, "thread_status": model.StatusRunning},
		bson.M{
			"$set":   bson.M{"thread_status": model.StatusPending},
			"$unset": bson.M{"running_since": ""},
		},
	)
	return err
}

// CompleteAnalysis writes every derived field and the done status in one
// document update, so readers never observe a half-analyzed diary.
func (r *DiaryRepository) CompleteAnalysis(ctx context.Context, id string, fields model.AnalysisFields) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return fmt.Errorf("invalid diary id %q", id)
	}

	res, err := r.col.UpdateOne(ctx,
		bson.M{"_id": oid},
		bson.M{
			"$set": bson.M{
				"ai_prediction": fields.Prediction,
				"ai_analysis":   fields.Analysis,
				"ai_comment":    fields.Comment,
				"ai_advice":     fields.Advice,
				"thread_status": model.StatusDone,
				"completed_at":  time.Now().UTC(),
			},
			"$unset": bson.M{"error": "", "running_since": ""},
		},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("diary %s not found", id)
	}
	return nil
}

// MarkFailed records a terminal failure. Any previously derived fields are
// removed so a failed diary never carries stale analysis output.
func (r *DiaryRepository) MarkFailed(ctx context.Context, id string, reason string) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return fmt.Errorf("invalid diary id %q", id)
	}

	_, err = r.col.UpdateOne(ctx,
		bson.M{"_id": oid},
		bson.M{
			"$set": bson.M{
				"thread_status": model.StatusFailed,
				"error":         reason,
			},
			"$unset": bson.M{
				"ai_prediction": "",
				"ai_analysis":   "",
				"ai_comment":    "",
				"ai_advice":     "",
				"running_since": "",
				"completed_at":  "",
			},
		},
	)
	return err
}

// ListRecentByUser returns the user's newest analyzed diaries, newest first.
func (r *DiaryRepository) ListRecentByUser(ctx context.Context, userID string, limit int) ([]model.Diary, error) {
	filter := userRefFilter(userID)
	filter["thread_status"] = model.StatusDone

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetLimit(int64(limit))

	cursor, err := r.col.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var diaries []model.Diary
	if err := cursor.All(ctx, &diaries); err != nil {
		return nil, err
	}
	return diaries, nil
}

func (r *DiaryRepository) ListByUser(ctx context.Context, userID string, limit, offset int) ([]model.Diary, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetLimit(int64(limit)).
		SetSkip(int64(offset))

	cursor, err := r.col.Find(ctx, userRefFilter(userID), opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var diaries []model.Diary
	if err := cursor.All(ctx, &diaries); err != nil {
		return nil, err
	}
	return diaries, nil
}

func (r *DiaryRepository) CountByUser(ctx context.Context, userID string) (int, error) {
	n, err := r.col.CountDocuments(ctx, userRefFilter(userID))
	return int(n), err
}

// ReclaimStale resets diaries stuck in running longer than olderThan back to
// pending and returns their ids for re-enqueueing. The reset is conditional
// per document, so concurrent sweepers cannot double-reclaim.
func (r *DiaryRepository) ReclaimStale(ctx context.Context, olderThan time.Duration) ([]string, error) {
	cutoff := time.Now().UTC().Add(-olderThan)
	staleFilter := bson.M{
		"thread_status": model.StatusRunning,
		"running_since": bson.M{"$lt": cutoff},
	}

	cursor, err := r.col.Find(ctx, staleFilter, options.Find().SetProjection(bson.M{"_id": 1}))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var stale []struct {
		ID primitive.ObjectID `bson:"_id"`
	}
	if err := cursor.All(ctx, &stale); err != nil {
		return nil, err
	}

	var reclaimed []string
	for _, doc := range stale {
		res, err := r.col.UpdateOne(ctx,
			bson.M{
				"_id":           doc.ID,
				"thread_status": model.StatusRunning,
				"running_since": bson.M{"$lt": cutoff},
			},
			bson.M{
				"$set":   bson.M{"thread_status": model.StatusPending},
				"$unset": bson.M{"running_since": ""},
			},
		)
		if err != nil {
			return reclaimed, err
		}
		if res.ModifiedCount == 1 {
			reclaimed = append(reclaimed, doc.ID.Hex())
		}
	}
	return reclaimed, nil
}
