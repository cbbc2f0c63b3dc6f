package repository

import (
	"context"

	"maumon/internal/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

type UserRepository struct {
	col *mongo.Collection
}

func NewUserRepository(col *mongo.Collection) *UserRepository {
	return &UserRepository{col: col}
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (*model.User, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, nil
	}

	var u model.User
	err = r.col.FindOne(ctx, bson.M{"_id": oid}).Decode(&u)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// UpdateRiskLevel is a compare-and-set: it succeeds only if the stored level
// still equals from, so concurrent workers never stomp each other's update.
func (r *UserRepository) UpdateRiskLevel(ctx context.Context, id string, from, to string) (bool, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return false, nil
	}

	filter := bson.M{"_id": oid}
	if from == "" {
		// legacy users may lack the field entirely
		filter["risk_level"] = bson.M{"$in": bson.A{"", nil}}
	} else {
		filter["risk_level"] = from
	}

	res, err := r.col.UpdateOne(ctx, filter, bson.M{"$set": bson.M{"risk_level": to}})
	if err != nil {
		return false, err
	}
	return res.MatchedCount == 1, nil
}
