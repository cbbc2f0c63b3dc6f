package model

import "go.mongodb.org/mongo-driver/bson/primitive"

const (
	RiskLow  = "LOW"
	RiskMid  = "MID"
	RiskHigh = "HIGH"
)

// RiskScore maps a risk level to the numeric form the dashboard expects.
func RiskScore(level string) int {
	switch level {
	case RiskHigh:
		return 2
	case RiskMid:
		return 1
	default:
		return 0
	}
}

type User struct {
	ID               primitive.ObjectID `bson:"_id,omitempty"`
	Nickname         string             `bson:"nickname"`
	RiskLevel        string             `bson:"risk_level"`
	LinkedCenterCode string             `bson:"linked_center_code,omitempty"`
}
