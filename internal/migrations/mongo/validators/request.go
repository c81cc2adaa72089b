package validators

import "go.mongodb.org/mongo-driver/bson"

var RequestValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{
			"_id",
			"patient_id",
			"session_type",
			"preferred_time_slots",
			"location",
			"status",
			"created_at",
			"expires_at",
			"updated_at",
			"version",
		},
		"additionalProperties": true,

		"properties": bson.M{
			"_id": bson.M{
				"bsonType":  "string",
				"minLength": 36,
				"maxLength": 36,
			},

			"patient_id": bson.M{
				"bsonType":  "string",
				"minLength": 1,
				"maxLength": 128,
			},

			"session_type": bson.M{
				"bsonType":  "string",
				"minLength": 2,
				"maxLength": 100,
			},

			"preferred_time_slots": bson.M{
				"bsonType": "array",
				"minItems": 1,
				"maxItems": 24,
				"items": bson.M{
					"bsonType":  "string",
					"minLength": 1,
					"maxLength": 64,
				},
			},

			"location": bson.M{
				"bsonType":  "string",
				"minLength": 2,
				"maxLength": 200,
			},

			"notes": bson.M{
				"bsonType":  "string",
				"maxLength": 4000,
			},

			"status": bson.M{
				"bsonType": "string",
				"enum": []string{
					"sent",
					"searching",
					"accepted",
					"cancelled",
					"expired",
					"completed",
				},
			},

			"claimed_by": bson.M{
				"bsonType":  "string",
				"maxLength": 128,
			},

			"accepted_time_slot": bson.M{
				"bsonType":  "string",
				"minLength": 1,
				"maxLength": 64,
			},

			"created_at": bson.M{
				"bsonType": "date",
			},

			"expires_at": bson.M{
				"bsonType": "date",
			},

			"updated_at": bson.M{
				"bsonType": "date",
			},

			"completed_at": bson.M{
				"bsonType": "date",
			},

			"version": bson.M{
				"bsonType": bson.A{"int", "long"},
				"minimum":  1,
			},
		},
	},
}
