package validators

import "go.mongodb.org/mongo-driver/bson"

var RequestValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{
			"client_id",
			"consultant_id",
			"question",
			"status",
			"created_at",
		},
		"additionalProperties": true,

		"properties": bson.M{
			"_id": bson.M{
				"bsonType": "objectId",
			},

			"client_id": bson.M{
				"bsonType":  "string",
				"minLength": 24,
				"maxLength": 24,
			},

			"consultant_id": bson.M{
				"bsonType":  "string",
				"minLength": 24,
				"maxLength": 24,
			},

			"question": bson.M{
				"bsonType":  "string",
				"minLength": 10,
				"maxLength": 5000,
			},

			"response": bson.M{
				"bsonType":  "string",
				"maxLength": 10000,
			},

			"status": bson.M{
				"bsonType": "string",
				"enum": []string{
					"pending",
					"accepted",
					"rejected",
					"completed",
				},
			},

			"created_at": bson.M{
				"bsonType": "date",
			},

			"updated_at": bson.M{
				"bsonType": "date",
			},
		},
	},
}
