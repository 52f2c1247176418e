package mongo

import (
	"go.mongodb.org/mongo-driver/v2/bson"
	mongod "go.mongodb.org/mongo-driver/v2/mongo"

	"github.com/xraph/vigil/backend"
)

// isReserved is true when date_reserved holds a date. Missing fields and
// nulls both compare below any date.
var isReserved = bson.D{{Key: "$gt", Value: bson.A{"$date_reserved", nil}}}

var isFailed = bson.D{{Key: "$eq", Value: bson.A{"$fail", true}}}

// bucketExpr mirrors backend.Bucket: reserved 0, waiting 1, failed 2.
func bucketExpr() bson.D {
	return bson.D{{Key: "$switch", Value: bson.D{
		{Key: "branches", Value: bson.A{
			bson.D{{Key: "case", Value: isFailed}, {Key: "then", Value: 2}},
			bson.D{{Key: "case", Value: isReserved}, {Key: "then", Value: 0}},
		}},
		{Key: "default", Value: 1},
	}}}
}

func listPipeline(channel string, opts backend.ListOpts) mongod.Pipeline {
	p := mongod.Pipeline{
		{{Key: "$match", Value: bson.D{{Key: "channel", Value: channel}}}},
	}

	sort := bson.D{{Key: "time_pushed", Value: -1}, {Key: "_id", Value: -1}}
	if opts.Order == backend.OrderTriage {
		p = append(p, bson.D{{Key: "$addFields", Value: bson.D{{Key: "_bucket", Value: bucketExpr()}}}})
		sort = append(bson.D{{Key: "_bucket", Value: 1}}, sort...)
	}
	p = append(p, bson.D{{Key: "$sort", Value: sort}})

	if opts.Limit > 0 {
		p = append(p, bson.D{{Key: "$limit", Value: int64(opts.Limit)}})
	}
	return p
}

type statsRow struct {
	Total    int64 `bson:"total"`
	Reserved int64 `bson:"reserved"`
	Failed   int64 `bson:"failed"`
}

func statsPipeline(channel string) mongod.Pipeline {
	countIf := func(cond any) bson.D {
		return bson.D{{Key: "$sum", Value: bson.D{{Key: "$cond", Value: bson.A{cond, 1, 0}}}}}
	}
	return mongod.Pipeline{
		{{Key: "$match", Value: bson.D{{Key: "channel", Value: channel}}}},
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: nil},
			{Key: "total", Value: bson.D{{Key: "$sum", Value: 1}}},
			{Key: "failed", Value: countIf(isFailed)},
			{Key: "reserved", Value: countIf(bson.D{{Key: "$and", Value: bson.A{
				bson.D{{Key: "$ne", Value: bson.A{"$fail", true}}},
				isReserved,
			}}})},
		}}},
	}
}

func (r statsRow) stats() backend.Stats {
	return backend.Stats{
		Total:    r.Total,
		Waiting:  r.Total - r.Reserved - r.Failed,
		Reserved: r.Reserved,
		Failed:   r.Failed,
	}
}

// failurePipeline filters a change stream down to documents whose fail flag
// was just set.
func failurePipeline() mongod.Pipeline {
	return mongod.Pipeline{
		{{Key: "$match", Value: bson.D{
			{Key: "fullDocument.fail", Value: true},
			{Key: "$or", Value: bson.A{
				bson.D{{Key: "operationType", Value: "insert"}},
				bson.D{
					{Key: "operationType", Value: "update"},
					{Key: "updateDescription.updatedFields.fail", Value: true},
				},
			}},
		}}},
	}
}
