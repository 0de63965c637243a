package mongostore

import (
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"

	"catalog-admin/internal/shared/query"
)

// countField $count Stage 的输出字段名
const countField = "total"

// translate 把抽象管道翻译为 MongoDB 聚合管道
func translate(p query.Pipeline) (mongo.Pipeline, error) {
	out := make(mongo.Pipeline, 0, len(p))
	for _, stage := range p {
		switch st := stage.(type) {
		case query.Match:
			out = append(out, bson.D{{Key: "$match", Value: translateMatch(st)}})
		case query.Lookup:
			out = append(out, bson.D{{Key: "$lookup", Value: bson.D{
				{Key: "from", Value: st.From},
				{Key: "localField", Value: st.LocalField},
				{Key: "foreignField", Value: st.ForeignField},
				{Key: "as", Value: st.As},
			}}})
		case query.Unwind:
			out = append(out, bson.D{{Key: "$unwind", Value: bson.D{
				{Key: "path", Value: "$" + st.Path},
				{Key: "preserveNullAndEmptyArrays", Value: st.PreserveNull},
			}}})
		case query.Sort:
			dir := 1
			if st.Desc {
				dir = -1
			}
			out = append(out, bson.D{{Key: "$sort", Value: bson.D{{Key: st.Field, Value: dir}}}})
		case query.Sample:
			out = append(out, bson.D{{Key: "$sample", Value: bson.D{{Key: "size", Value: st.Size}}}})
		case query.Skip:
			out = append(out, bson.D{{Key: "$skip", Value: st.N}})
		case query.Limit:
			out = append(out, bson.D{{Key: "$limit", Value: st.N}})
		case query.Count:
			out = append(out, bson.D{{Key: "$count", Value: countField}})
		case query.Unset:
			out = append(out, bson.D{{Key: "$unset", Value: st.Fields}})
		default:
			return nil, fmt.Errorf("mongostore: unsupported stage %T", stage)
		}
	}
	return out, nil
}

func translateMatch(m query.Match) bson.D {
	if m.Or {
		or := make(bson.A, 0, len(m.Conds))
		for _, c := range m.Conds {
			or = append(or, bson.D{translateCond(c)})
		}
		return bson.D{{Key: "$or", Value: or}}
	}
	d := make(bson.D, 0, len(m.Conds))
	for _, c := range m.Conds {
		d = append(d, translateCond(c))
	}
	return d
}

func translateCond(c query.Cond) bson.E {
	switch c.Op {
	case query.OpNe:
		return bson.E{Key: c.Field, Value: bson.D{{Key: "$ne", Value: c.Value}}}
	case query.OpRegex:
		return bson.E{Key: c.Field, Value: bson.D{
			{Key: "$regex", Value: c.Value},
			{Key: "$options", Value: "i"},
		}}
	default:
		return bson.E{Key: c.Field, Value: c.Value}
	}
}
