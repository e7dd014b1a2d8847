package mongodb

import (
	"context"

	"trivia_backend/internal/domain"
	"trivia_backend/internal/repository"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type GameRepository struct {
	coll *mongo.Collection
}

func (r *GameRepository) Create(ctx context.Context, g *domain.Game) error {
	_, err := r.coll.InsertOne(ctx, g)
	return mapWriteError(err)
}

func (r *GameRepository) Get(ctx context.Context, gameID string) (*domain.Game, error) {
	return findOne[domain.Game](ctx, r.coll, bson.M{"gameId": gameID})
}

func (r *GameRepository) GetActiveByFID(ctx context.Context, fid int64) (*domain.Game, error) {
	return findOne[domain.Game](ctx, r.coll, bson.M{"fid": fid, "status": domain.GameStatusActive})
}

// Update is a compare-and-set on version.
func (r *GameRepository) Update(ctx context.Context, g *domain.Game) error {
	next := *g
	next.Version = g.Version + 1

	res, err := r.coll.ReplaceOne(ctx, bson.M{"gameId": g.GameID, "version": g.Version}, &next)
	if err != nil {
		return mapWriteError(err)
	}
	if res.MatchedCount == 0 {
		return repository.ErrConflict
	}
	g.Version = next.Version
	return nil
}

func (r *GameRepository) ListActiveByWeek(ctx context.Context, weekID string) ([]*domain.Game, error) {
	opts := options.Find().SetSort(bson.D{{Key: "startedAt", Value: 1}})
	return findAll[domain.Game](ctx, r.coll, bson.M{"weekId": weekID, "status": domain.GameStatusActive}, opts)
}

type QuestionRepository struct {
	coll *mongo.Collection
}

func (r *QuestionRepository) Sample(ctx context.Context, difficulties []domain.Difficulty, n int) ([]domain.Question, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"active": true, "difficulty": bson.M{"$in": difficulties}}}},
		{{Key: "$sample", Value: bson.M{"size": n}}},
	}
	cur, err := r.coll.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []domain.Question
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *QuestionRepository) Insert(ctx context.Context, qs []domain.Question) error {
	if len(qs) == 0 {
		return nil
	}
	docs := make([]interface{}, len(qs))
	for i := range qs {
		docs[i] = qs[i]
	}
	_, err := r.coll.InsertMany(ctx, docs)
	return mapWriteError(err)
}

func (r *QuestionRepository) CountActive(ctx context.Context) (map[domain.Difficulty]int64, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"active": true}}},
		{{Key: "$group", Value: bson.M{"_id": "$difficulty", "count": bson.M{"$sum": 1}}}},
	}
	cur, err := r.coll.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var rows []struct {
		Difficulty domain.Difficulty `bson:"_id"`
		Count      int64             `bson:"count"`
	}
	if err := cur.All(ctx, &rows); err != nil {
		return nil, err
	}

	out := make(map[domain.Difficulty]int64, len(rows))
	for _, row := range rows {
		out[row.Difficulty] = row.Count
	}
	return out, nil
}
