package repository

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"sync"
	"time"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"

	"github.com/joseph-ayodele/formscan/internal/common"
	"github.com/joseph-ayodele/formscan/internal/entity"
)

type ChatRepository interface {
	Append(ctx context.Context, documentID uuid.UUID, question, answer string) (*entity.ChatTurn, error)
	ListByDocument(ctx context.Context, documentID uuid.UUID) ([]*entity.ChatTurn, error)
}

type chatRepo struct {
	db     *DB
	logger *slog.Logger
}

func NewChatRepository(db *DB, logger *slog.Logger) ChatRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &chatRepo{db: db, logger: logger}
}

func (r *chatRepo) Append(ctx context.Context, documentID uuid.UUID, question, answer string) (*entity.ChatTurn, error) {
	turn := &entity.ChatTurn{
		ID:         uuid.New(),
		DocumentID: documentID,
		Question:   question,
		Answer:     answer,
		CreatedAt:  time.Unix(0, nextStamp()).UTC(),
	}
	q, args := entsql.Dialect(r.db.Dialect()).Insert("chat_turns").
		Columns("id", "document_id", "question", "answer", "created_at").
		Values(turn.ID.String(), documentID.String(), question, answer, turn.CreatedAt.UnixNano()).
		Query()
	var res sql.Result
	if err := r.db.Driver.Exec(ctx, q, args, &res); err != nil {
		r.logger.Error("failed to append chat turn", "document_id", documentID, "error", err)
		return nil, common.NewAppError(common.CodeDatabase, "append chat turn", joinDB(err))
	}
	return turn, nil
}

// ListByDocument returns the turns in the order they were asked.
func (r *chatRepo) ListByDocument(ctx context.Context, documentID uuid.UUID) ([]*entity.ChatTurn, error) {
	q, args := entsql.Dialect(r.db.Dialect()).
		Select("id", "question", "answer", "created_at").
		From(entsql.Table("chat_turns")).
		Where(entsql.EQ("document_id", documentID.String())).
		OrderBy(entsql.Asc("created_at"), entsql.Asc("id")).
		Query()
	rows := &entsql.Rows{}
	if err := r.db.Driver.Query(ctx, q, args, rows); err != nil {
		return nil, common.NewAppError(common.CodeDatabase, "list chat turns", joinDB(err))
	}
	defer rows.Close()

	var out []*entity.ChatTurn
	for rows.Next() {
		var (
			id        string
			createdAt int64
			t         = entity.ChatTurn{DocumentID: documentID}
		)
		if err := rows.Scan(&id, &t.Question, &t.Answer, &createdAt); err != nil {
			return nil, common.NewAppError(common.CodeDatabase, "scan chat turn", joinDB(err))
		}
		t.ID, _ = uuid.Parse(id)
		t.CreatedAt = time.Unix(0, createdAt).UTC()
		out = append(out, &t)
	}
	return out, rows.Err()
}

var stamp struct {
	sync.Mutex
	last int64
}

// nextStamp is a strictly increasing nanosecond clock so turns appended
// within one clock tick keep their order.
func nextStamp() int64 {
	stamp.Lock()
	defer stamp.Unlock()
	now := time.Now().UnixNano()
	if now <= stamp.last {
		now = stamp.last + 1
	}
	stamp.last = now
	return now
}

func joinDB(err error) error {
	return errors.Join(common.ErrDatabase, err)
}
