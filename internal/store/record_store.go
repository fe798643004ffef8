package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/pocketbase/dbx"
	"github.com/pocketbase/pocketbase/core"
	"github.com/pocketbase/pocketbase/tools/types"

	"lesson-booking/internal/status"
	"lesson-booking/models"
)

const (
	collectionLessons = "lessons"
	collectionOrders  = "orders"
	collectionUsers   = "users"
)

// RecordStore implements Store on top of PocketBase records. Reads use
// the record API; the guarded seat write goes through dbx so the
// precondition and the mutation are one UPDATE statement.
type RecordStore struct {
	app core.App
}

func NewRecordStore(app core.App) *RecordStore {
	return &RecordStore{app: app}
}

func (s *RecordStore) FindLesson(ctx context.Context, id string) (*models.Lesson, error) {
	record, err := s.app.FindRecordById(collectionLessons, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, status.NotFound("lesson %s", id)
		}
		return nil, fmt.Errorf("find lesson %s: %w", id, err)
	}
	return lessonFromRecord(record)
}

func (s *RecordStore) FindLessons(ctx context.Context) ([]*models.Lesson, error) {
	records, err := s.app.FindAllRecords(collectionLessons)
	if err != nil {
		return nil, fmt.Errorf("list lessons: %w", err)
	}
	return lessonsFromRecords(records)
}

func (s *RecordStore) FindLessonsByOwner(ctx context.Context, email string) ([]*models.Lesson, error) {
	records, err := s.app.FindAllRecords(collectionLessons, dbx.HashExp{"created_by": email})
	if err != nil {
		return nil, fmt.Errorf("list lessons by owner: %w", err)
	}
	return lessonsFromRecords(records)
}

func (s *RecordStore) FindLessonsByParticipant(ctx context.Context, email string) ([]*models.Lesson, error) {
	// The participant list is a JSON column; match on the serialized
	// email entry the same way the original record filter would.
	pattern := fmt.Sprintf(`%%"email":%q%%`, email)
	records, err := s.app.FindAllRecords(collectionLessons,
		dbx.NewExp("participants LIKE {:pattern}", dbx.Params{"pattern": pattern}))
	if err != nil {
		return nil, fmt.Errorf("list lessons by participant: %w", err)
	}
	return lessonsFromRecords(records)
}

func (s *RecordStore) FindDuplicateLesson(ctx context.Context, l *models.Lesson) (*models.Lesson, error) {
	record, err := s.app.FindFirstRecordByFilter(
		collectionLessons,
		"name = {:name} && topic = {:topic} && location = {:location} && capacity = {:capacity} && price = {:price} && image = {:image}",
		dbx.Params{
			"name":     l.Name,
			"topic":    l.Topic,
			"location": l.Location,
			"capacity": l.Capacity,
			"price":    l.Price,
			"image":    l.Image,
		},
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, status.NotFound("no duplicate of lesson %q", l.Name)
		}
		return nil, fmt.Errorf("find duplicate lesson: %w", err)
	}
	return lessonFromRecord(record)
}

func (s *RecordStore) InsertLesson(ctx context.Context, l *models.Lesson) (*models.Lesson, error) {
	collection, err := s.app.FindCollectionByNameOrId(collectionLessons)
	if err != nil {
		return nil, fmt.Errorf("insert lesson: %w", err)
	}

	record := core.NewRecord(collection)
	record.Set("name", l.Name)
	record.Set("topic", l.Topic)
	record.Set("location", l.Location)
	record.Set("description", l.Description)
	record.Set("image", l.Image)
	record.Set("created_by", l.CreatedBy)
	record.Set("capacity", l.Capacity)
	record.Set("available_seats", l.AvailableSeats)
	record.Set("price", l.Price)
	record.Set("participants", l.Participants)
	record.Set("seat_revision", 0)

	if err := s.app.Save(record); err != nil {
		return nil, fmt.Errorf("insert lesson: %w", err)
	}

	created := l.Clone()
	created.SeatRevision = 0
	created.ID = record.Id
	created.Created = record.GetDateTime("created").Time()
	created.Updated = record.GetDateTime("updated").Time()
	return created, nil
}

func (s *RecordStore) UpdateLessonGuarded(ctx context.Context, l *models.Lesson, expect Expect) (bool, error) {
	participants, err := json.Marshal(l.Participants)
	if err != nil {
		return false, fmt.Errorf("encode participants: %w", err)
	}

	now := types.NowDateTime()
	res, err := s.app.DB().Update(collectionLessons, dbx.Params{
		"name":            l.Name,
		"topic":           l.Topic,
		"location":        l.Location,
		"description":     l.Description,
		"image":           l.Image,
		"capacity":        l.Capacity,
		"available_seats": l.AvailableSeats,
		"price":           l.Price,
		"participants":    string(participants),
		"seat_revision":   expect.Revision + 1,
		"updated":         now.String(),
	}, dbx.And(
		dbx.HashExp{"id": l.ID},
		dbx.HashExp{"capacity": expect.Capacity},
		dbx.HashExp{"available_seats": expect.AvailableSeats},
		dbx.HashExp{"seat_revision": expect.Revision},
	)).WithContext(ctx).Execute()
	if err != nil {
		return false, fmt.Errorf("update lesson %s: %w", l.ID, err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("update lesson %s: %w", l.ID, err)
	}
	if rows == 0 {
		// Precondition no longer holds: a concurrent writer changed the
		// seat state between our read and this write.
		return false, nil
	}

	l.SeatRevision = expect.Revision + 1
	l.Updated = now.Time()
	return true, nil
}

func (s *RecordStore) DeleteLesson(ctx context.Context, id string) error {
	record, err := s.app.FindRecordById(collectionLessons, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return status.NotFound("lesson %s", id)
		}
		return fmt.Errorf("delete lesson %s: %w", id, err)
	}
	if err := s.app.Delete(record); err != nil {
		return fmt.Errorf("delete lesson %s: %w", id, err)
	}
	return nil
}

func (s *RecordStore) InsertOrder(ctx context.Context, o *models.Order) (*models.Order, error) {
	collection, err := s.app.FindCollectionByNameOrId(collectionOrders)
	if err != nil {
		return nil, fmt.Errorf("insert order: %w", err)
	}

	record := core.NewRecord(collection)
	record.Set("reference", o.Reference)
	record.Set("name", o.Name)
	record.Set("phone", o.Phone)
	record.Set("email", o.Email)
	record.Set("lessons", o.Lessons)
	record.Set("total_price", o.TotalPrice)

	if err := s.app.Save(record); err != nil {
		return nil, fmt.Errorf("insert order: %w", err)
	}

	created := *o
	created.ID = record.Id
	created.Created = record.GetDateTime("created").Time()
	created.Lessons = make([]models.OrderLesson, len(o.Lessons))
	copy(created.Lessons, o.Lessons)
	return &created, nil
}

func (s *RecordStore) FindOrder(ctx context.Context, id string) (*models.Order, error) {
	record, err := s.app.FindRecordById(collectionOrders, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, status.NotFound("order %s", id)
		}
		return nil, fmt.Errorf("find order %s: %w", id, err)
	}
	return orderFromRecord(record)
}

func (s *RecordStore) FindOrders(ctx context.Context) ([]*models.Order, error) {
	records, err := s.app.FindAllRecords(collectionOrders)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	orders := make([]*models.Order, 0, len(records))
	for _, record := range records {
		order, err := orderFromRecord(record)
		if err != nil {
			return nil, err
		}
		orders = append(orders, order)
	}
	return orders, nil
}

func (s *RecordStore) FindUserByEmail(ctx context.Context, email string) (*models.User, error) {
	record, err := s.app.FindAuthRecordByEmail(collectionUsers, email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, status.NotFound("user %s", email)
		}
		return nil, fmt.Errorf("find user %s: %w", email, err)
	}
	return &models.User{
		ID:    record.Id,
		Email: record.GetString("email"),
		Name:  record.GetString("name"),
	}, nil
}

func (s *RecordStore) WithTransaction(ctx context.Context, fn func(tx Store) error) error {
	return s.app.RunInTransaction(func(txApp core.App) error {
		return fn(NewRecordStore(txApp))
	})
}

// LessonFromRecord converts a raw lessons record, for callers outside
// the store such as record hooks.
func LessonFromRecord(record *core.Record) (*models.Lesson, error) {
	return lessonFromRecord(record)
}

// decodeParticipants parses the participants JSON column. A column that
// does not parse is a damaged ledger, not an empty one; coercing it to
// "no participants" would make every booked seat look free, so it is
// reported as unavailable instead.
func decodeParticipants(lessonID, raw string) ([]models.Participant, error) {
	if raw == "" || raw == "null" {
		return []models.Participant{}, nil
	}
	var participants []models.Participant
	if err := json.Unmarshal([]byte(raw), &participants); err != nil {
		slog.Error("corrupt participants column", "lesson_id", lessonID, "error", err)
		return nil, status.Unavailable("lesson %s has an unreadable participant list", lessonID)
	}
	if participants == nil {
		participants = []models.Participant{}
	}
	return participants, nil
}

// decodeOrderLessons parses an order's line-item JSON column, with the
// same refusal to pass off damage as emptiness.
func decodeOrderLessons(orderID, raw string) ([]models.OrderLesson, error) {
	if raw == "" || raw == "null" {
		return []models.OrderLesson{}, nil
	}
	var lessons []models.OrderLesson
	if err := json.Unmarshal([]byte(raw), &lessons); err != nil {
		slog.Error("corrupt order lessons column", "order_id", orderID, "error", err)
		return nil, status.Unavailable("order %s has unreadable line items", orderID)
	}
	if lessons == nil {
		lessons = []models.OrderLesson{}
	}
	return lessons, nil
}

func lessonFromRecord(record *core.Record) (*models.Lesson, error) {
	participants, err := decodeParticipants(record.Id, record.GetString("participants"))
	if err != nil {
		return nil, err
	}
	return &models.Lesson{
		ID:             record.Id,
		Name:           record.GetString("name"),
		Topic:          record.GetString("topic"),
		Location:       record.GetString("location"),
		Description:    record.GetString("description"),
		Image:          record.GetString("image"),
		CreatedBy:      record.GetString("created_by"),
		Capacity:       record.GetInt("capacity"),
		AvailableSeats: record.GetInt("available_seats"),
		Price:          record.GetFloat("price"),
		Participants:   participants,
		SeatRevision:   record.GetInt("seat_revision"),
		Created:        record.GetDateTime("created").Time(),
		Updated:        record.GetDateTime("updated").Time(),
	}, nil
}

func lessonsFromRecords(records []*core.Record) ([]*models.Lesson, error) {
	lessons := make([]*models.Lesson, 0, len(records))
	for _, record := range records {
		lesson, err := lessonFromRecord(record)
		if err != nil {
			return nil, err
		}
		lessons = append(lessons, lesson)
	}
	return lessons, nil
}

func orderFromRecord(record *core.Record) (*models.Order, error) {
	lessons, err := decodeOrderLessons(record.Id, record.GetString("lessons"))
	if err != nil {
		return nil, err
	}
	return &models.Order{
		ID:         record.Id,
		Reference:  record.GetString("reference"),
		Name:       record.GetString("name"),
		Phone:      record.GetString("phone"),
		Email:      record.GetString("email"),
		Lessons:    lessons,
		TotalPrice: record.GetFloat("total_price"),
		Created:    record.GetDateTime("created").Time(),
	}, nil
}
