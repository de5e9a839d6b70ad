package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"bapmate/internal/model"
)

const roomColumns = `id, post_id, title, last_message, last_sender_id, last_updated, last_seq,
		meeting_lat, meeting_lng, meeting_name, created_at`

type chatRepository struct {
	db *sqlx.DB
}

func NewChatRepository(db *sqlx.DB) ChatRepository {
	return &chatRepository{db: db}
}

// GetRoom loads the room with its participants and unread map.
func (r *chatRepository) GetRoom(ctx context.Context, id string) (*model.ChatRoom, error) {
	var room model.ChatRoom
	if err := r.db.GetContext(ctx, &room, `SELECT `+roomColumns+` FROM chat_rooms WHERE id = $1`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, model.ErrRoomNotFound
		}
		return nil, dbError("failed to get room", err)
	}
	if err := r.attachParticipants(ctx, r.db, &room); err != nil {
		return nil, err
	}
	return &room, nil
}

func (r *chatRepository) LockRoom(ctx context.Context, tx *sqlx.Tx, id string) (*model.ChatRoom, error) {
	var room model.ChatRoom
	if err := tx.GetContext(ctx, &room, `SELECT `+roomColumns+` FROM chat_rooms WHERE id = $1 FOR UPDATE`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, model.ErrRoomNotFound
		}
		return nil, dbError("failed to lock room", err)
	}
	if err := r.attachParticipants(ctx, tx, &room); err != nil {
		return nil, err
	}
	return &room, nil
}

func (r *chatRepository) attachParticipants(ctx context.Context, q sqlx.ExtContext, room *model.ChatRoom) error {
	participants, err := r.Participants(ctx, q, room.ID)
	if err != nil {
		return err
	}
	room.Participants = make([]string, 0, len(participants))
	room.UnreadCount = make(map[string]int, len(participants))
	for _, p := range participants {
		room.Participants = append(room.Participants, p.UserID)
		room.UnreadCount[p.UserID] = p.UnreadCount
	}
	return nil
}

func (r *chatRepository) CreateRoom(ctx context.Context, tx *sqlx.Tx, room *model.ChatRoom) (bool, error) {
	query := `
		INSERT INTO chat_rooms (id, post_id, title, last_message, last_updated, created_at)
		VALUES ($1, $2, $3, '', NOW(), NOW())
		ON CONFLICT (post_id) DO NOTHING
	`
	result, err := tx.ExecContext(ctx, query, room.ID, room.PostID, room.Title)
	if err != nil {
		return false, dbError("failed to create room", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, dbError("failed to get rows affected", err)
	}
	return rows > 0, nil
}

func (r *chatRepository) RoomIDByPost(ctx context.Context, q sqlx.ExtContext, postID string) (string, error) {
	var id string
	if err := sqlx.GetContext(ctx, q, &id, `SELECT id FROM chat_rooms WHERE post_id = $1`, postID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", model.ErrRoomNotFound
		}
		return "", dbError("failed to get room by post", err)
	}
	return id, nil
}

func (r *chatRepository) AddParticipant(ctx context.Context, tx *sqlx.Tx, roomID, userID string) (bool, error) {
	query := `
		INSERT INTO chat_room_participants (room_id, user_id, unread_count, joined_at)
		VALUES ($1, $2, 0, clock_timestamp())
		ON CONFLICT (room_id, user_id) DO NOTHING
	`
	result, err := tx.ExecContext(ctx, query, roomID, userID)
	if err != nil {
		return false, dbError("failed to add room participant", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, dbError("failed to get rows affected", err)
	}
	return rows > 0, nil
}

// RemoveParticipant drops the membership row and with it the unread counter.
func (r *chatRepository) RemoveParticipant(ctx context.Context, roomID, userID string) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM chat_room_participants WHERE room_id = $1 AND user_id = $2`, roomID, userID)
	if err != nil {
		return false, dbError("failed to remove room participant", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, dbError("failed to get rows affected", err)
	}
	return rows > 0, nil
}

func (r *chatRepository) Participants(ctx context.Context, q sqlx.ExtContext, roomID string) ([]model.RoomParticipant, error) {
	query := `
		SELECT room_id, user_id, unread_count, joined_at
		FROM chat_room_participants
		WHERE room_id = $1
		ORDER BY joined_at ASC
	`
	var participants []model.RoomParticipant
	if err := sqlx.SelectContext(ctx, q, &participants, query, roomID); err != nil {
		return nil, dbError("failed to get room participants", err)
	}
	return participants, nil
}

func (r *chatRepository) ParticipantsForRooms(ctx context.Context, roomIDs []string) (map[string][]string, error) {
	result := make(map[string][]string, len(roomIDs))
	if len(roomIDs) == 0 {
		return result, nil
	}
	query := `
		SELECT room_id, user_id
		FROM chat_room_participants
		WHERE room_id = ANY($1::uuid[])
		ORDER BY joined_at ASC
	`
	var rows []struct {
		RoomID string `db:"room_id"`
		UserID string `db:"user_id"`
	}
	if err := r.db.SelectContext(ctx, &rows, query, pq.Array(roomIDs)); err != nil {
		return nil, dbError("failed to get participants for rooms", err)
	}
	for _, row := range rows {
		result[row.RoomID] = append(result[row.RoomID], row.UserID)
	}
	return result, nil
}

func (r *chatRepository) CountParticipants(ctx context.Context, roomID string) (int, error) {
	var n int
	if err := r.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM chat_room_participants WHERE room_id = $1`, roomID); err != nil {
		return 0, dbError("failed to count room participants", err)
	}
	return n, nil
}

func (r *chatRepository) RoomIDsForUser(ctx context.Context, userID string) ([]string, error) {
	var ids []string
	if err := r.db.SelectContext(ctx, &ids, `SELECT room_id FROM chat_room_participants WHERE user_id = $1`, userID); err != nil {
		return nil, dbError("failed to list rooms for user", err)
	}
	return ids, nil
}

// ListRooms returns the user's rooms, most recently active first. since, when
// set, hides rooms whose last activity is older.
func (r *chatRepository) ListRooms(ctx context.Context, userID string, since *time.Time) ([]model.RoomSummary, error) {
	query := `
		SELECT c.id, c.post_id, c.title, c.last_message, c.last_updated, p.unread_count
		FROM chat_rooms c
		JOIN chat_room_participants p ON p.room_id = c.id AND p.user_id = $1
		WHERE $2::timestamptz IS NULL OR c.last_updated >= $2
		ORDER BY c.last_updated DESC
	`
	rooms := []model.RoomSummary{}
	if err := r.db.SelectContext(ctx, &rooms, query, userID, since); err != nil {
		return nil, dbError("failed to list rooms", err)
	}
	return rooms, nil
}

// InsertMessage stores the message and its sender's read receipt. msg.Seq
// must already be assigned under the room lock. created_at is read after the
// lock and never falls behind the room's last message, so timestamps follow seq.
func (r *chatRepository) InsertMessage(ctx context.Context, tx *sqlx.Tx, msg *model.Message) error {
	query := `
		INSERT INTO chat_messages (id, room_id, sender_id, text, seq, created_at)
		VALUES ($1, $2, $3, $4, $5,
			GREATEST(clock_timestamp(), (SELECT last_updated FROM chat_rooms WHERE id = $2)))
		RETURNING created_at
	`
	if err := tx.QueryRowxContext(ctx, query, msg.ID, msg.RoomID, msg.SenderID, msg.Text, msg.Seq).Scan(&msg.CreatedAt); err != nil {
		return dbError("failed to insert message", err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO chat_message_reads (message_id, user_id) VALUES ($1, $2)`, msg.ID, msg.SenderID); err != nil {
		return dbError("failed to insert sender read", err)
	}
	msg.ReadBy = []string{msg.SenderID}
	return nil
}

func (r *chatRepository) UpdateLastMessage(ctx context.Context, tx *sqlx.Tx, msg *model.Message) error {
	query := `
		UPDATE chat_rooms
		SET last_message = $2, last_sender_id = $3, last_updated = $4, last_seq = $5
		WHERE id = $1
	`
	if _, err := tx.ExecContext(ctx, query, msg.RoomID, msg.Text, msg.SenderID, msg.CreatedAt, msg.Seq); err != nil {
		return dbError("failed to update last message", err)
	}
	return nil
}

func (r *chatRepository) IncrementUnread(ctx context.Context, tx *sqlx.Tx, roomID, exceptUserID string) error {
	query := `
		UPDATE chat_room_participants
		SET unread_count = unread_count + 1
		WHERE room_id = $1 AND user_id <> $2
	`
	if _, err := tx.ExecContext(ctx, query, roomID, exceptUserID); err != nil {
		return dbError("failed to increment unread", err)
	}
	return nil
}

func (r *chatRepository) ResetUnread(ctx context.Context, tx *sqlx.Tx, roomID, userID string) (bool, error) {
	result, err := tx.ExecContext(ctx,
		`UPDATE chat_room_participants SET unread_count = 0 WHERE room_id = $1 AND user_id = $2`, roomID, userID)
	if err != nil {
		return false, dbError("failed to reset unread", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, dbError("failed to get rows affected", err)
	}
	return rows > 0, nil
}

// MarkAllRead adds userID to read_by of every message in the room that lacks it.
func (r *chatRepository) MarkAllRead(ctx context.Context, tx *sqlx.Tx, roomID, userID string) (int64, error) {
	query := `
		INSERT INTO chat_message_reads (message_id, user_id)
		SELECT id, $2 FROM chat_messages WHERE room_id = $1
		ON CONFLICT (message_id, user_id) DO NOTHING
	`
	result, err := tx.ExecContext(ctx, query, roomID, userID)
	if err != nil {
		return 0, dbError("failed to mark messages read", err)
	}
	return result.RowsAffected()
}

type messageRow struct {
	model.Message
	ReadByIDs pq.StringArray `db:"read_by"`
}

// Messages returns the room's messages in seq order with their read sets.
func (r *chatRepository) Messages(ctx context.Context, roomID string) ([]model.Message, error) {
	query := `
		SELECT m.id, m.room_id, m.sender_id, m.text, m.seq, m.created_at,
		       COALESCE(array_agg(rd.user_id::text) FILTER (WHERE rd.user_id IS NOT NULL), '{}') AS read_by
		FROM chat_messages m
		LEFT JOIN chat_message_reads rd ON rd.message_id = m.id
		WHERE m.room_id = $1
		GROUP BY m.id
		ORDER BY m.seq ASC
	`
	var rows []messageRow
	if err := r.db.SelectContext(ctx, &rows, query, roomID); err != nil {
		return nil, dbError("failed to list messages", err)
	}
	messages := make([]model.Message, len(rows))
	for i, row := range rows {
		messages[i] = row.Message
		messages[i].ReadBy = []string(row.ReadByIDs)
	}
	return messages, nil
}

func (r *chatRepository) DeleteRoom(ctx context.Context, roomID string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return dbError("begin transaction", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM chat_messages WHERE room_id = $1`, roomID); err != nil {
		return dbError("failed to delete room messages", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM chat_rooms WHERE id = $1`, roomID); err != nil {
		return dbError("failed to delete room", err)
	}
	if err := tx.Commit(); err != nil {
		return dbError("commit transaction", err)
	}
	return nil
}

func (r *chatRepository) SetMeeting(ctx context.Context, roomID string, point model.MeetingPoint) error {
	query := `UPDATE chat_rooms SET meeting_lat = $2, meeting_lng = $3, meeting_name = $4 WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, roomID, point.Lat, point.Lng, point.Name)
	if err != nil {
		return dbError("failed to set meeting point", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return dbError("failed to get rows affected", err)
	}
	if rows == 0 {
		return model.ErrRoomNotFound
	}
	return nil
}
