package store

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

const userColumns = `id, full_name, email, password_hash, profile_pic, created_at, updated_at`

// CreateUser inserts u, assigning ID and timestamps.
func (db *DB) CreateUser(u *User) error {
	now := time.Now().UnixMilli()
	u.ID = uuid.NewString()
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	u.CreatedAt, u.UpdatedAt = now, now
	_, err := db.Exec(`
		INSERT INTO users (`+userColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		u.ID, u.FullName, u.Email, u.PasswordHash, u.ProfilePic, u.CreatedAt, u.UpdatedAt)
	if isUniqueViolation(err) {
		return ErrEmailTaken
	}
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

// UserByID returns the user with the given id.
func (db *DB) UserByID(id string) (*User, error) {
	return db.scanUser(db.QueryRow(`SELECT `+userColumns+` FROM users WHERE id = ?`, id))
}

// UserByEmail returns the user registered with email, compared case-insensitively.
func (db *DB) UserByEmail(email string) (*User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	return db.scanUser(db.QueryRow(`SELECT `+userColumns+` FROM users WHERE email = ?`, email))
}

// ListUsersExcept returns every user but id, ordered by name.
func (db *DB) ListUsersExcept(id string) ([]User, error) {
	rows, err := db.Query(`
		SELECT `+userColumns+`
		FROM users
		WHERE id != ?
		ORDER BY full_name COLLATE NOCASE, id`, id)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	users := []User{}
	for rows.Next() {
		var u User
		if err := rows.Scan(&u.ID, &u.FullName, &u.Email, &u.PasswordHash, &u.ProfilePic, &u.CreatedAt, &u.UpdatedAt); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// UpdateUser applies the non-nil fields of upd and returns the updated row.
func (db *DB) UpdateUser(id string, upd UserUpdate) (*User, error) {
	var sets []string
	var args []any
	add := func(col string, v *string) {
		if v != nil {
			sets = append(sets, col+" = ?")
			args = append(args, *v)
		}
	}
	add("full_name", upd.FullName)
	if upd.Email != nil {
		email := strings.ToLower(strings.TrimSpace(*upd.Email))
		add("email", &email)
	}
	add("password_hash", upd.PasswordHash)
	add("profile_pic", upd.ProfilePic)
	if len(sets) == 0 {
		return db.UserByID(id)
	}
	sets = append(sets, "updated_at = ?")
	args = append(args, time.Now().UnixMilli(), id)

	res, err := db.Exec(`UPDATE users SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...)
	if isUniqueViolation(err) {
		return nil, ErrEmailTaken
	}
	if err != nil {
		return nil, fmt.Errorf("update user: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, ErrNotFound
	}
	return db.UserByID(id)
}

func (db *DB) scanUser(row *sql.Row) (*User, error) {
	var u User
	err := row.Scan(&u.ID, &u.FullName, &u.Email, &u.PasswordHash, &u.ProfilePic, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}
