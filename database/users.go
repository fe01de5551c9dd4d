package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
)

// UserStore handles persistence for the users collection.
type UserStore struct {
	q queryer
}

func NewUserStore(db *sql.DB) *UserStore {
	return &UserStore{q: db}
}

// WithTx returns a UserStore bound to the given transaction.
func (s *UserStore) WithTx(tx *sql.Tx) *UserStore {
	return &UserStore{q: tx}
}

// Create persists a new user. Returns ErrEmailExists if the email is
// already registered.
func (s *UserStore) Create(ctx context.Context, user *User) error {
	existing, err := s.GetByEmail(ctx, user.Email)
	if err != nil && err != ErrNotFound {
		return err
	}
	if existing != nil {
		return ErrEmailExists
	}

	doc, err := marshalUser(user)
	if err != nil {
		return err
	}
	_, err = s.q.ExecContext(ctx, "INSERT INTO users (id, data) VALUES (?, ?)", user.ID, doc)
	if err != nil {
		return fmt.Errorf("failed to insert user: %w", err)
	}
	return nil
}

// GetByID retrieves a user by id. Returns ErrNotFound if absent.
func (s *UserStore) GetByID(ctx context.Context, id string) (*User, error) {
	row := s.q.QueryRowContext(ctx, "SELECT data FROM users WHERE id = ?", id)
	return scanUser(row)
}

// GetByEmail retrieves a user by email. Returns ErrNotFound if absent.
func (s *UserStore) GetByEmail(ctx context.Context, email string) (*User, error) {
	row := s.q.QueryRowContext(ctx,
		"SELECT data FROM users WHERE json_extract(data, '$.email') = ?", email)
	return scanUser(row)
}

// Update replaces a user's document. Returns ErrEmailExists if the new
// email belongs to a different account, ErrNotFound if the user is gone.
func (s *UserStore) Update(ctx context.Context, user *User) error {
	other, err := s.GetByEmail(ctx, user.Email)
	if err != nil && err != ErrNotFound {
		return err
	}
	if other != nil && other.ID != user.ID {
		return ErrEmailExists
	}

	doc, err := marshalUser(user)
	if err != nil {
		return err
	}
	res, err := s.q.ExecContext(ctx, "UPDATE users SET data = ? WHERE id = ?", doc, user.ID)
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes a user by id. Returns ErrNotFound if absent.
func (s *UserStore) Delete(ctx context.Context, id string) error {
	res, err := s.q.ExecContext(ctx, "DELETE FROM users WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check delete result: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// List returns all users ordered by name.
func (s *UserStore) List(ctx context.Context) ([]User, error) {
	rows, err := s.q.QueryContext(ctx,
		"SELECT data FROM users ORDER BY json_extract(data, '$.name')")
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}
	defer rows.Close()

	users := []User{}
	for rows.Next() {
		var doc string
		if err := rows.Scan(&doc); err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		var u userDoc
		if err := json.Unmarshal([]byte(doc), &u); err != nil {
			return nil, fmt.Errorf("failed to unmarshal user: %w", err)
		}
		users = append(users, u.user())
	}
	return users, rows.Err()
}

// userDoc is the stored form of User. The password hash is excluded from
// User's public JSON, so the document carries it under its own key.
type userDoc struct {
	User
	PasswordHash string `json:"passwordHash"`
}

func (d userDoc) user() User {
	u := d.User
	u.PasswordHash = d.PasswordHash
	return u
}

func marshalUser(user *User) (string, error) {
	doc, err := json.Marshal(userDoc{User: *user, PasswordHash: user.PasswordHash})
	if err != nil {
		return "", fmt.Errorf("failed to marshal user: %w", err)
	}
	return string(doc), nil
}

func scanUser(row *sql.Row) (*User, error) {
	var doc string
	err := row.Scan(&doc)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query user: %w", err)
	}
	var d userDoc
	if err := json.Unmarshal([]byte(doc), &d); err != nil {
		return nil, fmt.Errorf("failed to unmarshal user: %w", err)
	}
	u := d.user()
	return &u, nil
}
