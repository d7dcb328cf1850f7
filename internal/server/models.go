package server

import (
	"fmt"

	"github.com/yourorg/specsync/internal/store"
	"github.com/yourorg/specsync/pkg/types"
)

// ModelKind names the shape a handler returns. The set is closed; anything
// outside it fails with UnknownModelError.
type ModelKind string

const (
	// ModelNone marks handlers that return no body.
	ModelNone     ModelKind = ""
	ModelUser     ModelKind = "user"
	ModelUserList ModelKind = "list:user"
)

// UnknownModelError is returned by DecodeModel for a kind outside the table.
type UnknownModelError struct {
	Kind ModelKind
}

func (e *UnknownModelError) Error() string {
	return fmt.Sprintf("unknown model kind %q", string(e.Kind))
}

var modelTable = map[ModelKind]func(any) (any, error){
	ModelNone:     func(any) (any, error) { return nil, nil },
	ModelUser:     decodeUser,
	ModelUserList: decodeUserList,
}

// DecodeModel converts a CRUD result value into the model named by kind.
func DecodeModel(kind ModelKind, v any) (any, error) {
	decode, ok := modelTable[kind]
	if !ok {
		return nil, &UnknownModelError{Kind: kind}
	}
	return decode(v)
}

func decodeUser(v any) (any, error) {
	row, ok := v.(store.Row)
	if !ok {
		return nil, fmt.Errorf("decode user: expected a single row, got %T", v)
	}
	return userFromRow(row)
}

func decodeUserList(v any) (any, error) {
	var rows []store.Row
	switch t := v.(type) {
	case store.Row:
		rows = []store.Row{t}
	case []store.Row:
		rows = t
	default:
		return nil, fmt.Errorf("decode user list: unexpected %T", v)
	}
	users := make([]types.User, 0, len(rows))
	for _, row := range rows {
		u, err := userFromRow(row)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, nil
}

func userFromRow(row store.Row) (types.User, error) {
	var u types.User
	switch id := row["id"].(type) {
	case int64:
		u.ID = id
	case int:
		u.ID = int64(id)
	case float64:
		u.ID = int64(id)
	default:
		return u, fmt.Errorf("decode user: id has type %T", row["id"])
	}
	name, ok := row["name"].(string)
	if !ok {
		return u, fmt.Errorf("decode user: name has type %T", row["name"])
	}
	u.Name = name
	if email, ok := row["email"].(string); ok {
		u.Email = email
	}
	return u, nil
}
