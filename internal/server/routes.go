package server

import (
	"github.com/yourorg/specsync/pkg/types"
)

const (
	usersTable   = "users"
	apiKeyScheme = "apiKey"
	apiKeyHeader = "X-API-Key"
)

// endpoint is one user API operation: the metadata the generator publishes
// plus what the CRUD handler needs to serve it.
type endpoint struct {
	pattern string
	meta    types.Route
	table   string
	// columns maps path parameter names to table columns.
	columns map[string]string
	kind    ModelKind
	mutates bool
}

var userIDParam = types.Param{Name: "userId", Type: "int64", Required: true, Description: "Numeric ID of the user."}

var userFields = []types.Param{
	{Name: "name", Type: "string", Required: true},
	{Name: "email", Type: "email"},
}

func userEndpoints() []endpoint {
	byID := map[string]string{"userId": "id"}
	notFound := types.Response{StatusCode: 404, Description: "User not found"}
	invalid := types.Response{StatusCode: 400, Description: "Invalid input"}

	return []endpoint{
		{
			pattern: "/users/{userId:[0-9]+}",
			meta: types.Route{
				Name:        "getUser",
				Method:      "GET",
				Summary:     "Returns a user by ID.",
				Tags:        []string{"users"},
				OperationID: "getUser",
				PathParams:  []types.Param{userIDParam},
				Responses: []types.Response{
					{StatusCode: 200, Description: "OK", Model: "User"},
					notFound,
				},
			},
			table:   usersTable,
			columns: byID,
			kind:    ModelUser,
		},
		{
			pattern: "/users",
			meta: types.Route{
				Name:        "listUsers",
				Method:      "GET",
				Summary:     "Lists users, optionally filtered by name or email.",
				Tags:        []string{"users"},
				OperationID: "listUsers",
				QueryParams: []types.Param{
					{Name: "name", Type: "string"},
					{Name: "email", Type: "email"},
				},
				Responses: []types.Response{{StatusCode: 200, Description: "OK", Model: "User", List: true}},
			},
			table: usersTable,
			kind:  ModelUserList,
		},
		{
			pattern: "/users",
			meta: types.Route{
				Name:        "createUser",
				Method:      "POST",
				Summary:     "Creates a user.",
				Tags:        []string{"users"},
				OperationID: "createUser",
				RequestBody: &types.Body{ContentType: "application/json", Required: true, Fields: userFields},
				Responses: []types.Response{
					{StatusCode: 201, Description: "Created", Model: "User"},
					invalid,
				},
			},
			table:   usersTable,
			kind:    ModelUser,
			mutates: true,
		},
		{
			pattern: "/users/{userId:[0-9]+}",
			meta: types.Route{
				Name:        "updateUser",
				Method:      "PUT",
				Summary:     "Updates a user.",
				Tags:        []string{"users"},
				OperationID: "updateUser",
				PathParams:  []types.Param{userIDParam},
				RequestBody: &types.Body{
					ContentType: "application/json",
					Required:    true,
					Fields: []types.Param{
						{Name: "name", Type: "string"},
						{Name: "email", Type: "email"},
					},
				},
				Responses: []types.Response{
					{StatusCode: 200, Description: "OK", Model: "User"},
					invalid,
					notFound,
				},
			},
			table:   usersTable,
			columns: byID,
			kind:    ModelUser,
			mutates: true,
		},
		{
			pattern: "/users/{userId:[0-9]+}",
			meta: types.Route{
				Name:        "deleteUser",
				Method:      "DELETE",
				Summary:     "Deletes a user.",
				Tags:        []string{"users"},
				OperationID: "deleteUser",
				PathParams:  []types.Param{userIDParam},
				Responses: []types.Response{
					{StatusCode: 204, Description: "Deleted"},
					notFound,
				},
			},
			table:   usersTable,
			columns: byID,
			kind:    ModelNone,
			mutates: true,
		},
	}
}

// Models returns the component schemas the user API publishes.
func Models() []types.Model {
	return []types.Model{{
		Name:        "User",
		Description: "A registered user.",
		Fields: []types.Param{
			{Name: "id", Type: "int64", Required: true},
			{Name: "name", Type: "string", Required: true},
			{Name: "email", Type: "email"},
		},
	}}
}

func apiKeySchemes() []types.SecurityScheme {
	return []types.SecurityScheme{{Name: apiKeyScheme, Type: "apiKey", In: "header", Header: apiKeyHeader}}
}

// statusFor maps a CRUD method to the status code a successful call returns.
func statusFor(method string) int {
	switch method {
	case "get", "put":
		return 200
	case "post":
		return 201
	case "delete":
		return 204
	default:
		return 500
	}
}
