package types

// Route describes one operation the service exposes. The generator renders
// the registered routes into the API description document.
type Route struct {
	// Name is the router name the handler is registered under.
	Name        string                `json:"name"`
	Method      string                `json:"method"`
	Path        string                `json:"path"`
	Summary     string                `json:"summary,omitempty"`
	Description string                `json:"description,omitempty"`
	Tags        []string              `json:"tags,omitempty"`
	OperationID string                `json:"operation_id,omitempty"`
	PathParams  []Param               `json:"path_params,omitempty"`
	QueryParams []Param               `json:"query_params,omitempty"`
	RequestBody *Body                 `json:"request_body,omitempty"`
	Responses   []Response            `json:"responses"`
	Security    []SecurityRequirement `json:"security,omitempty"`
}

// Param defines a parameter (supports nested children).
type Param struct {
	Name        string  `json:"name"`
	Type        string  `json:"type"`
	Required    bool    `json:"required"`
	Description string  `json:"description,omitempty"`
	Children    []Param `json:"children,omitempty"`
}

// Body describes a request body. Model refers to a component schema; Fields
// are used when there is none.
type Body struct {
	ContentType string  `json:"content_type"`
	Model       string  `json:"model,omitempty"`
	Required    bool    `json:"required"`
	Fields      []Param `json:"fields,omitempty"`
}

// Response defines a response schema.
type Response struct {
	StatusCode  int    `json:"status_code"`
	ContentType string `json:"content_type,omitempty"`
	Description string `json:"description"`
	Model       string `json:"model,omitempty"`
	// List marks a response carrying a sequence of Model.
	List   bool    `json:"list,omitempty"`
	Fields []Param `json:"fields,omitempty"`
}

// Model is a named object schema published under components.
type Model struct {
	Name        string  `json:"name"`
	Description string  `json:"description,omitempty"`
	Fields      []Param `json:"fields"`
}

// SecurityScheme is a named authentication scheme.
type SecurityScheme struct {
	Name string `json:"name"`
	// Type is apiKey, http, oauth2 or openIdConnect.
	Type   string `json:"type"`
	In     string `json:"in,omitempty"`
	Header string `json:"header,omitempty"`
	Scheme string `json:"scheme,omitempty"`
}

// SecurityRequirement maps scheme names to the scopes required.
type SecurityRequirement map[string][]string
