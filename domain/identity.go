package domain

// Identity is the verified caller identity attached to the echo context by the
// authorization middleware. Handlers must scope every data access to it and
// never trust identity fields supplied in the request body.
type Identity struct {
	Username string
	Email    string
}
