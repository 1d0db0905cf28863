package models

// User is the server-assigned identity of the signed-in account.
type User struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}
