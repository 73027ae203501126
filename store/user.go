package store

// User is the minimal profile the orchestrator needs: a display name and a
// home institution used for salutations and affiliation questions.
type User struct {
	ID          string
	Name        string
	Affiliation string
	CreatedTs   int64
}

type FindUser struct {
	ID *string
}
