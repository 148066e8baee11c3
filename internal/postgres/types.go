package postgres

// Config holds PostgreSQL connection settings.
type Config struct {
	URL string
}
