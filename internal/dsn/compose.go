// Package dsn composes and parses the keyword connection strings used by the
// storefront and turns them into pgx pool configurations.
package dsn

import "fmt"

// Credentials are the fields resolved from a database secret.
type Credentials struct {
	Host     string
	Port     string
	Database string
	Username string
	Password string
}

// Primary composes the primary-shape connection string. The layout is fixed
// and values are inserted verbatim.
func Primary(c Credentials) string {
	return fmt.Sprintf(
		"Host=%s;Port=%s;Database=%s;Username=%s;Password=%s;SslMode=Require;Trust Server Certificate=true",
		c.Host, c.Port, c.Database, c.Username, c.Password,
	)
}

// Fallback composes the fallback-shape connection string, with host and port
// joined by a comma in the Server key.
func Fallback(c Credentials) string {
	return fmt.Sprintf(
		"Server=%s,%s;Database=%s;User Id=%s;Password=%s;TrustServerCertificate=true;Encrypt=true",
		c.Host, c.Port, c.Database, c.Username, c.Password,
	)
}
