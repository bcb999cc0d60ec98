package dsn

import (
	"fmt"
	"net"
	"net/url"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Dialect names the shape a connection string was written in.
type Dialect string

const (
	// DialectKeyword is the Host=...;Port=... shape produced by Primary.
	DialectKeyword Dialect = "keyword"
	// DialectServer is the Server=host,port;User Id=... shape produced by Fallback.
	DialectServer Dialect = "server"
	// DialectURL is a postgres:// or postgresql:// URL.
	DialectURL Dialect = "url"
)

const defaultPort = "5432"

// Descriptor is a parsed connection string.
type Descriptor struct {
	Dialect  Dialect
	Host     string
	Port     string
	Database string
	User     string
	Password string
	// SSLMode is a libpq sslmode value, empty when the string did not set one.
	SSLMode string
	// Params holds keys that have no pgx equivalent, lowercased without spaces.
	Params map[string]string
}

// ParseError reports a malformed connection string. The offending string is
// not kept since it may carry a password.
type ParseError struct {
	Reason string
	Hint   string
}

func (e *ParseError) Error() string {
	if e.Hint != "" {
		return fmt.Sprintf("invalid connection string: %s (%s)", e.Reason, e.Hint)
	}
	return "invalid connection string: " + e.Reason
}

func newParseError(reason, hint string) *ParseError {
	return &ParseError{Reason: reason, Hint: hint}
}

// Parse accepts either keyword shape or a postgres URL.
func Parse(s string) (*Descriptor, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, newParseError("empty connection string", "provide Host=...;Database=... or a postgres:// URL")
	}
	if strings.HasPrefix(s, "postgres://") || strings.HasPrefix(s, "postgresql://") {
		return parseURL(s)
	}
	return parseKeywords(s)
}

func parseURL(s string) (*Descriptor, error) {
	u, err := url.Parse(s)
	if err != nil {
		return nil, newParseError("malformed URL", "percent-encode special characters in the password")
	}
	d := &Descriptor{
		Dialect:  DialectURL,
		Host:     u.Hostname(),
		Port:     u.Port(),
		Database: strings.TrimPrefix(u.Path, "/"),
		Params:   map[string]string{},
	}
	if u.User != nil {
		d.User = u.User.Username()
		d.Password, _ = u.User.Password()
	}
	for key, values := range u.Query() {
		if len(values) == 0 {
			continue
		}
		if key == "sslmode" {
			d.SSLMode = values[0]
			continue
		}
		d.Params[key] = values[0]
	}
	return d.finish()
}

func parseKeywords(s string) (*Descriptor, error) {
	pairs, err := splitPairs(s)
	if err != nil {
		return nil, err
	}
	d := &Descriptor{Dialect: DialectKeyword, Params: map[string]string{}}
	encrypt := ""
	for _, kv := range pairs {
		key, value := kv[0], kv[1]
		switch key {
		case "host", "address", "addr", "networkaddress":
			d.Host = value
		case "server", "datasource":
			d.Dialect = DialectServer
			d.Host, d.Port = splitServer(value, d.Port)
		case "port":
			d.Port = value
		case "database", "initialcatalog":
			d.Database = value
		case "username", "user", "userid", "uid":
			if key == "userid" || key == "uid" {
				d.Dialect = DialectServer
			}
			d.User = value
		case "password", "pwd":
			d.Password = value
		case "sslmode":
			mode, ok := sslModes[strings.ToLower(value)]
			if !ok {
				return nil, newParseError("unsupported SslMode "+value, "use Disable, Allow, Prefer, Require, VerifyCA or VerifyFull")
			}
			d.SSLMode = mode
		case "encrypt":
			encrypt = strings.ToLower(value)
		default:
			d.Params[key] = value
		}
	}
	if d.SSLMode == "" {
		switch encrypt {
		case "true", "yes", "mandatory", "strict":
			d.SSLMode = "require"
		case "false", "no", "optional":
			d.SSLMode = "prefer"
		}
	}
	return d.finish()
}

func (d *Descriptor) finish() (*Descriptor, error) {
	if strings.TrimSpace(d.Host) == "" {
		return nil, newParseError("missing host", "set Host or Server")
	}
	if d.Port == "" {
		d.Port = defaultPort
	}
	return d, nil
}

var sslModes = map[string]string{
	"disable":     "disable",
	"allow":       "allow",
	"prefer":      "prefer",
	"require":     "require",
	"verifyca":    "verify-ca",
	"verify-ca":   "verify-ca",
	"verifyfull":  "verify-full",
	"verify-full": "verify-full",
}

// splitServer splits "host,port" at the last comma. A "tcp:" prefix is dropped.
func splitServer(value, port string) (string, string) {
	value = strings.TrimPrefix(value, "tcp:")
	if i := strings.LastIndex(value, ","); i >= 0 {
		return strings.TrimSpace(value[:i]), strings.TrimSpace(value[i+1:])
	}
	return value, port
}

// splitPairs tokenizes key=value pairs separated by semicolons. Keys are
// lowercased with spaces removed. Values may be wrapped in single or double
// quotes, with the quote doubled to escape it.
func splitPairs(s string) ([][2]string, error) {
	var pairs [][2]string
	for i := 0; i < len(s); {
		if s[i] == ';' || s[i] == ' ' {
			i++
			continue
		}
		eq := strings.IndexByte(s[i:], '=')
		if eq < 0 {
			rest := strings.TrimSpace(s[i:])
			if rest == "" {
				break
			}
			return nil, newParseError("expected key=value", "separate pairs with ';'")
		}
		key := normalizeKey(s[i : i+eq])
		if key == "" {
			return nil, newParseError("empty key", "")
		}
		i += eq + 1
		for i < len(s) && s[i] == ' ' {
			i++
		}

		var value string
		if i < len(s) && (s[i] == '"' || s[i] == '\'') {
			quote := s[i]
			i++
			var b strings.Builder
			closed := false
			for i < len(s) {
				if s[i] == quote {
					if i+1 < len(s) && s[i+1] == quote {
						b.WriteByte(quote)
						i += 2
						continue
					}
					i++
					closed = true
					break
				}
				b.WriteByte(s[i])
				i++
			}
			if !closed {
				return nil, newParseError("unterminated quoted value for "+key, "")
			}
			value = b.String()
			for i < len(s) && s[i] != ';' {
				if s[i] != ' ' {
					return nil, newParseError("unexpected text after quoted value for "+key, "")
				}
				i++
			}
		} else {
			end := strings.IndexByte(s[i:], ';')
			if end < 0 {
				end = len(s) - i
			}
			value = strings.TrimSpace(s[i : i+end])
			if spacedPairs(value) {
				return nil, newParseError("space-separated pairs after "+key, "separate pairs with ';' or use a postgres:// URL")
			}
			i += end
		}
		if i < len(s) && s[i] == ';' {
			i++
		}
		pairs = append(pairs, [2]string{key, value})
	}
	if len(pairs) == 0 {
		return nil, newParseError("no key=value pairs", "")
	}
	return pairs, nil
}

// spacedPairs reports an unquoted value that carries further key=value words,
// as in the libpq form "host=pg dbname=shop".
func spacedPairs(value string) bool {
	words := strings.Fields(value)
	for _, w := range words[min(1, len(words)):] {
		if strings.Contains(w, "=") {
			return true
		}
	}
	return false
}

func normalizeKey(k string) string {
	return strings.ToLower(strings.ReplaceAll(strings.TrimSpace(k), " ", ""))
}

func (d *Descriptor) url() *url.URL {
	u := &url.URL{
		Scheme: "postgres",
		Host:   net.JoinHostPort(d.Host, d.Port),
		Path:   "/" + d.Database,
	}
	if d.User != "" {
		if d.Password != "" {
			u.User = url.UserPassword(d.User, d.Password)
		} else {
			u.User = url.User(d.User)
		}
	}
	if d.SSLMode != "" {
		u.RawQuery = url.Values{"sslmode": {d.SSLMode}}.Encode()
	}
	return u
}

// URL renders the descriptor as a postgres URL accepted by pgx.
func (d *Descriptor) URL() string { return d.url().String() }

// Redacted renders the URL with the password masked, for logs.
func (d *Descriptor) Redacted() string { return d.url().Redacted() }

// PoolConfig returns a pgx pool configuration for the descriptor.
func (d *Descriptor) PoolConfig() (*pgxpool.Config, error) {
	cfg, err := pgxpool.ParseConfig(d.URL())
	if err != nil {
		return nil, fmt.Errorf("pool config: %w", err)
	}
	return cfg, nil
}
